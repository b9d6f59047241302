package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"beamledger/ledger"
)

type recordParams struct {
	Caller    string   `json:"caller"`
	Identity  string   `json:"identity"`
	Tier      *uint8   `json:"tier,omitempty"`
	Score     *float64 `json:"score,omitempty"`
	Reference string   `json:"reference,omitempty"`
}

type claimParams struct {
	ID     uint64 `json:"id"`
	Caller string `json:"caller"`
}

type grantIDParams struct {
	ID uint64 `json:"id"`
}

type identityParams struct {
	Identity string `json:"identity"`
}

type setTableParams struct {
	Caller  string   `json:"caller"`
	Amounts []string `json:"amounts"`
}

type setDailyCapParams struct {
	Caller string `json:"caller"`
	Cap    uint32 `json:"cap"`
}

type setRecorderParams struct {
	Caller   string `json:"caller"`
	Identity string `json:"identity"`
	Enabled  bool   `json:"enabled"`
}

type withdrawParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
	To     string `json:"to"`
}

type fundPoolParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type grantJSON struct {
	ID        uint64 `json:"id"`
	Claimant  string `json:"claimant"`
	Tier      uint8  `json:"tier"`
	Amount    string `json:"amount"`
	CreatedAt int64  `json:"createdAt"`
	Status    string `json:"status"`
	Reference string `json:"reference,omitempty"`
}

type recordResult struct {
	Rejected bool       `json:"rejected"`
	Grant    *grantJSON `json:"grant,omitempty"`
}

type totalsResult struct {
	TotalLocked      string `json:"totalLocked"`
	TotalDistributed string `json:"totalDistributed"`
	FreeBalance      string `json:"freeBalance"`
}

func grantToJSON(g *ledger.Grant) *grantJSON {
	if g == nil {
		return nil
	}
	return &grantJSON{
		ID:        g.ID,
		Claimant:  g.Claimant.Hex(),
		Tier:      g.Tier,
		Amount:    g.Amount.String(),
		CreatedAt: g.CreatedAt,
		Status:    g.Status.String(),
		Reference: g.Reference,
	}
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddressParam(raw, field string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, raw)
	}
	return common.HexToAddress(trimmed), nil
}

func (s *Server) handleRecord(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params recordParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddressParam(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	identity, err := parseAddressParam(params.Identity, "identity")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	var tier uint8
	switch {
	case params.Tier != nil:
		tier = *params.Tier
	case params.Score != nil:
		tier, err = ledger.TierForScore(*params.Score)
		if err != nil {
			writeLedgerError(w, req.ID, err)
			return
		}
	default:
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "either tier or score is required")
		return
	}
	reference := strings.TrimSpace(params.Reference)
	if reference == "" {
		reference = uuid.NewString()
	}
	grant, err := s.engine.Record(caller, identity, tier, reference)
	if err != nil {
		if errors.Is(err, ledger.ErrBelowQualifyingTier) {
			writeResult(w, req.ID, recordResult{Rejected: true})
			return
		}
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, recordResult{Grant: grantToJSON(grant)})
}

func (s *Server) handleClaim(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params claimParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddressParam(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.engine.Claim(params.ID, caller); err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	grant, err := s.engine.GetGrant(params.ID)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, grantToJSON(grant))
}

func (s *Server) handleGetGrant(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params grantIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	grant, err := s.engine.GetGrant(params.ID)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, grantToJSON(grant))
}

func (s *Server) handleListGrants(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.listGrants(w, req, false)
}

func (s *Server) handleListPending(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.listGrants(w, req, true)
}

func (s *Server) listGrants(w http.ResponseWriter, req *RPCRequest, pendingOnly bool) {
	var params identityParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	identity, err := parseAddressParam(params.Identity, "identity")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	var grants []*ledger.Grant
	if pendingOnly {
		grants, err = s.engine.PendingFor(identity)
	} else {
		grants, err = s.engine.GrantsFor(identity)
	}
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	out := make([]*grantJSON, 0, len(grants))
	for _, grant := range grants {
		out = append(out, grantToJSON(grant))
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleTodayCount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.countQuery(w, req, s.engine.TodayCount)
}

func (s *Server) handleRemainingToday(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.countQuery(w, req, s.engine.RemainingToday)
}

func (s *Server) countQuery(w http.ResponseWriter, req *RPCRequest, query func(common.Address) (uint32, error)) {
	var params identityParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	identity, err := parseAddressParam(params.Identity, "identity")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	count, err := query(identity)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, count)
}

func (s *Server) handleFreeBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	free, err := s.engine.FreeBalance()
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, free.String())
}

func (s *Server) handleTotals(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	locked, err := s.engine.TotalLocked()
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	distributed, err := s.engine.TotalDistributed()
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	free, err := s.engine.FreeBalance()
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, totalsResult{
		TotalLocked:      locked.String(),
		TotalDistributed: distributed.String(),
		FreeBalance:      free.String(),
	})
}

func (s *Server) handleRewardTable(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	table, err := s.engine.RewardTable()
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	amounts := make([]string, len(table))
	for i, amount := range table {
		amounts[i] = amount.String()
	}
	writeResult(w, req.ID, amounts)
}

func (s *Server) handleBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params identityParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	identity, err := parseAddressParam(params.Identity, "identity")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	balance, err := s.engine.AccountBalance(identity)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, balance.String())
}
