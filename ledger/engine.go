package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"beamledger/core/events"
	"beamledger/ledger/quota"
)

var errNilState = errors.New("ledger: state not configured")

// State describes the persistence functionality the engine needs from the
// surrounding state implementation. The engine is the only writer; all grant
// records, aggregates and counters are owned by the ledger state.
type State interface {
	quota.StoreState

	GrantPut(*Grant) error
	GrantGet(id uint64) (*Grant, bool, error)
	GrantDelete(id uint64) error
	GrantHead() (uint64, error)
	SetGrantHead(next uint64) error
	GrantIndexAppend(addr common.Address, id uint64) error
	GrantIndexPop(addr common.Address) error
	GrantIndex(addr common.Address) ([]uint64, error)

	Aggregates() (Aggregates, error)
	SetAggregates(Aggregates) error
	RewardTable() (RewardTable, error)
	SetRewardTable(RewardTable) error
	DailyCap() (uint32, error)
	SetDailyCap(uint32) error

	HasRole(role string, addr common.Address) (bool, error)
	SetRole(role string, addr common.Address, enabled bool) error

	GetAccount(addr common.Address) (*Account, error)
	PutAccount(addr common.Address, account *Account) error
}

// Engine wires the reward ledger business logic with external state and event
// emitters. All mutating operations are serialised behind one mutex so no two
// operations interleave their check-then-effect sequence; read-only queries
// share the read side and observe consistent snapshots.
type Engine struct {
	mu      sync.RWMutex
	state   State
	quotas  *quota.Store
	emitter events.Emitter
	vault   common.Address
	nowFn   func() int64

	// countDryPoolAgainstQuota keeps the daily counter consumed when a
	// qualifying attempt fails on an empty pool. This mirrors the inherited
	// policy; setting it false refunds the increment instead.
	countDryPoolAgainstQuota bool
}

// NewEngine creates a reward engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter:                  events.NoopEmitter{},
		nowFn:                    func() int64 { return time.Now().Unix() },
		countDryPoolAgainstQuota: true,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state State) {
	e.state = state
	e.quotas = quota.NewStore(state)
}

// SetVault configures the account holding the funds pool.
func (e *Engine) SetVault(addr common.Address) { e.vault = addr }

// Vault returns the configured funds pool account.
func (e *Engine) Vault() common.Address { return e.vault }

// SetCountDryPoolAgainstQuota selects whether an InsufficientFunds failure at
// record time still consumes daily capacity.
func (e *Engine) SetCountDryPoolAgainstQuota(enabled bool) {
	e.countDryPoolAgainstQuota = enabled
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt *events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) requireState() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) requireRole(role string, addr common.Address) error {
	ok, err := e.state.HasRole(role, addr)
	if err != nil {
		return fmt.Errorf("ledger: role lookup: %w", err)
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// freeBalanceLocked derives the free pool balance. Callers must hold the lock.
func (e *Engine) freeBalanceLocked() (*big.Int, error) {
	vault, err := e.state.GetAccount(e.vault)
	if err != nil {
		return nil, fmt.Errorf("ledger: load vault account: %w", err)
	}
	aggs, err := e.state.Aggregates()
	if err != nil {
		return nil, fmt.Errorf("ledger: load aggregates: %w", err)
	}
	free := new(big.Int).Sub(cloneBigInt(vault.Balance), cloneBigInt(aggs.TotalLocked))
	if free.Sign() < 0 {
		free = big.NewInt(0)
	}
	return free, nil
}

// Record validates a quality-scored attempt and, when it qualifies, creates a
// pending grant with the reward-table amount locked for the identity. Only
// identities holding the recorder role may invoke it. Sub-threshold tiers emit
// a rejection event and return ErrBelowQualifyingTier without touching any
// state.
func (e *Engine) Record(caller, identity common.Address, tier uint8, reference string) (*Grant, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireRole(RoleRecorder, caller); err != nil {
		return nil, err
	}
	if identity == (common.Address{}) {
		return nil, ErrInvalidIdentity
	}
	if tier < TierMin || tier > TierMax {
		return nil, ErrInvalidTier
	}
	now := e.now()
	if tier < MinQualifyingTier {
		e.emit(NewRejectedEvent(identity, tier, now))
		return nil, ErrBelowQualifyingTier
	}

	bucket := quota.Bucket(now)
	dayCap, err := e.state.DailyCap()
	if err != nil {
		return nil, fmt.Errorf("ledger: load daily cap: %w", err)
	}
	count, err := e.quotas.Count(bucket, identity.Bytes())
	if err != nil {
		return nil, err
	}
	if dayCap > 0 && count >= dayCap {
		return nil, ErrDailyCapReached
	}
	if _, err := e.quotas.Increment(bucket, identity.Bytes()); err != nil {
		return nil, err
	}

	table, err := e.state.RewardTable()
	if err != nil {
		return nil, fmt.Errorf("ledger: load reward table: %w", err)
	}
	amount, err := table.AmountForTier(tier)
	if err != nil {
		return nil, err
	}

	free, err := e.freeBalanceLocked()
	if err != nil {
		return nil, err
	}
	if free.Cmp(amount) < 0 {
		if !e.countDryPoolAgainstQuota {
			if err := e.quotas.Decrement(bucket, identity.Bytes()); err != nil {
				return nil, err
			}
		}
		return nil, ErrInsufficientFunds
	}

	id, err := e.state.GrantHead()
	if err != nil {
		return nil, fmt.Errorf("ledger: load grant sequence: %w", err)
	}
	grant := &Grant{
		ID:        id,
		Claimant:  identity,
		Tier:      tier,
		Amount:    amount,
		CreatedAt: now,
		Status:    GrantPending,
		Reference: reference,
	}
	aggs, err := e.state.Aggregates()
	if err != nil {
		return nil, fmt.Errorf("ledger: load aggregates: %w", err)
	}
	next := aggs.Clone()
	next.TotalLocked = new(big.Int).Add(next.TotalLocked, amount)

	if err := e.state.GrantPut(grant); err != nil {
		return nil, fmt.Errorf("ledger: persist grant: %w", err)
	}
	if err := e.state.GrantIndexAppend(identity, id); err != nil {
		_ = e.state.GrantDelete(id)
		return nil, fmt.Errorf("ledger: update grant index: %w", err)
	}
	if err := e.state.SetAggregates(next); err != nil {
		_ = e.state.GrantIndexPop(identity)
		_ = e.state.GrantDelete(id)
		return nil, fmt.Errorf("ledger: persist aggregates: %w", err)
	}
	if err := e.state.SetGrantHead(id + 1); err != nil {
		_ = e.state.SetAggregates(aggs)
		_ = e.state.GrantIndexPop(identity)
		_ = e.state.GrantDelete(id)
		return nil, fmt.Errorf("ledger: persist grant sequence: %w", err)
	}
	e.emit(NewRecordedEvent(grant))
	return grant.Clone(), nil
}

// Claim settles a pending grant to its claimant. The status flip, the
// aggregate moves and the vault transfer form one atomic unit: any failure
// rolls back the writes already applied so a failed transfer can never leave a
// claimed grant without funds moved.
func (e *Engine) Claim(id uint64, caller common.Address) error {
	if err := e.requireState(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	grant, ok, err := e.state.GrantGet(id)
	if err != nil {
		return fmt.Errorf("ledger: load grant: %w", err)
	}
	if !ok {
		return ErrGrantNotFound
	}
	if grant.Status != GrantPending {
		return ErrAlreadyClaimed
	}
	if caller != grant.Claimant {
		return ErrNotOwner
	}
	amount := cloneBigInt(grant.Amount)
	vaultAcc, err := e.state.GetAccount(e.vault)
	if err != nil {
		return fmt.Errorf("ledger: load vault account: %w", err)
	}
	if cloneBigInt(vaultAcc.Balance).Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	claimantAcc, err := e.state.GetAccount(grant.Claimant)
	if err != nil {
		return fmt.Errorf("ledger: load claimant account: %w", err)
	}
	aggs, err := e.state.Aggregates()
	if err != nil {
		return fmt.Errorf("ledger: load aggregates: %w", err)
	}

	prevGrant := grant.Clone()
	prevAggs := aggs.Clone()
	prevVault := vaultAcc.Clone()

	settled := grant.Clone()
	settled.Status = GrantClaimed
	nextAggs := aggs.Clone()
	nextAggs.TotalLocked = new(big.Int).Sub(nextAggs.TotalLocked, amount)
	nextAggs.TotalDistributed = new(big.Int).Add(nextAggs.TotalDistributed, amount)

	if err := e.state.GrantPut(settled); err != nil {
		return fmt.Errorf("ledger: persist grant: %w", err)
	}
	if err := e.state.SetAggregates(nextAggs); err != nil {
		_ = e.state.GrantPut(prevGrant)
		return fmt.Errorf("ledger: persist aggregates: %w", err)
	}

	debited := vaultAcc.Clone()
	debited.Balance = new(big.Int).Sub(debited.Balance, amount)
	credited := claimantAcc.Clone()
	credited.Balance = new(big.Int).Add(credited.Balance, amount)
	if err := e.state.PutAccount(e.vault, debited); err != nil {
		_ = e.state.SetAggregates(prevAggs)
		_ = e.state.GrantPut(prevGrant)
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.state.PutAccount(grant.Claimant, credited); err != nil {
		_ = e.state.PutAccount(e.vault, prevVault)
		_ = e.state.SetAggregates(prevAggs)
		_ = e.state.GrantPut(prevGrant)
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	e.emit(NewClaimedEvent(settled, e.now()))
	return nil
}

// GetGrant returns the grant with the supplied id.
func (e *Engine) GetGrant(id uint64) (*Grant, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	grant, ok, err := e.state.GrantGet(id)
	if err != nil {
		return nil, fmt.Errorf("ledger: load grant: %w", err)
	}
	if !ok {
		return nil, ErrGrantNotFound
	}
	return grant.Clone(), nil
}

// GrantsFor returns every grant recorded for the identity in creation order.
func (e *Engine) GrantsFor(identity common.Address) ([]*Grant, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.grantsForLocked(identity, false)
}

// PendingFor returns the identity's pending grants in creation order.
func (e *Engine) PendingFor(identity common.Address) ([]*Grant, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.grantsForLocked(identity, true)
}

func (e *Engine) grantsForLocked(identity common.Address, pendingOnly bool) ([]*Grant, error) {
	ids, err := e.state.GrantIndex(identity)
	if err != nil {
		return nil, fmt.Errorf("ledger: load grant index: %w", err)
	}
	grants := make([]*Grant, 0, len(ids))
	for _, id := range ids {
		grant, ok, err := e.state.GrantGet(id)
		if err != nil {
			return nil, fmt.Errorf("ledger: load grant: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("ledger: index references missing grant %d", id)
		}
		if pendingOnly && grant.Status != GrantPending {
			continue
		}
		grants = append(grants, grant.Clone())
	}
	return grants, nil
}

// TodayCount reports the number of grants created for the identity in the
// current day bucket.
func (e *Engine) TodayCount(identity common.Address) (uint32, error) {
	if err := e.requireState(); err != nil {
		return 0, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.quotas.Count(quota.Bucket(e.now()), identity.Bytes())
}

// RemainingToday reports how many qualifying grants the identity can still
// receive in the current day bucket.
func (e *Engine) RemainingToday(identity common.Address) (uint32, error) {
	if err := e.requireState(); err != nil {
		return 0, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	dayCap, err := e.state.DailyCap()
	if err != nil {
		return 0, fmt.Errorf("ledger: load daily cap: %w", err)
	}
	count, err := e.quotas.Count(quota.Bucket(e.now()), identity.Bytes())
	if err != nil {
		return 0, err
	}
	if count >= dayCap {
		return 0, nil
	}
	return dayCap - count, nil
}

// FreeBalance reports the pool balance not locked by pending grants.
func (e *Engine) FreeBalance() (*big.Int, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.freeBalanceLocked()
}

// TotalLocked reports the sum of amounts over all pending grants.
func (e *Engine) TotalLocked() (*big.Int, error) {
	aggs, err := e.aggregates()
	if err != nil {
		return nil, err
	}
	return aggs.TotalLocked, nil
}

// TotalDistributed reports the sum of amounts over all claimed grants.
func (e *Engine) TotalDistributed() (*big.Int, error) {
	aggs, err := e.aggregates()
	if err != nil {
		return nil, err
	}
	return aggs.TotalDistributed, nil
}

func (e *Engine) aggregates() (Aggregates, error) {
	if err := e.requireState(); err != nil {
		return Aggregates{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	aggs, err := e.state.Aggregates()
	if err != nil {
		return Aggregates{}, fmt.Errorf("ledger: load aggregates: %w", err)
	}
	return aggs.Clone(), nil
}

// RewardTable returns the current tier amounts.
func (e *Engine) RewardTable() (RewardTable, error) {
	if err := e.requireState(); err != nil {
		return RewardTable{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	table, err := e.state.RewardTable()
	if err != nil {
		return RewardTable{}, fmt.Errorf("ledger: load reward table: %w", err)
	}
	return table.Clone(), nil
}

// DailyCap returns the global per-identity daily grant cap.
func (e *Engine) DailyCap() (uint32, error) {
	if err := e.requireState(); err != nil {
		return 0, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.DailyCap()
}

// AccountBalance reports the funds held for the identity.
func (e *Engine) AccountBalance(identity common.Address) (*big.Int, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	account, err := e.state.GetAccount(identity)
	if err != nil {
		return nil, fmt.Errorf("ledger: load account: %w", err)
	}
	return cloneBigInt(account.Balance), nil
}
