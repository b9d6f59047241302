package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"beamledger/ledger"
	"beamledger/storage"
)

// Manager persists the reward ledger's records on a storage.Database using RLP
// encoding. It implements ledger.State and is the sole owner of the stored
// layout; nothing else reads or writes these keys.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// storedGrant is the RLP representation of a grant. RLP has no signed integer
// support, so the creation timestamp is stored unsigned.
type storedGrant struct {
	ID        uint64
	Claimant  [20]byte
	Tier      uint8
	Amount    *big.Int
	CreatedAt uint64
	Status    uint8
	Reference string
}

type storedAggregates struct {
	TotalLocked      *big.Int
	TotalDistributed *big.Int
}

type storedAccount struct {
	Balance *big.Int
}

func (m *Manager) get(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) put(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put(key, encoded)
}

// GrantPut stores the grant under its id.
func (m *Manager) GrantPut(g *ledger.Grant) error {
	if g == nil {
		return fmt.Errorf("state: nil grant")
	}
	if !g.Status.Valid() {
		return fmt.Errorf("state: invalid grant status %d", g.Status)
	}
	stored := storedGrant{
		ID:        g.ID,
		Claimant:  [20]byte(g.Claimant),
		Tier:      g.Tier,
		Amount:    amountOrZero(g.Amount),
		CreatedAt: uint64(g.CreatedAt),
		Status:    uint8(g.Status),
		Reference: g.Reference,
	}
	return m.put(grantKey(g.ID), &stored)
}

// GrantGet loads the grant with the supplied id.
func (m *Manager) GrantGet(id uint64) (*ledger.Grant, bool, error) {
	var stored storedGrant
	ok, err := m.get(grantKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	grant := &ledger.Grant{
		ID:        stored.ID,
		Claimant:  common.Address(stored.Claimant),
		Tier:      stored.Tier,
		Amount:    stored.Amount,
		CreatedAt: int64(stored.CreatedAt),
		Status:    ledger.GrantStatus(stored.Status),
		Reference: stored.Reference,
	}
	return grant, true, nil
}

// GrantDelete removes the grant record. Used only to compensate failed writes.
func (m *Manager) GrantDelete(id uint64) error {
	return m.db.Delete(grantKey(id))
}

// GrantHead returns the next grant id to allocate.
func (m *Manager) GrantHead() (uint64, error) {
	var head uint64
	ok, err := m.get(grantHeadKey, &head)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return head, nil
}

// SetGrantHead stores the next grant id to allocate.
func (m *Manager) SetGrantHead(next uint64) error {
	return m.put(grantHeadKey, next)
}

// GrantIndexAppend records the grant id at the end of the identity's index.
func (m *Manager) GrantIndexAppend(addr common.Address, id uint64) error {
	ids, err := m.GrantIndex(addr)
	if err != nil {
		return err
	}
	return m.put(grantIndexKey(addr), append(ids, id))
}

// GrantIndexPop removes the last id from the identity's index. Used only to
// compensate failed writes.
func (m *Manager) GrantIndexPop(addr common.Address) error {
	ids, err := m.GrantIndex(addr)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return m.put(grantIndexKey(addr), ids[:len(ids)-1])
}

// GrantIndex returns the identity's grant ids in insertion order.
func (m *Manager) GrantIndex(addr common.Address) ([]uint64, error) {
	var ids []uint64
	if _, err := m.get(grantIndexKey(addr), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Aggregates loads the two running totals.
func (m *Manager) Aggregates() (ledger.Aggregates, error) {
	var stored storedAggregates
	ok, err := m.get(aggregatesKey, &stored)
	if err != nil {
		return ledger.Aggregates{}, err
	}
	if !ok {
		return ledger.Aggregates{TotalLocked: big.NewInt(0), TotalDistributed: big.NewInt(0)}, nil
	}
	return ledger.Aggregates{
		TotalLocked:      amountOrZero(stored.TotalLocked),
		TotalDistributed: amountOrZero(stored.TotalDistributed),
	}, nil
}

// SetAggregates stores the two running totals.
func (m *Manager) SetAggregates(aggs ledger.Aggregates) error {
	stored := storedAggregates{
		TotalLocked:      amountOrZero(aggs.TotalLocked),
		TotalDistributed: amountOrZero(aggs.TotalDistributed),
	}
	return m.put(aggregatesKey, &stored)
}

// RewardTable loads the five tier amounts; missing entries decode to zero.
func (m *Manager) RewardTable() (ledger.RewardTable, error) {
	var amounts []*big.Int
	ok, err := m.get(rewardTableKey, &amounts)
	if err != nil {
		return ledger.RewardTable{}, err
	}
	var table ledger.RewardTable
	for i := range table {
		table[i] = big.NewInt(0)
		if ok && i < len(amounts) && amounts[i] != nil {
			table[i] = new(big.Int).Set(amounts[i])
		}
	}
	return table, nil
}

// SetRewardTable stores all five tier amounts.
func (m *Manager) SetRewardTable(table ledger.RewardTable) error {
	amounts := make([]*big.Int, len(table))
	for i, amount := range table {
		amounts[i] = amountOrZero(amount)
	}
	return m.put(rewardTableKey, amounts)
}

// DailyCap loads the global per-identity daily grant cap.
func (m *Manager) DailyCap() (uint32, error) {
	var dayCap uint32
	ok, err := m.get(dailyCapKey, &dayCap)
	if err != nil || !ok {
		return 0, err
	}
	return dayCap, nil
}

// SetDailyCap stores the global per-identity daily grant cap.
func (m *Manager) SetDailyCap(dayCap uint32) error {
	return m.put(dailyCapKey, dayCap)
}

// HasRole reports whether the identity is a member of the role.
func (m *Manager) HasRole(role string, addr common.Address) (bool, error) {
	members, err := m.roleMembers(role)
	if err != nil {
		return false, err
	}
	for _, member := range members {
		if common.Address(member) == addr {
			return true, nil
		}
	}
	return false, nil
}

// SetRole adds or removes the identity from the role membership list.
func (m *Manager) SetRole(role string, addr common.Address, enabled bool) error {
	members, err := m.roleMembers(role)
	if err != nil {
		return err
	}
	filtered := make([][20]byte, 0, len(members)+1)
	for _, member := range members {
		if common.Address(member) == addr {
			continue
		}
		filtered = append(filtered, member)
	}
	if enabled {
		filtered = append(filtered, addr)
	}
	return m.put(roleKey(role), filtered)
}

func (m *Manager) roleMembers(role string) ([][20]byte, error) {
	var members [][20]byte
	if _, err := m.get(roleKey(role), &members); err != nil {
		return nil, err
	}
	return members, nil
}

// GetAccount loads the funds account for the identity. Missing accounts load
// as zero balances.
func (m *Manager) GetAccount(addr common.Address) (*ledger.Account, error) {
	var stored storedAccount
	ok, err := m.get(accountKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &ledger.Account{Balance: big.NewInt(0)}, nil
	}
	return &ledger.Account{Balance: amountOrZero(stored.Balance)}, nil
}

// PutAccount stores the funds account for the identity.
func (m *Manager) PutAccount(addr common.Address, account *ledger.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	if account.Balance != nil && account.Balance.Sign() < 0 {
		return fmt.Errorf("state: negative balance for %s", addr.Hex())
	}
	return m.put(accountKey(addr), &storedAccount{Balance: amountOrZero(account.Balance)})
}

// KVGet loads an RLP-encoded value stored under the namespaced key.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	return m.get(kvKey(key), out)
}

// KVPut stores the value under the namespaced key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	return m.put(kvKey(key), value)
}

// KVDelete removes the namespaced key.
func (m *Manager) KVDelete(key []byte) error {
	return m.db.Delete(kvKey(key))
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
