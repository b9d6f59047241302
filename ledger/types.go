package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// GrantStatus represents the lifecycle states of a reward grant. Pending is the
// only live state; Claimed is terminal. Sub-threshold attempts are rejected
// before a grant exists, so no rejected status is ever stored.
type GrantStatus uint8

const (
	GrantPending GrantStatus = iota
	GrantClaimed
)

func (s GrantStatus) Valid() bool {
	switch s {
	case GrantPending, GrantClaimed:
		return true
	default:
		return false
	}
}

func (s GrantStatus) String() string {
	switch s {
	case GrantPending:
		return "pending"
	case GrantClaimed:
		return "claimed"
	default:
		return "unknown"
	}
}

// Tier bounds and the qualifying threshold. Tier 1 is a valid rating but never
// reaches grant creation; the rejection happens before any state is touched.
const (
	TierMin           uint8 = 1
	TierMax           uint8 = 5
	MinQualifyingTier uint8 = 2
)

// Grant captures one recorded, fund-backed reward instance. Amount snapshots
// the reward table at creation time; later table edits never affect it.
// Claimant and Tier are immutable after creation.
type Grant struct {
	ID        uint64
	Claimant  common.Address
	Tier      uint8
	Amount    *big.Int
	CreatedAt int64
	Status    GrantStatus
	Reference string
}

// Clone returns a deep copy of the grant so callers can safely mutate the copy
// without affecting the stored instance.
func (g *Grant) Clone() *Grant {
	if g == nil {
		return nil
	}
	clone := *g
	if g.Amount != nil {
		clone.Amount = new(big.Int).Set(g.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// RewardTable maps tiers 1..5 to the amount locked for a grant of that tier.
// Index 0 holds tier 1.
type RewardTable [5]*big.Int

// Clone returns a deep copy of the table.
func (t RewardTable) Clone() RewardTable {
	var out RewardTable
	for i, amount := range t {
		if amount != nil {
			out[i] = new(big.Int).Set(amount)
		} else {
			out[i] = big.NewInt(0)
		}
	}
	return out
}

// AmountForTier returns the configured amount for the supplied tier.
func (t RewardTable) AmountForTier(tier uint8) (*big.Int, error) {
	if tier < TierMin || tier > TierMax {
		return nil, ErrInvalidTier
	}
	amount := t[tier-1]
	if amount == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(amount), nil
}

// Validate rejects tables with missing or negative entries.
func (t RewardTable) Validate() error {
	for i, amount := range t {
		if amount == nil || amount.Sign() < 0 {
			return fmt.Errorf("ledger: reward table entry for tier %d must be a non-negative amount", i+1)
		}
	}
	return nil
}

// Aggregates holds the two running totals maintained incrementally alongside
// every grant mutation. TotalLocked always equals the sum of amounts over all
// pending grants.
type Aggregates struct {
	TotalLocked      *big.Int
	TotalDistributed *big.Int
}

// Clone returns a deep copy of the aggregates.
func (a Aggregates) Clone() Aggregates {
	out := Aggregates{TotalLocked: big.NewInt(0), TotalDistributed: big.NewInt(0)}
	if a.TotalLocked != nil {
		out.TotalLocked = new(big.Int).Set(a.TotalLocked)
	}
	if a.TotalDistributed != nil {
		out.TotalDistributed = new(big.Int).Set(a.TotalDistributed)
	}
	return out
}

// Account tracks the funds held for one identity. The pool vault is an account
// like any other; claim settlements move balance from the vault to the
// claimant.
type Account struct {
	Balance *big.Int
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{Balance: big.NewInt(0)}
	}
	out := &Account{Balance: big.NewInt(0)}
	if a.Balance != nil {
		out.Balance = new(big.Int).Set(a.Balance)
	}
	return out
}

// Role names checked against the authorization table.
const (
	RoleAdmin    = "admin"
	RoleRecorder = "recorder"
)
