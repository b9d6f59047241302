package ledger

import (
	"errors"
	"math/big"
	"testing"
)

func TestGrantStatusStrings(t *testing.T) {
	if GrantPending.String() != "pending" || GrantClaimed.String() != "claimed" {
		t.Fatalf("unexpected status strings: %s %s", GrantPending, GrantClaimed)
	}
	if GrantStatus(7).String() != "unknown" {
		t.Fatalf("out-of-range status must stringify as unknown")
	}
	if !GrantPending.Valid() || !GrantClaimed.Valid() {
		t.Fatalf("lifecycle statuses must be valid")
	}
	if GrantStatus(7).Valid() {
		t.Fatalf("status 7 must not be valid")
	}
}

func TestGrantCloneIsDeep(t *testing.T) {
	original := &Grant{
		ID:        3,
		Claimant:  newTestAddress(0x11),
		Tier:      4,
		Amount:    big.NewInt(10000),
		CreatedAt: 1_700_000_000,
		Status:    GrantPending,
		Reference: "s1",
	}
	clone := original.Clone()
	clone.Amount.SetInt64(1)
	clone.Status = GrantClaimed
	if original.Amount.Cmp(big.NewInt(10000)) != 0 {
		t.Fatalf("mutating a clone must not touch the original amount")
	}
	if original.Status != GrantPending {
		t.Fatalf("mutating a clone must not touch the original status")
	}
	var nilGrant *Grant
	if nilGrant.Clone() != nil {
		t.Fatalf("cloning a nil grant must return nil")
	}
}

func TestRewardTableAmountForTier(t *testing.T) {
	table := defaultTestTable()
	for tier := TierMin; tier <= TierMax; tier++ {
		amount, err := table.AmountForTier(tier)
		if err != nil {
			t.Fatalf("tier %d: %v", tier, err)
		}
		if amount.Cmp(table[tier-1]) != 0 {
			t.Fatalf("tier %d amount mismatch: %s", tier, amount)
		}
	}
	if _, err := table.AmountForTier(0); !errors.Is(err, ErrInvalidTier) {
		t.Fatalf("tier 0 must be invalid, got %v", err)
	}
	if _, err := table.AmountForTier(6); !errors.Is(err, ErrInvalidTier) {
		t.Fatalf("tier 6 must be invalid, got %v", err)
	}

	// Returned amounts are copies.
	amount, _ := table.AmountForTier(2)
	amount.SetInt64(9)
	if table[1].Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("AmountForTier must return a copy")
	}
}

func TestRewardTableValidate(t *testing.T) {
	if err := defaultTestTable().Validate(); err != nil {
		t.Fatalf("default table must validate: %v", err)
	}
	missing := defaultTestTable()
	missing[3] = nil
	if err := missing.Validate(); err == nil {
		t.Fatalf("table with a nil entry must fail validation")
	}
	negative := defaultTestTable()
	negative[0] = big.NewInt(-1)
	if err := negative.Validate(); err == nil {
		t.Fatalf("table with a negative entry must fail validation")
	}
}

func TestAggregatesCloneIsDeep(t *testing.T) {
	aggs := Aggregates{TotalLocked: big.NewInt(100), TotalDistributed: big.NewInt(200)}
	clone := aggs.Clone()
	clone.TotalLocked.SetInt64(0)
	if aggs.TotalLocked.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("mutating a clone must not touch the original")
	}
	zero := Aggregates{}.Clone()
	if zero.TotalLocked.Sign() != 0 || zero.TotalDistributed.Sign() != 0 {
		t.Fatalf("cloning zero aggregates must yield zero totals")
	}
}

func TestAccountCloneHandlesNil(t *testing.T) {
	var account *Account
	clone := account.Clone()
	if clone == nil || clone.Balance.Sign() != 0 {
		t.Fatalf("cloning a nil account must yield a zero balance")
	}
	funded := &Account{Balance: big.NewInt(42)}
	clone = funded.Clone()
	clone.Balance.SetInt64(0)
	if funded.Balance.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("mutating a clone must not touch the original")
	}
}
