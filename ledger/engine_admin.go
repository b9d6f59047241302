package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SetRecorderRole grants or revokes the recorder role for an identity. Only
// administrators may invoke it.
func (e *Engine) SetRecorderRole(caller, identity common.Address, enabled bool) error {
	if err := e.requireState(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireRole(RoleAdmin, caller); err != nil {
		return err
	}
	if identity == (common.Address{}) {
		return ErrInvalidIdentity
	}
	if err := e.state.SetRole(RoleRecorder, identity, enabled); err != nil {
		return fmt.Errorf("ledger: persist role: %w", err)
	}
	return nil
}

// SetRewardTable replaces all five tier amounts atomically. Existing grants
// keep the amount snapshotted at their creation.
func (e *Engine) SetRewardTable(caller common.Address, table RewardTable) error {
	if err := e.requireState(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireRole(RoleAdmin, caller); err != nil {
		return err
	}
	if err := table.Validate(); err != nil {
		return err
	}
	if err := e.state.SetRewardTable(table.Clone()); err != nil {
		return fmt.Errorf("ledger: persist reward table: %w", err)
	}
	return nil
}

// SetDailyCap replaces the global per-identity daily grant cap.
func (e *Engine) SetDailyCap(caller common.Address, dayCap uint32) error {
	if err := e.requireState(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireRole(RoleAdmin, caller); err != nil {
		return err
	}
	if err := e.state.SetDailyCap(dayCap); err != nil {
		return fmt.Errorf("ledger: persist daily cap: %w", err)
	}
	return nil
}

// Withdraw moves free pool balance to the supplied recipient. Funds locked by
// pending grants can never be withdrawn: the operation fails with
// ErrInsufficientFunds whenever the requested amount exceeds the free balance.
func (e *Engine) Withdraw(caller common.Address, amount *big.Int, to common.Address) error {
	if err := e.requireState(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireRole(RoleAdmin, caller); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrInvalidIdentity
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	free, err := e.freeBalanceLocked()
	if err != nil {
		return err
	}
	if free.Cmp(amt) < 0 {
		return ErrInsufficientFunds
	}
	vaultAcc, err := e.state.GetAccount(e.vault)
	if err != nil {
		return fmt.Errorf("ledger: load vault account: %w", err)
	}
	recipient, err := e.state.GetAccount(to)
	if err != nil {
		return fmt.Errorf("ledger: load recipient account: %w", err)
	}
	prevVault := vaultAcc.Clone()
	debited := vaultAcc.Clone()
	debited.Balance = new(big.Int).Sub(debited.Balance, amt)
	credited := recipient.Clone()
	credited.Balance = new(big.Int).Add(credited.Balance, amt)
	if err := e.state.PutAccount(e.vault, debited); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.state.PutAccount(to, credited); err != nil {
		_ = e.state.PutAccount(e.vault, prevVault)
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

// FundPool credits the vault account, modelling a top-up of the pre-existing
// funds pool. Only administrators may invoke it.
func (e *Engine) FundPool(caller common.Address, amount *big.Int) error {
	if err := e.requireState(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireRole(RoleAdmin, caller); err != nil {
		return err
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	vaultAcc, err := e.state.GetAccount(e.vault)
	if err != nil {
		return fmt.Errorf("ledger: load vault account: %w", err)
	}
	credited := vaultAcc.Clone()
	credited.Balance = new(big.Int).Add(credited.Balance, amt)
	if err := e.state.PutAccount(e.vault, credited); err != nil {
		return fmt.Errorf("ledger: persist vault account: %w", err)
	}
	return nil
}
