package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"beamledger/ledger"
)

// Genesis captures the initial ledger configuration seeded into a fresh
// database: the administrator, the authorized recorder set, the reward table,
// the daily cap and the funded pool vault.
type Genesis struct {
	Admin        common.Address
	Recorders    []common.Address
	RewardTable  ledger.RewardTable
	DailyCap     uint32
	Vault        common.Address
	VaultBalance *big.Int
}

// Bootstrapped reports whether the database has already been seeded.
func (m *Manager) Bootstrapped() (bool, error) {
	var marker bool
	ok, err := m.get(bootstrappedKey, &marker)
	if err != nil {
		return false, err
	}
	return ok && marker, nil
}

// Bootstrap seeds a fresh database with the genesis configuration. Seeding is
// idempotent: a database that already carries state is left untouched.
func (m *Manager) Bootstrap(gen Genesis) error {
	done, err := m.Bootstrapped()
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	if gen.Admin == (common.Address{}) {
		return fmt.Errorf("state: genesis requires an administrator identity")
	}
	if gen.Vault == (common.Address{}) {
		return fmt.Errorf("state: genesis requires a vault identity")
	}
	if err := gen.RewardTable.Validate(); err != nil {
		return err
	}
	if err := m.SetRole(ledger.RoleAdmin, gen.Admin, true); err != nil {
		return err
	}
	for _, recorder := range gen.Recorders {
		if recorder == (common.Address{}) {
			return fmt.Errorf("state: genesis recorder must not be the zero identity")
		}
		if err := m.SetRole(ledger.RoleRecorder, recorder, true); err != nil {
			return err
		}
	}
	if err := m.SetRewardTable(gen.RewardTable); err != nil {
		return err
	}
	if err := m.SetDailyCap(gen.DailyCap); err != nil {
		return err
	}
	balance := gen.VaultBalance
	if balance == nil {
		balance = big.NewInt(0)
	}
	if err := m.PutAccount(gen.Vault, &ledger.Account{Balance: balance}); err != nil {
		return err
	}
	return m.put(bootstrappedKey, true)
}
