package state

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"beamledger/ledger"
)

func TestBootstrapSeedsFreshDatabase(t *testing.T) {
	manager := newTestManager(t)
	admin := common.HexToAddress("0x00000000000000000000000000000000000000AD")
	recorder := common.HexToAddress("0x000000000000000000000000000000000000000C")
	vault := common.HexToAddress("0x00000000000000000000000000000000BEA11E57")

	done, err := manager.Bootstrapped()
	require.NoError(t, err)
	require.False(t, done)

	gen := Genesis{
		Admin:        admin,
		Recorders:    []common.Address{recorder},
		RewardTable:  testTable(),
		DailyCap:     5,
		Vault:        vault,
		VaultBalance: big.NewInt(10_000_000),
	}
	require.NoError(t, manager.Bootstrap(gen))

	done, err = manager.Bootstrapped()
	require.NoError(t, err)
	require.True(t, done)

	ok, err := manager.HasRole(ledger.RoleAdmin, admin)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = manager.HasRole(ledger.RoleRecorder, recorder)
	require.NoError(t, err)
	require.True(t, ok)

	table, err := manager.RewardTable()
	require.NoError(t, err)
	require.Equal(t, testTable(), table)

	dayCap, err := manager.DailyCap()
	require.NoError(t, err)
	require.Equal(t, uint32(5), dayCap)

	account, err := manager.GetAccount(vault)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(10_000_000), account.Balance)
}

func TestBootstrapIsIdempotent(t *testing.T) {
	manager := newTestManager(t)
	admin := common.HexToAddress("0x00000000000000000000000000000000000000AD")
	vault := common.HexToAddress("0x00000000000000000000000000000000BEA11E57")

	gen := Genesis{
		Admin:        admin,
		RewardTable:  testTable(),
		DailyCap:     5,
		Vault:        vault,
		VaultBalance: big.NewInt(1_000),
	}
	require.NoError(t, manager.Bootstrap(gen))

	// A second bootstrap with different values must leave the seeded state
	// untouched.
	gen.DailyCap = 99
	gen.VaultBalance = big.NewInt(5)
	require.NoError(t, manager.Bootstrap(gen))

	dayCap, err := manager.DailyCap()
	require.NoError(t, err)
	require.Equal(t, uint32(5), dayCap)
	account, err := manager.GetAccount(vault)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1_000), account.Balance)
}

func TestBootstrapValidation(t *testing.T) {
	admin := common.HexToAddress("0x00000000000000000000000000000000000000AD")
	vault := common.HexToAddress("0x00000000000000000000000000000000BEA11E57")

	t.Run("missing admin", func(t *testing.T) {
		manager := newTestManager(t)
		err := manager.Bootstrap(Genesis{Vault: vault, RewardTable: testTable()})
		require.Error(t, err)
	})
	t.Run("missing vault", func(t *testing.T) {
		manager := newTestManager(t)
		err := manager.Bootstrap(Genesis{Admin: admin, RewardTable: testTable()})
		require.Error(t, err)
	})
	t.Run("invalid table", func(t *testing.T) {
		manager := newTestManager(t)
		table := testTable()
		table[2] = nil
		err := manager.Bootstrap(Genesis{Admin: admin, Vault: vault, RewardTable: table})
		require.Error(t, err)
	})
	t.Run("zero recorder", func(t *testing.T) {
		manager := newTestManager(t)
		err := manager.Bootstrap(Genesis{
			Admin:       admin,
			Vault:       vault,
			RewardTable: testTable(),
			Recorders:   []common.Address{{}},
		})
		require.Error(t, err)
	})
}
