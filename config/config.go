package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"beamledger/ledger"
)

// DefaultVaultAddress is the account used for the funds pool when a deployment
// does not pick its own.
const DefaultVaultAddress = "0x00000000000000000000000000000000BEA11E57"

// Telemetry holds the optional OTLP exporter settings.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
}

type Config struct {
	RPCAddress        string   `toml:"RPCAddress"`
	DataDir           string   `toml:"DataDir"`
	StorageBackend    string   `toml:"StorageBackend"`
	Environment       string   `toml:"Environment"`
	LogFile           string   `toml:"LogFile"`
	AdminAddress      string   `toml:"AdminAddress"`
	RecorderAddresses []string `toml:"RecorderAddresses"`
	VaultAddress      string   `toml:"VaultAddress"`
	DailyCap          uint32   `toml:"DailyCap"`
	RewardTable       []string `toml:"RewardTable"`
	InitialPool       string   `toml:"InitialPool"`

	// CountDryPoolAgainstQuota keeps a qualifying attempt charged against the
	// daily cap when the pool cannot cover the reward. Disable to refund the
	// capacity instead.
	CountDryPoolAgainstQuota bool `toml:"CountDryPoolAgainstQuota"`

	Telemetry Telemetry `toml:"Telemetry"`
}

func defaultConfig() *Config {
	return &Config{
		RPCAddress:               ":8645",
		DataDir:                  "./beamledger-data",
		StorageBackend:           "leveldb",
		VaultAddress:             DefaultVaultAddress,
		DailyCap:                 5,
		RewardTable:              []string{"1000", "2000", "5000", "10000", "20000"},
		InitialPool:              "0",
		CountDryPoolAgainstQuota: true,
	}
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := defaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("config: create directory for %s: %w", path, err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("config: create %s: %w", path, err)
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, fmt.Errorf("config: write default %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must be set")
	}
	switch strings.ToLower(strings.TrimSpace(c.StorageBackend)) {
	case "leveldb", "bolt", "memory":
	default:
		return fmt.Errorf("config: unsupported StorageBackend %q", c.StorageBackend)
	}
	if strings.TrimSpace(c.DataDir) == "" && strings.ToLower(c.StorageBackend) != "memory" {
		return fmt.Errorf("config: DataDir must be set for persistent backends")
	}
	if _, err := parseAddress(c.VaultAddress, "VaultAddress"); err != nil {
		return err
	}
	if strings.TrimSpace(c.AdminAddress) != "" {
		if _, err := parseAddress(c.AdminAddress, "AdminAddress"); err != nil {
			return err
		}
	}
	for _, recorder := range c.RecorderAddresses {
		if _, err := parseAddress(recorder, "RecorderAddresses"); err != nil {
			return err
		}
	}
	if len(c.RewardTable) != 5 {
		return fmt.Errorf("config: RewardTable must list exactly five amounts, got %d", len(c.RewardTable))
	}
	if _, err := c.ParsedRewardTable(); err != nil {
		return err
	}
	if _, err := c.ParsedInitialPool(); err != nil {
		return err
	}
	return nil
}

// Admin returns the configured administrator identity.
func (c *Config) Admin() (common.Address, error) {
	if strings.TrimSpace(c.AdminAddress) == "" {
		return common.Address{}, fmt.Errorf("config: AdminAddress must be set")
	}
	return parseAddress(c.AdminAddress, "AdminAddress")
}

// Vault returns the configured funds pool identity.
func (c *Config) Vault() (common.Address, error) {
	return parseAddress(c.VaultAddress, "VaultAddress")
}

// Recorders returns the configured recorder identities.
func (c *Config) Recorders() ([]common.Address, error) {
	recorders := make([]common.Address, 0, len(c.RecorderAddresses))
	for _, raw := range c.RecorderAddresses {
		addr, err := parseAddress(raw, "RecorderAddresses")
		if err != nil {
			return nil, err
		}
		recorders = append(recorders, addr)
	}
	return recorders, nil
}

// ParsedRewardTable returns the configured tier amounts in base units.
func (c *Config) ParsedRewardTable() (ledger.RewardTable, error) {
	var table ledger.RewardTable
	for i, raw := range c.RewardTable {
		amount, err := parseAmount(raw)
		if err != nil {
			return ledger.RewardTable{}, fmt.Errorf("config: RewardTable tier %d: %w", i+1, err)
		}
		table[i] = amount
	}
	if err := table.Validate(); err != nil {
		return ledger.RewardTable{}, err
	}
	return table, nil
}

// ParsedInitialPool returns the genesis pool balance in base units.
func (c *Config) ParsedInitialPool() (*big.Int, error) {
	amount, err := parseAmount(c.InitialPool)
	if err != nil {
		return nil, fmt.Errorf("config: InitialPool: %w", err)
	}
	return amount, nil
}

func parseAddress(raw, field string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("config: %s: invalid address %q", field, raw)
	}
	addr := common.HexToAddress(trimmed)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("config: %s: zero address not allowed", field)
	}
	return addr, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", raw)
	}
	return amount, nil
}
