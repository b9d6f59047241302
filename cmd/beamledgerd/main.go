package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"beamledger/config"
	"beamledger/ledger"
	"beamledger/observability"
	"beamledger/observability/logging"
	beamotel "beamledger/observability/otel"
	"beamledger/rpc"
	"beamledger/state"
	"beamledger/storage"
)

const envVar = "BEAM_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envVar))

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.Setup("beamledgerd", env, logging.Options{
		File:       cfg.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 28,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if endpoint := strings.TrimSpace(cfg.Telemetry.Endpoint); endpoint != "" {
		shutdown, err := beamotel.Init(ctx, beamotel.Config{
			ServiceName: "beamledgerd",
			Environment: env,
			Endpoint:    endpoint,
			Insecure:    cfg.Telemetry.Insecure,
		})
		if err != nil {
			logger.Error("failed to initialise telemetry", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			_ = shutdown(context.Background())
		}()
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	manager := state.NewManager(db)
	if err := bootstrap(manager, cfg); err != nil {
		logger.Error("failed to bootstrap ledger state", slog.Any("error", err))
		os.Exit(1)
	}

	vault, err := cfg.Vault()
	if err != nil {
		logger.Error("invalid vault address", slog.Any("error", err))
		os.Exit(1)
	}

	engine := ledger.NewEngine()
	engine.SetState(manager)
	engine.SetVault(vault)
	engine.SetCountDryPoolAgainstQuota(cfg.CountDryPoolAgainstQuota)
	engine.SetEmitter(observability.NewEventSink(logger))

	publishAggregates(engine, logger)

	server := rpc.NewServer(engine)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting JSON-RPC server", slog.String("address", cfg.RPCAddress))
		errCh <- server.Start(cfg.RPCAddress)
	}()

	select {
	case err := <-errCh:
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	case <-ctx.Done():
		logger.Info("shutting down")
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageBackend)) {
	case "memory":
		return storage.NewMemDB(), nil
	case "bolt":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "ledger.db"))
	default:
		return storage.NewLevelDB(cfg.DataDir)
	}
}

func bootstrap(manager *state.Manager, cfg *config.Config) error {
	done, err := manager.Bootstrapped()
	if err != nil || done {
		return err
	}
	admin, err := cfg.Admin()
	if err != nil {
		return err
	}
	vault, err := cfg.Vault()
	if err != nil {
		return err
	}
	recorders, err := cfg.Recorders()
	if err != nil {
		return err
	}
	table, err := cfg.ParsedRewardTable()
	if err != nil {
		return err
	}
	pool, err := cfg.ParsedInitialPool()
	if err != nil {
		return err
	}
	return manager.Bootstrap(state.Genesis{
		Admin:        admin,
		Recorders:    recorders,
		RewardTable:  table,
		DailyCap:     cfg.DailyCap,
		Vault:        vault,
		VaultBalance: pool,
	})
}

func publishAggregates(engine *ledger.Engine, logger *slog.Logger) {
	locked, err := engine.TotalLocked()
	if err != nil {
		logger.Warn("failed to load locked total", slog.Any("error", err))
		return
	}
	distributed, err := engine.TotalDistributed()
	if err != nil {
		logger.Warn("failed to load distributed total", slog.Any("error", err))
		return
	}
	observability.Rewards().SetAggregates(locked, distributed)
}
