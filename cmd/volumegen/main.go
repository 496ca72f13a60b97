package main

import (
	"context"
	"flag"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gateway-fm/volumegen/internal/account"
	"github.com/gateway-fm/volumegen/internal/actions"
	"github.com/gateway-fm/volumegen/internal/config"
	"github.com/gateway-fm/volumegen/internal/endpoint"
	"github.com/gateway-fm/volumegen/internal/fees"
	"github.com/gateway-fm/volumegen/internal/metrics"
	"github.com/gateway-fm/volumegen/internal/pipeline"
	"github.com/gateway-fm/volumegen/internal/rpc"
	"github.com/gateway-fm/volumegen/internal/scheduler"
	"github.com/gateway-fm/volumegen/internal/storage"
)

const startupTimeout = 30 * time.Second

func main() {
	envFile := flag.String("env", ".env", "Path to .env file (missing file is ignored)")
	logLevel := flag.String("loglevel", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	accounts := make([]*account.Account, 0, len(cfg.Credentials))
	for i, cred := range cfg.Credentials {
		acct, err := account.LoadAccount(cred.PrivateKey, cred.Address)
		if err != nil {
			logger.Error("invalid credential", "index", i+1, "error", err)
			os.Exit(1)
		}
		accounts = append(accounts, acct)
	}

	chainID := big.NewInt(cfg.ChainID)
	clients := make([]rpc.Client, 0, len(cfg.RPCURLs))
	for _, url := range cfg.RPCURLs {
		clientCfg := rpc.DefaultClientConfig(url)
		clientCfg.Logger = logger
		clients = append(clients, rpc.NewHTTPClient(clientCfg))
	}
	pool := endpoint.New(endpoint.Config{
		Clients: clients,
		ChainID: chainID,
		Logger:  logger,
	})

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if _, err := pool.Acquire(startupCtx); err != nil {
		logger.Error("no endpoint reachable at startup", "error", err)
		os.Exit(1)
	}
	logger.Info("endpoint pool ready", "endpoints", pool.Size(), "chain_id", cfg.ChainID)

	// Seed every account's nonce from all endpoints, taking the highest
	// answer: a lagging endpoint must never rewind a sequence.
	ledger := account.NewLedger(logger)
	sources := make([]account.NonceSource, len(clients))
	for i, c := range clients {
		sources[i] = c
	}
	for _, acct := range accounts {
		if err := ledger.Initialize(startupCtx, acct.Address, sources); err != nil {
			logger.Error("nonce seeding failed",
				"account", acct.Address.Hex(), "error", err)
			os.Exit(1)
		}
	}
	logger.Info("accounts loaded", "count", len(accounts))

	journal, err := storage.NewJournal(cfg.DatabasePath, logger)
	if err != nil {
		logger.Error("failed to open journal", "error", err, "path", cfg.DatabasePath)
		os.Exit(1)
	}
	defer journal.Close()

	m := metrics.New(nil)
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	go func() {
		logger.Info("metrics listening", "addr", cfg.ListenAddr)
		if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	pipe := pipeline.New(pipeline.Config{
		Pool:      pool,
		Ledger:    ledger,
		Gates:     account.NewGates(),
		Estimator: fees.New(fees.Config{Logger: logger}),
		ChainID:   chainID,
		Logger:    logger,
	})

	deps := scheduler.Deps{
		Contracts: actions.Set{
			Staking:       cfg.Contracts.Staking,
			Wrapped:       cfg.Contracts.Wrapped,
			Stable:        cfg.Contracts.Stable,
			PathRouter:    cfg.Contracts.PathRouter,
			PoolRouter:    cfg.Contracts.PoolRouter,
			Pool:          cfg.Contracts.Pool,
			PoolFee:       cfg.Contracts.PoolFee,
			AdapterRouter: cfg.Contracts.AdapterRouter,
			Adapter:       cfg.Contracts.Adapter,
		},
		Pool:        pool,
		ValidatorID: cfg.ValidatorID,
	}

	stakerTuning := scheduler.DefaultStakerTuning
	stakerTuning.Actions = scheduler.Range{Min: cfg.Staker.MinTx, Max: cfg.Staker.MaxTx}
	stakerTuning.Delay = scheduler.DurationRange{Min: cfg.Staker.MinDelay, Max: cfg.Staker.MaxDelay}

	churnerTuning := scheduler.DefaultChurnerTuning
	churnerTuning.Actions = scheduler.Range{Min: cfg.Churner.MinTx, Max: cfg.Churner.MaxTx}
	churnerTuning.Delay = scheduler.DurationRange{Min: cfg.Churner.MinDelay, Max: cfg.Churner.MaxDelay}

	traderTuning := scheduler.DefaultTraderTuning
	traderTuning.Actions = scheduler.Range{Min: cfg.Trader.MinTx, Max: cfg.Trader.MaxTx}
	traderTuning.Delay = scheduler.DurationRange{Min: cfg.Trader.MinDelay, Max: cfg.Trader.MaxDelay}

	orch := scheduler.NewOrchestrator(scheduler.OrchestratorConfig{
		Accounts: accounts,
		Profiles: []scheduler.Profile{
			scheduler.Staker(deps, stakerTuning),
			scheduler.Churner(deps, churnerTuning),
			scheduler.DailyTrader(deps, traderTuning),
			scheduler.AdapterHopper(deps, scheduler.DefaultAdapterTuning),
		},
		Pipeline: pipe,
		Observer: scheduler.MultiObserver{m, journal},
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch.Run(ctx)
	logger.Info("shutdown complete")
}
