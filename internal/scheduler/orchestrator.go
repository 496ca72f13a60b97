package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gateway-fm/volumegen/internal/account"
)

// Orchestrator starts one scheduler per (account, profile) combination
// and keeps them supervised until shutdown.
type Orchestrator struct {
	accounts []*account.Account
	profiles []Profile
	pipe     Submitter
	observer Observer
	logger   *slog.Logger
}

// OrchestratorConfig for creating an Orchestrator.
type OrchestratorConfig struct {
	Accounts []*account.Account
	Profiles []Profile
	Pipeline Submitter
	Observer Observer
	Logger   *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		accounts: cfg.Accounts,
		profiles: cfg.Profiles,
		pipe:     cfg.Pipeline,
		observer: cfg.Observer,
		logger:   logger,
	}
}

// Loops returns how many scheduler loops Run will start.
func (o *Orchestrator) Loops() int {
	return len(o.accounts) * len(o.profiles)
}

// Run starts every scheduler loop and blocks until all of them have
// exited after ctx is cancelled. No loop outlives Run.
func (o *Orchestrator) Run(ctx context.Context) {
	o.logger.Info("starting scheduler loops",
		slog.Int("accounts", len(o.accounts)),
		slog.Int("profiles", len(o.profiles)),
		slog.Int("loops", o.Loops()),
	)

	var wg sync.WaitGroup
	for _, acct := range o.accounts {
		for _, profile := range o.profiles {
			s := NewScheduler(profile, acct, o.pipe, o.observer, o.logger)
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Run(ctx)
			}()
		}
	}

	wg.Wait()
	o.logger.Info("all scheduler loops stopped")
}
