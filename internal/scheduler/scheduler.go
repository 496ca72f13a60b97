// Package scheduler runs one randomized action loop per (account,
// profile) pair. Each loop cycles through a drawn target count of units,
// pacing them with randomized delays and a long cooldown between cycles.
// A failing unit degrades throughput for its own loop only; it never
// stops the loop, its siblings, or the process.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gateway-fm/volumegen/internal/account"
	"github.com/gateway-fm/volumegen/internal/pipeline"
)

// ErrSkipUnit is returned by a profile unit that found nothing to do,
// for example an empty token balance. The scheduler logs it and moves
// on without counting the unit as completed.
var ErrSkipUnit = errors.New("unit skipped")

// Submitter is the pipeline surface the scheduler drives.
type Submitter interface {
	Submit(ctx context.Context, acct *account.Account, action pipeline.Action) (pipeline.Result, error)
}

// SubmitFunc submits one action for the scheduler's account. Profile
// units receive it instead of the raw pipeline so every submission is
// logged and observed uniformly.
type SubmitFunc func(ctx context.Context, action pipeline.Action) (pipeline.Result, error)

// Observer receives submission and cycle outcomes. Implementations must
// be safe for concurrent use across all scheduler loops.
type Observer interface {
	SubmissionDone(profile string, acct common.Address, action string, res pipeline.Result)
	CycleDone(profile string, acct common.Address, completed, target int)
}

// MultiObserver fans out to every contained observer.
type MultiObserver []Observer

func (m MultiObserver) SubmissionDone(profile string, acct common.Address, action string, res pipeline.Result) {
	for _, o := range m {
		o.SubmissionDone(profile, acct, action, res)
	}
}

func (m MultiObserver) CycleDone(profile string, acct common.Address, completed, target int) {
	for _, o := range m {
		o.CycleDone(profile, acct, completed, target)
	}
}

// Range bounds a random integer draw, inclusive on both ends.
type Range struct {
	Min, Max int
}

func (r Range) draw() int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rand.Intn(r.Max-r.Min+1)
}

// DurationRange bounds a random duration draw.
type DurationRange struct {
	Min, Max time.Duration
}

func (d DurationRange) draw() time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + time.Duration(rand.Int63n(int64(d.Max-d.Min)))
}

// Tuning holds the randomized pacing knobs of one profile.
type Tuning struct {
	Actions  Range         // units per cycle
	Delay    DurationRange // pause between units
	Cooldown DurationRange // pause between cycles
}

// Profile is one behavior pattern. Unit performs a single logical
// action sequence (possibly several chained submissions with reads in
// between) using the provided submit function.
type Profile struct {
	Name   string
	Tuning Tuning
	Unit   func(ctx context.Context, acct *account.Account, submit SubmitFunc) error
}

// Scheduler drives one profile for one account.
type Scheduler struct {
	profile  Profile
	acct     *account.Account
	pipe     Submitter
	observer Observer
	logger   *slog.Logger
}

// NewScheduler creates a scheduler for one (account, profile) pair.
func NewScheduler(profile Profile, acct *account.Account, pipe Submitter, observer Observer, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		profile:  profile,
		acct:     acct,
		pipe:     pipe,
		observer: observer,
		logger: logger.With(
			slog.String("profile", profile.Name),
			slog.String("account", acct.Address.Hex()),
		),
	}
}

// Run loops cycles until ctx is cancelled. Cancellation is observed at
// the sleep points and between submissions, never mid-broadcast.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		target := s.profile.Tuning.Actions.draw()
		s.logger.Info("cycle started", slog.Int("target", target))

		completed := 0
		for i := 0; i < target; i++ {
			if ctx.Err() != nil {
				return
			}
			if s.runUnit(ctx) {
				completed++
			}
			if !s.sleep(ctx, s.profile.Tuning.Delay.draw()) {
				return
			}
		}

		s.logger.Info("cycle finished",
			slog.Int("completed", completed),
			slog.Int("target", target),
		)
		if s.observer != nil {
			s.observer.CycleDone(s.profile.Name, s.acct.Address, completed, target)
		}

		if !s.sleep(ctx, s.profile.Tuning.Cooldown.draw()) {
			return
		}
	}
}

// runUnit executes one profile unit, containing any panic to this unit.
// It reports whether the unit ran to completion.
func (s *Scheduler) runUnit(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			s.logger.Error("unit panicked", slog.Any("panic", r))
		}
	}()

	err := s.profile.Unit(ctx, s.acct, s.submit)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrSkipUnit):
		s.logger.Debug("unit skipped")
		return false
	case ctx.Err() != nil:
		return false
	default:
		s.logger.Warn("unit failed", slog.String("error", err.Error()))
		return false
	}
}

// submit runs one action through the pipeline and reports the outcome.
func (s *Scheduler) submit(ctx context.Context, action pipeline.Action) (pipeline.Result, error) {
	res, err := s.pipe.Submit(ctx, s.acct, action)
	if err != nil {
		return res, fmt.Errorf("submit %s: %w", action.Name, err)
	}

	if res.OK() {
		s.logger.Info("action confirmed",
			slog.String("action", action.Name),
			slog.String("hash", res.Hash.Hex()),
			slog.Uint64("nonce", res.Nonce),
			slog.Uint64("gas_used", res.GasUsed),
		)
	} else {
		s.logger.Warn("action failed",
			slog.String("action", action.Name),
			slog.String("kind", res.Kind.String()),
			slog.String("error", res.Err.Error()),
		)
	}
	if s.observer != nil {
		s.observer.SubmissionDone(s.profile.Name, s.acct.Address, action.Name, res)
	}
	return res, nil
}

// sleep waits for d or until ctx is cancelled, reporting whether the
// loop should continue.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
