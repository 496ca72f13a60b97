package scheduler

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"github.com/gateway-fm/volumegen/internal/account"
	"github.com/gateway-fm/volumegen/internal/actions"
	"github.com/gateway-fm/volumegen/internal/endpoint"
	"github.com/gateway-fm/volumegen/internal/pipeline"
)

// Deps holds what the built-in profiles need: the contract addresses to
// target and a pool for read-only balance and allowance calls.
type Deps struct {
	Contracts   actions.Set
	Pool        *endpoint.Pool
	ValidatorID uint16
}

// Default pacing, chosen so every profile completes its cycle within a
// day and no two loops fall into lockstep.
var (
	DefaultStakerTuning = Tuning{
		Actions:  Range{Min: 1, Max: 3},
		Delay:    DurationRange{Min: time.Minute, Max: 5 * time.Minute},
		Cooldown: DurationRange{Min: 20 * time.Hour, Max: 28 * time.Hour},
	}
	DefaultChurnerTuning = Tuning{
		Actions:  Range{Min: 2, Max: 6},
		Delay:    DurationRange{Min: 2 * time.Minute, Max: 10 * time.Minute},
		Cooldown: DurationRange{Min: 6 * time.Hour, Max: 12 * time.Hour},
	}
	DefaultTraderTuning = Tuning{
		Actions:  Range{Min: 1, Max: 1},
		Delay:    DurationRange{Min: time.Minute, Max: 2 * time.Minute},
		Cooldown: DurationRange{Min: 20 * time.Hour, Max: 28 * time.Hour},
	}
	DefaultAdapterTuning = Tuning{
		Actions:  Range{Min: 3, Max: 7},
		Delay:    DurationRange{Min: 3 * time.Minute, Max: 7 * time.Minute},
		Cooldown: DurationRange{Min: time.Hour, Max: 2 * time.Hour},
	}
)

// submitOK submits one action and reports a failed result as an error,
// so the scheduler does not count the unit as completed.
func submitOK(ctx context.Context, submit SubmitFunc, action pipeline.Action) (pipeline.Result, error) {
	res, err := submit(ctx, action)
	if err != nil {
		return res, err
	}
	if !res.OK() {
		return res, fmt.Errorf("%s: %w", action.Name, res.Err)
	}
	return res, nil
}

// Staker stakes a random 0.1 to 0.5 native tokens with the configured
// validator each unit. Skips the unit when the balance cannot cover the
// drawn amount.
func Staker(deps Deps, tune Tuning) Profile {
	return Profile{
		Name:   "staker",
		Tuning: tune,
		Unit: func(ctx context.Context, acct *account.Account, submit SubmitFunc) error {
			amount := randomMilli(100, 500)
			if err := ensureFunds(ctx, deps, acct, amount); err != nil {
				return err
			}
			_, err := submitOK(ctx, submit, deps.Contracts.Stake(deps.ValidatorID, amount))
			return err
		},
	}
}

// Churner wraps a small amount of native token and swaps it through the
// pool-addressed router, approving the router first when the standing
// allowance is too small.
func Churner(deps Deps, tune Tuning) Profile {
	return Profile{
		Name:   "churner",
		Tuning: tune,
		Unit: func(ctx context.Context, acct *account.Account, submit SubmitFunc) error {
			amount := randomMilli(1, 5)
			if err := ensureFunds(ctx, deps, acct, amount); err != nil {
				return err
			}

			if _, err := submitOK(ctx, submit, deps.Contracts.Wrap(amount)); err != nil {
				return err
			}

			client, err := deps.Pool.Acquire(ctx)
			if err != nil {
				return fmt.Errorf("allowance check: %w", err)
			}
			allowance, err := actions.Allowance(ctx, client,
				deps.Contracts.Wrapped, acct.Address, deps.Contracts.PoolRouter)
			if err != nil || allowance.Cmp(amount) < 0 {
				approve := deps.Contracts.Approve(deps.Contracts.Wrapped, deps.Contracts.PoolRouter)
				if _, err := submitOK(ctx, submit, approve); err != nil {
					return err
				}
			}

			_, err = submitOK(ctx, submit, deps.Contracts.SwapWrappedViaPool(acct.Address, amount))
			return err
		},
	}
}

// DailyTrader swaps the account's whole stablecoin balance into the
// wrapped native token through the path-addressed router, then unwraps
// whatever arrived. Skips the unit when the balance is empty.
func DailyTrader(deps Deps, tune Tuning) Profile {
	return Profile{
		Name:   "daily_trader",
		Tuning: tune,
		Unit: func(ctx context.Context, acct *account.Account, submit SubmitFunc) error {
			client, err := deps.Pool.Acquire(ctx)
			if err != nil {
				return fmt.Errorf("balance check: %w", err)
			}

			balance, err := actions.BalanceOf(ctx, client, deps.Contracts.Stable, acct.Address)
			if err != nil {
				return fmt.Errorf("stable balance: %w", err)
			}
			if balance.Sign() == 0 {
				return ErrSkipUnit
			}

			allowance, err := actions.Allowance(ctx, client,
				deps.Contracts.Stable, acct.Address, deps.Contracts.PathRouter)
			if err != nil || allowance.Cmp(balance) < 0 {
				approve := deps.Contracts.Approve(deps.Contracts.Stable, deps.Contracts.PathRouter)
				if _, err := submitOK(ctx, submit, approve); err != nil {
					return err
				}
			}

			if _, err := submitOK(ctx, submit, deps.Contracts.SwapStableToWrapped(acct.Address, balance)); err != nil {
				return err
			}

			// The swap is confirmed at this point, so the wrapped balance
			// already reflects its output.
			wrapped, err := actions.BalanceOf(ctx, client, deps.Contracts.Wrapped, acct.Address)
			if err != nil {
				return fmt.Errorf("wrapped balance: %w", err)
			}
			if wrapped.Sign() == 0 {
				return nil
			}
			_, err = submitOK(ctx, submit, deps.Contracts.Unwrap(wrapped))
			return err
		},
	}
}

// AdapterHopper wraps one to three native tokens and swaps them to the
// stable token through the adapter-routed aggregator, approving the
// adapter first when the standing allowance is too small.
func AdapterHopper(deps Deps, tune Tuning) Profile {
	return Profile{
		Name:   "adapter_hopper",
		Tuning: tune,
		Unit: func(ctx context.Context, acct *account.Account, submit SubmitFunc) error {
			amount := randomMilli(1000, 3000)
			if err := ensureFunds(ctx, deps, acct, amount); err != nil {
				return err
			}

			if _, err := submitOK(ctx, submit, deps.Contracts.Wrap(amount)); err != nil {
				return err
			}

			client, err := deps.Pool.Acquire(ctx)
			if err != nil {
				return fmt.Errorf("allowance check: %w", err)
			}
			allowance, err := actions.Allowance(ctx, client,
				deps.Contracts.Wrapped, acct.Address, deps.Contracts.Adapter)
			if err != nil || allowance.Cmp(amount) < 0 {
				approve := deps.Contracts.Approve(deps.Contracts.Wrapped, deps.Contracts.Adapter)
				if _, err := submitOK(ctx, submit, approve); err != nil {
					return err
				}
			}

			_, err = submitOK(ctx, submit, deps.Contracts.SwapNativeViaAdapter(acct.Address, amount))
			return err
		},
	}
}

// DefaultProfiles returns the standard profile set with default pacing.
func DefaultProfiles(deps Deps) []Profile {
	return []Profile{
		Staker(deps, DefaultStakerTuning),
		Churner(deps, DefaultChurnerTuning),
		DailyTrader(deps, DefaultTraderTuning),
		AdapterHopper(deps, DefaultAdapterTuning),
	}
}

// ensureFunds skips the unit (ErrSkipUnit) when the account's native
// balance cannot cover a value-bearing action. Gas is intentionally not
// modelled here; an underpriced unit fails at broadcast like any other.
func ensureFunds(ctx context.Context, deps Deps, acct *account.Account, amount *big.Int) error {
	client, err := deps.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("balance check: %w", err)
	}
	balance, err := client.GetBalance(ctx, acct.Address)
	if err != nil {
		return fmt.Errorf("balance check: %w", err)
	}
	if balance.Cmp(amount) < 0 {
		return ErrSkipUnit
	}
	return nil
}

// randomMilli draws a uniform amount between min and max thousandths of
// the native token, in wei.
func randomMilli(min, max int64) *big.Int {
	n := min + rand.Int63n(max-min+1)
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e15))
}
