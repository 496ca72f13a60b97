// Package fees computes gas and fee parameters for pending actions.
package fees

import (
	"context"
	"errors"
	"log/slog"
	"math/big"

	"github.com/gateway-fm/volumegen/internal/rpc"
)

// Params holds the resolved gas parameters for one transaction. Either
// GasPrice (legacy) or GasTipCap/GasFeeCap (dynamic fee) is set, never
// both.
type Params struct {
	GasLimit  uint64
	GasPrice  *big.Int
	GasTipCap *big.Int
	GasFeeCap *big.Int
}

// Dynamic reports whether the params describe an EIP-1559 transaction.
func (p Params) Dynamic() bool {
	return p.GasFeeCap != nil
}

// Estimator computes fee parameters against a live connection, degrading
// to static defaults instead of failing: a missed estimate must never
// stall the pipeline.
type Estimator struct {
	defaultGasLimit uint64
	defaultGasPrice *big.Int
	priorityFee     *big.Int
	logger          *slog.Logger
}

// Config for creating an Estimator.
type Config struct {
	DefaultGasLimit uint64   // fallback when eth_estimateGas fails and the action has no hint
	DefaultGasPrice *big.Int // fallback when the node answers neither baseFee nor gasPrice
	PriorityFee     *big.Int // fixed tip for dynamic-fee transactions
	Logger          *slog.Logger
}

// Reasonable chain-agnostic defaults; callers normally override from
// configuration.
var (
	DefaultGasLimit = uint64(500_000)
	DefaultGasPrice = big.NewInt(1_000_000_000) // 1 gwei
	DefaultPriority = big.NewInt(2_000_000_000) // 2 gwei
)

// New creates an Estimator.
func New(cfg Config) *Estimator {
	e := &Estimator{
		defaultGasLimit: cfg.DefaultGasLimit,
		defaultGasPrice: cfg.DefaultGasPrice,
		priorityFee:     cfg.PriorityFee,
		logger:          cfg.Logger,
	}
	if e.defaultGasLimit == 0 {
		e.defaultGasLimit = DefaultGasLimit
	}
	if e.defaultGasPrice == nil {
		e.defaultGasPrice = DefaultGasPrice
	}
	if e.priorityFee == nil {
		e.priorityFee = DefaultPriority
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Estimate resolves gas limit and fee style for the given call. gasHint,
// when non-zero, is the action's own limit and wins over estimation
// failures. The returned params are always usable.
func (e *Estimator) Estimate(ctx context.Context, client rpc.Client, msg rpc.CallMsg, gasHint uint64) Params {
	params := Params{GasLimit: e.gasLimit(ctx, client, msg, gasHint)}

	baseFee, err := client.GetBaseFee(ctx)
	if err == nil {
		// Max fee tolerates one full base-fee doubling between estimation
		// and inclusion.
		feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
		feeCap.Add(feeCap, e.priorityFee)
		params.GasTipCap = new(big.Int).Set(e.priorityFee)
		params.GasFeeCap = feeCap
		return params
	}
	if !errors.Is(err, rpc.ErrNoBaseFee) {
		e.logger.Warn("base fee probe failed, falling back to legacy pricing",
			slog.String("error", err.Error()),
		)
	}

	gasPrice, err := client.GetGasPrice(ctx)
	if err != nil {
		e.logger.Warn("gas price query failed, using static default",
			slog.String("error", err.Error()),
			slog.String("default", e.defaultGasPrice.String()),
		)
		gasPrice = e.defaultGasPrice
	}
	params.GasPrice = new(big.Int).Set(gasPrice)
	return params
}

func (e *Estimator) gasLimit(ctx context.Context, client rpc.Client, msg rpc.CallMsg, gasHint uint64) uint64 {
	estimated, err := client.EstimateGas(ctx, msg)
	if err != nil {
		fallback := gasHint
		if fallback == 0 {
			fallback = e.defaultGasLimit
		}
		e.logger.Debug("gas estimate failed, using fallback",
			slog.String("error", err.Error()),
			slog.Uint64("fallback", fallback),
		)
		return fallback
	}
	// 20% headroom over the node's estimate.
	return estimated + estimated/5
}
