// Package pipeline drives the submit-sign-broadcast-confirm sequence for
// one action at a time per account.
//
// The account gate is held from nonce reservation through receipt
// confirmation. Holding through confirmation trades per-account
// throughput (one in-flight transaction per account, one network
// round-trip at a time) for an unambiguous nonce stream: no later
// reservation can race a pending one, so provider-side reordering can
// never surface a nonce gap that the ledger has to reason about.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/gateway-fm/volumegen/internal/account"
	"github.com/gateway-fm/volumegen/internal/endpoint"
	"github.com/gateway-fm/volumegen/internal/fees"
	"github.com/gateway-fm/volumegen/internal/rpc"
)

// ErrKind classifies a submission failure.
type ErrKind int

const (
	KindNone ErrKind = iota
	KindNoLiveEndpoint
	KindSigningFailed
	KindBroadcastFailed
	KindExecutionReverted
	KindConfirmationTimeout
)

// String returns the kind's identifier for logs and the journal.
func (k ErrKind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindNoLiveEndpoint:
		return "no_live_endpoint"
	case KindSigningFailed:
		return "signing_failed"
	case KindBroadcastFailed:
		return "broadcast_failed"
	case KindExecutionReverted:
		return "execution_reverted"
	case KindConfirmationTimeout:
		return "confirmation_timeout"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Action is one intended on-chain call: destination, native value,
// encoded payload, and optional gas/fee hints. Producers live outside
// the pipeline; the pipeline treats the payload as opaque.
type Action struct {
	Name     string // label for logs and the journal ("stake", "wrap", ...)
	To       common.Address
	Value    *big.Int // may be zero
	Data     []byte   // may be empty
	GasLimit uint64   // used when estimation fails; 0 falls back to the configured default

	// Explicit fee overrides. When set they bypass fee estimation;
	// GasPrice forces a legacy transaction.
	GasPrice  *big.Int
	GasTipCap *big.Int
	GasFeeCap *big.Int
}

// Result is the outcome of one submission attempt.
type Result struct {
	Hash    common.Hash
	Nonce   uint64
	GasUsed uint64
	Kind    ErrKind
	Err     error
}

// OK reports whether the submission was included with success status.
func (r Result) OK() bool {
	return r.Kind == KindNone
}

// Pipeline owns one submission attempt end to end. It performs no
// retries of its own; pacing and retry policy belong to the caller.
type Pipeline struct {
	pool            *endpoint.Pool
	ledger          *account.Ledger
	gates           *account.Gates
	estimator       *fees.Estimator
	chainID         *big.Int
	confirmTimeout  time.Duration
	confirmInterval time.Duration
	logger          *slog.Logger
}

// Config for creating a Pipeline.
type Config struct {
	Pool            *endpoint.Pool
	Ledger          *account.Ledger
	Gates           *account.Gates
	Estimator       *fees.Estimator
	ChainID         *big.Int
	ConfirmTimeout  time.Duration // max wait for one confirmation (default 2m)
	ConfirmInterval time.Duration // receipt poll interval (default 2s)
	Logger          *slog.Logger
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	confirmTimeout := cfg.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = 2 * time.Minute
	}
	confirmInterval := cfg.ConfirmInterval
	if confirmInterval <= 0 {
		confirmInterval = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		pool:            cfg.Pool,
		ledger:          cfg.Ledger,
		gates:           cfg.Gates,
		estimator:       cfg.Estimator,
		chainID:         cfg.ChainID,
		confirmTimeout:  confirmTimeout,
		confirmInterval: confirmInterval,
		logger:          logger,
	}
}

// Submit runs one action for the account under its exclusive gate.
// Failures are reported in the Result, never as the error return; the
// error is non-nil only when ctx is cancelled before or while queued.
func (p *Pipeline) Submit(ctx context.Context, acct *account.Account, action Action) (Result, error) {
	var res Result
	err := p.gates.WithExclusive(ctx, acct.Address, func() error {
		res = p.submitLocked(ctx, acct, action)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (p *Pipeline) submitLocked(ctx context.Context, acct *account.Account, action Action) Result {
	client, err := p.pool.Acquire(ctx)
	if err != nil {
		return Result{Kind: KindNoLiveEndpoint, Err: err}
	}

	nonce := p.ledger.Reserve(acct.Address)

	// From here on the nonce is spent: every exit path below leaves it
	// consumed, successful or not (see account.Ledger).
	params := p.feeParams(ctx, client, acct, action)

	tx := buildTx(p.chainID, nonce, action, params)
	signer := types.LatestSignerForChainID(p.chainID)
	signed, err := types.SignTx(tx, signer, acct.PrivateKey)
	if err != nil {
		return Result{Nonce: nonce, Kind: KindSigningFailed, Err: fmt.Errorf("sign: %w", err)}
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return Result{Nonce: nonce, Kind: KindSigningFailed, Err: fmt.Errorf("encode: %w", err)}
	}

	hash := signed.Hash()
	if err := client.SendRawTransaction(ctx, raw); err != nil {
		return Result{Hash: hash, Nonce: nonce, Kind: KindBroadcastFailed, Err: fmt.Errorf("broadcast: %w", err)}
	}

	p.logger.Debug("transaction broadcast",
		slog.String("account", acct.Address.Hex()),
		slog.String("action", action.Name),
		slog.Uint64("nonce", nonce),
		slog.String("hash", hash.Hex()),
		slog.String("endpoint", client.URL()),
	)

	return p.waitConfirmed(ctx, client, hash, nonce)
}

// feeParams resolves the action's fee parameters, preferring explicit
// overrides over estimation.
func (p *Pipeline) feeParams(ctx context.Context, client rpc.Client, acct *account.Account, action Action) fees.Params {
	if action.GasPrice != nil && action.GasLimit > 0 {
		return fees.Params{GasLimit: action.GasLimit, GasPrice: action.GasPrice}
	}
	if action.GasFeeCap != nil && action.GasTipCap != nil && action.GasLimit > 0 {
		return fees.Params{GasLimit: action.GasLimit, GasTipCap: action.GasTipCap, GasFeeCap: action.GasFeeCap}
	}

	msg := rpc.CallMsg{
		From:  acct.Address,
		To:    &action.To,
		Value: action.Value,
		Data:  action.Data,
	}
	params := p.estimator.Estimate(ctx, client, msg, action.GasLimit)

	// Partial overrides still win over the estimate.
	if action.GasPrice != nil {
		params.GasPrice = action.GasPrice
		params.GasTipCap = nil
		params.GasFeeCap = nil
	} else if action.GasFeeCap != nil && action.GasTipCap != nil {
		params.GasPrice = nil
		params.GasTipCap = action.GasTipCap
		params.GasFeeCap = action.GasFeeCap
	}
	return params
}

func buildTx(chainID *big.Int, nonce uint64, action Action, params fees.Params) *types.Transaction {
	value := action.Value
	if value == nil {
		value = big.NewInt(0)
	}
	to := action.To

	if params.Dynamic() {
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: params.GasTipCap,
			GasFeeCap: params.GasFeeCap,
			Gas:       params.GasLimit,
			To:        &to,
			Value:     value,
			Data:      action.Data,
		})
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: params.GasPrice,
		Gas:      params.GasLimit,
		To:       &to,
		Value:    value,
		Data:     action.Data,
	})
}

// waitConfirmed polls for the receipt until it appears or the
// confirmation budget is exhausted.
func (p *Pipeline) waitConfirmed(ctx context.Context, client rpc.Client, hash common.Hash, nonce uint64) Result {
	deadline := time.Now().Add(p.confirmTimeout)

	for {
		receipt, err := client.GetTransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status != 1 {
				return Result{
					Hash:    hash,
					Nonce:   nonce,
					GasUsed: receipt.GasUsed,
					Kind:    KindExecutionReverted,
					Err:     fmt.Errorf("transaction %s reverted in block %d", hash.Hex(), receipt.BlockNumber),
				}
			}
			return Result{Hash: hash, Nonce: nonce, GasUsed: receipt.GasUsed}
		}
		if err != nil {
			p.logger.Debug("receipt poll failed",
				slog.String("hash", hash.Hex()),
				slog.String("error", err.Error()),
			)
		}

		if time.Now().After(deadline) {
			return Result{
				Hash:  hash,
				Nonce: nonce,
				Kind:  KindConfirmationTimeout,
				Err:   fmt.Errorf("no receipt for %s within %s", hash.Hex(), p.confirmTimeout),
			}
		}

		select {
		case <-ctx.Done():
			return Result{
				Hash:  hash,
				Nonce: nonce,
				Kind:  KindConfirmationTimeout,
				Err:   ctx.Err(),
			}
		case <-time.After(p.confirmInterval):
		}
	}
}
