// Package endpoint provides a pool of RPC endpoints with liveness
// probing and failover.
package endpoint

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/gateway-fm/volumegen/internal/rpc"
)

// ErrNoLiveEndpoint is returned by Acquire when every configured
// endpoint fails its liveness probe.
var ErrNoLiveEndpoint = errors.New("no live RPC endpoint")

// Pool holds an ordered list of RPC clients. Acquire probes endpoints in
// configured order and returns the first live one. Nothing is marked
// permanently dead: every acquisition re-evaluates from scratch, which
// costs a probe round-trip but survives endpoint flapping without any
// recovery bookkeeping.
type Pool struct {
	clients      []rpc.Client
	chainID      *big.Int // expected chain; probe rejects mismatches
	probeTimeout time.Duration
	logger       *slog.Logger
}

// Config for creating a Pool.
type Config struct {
	Clients      []rpc.Client
	ChainID      *big.Int
	ProbeTimeout time.Duration // per-endpoint probe budget (default 3s)
	Logger       *slog.Logger
}

// New creates a Pool over the given clients.
func New(cfg Config) *Pool {
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 3 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		clients:      cfg.Clients,
		chainID:      cfg.ChainID,
		probeTimeout: probeTimeout,
		logger:       logger,
	}
}

// Acquire returns the first endpoint that answers the liveness probe.
// The probe is a single eth_chainId round-trip with no internal retry;
// when the pool knows its expected chain, an endpoint answering with a
// different chain ID is treated as dead.
func (p *Pool) Acquire(ctx context.Context) (rpc.Client, error) {
	for _, client := range p.clients {
		if err := p.probe(ctx, client); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Debug("endpoint probe failed",
				slog.String("url", client.URL()),
				slog.String("error", err.Error()),
			)
			continue
		}
		return client, nil
	}
	return nil, ErrNoLiveEndpoint
}

func (p *Pool) probe(ctx context.Context, client rpc.Client) error {
	probeCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	id, err := client.ChainID(probeCtx)
	if err != nil {
		return err
	}
	if p.chainID != nil && id.Cmp(p.chainID) != 0 {
		return errors.New("endpoint serves chain " + id.String() + ", want " + p.chainID.String())
	}
	return nil
}

// Clients returns every configured client regardless of liveness. Used
// for nonce seeding, which wants the view of all endpoints, not just the
// first live one.
func (p *Pool) Clients() []rpc.Client {
	return p.clients
}

// Size returns the number of configured endpoints.
func (p *Pool) Size() int {
	return len(p.clients)
}
