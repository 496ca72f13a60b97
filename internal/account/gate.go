package account

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Gates serializes chain-mutating work per address. Each address gets a
// lazily created gate; WithExclusive admits one holder at a time and
// queues contenders in arrival order on the gate's channel. A buffered
// channel is used instead of sync.Mutex so waiters can abandon the queue
// when their context is cancelled.
type Gates struct {
	mu    sync.Mutex
	gates map[common.Address]chan struct{}
}

// NewGates creates an empty gate registry.
func NewGates() *Gates {
	return &Gates{
		gates: make(map[common.Address]chan struct{}),
	}
}

func (g *Gates) gate(addr common.Address) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	gate, ok := g.gates[addr]
	if !ok {
		gate = make(chan struct{}, 1)
		g.gates[addr] = gate
	}
	return gate
}

// WithExclusive runs fn while holding the address's gate. The gate is
// released unconditionally, whether fn returns an error or panics, so a
// failed submission never wedges the account. Returns ctx.Err() without
// running fn if the context is cancelled while queued.
func (g *Gates) WithExclusive(ctx context.Context, addr common.Address, fn func() error) error {
	gate := g.gate(addr)

	select {
	case gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-gate }()

	return fn()
}

// Held reports whether the address's gate is currently held. Intended for
// tests and diagnostics only.
func (g *Gates) Held(addr common.Address) bool {
	g.mu.Lock()
	gate, ok := g.gates[addr]
	g.mu.Unlock()
	return ok && len(gate) > 0
}
