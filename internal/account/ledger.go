package account

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NonceSource reads the pending transaction count for an address. It is
// satisfied by rpc.Client; the ledger only needs this single read.
type NonceSource interface {
	GetPendingNonce(ctx context.Context, address common.Address) (uint64, error)
}

// Ledger tracks the next sequence number per address. Reserved values are
// handed out exactly once and never reclaimed: once a nonce leaves the
// ledger the network will reject any other transaction reusing it, and
// tracking rollback across concurrent profiles would reopen the race this
// ledger exists to close. Failed submissions therefore leave holes.
//
// Reserve must only be called while holding the address's gate (the
// pipeline enforces this by construction); the ledger itself is just an
// increment-and-return counter behind a lock.
type Ledger struct {
	mu     sync.Mutex
	nonces map[common.Address]uint64
	logger *slog.Logger
}

// NewLedger creates an empty nonce ledger.
func NewLedger(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		nonces: make(map[common.Address]uint64),
		logger: logger,
	}
}

// Initialize seeds the address from the maximum pending count observed
// across the given sources. Querying every source defends against a
// single endpoint serving a stale view; one failing source is tolerated
// as long as at least one answers.
func (l *Ledger) Initialize(ctx context.Context, addr common.Address, sources []NonceSource) error {
	var (
		best    uint64
		got     bool
		lastErr error
	)
	for _, src := range sources {
		n, err := src.GetPendingNonce(ctx, addr)
		if err != nil {
			lastErr = err
			continue
		}
		got = true
		if n > best {
			best = n
		}
	}
	if !got {
		return lastErr
	}

	l.mu.Lock()
	// Set-if-higher: never move an already-seeded counter backwards.
	if cur, ok := l.nonces[addr]; !ok || best > cur {
		l.nonces[addr] = best
	}
	seeded := l.nonces[addr]
	l.mu.Unlock()

	l.logger.Info("nonce initialized",
		slog.String("address", addr.Hex()),
		slog.Uint64("nonce", seeded),
	)
	return nil
}

// Reserve returns the next sequence number for the address and advances
// the counter. An address never passed to Initialize starts at 0; the
// orchestrator guarantees Initialize ran for every managed account before
// any profile starts.
func (l *Ledger) Reserve(addr common.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.nonces[addr]
	l.nonces[addr] = n + 1
	return n
}

// Peek returns the next sequence number without advancing it.
func (l *Ledger) Peek(addr common.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nonces[addr]
}
