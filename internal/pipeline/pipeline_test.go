package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/gateway-fm/volumegen/internal/account"
	"github.com/gateway-fm/volumegen/internal/endpoint"
	"github.com/gateway-fm/volumegen/internal/fees"
	"github.com/gateway-fm/volumegen/internal/rpc"
)

const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var testChainID = big.NewInt(98865)

// mockClient implements rpc.Client for pipeline tests. It records every
// broadcast transaction and answers receipts from a programmable map.
type mockClient struct {
	mu            sync.Mutex
	sent          []*types.Transaction
	sendErr       error
	receipts      map[common.Hash]*rpc.TransactionReceipt
	probeErr      error
	receiptStatus uint64 // status stamped on auto-generated receipts
}

var _ rpc.Client = (*mockClient)(nil)

func newMockClient() *mockClient {
	return &mockClient{
		receipts:      make(map[common.Hash]*rpc.TransactionReceipt),
		receiptStatus: 1,
	}
}

func (m *mockClient) SendRawTransaction(ctx context.Context, txRLP []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	var tx types.Transaction
	if err := tx.UnmarshalBinary(txRLP); err != nil {
		return err
	}
	m.sent = append(m.sent, &tx)
	// Confirm immediately unless the test staged a specific receipt.
	if _, ok := m.receipts[tx.Hash()]; !ok {
		m.receipts[tx.Hash()] = &rpc.TransactionReceipt{Status: m.receiptStatus, GasUsed: 21000, BlockNumber: 1}
	}
	return nil
}

func (m *mockClient) GetTransactionReceipt(ctx context.Context, txHash common.Hash) (*rpc.TransactionReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.receipts[txHash], nil
}

func (m *mockClient) ChainID(ctx context.Context) (*big.Int, error) {
	if m.probeErr != nil {
		return nil, m.probeErr
	}
	return testChainID, nil
}

func (m *mockClient) sentNonces() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	nonces := make([]uint64, len(m.sent))
	for i, tx := range m.sent {
		nonces[i] = tx.Nonce()
	}
	return nonces
}

func (m *mockClient) URL() string { return "http://mock" }
func (m *mockClient) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	return nil, nil
}
func (m *mockClient) GetPendingNonce(ctx context.Context, address common.Address) (uint64, error) {
	return 0, nil
}
func (m *mockClient) GetGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}
func (m *mockClient) GetBaseFee(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}
func (m *mockClient) EstimateGas(ctx context.Context, msg rpc.CallMsg) (uint64, error) {
	return 50_000, nil
}
func (m *mockClient) CallContract(ctx context.Context, msg rpc.CallMsg) ([]byte, error) {
	return nil, nil
}
func (m *mockClient) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	return big.NewInt(1e18), nil
}

// newTestPipeline wires a pipeline over the given client with a fresh
// ledger and gate registry, returning all three.
func newTestPipeline(t *testing.T, client rpc.Client) (*Pipeline, *account.Ledger, *account.Account) {
	t.Helper()
	acct, err := account.NewAccountFromHex(testKey)
	if err != nil {
		t.Fatalf("test account: %v", err)
	}
	ledger := account.NewLedger(nil)
	p := New(Config{
		Pool:            endpoint.New(endpoint.Config{Clients: []rpc.Client{client}, ChainID: testChainID}),
		Ledger:          ledger,
		Gates:           account.NewGates(),
		Estimator:       fees.New(fees.Config{}),
		ChainID:         testChainID,
		ConfirmTimeout:  time.Second,
		ConfirmInterval: 10 * time.Millisecond,
	})
	return p, ledger, acct
}

func TestSubmitSuccess(t *testing.T) {
	client := newMockClient()
	p, _, acct := newTestPipeline(t, client)

	res, err := p.Submit(context.Background(), acct, Action{
		Name:  "stake",
		To:    common.Address{0x01},
		Value: big.NewInt(1000),
	})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if !res.OK() {
		t.Fatalf("Submit() = %s (%v), want ok", res.Kind, res.Err)
	}
	if res.GasUsed != 21000 {
		t.Errorf("GasUsed = %d, want 21000", res.GasUsed)
	}

	nonces := client.sentNonces()
	if len(nonces) != 1 || nonces[0] != 0 {
		t.Errorf("sent nonces = %v, want [0]", nonces)
	}
}

func TestSubmitBroadcastFailureLeavesNonceHole(t *testing.T) {
	client := newMockClient()
	client.sendErr = errors.New("insufficient funds for gas * price + value")
	p, ledger, acct := newTestPipeline(t, client)

	if err := ledger.Initialize(context.Background(), acct.Address, []account.NonceSource{client}); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}

	res, err := p.Submit(context.Background(), acct, Action{Name: "wrap", To: common.Address{0x02}})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if res.Kind != KindBroadcastFailed {
		t.Fatalf("Kind = %s, want broadcast_failed", res.Kind)
	}
	if res.Nonce != 0 {
		t.Errorf("failed submission used nonce %d, want 0", res.Nonce)
	}

	// The failed reservation is abandoned, not reclaimed.
	if next := ledger.Reserve(acct.Address); next != 1 {
		t.Errorf("next Reserve() = %d, want 1 (hole at 0)", next)
	}
}

func TestSubmitRevertDistinguishedFromBroadcastFailure(t *testing.T) {
	client := newMockClient()
	client.receiptStatus = 0
	p, ledger, acct := newTestPipeline(t, client)

	res, err := p.Submit(context.Background(), acct, Action{Name: "swap", To: common.Address{0x03}})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if res.Kind != KindExecutionReverted {
		t.Fatalf("Kind = %s, want execution_reverted", res.Kind)
	}
	if res.Err == nil {
		t.Error("reverted result carries no error detail")
	}
	if res.Hash == (common.Hash{}) {
		t.Error("reverted result has no transaction hash")
	}

	// A revert is an on-chain outcome: the transaction was included, so
	// the nonce is consumed just like on success.
	if next := ledger.Reserve(acct.Address); next != 1 {
		t.Errorf("next Reserve() = %d, want 1", next)
	}
}

func TestSubmitNoLiveEndpoint(t *testing.T) {
	client := newMockClient()
	client.probeErr = errors.New("connection refused")
	p, ledger, acct := newTestPipeline(t, client)

	res, err := p.Submit(context.Background(), acct, Action{Name: "stake", To: common.Address{0x01}})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if res.Kind != KindNoLiveEndpoint {
		t.Fatalf("Kind = %s, want no_live_endpoint", res.Kind)
	}

	// Endpoint acquisition precedes reservation: no nonce is consumed.
	if next := ledger.Peek(acct.Address); next != 0 {
		t.Errorf("Peek() = %d, want 0 (no nonce spent without an endpoint)", next)
	}
}

func TestSubmitConcurrentSameAccountOrdered(t *testing.T) {
	client := newMockClient()
	p, _, acct := newTestPipeline(t, client)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.Submit(context.Background(), acct, Action{Name: "stake", To: common.Address{0x01}})
			if err != nil || !res.OK() {
				t.Errorf("Submit() = %s, err %v", res.Kind, err)
			}
		}()
	}
	wg.Wait()

	nonces := client.sentNonces()
	if len(nonces) != n {
		t.Fatalf("sent %d transactions, want %d", len(nonces), n)
	}
	// Broadcast order must match reservation order exactly: the gate is
	// held from reservation through broadcast.
	for i, nonce := range nonces {
		if nonce != uint64(i) {
			t.Fatalf("broadcast order %v: position %d has nonce %d", nonces, i, nonce)
		}
	}
}

func TestSubmitCancelledWhileQueued(t *testing.T) {
	client := newMockClient()
	p, _, acct := newTestPipeline(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Submit(ctx, acct, Action{Name: "stake", To: common.Address{0x01}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Submit() error = %v, want context.Canceled", err)
	}
}

func TestSubmitFeeOverridesRespected(t *testing.T) {
	client := newMockClient()
	p, _, acct := newTestPipeline(t, client)

	gasPrice := big.NewInt(7_000_000_000)
	res, err := p.Submit(context.Background(), acct, Action{
		Name:     "approve",
		To:       common.Address{0x04},
		GasLimit: 100_000,
		GasPrice: gasPrice,
	})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if !res.OK() {
		t.Fatalf("Submit() = %s, want ok", res.Kind)
	}

	client.mu.Lock()
	tx := client.sent[len(client.sent)-1]
	client.mu.Unlock()
	if tx.Type() != types.LegacyTxType {
		t.Errorf("tx type = %d, want legacy for explicit gas price", tx.Type())
	}
	if tx.GasPrice().Cmp(gasPrice) != 0 {
		t.Errorf("GasPrice = %s, want %s", tx.GasPrice(), gasPrice)
	}
	if tx.Gas() != 100_000 {
		t.Errorf("Gas = %d, want 100000", tx.Gas())
	}
}
