package actions

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gateway-fm/volumegen/internal/rpc"
)

func TestSelectorsMatchKnownValues(t *testing.T) {
	// Published selectors for the standard ERC20/wrapped-native surface.
	known := map[string][]byte{
		"a9059cbb": SelectorTransfer,
		"095ea7b3": SelectorApprove,
		"70a08231": SelectorBalanceOf,
		"dd62ed3e": SelectorAllowance,
		"d0e30db0": SelectorDeposit,
		"2e1a7d4d": SelectorWithdraw,
	}
	for want, got := range known {
		if hex.EncodeToString(got) != want {
			t.Errorf("selector = %x, want %s", got, want)
		}
	}
}

func TestEncodeStake(t *testing.T) {
	data := EncodeStake(9)
	if len(data) != 36 {
		t.Fatalf("len = %d, want 36", len(data))
	}
	if !bytes.Equal(data[:4], SelectorStake) {
		t.Errorf("selector = %x, want %x", data[:4], SelectorStake)
	}
	// uint16 argument right-aligned in one word.
	for i := 4; i < 34; i++ {
		if data[i] != 0 {
			t.Fatalf("padding byte %d = %#x, want 0", i, data[i])
		}
	}
	if data[34] != 0 || data[35] != 9 {
		t.Errorf("validator id bytes = %x, want 0009", data[34:36])
	}
}

func TestEncodeApproveUnlimited(t *testing.T) {
	spender := common.HexToAddress("0x77aB297Da4f3667059ef0C32F5bc657f1006cBB0")
	data := EncodeApprove(spender, MaxUint256)

	if len(data) != 68 {
		t.Fatalf("len = %d, want 68", len(data))
	}
	if !bytes.Equal(data[4+12:36], spender.Bytes()) {
		t.Errorf("spender = %x, want %x", data[4+12:36], spender.Bytes())
	}
	for i := 36; i < 68; i++ {
		if data[i] != 0xff {
			t.Fatalf("amount byte %d = %#x, want 0xff", i, data[i])
		}
	}
}

func TestEncodePath(t *testing.T) {
	tokenIn := common.HexToAddress("0xdddD73F5Df1F0DC31373357beAC77545dC5A6f3F")
	tokenOut := common.HexToAddress("0xEa237441c92CAe6FC17Caaf9a7acB3f953be4bd1")

	path := EncodePath(tokenIn, 3000, tokenOut)
	if len(path) != 43 {
		t.Fatalf("len = %d, want 43", len(path))
	}
	if !bytes.Equal(path[:20], tokenIn.Bytes()) {
		t.Errorf("tokenIn = %x", path[:20])
	}
	// 3000 = 0x000bb8
	if path[20] != 0x00 || path[21] != 0x0b || path[22] != 0xb8 {
		t.Errorf("fee bytes = %x, want 000bb8", path[20:23])
	}
	if !bytes.Equal(path[23:], tokenOut.Bytes()) {
		t.Errorf("tokenOut = %x", path[23:])
	}
}

func TestEncodeSwapAmountLayout(t *testing.T) {
	recipient := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	path := EncodePath(common.Address{0x0a}, 3000, common.Address{0x0b})

	data := EncodeSwapAmount(SwapAmountParams{
		Path:        path,
		Recipient:   recipient,
		Amount:      big.NewInt(1_000_000),
		MinAcquired: big.NewInt(0),
		Deadline:    big.NewInt(1_700_000_000),
	})

	// 4 selector + 1 offset word + 5 tuple head words + 1 length word
	// + 43-byte path padded to 64.
	if want := 4 + 32 + 5*32 + 32 + 64; len(data) != want {
		t.Fatalf("len = %d, want %d", len(data), want)
	}
	if !bytes.Equal(data[:4], SelectorSwapAmount) {
		t.Errorf("selector = %x, want %x", data[:4], SelectorSwapAmount)
	}

	word := func(i int) *big.Int {
		start := 4 + i*32
		return new(big.Int).SetBytes(data[start : start+32])
	}
	if word(0).Int64() != 32 {
		t.Errorf("tuple offset = %d, want 32", word(0).Int64())
	}
	if word(1).Int64() != 160 {
		t.Errorf("path offset = %d, want 160", word(1).Int64())
	}
	if got := common.BytesToAddress(data[4+64+12 : 4+96]); got != recipient {
		t.Errorf("recipient = %s, want %s", got.Hex(), recipient.Hex())
	}
	if word(3).Int64() != 1_000_000 {
		t.Errorf("amount = %d, want 1000000", word(3).Int64())
	}
	if word(5).Int64() != 1_700_000_000 {
		t.Errorf("deadline = %d, want 1700000000", word(5).Int64())
	}
	if word(6).Int64() != 43 {
		t.Errorf("path length = %d, want 43", word(6).Int64())
	}
	pathStart := 4 + 7*32
	if !bytes.Equal(data[pathStart:pathStart+43], path) {
		t.Error("path bytes not copied verbatim")
	}
	for i := pathStart + 43; i < len(data); i++ {
		if data[i] != 0 {
			t.Fatalf("path padding byte %d = %#x, want 0", i, data[i])
		}
	}
}

func TestEncodeExactInputSingle(t *testing.T) {
	recipient := common.Address{0x01}
	pool := common.Address{0x02}

	data := EncodeExactInputSingle(recipient, pool, false, big.NewInt(5000), big.NewInt(0))
	if len(data) != 4+5*32 {
		t.Fatalf("len = %d, want %d", len(data), 4+5*32)
	}
	// tokenAIn = false leaves the third word zero.
	for i := 4 + 2*32; i < 4+3*32; i++ {
		if data[i] != 0 {
			t.Fatalf("bool word byte %d = %#x, want 0", i, data[i])
		}
	}

	data = EncodeExactInputSingle(recipient, pool, true, big.NewInt(5000), big.NewInt(0))
	if data[4+3*32-1] != 1 {
		t.Error("tokenAIn = true not encoded as 1")
	}
	if got := new(big.Int).SetBytes(data[4+3*32 : 4+4*32]); got.Int64() != 5000 {
		t.Errorf("amountIn = %d, want 5000", got.Int64())
	}
}

func TestEncodeSwapNoSplitFromETHLayout(t *testing.T) {
	wrapped := common.Address{0x0a}
	stable := common.Address{0x0b}
	adapter := common.Address{0x0c}
	to := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

	data := EncodeSwapNoSplitFromETH(TradeParams{
		AmountIn:   big.NewInt(5_000),
		AmountOut:  big.NewInt(0),
		Path:       []common.Address{wrapped, stable},
		Adapters:   []common.Address{adapter},
		Recipients: []common.Address{adapter},
	}, big.NewInt(0), to)

	// 3 head words + 5 tuple head words + (1+2) path + (1+1) adapters
	// + (1+1) recipients.
	if want := 4 + 15*32; len(data) != want {
		t.Fatalf("len = %d, want %d", len(data), want)
	}
	if !bytes.Equal(data[:4], SelectorSwapNoSplitFromETH) {
		t.Errorf("selector = %x, want %x", data[:4], SelectorSwapNoSplitFromETH)
	}

	word := func(i int) *big.Int {
		start := 4 + i*32
		return new(big.Int).SetBytes(data[start : start+32])
	}
	addrAt := func(i int) common.Address {
		start := 4 + i*32
		return common.BytesToAddress(data[start+12 : start+32])
	}

	if word(0).Int64() != 96 {
		t.Errorf("tuple offset = %d, want 96", word(0).Int64())
	}
	if word(1).Sign() != 0 {
		t.Errorf("fee = %d, want 0", word(1).Int64())
	}
	if addrAt(2) != to {
		t.Errorf("to = %s, want %s", addrAt(2).Hex(), to.Hex())
	}
	if word(3).Int64() != 5_000 {
		t.Errorf("amountIn = %d, want 5000", word(3).Int64())
	}
	if word(5).Int64() != 160 || word(6).Int64() != 256 || word(7).Int64() != 320 {
		t.Errorf("array offsets = %d/%d/%d, want 160/256/320",
			word(5).Int64(), word(6).Int64(), word(7).Int64())
	}
	if word(8).Int64() != 2 || addrAt(9) != wrapped || addrAt(10) != stable {
		t.Error("path array not encoded as [wrapped, stable]")
	}
	if word(11).Int64() != 1 || addrAt(12) != adapter {
		t.Error("adapters array not encoded as [adapter]")
	}
	if word(13).Int64() != 1 || addrAt(14) != adapter {
		t.Error("recipients array not encoded as [adapter]")
	}
}

func TestDecodeUint256(t *testing.T) {
	word := make([]byte, 32)
	big.NewInt(42).FillBytes(word)

	got, err := DecodeUint256(word)
	if err != nil {
		t.Fatalf("DecodeUint256() error: %v", err)
	}
	if got.Int64() != 42 {
		t.Errorf("DecodeUint256() = %d, want 42", got.Int64())
	}

	if _, err := DecodeUint256([]byte{0x01}); err == nil {
		t.Error("DecodeUint256() on short data: expected error")
	}
}

func TestProducersTargetConfiguredContracts(t *testing.T) {
	set := Set{
		Staking:       common.Address{0x01},
		Wrapped:       common.Address{0x02},
		Stable:        common.Address{0x03},
		PathRouter:    common.Address{0x04},
		PoolRouter:    common.Address{0x05},
		Pool:          common.Address{0x06},
		PoolFee:       3000,
		AdapterRouter: common.Address{0x07},
		Adapter:       common.Address{0x08},
	}

	stake := set.Stake(1, big.NewInt(100))
	if stake.To != set.Staking || stake.Value.Int64() != 100 {
		t.Errorf("Stake() targets %s value %s", stake.To.Hex(), stake.Value)
	}

	wrap := set.Wrap(big.NewInt(7))
	if wrap.To != set.Wrapped || wrap.Value.Int64() != 7 {
		t.Errorf("Wrap() targets %s value %s", wrap.To.Hex(), wrap.Value)
	}
	if !bytes.Equal(wrap.Data, SelectorDeposit) {
		t.Errorf("Wrap() data = %x, want bare deposit selector", wrap.Data)
	}

	unwrap := set.Unwrap(big.NewInt(7))
	if unwrap.To != set.Wrapped || unwrap.Value != nil {
		t.Error("Unwrap() must target the wrapped token with zero value")
	}

	swap := set.SwapStableToWrapped(common.Address{0x0a}, big.NewInt(1))
	if swap.To != set.PathRouter {
		t.Errorf("SwapStableToWrapped() targets %s, want path router", swap.To.Hex())
	}
	// Deadline lives in the sixth argument word.
	deadline := new(big.Int).SetBytes(swap.Data[4+5*32 : 4+6*32]).Int64()
	now := time.Now().Unix()
	if deadline < now+500 || deadline > now+700 {
		t.Errorf("swap deadline = %d, want roughly now+600", deadline)
	}

	adapterSwap := set.SwapNativeViaAdapter(common.Address{0x0a}, big.NewInt(9))
	if adapterSwap.To != set.AdapterRouter || adapterSwap.Value.Int64() != 9 {
		t.Errorf("SwapNativeViaAdapter() targets %s value %s, want adapter router with value",
			adapterSwap.To.Hex(), adapterSwap.Value)
	}
	if !bytes.Equal(adapterSwap.Data[:4], SelectorSwapNoSplitFromETH) {
		t.Errorf("SwapNativeViaAdapter() selector = %x", adapterSwap.Data[:4])
	}
}

// callRecorder implements rpc.Client recording eth_call payloads.
type callRecorder struct {
	lastCall rpc.CallMsg
	ret      []byte
	retErr   error
}

var _ rpc.Client = (*callRecorder)(nil)

func (c *callRecorder) CallContract(ctx context.Context, msg rpc.CallMsg) ([]byte, error) {
	c.lastCall = msg
	return c.ret, c.retErr
}

func (c *callRecorder) URL() string { return "http://mock" }
func (c *callRecorder) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	return nil, nil
}
func (c *callRecorder) ChainID(ctx context.Context) (*big.Int, error)              { return big.NewInt(1), nil }
func (c *callRecorder) SendRawTransaction(ctx context.Context, txRLP []byte) error { return nil }
func (c *callRecorder) GetPendingNonce(ctx context.Context, address common.Address) (uint64, error) {
	return 0, nil
}
func (c *callRecorder) GetGasPrice(ctx context.Context) (*big.Int, error) { return big.NewInt(1), nil }
func (c *callRecorder) GetBaseFee(ctx context.Context) (*big.Int, error) {
	return nil, rpc.ErrNoBaseFee
}
func (c *callRecorder) EstimateGas(ctx context.Context, msg rpc.CallMsg) (uint64, error) {
	return 21000, nil
}
func (c *callRecorder) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (c *callRecorder) GetTransactionReceipt(ctx context.Context, txHash common.Hash) (*rpc.TransactionReceipt, error) {
	return nil, nil
}

func TestBalanceOfReadCall(t *testing.T) {
	word := make([]byte, 32)
	big.NewInt(123_456).FillBytes(word)
	client := &callRecorder{ret: word}

	token := common.HexToAddress("0xdddD73F5Df1F0DC31373357beAC77545dC5A6f3F")
	owner := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	got, err := BalanceOf(context.Background(), client, token, owner)
	if err != nil {
		t.Fatalf("BalanceOf() error: %v", err)
	}
	if got.Int64() != 123_456 {
		t.Errorf("BalanceOf() = %d, want 123456", got.Int64())
	}
	if client.lastCall.To == nil || *client.lastCall.To != token {
		t.Error("balanceOf call not addressed to the token")
	}
	if !bytes.Equal(client.lastCall.Data[:4], SelectorBalanceOf) {
		t.Errorf("call selector = %x, want balanceOf", client.lastCall.Data[:4])
	}
}

func TestAllowanceReadCall(t *testing.T) {
	word := make([]byte, 32)
	MaxUint256.FillBytes(word)
	client := &callRecorder{ret: word}

	token := common.Address{0x01}
	owner := common.Address{0x02}
	spender := common.Address{0x03}

	got, err := Allowance(context.Background(), client, token, owner, spender)
	if err != nil {
		t.Fatalf("Allowance() error: %v", err)
	}
	if got.Cmp(MaxUint256) != 0 {
		t.Errorf("Allowance() = %s, want max uint256", got)
	}
	if !bytes.Equal(client.lastCall.Data[:4], SelectorAllowance) {
		t.Errorf("call selector = %x, want allowance", client.lastCall.Data[:4])
	}
}
