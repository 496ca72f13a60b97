package actions

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gateway-fm/volumegen/internal/pipeline"
	"github.com/gateway-fm/volumegen/internal/rpc"
)

// swapDeadline is how long a path-addressed swap stays valid in the
// mempool before the router rejects it.
const swapDeadline = 10 * time.Minute

// Set binds the contract addresses every producer targets. One Set
// describes one chain deployment.
type Set struct {
	Staking    common.Address // validator staking contract
	Wrapped    common.Address // wrapped native token
	Stable     common.Address // stablecoin leg of the path-addressed pair
	PathRouter common.Address // router taking packed token/fee paths
	PoolRouter common.Address // router taking an explicit pool address
	Pool       common.Address // pool for PoolRouter swaps
	PoolFee    uint32         // fee tier baked into packed paths

	AdapterRouter common.Address // aggregator taking an explicit adapter list
	Adapter       common.Address // single adapter routed through
}

// Stake produces a stake(validatorID) call carrying amount as native
// value.
func (s Set) Stake(validatorID uint16, amount *big.Int) pipeline.Action {
	return pipeline.Action{
		Name:  "stake",
		To:    s.Staking,
		Value: amount,
		Data:  EncodeStake(validatorID),
	}
}

// Wrap produces a deposit() call on the wrapped native token.
func (s Set) Wrap(amount *big.Int) pipeline.Action {
	return pipeline.Action{
		Name:     "wrap",
		To:       s.Wrapped,
		Value:    amount,
		Data:     EncodeDeposit(),
		GasLimit: 100_000,
	}
}

// Unwrap produces a withdraw(amount) call on the wrapped native token.
func (s Set) Unwrap(amount *big.Int) pipeline.Action {
	return pipeline.Action{
		Name:     "unwrap",
		To:       s.Wrapped,
		Data:     EncodeWithdraw(amount),
		GasLimit: 100_000,
	}
}

// Approve produces an unlimited approve(spender) call on token.
func (s Set) Approve(token, spender common.Address) pipeline.Action {
	return pipeline.Action{
		Name:     "approve",
		To:       token,
		Data:     EncodeApprove(spender, MaxUint256),
		GasLimit: 100_000,
	}
}

// SwapStableToWrapped produces a path-addressed swap of amount stable
// tokens into the wrapped native token, output to recipient.
func (s Set) SwapStableToWrapped(recipient common.Address, amount *big.Int) pipeline.Action {
	return pipeline.Action{
		Name: "swap_stable",
		To:   s.PathRouter,
		Data: EncodeSwapAmount(SwapAmountParams{
			Path:        EncodePath(s.Stable, s.PoolFee, s.Wrapped),
			Recipient:   recipient,
			Amount:      amount,
			MinAcquired: big.NewInt(0),
			Deadline:    big.NewInt(time.Now().Add(swapDeadline).Unix()),
		}),
		GasLimit: 300_000,
	}
}

// SwapWrappedViaPool produces a pool-addressed swap of amountIn wrapped
// tokens through the configured pool, output to recipient. Any output
// is accepted.
func (s Set) SwapWrappedViaPool(recipient common.Address, amountIn *big.Int) pipeline.Action {
	return pipeline.Action{
		Name:     "swap_pool",
		To:       s.PoolRouter,
		Data:     EncodeExactInputSingle(recipient, s.Pool, false, amountIn, big.NewInt(0)),
		GasLimit: 300_000,
	}
}

// SwapNativeViaAdapter produces an adapter-routed swap of amount native
// tokens into the stable token, output to recipient. The amount travels
// as transaction value; any output is accepted.
func (s Set) SwapNativeViaAdapter(recipient common.Address, amount *big.Int) pipeline.Action {
	return pipeline.Action{
		Name:  "swap_adapter",
		To:    s.AdapterRouter,
		Value: amount,
		Data: EncodeSwapNoSplitFromETH(TradeParams{
			AmountIn:   amount,
			AmountOut:  big.NewInt(0),
			Path:       []common.Address{s.Wrapped, s.Stable},
			Adapters:   []common.Address{s.Adapter},
			Recipients: []common.Address{s.Adapter},
		}, big.NewInt(0), recipient),
		GasLimit: 1_200_000,
	}
}

// BalanceOf reads the ERC20 balance of owner on token.
func BalanceOf(ctx context.Context, client rpc.Client, token, owner common.Address) (*big.Int, error) {
	ret, err := client.CallContract(ctx, rpc.CallMsg{To: &token, Data: EncodeBalanceOf(owner)})
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s: %w", token.Hex(), err)
	}
	return DecodeUint256(ret)
}

// Allowance reads the ERC20 allowance granted by owner to spender on
// token.
func Allowance(ctx context.Context, client rpc.Client, token, owner, spender common.Address) (*big.Int, error) {
	ret, err := client.CallContract(ctx, rpc.CallMsg{To: &token, Data: EncodeAllowance(owner, spender)})
	if err != nil {
		return nil, fmt.Errorf("allowance %s: %w", token.Hex(), err)
	}
	return DecodeUint256(ret)
}
