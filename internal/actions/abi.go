// Package actions produces the calldata for every on-chain operation the
// schedulers drive: validator staking, native wrapping, ERC20 approvals
// and two router swap styles. Encoders are hand-rolled against the ABI
// layout; none of the call surfaces here justify pulling in a full ABI
// binding layer.
package actions

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Function selectors (first 4 bytes of keccak256(signature))
var (
	// Staking contract
	SelectorStake = selector("stake(uint16)")

	// Wrapped native token
	SelectorDeposit  = selector("deposit()")
	SelectorWithdraw = selector("withdraw(uint256)")

	// ERC20
	SelectorApprove   = selector("approve(address,uint256)")
	SelectorTransfer  = selector("transfer(address,uint256)")
	SelectorBalanceOf = selector("balanceOf(address)")
	SelectorAllowance = selector("allowance(address,address)")

	// Pool-addressed router: exactInputSingle(recipient, pool, tokenAIn, amountIn, amountOutMinimum)
	SelectorExactInputSingle = selector("exactInputSingle(address,address,bool,uint256,uint256)")

	// Path-addressed router: swapAmount((path, recipient, amount, minAcquired, deadline))
	SelectorSwapAmount = selector("swapAmount((bytes,address,uint128,uint256,uint256))")

	// Adapter-routed aggregator: swapNoSplitFromETH(trade, fee, to)
	SelectorSwapNoSplitFromETH = selector("swapNoSplitFromETH((uint256,uint256,address[],address[],address[]),uint256,address)")
)

// MaxUint256 is the unlimited-approval amount.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// selector computes the 4-byte function selector from signature.
func selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

// EncodeStake encodes stake(uint16). The stake amount itself travels as
// the transaction value.
func EncodeStake(validatorID uint16) []byte {
	data := make([]byte, 4+32)
	copy(data[:4], SelectorStake)
	big.NewInt(int64(validatorID)).FillBytes(data[4:36])
	return data
}

// EncodeDeposit encodes deposit() (no args, the wrapped amount is the
// transaction value).
func EncodeDeposit() []byte {
	return SelectorDeposit
}

// EncodeWithdraw encodes withdraw(uint256).
func EncodeWithdraw(amount *big.Int) []byte {
	data := make([]byte, 4+32)
	copy(data[:4], SelectorWithdraw)
	amount.FillBytes(data[4:36])
	return data
}

// EncodeApprove encodes approve(address,uint256).
func EncodeApprove(spender common.Address, amount *big.Int) []byte {
	data := make([]byte, 4+32+32)
	copy(data[:4], SelectorApprove)
	copy(data[4+12:36], spender.Bytes())
	amount.FillBytes(data[36:68])
	return data
}

// EncodeTransfer encodes transfer(address,uint256).
func EncodeTransfer(to common.Address, amount *big.Int) []byte {
	data := make([]byte, 4+32+32)
	copy(data[:4], SelectorTransfer)
	copy(data[4+12:36], to.Bytes())
	amount.FillBytes(data[36:68])
	return data
}

// EncodeBalanceOf encodes balanceOf(address).
func EncodeBalanceOf(owner common.Address) []byte {
	data := make([]byte, 4+32)
	copy(data[:4], SelectorBalanceOf)
	copy(data[4+12:36], owner.Bytes())
	return data
}

// EncodeAllowance encodes allowance(address,address).
func EncodeAllowance(owner, spender common.Address) []byte {
	data := make([]byte, 4+32+32)
	copy(data[:4], SelectorAllowance)
	copy(data[4+12:36], owner.Bytes())
	copy(data[36+12:68], spender.Bytes())
	return data
}

// EncodeExactInputSingle encodes the pool-addressed router call. All
// arguments are static types, so fields are encoded directly.
func EncodeExactInputSingle(recipient, pool common.Address, tokenAIn bool, amountIn, amountOutMinimum *big.Int) []byte {
	data := make([]byte, 4+5*32)
	copy(data[:4], SelectorExactInputSingle)

	offset := 4
	copy(data[offset+12:offset+32], recipient.Bytes())
	offset += 32
	copy(data[offset+12:offset+32], pool.Bytes())
	offset += 32
	if tokenAIn {
		data[offset+31] = 1
	}
	offset += 32
	amountIn.FillBytes(data[offset : offset+32])
	offset += 32
	if amountOutMinimum != nil {
		amountOutMinimum.FillBytes(data[offset : offset+32])
	}

	return data
}

// SwapAmountParams holds the arguments of the path-addressed swap.
type SwapAmountParams struct {
	Path        []byte // EncodePath output
	Recipient   common.Address
	Amount      *big.Int // uint128
	MinAcquired *big.Int
	Deadline    *big.Int // unix seconds
}

// EncodeSwapAmount encodes swapAmount((bytes,address,uint128,uint256,uint256)).
// The single tuple argument contains dynamic bytes, so the layout is:
// one offset word to the tuple, the five-word tuple head with an inner
// offset to the path, then the length-prefixed padded path.
func EncodeSwapAmount(params SwapAmountParams) []byte {
	pathPadded := (len(params.Path) + 31) / 32 * 32

	data := make([]byte, 4+32+5*32+32+pathPadded)
	copy(data[:4], SelectorSwapAmount)

	// Offset to the tuple, relative to the start of the arguments.
	big.NewInt(32).FillBytes(data[4:36])

	offset := 36
	// Inner offset to path, relative to the start of the tuple.
	big.NewInt(5 * 32).FillBytes(data[offset : offset+32])
	offset += 32
	copy(data[offset+12:offset+32], params.Recipient.Bytes())
	offset += 32
	params.Amount.FillBytes(data[offset : offset+32])
	offset += 32
	if params.MinAcquired != nil {
		params.MinAcquired.FillBytes(data[offset : offset+32])
	}
	offset += 32
	params.Deadline.FillBytes(data[offset : offset+32])
	offset += 32

	big.NewInt(int64(len(params.Path))).FillBytes(data[offset : offset+32])
	offset += 32
	copy(data[offset:], params.Path)

	return data
}

// TradeParams holds the trade tuple of the adapter-routed swap.
type TradeParams struct {
	AmountIn   *big.Int
	AmountOut  *big.Int // minimum acceptable output
	Path       []common.Address
	Adapters   []common.Address
	Recipients []common.Address
}

// EncodeSwapNoSplitFromETH encodes the adapter-routed aggregator call.
// The trade tuple is dynamic (three address arrays), so the argument
// head carries an offset to the tuple, and the tuple head carries inner
// offsets to each array.
func EncodeSwapNoSplitFromETH(trade TradeParams, fee *big.Int, to common.Address) []byte {
	arrays := [][]common.Address{trade.Path, trade.Adapters, trade.Recipients}

	tupleWords := 5
	for _, arr := range arrays {
		tupleWords += 1 + len(arr)
	}

	data := make([]byte, 4+(3+tupleWords)*32)
	copy(data[:4], SelectorSwapNoSplitFromETH)

	// Argument head: offset to the tuple, fee, to.
	big.NewInt(3 * 32).FillBytes(data[4:36])
	if fee != nil {
		fee.FillBytes(data[36:68])
	}
	copy(data[68+12:100], to.Bytes())

	offset := 100
	trade.AmountIn.FillBytes(data[offset : offset+32])
	offset += 32
	if trade.AmountOut != nil {
		trade.AmountOut.FillBytes(data[offset : offset+32])
	}
	offset += 32

	// Inner offsets, relative to the start of the tuple.
	inner := 5 * 32
	for _, arr := range arrays {
		big.NewInt(int64(inner)).FillBytes(data[offset : offset+32])
		offset += 32
		inner += (1 + len(arr)) * 32
	}

	for _, arr := range arrays {
		big.NewInt(int64(len(arr))).FillBytes(data[offset : offset+32])
		offset += 32
		for _, addr := range arr {
			copy(data[offset+12:offset+32], addr.Bytes())
			offset += 32
		}
	}

	return data
}

// EncodePath packs a single-hop swap path: tokenIn, the 3-byte pool fee,
// tokenOut.
func EncodePath(tokenIn common.Address, fee uint32, tokenOut common.Address) []byte {
	path := make([]byte, 20+3+20)
	copy(path[:20], tokenIn.Bytes())
	path[20] = byte(fee >> 16)
	path[21] = byte(fee >> 8)
	path[22] = byte(fee)
	copy(path[23:], tokenOut.Bytes())
	return path
}

// DecodeUint256 decodes a single uint256 return word from eth_call
// output.
func DecodeUint256(ret []byte) (*big.Int, error) {
	if len(ret) < 32 {
		return nil, fmt.Errorf("return data too short: %d bytes", len(ret))
	}
	return new(big.Int).SetBytes(ret[:32]), nil
}
