package types

import (
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// OrderSide tells which reserve an order trades into.
type OrderSide uint8

const (
	// SideSell pays token A and receives token B.
	SideSell OrderSide = iota
	// SideBuy pays token B and receives token A.
	SideBuy
)

func (s OrderSide) String() string {
	if s == SideSell {
		return "sell"
	}
	return "buy"
}

// OrderStatus is the settlement outcome of a single batch order.
type OrderStatus string

const (
	OrderFilled OrderStatus = "filled"
	// Refund reasons. The order's input was returned (or never taken).
	OrderRefundEscrowFailed  OrderStatus = "refund_escrow_failed"
	OrderRefundOutsideLimit  OrderStatus = "refund_outside_limit"
	OrderRefundBelowMinimum  OrderStatus = "refund_below_minimum"
	OrderRefundZeroOutput    OrderStatus = "refund_zero_output"
	OrderRefundInsufficient  OrderStatus = "refund_insufficient_reserve"
	OrderRefundTransferError OrderStatus = "refund_transfer_failed"
)

// BatchOrder is one order submitted to a batch. Orders only live for the
// duration of the batch call.
type BatchOrder struct {
	Trader       string   `json:"trader" yaml:"trader"`
	TokenIn      string   `json:"token_in" yaml:"token_in"`
	AmountIn     math.Int `json:"amount_in" yaml:"amount_in"`
	MinAmountOut math.Int `json:"min_amount_out" yaml:"min_amount_out"`
	Priority     bool     `json:"priority" yaml:"priority"`
}

// ValidateBasic performs stateless validation of an order.
func (o BatchOrder) ValidateBasic() error {
	if _, err := sdk.AccAddressFromBech32(o.Trader); err != nil {
		return ErrInvalidAddress.Wrapf("trader: %v", err)
	}
	if o.TokenIn == "" {
		return ErrInvalidOrder.Wrap("token in cannot be empty")
	}
	if o.AmountIn.IsNil() || !o.AmountIn.IsPositive() {
		return ErrInvalidOrder.Wrap("amount in must be positive")
	}
	if o.MinAmountOut.IsNil() || o.MinAmountOut.IsNegative() {
		return ErrInvalidOrder.Wrap("min amount out cannot be negative")
	}
	return nil
}

// OrderResult reports the outcome of one submitted order, in submission order.
type OrderResult struct {
	Index     int         `json:"index" yaml:"index"`
	Trader    string      `json:"trader" yaml:"trader"`
	Side      OrderSide   `json:"side" yaml:"side"`
	AmountIn  math.Int    `json:"amount_in" yaml:"amount_in"`
	AmountOut math.Int    `json:"amount_out" yaml:"amount_out"`
	Status    OrderStatus `json:"status" yaml:"status"`
}

// Filled reports whether the order settled.
func (r OrderResult) Filled() bool {
	return r.Status == OrderFilled
}

// BatchResult summarizes a cleared batch.
type BatchResult struct {
	PoolId        uint64         `json:"pool_id" yaml:"pool_id"`
	ClearingPrice math.LegacyDec `json:"clearing_price" yaml:"clearing_price"`

	// Aggregates over filled orders, by token.
	AmountInA    math.Int `json:"amount_in_a" yaml:"amount_in_a"`
	AmountInB    math.Int `json:"amount_in_b" yaml:"amount_in_b"`
	AmountOutA   math.Int `json:"amount_out_a" yaml:"amount_out_a"`
	AmountOutB   math.Int `json:"amount_out_b" yaml:"amount_out_b"`
	ProtocolFeeA math.Int `json:"protocol_fee_a" yaml:"protocol_fee_a"`
	ProtocolFeeB math.Int `json:"protocol_fee_b" yaml:"protocol_fee_b"`
	LPFeeA       math.Int `json:"lp_fee_a" yaml:"lp_fee_a"`
	LPFeeB       math.Int `json:"lp_fee_b" yaml:"lp_fee_b"`

	Orders []OrderResult `json:"orders" yaml:"orders"`
}

// NewBatchResult returns an empty result for a pool.
func NewBatchResult(poolID uint64, n int) BatchResult {
	return BatchResult{
		PoolId:        poolID,
		ClearingPrice: math.LegacyZeroDec(),
		AmountInA:     math.ZeroInt(),
		AmountInB:     math.ZeroInt(),
		AmountOutA:    math.ZeroInt(),
		AmountOutB:    math.ZeroInt(),
		ProtocolFeeA:  math.ZeroInt(),
		ProtocolFeeB:  math.ZeroInt(),
		LPFeeA:        math.ZeroInt(),
		LPFeeB:        math.ZeroInt(),
		Orders:        make([]OrderResult, n),
	}
}

// FilledCount returns the number of settled orders.
func (r BatchResult) FilledCount() int {
	n := 0
	for _, o := range r.Orders {
		if o.Filled() {
			n++
		}
	}
	return n
}
