package keeper

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/pawdex/x/dex/types"
)

// Swap trades amountIn of tokenIn against the pool and pays the output to
// recipient (the trader when recipient is empty).
func (k Keeper) Swap(ctx context.Context, trader sdk.AccAddress, poolID uint64, tokenIn string, amountIn, minAmountOut math.Int, recipient sdk.AccAddress) (math.Int, error) {
	start := time.Now()
	defer func() {
		if k.metrics != nil {
			k.metrics.SwapLatency.Observe(time.Since(start).Seconds())
		}
	}()

	var amountOut math.Int
	err := atomically(ctx, func(ctx sdk.Context) (err error) {
		amountOut, err = k.swap(ctx, trader, poolID, tokenIn, amountIn, minAmountOut, recipient)
		return err
	})
	if err != nil {
		if k.metrics != nil {
			k.metrics.SwapsTotal.WithLabelValues(strconv.FormatUint(poolID, 10), tokenIn, "failed").Inc()
		}
		return math.ZeroInt(), err
	}
	if k.metrics != nil {
		k.metrics.SwapsTotal.WithLabelValues(strconv.FormatUint(poolID, 10), tokenIn, "success").Inc()
	}
	return amountOut, nil
}

func (k Keeper) swap(ctx context.Context, trader sdk.AccAddress, poolID uint64, tokenIn string, amountIn, minAmountOut math.Int, recipient sdk.AccAddress) (math.Int, error) {
	// 1. Input validation
	if trader.Empty() {
		return math.ZeroInt(), types.ErrInvalidAddress.Wrap("trader cannot be empty")
	}
	if recipient.Empty() {
		recipient = trader
	}
	if amountIn.IsNil() || !amountIn.IsPositive() {
		return math.ZeroInt(), types.ErrInvalidAmount.Wrap("swap amount must be positive")
	}
	if minAmountOut.IsNil() || minAmountOut.IsNegative() {
		return math.ZeroInt(), types.ErrInvalidAmount.Wrap("min amount out cannot be negative")
	}

	pool, err := k.getInitializedPool(ctx, poolID)
	if err != nil {
		return math.ZeroInt(), err
	}
	reserveIn, reserveOut, err := pool.Reserves(tokenIn)
	if err != nil {
		return math.ZeroInt(), err
	}
	tokenOut, _ := pool.OtherToken(tokenIn)

	params, err := k.GetParams(ctx)
	if err != nil {
		return math.ZeroInt(), fmt.Errorf("Swap: get params: %w", err)
	}

	// 2. Guards
	if err := k.CheckSameSlot(ctx, params, poolID, trader); err != nil {
		return math.ZeroInt(), err
	}
	if err := k.CheckDonation(ctx, params, pool); err != nil {
		return math.ZeroInt(), err
	}
	if err := k.CheckBreaker(ctx, params, poolID, types.BreakerVolume); err != nil {
		return math.ZeroInt(), err
	}
	if err := k.CheckBreaker(ctx, params, poolID, types.BreakerPrice); err != nil {
		return math.ZeroInt(), err
	}
	if err := k.ValidateTradeSize(params, amountIn, reserveIn); err != nil {
		return math.ZeroInt(), err
	}

	// 3. Constant product output
	amountOut, err := SwapOutput(amountIn, reserveIn, reserveOut, pool.FeeRateBps)
	if err != nil {
		return math.ZeroInt(), types.ErrInvalidAmount.Wrap(err.Error())
	}
	if !amountOut.IsPositive() {
		return math.ZeroInt(), types.ErrInvalidAmount.Wrap("swap amount too small after fees")
	}
	if amountOut.LT(minAmountOut) {
		return math.ZeroInt(), types.ErrSlippageExceeded.Wrapf("expected at least %s, got %s", minAmountOut, amountOut)
	}
	if amountOut.GTE(reserveOut) {
		return math.ZeroInt(), types.ErrInsufficientReserves.Wrapf("output %s would drain reserve %s", amountOut, reserveOut)
	}

	totalFee, protocolFee := FeeSplit(amountIn, pool.FeeRateBps, params.ProtocolFeeShareBps)

	// 4. Post-trade state, checked before anything is written
	oldK := pool.K()
	oldSpot, err := pool.SpotPrice()
	if err != nil {
		return math.ZeroInt(), err
	}
	if tokenIn == pool.TokenA {
		pool.ReserveA = pool.ReserveA.Add(amountIn).Sub(protocolFee)
		pool.ReserveB = pool.ReserveB.Sub(amountOut)
	} else {
		pool.ReserveB = pool.ReserveB.Add(amountIn).Sub(protocolFee)
		pool.ReserveA = pool.ReserveA.Sub(amountOut)
	}
	if err := k.ValidatePoolInvariant(pool, oldK); err != nil {
		return math.ZeroInt(), err
	}
	newSpot, err := pool.SpotPrice()
	if err != nil {
		return math.ZeroInt(), err
	}
	if err := k.CheckTWAPDeviation(ctx, params, poolID, newSpot); err != nil {
		return math.ZeroInt(), err
	}

	// 5. Transfers and state writes
	if err := k.sendToModule(ctx, trader, sdk.NewCoins(sdk.NewCoin(tokenIn, amountIn))); err != nil {
		return math.ZeroInt(), err
	}
	if err := k.sendFromModule(ctx, recipient, sdk.NewCoins(sdk.NewCoin(tokenOut, amountOut))); err != nil {
		return math.ZeroInt(), err
	}
	if err := k.accrueProtocolFee(ctx, tokenIn, protocolFee); err != nil {
		return math.ZeroInt(), fmt.Errorf("Swap: accrue protocol fee: %w", err)
	}
	if err := k.SetPool(ctx, &pool); err != nil {
		return math.ZeroInt(), err
	}
	if err := k.WriteObservation(ctx, poolID, newSpot); err != nil {
		return math.ZeroInt(), fmt.Errorf("Swap: write observation: %w", err)
	}

	// volume in token A units as a fraction of reserve A equals amountIn/reserveIn
	volume := math.LegacyNewDecFromInt(amountIn).QuoInt(reserveIn)
	if err := k.UpdateBreaker(ctx, params, poolID, types.BreakerVolume, volume); err != nil {
		return math.ZeroInt(), fmt.Errorf("Swap: update volume breaker: %w", err)
	}
	if err := k.UpdateBreaker(ctx, params, poolID, types.BreakerPrice, relativeChange(oldSpot, newSpot)); err != nil {
		return math.ZeroInt(), fmt.Errorf("Swap: update price breaker: %w", err)
	}

	k.markSameSlot(ctx, params, poolID, trader)

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeSwap,
			sdk.NewAttribute(types.AttributeKeyPoolID, strconv.FormatUint(poolID, 10)),
			sdk.NewAttribute(types.AttributeKeyTrader, trader.String()),
			sdk.NewAttribute(types.AttributeKeyRecipient, recipient.String()),
			sdk.NewAttribute(types.AttributeKeyTokenIn, tokenIn),
			sdk.NewAttribute(types.AttributeKeyTokenOut, tokenOut),
			sdk.NewAttribute(types.AttributeKeyAmountIn, amountIn.String()),
			sdk.NewAttribute(types.AttributeKeyAmountOut, amountOut.String()),
			sdk.NewAttribute(types.AttributeKeyProtocolFee, protocolFee.String()),
		),
	)

	if k.metrics != nil {
		poolLabel := strconv.FormatUint(poolID, 10)
		k.metrics.SwapVolume.WithLabelValues(poolLabel, tokenIn).Add(toFloat(amountIn))
		k.metrics.SwapFeesCollected.WithLabelValues(poolLabel, tokenIn, "lp").Add(toFloat(totalFee.Sub(protocolFee)))
		k.metrics.SwapFeesCollected.WithLabelValues(poolLabel, tokenIn, "protocol").Add(toFloat(protocolFee))
	}

	return amountOut, nil
}

// Quote returns the output of a swap at current reserves without executing
// it or consulting any guard.
func (k Keeper) Quote(ctx context.Context, poolID uint64, tokenIn string, amountIn math.Int) (math.Int, error) {
	if amountIn.IsNil() || !amountIn.IsPositive() {
		return math.ZeroInt(), types.ErrInvalidAmount.Wrap("amount must be positive")
	}
	pool, err := k.getInitializedPool(ctx, poolID)
	if err != nil {
		return math.ZeroInt(), err
	}
	reserveIn, reserveOut, err := pool.Reserves(tokenIn)
	if err != nil {
		return math.ZeroInt(), err
	}
	amountOut, err := SwapOutput(amountIn, reserveIn, reserveOut, pool.FeeRateBps)
	if err != nil {
		return math.ZeroInt(), types.ErrInvalidAmount.Wrap(err.Error())
	}
	return amountOut, nil
}

// GetSpotPrice returns reserveB/reserveA for an initialized pool.
func (k Keeper) GetSpotPrice(ctx context.Context, poolID uint64) (math.LegacyDec, error) {
	pool, err := k.GetPool(ctx, poolID)
	if err != nil {
		return math.LegacyZeroDec(), err
	}
	return pool.SpotPrice()
}
