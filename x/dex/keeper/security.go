package keeper

import (
	"context"
	"strconv"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/pawdex/x/dex/types"
)

// ValidateTradeSize caps a swap input at MaxTradeSizeBps of the input reserve.
func (k Keeper) ValidateTradeSize(params types.Params, amountIn, reserveIn math.Int) error {
	maxIn := reserveIn.MulRaw(int64(params.MaxTradeSizeBps)).QuoRaw(types.BpsDenominator)
	if amountIn.GT(maxIn) {
		if k.metrics != nil {
			k.metrics.GuardRejections.WithLabelValues("trade_size").Inc()
		}
		return types.ErrTradeTooLarge.Wrapf("amount %s exceeds %d bps of reserve %s (max %s)", amountIn, params.MaxTradeSizeBps, reserveIn, maxIn)
	}
	return nil
}

// CheckTWAPDeviation rejects a resulting spot price that is more than
// MaxTWAPDeviationBps away from the pool's TWAP. Pools without enough oracle
// history pass.
func (k Keeper) CheckTWAPDeviation(ctx context.Context, params types.Params, poolID uint64, spot math.LegacyDec) error {
	if !params.EnableTWAPGuard {
		return nil
	}
	window, ok, err := k.CanConsult(ctx, poolID, params.TWAPPeriodSeconds)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	twap := window.Price()
	if !twap.IsPositive() {
		return nil
	}
	deviation := spot.Sub(twap).Abs().Quo(twap)
	if deviation.GT(bpsDec(params.MaxTWAPDeviationBps)) {
		if k.metrics != nil {
			k.metrics.GuardRejections.WithLabelValues("twap_deviation").Inc()
		}
		sdkCtx := sdk.UnwrapSDKContext(ctx)
		sdkCtx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeTWAPDeviation,
				sdk.NewAttribute(types.AttributeKeyPoolID, strconv.FormatUint(poolID, 10)),
				sdk.NewAttribute(types.AttributeKeySpotPrice, spot.String()),
				sdk.NewAttribute(types.AttributeKeyTWAP, twap.String()),
			),
		)
		return types.ErrTWAPDeviation.Wrapf("spot %s deviates %s from twap %s (max %d bps)", spot, deviation, twap, params.MaxTWAPDeviationBps)
	}
	return nil
}

// ValidatePoolInvariant ensures reserveA*reserveB did not decrease.
func (k Keeper) ValidatePoolInvariant(pool types.Pool, oldK math.Int) error {
	newK := pool.K()
	if newK.LT(oldK) {
		return types.ErrInvariantViolation.Wrapf("pool %d: k decreased from %s to %s", pool.Id, oldK, newK)
	}
	return nil
}

// relativeChange returns |next-prev|/prev, zero when prev is not positive.
func relativeChange(prev, next math.LegacyDec) math.LegacyDec {
	if !prev.IsPositive() {
		return math.LegacyZeroDec()
	}
	return next.Sub(prev).Abs().Quo(prev)
}
