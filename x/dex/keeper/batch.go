package keeper

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	"github.com/cosmos/cosmos-sdk/telemetry"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/hashicorp/go-metrics"

	"github.com/paw-chain/pawdex/x/dex/types"
)

// SetBatchExecutor adds or removes an address from the batch executor
// allow-list. Authority only.
func (k Keeper) SetBatchExecutor(ctx context.Context, authority string, executor sdk.AccAddress, enabled bool) error {
	if err := ValidateAuthority(k.authority, authority); err != nil {
		return err
	}
	if executor.Empty() {
		return types.ErrInvalidAddress.Wrap("executor cannot be empty")
	}

	store := k.getStore(ctx)
	if enabled {
		store.Set(BatchExecutorKey(executor), []byte{0x01})
	} else {
		store.Delete(BatchExecutorKey(executor))
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeSetExecutor,
			sdk.NewAttribute(types.AttributeKeyExecutor, executor.String()),
			sdk.NewAttribute(types.AttributeKeyEnabled, strconv.FormatBool(enabled)),
		),
	)
	return nil
}

// IsBatchExecutor reports whether executor may submit batches.
func (k Keeper) IsBatchExecutor(ctx context.Context, executor sdk.AccAddress) bool {
	if executor.Empty() {
		return false
	}
	return k.getStore(ctx).Has(BatchExecutorKey(executor))
}

// GetBatchExecutors returns the allow-list as bech32 addresses.
func (k Keeper) GetBatchExecutors(ctx context.Context) []string {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), BatchExecutorKeyPrefix)
	defer iterator.Close()

	var executors []string
	for ; iterator.Valid(); iterator.Next() {
		executors = append(executors, sdk.AccAddress(iterator.Key()[len(BatchExecutorKeyPrefix):]).String())
	}
	return executors
}

// batchLeg is a validated order with its resolved side and tokens.
type batchLeg struct {
	order    types.BatchOrder
	trader   sdk.AccAddress
	side     types.OrderSide
	tokenOut string
}

// payout is the output owed to the trader of legs[leg].
type payout struct {
	leg  int
	coin sdk.Coin
}

// payoutFunc transfers all payouts or none of them. When a transfer fails it
// returns the leg it belongs to, or -1 when the failure is not tied to a leg.
// A nil payoutFunc settles on paper only.
type payoutFunc func(payouts []payout) (failedLeg int, err error)

// prepareBatch validates the orders against the pool.
func prepareBatch(params types.Params, pool types.Pool, orders []types.BatchOrder) ([]batchLeg, error) {
	if len(orders) == 0 {
		return nil, types.ErrInvalidOrder.Wrap("batch cannot be empty")
	}
	if uint32(len(orders)) > params.MaxBatchOrders {
		return nil, types.ErrBatchTooLarge.Wrapf("%d orders exceeds maximum %d", len(orders), params.MaxBatchOrders)
	}

	legs := make([]batchLeg, len(orders))
	for i, o := range orders {
		if err := o.ValidateBasic(); err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		tokenOut, err := pool.OtherToken(o.TokenIn)
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		trader, _ := sdk.AccAddressFromBech32(o.Trader)
		side := types.SideSell
		if o.TokenIn == pool.TokenB {
			side = types.SideBuy
		}
		legs[i] = batchLeg{order: o, trader: trader, side: side, tokenOut: tokenOut}
	}
	return legs, nil
}

// fill is one order settled at the clearing price.
type fill struct {
	leg         int
	amountOut   math.Int
	protocolFee math.Int
	lpFee       math.Int
}

// settlementPlan is the outcome of clearing a set of legs on paper.
type settlementPlan struct {
	price    math.LegacyDec
	pool     types.Pool
	fills    []fill
	statuses map[int]types.OrderStatus

	// dropLeg is a participating leg that cannot settle at price, or -1.
	dropLeg    int
	dropStatus types.OrderStatus
}

// planSettlement clears the active legs against pool and walks them in
// settlement order without moving tokens. It stops at the first
// participating leg that cannot settle at the clearing price.
func planSettlement(pool types.Pool, params types.Params, legs []batchLeg, active []bool) (settlementPlan, error) {
	positions := make([]int, 0, len(legs))
	corders := make([]ClearingOrder, 0, len(legs))
	for i, leg := range legs {
		if !active[i] {
			continue
		}
		positions = append(positions, i)
		corders = append(corders, ClearingOrder{
			Side:     leg.side,
			AmountIn: leg.order.AmountIn,
			MinOut:   leg.order.MinAmountOut,
			Priority: leg.order.Priority,
			Trader:   leg.trader,
		})
	}

	outcome, err := ComputeClearing(pool.ReserveA, pool.ReserveB, pool.FeeRateBps, corders)
	if err != nil {
		return settlementPlan{}, err
	}
	plan := settlementPlan{
		price:    outcome.Price,
		pool:     pool,
		statuses: make(map[int]types.OrderStatus, len(positions)),
		dropLeg:  -1,
	}

	for _, cpos := range outcome.Sequence {
		i := positions[cpos]
		leg := legs[i]

		if !outcome.Participating[cpos] {
			plan.statuses[i] = types.OrderRefundOutsideLimit
			if outcome.Insufficient[cpos] {
				plan.statuses[i] = types.OrderRefundInsufficient
			}
			continue
		}

		var amountOut, reserveOut math.Int
		if leg.side == types.SideSell {
			amountOut, err = MulPriceFloor(leg.order.AmountIn, pool.FeeRateBps, plan.price)
			reserveOut = plan.pool.ReserveB
		} else {
			amountOut, err = QuoPriceFloor(leg.order.AmountIn, pool.FeeRateBps, plan.price)
			reserveOut = plan.pool.ReserveA
		}
		if err != nil {
			return settlementPlan{}, types.ErrOverflow.Wrapf("order %d: %v", i, err)
		}

		switch {
		case amountOut.IsZero():
			plan.dropStatus = types.OrderRefundZeroOutput
		case amountOut.LT(leg.order.MinAmountOut):
			plan.dropStatus = types.OrderRefundBelowMinimum
		case amountOut.GTE(reserveOut):
			plan.dropStatus = types.OrderRefundInsufficient
		}
		if plan.dropStatus != "" {
			plan.dropLeg = i
			return plan, nil
		}

		totalFee, protocolFee := FeeSplit(leg.order.AmountIn, pool.FeeRateBps, params.ProtocolFeeShareBps)
		if leg.side == types.SideSell {
			plan.pool.ReserveA = plan.pool.ReserveA.Add(leg.order.AmountIn).Sub(protocolFee)
			plan.pool.ReserveB = plan.pool.ReserveB.Sub(amountOut)
		} else {
			plan.pool.ReserveB = plan.pool.ReserveB.Add(leg.order.AmountIn).Sub(protocolFee)
			plan.pool.ReserveA = plan.pool.ReserveA.Sub(amountOut)
		}
		plan.fills = append(plan.fills, fill{
			leg:         i,
			amountOut:   amountOut,
			protocolFee: protocolFee,
			lpFee:       totalFee.Sub(protocolFee),
		})
	}
	return plan, nil
}

// settleBatch clears the escrowed legs against pool and settles them at one
// price. A participating leg that cannot settle, on paper or when its payout
// fails, is refunded and the remaining legs are cleared again without it, so
// the price always matches the orders that actually trade. Refund transfers
// are left to the caller.
func settleBatch(pool *types.Pool, params types.Params, legs []batchLeg, escrowed []bool, result *types.BatchResult, pay payoutFunc) error {
	active := slices.Clone(escrowed)

	for {
		plan, err := planSettlement(*pool, params, legs, active)
		if err != nil {
			return err
		}
		if plan.dropLeg >= 0 {
			active[plan.dropLeg] = false
			result.Orders[plan.dropLeg].Status = plan.dropStatus
			continue
		}

		if pay != nil && len(plan.fills) > 0 {
			payouts := make([]payout, len(plan.fills))
			for j, f := range plan.fills {
				payouts[j] = payout{leg: f.leg, coin: sdk.NewCoin(legs[f.leg].tokenOut, f.amountOut)}
			}
			failed, err := pay(payouts)
			if err != nil {
				if failed < 0 || !active[failed] {
					return err
				}
				active[failed] = false
				result.Orders[failed].Status = types.OrderRefundTransferError
				continue
			}
		}

		*pool = plan.pool
		result.ClearingPrice = plan.price
		for i, status := range plan.statuses {
			result.Orders[i].Status = status
		}
		for _, f := range plan.fills {
			leg := legs[f.leg]
			if leg.side == types.SideSell {
				result.AmountInA = result.AmountInA.Add(leg.order.AmountIn)
				result.AmountOutB = result.AmountOutB.Add(f.amountOut)
				result.ProtocolFeeA = result.ProtocolFeeA.Add(f.protocolFee)
				result.LPFeeA = result.LPFeeA.Add(f.lpFee)
			} else {
				result.AmountInB = result.AmountInB.Add(leg.order.AmountIn)
				result.AmountOutA = result.AmountOutA.Add(f.amountOut)
				result.ProtocolFeeB = result.ProtocolFeeB.Add(f.protocolFee)
				result.LPFeeB = result.LPFeeB.Add(f.lpFee)
			}
			result.Orders[f.leg].Status = types.OrderFilled
			result.Orders[f.leg].AmountIn = leg.order.AmountIn
			result.Orders[f.leg].AmountOut = f.amountOut
		}
		return nil
	}
}

// newBatchResult seeds one zero result per order.
func newBatchResult(poolID uint64, legs []batchLeg) types.BatchResult {
	result := types.NewBatchResult(poolID, len(legs))
	for i, leg := range legs {
		result.Orders[i] = types.OrderResult{
			Index:     i,
			Trader:    leg.order.Trader,
			Side:      leg.side,
			AmountIn:  math.ZeroInt(),
			AmountOut: math.ZeroInt(),
		}
	}
	return result
}

// ExecuteBatchSwap escrows, clears and settles a batch of orders at one
// uniform price. Orders that cannot trade are refunded and reported in the
// result; only guard failures and invariant violations abort the batch.
func (k Keeper) ExecuteBatchSwap(ctx context.Context, executor sdk.AccAddress, poolID uint64, orders []types.BatchOrder) (types.BatchResult, error) {
	start := time.Now()
	defer func() {
		telemetry.MeasureSince(start, types.ModuleName, "batch_clearing")
		if k.metrics != nil {
			k.metrics.BatchClearingLatency.Observe(time.Since(start).Seconds())
		}
	}()

	var result types.BatchResult
	err := atomically(ctx, func(ctx sdk.Context) (err error) {
		result, err = k.executeBatchSwap(ctx, executor, poolID, orders)
		return err
	})

	status := "success"
	if err != nil {
		status = "failed"
	}
	if k.metrics != nil {
		k.metrics.BatchesTotal.WithLabelValues(strconv.FormatUint(poolID, 10), status).Inc()
	}
	if err != nil {
		return types.BatchResult{}, err
	}
	return result, nil
}

func (k Keeper) executeBatchSwap(ctx context.Context, executor sdk.AccAddress, poolID uint64, orders []types.BatchOrder) (types.BatchResult, error) {
	// 1. Authorization and validation
	if !k.IsBatchExecutor(ctx, executor) {
		return types.BatchResult{}, types.ErrUnauthorized.Wrapf("%s is not a batch executor", executor)
	}
	pool, err := k.getInitializedPool(ctx, poolID)
	if err != nil {
		return types.BatchResult{}, err
	}
	params, err := k.GetParams(ctx)
	if err != nil {
		return types.BatchResult{}, fmt.Errorf("ExecuteBatchSwap: get params: %w", err)
	}
	legs, err := prepareBatch(params, pool, orders)
	if err != nil {
		return types.BatchResult{}, err
	}

	// 2. Batch-wide guards
	if err := k.CheckDonation(ctx, params, pool); err != nil {
		return types.BatchResult{}, err
	}
	if err := k.CheckBreaker(ctx, params, poolID, types.BreakerVolume); err != nil {
		return types.BatchResult{}, err
	}
	if err := k.CheckBreaker(ctx, params, poolID, types.BreakerPrice); err != nil {
		return types.BatchResult{}, err
	}

	// 3. Escrow, one order at a time
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	result := newBatchResult(poolID, legs)
	escrowed := make([]bool, len(legs))
	for i, leg := range legs {
		err := atomically(ctx, func(ctx sdk.Context) error {
			return k.sendToModule(ctx, leg.trader, sdk.NewCoins(sdk.NewCoin(leg.order.TokenIn, leg.order.AmountIn)))
		})
		if err != nil {
			k.Logger(ctx).Debug("batch order escrow failed", "pool_id", poolID, "index", i, "trader", leg.order.Trader, "error", err)
			result.Orders[i].Status = types.OrderRefundEscrowFailed
			continue
		}
		escrowed[i] = true
	}

	// 4. Clear and settle
	oldK := pool.K()
	oldReserveA, oldReserveB := pool.ReserveA, pool.ReserveB
	oldSpot, err := pool.SpotPrice()
	if err != nil {
		return types.BatchResult{}, err
	}
	pay := func(payouts []payout) (int, error) {
		failed := -1
		err := atomically(ctx, func(ctx sdk.Context) error {
			for _, p := range payouts {
				if err := k.sendFromModule(ctx, legs[p.leg].trader, sdk.NewCoins(p.coin)); err != nil {
					failed = p.leg
					return err
				}
			}
			return nil
		})
		if err != nil {
			k.Logger(ctx).Debug("batch payout failed", "pool_id", poolID, "index", failed, "error", err)
		}
		return failed, err
	}
	if err := settleBatch(&pool, params, legs, escrowed, &result, pay); err != nil {
		return types.BatchResult{}, err
	}
	for i, leg := range legs {
		if !escrowed[i] || result.Orders[i].Filled() {
			continue
		}
		if err := k.sendFromModule(ctx, leg.trader, sdk.NewCoins(sdk.NewCoin(leg.order.TokenIn, leg.order.AmountIn))); err != nil {
			return types.BatchResult{}, fmt.Errorf("refund order %d: %w", i, err)
		}
	}
	if err := k.ValidatePoolInvariant(pool, oldK); err != nil {
		return types.BatchResult{}, err
	}

	// 5. Persist
	if err := k.accrueProtocolFee(ctx, pool.TokenA, result.ProtocolFeeA); err != nil {
		return types.BatchResult{}, fmt.Errorf("ExecuteBatchSwap: accrue protocol fee: %w", err)
	}
	if err := k.accrueProtocolFee(ctx, pool.TokenB, result.ProtocolFeeB); err != nil {
		return types.BatchResult{}, fmt.Errorf("ExecuteBatchSwap: accrue protocol fee: %w", err)
	}
	if err := k.SetPool(ctx, &pool); err != nil {
		return types.BatchResult{}, err
	}
	newSpot, err := pool.SpotPrice()
	if err != nil {
		return types.BatchResult{}, err
	}
	if err := k.WriteObservation(ctx, poolID, newSpot); err != nil {
		return types.BatchResult{}, fmt.Errorf("ExecuteBatchSwap: write observation: %w", err)
	}

	volume := math.LegacyNewDecFromInt(result.AmountInA).QuoInt(oldReserveA).
		Add(math.LegacyNewDecFromInt(result.AmountInB).QuoInt(oldReserveB))
	if err := k.UpdateBreaker(ctx, params, poolID, types.BreakerVolume, volume); err != nil {
		return types.BatchResult{}, fmt.Errorf("ExecuteBatchSwap: update volume breaker: %w", err)
	}
	if err := k.UpdateBreaker(ctx, params, poolID, types.BreakerPrice, relativeChange(oldSpot, newSpot)); err != nil {
		return types.BatchResult{}, fmt.Errorf("ExecuteBatchSwap: update price breaker: %w", err)
	}

	// 6. Events and metrics
	poolLabel := strconv.FormatUint(poolID, 10)
	filled := result.FilledCount()
	refunded := len(result.Orders) - filled
	for _, o := range result.Orders {
		if o.Filled() {
			continue
		}
		sdkCtx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeOrderRefunded,
				sdk.NewAttribute(types.AttributeKeyPoolID, poolLabel),
				sdk.NewAttribute(types.AttributeKeyTrader, o.Trader),
				sdk.NewAttribute(types.AttributeKeyReason, string(o.Status)),
			),
		)
	}
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeBatchSwap,
			sdk.NewAttribute(types.AttributeKeyPoolID, poolLabel),
			sdk.NewAttribute(types.AttributeKeyExecutor, executor.String()),
			sdk.NewAttribute(types.AttributeKeyClearingPrice, result.ClearingPrice.String()),
			sdk.NewAttribute(types.AttributeKeyFilledOrders, strconv.Itoa(filled)),
			sdk.NewAttribute(types.AttributeKeyRefundedOrders, strconv.Itoa(refunded)),
		),
	)

	telemetry.IncrCounterWithLabels(
		[]string{types.ModuleName, "batch_orders"},
		float32(len(orders)),
		[]metrics.Label{telemetry.NewLabel("pool_id", poolLabel)},
	)
	if k.metrics != nil {
		k.metrics.BatchOrders.WithLabelValues(poolLabel, "filled").Add(float64(filled))
		k.metrics.BatchOrders.WithLabelValues(poolLabel, "refunded").Add(float64(refunded))
		if f, err := result.ClearingPrice.Float64(); err == nil {
			k.metrics.BatchClearingPrice.WithLabelValues(poolLabel).Set(f)
		}
	}

	k.Logger(ctx).Info("batch cleared",
		"pool_id", poolID,
		"clearing_price", result.ClearingPrice.String(),
		"filled", filled,
		"refunded", refunded,
	)

	return result, nil
}

// SimulateBatch previews the clearing of a batch at current reserves
// assuming every escrow succeeds. Nothing is written.
func (k Keeper) SimulateBatch(ctx context.Context, poolID uint64, orders []types.BatchOrder) (types.BatchResult, error) {
	pool, err := k.getInitializedPool(ctx, poolID)
	if err != nil {
		return types.BatchResult{}, err
	}
	params, err := k.GetParams(ctx)
	if err != nil {
		return types.BatchResult{}, fmt.Errorf("SimulateBatch: get params: %w", err)
	}
	legs, err := prepareBatch(params, pool, orders)
	if err != nil {
		return types.BatchResult{}, err
	}

	escrowed := make([]bool, len(legs))
	for i := range escrowed {
		escrowed[i] = true
	}
	result := newBatchResult(poolID, legs)
	if err := settleBatch(&pool, params, legs, escrowed, &result, nil); err != nil {
		return types.BatchResult{}, err
	}
	return result, nil
}
