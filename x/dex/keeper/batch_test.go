package keeper_test

import (
	"testing"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	keepertest "github.com/paw-chain/pawdex/testutil/keeper"
	"github.com/paw-chain/pawdex/x/dex/simulation"
	"github.com/paw-chain/pawdex/x/dex/types"
)

func registerExecutor(t *testing.T, env *simulation.Env) sdk.AccAddress {
	executor := keepertest.TestAddr("executor")
	require.NoError(t, env.Keeper.SetBatchExecutor(env.Ctx, env.Authority.String(), executor, true))
	return executor
}

func order(trader sdk.AccAddress, tokenIn string, amountIn, minOut math.Int) types.BatchOrder {
	return types.BatchOrder{
		Trader:       trader.String(),
		TokenIn:      tokenIn,
		AmountIn:     amountIn,
		MinAmountOut: minOut,
	}
}

func TestBatchExecutors(t *testing.T) {
	env := keepertest.DexEnv(t)
	k := env.Keeper
	executor := keepertest.TestAddr("executor")

	err := k.SetBatchExecutor(env.Ctx, executor.String(), executor, true)
	require.ErrorIs(t, err, types.ErrUnauthorized)
	require.False(t, k.IsBatchExecutor(env.Ctx, executor))

	require.NoError(t, k.SetBatchExecutor(env.Ctx, env.Authority.String(), executor, true))
	require.True(t, k.IsBatchExecutor(env.Ctx, executor))
	require.Equal(t, []string{executor.String()}, k.GetBatchExecutors(env.Ctx))

	require.NoError(t, k.SetBatchExecutor(env.Ctx, env.Authority.String(), executor, false))
	require.False(t, k.IsBatchExecutor(env.Ctx, executor))
	require.Empty(t, k.GetBatchExecutors(env.Ctx))
}

func TestExecuteBatchSwap_Unauthorized(t *testing.T) {
	env, poolID := setupPool(t)
	trader := fundedTrader(t, env, "trader")

	_, err := env.Keeper.ExecuteBatchSwap(env.Ctx, trader, poolID, []types.BatchOrder{
		order(trader, denomA, e18(1), math.ZeroInt()),
	})
	require.ErrorIs(t, err, types.ErrUnauthorized)
	requireIntEqual(t, e18(1000), balance(env, trader, denomA))
}

func TestExecuteBatchSwap_MatchedOrders(t *testing.T) {
	env, poolID := setupPool(t)
	k := env.Keeper
	executor := registerExecutor(t, env)
	seller := fundedTrader(t, env, "seller")
	buyer := fundedTrader(t, env, "buyer")

	minBuy, _ := math.NewIntFromString("833333333333333333")
	result, err := k.ExecuteBatchSwap(env.Ctx, executor, poolID, []types.BatchOrder{
		order(seller, denomA, e18(1), math.NewIntWithDecimal(9, 17)),
		order(buyer, denomB, e18(1), minBuy),
	})
	require.NoError(t, err)
	require.True(t, result.ClearingPrice.Equal(math.LegacyOneDec()), result.ClearingPrice.String())
	require.Equal(t, 2, result.FilledCount())

	filled := math.NewIntWithDecimal(997, 15)
	require.Equal(t, types.SideSell, result.Orders[0].Side)
	require.Equal(t, types.SideBuy, result.Orders[1].Side)
	requireIntEqual(t, filled, result.Orders[0].AmountOut)
	requireIntEqual(t, filled, result.Orders[1].AmountOut)

	requireIntEqual(t, e18(999), balance(env, seller, denomA))
	requireIntEqual(t, e18(1000).Add(filled), balance(env, seller, denomB))
	requireIntEqual(t, e18(1000).Add(filled), balance(env, buyer, denomA))
	requireIntEqual(t, e18(999), balance(env, buyer, denomB))

	protocolFee := math.NewIntWithDecimal(3, 14)
	requireIntEqual(t, protocolFee, result.ProtocolFeeA)
	requireIntEqual(t, protocolFee, result.ProtocolFeeB)
	requireIntEqual(t, math.NewIntWithDecimal(27, 14), result.LPFeeA)

	// each side nets 1 - 0.997 - 0.0003 into the pool
	pool, err := k.GetPool(env.Ctx, poolID)
	require.NoError(t, err)
	expectedReserve := e18(100).Add(math.NewIntWithDecimal(27, 14))
	requireIntEqual(t, expectedReserve, pool.ReserveA)
	requireIntEqual(t, expectedReserve, pool.ReserveB)

	feeA, err := k.GetProtocolFee(env.Ctx, denomA)
	require.NoError(t, err)
	requireIntEqual(t, protocolFee, feeA)

	module := k.GetModuleAddress()
	requireIntEqual(t, pool.ReserveA.Add(feeA), balance(env, module, denomA))
}

func TestExecuteBatchSwap_Refunds(t *testing.T) {
	env, poolID := setupPool(t)
	k := env.Keeper
	executor := registerExecutor(t, env)
	greedy := fundedTrader(t, env, "greedy")
	blocked := fundedTrader(t, env, "blocked")
	broke := keepertest.TestAddr("broke")
	seller := fundedTrader(t, env, "seller")

	env.Bank.Block(blocked)
	defer env.Bank.Unblock(blocked)

	result, err := k.ExecuteBatchSwap(env.Ctx, executor, poolID, []types.BatchOrder{
		order(greedy, denomA, e18(1), e18(2)),
		order(blocked, denomA, e18(1), math.ZeroInt()),
		order(broke, denomB, e18(1), math.ZeroInt()),
		order(seller, denomA, e18(1), math.ZeroInt()),
	})
	require.NoError(t, err)

	require.Equal(t, types.OrderRefundOutsideLimit, result.Orders[0].Status)
	require.Equal(t, types.OrderRefundEscrowFailed, result.Orders[1].Status)
	require.Equal(t, types.OrderRefundEscrowFailed, result.Orders[2].Status)
	require.Equal(t, types.OrderFilled, result.Orders[3].Status)
	require.Equal(t, 1, result.FilledCount())

	// refunded orders end where they started
	requireIntEqual(t, e18(1000), balance(env, greedy, denomA))
	requireIntEqual(t, e18(1000), balance(env, greedy, denomB))
	requireIntEqual(t, e18(1000), balance(env, blocked, denomA))
	require.True(t, balance(env, broke, denomB).IsZero())

	requireIntEqual(t, e18(999), balance(env, seller, denomA))
	requireIntEqual(t, e18(1000).Add(result.Orders[3].AmountOut), balance(env, seller, denomB))
	require.True(t, result.ClearingPrice.LT(math.LegacyOneDec()))

	var refunds int
	for _, ev := range env.Ctx.EventManager().Events() {
		if ev.Type == types.EventTypeOrderRefunded {
			refunds++
		}
	}
	require.Equal(t, 3, refunds)
}

func TestExecuteBatchSwap_PayoutFailureReclears(t *testing.T) {
	env, poolID := setupPool(t)
	k := env.Keeper
	executor := registerExecutor(t, env)
	seller := fundedTrader(t, env, "seller")
	buyer := fundedTrader(t, env, "buyer")

	env.Bank.BlockIncoming(buyer, denomA)
	defer env.Bank.UnblockIncoming(buyer, denomA)

	before, err := k.GetPool(env.Ctx, poolID)
	require.NoError(t, err)

	result, err := k.ExecuteBatchSwap(env.Ctx, executor, poolID, []types.BatchOrder{
		order(seller, denomA, e18(10), math.ZeroInt()),
		order(buyer, denomB, e18(10), math.ZeroInt()),
	})
	require.NoError(t, err)

	require.Equal(t, types.OrderFilled, result.Orders[0].Status)
	require.Equal(t, types.OrderRefundTransferError, result.Orders[1].Status)
	require.Equal(t, 1, result.FilledCount())

	// cleared again as a sell-only batch
	require.True(t, result.ClearingPrice.LT(math.LegacyOneDec()), result.ClearingPrice.String())
	require.True(t, result.AmountInB.IsZero())
	require.True(t, result.Orders[0].AmountOut.IsPositive())

	requireIntEqual(t, e18(990), balance(env, seller, denomA))
	requireIntEqual(t, e18(1000).Add(result.Orders[0].AmountOut), balance(env, seller, denomB))
	requireIntEqual(t, e18(1000), balance(env, buyer, denomA))
	requireIntEqual(t, e18(1000), balance(env, buyer, denomB))

	after, err := k.GetPool(env.Ctx, poolID)
	require.NoError(t, err)
	require.True(t, after.K().GTE(before.K()))

	var refunds int
	for _, ev := range env.Ctx.EventManager().Events() {
		if ev.Type == types.EventTypeOrderRefunded {
			refunds++
		}
	}
	require.Equal(t, 1, refunds)

	msg, broken := keeperInvariants(env)
	require.False(t, broken, msg)
}

func TestExecuteBatchSwap_RefundFailureAborts(t *testing.T) {
	env, poolID := setupPool(t)
	k := env.Keeper
	executor := registerExecutor(t, env)
	greedy := fundedTrader(t, env, "greedy")

	// escrow goes through but the refund cannot come back
	env.Bank.BlockIncoming(greedy, denomA)
	defer env.Bank.UnblockIncoming(greedy, denomA)

	before, err := k.GetPool(env.Ctx, poolID)
	require.NoError(t, err)

	_, err = k.ExecuteBatchSwap(env.Ctx, executor, poolID, []types.BatchOrder{
		order(greedy, denomA, e18(1), e18(2)),
	})
	require.ErrorIs(t, err, types.ErrTransferFailed)

	after, err := k.GetPool(env.Ctx, poolID)
	require.NoError(t, err)
	requireIntEqual(t, before.ReserveA, after.ReserveA)
	requireIntEqual(t, before.ReserveB, after.ReserveB)
	requireIntEqual(t, e18(1000), balance(env, greedy, denomA))
}

func TestExecuteBatchSwap_Invalid(t *testing.T) {
	env, poolID := setupPool(t)
	k := env.Keeper
	executor := registerExecutor(t, env)
	trader := fundedTrader(t, env, "trader")

	_, err := k.ExecuteBatchSwap(env.Ctx, executor, poolID, nil)
	require.ErrorIs(t, err, types.ErrInvalidOrder)

	_, err = k.ExecuteBatchSwap(env.Ctx, executor, poolID, []types.BatchOrder{
		order(trader, "uosmo", e18(1), math.ZeroInt()),
	})
	require.ErrorIs(t, err, types.ErrInvalidTokenPair)

	_, err = k.ExecuteBatchSwap(env.Ctx, executor, poolID, []types.BatchOrder{
		{Trader: "nope", TokenIn: denomA, AmountIn: e18(1), MinAmountOut: math.ZeroInt()},
	})
	require.ErrorIs(t, err, types.ErrInvalidAddress)

	updateParams(t, env, func(p *types.Params) { p.MaxBatchOrders = 1 })
	_, err = k.ExecuteBatchSwap(env.Ctx, executor, poolID, []types.BatchOrder{
		order(trader, denomA, e18(1), math.ZeroInt()),
		order(trader, denomB, e18(1), math.ZeroInt()),
	})
	require.ErrorIs(t, err, types.ErrBatchTooLarge)

	requireIntEqual(t, e18(1000), balance(env, trader, denomA))
	requireIntEqual(t, e18(1000), balance(env, trader, denomB))
}

func TestSimulateBatch_MatchesExecution(t *testing.T) {
	env, poolID := setupPool(t)
	k := env.Keeper
	executor := registerExecutor(t, env)
	traders := []sdk.AccAddress{
		fundedTrader(t, env, "t1"),
		fundedTrader(t, env, "t2"),
		fundedTrader(t, env, "t3"),
		fundedTrader(t, env, "t4"),
	}
	orders := []types.BatchOrder{
		order(traders[0], denomA, e18(3), e18(2)),
		order(traders[1], denomB, e18(2), math.ZeroInt()),
		order(traders[2], denomA, e18(1), math.NewIntWithDecimal(95, 16)),
		order(traders[3], denomB, e18(4), e18(3)),
	}

	simulated, err := k.SimulateBatch(env.Ctx, poolID, orders)
	require.NoError(t, err)

	// simulation writes nothing
	pool, err := k.GetPool(env.Ctx, poolID)
	require.NoError(t, err)
	requireIntEqual(t, e18(100), pool.ReserveA)

	executed, err := k.ExecuteBatchSwap(env.Ctx, executor, poolID, orders)
	require.NoError(t, err)
	require.True(t, simulated.ClearingPrice.Equal(executed.ClearingPrice))
	for i := range orders {
		require.Equal(t, simulated.Orders[i].Status, executed.Orders[i].Status, "order %d", i)
		requireIntEqual(t, simulated.Orders[i].AmountOut, executed.Orders[i].AmountOut, "order %d", i)
	}
}

func TestExecuteBatchSwap_ConservesTokens(t *testing.T) {
	env, poolID := setupPool(t)
	k := env.Keeper
	executor := registerExecutor(t, env)

	names := []string{"a", "b", "c", "d", "e", "f"}
	var traders []sdk.AccAddress
	for _, n := range names {
		traders = append(traders, fundedTrader(t, env, n))
	}
	module := k.GetModuleAddress()
	total := func(denom string) math.Int {
		sum := balance(env, module, denom)
		for _, tr := range traders {
			sum = sum.Add(balance(env, tr, denom))
		}
		return sum
	}
	beforeA, beforeB := total(denomA), total(denomB)
	poolBefore, err := k.GetPool(env.Ctx, poolID)
	require.NoError(t, err)

	result, err := k.ExecuteBatchSwap(env.Ctx, executor, poolID, []types.BatchOrder{
		order(traders[0], denomA, e18(5), math.ZeroInt()),
		order(traders[1], denomA, e18(2), e18(2)),
		order(traders[2], denomB, e18(3), math.ZeroInt()),
		order(traders[3], denomB, e18(1), e18(1)),
		order(traders[4], denomA, e18(1), math.NewIntWithDecimal(5, 17)),
		order(traders[5], denomB, e18(2), math.NewIntWithDecimal(19, 17)),
	})
	require.NoError(t, err)

	requireIntEqual(t, beforeA, total(denomA))
	requireIntEqual(t, beforeB, total(denomB))

	poolAfter, err := k.GetPool(env.Ctx, poolID)
	require.NoError(t, err)
	require.True(t, poolAfter.K().GTE(poolBefore.K()))

	for i, o := range result.Orders {
		if !o.Filled() {
			continue
		}
		minOut := []math.Int{
			math.ZeroInt(), e18(2), math.ZeroInt(), e18(1), math.NewIntWithDecimal(5, 17), math.NewIntWithDecimal(19, 17),
		}[i]
		require.True(t, o.AmountOut.GTE(minOut), "order %d below minimum", i)
	}

	tracked := k.GetTrackedBalances(env.Ctx)
	require.Equal(t, balance(env, module, denomA).String(), tracked.AmountOf(denomA).String())
	require.Equal(t, balance(env, module, denomB).String(), tracked.AmountOf(denomB).String())
}
