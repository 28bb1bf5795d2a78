package keeper_test

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	keepertest "github.com/paw-chain/pawdex/testutil/keeper"
	"github.com/paw-chain/pawdex/x/dex/keeper"
	"github.com/paw-chain/pawdex/x/dex/types"
)

func TestSwap_AToB(t *testing.T) {
	env, poolID := setupPool(t)
	k := env.Keeper
	trader := fundedTrader(t, env, "trader")

	quote, err := k.Quote(env.Ctx, poolID, denomA, e18(10))
	require.NoError(t, err)

	out, err := k.Swap(env.Ctx, trader, poolID, denomA, e18(10), math.ZeroInt(), nil)
	require.NoError(t, err)
	expected, ok := math.NewIntFromString("9066108938801491315")
	require.True(t, ok)
	requireIntEqual(t, expected, out)
	requireIntEqual(t, quote, out)

	requireIntEqual(t, e18(990), balance(env, trader, denomA))
	requireIntEqual(t, e18(1000).Add(out), balance(env, trader, denomB))

	// 10% of the 30 bps fee goes to the protocol ledger, outside the reserves
	protocolFee := math.NewIntWithDecimal(3, 15)
	fee, err := k.GetProtocolFee(env.Ctx, denomA)
	require.NoError(t, err)
	requireIntEqual(t, protocolFee, fee)

	pool, err := k.GetPool(env.Ctx, poolID)
	require.NoError(t, err)
	requireIntEqual(t, e18(110).Sub(protocolFee), pool.ReserveA)
	requireIntEqual(t, e18(100).Sub(out), pool.ReserveB)
	require.True(t, pool.K().GT(e18(100).Mul(e18(100))))

	tracked, err := k.GetTrackedBalance(env.Ctx, denomA)
	require.NoError(t, err)
	requireIntEqual(t, pool.ReserveA.Add(fee), tracked)
	requireIntEqual(t, tracked, balance(env, k.GetModuleAddress(), denomA))

	var found bool
	for _, ev := range env.Ctx.EventManager().Events() {
		if ev.Type == types.EventTypeSwap {
			found = true
		}
	}
	require.True(t, found)
}

func TestSwap_BToAWithRecipient(t *testing.T) {
	env, poolID := setupPool(t)
	k := env.Keeper
	trader := fundedTrader(t, env, "trader")
	recipient := keepertest.TestAddr("recipient")

	out, err := k.Swap(env.Ctx, trader, poolID, denomB, e18(5), math.ZeroInt(), recipient)
	require.NoError(t, err)
	expected, _ := math.NewIntFromString("4748297375815592703")
	requireIntEqual(t, expected, out)

	requireIntEqual(t, e18(995), balance(env, trader, denomB))
	requireIntEqual(t, e18(1000), balance(env, trader, denomA))
	requireIntEqual(t, out, balance(env, recipient, denomA))

	fee, err := k.GetProtocolFee(env.Ctx, denomB)
	require.NoError(t, err)
	requireIntEqual(t, math.NewIntWithDecimal(15, 14), fee)
}

func TestSwap_Rejections(t *testing.T) {
	env, poolID := setupPool(t)
	k := env.Keeper
	trader := fundedTrader(t, env, "trader")

	expected, err := k.Quote(env.Ctx, poolID, denomA, e18(1))
	require.NoError(t, err)

	tests := []struct {
		name    string
		trader  sdk.AccAddress
		tokenIn string
		amount  math.Int
		minOut  math.Int
		err     error
	}{
		{"empty trader", nil, denomA, e18(1), math.ZeroInt(), types.ErrInvalidAddress},
		{"zero amount", trader, denomA, math.ZeroInt(), math.ZeroInt(), types.ErrInvalidAmount},
		{"negative min out", trader, denomA, e18(1), math.NewInt(-1), types.ErrInvalidAmount},
		{"foreign token", trader, "uosmo", e18(1), math.ZeroInt(), types.ErrInvalidTokenPair},
		{"slippage", trader, denomA, e18(1), expected.AddRaw(1), types.ErrSlippageExceeded},
		{"above max trade size", trader, denomA, e18(10).AddRaw(1), math.ZeroInt(), types.ErrTradeTooLarge},
		{"dust", trader, denomA, math.NewInt(1), math.ZeroInt(), types.ErrInvalidAmount},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := k.Swap(env.Ctx, tc.trader, poolID, tc.tokenIn, tc.amount, tc.minOut, nil)
			require.ErrorIs(t, err, tc.err)
		})
	}

	// nothing moved
	requireIntEqual(t, e18(1000), balance(env, trader, denomA))
	requireIntEqual(t, e18(1000), balance(env, trader, denomB))
	pool, err := k.GetPool(env.Ctx, poolID)
	require.NoError(t, err)
	requireIntEqual(t, e18(100), pool.ReserveA)
	requireIntEqual(t, e18(100), pool.ReserveB)

	// a rejected call does not count as an interaction
	_, err = k.Swap(env.Ctx, trader, poolID, denomA, e18(1), expected, nil)
	require.NoError(t, err)
}

func TestSwap_InsufficientFundsRollsBack(t *testing.T) {
	env, poolID := setupPool(t)
	k := env.Keeper
	poor := keepertest.TestAddr("poor")
	keepertest.Fund(t, env, poor, sdk.NewCoin(denomA, e18(1)))

	_, err := k.Swap(env.Ctx, poor, poolID, denomA, e18(2), math.ZeroInt(), nil)
	require.Error(t, err)

	pool, err := k.GetPool(env.Ctx, poolID)
	require.NoError(t, err)
	requireIntEqual(t, e18(100), pool.ReserveA)
	fee, err := k.GetProtocolFee(env.Ctx, denomA)
	require.NoError(t, err)
	require.True(t, fee.IsZero())
	requireIntEqual(t, e18(1), balance(env, poor, denomA))
}

func TestSwap_SameSlot(t *testing.T) {
	env, poolID := setupPool(t)
	k := env.Keeper
	trader := fundedTrader(t, env, "trader")

	_, err := k.Swap(env.Ctx, trader, poolID, denomA, e18(1), math.ZeroInt(), nil)
	require.NoError(t, err)

	_, err = k.Swap(env.Ctx, trader, poolID, denomB, e18(1), math.ZeroInt(), nil)
	require.ErrorIs(t, err, types.ErrSameSlotInteraction)

	// other callers are unaffected
	other := fundedTrader(t, env, "other")
	_, err = k.Swap(env.Ctx, other, poolID, denomB, e18(1), math.ZeroInt(), nil)
	require.NoError(t, err)

	keepertest.NextBlock(env, 5*time.Second)
	_, err = k.Swap(env.Ctx, trader, poolID, denomB, e18(1), math.ZeroInt(), nil)
	require.NoError(t, err)

	updateParams(t, env, func(p *types.Params) { p.EnableSameSlotGuard = false })
	_, err = k.Swap(env.Ctx, trader, poolID, denomB, e18(1), math.ZeroInt(), nil)
	require.NoError(t, err)
}

func TestSwap_ConstantProductNeverDecreases(t *testing.T) {
	env, poolID := setupPool(t)
	k := env.Keeper
	trader := fundedTrader(t, env, "trader")

	pool, err := k.GetPool(env.Ctx, poolID)
	require.NoError(t, err)
	prevK := pool.K()

	amounts := []int64{1, 3, 4, 2, 5, 2}
	for i, n := range amounts {
		tokenIn := denomA
		if i%2 == 1 {
			tokenIn = denomB
		}
		_, err := k.Swap(env.Ctx, trader, poolID, tokenIn, e18(n), math.ZeroInt(), nil)
		require.NoError(t, err)

		pool, err := k.GetPool(env.Ctx, poolID)
		require.NoError(t, err)
		require.True(t, pool.K().GTE(prevK), "swap %d decreased k", i)
		prevK = pool.K()

		keepertest.NextBlock(env, time.Second)
	}
}

func TestSwapOutput(t *testing.T) {
	tests := []struct {
		name     string
		in       math.Int
		rIn      math.Int
		rOut     math.Int
		fee      uint32
		expected math.Int
	}{
		{"no fee", math.NewInt(100), math.NewInt(1000), math.NewInt(1000), 0, math.NewInt(90)},
		{"30 bps", math.NewInt(100), math.NewInt(1000), math.NewInt(1000), 30, math.NewInt(90)},
		{"floors", math.NewInt(1), math.NewInt(1000), math.NewInt(1000), 30, math.ZeroInt()},
		{"max fee", math.NewInt(1000), math.NewInt(1000), math.NewInt(1000), types.MaxFeeRateBps, math.NewInt(473)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := keeper.SwapOutput(tc.in, tc.rIn, tc.rOut, tc.fee)
			require.NoError(t, err)
			requireIntEqual(t, tc.expected, out)
		})
	}

	_, err := keeper.SwapOutput(math.ZeroInt(), math.NewInt(1), math.NewInt(1), 30)
	require.Error(t, err)
}

func TestFeeSplit(t *testing.T) {
	total, protocol := keeper.FeeSplit(math.NewInt(1_000_000), 30, 1000)
	requireIntEqual(t, math.NewInt(3000), total)
	requireIntEqual(t, math.NewInt(300), protocol)

	total, protocol = keeper.FeeSplit(math.NewInt(333), 30, 1000)
	requireIntEqual(t, math.ZeroInt(), total)
	requireIntEqual(t, math.ZeroInt(), protocol)

	_, protocol = keeper.FeeSplit(math.NewInt(1_000_000), 30, 0)
	require.True(t, protocol.IsZero())
}
