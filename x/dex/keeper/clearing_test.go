package keeper_test

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	keepertest "github.com/paw-chain/pawdex/testutil/keeper"
	"github.com/paw-chain/pawdex/x/dex/keeper"
	"github.com/paw-chain/pawdex/x/dex/types"
)

func sellOrder(name string, amountIn, minOut math.Int) keeper.ClearingOrder {
	return keeper.ClearingOrder{Side: types.SideSell, AmountIn: amountIn, MinOut: minOut, Trader: keepertest.TestAddr(name)}
}

func buyOrder(name string, amountIn, minOut math.Int) keeper.ClearingOrder {
	return keeper.ClearingOrder{Side: types.SideBuy, AmountIn: amountIn, MinOut: minOut, Trader: keepertest.TestAddr(name)}
}

func TestComputeClearing_MatchedSidesClearAtSpot(t *testing.T) {
	minBuy, _ := math.NewIntFromString("833333333333333333")
	orders := []keeper.ClearingOrder{
		sellOrder("seller", e18(1), math.NewIntWithDecimal(9, 17)),
		buyOrder("buyer", e18(1), minBuy),
	}

	out, err := keeper.ComputeClearing(e18(100), e18(100), 30, orders)
	require.NoError(t, err)
	require.True(t, out.Price.Equal(math.LegacyOneDec()), out.Price.String())
	require.Equal(t, []bool{true, true}, out.Participating)
	require.Equal(t, []int{0, 1}, out.Sequence)
}

func TestComputeClearing_OneSidedSellerPushesPriceDown(t *testing.T) {
	orders := []keeper.ClearingOrder{sellOrder("seller", e18(1), math.ZeroInt())}

	out, err := keeper.ComputeClearing(e18(100), e18(100), 30, orders)
	require.NoError(t, err)
	require.True(t, out.Participating[0])
	require.True(t, out.Price.LT(math.LegacyOneDec()))

	// P = 100 / (100 + 2*0.997), truncated
	expected := math.LegacyNewDec(100).QuoTruncate(math.LegacyMustNewDecFromStr("101.994"))
	require.True(t, expected.Equal(out.Price), "%s != %s", expected, out.Price)
}

func TestComputeClearing_OneSidedBuyerPushesPriceUp(t *testing.T) {
	orders := []keeper.ClearingOrder{buyOrder("buyer", e18(1), math.ZeroInt())}

	out, err := keeper.ComputeClearing(e18(100), e18(100), 30, orders)
	require.NoError(t, err)
	require.True(t, out.Participating[0])

	expected := math.LegacyMustNewDecFromStr("101.994").QuoRoundUp(math.LegacyNewDec(100))
	require.True(t, expected.Equal(out.Price), "%s != %s", expected, out.Price)
}

func TestComputeClearing_LimitOutsidePrice(t *testing.T) {
	// asks for twice the spot price
	orders := []keeper.ClearingOrder{sellOrder("greedy", e18(1), e18(2))}

	out, err := keeper.ComputeClearing(e18(100), e18(100), 30, orders)
	require.NoError(t, err)
	require.True(t, out.Price.Equal(math.LegacyOneDec()))
	require.False(t, out.Participating[0])
	require.False(t, out.Insufficient[0])
}

func TestComputeClearing_MarginalSellerAtBreakpoint(t *testing.T) {
	// limit 0.9 exactly; with the seller the fixed point is 100/120 < 0.9,
	// without it 1 > 0.9, so the price sits on the limit
	orders := []keeper.ClearingOrder{sellOrder("seller", e18(10), e18(9))}

	out, err := keeper.ComputeClearing(e18(100), e18(100), 0, orders)
	require.NoError(t, err)
	require.True(t, out.Price.Equal(math.LegacyNewDecWithPrec(9, 1)), out.Price.String())
	require.True(t, out.Participating[0])
}

func TestComputeClearing_BreakpointFillsInSequenceOrder(t *testing.T) {
	// two sellers at limit 0.9; the pool can take 100/0.9 - 100 = 11.1 A at
	// that price, so only the first in sequence fits
	first := sellOrder("s-prio", e18(6), math.NewIntWithDecimal(54, 17))
	first.Priority = true
	orders := []keeper.ClearingOrder{
		sellOrder("s-plain", e18(6), math.NewIntWithDecimal(54, 17)),
		first,
	}

	out, err := keeper.ComputeClearing(e18(100), e18(100), 0, orders)
	require.NoError(t, err)
	require.True(t, out.Price.Equal(math.LegacyNewDecWithPrec(9, 1)), out.Price.String())
	require.Equal(t, []int{1, 0}, out.Sequence)
	require.True(t, out.Participating[1])
	require.False(t, out.Participating[0])
	// at its limit but out of room
	require.True(t, out.Insufficient[0])
	require.False(t, out.Insufficient[1])
}

func TestComputeClearing_SequenceInterleavesSides(t *testing.T) {
	prioSell := sellOrder("s2", e18(1), math.ZeroInt())
	prioSell.Priority = true
	prioBuy := buyOrder("b2", e18(1), math.ZeroInt())
	prioBuy.Priority = true
	orders := []keeper.ClearingOrder{
		buyOrder("b1", e18(1), math.ZeroInt()),
		sellOrder("s1", e18(1), math.ZeroInt()),
		prioSell,
		prioBuy,
		sellOrder("s3", e18(5), math.ZeroInt()),
	}

	out, err := keeper.ComputeClearing(e18(100), e18(100), 30, orders)
	require.NoError(t, err)
	// sellers: s2 (priority), s3 (larger), s1; buyers: b2 (priority), b1
	require.Equal(t, []int{2, 3, 4, 0, 1}, out.Sequence)
}

func TestComputeClearing_Deterministic(t *testing.T) {
	orders := []keeper.ClearingOrder{
		sellOrder("a", e18(3), e18(2)),
		buyOrder("b", e18(2), e18(1)),
		sellOrder("c", e18(1), math.ZeroInt()),
		buyOrder("d", e18(4), e18(3)),
	}
	first, err := keeper.ComputeClearing(e18(50), e18(80), 30, orders)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := keeper.ComputeClearing(e18(50), e18(80), 30, orders)
		require.NoError(t, err)
		require.True(t, first.Price.Equal(again.Price))
		require.Equal(t, first.Participating, again.Participating)
		require.Equal(t, first.Sequence, again.Sequence)
	}
}

func TestComputeClearing_EmptyReserves(t *testing.T) {
	_, err := keeper.ComputeClearing(math.ZeroInt(), e18(1), 30, nil)
	require.ErrorIs(t, err, types.ErrPoolNotInitialized)
}
