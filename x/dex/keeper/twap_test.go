package keeper_test

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	keepertest "github.com/paw-chain/pawdex/testutil/keeper"
	"github.com/paw-chain/pawdex/x/dex/keeper"
	"github.com/paw-chain/pawdex/x/dex/types"
)

func TestGetTWAP(t *testing.T) {
	env, poolID := setupPool(t)
	k := env.Keeper
	trader := fundedTrader(t, env, "trader")

	_, err := k.GetTWAP(env.Ctx, poolID, 600)
	require.ErrorIs(t, err, types.ErrInsufficientHistory)
	_, err = k.GetTWAP(env.Ctx, poolID, 0)
	require.ErrorIs(t, err, types.ErrInvalidPeriod)
	_, err = k.GetTWAP(env.Ctx, 12345, 600)
	require.ErrorIs(t, err, types.ErrPoolNotFound)

	keepertest.NextBlock(env, 600*time.Second)
	_, err = k.Swap(env.Ctx, trader, poolID, denomA, e18(5), math.ZeroInt(), nil)
	require.NoError(t, err)

	// the swap only changes the price from now on
	twap, err := k.GetTWAP(env.Ctx, poolID, 600)
	require.NoError(t, err)
	require.True(t, twap.Equal(math.LegacyOneDec()), twap.String())

	spot, err := k.GetSpotPrice(env.Ctx, poolID)
	require.NoError(t, err)

	keepertest.NextBlock(env, 600*time.Second)
	twap, err = k.GetTWAP(env.Ctx, poolID, 600)
	require.NoError(t, err)
	require.True(t, twap.Equal(spot), "%s != %s", twap, spot)

	twap, err = k.GetTWAP(env.Ctx, poolID, 1200)
	require.NoError(t, err)
	expected := math.LegacyOneDec().Add(spot).QuoInt64(2)
	require.True(t, twap.Equal(expected), "%s != %s", twap, expected)

	_, err = k.GetTWAP(env.Ctx, poolID, 1201)
	require.ErrorIs(t, err, types.ErrInsufficientHistory)
}

func TestCanConsult(t *testing.T) {
	env, poolID := setupPool(t)
	k := env.Keeper

	empty, ok, err := k.CanConsult(env.Ctx, poolID, 60)
	require.NoError(t, err)
	require.False(t, ok)
	require.Panics(t, func() { empty.Price() })

	var zero keeper.TWAPWindow
	require.Panics(t, func() { zero.Price() })
	require.Zero(t, zero.Elapsed())

	keepertest.NextBlock(env, 30*time.Second)
	require.NoError(t, k.WriteObservation(env.Ctx, poolID, math.LegacyNewDec(2)))

	// two observations, but the oldest is only 30s old
	_, ok, err = k.CanConsult(env.Ctx, poolID, 60)
	require.NoError(t, err)
	require.False(t, ok)

	keepertest.NextBlock(env, 30*time.Second)
	window, ok, err := k.CanConsult(env.Ctx, poolID, 60)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, poolID, window.PoolID())
	require.Equal(t, int64(60), window.Period())
	require.Equal(t, int64(60), window.Elapsed())
	// 30s at 1 and 30s at 2
	require.True(t, window.Price().Equal(math.LegacyMustNewDecFromStr("1.5")), window.Price().String())
}

func TestWriteObservation_SameSecondReplacesPrice(t *testing.T) {
	env, poolID := setupPool(t)
	k := env.Keeper

	keepertest.NextBlock(env, 10*time.Second)
	require.NoError(t, k.WriteObservation(env.Ctx, poolID, math.LegacyNewDec(3)))
	require.NoError(t, k.WriteObservation(env.Ctx, poolID, math.LegacyNewDec(4)))

	obs, err := k.GetObservations(env.Ctx, poolID)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	require.True(t, obs[1].CumulativePrice.Equal(math.LegacyNewDec(10)))

	state, _, err := k.GetOracleState(env.Ctx, poolID)
	require.NoError(t, err)
	require.True(t, state.LastPrice.Equal(math.LegacyNewDec(4)))
}

func TestOracleRingOverwritesOldest(t *testing.T) {
	env, poolID := setupPool(t)
	k := env.Keeper

	for i := 0; i < 20; i++ {
		keepertest.NextBlock(env, time.Second)
		require.NoError(t, k.WriteObservation(env.Ctx, poolID, math.LegacyOneDec()))
	}

	obs, err := k.GetObservations(env.Ctx, poolID)
	require.NoError(t, err)
	require.Len(t, obs, 16)
	start := env.Ctx.BlockTime().Unix()
	require.Equal(t, start, obs[15].Timestamp)
	require.Equal(t, start-15, obs[0].Timestamp)
	for i := 1; i < len(obs); i++ {
		require.Less(t, obs[i-1].Timestamp, obs[i].Timestamp)
		require.True(t, obs[i].CumulativePrice.GT(obs[i-1].CumulativePrice))
	}
}

func TestGrowOracle(t *testing.T) {
	env, poolID := setupPool(t)
	k := env.Keeper
	params := types.DefaultParams()

	got, err := k.GrowOracle(env.Ctx, poolID, 8)
	require.NoError(t, err)
	require.Equal(t, params.InitialOracleCardinality, got)

	_, err = k.GrowOracle(env.Ctx, poolID, params.MaxOracleCardinality+1)
	require.ErrorIs(t, err, types.ErrInvalidCardinality)

	_, err = k.GrowOracle(env.Ctx, 999, 32)
	require.ErrorIs(t, err, types.ErrPoolNotInitialized)

	for i := 0; i < 20; i++ {
		keepertest.NextBlock(env, time.Second)
		require.NoError(t, k.WriteObservation(env.Ctx, poolID, math.LegacyOneDec()))
	}

	gasBefore := env.Ctx.GasMeter().GasConsumed()
	got, err = k.GrowOracle(env.Ctx, poolID, 24)
	require.NoError(t, err)
	require.Equal(t, uint32(24), got)
	require.GreaterOrEqual(t, env.Ctx.GasMeter().GasConsumed()-gasBefore, 8*params.OracleGrowGasPerSlot)

	// the ring only expands once it wraps to its end
	state, _, err := k.GetOracleState(env.Ctx, poolID)
	require.NoError(t, err)
	require.Equal(t, uint32(16), state.Cardinality)

	for i := 0; i < 30; i++ {
		keepertest.NextBlock(env, time.Second)
		require.NoError(t, k.WriteObservation(env.Ctx, poolID, math.LegacyOneDec()))

		obs, err := k.GetObservations(env.Ctx, poolID)
		require.NoError(t, err)
		for j := 1; j < len(obs); j++ {
			require.Less(t, obs[j-1].Timestamp, obs[j].Timestamp, "write %d", i)
		}
	}

	state, _, err = k.GetOracleState(env.Ctx, poolID)
	require.NoError(t, err)
	require.Equal(t, uint32(24), state.Cardinality)
	obs, err := k.GetObservations(env.Ctx, poolID)
	require.NoError(t, err)
	require.Len(t, obs, 24)
}
