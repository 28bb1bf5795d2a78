package keeper_test

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	keepertest "github.com/paw-chain/pawdex/testutil/keeper"
	"github.com/paw-chain/pawdex/x/dex/simulation"
	"github.com/paw-chain/pawdex/x/dex/types"
)

const (
	denomA = "uatom"
	denomB = "uusdc"
)

func e18(n int64) math.Int {
	return math.NewIntWithDecimal(n, 18)
}

// setupPool returns an env with a 100/100 uatom/uusdc pool at 30 bps
func setupPool(t *testing.T) (*simulation.Env, uint64) {
	env := keepertest.DexEnv(t)
	poolID := keepertest.CreateTestPool(t, env, denomA, denomB, 30, e18(100), e18(100))
	return env, poolID
}

func updateParams(t require.TestingT, env *simulation.Env, mutate func(p *types.Params)) {
	params, err := env.Keeper.GetParams(env.Ctx)
	require.NoError(t, err)
	mutate(&params)
	require.NoError(t, env.Keeper.UpdateParams(env.Ctx, env.Authority.String(), params))
}

func fundedTrader(t require.TestingT, env *simulation.Env, name string) sdk.AccAddress {
	trader := keepertest.TestAddr(name)
	keepertest.Fund(t, env, trader, sdk.NewCoin(denomA, e18(1000)), sdk.NewCoin(denomB, e18(1000)))
	return trader
}

func TestParams_DefaultsAfterGenesis(t *testing.T) {
	k, ctx := keepertest.DexKeeper(t)

	params, err := k.GetParams(ctx)
	require.NoError(t, err)
	require.Equal(t, types.DefaultParams(), params)
}

func TestUpdateParams(t *testing.T) {
	env := keepertest.DexEnv(t)
	k := env.Keeper

	params := types.DefaultParams()
	params.MaxTradeSizeBps = 500

	err := k.UpdateParams(env.Ctx, keepertest.TestAddr("mallory").String(), params)
	require.ErrorIs(t, err, types.ErrUnauthorized)

	require.NoError(t, k.UpdateParams(env.Ctx, env.Authority.String(), params))
	got, err := k.GetParams(env.Ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(500), got.MaxTradeSizeBps)

	params.MaxTradeSizeBps = 0
	err = k.UpdateParams(env.Ctx, env.Authority.String(), params)
	require.ErrorIs(t, err, types.ErrInvalidParams)
}

func TestCreatePool(t *testing.T) {
	env := keepertest.DexEnv(t)
	k := env.Keeper
	creator := keepertest.TestAddr("creator")

	// argument order does not matter
	pool, err := k.CreatePool(env.Ctx, creator, denomB, denomA, 30)
	require.NoError(t, err)
	require.Equal(t, denomA, pool.TokenA)
	require.Equal(t, denomB, pool.TokenB)
	require.Equal(t, types.DerivePoolID(denomA, denomB, 30), pool.Id)
	require.False(t, pool.Initialized)
	require.True(t, pool.ReserveA.IsZero())

	got, err := k.GetPoolByDenoms(env.Ctx, denomB, denomA, 30)
	require.NoError(t, err)
	require.Equal(t, pool.Id, got.Id)

	_, err = k.CreatePool(env.Ctx, creator, denomA, denomB, 30)
	require.ErrorIs(t, err, types.ErrPoolAlreadyExists)

	// one pool per pair unless fee tiers are enabled
	_, err = k.CreatePool(env.Ctx, creator, denomA, denomB, 5)
	require.ErrorIs(t, err, types.ErrPoolAlreadyExists)

	updateParams(t, env, func(p *types.Params) { p.AllowMultipleFeeTiers = true })
	tier, err := k.CreatePool(env.Ctx, creator, denomA, denomB, 5)
	require.NoError(t, err)
	require.NotEqual(t, pool.Id, tier.Id)

	pools, err := k.GetPoolsForPair(env.Ctx, denomA, denomB)
	require.NoError(t, err)
	require.Len(t, pools, 2)
}

func TestCreatePool_Invalid(t *testing.T) {
	k, ctx := keepertest.DexKeeper(t)
	creator := keepertest.TestAddr("creator")

	tests := []struct {
		name   string
		tokenA string
		tokenB string
		fee    uint32
		err    error
	}{
		{"identical tokens", denomA, denomA, 30, types.ErrInvalidTokenPair},
		{"invalid denom", "1bad", denomB, 30, types.ErrInvalidTokenPair},
		{"fee too high", denomA, denomB, types.MaxFeeRateBps + 1, types.ErrInvalidFee},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := k.CreatePool(ctx, creator, tc.tokenA, tc.tokenB, tc.fee)
			require.ErrorIs(t, err, tc.err)
		})
	}

	_, err := k.GetPool(ctx, 42)
	require.ErrorIs(t, err, types.ErrPoolNotFound)
}

func TestOperationsOnUninitializedPool(t *testing.T) {
	env := keepertest.DexEnv(t)
	k := env.Keeper
	trader := fundedTrader(t, env, "trader")

	pool, err := k.CreatePool(env.Ctx, trader, denomA, denomB, 30)
	require.NoError(t, err)

	_, err = k.Swap(env.Ctx, trader, pool.Id, denomA, e18(1), math.ZeroInt(), nil)
	require.ErrorIs(t, err, types.ErrPoolNotInitialized)

	_, err = k.GetSpotPrice(env.Ctx, pool.Id)
	require.ErrorIs(t, err, types.ErrPoolNotInitialized)

	_, err = k.Quote(env.Ctx, pool.Id, denomA, e18(1))
	require.ErrorIs(t, err, types.ErrPoolNotInitialized)
}

func TestNextBlockClearsTransientState(t *testing.T) {
	env, poolID := setupPool(t)
	trader := fundedTrader(t, env, "trader")

	_, err := env.Keeper.Swap(env.Ctx, trader, poolID, denomA, e18(1), math.ZeroInt(), nil)
	require.NoError(t, err)

	ctx := keepertest.NextBlock(env, 5*time.Second)
	require.Equal(t, int64(2), ctx.BlockHeight())
	require.NoError(t, env.Keeper.CheckSameSlot(ctx, types.DefaultParams(), poolID, trader))
}

func requireIntEqual(t require.TestingT, expected, actual math.Int, msgAndArgs ...interface{}) {
	require.Equal(t, expected.String(), actual.String(), msgAndArgs...)
}

func balance(env *simulation.Env, addr sdk.AccAddress, denom string) math.Int {
	return env.Bank.GetBalance(env.Ctx, addr, denom).Amount
}
