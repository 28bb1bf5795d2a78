package keeper

import (
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/paw-chain/pawdex/x/dex/keeper"
	"github.com/paw-chain/pawdex/x/dex/simulation"
	"github.com/paw-chain/pawdex/x/dex/types"
)

// DexKeeper creates a test keeper for the DEX module backed by an in-memory
// chain and bank.
func DexKeeper(t testing.TB) (*keeper.Keeper, sdk.Context) {
	env := DexEnv(t)
	return env.Keeper, env.Ctx
}

// DexEnv returns the full in-memory environment, for tests that advance
// blocks or inspect balances.
func DexEnv(t require.TestingT) *simulation.Env {
	env, err := simulation.NewEnv(log.NewNopLogger(), simulation.DefaultGenesisTime, types.DefaultGenesis())
	require.NoError(t, err)
	return env
}

// TestAddr returns a deterministic account address for name.
func TestAddr(name string) sdk.AccAddress {
	return simulation.Account(name)
}

// Fund mints coins to addr.
func Fund(t require.TestingT, env *simulation.Env, addr sdk.AccAddress, coins ...sdk.Coin) {
	require.NoError(t, env.Bank.Mint(env.Ctx, addr, sdk.NewCoins(coins...)))
}

// CreateTestPool creates a pool and seeds it with liquidity from a funded
// provider. Returns the pool ID.
func CreateTestPool(t require.TestingT, env *simulation.Env, tokenA, tokenB string, feeBps uint32, amountA, amountB math.Int) uint64 {
	provider := TestAddr("pool-seeder")
	Fund(t, env, provider, sdk.NewCoin(tokenA, amountA), sdk.NewCoin(tokenB, amountB))

	pool, err := env.Keeper.CreatePool(env.Ctx, provider, tokenA, tokenB, feeBps)
	require.NoError(t, err)
	if pool.TokenA != tokenA {
		amountA, amountB = amountB, amountA
	}
	_, err = env.Keeper.AddLiquidity(env.Ctx, provider, pool.Id, amountA, amountB, math.ZeroInt(), math.ZeroInt())
	require.NoError(t, err)
	return pool.Id
}

// NextBlock advances env by one block of dt.
func NextBlock(env *simulation.Env, dt time.Duration) sdk.Context {
	env.NextBlock(dt)
	return env.Ctx
}
