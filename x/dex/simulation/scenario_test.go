package simulation_test

import (
	"strings"
	"testing"

	"cosmossdk.io/log"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/paw-chain/pawdex/x/dex/simulation"
	"github.com/paw-chain/pawdex/x/dex/types"
)

func newEnv(t *testing.T) *simulation.Env {
	env, err := simulation.NewEnv(log.NewNopLogger(), simulation.DefaultGenesisTime, nil)
	require.NoError(t, err)
	return env
}

func TestRunBasicScenario(t *testing.T) {
	s, err := simulation.LoadScenario("testdata/basic.yaml")
	require.NoError(t, err)
	require.Equal(t, "basic", s.Name)

	env := newEnv(t)
	results, err := env.Run(s)
	require.NoError(t, err)
	require.Len(t, results, len(s.Steps))

	require.Equal(t, "amount_out=9066108938801491315", results[2].Output)
	require.ErrorIs(t, results[3].Err, types.ErrTradeTooLarge)
	require.True(t, strings.HasPrefix(results[5].Output, "price="), results[5].Output)
	require.True(t, strings.HasSuffix(results[5].Output, "filled=2/2"), results[5].Output)
	require.True(t, strings.HasPrefix(results[7].Output, "twap="), results[7].Output)
	require.Equal(t, "cardinality_next=64", results[8].Output)
	require.True(t, strings.HasSuffix(results[9].Output, "uatom"), results[9].Output)

	// one block per step, plus the advance
	require.Equal(t, int64(1+len(s.Steps)-1), env.Ctx.BlockHeight()-1)
	require.Equal(t, simulation.DefaultGenesisTime.Unix()+int64(len(s.Steps)-1)+600, env.Ctx.BlockTime().Unix())
}

func TestRunStopsOnUnexpectedOutcome(t *testing.T) {
	s, err := simulation.ParseScenario([]byte(`
name: broken
steps:
  - action: create_pool
    account: alice
    token_a: uatom
    token_b: uatom
    fee_bps: 30
  - action: advance
    seconds: 1
`))
	require.NoError(t, err)

	results, err := newEnv(t).Run(s)
	require.ErrorIs(t, err, types.ErrInvalidTokenPair)
	require.Len(t, results, 1)

	s, err = simulation.ParseScenario([]byte(`
name: expected-failure-missing
steps:
  - action: create_pool
    account: alice
    token_a: uatom
    token_b: uusdc
    fee_bps: 30
    expect_error: already exists
`))
	require.NoError(t, err)
	_, err = newEnv(t).Run(s)
	require.ErrorContains(t, err, "expected error")
}

func TestParseScenario_Invalid(t *testing.T) {
	_, err := simulation.ParseScenario([]byte("name: empty\n"))
	require.Error(t, err)

	_, err = simulation.ParseScenario([]byte("steps: [\n"))
	require.Error(t, err)

	s, err := simulation.ParseScenario([]byte(`
steps:
  - action: teleport
`))
	require.NoError(t, err)
	_, err = newEnv(t).Run(s)
	require.ErrorContains(t, err, "unknown action")
}

func TestBankSendIsAllOrNothing(t *testing.T) {
	env := newEnv(t)
	alice := simulation.Account("alice")
	bob := simulation.Account("bob")

	coins, err := sdkCoins("5uatom,1uusdc")
	require.NoError(t, err)
	require.NoError(t, env.Bank.Mint(env.Ctx, alice, coins))

	more, err := sdkCoins("5uatom,2uusdc")
	require.NoError(t, err)
	require.Error(t, env.Bank.SendCoins(env.Ctx, alice, bob, more))
	require.Equal(t, coins.String(), env.Bank.GetAllBalances(env.Ctx, alice).String())
	require.True(t, env.Bank.GetAllBalances(env.Ctx, bob).IsZero())

	env.Bank.Block(bob)
	require.Error(t, env.Bank.SendCoins(env.Ctx, alice, bob, coins))
	env.Bank.Unblock(bob)
	require.NoError(t, env.Bank.SendCoins(env.Ctx, alice, bob, coins))
	require.Equal(t, coins.String(), env.Bank.GetAllBalances(env.Ctx, bob).String())
}

func sdkCoins(s string) (sdk.Coins, error) {
	return sdk.ParseCoinsNormalized(s)
}
