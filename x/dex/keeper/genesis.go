package keeper

import (
	"context"
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/pawdex/x/dex/types"
)

// InitGenesis initializes the dex module's state from a genesis state
func (k Keeper) InitGenesis(ctx context.Context, genState types.GenesisState) error {
	if err := genState.Validate(); err != nil {
		return fmt.Errorf("invalid genesis: %w", err)
	}

	// Set parameters
	if err := k.SetParams(ctx, genState.Params); err != nil {
		return fmt.Errorf("failed to set params: %w", err)
	}

	store := k.getStore(ctx)

	// Initialize pools and their pair index
	for _, pool := range genState.Pools {
		if err := k.SetPool(ctx, &pool); err != nil {
			return fmt.Errorf("failed to set pool %d: %w", pool.Id, err)
		}
		store.Set(PoolByPairKey(pool.TokenA, pool.TokenB, pool.FeeRateBps), poolIDBytes(pool.Id))
	}

	// Initialize liquidity positions
	for _, pos := range genState.Positions {
		holder, err := sdk.AccAddressFromBech32(pos.Holder)
		if err != nil {
			return fmt.Errorf("invalid liquidity holder address %s: %w", pos.Holder, err)
		}
		if err := k.SetLiquidity(ctx, pos.PoolId, holder, pos.Shares); err != nil {
			return fmt.Errorf("failed to set liquidity position for pool %d, holder %s: %w", pos.PoolId, pos.Holder, err)
		}
	}

	for _, oracle := range genState.Oracles {
		if err := k.setPoolOracle(ctx, oracle); err != nil {
			return fmt.Errorf("failed to set oracle for pool %d: %w", oracle.PoolId, err)
		}
	}

	for _, b := range genState.Breakers {
		if err := k.SetBreakerState(ctx, b.PoolId, b.Kind, b.State); err != nil {
			return fmt.Errorf("failed to set %s breaker for pool %d: %w", b.Kind, b.PoolId, err)
		}
	}

	for _, addr := range genState.BatchExecutors {
		executor, err := sdk.AccAddressFromBech32(addr)
		if err != nil {
			return fmt.Errorf("invalid batch executor %s: %w", addr, err)
		}
		store.Set(BatchExecutorKey(executor), []byte{0x01})
	}

	for _, coin := range genState.ProtocolFees {
		if err := setInt(store, ProtocolFeeKey(coin.Denom), coin.Amount); err != nil {
			return fmt.Errorf("failed to set protocol fee %s: %w", coin.Denom, err)
		}
	}
	for _, coin := range genState.TrackedBalances {
		if err := setInt(store, TrackedBalanceKey(coin.Denom), coin.Amount); err != nil {
			return fmt.Errorf("failed to set tracked balance %s: %w", coin.Denom, err)
		}
	}

	return nil
}

// ExportGenesis returns the dex module's exported genesis. Oracles are
// exported oldest observation first, compacted to the written slots.
func (k Keeper) ExportGenesis(ctx context.Context) (*types.GenesisState, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get params: %w", err)
	}

	genesis := types.DefaultGenesis()
	genesis.Params = params

	pools, err := k.GetAllPools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pools: %w", err)
	}
	genesis.Pools = append(genesis.Pools, pools...)

	positions, err := k.GetAllPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	genesis.Positions = append(genesis.Positions, positions...)

	for _, pool := range pools {
		state, found, err := k.GetOracleState(ctx, pool.Id)
		if err != nil {
			return nil, fmt.Errorf("failed to get oracle state for pool %d: %w", pool.Id, err)
		}
		if !found {
			continue
		}
		observations, err := k.GetObservations(ctx, pool.Id)
		if err != nil {
			return nil, fmt.Errorf("failed to get observations for pool %d: %w", pool.Id, err)
		}
		state.Index = uint32(len(observations) - 1)
		state.Cardinality = uint32(len(observations))
		genesis.Oracles = append(genesis.Oracles, types.PoolOracle{
			PoolId:       pool.Id,
			State:        state,
			Observations: observations,
		})
	}

	breakers, err := k.GetAllBreakers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get breakers: %w", err)
	}
	genesis.Breakers = append(genesis.Breakers, breakers...)

	genesis.BatchExecutors = append(genesis.BatchExecutors, k.GetBatchExecutors(ctx)...)
	genesis.ProtocolFees = k.GetProtocolFees(ctx)
	genesis.TrackedBalances = k.GetTrackedBalances(ctx)

	return genesis, nil
}
