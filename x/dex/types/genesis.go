package types

import (
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// GenesisState is the exported state of the DEX module.
type GenesisState struct {
	Params          Params              `json:"params" yaml:"params"`
	Pools           []Pool              `json:"pools" yaml:"pools"`
	Positions       []LiquidityPosition `json:"positions" yaml:"positions"`
	Oracles         []PoolOracle        `json:"oracles" yaml:"oracles"`
	Breakers        []PoolBreaker       `json:"breakers" yaml:"breakers"`
	BatchExecutors  []string            `json:"batch_executors" yaml:"batch_executors"`
	ProtocolFees    sdk.Coins           `json:"protocol_fees" yaml:"protocol_fees"`
	TrackedBalances sdk.Coins           `json:"tracked_balances" yaml:"tracked_balances"`
}

// DefaultGenesis returns the default genesis state for the DEX module.
func DefaultGenesis() *GenesisState {
	return &GenesisState{
		Params:          DefaultParams(),
		Pools:           []Pool{},
		Positions:       []LiquidityPosition{},
		Oracles:         []PoolOracle{},
		Breakers:        []PoolBreaker{},
		BatchExecutors:  []string{},
		ProtocolFees:    sdk.NewCoins(),
		TrackedBalances: sdk.NewCoins(),
	}
}

// Validate ensures the genesis state is well-formed.
func (gs GenesisState) Validate() error {
	if err := gs.Params.Validate(); err != nil {
		return err
	}

	pools := make(map[uint64]Pool, len(gs.Pools))
	for _, pool := range gs.Pools {
		if err := pool.Validate(); err != nil {
			return fmt.Errorf("pool %d: %w", pool.Id, err)
		}
		if _, dup := pools[pool.Id]; dup {
			return ErrInvalidGenesis.Wrapf("duplicate pool id %d", pool.Id)
		}
		if pool.Id != DerivePoolID(pool.TokenA, pool.TokenB, pool.FeeRateBps) {
			return ErrInvalidGenesis.Wrapf("pool %d id does not match its pair and fee tier", pool.Id)
		}
		pools[pool.Id] = pool
	}

	shareSums := make(map[uint64]math.Int, len(pools))
	seen := make(map[string]bool, len(gs.Positions))
	for _, pos := range gs.Positions {
		if _, ok := pools[pos.PoolId]; !ok {
			return ErrInvalidGenesis.Wrapf("position for unknown pool %d", pos.PoolId)
		}
		if _, err := sdk.AccAddressFromBech32(pos.Holder); err != nil {
			return ErrInvalidGenesis.Wrapf("position holder: %v", err)
		}
		if pos.Shares.IsNil() || !pos.Shares.IsPositive() {
			return ErrInvalidGenesis.Wrapf("position %d/%s must hold positive shares", pos.PoolId, pos.Holder)
		}
		key := fmt.Sprintf("%d/%s", pos.PoolId, pos.Holder)
		if seen[key] {
			return ErrInvalidGenesis.Wrapf("duplicate position %s", key)
		}
		seen[key] = true
		if sum, ok := shareSums[pos.PoolId]; ok {
			shareSums[pos.PoolId] = sum.Add(pos.Shares)
		} else {
			shareSums[pos.PoolId] = pos.Shares
		}
	}
	for id, pool := range pools {
		sum, ok := shareSums[id]
		if !ok {
			sum = math.ZeroInt()
		}
		if !sum.Equal(pool.TotalShares) {
			return ErrInvalidGenesis.Wrapf("pool %d positions sum to %s, total shares %s", id, sum, pool.TotalShares)
		}
	}

	for _, o := range gs.Oracles {
		if _, ok := pools[o.PoolId]; !ok {
			return ErrInvalidGenesis.Wrapf("oracle for unknown pool %d", o.PoolId)
		}
		if err := o.State.Validate(); err != nil {
			return fmt.Errorf("oracle %d: %w", o.PoolId, err)
		}
		if uint32(len(o.Observations)) != o.State.Cardinality {
			return ErrInvalidGenesis.Wrapf("oracle %d has %d observations, cardinality %d", o.PoolId, len(o.Observations), o.State.Cardinality)
		}
		for i := 1; i < len(o.Observations); i++ {
			if o.Observations[i].Timestamp < o.Observations[i-1].Timestamp {
				return ErrInvalidGenesis.Wrapf("oracle %d observations out of order", o.PoolId)
			}
		}
	}

	for _, b := range gs.Breakers {
		if _, ok := pools[b.PoolId]; !ok {
			return ErrInvalidGenesis.Wrapf("breaker for unknown pool %d", b.PoolId)
		}
		if err := b.Kind.Validate(); err != nil {
			return err
		}
	}

	for _, addr := range gs.BatchExecutors {
		if _, err := sdk.AccAddressFromBech32(addr); err != nil {
			return ErrInvalidGenesis.Wrapf("batch executor: %v", err)
		}
	}

	if err := gs.ProtocolFees.Validate(); err != nil {
		return ErrInvalidGenesis.Wrapf("protocol fees: %v", err)
	}
	if err := gs.TrackedBalances.Validate(); err != nil {
		return ErrInvalidGenesis.Wrapf("tracked balances: %v", err)
	}
	return nil
}
