package keeper

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/pawdex/x/dex/types"
)

// CreatePool registers a new pool for a token pair and fee tier. Tokens are
// ordered lexicographically and the pool ID is derived from the canonical pair
// and fee. The pool holds no reserves until its first deposit.
func (k Keeper) CreatePool(ctx context.Context, creator sdk.AccAddress, tokenA, tokenB string, feeRateBps uint32) (*types.Pool, error) {
	// 1. Input validation
	if creator.Empty() {
		return nil, types.ErrInvalidAddress.Wrap("creator cannot be empty")
	}
	if err := types.ValidatePair(tokenA, tokenB); err != nil {
		return nil, err
	}
	if err := types.ValidateFeeRate(feeRateBps); err != nil {
		return nil, err
	}

	// 2. Ensure consistent token ordering (lexicographic)
	tokenA, tokenB = types.CanonicalPair(tokenA, tokenB)

	params, err := k.GetParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("CreatePool: get params: %w", err)
	}

	// 3. Duplicate checks
	if params.AllowMultipleFeeTiers {
		if k.getStore(ctx).Has(PoolByPairKey(tokenA, tokenB, feeRateBps)) {
			return nil, types.ErrPoolAlreadyExists.Wrapf("pool already exists for %s/%s at %d bps", tokenA, tokenB, feeRateBps)
		}
	} else if existing, found := k.firstPoolForPair(ctx, tokenA, tokenB); found {
		return nil, types.ErrPoolAlreadyExists.Wrapf("pool %d already exists for token pair %s/%s", existing, tokenA, tokenB)
	}

	poolID := types.DerivePoolID(tokenA, tokenB, feeRateBps)
	if k.hasPool(ctx, poolID) {
		return nil, types.ErrPoolIDCollision.Wrapf("pool id %d already taken", poolID)
	}

	// 4. Create pool structure
	pool := &types.Pool{
		Id:          poolID,
		TokenA:      tokenA,
		TokenB:      tokenB,
		ReserveA:    math.ZeroInt(),
		ReserveB:    math.ZeroInt(),
		TotalShares: math.ZeroInt(),
		FeeRateBps:  feeRateBps,
		Creator:     creator.String(),
	}
	if err := pool.Validate(); err != nil {
		return nil, fmt.Errorf("CreatePool: validate pool state: %w", err)
	}

	// 5. Persist pool and index
	if err := k.SetPool(ctx, pool); err != nil {
		return nil, fmt.Errorf("CreatePool: save pool: %w", err)
	}
	k.getStore(ctx).Set(PoolByPairKey(tokenA, tokenB, feeRateBps), poolIDBytes(poolID))

	if k.metrics != nil {
		k.metrics.PoolsTotal.Inc()
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeCreatePool,
			sdk.NewAttribute(types.AttributeKeyPoolID, strconv.FormatUint(poolID, 10)),
			sdk.NewAttribute(types.AttributeKeyCreator, creator.String()),
			sdk.NewAttribute(types.AttributeKeyTokenA, tokenA),
			sdk.NewAttribute(types.AttributeKeyTokenB, tokenB),
			sdk.NewAttribute(types.AttributeKeyFeeBps, strconv.FormatUint(uint64(feeRateBps), 10)),
		),
	)

	k.Logger(ctx).Info("pool created", "pool_id", poolID, "token_a", tokenA, "token_b", tokenB, "fee_bps", feeRateBps)
	return pool, nil
}

// GetPool returns a pool by ID
func (k Keeper) GetPool(ctx context.Context, poolID uint64) (types.Pool, error) {
	bz := k.getStore(ctx).Get(PoolKey(poolID))
	if bz == nil {
		return types.Pool{}, types.ErrPoolNotFound.Wrapf("pool %d not found", poolID)
	}

	var pool types.Pool
	if err := json.Unmarshal(bz, &pool); err != nil {
		return types.Pool{}, fmt.Errorf("GetPool: unmarshal: %w", err)
	}
	return pool, nil
}

// SetPool stores a pool
func (k Keeper) SetPool(ctx context.Context, pool *types.Pool) error {
	bz, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("SetPool: marshal: %w", err)
	}
	k.getStore(ctx).Set(PoolKey(pool.Id), bz)

	if k.metrics != nil {
		id := strconv.FormatUint(pool.Id, 10)
		k.metrics.PoolReserves.WithLabelValues(id, pool.TokenA).Set(toFloat(pool.ReserveA))
		k.metrics.PoolReserves.WithLabelValues(id, pool.TokenB).Set(toFloat(pool.ReserveB))
		k.metrics.LPTokenSupply.WithLabelValues(id).Set(toFloat(pool.TotalShares))
	}
	return nil
}

// GetPoolByDenoms finds a pool by token pair and fee tier
func (k Keeper) GetPoolByDenoms(ctx context.Context, denomA, denomB string, feeRateBps uint32) (types.Pool, error) {
	bz := k.getStore(ctx).Get(PoolByPairKey(denomA, denomB, feeRateBps))
	if bz == nil {
		a, b := types.CanonicalPair(denomA, denomB)
		return types.Pool{}, types.ErrPoolNotFound.Wrapf("no pool for %s/%s at %d bps", a, b, feeRateBps)
	}
	return k.GetPool(ctx, binary.BigEndian.Uint64(bz))
}

// GetPoolsForPair returns every fee tier registered for a pair
func (k Keeper) GetPoolsForPair(ctx context.Context, denomA, denomB string) ([]types.Pool, error) {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), PoolByPairPrefix(denomA, denomB))
	defer iterator.Close()

	var pools []types.Pool
	for ; iterator.Valid(); iterator.Next() {
		pool, err := k.GetPool(ctx, binary.BigEndian.Uint64(iterator.Value()))
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, nil
}

// IteratePools iterates over all pools in ID order
func (k Keeper) IteratePools(ctx context.Context, cb func(pool types.Pool) (stop bool)) error {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), PoolKeyPrefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		var pool types.Pool
		if err := json.Unmarshal(iterator.Value(), &pool); err != nil {
			return fmt.Errorf("IteratePools: unmarshal: %w", err)
		}
		if cb(pool) {
			break
		}
	}
	return nil
}

// GetAllPools returns all pools
func (k Keeper) GetAllPools(ctx context.Context) ([]types.Pool, error) {
	var pools []types.Pool
	err := k.IteratePools(ctx, func(pool types.Pool) bool {
		pools = append(pools, pool)
		return false
	})
	return pools, err
}

func (k Keeper) hasPool(ctx context.Context, poolID uint64) bool {
	return k.getStore(ctx).Has(PoolKey(poolID))
}

func (k Keeper) firstPoolForPair(ctx context.Context, tokenA, tokenB string) (uint64, bool) {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), PoolByPairPrefix(tokenA, tokenB))
	defer iterator.Close()

	if !iterator.Valid() {
		return 0, false
	}
	return binary.BigEndian.Uint64(iterator.Value()), true
}

// getInitializedPool loads a pool and requires it to hold liquidity
func (k Keeper) getInitializedPool(ctx context.Context, poolID uint64) (types.Pool, error) {
	pool, err := k.GetPool(ctx, poolID)
	if err != nil {
		return types.Pool{}, err
	}
	if !pool.Initialized {
		return types.Pool{}, types.ErrPoolNotInitialized.Wrapf("pool %d has no liquidity", poolID)
	}
	return pool, nil
}

// toFloat converts an amount for metrics only
func toFloat(i math.Int) float64 {
	f, _ := new(big.Float).SetInt(i.BigInt()).Float64()
	return f
}
