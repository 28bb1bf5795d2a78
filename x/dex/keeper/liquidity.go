package keeper

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/pawdex/x/dex/types"
)

// GetLiquidity retrieves a holder's share position in a pool
func (k Keeper) GetLiquidity(ctx context.Context, poolID uint64, holder sdk.AccAddress) (math.Int, error) {
	return getInt(k.getStore(ctx), LiquidityKey(poolID, holder))
}

// SetLiquidity sets a holder's share position in a pool; zero removes it
func (k Keeper) SetLiquidity(ctx context.Context, poolID uint64, holder sdk.AccAddress, shares math.Int) error {
	return setInt(k.getStore(ctx), LiquidityKey(poolID, holder), shares)
}

// IterateLiquidityByPool iterates over all share positions in a pool
func (k Keeper) IterateLiquidityByPool(ctx context.Context, poolID uint64, cb func(holder sdk.AccAddress, shares math.Int) (stop bool)) error {
	prefix := LiquidityPoolPrefix(poolID)
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), prefix)
	defer iterator.Close()

	for ; iterator.Valid(); iterator.Next() {
		var shares math.Int
		if err := shares.Unmarshal(iterator.Value()); err != nil {
			return fmt.Errorf("IterateLiquidityByPool: unmarshal: %w", err)
		}
		holder := sdk.AccAddress(iterator.Key()[len(prefix):])
		if cb(holder, shares) {
			break
		}
	}
	return nil
}

// GetAllPositions returns every share position across all pools
func (k Keeper) GetAllPositions(ctx context.Context) ([]types.LiquidityPosition, error) {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), LiquidityKeyPrefix)
	defer iterator.Close()

	var positions []types.LiquidityPosition
	for ; iterator.Valid(); iterator.Next() {
		key := iterator.Key()[len(LiquidityKeyPrefix):]
		if len(key) <= 8 {
			return nil, types.ErrInvalidPoolState.Wrap("malformed liquidity key")
		}
		var shares math.Int
		if err := shares.Unmarshal(iterator.Value()); err != nil {
			return nil, fmt.Errorf("GetAllPositions: unmarshal: %w", err)
		}
		positions = append(positions, types.LiquidityPosition{
			PoolId: binary.BigEndian.Uint64(key[:8]),
			Holder: sdk.AccAddress(key[8:]).String(),
			Shares: shares,
		})
	}
	return positions, nil
}

// optimalDeposit applies the ratio-preserving router rule. Empty reserves take
// the desired amounts as-is.
func optimalDeposit(pool types.Pool, amountADesired, amountBDesired, amountAMin, amountBMin math.Int) (math.Int, math.Int, error) {
	if !pool.Initialized {
		return amountADesired, amountBDesired, nil
	}

	amountBOptimal, err := SafeMulDiv(amountADesired, pool.ReserveB, pool.ReserveA)
	if err != nil {
		return math.Int{}, math.Int{}, types.ErrOverflow.Wrap(err.Error())
	}
	if amountBOptimal.LTE(amountBDesired) {
		if amountBOptimal.LT(amountBMin) {
			return math.Int{}, math.Int{}, types.ErrSlippageExceeded.Wrapf("amount B %s below minimum %s", amountBOptimal, amountBMin)
		}
		return amountADesired, amountBOptimal, nil
	}

	amountAOptimal, err := SafeMulDiv(amountBDesired, pool.ReserveA, pool.ReserveB)
	if err != nil {
		return math.Int{}, math.Int{}, types.ErrOverflow.Wrap(err.Error())
	}
	if amountAOptimal.LT(amountAMin) {
		return math.Int{}, math.Int{}, types.ErrSlippageExceeded.Wrapf("amount A %s below minimum %s", amountAOptimal, amountAMin)
	}
	return amountAOptimal, amountBDesired, nil
}

// AddLiquidity deposits into a pool at its current ratio and mints shares.
// The first deposit mints sqrt(amountA*amountB), locks MinimumLiquidity of it
// forever and seeds the price oracle. Returns the shares credited to provider.
func (k Keeper) AddLiquidity(ctx context.Context, provider sdk.AccAddress, poolID uint64, amountADesired, amountBDesired, amountAMin, amountBMin math.Int) (math.Int, error) {
	var credited math.Int
	err := atomically(ctx, func(ctx sdk.Context) (err error) {
		credited, err = k.addLiquidity(ctx, provider, poolID, amountADesired, amountBDesired, amountAMin, amountBMin)
		return err
	})
	if err != nil {
		return math.ZeroInt(), err
	}
	return credited, nil
}

func (k Keeper) addLiquidity(ctx context.Context, provider sdk.AccAddress, poolID uint64, amountADesired, amountBDesired, amountAMin, amountBMin math.Int) (math.Int, error) {
	// 1. Input validation
	if provider.Empty() {
		return math.ZeroInt(), types.ErrInvalidAddress.Wrap("provider cannot be empty")
	}
	if amountADesired.IsNil() || amountBDesired.IsNil() || !amountADesired.IsPositive() || !amountBDesired.IsPositive() {
		return math.ZeroInt(), types.ErrInvalidAmount.Wrap("desired amounts must be positive")
	}
	if amountAMin.IsNil() || amountBMin.IsNil() || amountAMin.IsNegative() || amountBMin.IsNegative() {
		return math.ZeroInt(), types.ErrInvalidAmount.Wrap("minimum amounts cannot be negative")
	}

	pool, err := k.GetPool(ctx, poolID)
	if err != nil {
		return math.ZeroInt(), err
	}
	params, err := k.GetParams(ctx)
	if err != nil {
		return math.ZeroInt(), fmt.Errorf("AddLiquidity: get params: %w", err)
	}

	// 2. Guards
	if err := k.CheckSameSlot(ctx, params, poolID, provider); err != nil {
		return math.ZeroInt(), err
	}
	if err := k.CheckDonation(ctx, params, pool); err != nil {
		return math.ZeroInt(), err
	}

	// 3. Deposit amounts
	amountA, amountB, err := optimalDeposit(pool, amountADesired, amountBDesired, amountAMin, amountBMin)
	if err != nil {
		return math.ZeroInt(), err
	}
	if amountA.LT(amountAMin) || amountB.LT(amountBMin) {
		return math.ZeroInt(), types.ErrSlippageExceeded.Wrapf("deposit %s/%s below minimums %s/%s", amountA, amountB, amountAMin, amountBMin)
	}

	// 4. Shares to mint
	firstDeposit := !pool.Initialized
	var minted, credited math.Int
	if firstDeposit {
		minted, err = SqrtInt(amountA, amountB)
		if err != nil {
			return math.ZeroInt(), types.ErrOverflow.Wrap(err.Error())
		}
		if minted.LTE(math.NewInt(types.MinimumLiquidity)) {
			return math.ZeroInt(), types.ErrInsufficientLiquidityMinted.Wrapf("initial liquidity %s must exceed locked minimum %d", minted, types.MinimumLiquidity)
		}
		credited = minted.SubRaw(types.MinimumLiquidity)
	} else {
		sharesA, err := SafeMulDiv(amountA, pool.TotalShares, pool.ReserveA)
		if err != nil {
			return math.ZeroInt(), types.ErrOverflow.Wrap(err.Error())
		}
		sharesB, err := SafeMulDiv(amountB, pool.TotalShares, pool.ReserveB)
		if err != nil {
			return math.ZeroInt(), types.ErrOverflow.Wrap(err.Error())
		}
		minted = math.MinInt(sharesA, sharesB)
		credited = minted
	}
	if !credited.IsPositive() {
		return math.ZeroInt(), types.ErrInsufficientLiquidityMinted.Wrap("deposit too small to mint shares")
	}

	holderShares, err := k.GetLiquidity(ctx, poolID, provider)
	if err != nil {
		return math.ZeroInt(), err
	}

	// 5. Transfer tokens FIRST, then update state
	if err := k.sendToModule(ctx, provider, sdk.NewCoins(
		sdk.NewCoin(pool.TokenA, amountA),
		sdk.NewCoin(pool.TokenB, amountB),
	)); err != nil {
		return math.ZeroInt(), err
	}

	pool.ReserveA = pool.ReserveA.Add(amountA)
	pool.ReserveB = pool.ReserveB.Add(amountB)
	pool.TotalShares = pool.TotalShares.Add(minted)
	pool.Initialized = true
	if err := pool.Validate(); err != nil {
		return math.ZeroInt(), err
	}
	if err := k.SetPool(ctx, &pool); err != nil {
		return math.ZeroInt(), err
	}

	if err := k.SetLiquidity(ctx, poolID, provider, holderShares.Add(credited)); err != nil {
		return math.ZeroInt(), err
	}

	spot, err := pool.SpotPrice()
	if err != nil {
		return math.ZeroInt(), err
	}
	if firstDeposit {
		if err := k.SetLiquidity(ctx, poolID, types.LockedLiquidityAddress, math.NewInt(types.MinimumLiquidity)); err != nil {
			return math.ZeroInt(), err
		}
		if err := k.InitializeOracle(ctx, params, poolID, spot); err != nil {
			return math.ZeroInt(), fmt.Errorf("AddLiquidity: initialize oracle: %w", err)
		}
	} else if err := k.WriteObservation(ctx, poolID, spot); err != nil {
		return math.ZeroInt(), fmt.Errorf("AddLiquidity: write observation: %w", err)
	}

	k.markSameSlot(ctx, params, poolID, provider)

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeAddLiquidity,
			sdk.NewAttribute(types.AttributeKeyPoolID, strconv.FormatUint(poolID, 10)),
			sdk.NewAttribute(types.AttributeKeyProvider, provider.String()),
			sdk.NewAttribute(types.AttributeKeyAmountA, amountA.String()),
			sdk.NewAttribute(types.AttributeKeyAmountB, amountB.String()),
			sdk.NewAttribute(types.AttributeKeyShares, credited.String()),
		),
	)

	if k.metrics != nil {
		k.metrics.LiquidityAdded.WithLabelValues(strconv.FormatUint(poolID, 10)).Inc()
	}

	return credited, nil
}

// RemoveLiquidity burns shares and pays out the pro-rata reserves, floored.
// Gated by the withdrawal breaker, which then accumulates shares/total.
func (k Keeper) RemoveLiquidity(ctx context.Context, provider sdk.AccAddress, poolID uint64, shares, amountAMin, amountBMin math.Int) (math.Int, math.Int, error) {
	var amountA, amountB math.Int
	err := atomically(ctx, func(ctx sdk.Context) (err error) {
		amountA, amountB, err = k.removeLiquidity(ctx, provider, poolID, shares, amountAMin, amountBMin)
		return err
	})
	if err != nil {
		return math.ZeroInt(), math.ZeroInt(), err
	}
	return amountA, amountB, nil
}

func (k Keeper) removeLiquidity(ctx context.Context, provider sdk.AccAddress, poolID uint64, shares, amountAMin, amountBMin math.Int) (math.Int, math.Int, error) {
	// 1. Input validation
	if provider.Empty() {
		return math.ZeroInt(), math.ZeroInt(), types.ErrInvalidAddress.Wrap("provider cannot be empty")
	}
	if shares.IsNil() || !shares.IsPositive() {
		return math.ZeroInt(), math.ZeroInt(), types.ErrInsufficientShares.Wrap("shares must be positive")
	}
	if amountAMin.IsNil() || amountBMin.IsNil() || amountAMin.IsNegative() || amountBMin.IsNegative() {
		return math.ZeroInt(), math.ZeroInt(), types.ErrInvalidAmount.Wrap("minimum amounts cannot be negative")
	}

	pool, err := k.getInitializedPool(ctx, poolID)
	if err != nil {
		return math.ZeroInt(), math.ZeroInt(), err
	}
	params, err := k.GetParams(ctx)
	if err != nil {
		return math.ZeroInt(), math.ZeroInt(), fmt.Errorf("RemoveLiquidity: get params: %w", err)
	}

	holderShares, err := k.GetLiquidity(ctx, poolID, provider)
	if err != nil {
		return math.ZeroInt(), math.ZeroInt(), err
	}
	if shares.GT(holderShares) {
		return math.ZeroInt(), math.ZeroInt(), types.ErrInsufficientShares.Wrapf("have %s, need %s", holderShares, shares)
	}

	// 2. Guards
	if err := k.CheckSameSlot(ctx, params, poolID, provider); err != nil {
		return math.ZeroInt(), math.ZeroInt(), err
	}
	if err := k.CheckDonation(ctx, params, pool); err != nil {
		return math.ZeroInt(), math.ZeroInt(), err
	}
	if err := k.CheckBreaker(ctx, params, poolID, types.BreakerWithdrawal); err != nil {
		return math.ZeroInt(), math.ZeroInt(), err
	}

	// 3. Payout
	amountA, err := SafeMulDiv(shares, pool.ReserveA, pool.TotalShares)
	if err != nil {
		return math.ZeroInt(), math.ZeroInt(), types.ErrOverflow.Wrap(err.Error())
	}
	amountB, err := SafeMulDiv(shares, pool.ReserveB, pool.TotalShares)
	if err != nil {
		return math.ZeroInt(), math.ZeroInt(), types.ErrOverflow.Wrap(err.Error())
	}
	if amountA.LT(amountAMin) || amountB.LT(amountBMin) {
		return math.ZeroInt(), math.ZeroInt(), types.ErrSlippageExceeded.Wrapf("payout %s/%s below minimums %s/%s", amountA, amountB, amountAMin, amountBMin)
	}
	if amountA.IsZero() && amountB.IsZero() {
		return math.ZeroInt(), math.ZeroInt(), types.ErrInvalidAmount.Wrap("withdrawal amounts too small")
	}
	if amountA.GTE(pool.ReserveA) || amountB.GTE(pool.ReserveB) {
		return math.ZeroInt(), math.ZeroInt(), types.ErrInsufficientReserves.Wrap("withdrawal would drain the pool")
	}

	withdrawnFraction := math.LegacyNewDecFromInt(shares).QuoInt(pool.TotalShares)

	// 4. Update state, then transfer
	pool.ReserveA = pool.ReserveA.Sub(amountA)
	pool.ReserveB = pool.ReserveB.Sub(amountB)
	pool.TotalShares = pool.TotalShares.Sub(shares)
	if err := pool.Validate(); err != nil {
		return math.ZeroInt(), math.ZeroInt(), err
	}
	if err := k.SetPool(ctx, &pool); err != nil {
		return math.ZeroInt(), math.ZeroInt(), err
	}
	if err := k.SetLiquidity(ctx, poolID, provider, holderShares.Sub(shares)); err != nil {
		return math.ZeroInt(), math.ZeroInt(), err
	}

	if err := k.sendFromModule(ctx, provider, sdk.NewCoins(
		sdk.NewCoin(pool.TokenA, amountA),
		sdk.NewCoin(pool.TokenB, amountB),
	)); err != nil {
		return math.ZeroInt(), math.ZeroInt(), err
	}

	spot, err := pool.SpotPrice()
	if err != nil {
		return math.ZeroInt(), math.ZeroInt(), err
	}
	if err := k.WriteObservation(ctx, poolID, spot); err != nil {
		return math.ZeroInt(), math.ZeroInt(), fmt.Errorf("RemoveLiquidity: write observation: %w", err)
	}
	if err := k.UpdateBreaker(ctx, params, poolID, types.BreakerWithdrawal, withdrawnFraction); err != nil {
		return math.ZeroInt(), math.ZeroInt(), fmt.Errorf("RemoveLiquidity: update breaker: %w", err)
	}

	k.markSameSlot(ctx, params, poolID, provider)

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeRemoveLiquidity,
			sdk.NewAttribute(types.AttributeKeyPoolID, strconv.FormatUint(poolID, 10)),
			sdk.NewAttribute(types.AttributeKeyProvider, provider.String()),
			sdk.NewAttribute(types.AttributeKeyAmountA, amountA.String()),
			sdk.NewAttribute(types.AttributeKeyAmountB, amountB.String()),
			sdk.NewAttribute(types.AttributeKeyShares, shares.String()),
		),
	)

	if k.metrics != nil {
		k.metrics.LiquidityRemoved.WithLabelValues(strconv.FormatUint(poolID, 10)).Inc()
	}

	return amountA, amountB, nil
}
