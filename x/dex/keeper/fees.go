package keeper

import (
	"context"
	"fmt"
	"strings"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"

	"github.com/paw-chain/pawdex/x/dex/types"
)

// getInt reads an amount stored under key, zero when absent
func getInt(store storetypes.KVStore, key []byte) (math.Int, error) {
	bz := store.Get(key)
	if bz == nil {
		return math.ZeroInt(), nil
	}
	var amount math.Int
	if err := amount.Unmarshal(bz); err != nil {
		return math.Int{}, types.ErrInvalidPoolState.Wrapf("failed to unmarshal amount: %v", err)
	}
	return amount, nil
}

// setInt writes an amount under key; zero deletes the entry
func setInt(store storetypes.KVStore, key []byte, amount math.Int) error {
	if amount.IsNegative() {
		return types.ErrInvalidPoolState.Wrapf("negative amount %s", amount)
	}
	if amount.IsZero() {
		store.Delete(key)
		return nil
	}
	bz, err := amount.Marshal()
	if err != nil {
		return types.ErrInvalidPoolState.Wrap("failed to marshal amount")
	}
	store.Set(key, bz)
	return nil
}

// GetProtocolFee returns the accrued protocol fee of a denom
func (k Keeper) GetProtocolFee(ctx context.Context, denom string) (math.Int, error) {
	return getInt(k.getStore(ctx), ProtocolFeeKey(denom))
}

// GetProtocolFees returns all accrued, uncollected protocol fees
func (k Keeper) GetProtocolFees(ctx context.Context) sdk.Coins {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), ProtocolFeeKeyPrefix)
	defer iterator.Close()

	coins := sdk.NewCoins()
	for ; iterator.Valid(); iterator.Next() {
		var amount math.Int
		if err := amount.Unmarshal(iterator.Value()); err != nil {
			k.Logger(ctx).Error("corrupt protocol fee entry", "key", string(iterator.Key()), "error", err)
			continue
		}
		denom := string(iterator.Key()[len(ProtocolFeeKeyPrefix):])
		coins = coins.Add(sdk.NewCoin(denom, amount))
	}
	return coins
}

// accrueProtocolFee adds to the protocol fee ledger. The tokens stay in the
// module account and remain part of its tracked balance until collected.
func (k Keeper) accrueProtocolFee(ctx context.Context, denom string, amount math.Int) error {
	if !amount.IsPositive() {
		return nil
	}
	store := k.getStore(ctx)
	current, err := getInt(store, ProtocolFeeKey(denom))
	if err != nil {
		return err
	}
	return setInt(store, ProtocolFeeKey(denom), current.Add(amount))
}

// treasuryAddress returns the configured treasury or the fee collector
func (k Keeper) treasuryAddress(params types.Params) (sdk.AccAddress, error) {
	if strings.TrimSpace(params.Treasury) == "" {
		return authtypes.NewModuleAddress(authtypes.FeeCollectorName), nil
	}
	addr, err := sdk.AccAddressFromBech32(params.Treasury)
	if err != nil {
		return nil, types.ErrInvalidParams.Wrapf("treasury: %v", err)
	}
	return addr, nil
}

// CollectFees sweeps the accrued protocol fee of denom to the treasury.
// Authority only.
func (k Keeper) CollectFees(ctx context.Context, authority string, denom string) (math.Int, error) {
	if err := ValidateAuthority(k.authority, authority); err != nil {
		return math.ZeroInt(), err
	}

	amount, err := k.GetProtocolFee(ctx, denom)
	if err != nil {
		return math.ZeroInt(), err
	}
	if !amount.IsPositive() {
		return math.ZeroInt(), types.ErrNothingToCollect.Wrapf("no protocol fees accrued for %s", denom)
	}

	params, err := k.GetParams(ctx)
	if err != nil {
		return math.ZeroInt(), fmt.Errorf("CollectFees: get params: %w", err)
	}
	treasury, err := k.treasuryAddress(params)
	if err != nil {
		return math.ZeroInt(), err
	}

	if err := k.sendFromModule(ctx, treasury, sdk.NewCoins(sdk.NewCoin(denom, amount))); err != nil {
		return math.ZeroInt(), err
	}
	if err := setInt(k.getStore(ctx), ProtocolFeeKey(denom), math.ZeroInt()); err != nil {
		return math.ZeroInt(), fmt.Errorf("CollectFees: clear ledger: %w", err)
	}

	if k.metrics != nil {
		k.metrics.ProtocolFeesCollected.WithLabelValues(denom).Add(toFloat(amount))
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeCollectFees,
			sdk.NewAttribute(types.AttributeKeyDenom, denom),
			sdk.NewAttribute(types.AttributeKeyAmount, amount.String()),
			sdk.NewAttribute(types.AttributeKeyRecipient, treasury.String()),
		),
	)
	return amount, nil
}
