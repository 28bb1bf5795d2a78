package keeper

import (
	"context"
	"encoding/json"
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/pawdex/x/dex/types"
)

// GetParams returns the current parameters from the store
func (k Keeper) GetParams(ctx context.Context) (types.Params, error) {
	store := k.getStore(ctx)
	bz := store.Get(ParamsKey)
	if bz == nil {
		return types.DefaultParams(), nil
	}

	var params types.Params
	if err := json.Unmarshal(bz, &params); err != nil {
		return types.Params{}, fmt.Errorf("GetParams: unmarshal: %w", err)
	}
	return params, nil
}

// SetParams validates and stores the parameters
func (k Keeper) SetParams(ctx context.Context, params types.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	bz, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("SetParams: marshal: %w", err)
	}
	k.getStore(ctx).Set(ParamsKey, bz)
	return nil
}

// UpdateParams replaces the module parameters. Authority only.
func (k Keeper) UpdateParams(ctx context.Context, authority string, params types.Params) error {
	if err := ValidateAuthority(k.authority, authority); err != nil {
		return err
	}
	if err := k.SetParams(ctx, params); err != nil {
		return err
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeUpdateParams,
			sdk.NewAttribute(sdk.AttributeKeyModule, types.ModuleName),
		),
	)
	k.Logger(ctx).Info("dex params updated", "authority", authority)
	return nil
}
