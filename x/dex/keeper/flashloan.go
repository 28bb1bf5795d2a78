package keeper

import (
	"context"
	"strconv"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/pawdex/x/dex/types"
)

// sameSlotMarker is the value stored under a same-slot key
var sameSlotMarker = []byte{0x01}

// CheckSameSlot rejects a second interaction by caller with poolID within the
// current block. The marker lives in the transient store, so the block
// boundary is the only thing that clears it.
func (k Keeper) CheckSameSlot(ctx context.Context, params types.Params, poolID uint64, caller sdk.AccAddress) error {
	if !params.EnableSameSlotGuard {
		return nil
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if !k.getTransientStore(ctx).Has(SameSlotKey(sdkCtx.BlockHeight(), poolID, caller)) {
		return nil
	}

	if k.metrics != nil {
		k.metrics.GuardRejections.WithLabelValues("same_slot").Inc()
	}
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeSameSlotBlocked,
			sdk.NewAttribute(types.AttributeKeyPoolID, strconv.FormatUint(poolID, 10)),
			sdk.NewAttribute(types.AttributeKeyTrader, caller.String()),
		),
	)
	return types.ErrSameSlotInteraction.Wrapf("%s already interacted with pool %d at height %d", caller, poolID, sdkCtx.BlockHeight())
}

// markSameSlot records an interaction. Called in the write phase of an
// operation so a rejected call leaves no marker behind.
func (k Keeper) markSameSlot(ctx context.Context, params types.Params, poolID uint64, caller sdk.AccAddress) {
	if !params.EnableSameSlotGuard {
		return
	}
	sdkCtx := sdk.UnwrapSDKContext(ctx)
	k.getTransientStore(ctx).Set(SameSlotKey(sdkCtx.BlockHeight(), poolID, caller), sameSlotMarker)
}
