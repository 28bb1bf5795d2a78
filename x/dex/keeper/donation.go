package keeper

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/pawdex/x/dex/types"
)

// GetTrackedBalance returns the balance of denom the module has accounted for.
func (k Keeper) GetTrackedBalance(ctx context.Context, denom string) (math.Int, error) {
	return getInt(k.getStore(ctx), TrackedBalanceKey(denom))
}

// GetTrackedBalances returns every accounted balance.
func (k Keeper) GetTrackedBalances(ctx context.Context) sdk.Coins {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), TrackedBalanceKeyPrefix)
	defer iterator.Close()

	coins := sdk.NewCoins()
	for ; iterator.Valid(); iterator.Next() {
		var amount math.Int
		if err := amount.Unmarshal(iterator.Value()); err != nil {
			k.Logger(ctx).Error("corrupt tracked balance entry", "key", string(iterator.Key()), "error", err)
			continue
		}
		coins = coins.Add(sdk.NewCoin(string(iterator.Key()[len(TrackedBalanceKeyPrefix):]), amount))
	}
	return coins
}

func (k Keeper) adjustTrackedBalance(ctx context.Context, coin sdk.Coin, add bool) error {
	store := k.getStore(ctx)
	current, err := getInt(store, TrackedBalanceKey(coin.Denom))
	if err != nil {
		return err
	}
	if add {
		return setInt(store, TrackedBalanceKey(coin.Denom), current.Add(coin.Amount))
	}
	next, err := SafeSub(current, coin.Amount)
	if err != nil {
		return types.ErrInvariantViolation.Wrapf("tracked balance of %s: %v", coin.Denom, err)
	}
	return setInt(store, TrackedBalanceKey(coin.Denom), next)
}

// sendToModule moves coins into the module account and accounts for them.
func (k Keeper) sendToModule(ctx context.Context, from sdk.AccAddress, coins sdk.Coins) error {
	if coins.IsZero() {
		return nil
	}
	if err := k.bankKeeper.SendCoins(ctx, from, k.moduleAddr, coins); err != nil {
		return types.ErrTransferFailed.Wrapf("from %s: %v", from, err)
	}
	for _, coin := range coins {
		if err := k.adjustTrackedBalance(ctx, coin, true); err != nil {
			return err
		}
	}
	return nil
}

// sendFromModule pays coins out of the module account.
func (k Keeper) sendFromModule(ctx context.Context, to sdk.AccAddress, coins sdk.Coins) error {
	if coins.IsZero() {
		return nil
	}
	for _, coin := range coins {
		if err := k.adjustTrackedBalance(ctx, coin, false); err != nil {
			return err
		}
	}
	if err := k.bankKeeper.SendCoins(ctx, k.moduleAddr, to, coins); err != nil {
		return types.ErrTransferFailed.Wrapf("to %s: %v", to, err)
	}
	return nil
}

// untrackedExcess returns actual - tracked for denom, floored at zero.
func (k Keeper) untrackedExcess(ctx context.Context, denom string) (actual, tracked, excess math.Int, err error) {
	tracked, err = k.GetTrackedBalance(ctx, denom)
	if err != nil {
		return math.Int{}, math.Int{}, math.Int{}, err
	}
	actual = k.bankKeeper.GetBalance(ctx, k.moduleAddr, denom).Amount
	excess = math.ZeroInt()
	if actual.GT(tracked) {
		excess = actual.Sub(tracked)
	}
	return actual, tracked, excess, nil
}

// CheckDonation rejects when the module holds more of a pool token than it
// has accounted for, beyond the configured tolerance.
func (k Keeper) CheckDonation(ctx context.Context, params types.Params, pool types.Pool) error {
	if !params.EnableDonationGuard {
		return nil
	}

	for _, denom := range []string{pool.TokenA, pool.TokenB} {
		actual, tracked, excess, err := k.untrackedExcess(ctx, denom)
		if err != nil {
			return fmt.Errorf("CheckDonation: %w", err)
		}
		if excess.IsZero() {
			continue
		}

		// allowed = tracked * tolerance / 10000
		allowed := tracked.MulRaw(int64(params.DonationToleranceBps)).QuoRaw(types.BpsDenominator)
		if excess.GT(allowed) {
			if k.metrics != nil {
				k.metrics.GuardRejections.WithLabelValues("donation").Inc()
			}
			k.Logger(ctx).Error("donation detected",
				"pool_id", pool.Id,
				"denom", denom,
				"actual", actual.String(),
				"tracked", tracked.String(),
			)
			return types.ErrDonationDetected.Wrapf("%s: balance %s exceeds tracked %s beyond %d bps", denom, actual, tracked, params.DonationToleranceBps)
		}
	}
	return nil
}

// SkimExcess sends the untracked balance of denom to the treasury so guarded
// operations can resume. Authority only.
func (k Keeper) SkimExcess(ctx context.Context, authority string, denom string) (math.Int, error) {
	if err := ValidateAuthority(k.authority, authority); err != nil {
		return math.ZeroInt(), err
	}

	_, _, excess, err := k.untrackedExcess(ctx, denom)
	if err != nil {
		return math.ZeroInt(), err
	}
	if excess.IsZero() {
		return math.ZeroInt(), types.ErrNothingToCollect.Wrapf("no untracked %s balance", denom)
	}

	params, err := k.GetParams(ctx)
	if err != nil {
		return math.ZeroInt(), fmt.Errorf("SkimExcess: get params: %w", err)
	}
	treasury, err := k.treasuryAddress(params)
	if err != nil {
		return math.ZeroInt(), err
	}

	// untracked tokens leave without touching the tracked balance
	coins := sdk.NewCoins(sdk.NewCoin(denom, excess))
	if err := k.bankKeeper.SendCoins(ctx, k.moduleAddr, treasury, coins); err != nil {
		return math.ZeroInt(), types.ErrTransferFailed.Wrapf("skim to %s: %v", treasury, err)
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeSkimExcess,
			sdk.NewAttribute(types.AttributeKeyDenom, denom),
			sdk.NewAttribute(types.AttributeKeyAmount, excess.String()),
			sdk.NewAttribute(types.AttributeKeyRecipient, treasury.String()),
		),
	)
	k.Logger(ctx).Info("skimmed untracked balance", "denom", denom, "amount", excess.String())
	return excess, nil
}
