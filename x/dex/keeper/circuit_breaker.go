package keeper

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"

	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/pawdex/x/dex/types"
)

// GetBreakerState returns the breaker state of a pool, or a fresh window
// starting now if the breaker has never been updated.
func (k Keeper) GetBreakerState(ctx context.Context, poolID uint64, kind types.BreakerKind) (types.BreakerState, error) {
	bz := k.getStore(ctx).Get(CircuitBreakerKey(poolID, kind))
	if bz == nil {
		return types.NewBreakerState(sdk.UnwrapSDKContext(ctx).BlockTime().Unix()), nil
	}

	var state types.BreakerState
	if err := json.Unmarshal(bz, &state); err != nil {
		return types.BreakerState{}, fmt.Errorf("GetBreakerState: unmarshal: %w", err)
	}
	return state, nil
}

// SetBreakerState stores a breaker state
func (k Keeper) SetBreakerState(ctx context.Context, poolID uint64, kind types.BreakerKind, state types.BreakerState) error {
	bz, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("SetBreakerState: marshal: %w", err)
	}
	k.getStore(ctx).Set(CircuitBreakerKey(poolID, kind), bz)
	return nil
}

// CheckBreaker rejects while the breaker is tripped and cooling down. Once
// the cooldown has elapsed the breaker is usable again without any reset.
func (k Keeper) CheckBreaker(ctx context.Context, params types.Params, poolID uint64, kind types.BreakerKind) error {
	if !params.EnableCircuitBreakers {
		return nil
	}
	cfg, err := params.BreakerConfigFor(kind)
	if err != nil {
		return err
	}
	state, err := k.GetBreakerState(ctx, poolID, kind)
	if err != nil {
		return err
	}

	now := sdk.UnwrapSDKContext(ctx).BlockTime().Unix()
	if state.IsActive(cfg, now) {
		if k.metrics != nil {
			k.metrics.GuardRejections.WithLabelValues("breaker_" + string(kind)).Inc()
		}
		return types.ErrBreakerTripped.Wrapf("%s breaker for pool %d tripped at %d, cooling down until %d",
			kind, poolID, state.TrippedAt, state.TrippedAt+cfg.CooldownSeconds)
	}
	return nil
}

// UpdateBreaker accumulates value into the breaker's current window and trips
// it when the window total reaches the threshold. An expired trip is cleared
// first and an elapsed window restarts from zero.
func (k Keeper) UpdateBreaker(ctx context.Context, params types.Params, poolID uint64, kind types.BreakerKind, value math.LegacyDec) error {
	if !params.EnableCircuitBreakers || value.IsNil() || !value.IsPositive() {
		return nil
	}
	cfg, err := params.BreakerConfigFor(kind)
	if err != nil {
		return err
	}
	state, err := k.GetBreakerState(ctx, poolID, kind)
	if err != nil {
		return err
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	now := sdkCtx.BlockTime().Unix()

	if state.Tripped && !state.IsActive(cfg, now) {
		state = types.NewBreakerState(now)
	}
	if !state.Tripped && now >= state.WindowStart+cfg.WindowSeconds {
		state.WindowStart = now
		state.WindowValue = math.LegacyZeroDec()
	}
	if state.WindowValue.IsNil() {
		state.WindowValue = math.LegacyZeroDec()
	}
	state.WindowValue = state.WindowValue.Add(value)

	if !state.Tripped && state.WindowValue.GTE(cfg.Threshold) {
		state.Tripped = true
		state.TrippedAt = now

		if k.metrics != nil {
			k.metrics.CircuitBreakerTriggers.WithLabelValues(strconv.FormatUint(poolID, 10), string(kind)).Inc()
		}
		sdkCtx.EventManager().EmitEvent(
			sdk.NewEvent(
				types.EventTypeCircuitBreakerTripped,
				sdk.NewAttribute(types.AttributeKeyPoolID, strconv.FormatUint(poolID, 10)),
				sdk.NewAttribute(types.AttributeKeyBreakerKind, string(kind)),
				sdk.NewAttribute(types.AttributeKeyWindowValue, state.WindowValue.String()),
				sdk.NewAttribute(types.AttributeKeyThreshold, cfg.Threshold.String()),
			),
		)
		k.Logger(ctx).Warn("circuit breaker tripped",
			"pool_id", poolID,
			"kind", kind,
			"window_value", state.WindowValue.String(),
			"threshold", cfg.Threshold.String(),
		)
	}

	return k.SetBreakerState(ctx, poolID, kind, state)
}

// ResetBreaker clears a breaker explicitly. Authority only.
func (k Keeper) ResetBreaker(ctx context.Context, authority string, poolID uint64, kind types.BreakerKind) error {
	if err := ValidateAuthority(k.authority, authority); err != nil {
		return err
	}
	if err := kind.Validate(); err != nil {
		return err
	}
	if !k.hasPool(ctx, poolID) {
		return types.ErrPoolNotFound.Wrapf("pool %d not found", poolID)
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	if err := k.SetBreakerState(ctx, poolID, kind, types.NewBreakerState(sdkCtx.BlockTime().Unix())); err != nil {
		return err
	}

	if k.metrics != nil {
		k.metrics.CircuitBreakerResets.WithLabelValues(strconv.FormatUint(poolID, 10), string(kind)).Inc()
	}
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeCircuitBreakerReset,
			sdk.NewAttribute(types.AttributeKeyPoolID, strconv.FormatUint(poolID, 10)),
			sdk.NewAttribute(types.AttributeKeyBreakerKind, string(kind)),
		),
	)
	k.Logger(ctx).Info("circuit breaker reset", "pool_id", poolID, "kind", kind, "authority", authority)
	return nil
}

// GetAllBreakers returns every stored breaker state
func (k Keeper) GetAllBreakers(ctx context.Context) ([]types.PoolBreaker, error) {
	iterator := storetypes.KVStorePrefixIterator(k.getStore(ctx), CircuitBreakerKeyPrefix)
	defer iterator.Close()

	var breakers []types.PoolBreaker
	for ; iterator.Valid(); iterator.Next() {
		key := iterator.Key()[len(CircuitBreakerKeyPrefix):]
		if len(key) <= 8 {
			return nil, types.ErrInvalidPoolState.Wrap("malformed breaker key")
		}
		var state types.BreakerState
		if err := json.Unmarshal(iterator.Value(), &state); err != nil {
			return nil, fmt.Errorf("GetAllBreakers: unmarshal: %w", err)
		}
		breakers = append(breakers, types.PoolBreaker{
			PoolId: binary.BigEndian.Uint64(key[:8]),
			Kind:   types.BreakerKind(key[8:]),
			State:  state,
		})
	}
	return breakers, nil
}
