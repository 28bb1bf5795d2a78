package keeper

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/pawdex/x/dex/types"
)

// The oracle is a per-pool ring buffer of cumulative prices, following the
// Uniswap V3 observation layout: Index points at the newest slot, Cardinality
// slots are in use and CardinalityNext is the capacity the ring expands to the
// next time Index wraps.

// GetOracleState returns a pool's oracle header.
func (k Keeper) GetOracleState(ctx context.Context, poolID uint64) (types.OracleState, bool, error) {
	bz := k.getStore(ctx).Get(OracleStateKey(poolID))
	if bz == nil {
		return types.OracleState{}, false, nil
	}
	var state types.OracleState
	if err := json.Unmarshal(bz, &state); err != nil {
		return types.OracleState{}, false, fmt.Errorf("GetOracleState: unmarshal: %w", err)
	}
	return state, true, nil
}

func (k Keeper) setOracleState(ctx context.Context, poolID uint64, state types.OracleState) error {
	bz, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("setOracleState: marshal: %w", err)
	}
	k.getStore(ctx).Set(OracleStateKey(poolID), bz)
	return nil
}

func (k Keeper) getObservation(ctx context.Context, poolID uint64, index uint32) (types.Observation, bool, error) {
	bz := k.getStore(ctx).Get(ObservationKey(poolID, index))
	if bz == nil {
		return types.Observation{}, false, nil
	}
	var obs types.Observation
	if err := json.Unmarshal(bz, &obs); err != nil {
		return types.Observation{}, false, fmt.Errorf("getObservation: unmarshal: %w", err)
	}
	return obs, true, nil
}

func (k Keeper) setObservation(ctx context.Context, poolID uint64, index uint32, obs types.Observation) error {
	bz, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("setObservation: marshal: %w", err)
	}
	k.getStore(ctx).Set(ObservationKey(poolID, index), bz)
	return nil
}

// InitializeOracle writes the first observation of a pool at the current
// block time with the given starting price.
func (k Keeper) InitializeOracle(ctx context.Context, params types.Params, poolID uint64, price math.LegacyDec) error {
	if _, found, err := k.GetOracleState(ctx, poolID); err != nil {
		return err
	} else if found {
		return k.WriteObservation(ctx, poolID, price)
	}

	now := sdk.UnwrapSDKContext(ctx).BlockTime().Unix()
	if err := k.setObservation(ctx, poolID, 0, types.Observation{
		Timestamp:       now,
		CumulativePrice: math.LegacyZeroDec(),
	}); err != nil {
		return err
	}

	state := types.OracleState{
		Index:           0,
		Cardinality:     1,
		CardinalityNext: params.InitialOracleCardinality,
		LastPrice:       price,
	}
	if k.metrics != nil {
		k.metrics.OracleWrites.Inc()
		k.metrics.OracleCardinality.WithLabelValues(strconv.FormatUint(poolID, 10)).Set(float64(state.CardinalityNext))
	}
	return k.setOracleState(ctx, poolID, state)
}

// WriteObservation accumulates the price in effect since the newest
// observation and records newPrice as the price from now on. A second write
// in the same second only replaces the price in effect.
func (k Keeper) WriteObservation(ctx context.Context, poolID uint64, newPrice math.LegacyDec) error {
	state, found, err := k.GetOracleState(ctx, poolID)
	if err != nil {
		return err
	}
	if !found {
		return types.ErrInsufficientHistory.Wrapf("oracle for pool %d not initialized", poolID)
	}

	last, ok, err := k.getObservation(ctx, poolID, state.Index)
	if err != nil {
		return err
	}
	if !ok {
		return types.ErrInvalidPoolState.Wrapf("oracle slot %d of pool %d missing", state.Index, poolID)
	}

	now := sdk.UnwrapSDKContext(ctx).BlockTime().Unix()
	if now < last.Timestamp {
		return types.ErrInvalidPoolState.Wrapf("block time %d before last observation %d", now, last.Timestamp)
	}

	if now > last.Timestamp {
		cardinality := state.Cardinality
		if state.CardinalityNext > cardinality && state.Index == cardinality-1 {
			cardinality = state.CardinalityNext
		}
		next := (state.Index + 1) % cardinality

		obs := types.Observation{
			Timestamp:       now,
			CumulativePrice: last.CumulativePrice.Add(state.LastPrice.MulInt64(now - last.Timestamp)),
		}
		if err := k.setObservation(ctx, poolID, next, obs); err != nil {
			return err
		}
		state.Index = next
		state.Cardinality = cardinality

		if k.metrics != nil {
			k.metrics.OracleWrites.Inc()
		}
	}

	state.LastPrice = newPrice
	return k.setOracleState(ctx, poolID, state)
}

// GrowOracle raises the ring capacity of a pool's oracle. Capacity never
// shrinks; a request at or below the current capacity is a no-op. Each new
// slot is charged to the caller's gas meter.
func (k Keeper) GrowOracle(ctx context.Context, poolID uint64, newCardinality uint32) (uint32, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return 0, fmt.Errorf("GrowOracle: get params: %w", err)
	}
	if newCardinality > params.MaxOracleCardinality {
		return 0, types.ErrInvalidCardinality.Wrapf("requested %d exceeds maximum %d", newCardinality, params.MaxOracleCardinality)
	}

	state, found, err := k.GetOracleState(ctx, poolID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, types.ErrPoolNotInitialized.Wrapf("pool %d has no oracle yet", poolID)
	}
	if newCardinality <= state.CardinalityNext {
		return state.CardinalityNext, nil
	}

	sdkCtx := sdk.UnwrapSDKContext(ctx)
	added := uint64(newCardinality - state.CardinalityNext)
	sdkCtx.GasMeter().ConsumeGas(added*params.OracleGrowGasPerSlot, "dex oracle grow")

	previous := state.CardinalityNext
	state.CardinalityNext = newCardinality
	if err := k.setOracleState(ctx, poolID, state); err != nil {
		return 0, err
	}

	if k.metrics != nil {
		k.metrics.OracleCardinality.WithLabelValues(strconv.FormatUint(poolID, 10)).Set(float64(newCardinality))
	}
	sdkCtx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeOracleGrow,
			sdk.NewAttribute(types.AttributeKeyPoolID, strconv.FormatUint(poolID, 10)),
			sdk.NewAttribute(types.AttributeKeyCardinality, strconv.FormatUint(uint64(newCardinality), 10)),
		),
	)
	k.Logger(ctx).Debug("oracle grown", "pool_id", poolID, "from", previous, "to", newCardinality)
	return newCardinality, nil
}

// GetObservations returns a pool's observations, oldest first.
func (k Keeper) GetObservations(ctx context.Context, poolID uint64) ([]types.Observation, error) {
	state, found, err := k.GetOracleState(ctx, poolID)
	if err != nil || !found {
		return nil, err
	}
	oldest, count, err := k.ringBounds(ctx, poolID, state)
	if err != nil {
		return nil, err
	}

	out := make([]types.Observation, 0, count)
	for i := uint32(0); i < count; i++ {
		obs, _, err := k.getObservation(ctx, poolID, (oldest+i)%state.Cardinality)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, nil
}

// ringBounds returns the slot of the oldest observation and the number of
// written observations. Slots past Index stay unwritten until the ring wraps
// after an expansion, so the oldest is slot 0 in that case.
func (k Keeper) ringBounds(ctx context.Context, poolID uint64, state types.OracleState) (uint32, uint32, error) {
	next := (state.Index + 1) % state.Cardinality
	if _, ok, err := k.getObservation(ctx, poolID, next); err != nil {
		return 0, 0, err
	} else if ok {
		return next, state.Cardinality, nil
	}
	return 0, state.Index + 1, nil
}

// TWAPWindow proves that a pool's oracle covers a trailing period. It can
// only be obtained from CanConsult, which is the only way to compute a TWAP.
type TWAPWindow struct {
	valid  bool
	poolID uint64
	base   types.Observation
	cumNow math.LegacyDec
	now    int64
	period int64
}

// PoolID returns the pool the window belongs to.
func (w TWAPWindow) PoolID() uint64 { return w.poolID }

// Period returns the requested trailing period in seconds.
func (w TWAPWindow) Period() int64 { return w.period }

// Elapsed returns the seconds between the base observation and now.
func (w TWAPWindow) Elapsed() int64 { return w.now - w.base.Timestamp }

// Price returns the time-weighted average price of token A in token B.
// It panics on a window that did not come from CanConsult.
func (w TWAPWindow) Price() math.LegacyDec {
	if !w.valid {
		panic("dex: TWAPWindow.Price called on a window not returned by CanConsult")
	}
	return w.cumNow.Sub(w.base.CumulativePrice).QuoInt64(w.Elapsed())
}

// CanConsult reports whether the oracle holds at least two observations and
// its oldest one is at or before now-period. When it does, the returned
// window is anchored at the newest observation at or before now-period.
func (k Keeper) CanConsult(ctx context.Context, poolID uint64, periodSeconds int64) (TWAPWindow, bool, error) {
	if periodSeconds <= 0 {
		return TWAPWindow{}, false, types.ErrInvalidPeriod.Wrapf("period must be positive: %d", periodSeconds)
	}
	state, found, err := k.GetOracleState(ctx, poolID)
	if err != nil || !found {
		return TWAPWindow{}, false, err
	}
	oldestSlot, count, err := k.ringBounds(ctx, poolID, state)
	if err != nil {
		return TWAPWindow{}, false, err
	}
	if count < 2 {
		return TWAPWindow{}, false, nil
	}

	now := sdk.UnwrapSDKContext(ctx).BlockTime().Unix()
	target := now - periodSeconds

	load := func(i uint32) (types.Observation, error) {
		obs, ok, err := k.getObservation(ctx, poolID, (oldestSlot+i)%state.Cardinality)
		if err != nil {
			return types.Observation{}, err
		}
		if !ok {
			return types.Observation{}, types.ErrInvalidPoolState.Wrapf("oracle slot %d of pool %d missing", (oldestSlot+i)%state.Cardinality, poolID)
		}
		return obs, nil
	}

	oldest, err := load(0)
	if err != nil {
		return TWAPWindow{}, false, err
	}
	if oldest.Timestamp > target {
		return TWAPWindow{}, false, nil
	}

	// binary search for the newest observation at or before target
	var searchErr error
	pos := sort.Search(int(count), func(i int) bool {
		if searchErr != nil {
			return true
		}
		obs, err := load(uint32(i))
		if err != nil {
			searchErr = err
			return true
		}
		return obs.Timestamp > target
	})
	if searchErr != nil {
		return TWAPWindow{}, false, searchErr
	}
	base, err := load(uint32(pos - 1))
	if err != nil {
		return TWAPWindow{}, false, err
	}

	newest, err := load(count - 1)
	if err != nil {
		return TWAPWindow{}, false, err
	}
	cumNow := newest.CumulativePrice.Add(state.LastPrice.MulInt64(now - newest.Timestamp))

	return TWAPWindow{
		valid:  true,
		poolID: poolID,
		base:   base,
		cumNow: cumNow,
		now:    now,
		period: periodSeconds,
	}, true, nil
}

// GetTWAP returns the time-weighted average price over the trailing period.
func (k Keeper) GetTWAP(ctx context.Context, poolID uint64, periodSeconds int64) (math.LegacyDec, error) {
	if !k.hasPool(ctx, poolID) {
		return math.LegacyZeroDec(), types.ErrPoolNotFound.Wrapf("pool %d not found", poolID)
	}
	window, ok, err := k.CanConsult(ctx, poolID, periodSeconds)
	if err != nil {
		return math.LegacyZeroDec(), err
	}
	if !ok {
		return math.LegacyZeroDec(), types.ErrInsufficientHistory.Wrapf("pool %d oracle does not cover %ds", poolID, periodSeconds)
	}
	return window.Price(), nil
}

// setPoolOracle restores an exported oracle. Observations are oldest first
// and are laid out from slot 0.
func (k Keeper) setPoolOracle(ctx context.Context, oracle types.PoolOracle) error {
	if len(oracle.Observations) == 0 {
		return types.ErrInvalidGenesis.Wrapf("oracle %d has no observations", oracle.PoolId)
	}
	for i, obs := range oracle.Observations {
		if err := k.setObservation(ctx, oracle.PoolId, uint32(i), obs); err != nil {
			return err
		}
	}
	state := oracle.State
	state.Index = uint32(len(oracle.Observations) - 1)
	state.Cardinality = uint32(len(oracle.Observations))
	if state.CardinalityNext < state.Cardinality {
		state.CardinalityNext = state.Cardinality
	}
	return k.setOracleState(ctx, oracle.PoolId, state)
}
