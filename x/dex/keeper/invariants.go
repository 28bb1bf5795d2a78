package keeper

import (
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/pawdex/x/dex/types"
)

// RegisterInvariants registers all DEX invariants
func RegisterInvariants(ir sdk.InvariantRegistry, k Keeper) {
	ir.RegisterRoute(types.ModuleName, "tracked-balances", TrackedBalanceInvariant(k))
	ir.RegisterRoute(types.ModuleName, "pool-shares", PoolSharesInvariant(k))
	ir.RegisterRoute(types.ModuleName, "positive-reserves", PositiveReservesInvariant(k))
}

// AllInvariants runs all invariants of the DEX module
func AllInvariants(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		res, stop := TrackedBalanceInvariant(k)(ctx)
		if stop {
			return res, stop
		}

		res, stop = PoolSharesInvariant(k)(ctx)
		if stop {
			return res, stop
		}

		return PositiveReservesInvariant(k)(ctx)
	}
}

// TrackedBalanceInvariant checks that, per denom, pool reserves plus accrued
// protocol fees equal the tracked balance, and that the module actually holds
// at least the tracked balance.
func TrackedBalanceInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var (
			msg   string
			count int
		)

		owed := make(map[string]math.Int)
		add := func(denom string, amt math.Int) {
			if cur, ok := owed[denom]; ok {
				owed[denom] = cur.Add(amt)
			} else {
				owed[denom] = amt
			}
		}

		pools, err := k.GetAllPools(ctx)
		if err != nil {
			return sdk.FormatInvariant(types.ModuleName, "tracked-balances", err.Error()), true
		}
		for _, pool := range pools {
			add(pool.TokenA, pool.ReserveA)
			add(pool.TokenB, pool.ReserveB)
		}
		for _, fee := range k.GetProtocolFees(ctx) {
			add(fee.Denom, fee.Amount)
		}

		for denom, amount := range owed {
			tracked, err := k.GetTrackedBalance(ctx, denom)
			if err != nil {
				count++
				msg += fmt.Sprintf("%s: %v\n", denom, err)
				continue
			}
			if !tracked.Equal(amount) {
				count++
				msg += fmt.Sprintf("%s: reserves plus fees %s != tracked %s\n", denom, amount, tracked)
			}
			actual := k.bankKeeper.GetBalance(ctx, k.moduleAddr, denom).Amount
			if actual.LT(tracked) {
				count++
				msg += fmt.Sprintf("%s: module balance %s < tracked %s\n", denom, actual, tracked)
			}
		}

		broken := count != 0
		return sdk.FormatInvariant(
			types.ModuleName, "tracked-balances",
			fmt.Sprintf("found %d accounting mismatches\n%s", count, msg),
		), broken
	}
}

// PoolSharesInvariant checks that each pool's share ledger sums to TotalShares
func PoolSharesInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var (
			msg   string
			count int
		)

		pools, err := k.GetAllPools(ctx)
		if err != nil {
			return sdk.FormatInvariant(types.ModuleName, "pool-shares", err.Error()), true
		}
		for _, pool := range pools {
			sum := math.ZeroInt()
			if err := k.IterateLiquidityByPool(ctx, pool.Id, func(_ sdk.AccAddress, shares math.Int) bool {
				sum = sum.Add(shares)
				return false
			}); err != nil {
				count++
				msg += fmt.Sprintf("pool %d: %v\n", pool.Id, err)
				continue
			}
			if !sum.Equal(pool.TotalShares) {
				count++
				msg += fmt.Sprintf("pool %d: positions sum to %s, total shares %s\n", pool.Id, sum, pool.TotalShares)
			}
		}

		broken := count != 0
		return sdk.FormatInvariant(
			types.ModuleName, "pool-shares",
			fmt.Sprintf("found %d pools with inconsistent shares\n%s", count, msg),
		), broken
	}
}

// PositiveReservesInvariant checks that initialized pools hold both tokens
func PositiveReservesInvariant(k Keeper) sdk.Invariant {
	return func(ctx sdk.Context) (string, bool) {
		var (
			msg   string
			count int
		)

		pools, err := k.GetAllPools(ctx)
		if err != nil {
			return sdk.FormatInvariant(types.ModuleName, "positive-reserves", err.Error()), true
		}
		for _, pool := range pools {
			if err := pool.Validate(); err != nil {
				count++
				msg += fmt.Sprintf("pool %d: %v\n", pool.Id, err)
			}
		}

		broken := count != 0
		return sdk.FormatInvariant(
			types.ModuleName, "positive-reserves",
			fmt.Sprintf("found %d invalid pools\n%s", count, msg),
		), broken
	}
}
