package types

import (
	"context"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// BankKeeper defines the expected bank keeper. The module holds reserves in
// its own module account and moves tokens with plain sends.
type BankKeeper interface {
	SendCoins(ctx context.Context, fromAddr sdk.AccAddress, toAddr sdk.AccAddress, amt sdk.Coins) error
	GetBalance(ctx context.Context, addr sdk.AccAddress, denom string) sdk.Coin
}

// DexKeeperV1 is the read/write surface exposed to collaborating modules
// (reward engines, intent routers, treasury managers).
type DexKeeperV1 interface {
	// GetPool returns pool information by ID.
	GetPool(ctx context.Context, poolID uint64) (Pool, error)

	// GetPoolByDenoms finds a pool by token pair and fee tier.
	GetPoolByDenoms(ctx context.Context, denomA, denomB string, feeRateBps uint32) (Pool, error)

	// Quote calculates expected output without executing.
	Quote(ctx context.Context, poolID uint64, tokenIn string, amountIn sdkmath.Int) (sdkmath.Int, error)

	// GetSpotPrice returns the marginal price of token A in token B.
	GetSpotPrice(ctx context.Context, poolID uint64) (sdkmath.LegacyDec, error)

	// GetTWAP returns the time-weighted price over the trailing period.
	GetTWAP(ctx context.Context, poolID uint64, periodSeconds int64) (sdkmath.LegacyDec, error)

	// GetProtocolFees returns accrued, uncollected protocol fees.
	GetProtocolFees(ctx context.Context) sdk.Coins

	Swap(ctx context.Context, trader sdk.AccAddress, poolID uint64, tokenIn string, amountIn, minAmountOut sdkmath.Int, recipient sdk.AccAddress) (sdkmath.Int, error)
	AddLiquidity(ctx context.Context, provider sdk.AccAddress, poolID uint64, amountADesired, amountBDesired, amountAMin, amountBMin sdkmath.Int) (sdkmath.Int, error)
	RemoveLiquidity(ctx context.Context, provider sdk.AccAddress, poolID uint64, shares, amountAMin, amountBMin sdkmath.Int) (sdkmath.Int, sdkmath.Int, error)
	ExecuteBatchSwap(ctx context.Context, executor sdk.AccAddress, poolID uint64, orders []BatchOrder) (BatchResult, error)
}
