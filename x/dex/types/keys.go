package types

const (
	// ModuleName defines the module name
	ModuleName = "dex"

	// StoreKey defines the primary module store key
	StoreKey = ModuleName

	// TStoreKey defines the transient store key. Same-slot markers live here so
	// they vanish at the block boundary without any cleanup pass.
	TStoreKey = "transient_" + ModuleName

	// LockedLiquidityModuleName names the unrecoverable account that holds the
	// minimum liquidity burned on every pool's first deposit.
	LockedLiquidityModuleName = "dex_locked_liquidity"
)

// MinimumLiquidity is the number of shares permanently locked on a pool's
// first deposit.
const MinimumLiquidity int64 = 1000

// MaxFeeRateBps is the highest fee tier a pool may be created with (10%).
const MaxFeeRateBps uint32 = 1000

// BpsDenominator is the basis point denominator.
const BpsDenominator int64 = 10_000
