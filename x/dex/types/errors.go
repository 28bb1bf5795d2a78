package types

import (
	"cosmossdk.io/errors"
)

// DEX module sentinel errors

// Validation errors: the call is rejected before any state is touched.
var (
	ErrInvalidTokenPair   = errors.Register(ModuleName, 2, "invalid token pair")
	ErrInvalidFee         = errors.Register(ModuleName, 3, "fee rate out of range")
	ErrInvalidAmount      = errors.Register(ModuleName, 4, "invalid amount")
	ErrPoolNotFound       = errors.Register(ModuleName, 5, "pool not found")
	ErrPoolAlreadyExists  = errors.Register(ModuleName, 6, "pool already exists")
	ErrPoolNotInitialized = errors.Register(ModuleName, 7, "pool has no liquidity")
	ErrInvalidParams      = errors.Register(ModuleName, 8, "invalid module parameters")
	ErrBatchTooLarge      = errors.Register(ModuleName, 9, "too many orders in batch")
	ErrInvalidOrder       = errors.Register(ModuleName, 10, "invalid batch order")
	ErrInvalidPeriod      = errors.Register(ModuleName, 11, "invalid oracle period")
	ErrInvalidCardinality = errors.Register(ModuleName, 12, "invalid oracle cardinality")
	ErrInvalidGenesis     = errors.Register(ModuleName, 13, "invalid genesis state")
	ErrInvalidAddress     = errors.Register(ModuleName, 14, "invalid address")
	ErrPoolIDCollision    = errors.Register(ModuleName, 15, "pool id collision")
)

// Invariant and slippage errors: computed, then rejected before any write.
var (
	ErrSlippageExceeded            = errors.Register(ModuleName, 20, "output below minimum")
	ErrInsufficientLiquidityMinted = errors.Register(ModuleName, 21, "insufficient liquidity minted")
	ErrInsufficientShares          = errors.Register(ModuleName, 22, "insufficient liquidity shares")
	ErrInsufficientReserves        = errors.Register(ModuleName, 23, "insufficient pool reserves")
	ErrInvariantViolation          = errors.Register(ModuleName, 24, "constant product invariant violated")
	ErrInsufficientHistory         = errors.Register(ModuleName, 25, "insufficient oracle history")
	ErrNothingToCollect            = errors.Register(ModuleName, 26, "nothing to collect")
	ErrTransferFailed              = errors.Register(ModuleName, 27, "token transfer failed")
	ErrInvalidPoolState            = errors.Register(ModuleName, 28, "invalid pool state")
	ErrOverflow                    = errors.Register(ModuleName, 29, "arithmetic overflow")
)

// Security policy errors: intentionally conservative rejections.
var (
	ErrSameSlotInteraction = errors.Register(ModuleName, 40, "repeated interaction with pool in the same block")
	ErrTWAPDeviation       = errors.Register(ModuleName, 41, "spot price deviates too far from TWAP")
	ErrDonationDetected    = errors.Register(ModuleName, 42, "unaccounted balance detected")
	ErrTradeTooLarge       = errors.Register(ModuleName, 43, "trade exceeds maximum size")
	ErrBreakerTripped      = errors.Register(ModuleName, 44, "circuit breaker tripped")
)

// Authorization errors.
var (
	ErrUnauthorized = errors.Register(ModuleName, 60, "unauthorized")
)
