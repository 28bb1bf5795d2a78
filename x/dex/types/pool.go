package types

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
)

// LockedLiquidityAddress holds the minimum liquidity of every pool. Nothing
// can sign for it, so shares assigned here never move.
var LockedLiquidityAddress = authtypes.NewModuleAddress(LockedLiquidityModuleName)

// Pool is a constant-product pool for one canonically ordered token pair and
// fee tier.
type Pool struct {
	Id          uint64   `json:"id" yaml:"id"`
	TokenA      string   `json:"token_a" yaml:"token_a"`
	TokenB      string   `json:"token_b" yaml:"token_b"`
	ReserveA    math.Int `json:"reserve_a" yaml:"reserve_a"`
	ReserveB    math.Int `json:"reserve_b" yaml:"reserve_b"`
	TotalShares math.Int `json:"total_shares" yaml:"total_shares"`
	FeeRateBps  uint32   `json:"fee_rate_bps" yaml:"fee_rate_bps"`
	Initialized bool     `json:"initialized" yaml:"initialized"`
	Creator     string   `json:"creator" yaml:"creator"`
}

// CanonicalPair orders two denoms lexicographically.
func CanonicalPair(tokenA, tokenB string) (string, string) {
	if tokenA > tokenB {
		return tokenB, tokenA
	}
	return tokenA, tokenB
}

// DerivePoolID derives the pool identifier from the canonical pair and fee
// tier. The argument order of the pair does not matter.
func DerivePoolID(tokenA, tokenB string, feeRateBps uint32) uint64 {
	a, b := CanonicalPair(tokenA, tokenB)

	h := sha256.New()
	h.Write([]byte(a))
	h.Write([]byte{0})
	h.Write([]byte(b))
	h.Write([]byte{0})
	h.Write(binary.BigEndian.AppendUint32(nil, feeRateBps))
	sum := h.Sum(nil)

	id := binary.BigEndian.Uint64(sum[:8])
	if id == 0 {
		// zero is reserved for "no pool"
		id = 1
	}
	return id
}

// ValidatePair validates a token pair for pool creation.
func ValidatePair(tokenA, tokenB string) error {
	if tokenA == tokenB {
		return ErrInvalidTokenPair.Wrap("cannot create pool with identical tokens")
	}
	if err := sdk.ValidateDenom(tokenA); err != nil {
		return ErrInvalidTokenPair.Wrapf("token A: %v", err)
	}
	if err := sdk.ValidateDenom(tokenB); err != nil {
		return ErrInvalidTokenPair.Wrapf("token B: %v", err)
	}
	return nil
}

// ValidateFeeRate checks that the fee tier is within bounds.
func ValidateFeeRate(feeRateBps uint32) error {
	if feeRateBps > MaxFeeRateBps {
		return ErrInvalidFee.Wrapf("fee %d bps exceeds maximum %d bps", feeRateBps, MaxFeeRateBps)
	}
	return nil
}

// Validate performs stateless validation of a pool record.
func (p Pool) Validate() error {
	if p.Id == 0 {
		return ErrInvalidPoolState.Wrap("pool id cannot be zero")
	}
	if err := ValidatePair(p.TokenA, p.TokenB); err != nil {
		return err
	}
	if p.TokenA > p.TokenB {
		return ErrInvalidPoolState.Wrapf("tokens not canonically ordered: %s > %s", p.TokenA, p.TokenB)
	}
	if err := ValidateFeeRate(p.FeeRateBps); err != nil {
		return err
	}
	if p.ReserveA.IsNil() || p.ReserveB.IsNil() || p.TotalShares.IsNil() {
		return ErrInvalidPoolState.Wrap("nil amounts")
	}
	if p.ReserveA.IsNegative() || p.ReserveB.IsNegative() || p.TotalShares.IsNegative() {
		return ErrInvalidPoolState.Wrap("negative amounts")
	}
	if p.Initialized && (!p.ReserveA.IsPositive() || !p.ReserveB.IsPositive() || !p.TotalShares.IsPositive()) {
		return ErrInvalidPoolState.Wrap("initialized pool must have positive reserves and shares")
	}
	return nil
}

// HasToken reports whether denom is one of the pool's tokens.
func (p Pool) HasToken(denom string) bool {
	return denom == p.TokenA || denom == p.TokenB
}

// OtherToken returns the counterpart of denom in the pool.
func (p Pool) OtherToken(denom string) (string, error) {
	switch denom {
	case p.TokenA:
		return p.TokenB, nil
	case p.TokenB:
		return p.TokenA, nil
	default:
		return "", ErrInvalidTokenPair.Wrapf("token %s not in pool %d (%s/%s)", denom, p.Id, p.TokenA, p.TokenB)
	}
}

// Reserves returns (reserveIn, reserveOut) for a swap of tokenIn.
func (p Pool) Reserves(tokenIn string) (math.Int, math.Int, error) {
	switch tokenIn {
	case p.TokenA:
		return p.ReserveA, p.ReserveB, nil
	case p.TokenB:
		return p.ReserveB, p.ReserveA, nil
	default:
		return math.Int{}, math.Int{}, ErrInvalidTokenPair.Wrapf("token %s not in pool %d (%s/%s)", tokenIn, p.Id, p.TokenA, p.TokenB)
	}
}

// SpotPrice returns the marginal price of token A in units of token B.
func (p Pool) SpotPrice() (math.LegacyDec, error) {
	if !p.ReserveA.IsPositive() || !p.ReserveB.IsPositive() {
		return math.LegacyZeroDec(), ErrPoolNotInitialized.Wrapf("pool %d has empty reserves", p.Id)
	}
	return math.LegacyNewDecFromInt(p.ReserveB).Quo(math.LegacyNewDecFromInt(p.ReserveA)), nil
}

// K returns reserveA * reserveB.
func (p Pool) K() math.Int {
	return p.ReserveA.Mul(p.ReserveB)
}

func (p Pool) String() string {
	return fmt.Sprintf("pool %d %s/%s fee=%dbps reserves=%s/%s shares=%s", p.Id, p.TokenA, p.TokenB, p.FeeRateBps, p.ReserveA, p.ReserveB, p.TotalShares)
}

// LiquidityPosition is a holder's share balance in one pool.
type LiquidityPosition struct {
	PoolId uint64   `json:"pool_id" yaml:"pool_id"`
	Holder string   `json:"holder" yaml:"holder"`
	Shares math.Int `json:"shares" yaml:"shares"`
}
