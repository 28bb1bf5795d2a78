package keeper

import (
	"fmt"
	"math/big"

	"cosmossdk.io/math"
)

var (
	// maxIntBits mirrors the bound enforced by math.Int
	maxIntBits = math.MaxBitLen

	bpsDenominator = big.NewInt(10_000)
	decPrecision   = new(big.Int).Exp(big.NewInt(10), big.NewInt(math.LegacyPrecision), nil)
)

func checkedInt(x *big.Int) (math.Int, error) {
	if x.BitLen() > maxIntBits {
		return math.Int{}, fmt.Errorf("overflow: result exceeds %d bits", maxIntBits)
	}
	return math.NewIntFromBigInt(x), nil
}

// SafeMulDiv performs floor((a * b) / c) with a full-width intermediate
func SafeMulDiv(a, b, c math.Int) (math.Int, error) {
	if c.IsZero() {
		return math.Int{}, fmt.Errorf("division by zero")
	}
	intermediate := new(big.Int).Mul(a.BigInt(), b.BigInt())
	return checkedInt(intermediate.Quo(intermediate, c.BigInt()))
}

// SafeSub subtracts two math.Int values with underflow checking
func SafeSub(a, b math.Int) (math.Int, error) {
	if a.LT(b) {
		return math.Int{}, fmt.Errorf("underflow: cannot subtract %s from %s", b.String(), a.String())
	}
	return a.Sub(b), nil
}

// SqrtInt returns floor(sqrt(a * b)) computed on the exact product.
func SqrtInt(a, b math.Int) (math.Int, error) {
	if a.IsNegative() || b.IsNegative() {
		return math.Int{}, fmt.Errorf("square root of negative product")
	}
	product := new(big.Int).Mul(a.BigInt(), b.BigInt())
	return checkedInt(product.Sqrt(product))
}

// SwapOutput is the fee-adjusted constant product output, floored:
// amountIn*(10000-fee)*reserveOut / (reserveIn*10000 + amountIn*(10000-fee)).
func SwapOutput(amountIn, reserveIn, reserveOut math.Int, feeRateBps uint32) (math.Int, error) {
	if !amountIn.IsPositive() || !reserveIn.IsPositive() || !reserveOut.IsPositive() {
		return math.ZeroInt(), fmt.Errorf("amount and reserves must be positive")
	}
	inWithFee := new(big.Int).Mul(amountIn.BigInt(), big.NewInt(10_000-int64(feeRateBps)))
	numerator := new(big.Int).Mul(inWithFee, reserveOut.BigInt())
	denominator := new(big.Int).Mul(reserveIn.BigInt(), bpsDenominator)
	denominator.Add(denominator, inWithFee)
	return checkedInt(numerator.Quo(numerator, denominator))
}

// FeeSplit returns the total swap fee and the protocol share of it, both
// floored: fee = amountIn*feeBps/1e4, protocol = amountIn*feeBps*shareBps/1e8.
func FeeSplit(amountIn math.Int, feeRateBps, protocolShareBps uint32) (total, protocol math.Int) {
	fee := new(big.Int).Mul(amountIn.BigInt(), big.NewInt(int64(feeRateBps)))
	proto := new(big.Int).Mul(fee, big.NewInt(int64(protocolShareBps)))
	fee.Quo(fee, bpsDenominator)
	proto.Quo(proto, new(big.Int).Mul(bpsDenominator, bpsDenominator))
	return math.NewIntFromBigInt(fee), math.NewIntFromBigInt(proto)
}

// MulPriceFloor returns floor(amount * (10000-fee)/10000 * price) exactly.
func MulPriceFloor(amount math.Int, feeRateBps uint32, price math.LegacyDec) (math.Int, error) {
	n := new(big.Int).Mul(amount.BigInt(), big.NewInt(10_000-int64(feeRateBps)))
	n.Mul(n, price.BigInt())
	d := new(big.Int).Mul(bpsDenominator, decPrecision)
	return checkedInt(n.Quo(n, d))
}

// QuoPriceFloor returns floor(amount * (10000-fee)/10000 / price) exactly.
func QuoPriceFloor(amount math.Int, feeRateBps uint32, price math.LegacyDec) (math.Int, error) {
	if !price.IsPositive() {
		return math.Int{}, fmt.Errorf("price must be positive")
	}
	n := new(big.Int).Mul(amount.BigInt(), big.NewInt(10_000-int64(feeRateBps)))
	n.Mul(n, decPrecision)
	d := new(big.Int).Mul(bpsDenominator, price.BigInt())
	return checkedInt(n.Quo(n, d))
}

// feeFactor returns (10000-fee)/10000 as a decimal.
func feeFactor(feeRateBps uint32) math.LegacyDec {
	return math.LegacyNewDecWithPrec(10_000-int64(feeRateBps), 4)
}

// bpsDec returns bps/10000 as a decimal.
func bpsDec(bps uint32) math.LegacyDec {
	return math.LegacyNewDecWithPrec(int64(bps), 4)
}
