package keeper

import (
	"bytes"
	"math/big"
	"slices"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/paw-chain/pawdex/x/dex/types"
)

// ClearingOrder is an escrowed batch order as seen by the clearing algorithm.
type ClearingOrder struct {
	Side     types.OrderSide
	AmountIn math.Int
	MinOut   math.Int
	Priority bool
	Trader   sdk.AccAddress
}

// ClearingOutcome is the uniform price of a batch and the orders that trade
// at it. Slices are indexed like the input orders; Sequence lists order
// positions in settlement order.
type ClearingOutcome struct {
	Price         math.LegacyDec
	Participating []bool
	Insufficient  []bool
	Sequence      []int
}

// clearingEntry carries the derived values of one order.
type clearingEntry struct {
	pos       int
	order     ClearingOrder
	limit     math.LegacyDec
	reachable bool
	effective math.LegacyDec // amountIn * (1 - fee)
}

// limitFor returns the fee-adjusted limit price of an order (token B per A).
// A seller participates at P >= limit, a buyer at P <= limit. Sellers round
// the limit up and buyers round it down so participation guarantees minOut.
func limitFor(o ClearingOrder, feeRateBps uint32, spot math.LegacyDec) (math.LegacyDec, bool) {
	keep := big.NewInt(10_000 - int64(feeRateBps))
	if o.Side == types.SideSell {
		if o.MinOut.IsZero() {
			return math.LegacyZeroDec(), true
		}
		// ceil(minOut * 1e4 * 1e18 / (amountIn * keep))
		n := new(big.Int).Mul(o.MinOut.BigInt(), bpsDenominator)
		n.Mul(n, decPrecision)
		d := new(big.Int).Mul(o.AmountIn.BigInt(), keep)
		q, r := new(big.Int).QuoRem(n, d, new(big.Int))
		if r.Sign() > 0 {
			q.Add(q, big.NewInt(1))
		}
		if q.BitLen() > maxIntBits {
			return math.LegacyDec{}, false
		}
		return math.LegacyNewDecFromBigIntWithPrec(q, math.LegacyPrecision), true
	}

	if o.MinOut.IsZero() {
		return spot.MulInt64(2), true
	}
	// floor(amountIn * keep * 1e18 / (minOut * 1e4))
	n := new(big.Int).Mul(o.AmountIn.BigInt(), keep)
	n.Mul(n, decPrecision)
	d := new(big.Int).Mul(o.MinOut.BigInt(), bpsDenominator)
	q := n.Quo(n, d)
	if q.Sign() == 0 || q.BitLen() > maxIntBits {
		return math.LegacyDec{}, false
	}
	return math.LegacyNewDecFromBigIntWithPrec(q, math.LegacyPrecision), true
}

func cmpDec(a, b math.LegacyDec) int {
	switch {
	case a.LT(b):
		return -1
	case a.GT(b):
		return 1
	default:
		return 0
	}
}

// canonicalSequence orders each side by priority, then most aggressive limit,
// then larger amount, then trader bytes, and interleaves the sides starting
// with a sell.
func canonicalSequence(sellers, buyers []*clearingEntry) []int {
	byAggression := func(sell bool) func(a, b *clearingEntry) int {
		return func(a, b *clearingEntry) int {
			if a.order.Priority != b.order.Priority {
				if a.order.Priority {
					return -1
				}
				return 1
			}
			if a.reachable != b.reachable {
				if a.reachable {
					return -1
				}
				return 1
			}
			if a.reachable {
				if c := cmpDec(a.limit, b.limit); c != 0 {
					if sell {
						return c
					}
					return -c
				}
			}
			if c := a.order.AmountIn.BigInt().Cmp(b.order.AmountIn.BigInt()); c != 0 {
				return -c
			}
			if c := bytes.Compare(a.order.Trader, b.order.Trader); c != 0 {
				return c
			}
			return a.pos - b.pos
		}
	}
	slices.SortStableFunc(sellers, byAggression(true))
	slices.SortStableFunc(buyers, byAggression(false))

	seq := make([]int, 0, len(sellers)+len(buyers))
	for i := 0; i < max(len(sellers), len(buyers)); i++ {
		if i < len(sellers) {
			seq = append(seq, sellers[i].pos)
		}
		if i < len(buyers) {
			seq = append(seq, buyers[i].pos)
		}
	}
	return seq
}

// ComputeClearing finds the uniform clearing price of a batch against the
// pool reserves and decides which orders trade at it.
//
// For a price P let S(P) be the effective A supplied by sellers whose limit
// is at or below P and D(P) the effective B supplied by buyers whose limit is
// at or above P. The clearing price is the fixed point of
//
//	P = (reserveB + 2*D(P)) / (reserveA + 2*S(P))
//
// at which the pool absorbs the net imbalance at P and ends with marginal
// price P. The right hand side is a step function that only changes at order
// limits, so the candidate regions (each open interval between distinct
// limits and each limit itself) are scanned in ascending order. The first
// region containing its own fixed point yields it; a region whose value lies
// below it yields its lower limit, where only part of the orders sitting
// exactly at that limit can trade.
func ComputeClearing(reserveA, reserveB math.Int, feeRateBps uint32, orders []ClearingOrder) (ClearingOutcome, error) {
	out := ClearingOutcome{
		Participating: make([]bool, len(orders)),
		Insufficient:  make([]bool, len(orders)),
	}
	if !reserveA.IsPositive() || !reserveB.IsPositive() {
		return out, types.ErrPoolNotInitialized.Wrap("clearing requires positive reserves")
	}

	rA := math.LegacyNewDecFromInt(reserveA)
	rB := math.LegacyNewDecFromInt(reserveB)
	spot := rB.Quo(rA)
	keep := feeFactor(feeRateBps)

	var sellers, buyers []*clearingEntry
	var limits []math.LegacyDec
	for i, o := range orders {
		e := &clearingEntry{pos: i, order: o, effective: math.LegacyNewDecFromInt(o.AmountIn).Mul(keep)}
		e.limit, e.reachable = limitFor(o, feeRateBps, spot)
		if e.reachable && e.limit.IsPositive() {
			limits = append(limits, e.limit)
		}
		if o.Side == types.SideSell {
			sellers = append(sellers, e)
		} else {
			buyers = append(buyers, e)
		}
	}
	out.Sequence = canonicalSequence(sellers, buyers)

	slices.SortFunc(limits, cmpDec)
	limits = slices.CompactFunc(limits, math.LegacyDec.Equal)

	// fixedPoint evaluates the right hand side for sellers with limit <= sellerCap
	// and buyers with limit >= *buyerFloor (no buyers when buyerFloor is nil).
	fixedPoint := func(sellerCap math.LegacyDec, buyerFloor *math.LegacyDec) (num, den math.LegacyDec) {
		num, den = rB, rA
		for _, s := range sellers {
			if s.reachable && s.limit.LTE(sellerCap) {
				den = den.Add(s.effective.MulInt64(2))
			}
		}
		if buyerFloor != nil {
			for _, b := range buyers {
				if b.reachable && b.limit.GTE(*buyerFloor) {
					num = num.Add(b.effective.MulInt64(2))
				}
			}
		}
		return num, den
	}

	// interior rounds towards the pool: down when the pool nets token A (price
	// at or below spot), up otherwise.
	interior := func(num, den math.LegacyDec) math.LegacyDec {
		p := num.QuoTruncate(den)
		if p.GT(spot) {
			p = num.QuoRoundUp(den)
		}
		return p
	}

	var (
		price      math.LegacyDec
		breakpoint bool
		found      bool
	)
	lower := math.LegacyZeroDec()
	for i := range limits {
		upper := limits[i]
		c := interior(fixedPoint(lower, &upper))
		if c.GT(lower) && c.LT(upper) {
			price, found = c, true
			break
		}
		if c.LTE(lower) && lower.IsPositive() {
			price, breakpoint, found = lower, true, true
			break
		}

		num, den := fixedPoint(upper, &upper)
		switch cmpDec(num, upper.Mul(den)) {
		case 0:
			price, found = upper, true
		case -1:
			price, breakpoint, found = upper, true, true
		}
		if found {
			break
		}
		lower = upper
	}
	if !found {
		c := interior(fixedPoint(lower, nil))
		if c.GT(lower) || !lower.IsPositive() {
			price = c
		} else {
			price, breakpoint = lower, true
		}
	}
	out.Price = price

	if !breakpoint {
		for _, s := range sellers {
			out.Participating[s.pos] = s.reachable && s.limit.LTE(price)
		}
		for _, b := range buyers {
			out.Participating[b.pos] = b.reachable && b.limit.GTE(price)
		}
		return out, nil
	}

	selectAtBreakpoint(&out, rA, rB, sellers, buyers)
	return out, nil
}

// selectAtBreakpoint picks the participants when the price sits on an order
// limit with no exact fixed point. The net effective A the pool takes in, x,
// must stay within [min(0,X), max(0,X)] with X = reserveB/P - reserveA, which
// keeps reserveA*reserveB from decreasing. Marginal sellers are added in
// settlement order while they fit; if x is still below the band, marginal
// buyers and then other buyers are dropped, latest in settlement order first.
func selectAtBreakpoint(out *ClearingOutcome, rA, rB math.LegacyDec, sellers, buyers []*clearingEntry) {
	price := out.Price
	target := rB.Quo(price).Sub(rA)
	low, high := math.LegacyMinDec(target, math.LegacyZeroDec()), math.LegacyMaxDec(target, math.LegacyZeroDec())

	rank := make(map[int]int, len(out.Sequence))
	for i, pos := range out.Sequence {
		rank[pos] = i
	}
	bySequence := func(a, b *clearingEntry) int { return rank[a.pos] - rank[b.pos] }

	x := math.LegacyZeroDec()
	buyerSupply := make(map[int]math.LegacyDec, len(buyers))
	var marginalSellers, marginalBuyers, strictBuyers []*clearingEntry
	for _, s := range sellers {
		switch {
		case !s.reachable || s.limit.GT(price):
		case s.limit.Equal(price):
			marginalSellers = append(marginalSellers, s)
		default:
			out.Participating[s.pos] = true
			x = x.Add(s.effective)
		}
	}
	for _, b := range buyers {
		if !b.reachable || b.limit.LT(price) {
			continue
		}
		out.Participating[b.pos] = true
		d := b.effective.Quo(price)
		buyerSupply[b.pos] = d
		x = x.Sub(d)
		if b.limit.Equal(price) {
			marginalBuyers = append(marginalBuyers, b)
		} else {
			strictBuyers = append(strictBuyers, b)
		}
	}

	slices.SortFunc(marginalSellers, bySequence)
	for _, s := range marginalSellers {
		if x.Add(s.effective).LTE(high) {
			out.Participating[s.pos] = true
			x = x.Add(s.effective)
			continue
		}
		// at its limit, but the pool has no room left
		out.Insufficient[s.pos] = true
	}

	drop := func(candidates []*clearingEntry, insufficient, force bool) {
		slices.SortFunc(candidates, bySequence)
		for i := len(candidates) - 1; i >= 0 && x.LT(low); i-- {
			b := candidates[i]
			if !out.Participating[b.pos] {
				continue
			}
			next := x.Add(buyerSupply[b.pos])
			if !force && next.GT(high) {
				continue
			}
			out.Participating[b.pos] = false
			out.Insufficient[b.pos] = insufficient
			x = next
		}
	}
	drop(marginalBuyers, false, false)
	drop(strictBuyers, true, false)
	drop(append(marginalBuyers, strictBuyers...), true, true)
}
