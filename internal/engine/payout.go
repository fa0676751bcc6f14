package engine

import "math/bits"

// payout computes stake * totalPool / winningPool with 128-bit intermediate
// precision and truncation toward zero. Truncation can only under-pay:
// summed over all winners the payouts never exceed the total pool, with the
// remainder stranded.
//
// bits.Div64 requires the high word of the product to be smaller than the
// divisor. That holds here: stake <= winningPool, so
// stake*totalPool < winningPool * 2^64 whenever the quotient fits in 64
// bits, which it does because the quotient is at most totalPool.
func payout(stake, totalPool, winningPool uint64) uint64 {
	if stake == 0 || winningPool == 0 {
		return 0
	}
	hi, lo := bits.Mul64(stake, totalPool)
	q, _ := bits.Div64(hi, lo, winningPool)
	return q
}
