// Package distro turns target weights into fixed-point allocations and
// decides whether two allocations are far enough apart to rebalance.
//
// Allocations are expressed in units of Norm, where Norm represents 100%.
// This is the unit the portfolio contracts use for shares and for the
// minimum rebalance allowance.
package distro

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Norm is the fixed-point value of a full allocation.
const Norm int64 = 1_000_000

// Normalize converts non-negative weights into integer shares that sum to
// exactly Norm. A zero total yields an all-zero vector of the same length.
func Normalize(weights []float64) ([]int64, error) {
	return NormalizeTo(weights, Norm)
}

// NormalizeTo is Normalize with an explicit normalization constant.
func NormalizeTo(weights []float64, norm int64) ([]int64, error) {
	ds := make([]decimal.Decimal, len(weights))
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, &WeightError{Index: i, Value: w}
		}
		ds[i] = decimal.NewFromFloat(w)
	}
	return normalize(ds, norm)
}

// NormalizeDecimal is Normalize for weights that are already decimals, such
// as TVL figures parsed from the market data feed.
func NormalizeDecimal(weights []decimal.Decimal) ([]int64, error) {
	for i, w := range weights {
		if w.IsNegative() {
			return nil, &WeightError{Index: i, Value: w.InexactFloat64()}
		}
	}
	return normalize(weights, Norm)
}

func normalize(weights []decimal.Decimal, norm int64) ([]int64, error) {
	if norm <= 0 {
		return nil, fmt.Errorf("distro: normalization constant must be positive, got %d", norm)
	}

	shares := make([]int64, len(weights))
	total := decimal.Zero
	for _, w := range weights {
		total = total.Add(w)
	}
	if total.IsZero() {
		return shares, nil
	}

	// floor(w * norm / total), exact: QuoRem at precision 0 truncates and
	// every operand is non-negative.
	n := decimal.NewFromInt(norm)
	var sum int64
	for i, w := range weights {
		q, _ := w.Mul(n).QuoRem(total, 0)
		shares[i] = q.IntPart()
		sum += shares[i]
	}

	idxMax, idxMin := -1, -1
	for i, s := range shares {
		if s == 0 {
			continue
		}
		if idxMax < 0 || s > shares[idxMax] {
			idxMax = i
		}
		if idxMin < 0 || s < shares[idxMin] {
			idxMin = i
		}
	}

	if idxMax < 0 {
		// Every share truncated to zero (more assets than units). The whole
		// allocation goes to the heaviest asset.
		shares[heaviest(weights)] = norm
		return shares, nil
	}

	switch {
	case sum < norm:
		shares[idxMin] += norm - sum
	case sum > norm:
		shares[idxMax] -= sum - norm
	}
	return shares, nil
}

func heaviest(weights []decimal.Decimal) int {
	idx := 0
	for i := 1; i < len(weights); i++ {
		if weights[i].GreaterThan(weights[idx]) {
			idx = i
		}
	}
	return idx
}

// Sum returns the total of shares.
func Sum(shares []int64) int64 {
	var total int64
	for _, s := range shares {
		total += s
	}
	return total
}
