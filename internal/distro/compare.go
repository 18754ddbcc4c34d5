package distro

import (
	"fmt"
	"math"
	"strings"
)

// AssetID identifies an asset inside a distribution. IDs are compared after
// canonicalization, so hex addresses match regardless of checksum casing.
type AssetID string

// Canonical returns the trimmed, lower-cased form of id.
func (id AssetID) Canonical() AssetID {
	return AssetID(strings.ToLower(strings.TrimSpace(string(id))))
}

// Distribution pairs asset ids with their shares positionally.
type Distribution struct {
	IDs    []AssetID `json:"ids"`
	Shares []int64   `json:"shares"`
}

// NewDistribution zips ids with shares.
func NewDistribution(ids []string, shares []int64) Distribution {
	d := Distribution{
		IDs:    make([]AssetID, len(ids)),
		Shares: append([]int64(nil), shares...),
	}
	for i, id := range ids {
		d.IDs[i] = AssetID(id)
	}
	return d
}

// Len is the number of shares.
func (d Distribution) Len() int { return len(d.Shares) }

// Map returns the shares keyed by canonical id. Negative shares are
// rejected with ErrInvalidShare.
func (d Distribution) Map() (map[AssetID]int64, error) {
	if len(d.IDs) != len(d.Shares) {
		return nil, fmt.Errorf("%w: %d ids, %d shares", ErrLengthMismatch, len(d.IDs), len(d.Shares))
	}
	m := make(map[AssetID]int64, len(d.IDs))
	for i, id := range d.IDs {
		c := id.Canonical()
		if _, ok := m[c]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAsset, c)
		}
		if d.Shares[i] < 0 {
			return nil, fmt.Errorf("%w: %d for %s", ErrInvalidShare, d.Shares[i], c)
		}
		m[c] = d.Shares[i]
	}
	return m, nil
}

// Reason says why two distributions were found different.
type Reason string

const (
	ReasonNone   Reason = ""
	ReasonLength Reason = "length"
	ReasonAssets Reason = "assets"
	ReasonDrift  Reason = "drift"
)

// Comparison is the outcome of Compare.
//
// TotalDiff is the sum of absolute per-asset share differences, so moving
// x units from one asset to another counts 2x. It is only computed when
// both sides hold the same assets, and saturates at math.MaxInt64.
type Comparison struct {
	Different bool   `json:"different"`
	Reason    Reason `json:"reason,omitempty"`
	TotalDiff int64  `json:"total_diff"`
	Threshold int64  `json:"threshold"`
}

// DiffPercent is the reallocated mass as a percentage of a full allocation.
func (c Comparison) DiffPercent() float64 {
	return 100 * float64(c.TotalDiff) / float64(Norm) / 2
}

// ThresholdPercent is the allowed reallocated mass as a percentage.
func (c Comparison) ThresholdPercent() float64 {
	return 100 * float64(c.Threshold) / float64(Norm)
}

func (c Comparison) String() string {
	switch c.Reason {
	case ReasonLength:
		return "different (share count mismatch)"
	case ReasonAssets:
		return "different (asset set mismatch)"
	}
	verdict := "same"
	if c.Different {
		verdict = "different"
	}
	return fmt.Sprintf("%s (diff=%.4f%% allowed=%.4f%%)", verdict, c.DiffPercent(), c.ThresholdPercent())
}

// Compare decides whether a and b differ by more than threshold units of
// reallocated mass. A share-count or asset-set mismatch is always different.
func Compare(a, b Distribution, threshold int64) (Comparison, error) {
	if threshold < 0 {
		return Comparison{}, fmt.Errorf("%w: %d", ErrNegativeThreshold, threshold)
	}
	ma, err := a.Map()
	if err != nil {
		return Comparison{}, err
	}
	mb, err := b.Map()
	if err != nil {
		return Comparison{}, err
	}

	res := Comparison{Threshold: threshold}
	if a.Len() != b.Len() {
		res.Different = true
		res.Reason = ReasonLength
		return res, nil
	}
	for id := range ma {
		if _, ok := mb[id]; !ok {
			res.Different = true
			res.Reason = ReasonAssets
			return res, nil
		}
	}

	// Shares are non-negative, so each |sa-sb| fits in an int64; only the
	// running total can overflow.
	var (
		total     int64
		saturated bool
	)
	for id, sa := range ma {
		d := sa - mb[id]
		if d < 0 {
			d = -d
		}
		if total > math.MaxInt64-d {
			total = math.MaxInt64
			saturated = true
			break
		}
		total += d
	}
	res.TotalDiff = total
	if saturated {
		res.Different = true
		res.Reason = ReasonDrift
		return res, nil
	}

	limit := int64(math.MaxInt64)
	if threshold <= math.MaxInt64/2 {
		limit = 2 * threshold
	}
	if total > limit {
		res.Different = true
		res.Reason = ReasonDrift
	}
	return res, nil
}

// AreDifferent is Compare over parallel id and share slices.
func AreDifferent(sharesA []int64, idsA []string, sharesB []int64, idsB []string, threshold int64) (bool, error) {
	res, err := Compare(NewDistribution(idsA, sharesA), NewDistribution(idsB, sharesB), threshold)
	if err != nil {
		return false, err
	}
	return res.Different, nil
}
