// Package estimator computes, for each item in a ranking pool, the share of
// sitewide upvotes it is expected to receive given the ranks it currently
// occupies. It is deliberately pluggable: the baseline implementation here
// is a uniform prior, but the interface accommodates a richer model (e.g.
// one keyed on occupied rank) without any caller change.
package estimator

import (
	"github.com/social-protocols/rankers/internal/model"
)

// Estimator maps a set of rank assignments to an expected upvote share per
// item. Implementations must return non-negative values that sum to at
// most 1 across the pool; callers clamp negative or non-finite output to
// zero defensively (an implementation bug should degrade, not corrupt
// stats).
type Estimator interface {
	ExpectedShares(ranks []model.RankAssignment) map[int64]float64
}

// Uniform assigns every pool member an equal share, 1/|pool|. This is the
// baseline estimator: it carries no information about which rank is more
// valuable than another, which is the correct prior before any rank→share
// calibration data has been collected.
type Uniform struct{}

// ExpectedShares implements Estimator.
func (Uniform) ExpectedShares(ranks []model.RankAssignment) map[int64]float64 {
	out := make(map[int64]float64, len(ranks))
	if len(ranks) == 0 {
		return out
	}
	share := 1.0 / float64(len(ranks))
	for _, r := range ranks {
		out[r.ItemID] = share
	}
	return out
}

// Clamp enforces the non-negative, finite contract on a single estimator
// output, returning the clamped value and whether clamping was necessary
// (the caller logs a warning when it was).
func Clamp(share float64) (clamped float64, wasClamped bool) {
	if share < 0 || share != share || share > 1e18 { // share != share catches NaN
		return 0, true
	}
	return share, false
}
