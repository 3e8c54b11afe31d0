// Package scorer computes the ranking score for an item under each of the
// three ranking algorithms: Quality News, Hacker-News-style popularity, and
// Newest. Every function here is pure and side-effect free.
package scorer

import "math"

const (
	// DefaultRate is the assumed upvote rate for an item that has not yet
	// accumulated any expected upvotes — the Bayesian-identity prior: an
	// item is assumed average until evidence says otherwise.
	DefaultRate = 1.0

	msPerHour = 3_600_000.0
)

// ageHours converts a (sampleTime, submissionTime) pair in epoch
// milliseconds to a non-negative age in hours. Negative ages (a submission
// timestamp in the future, which should not occur) are clamped to zero
// defensively rather than propagated into a negative base below.
func ageHours(sampleTime, submissionTime int64) float64 {
	deltaMs := sampleTime - submissionTime
	if deltaMs < 0 {
		return 0
	}
	return float64(deltaMs) / msPerHour
}

// QualityNews computes the Quality News score from one item's accumulated
// stats: the ratio of actual to expected upvotes, decayed by age.
//
//	score = (age_hours * upvote_rate_est)^0.8 / (age_hours + 2)^1.8
func QualityNews(sampleTime, submissionTime int64, upvotes, expectedUpvotes float64) float64 {
	age := ageHours(sampleTime, submissionTime)

	var rate float64
	if expectedUpvotes > 0 {
		rate = upvotes / expectedUpvotes
	} else {
		rate = DefaultRate
	}

	base := age * rate
	if base < 0 {
		base = 0 // defends against a corrupt/negative upvotes row
	}
	return math.Pow(base, 0.8) / math.Pow(age+2, 1.8)
}

// HackerNews computes the simpler popularity score: raw upvotes decayed by
// age, with no expected-value correction.
//
//	score = upvotes^0.8 / (age_hours + 2)^1.8
func HackerNews(sampleTime, submissionTime int64, upvotes float64) float64 {
	age := ageHours(sampleTime, submissionTime)
	if upvotes < 0 {
		upvotes = 0
	}
	return math.Pow(upvotes, 0.8) / math.Pow(age+2, 1.8)
}

// Newest computes the chronological score: 1/age_hours, with items of zero
// age treated as infinitely new (ranked first).
func Newest(sampleTime, submissionTime int64) float64 {
	age := ageHours(sampleTime, submissionTime)
	if age == 0 {
		return math.Inf(1)
	}
	return 1 / age
}
