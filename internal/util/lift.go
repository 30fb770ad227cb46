package util

import (
	"math"

	"liftsync/internal"
)

// ParseLiftWeight returns the attempted weight of a signed attempt
// value. The sign carries the outcome; NaN means no attempt.
func ParseLiftWeight(x float64) int {
	if math.IsNaN(x) {
		return 0
	}
	return int(math.Abs(x))
}

func DetermineOutcome(x float64) internal.Outcome {
	switch {
	case math.IsNaN(x) || x == 0:
		return internal.OutcomeDNA
	case x > 0:
		return internal.OutcomeLift
	default:
		return internal.OutcomeNoLift
	}
}

func ParseAttempt(x float64) internal.Attempt {
	return internal.Attempt{Outcome: DetermineOutcome(x), Weight: ParseLiftWeight(x)}
}
