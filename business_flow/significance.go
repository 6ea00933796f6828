package businessflow

import (
	"math"
	"time"

	"github.com/amirphl/outreach-autopilot/models"
)

// SignificanceResult is the outcome of a two-proportion z-test on reply rate
type SignificanceResult struct {
	SampleSizeReached bool
	RateA             float64
	RateB             float64
	Pooled            float64
	StdErr            float64
	Z                 float64
	Confidence        float64
}

// AssignVariant returns the locked winner, or the arm with fewer sends (ties go to A)
func AssignVariant(test *models.ABTest) models.Variant {
	if test.Winner != nil {
		return *test.Winner
	}
	if test.SendsA <= test.SendsB {
		return models.VariantA
	}
	return models.VariantB
}

// EvaluateSignificance runs a pooled two-proportion z-test on the reply rates of both arms.
// Confidence is the two-tailed 1 - 2*(1 - Phi(|z|)), clamped to [0, 1].
func EvaluateSignificance(test *models.ABTest) SignificanceResult {
	res := SignificanceResult{
		SampleSizeReached: test.SendsA+test.SendsB >= 2*test.MinSampleSize,
	}
	if test.SendsA > 0 {
		res.RateA = float64(test.RepliesA) / float64(test.SendsA)
	}
	if test.SendsB > 0 {
		res.RateB = float64(test.RepliesB) / float64(test.SendsB)
	}
	total := test.SendsA + test.SendsB
	if total > 0 {
		res.Pooled = float64(test.RepliesA+test.RepliesB) / float64(total)
	}

	// 1/sends is undefined for an arm with no sends
	if test.SendsA == 0 || test.SendsB == 0 {
		return res
	}

	res.StdErr = math.Sqrt(res.Pooled * (1 - res.Pooled) * (1/float64(test.SendsA) + 1/float64(test.SendsB)))
	if res.StdErr == 0 {
		return res
	}

	res.Z = math.Abs(res.RateA-res.RateB) / res.StdErr
	res.Confidence = clamp01(1 - 2*(1-normalCDF(res.Z)))
	return res
}

// EvaluateWinner locks the winner on test when the sample is large enough and the
// confidence meets the threshold. It reports whether a winner was set by this call.
// A test that already has a winner is left untouched.
func EvaluateWinner(test *models.ABTest, now time.Time) bool {
	if test.Winner != nil {
		return false
	}
	res := EvaluateSignificance(test)
	if !res.SampleSizeReached || res.Confidence < test.ConfidenceThreshold {
		return false
	}

	winner := models.VariantA
	if res.RateB > res.RateA {
		winner = models.VariantB
	}
	test.Winner = &winner
	at := now
	test.WinnerSelectedAt = &at
	return true
}

// normalCDF is the standard normal cumulative distribution function
func normalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
