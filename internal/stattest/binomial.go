package stattest

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// BinomialResult tests an observed count against a null proportion.
type BinomialResult struct {
	Observed      int     `json:"observed"`
	N             int     `json:"n"`
	NullRate      float64 `json:"null_rate"`
	PValue        float64 `json:"p_value"`
	Exact         bool    `json:"exact"`
	IsSignificant bool    `json:"is_significant"`
}

// binomialSignificance is the fixed decision threshold for pattern flagging.
const binomialSignificance = 0.05

// BinomialTest computes the upper-tail probability of seeing at least the
// observed count under the null rate. The exact binomial distribution is
// used when the expected counts are small; otherwise the normal
// approximation with continuity correction, which is indistinguishable at
// that scale and much cheaper across a large pattern batch.
func BinomialTest(observed, n int, nullRate float64) BinomialResult {
	result := BinomialResult{Observed: observed, N: n, NullRate: nullRate, PValue: 1}
	if n <= 0 || nullRate <= 0 || nullRate >= 1 {
		return result
	}
	if observed < 0 {
		observed = 0
	}
	if observed > n {
		observed = n
	}

	expected := float64(n) * nullRate
	complement := float64(n) * (1 - nullRate)

	if expected < 10 || complement < 10 {
		bin := distuv.Binomial{N: float64(n), P: nullRate}
		// P(X >= observed) = 1 - P(X <= observed-1)
		if observed == 0 {
			result.PValue = 1
		} else {
			result.PValue = 1 - bin.CDF(float64(observed-1))
		}
		result.Exact = true
	} else {
		sd := math.Sqrt(expected * (1 - nullRate))
		z := (float64(observed) - 0.5 - expected) / sd
		result.PValue = 1 - distuv.UnitNormal.CDF(z)
	}

	if result.PValue < 0 {
		result.PValue = 0
	}
	if result.PValue > 1 {
		result.PValue = 1
	}
	result.IsSignificant = result.PValue < binomialSignificance
	return result
}
