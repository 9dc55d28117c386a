package stattest

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// PowerResult reports achieved power and the sample size that would reach
// the target power for the same effect.
type PowerResult struct {
	ObservedPower      float64 `json:"observed_power"`
	RequiredSampleSize int     `json:"required_sample_size"`
}

// alpha is the fixed significance level of the power framework.
const alpha = 0.05

// targetPower is the conventional planning floor.
const targetPower = 0.8

// MinimumSampleSize returns the smallest N at which a two-proportion test
// detects effectSize (difference from the 50% reference proportion) with
// desiredPower at alpha 0.05, using the standard normal-approximation
// formula n = (z_{a/2} + z_power)^2 * (p1(1-p1) + p2(1-p2)) / (p1-p2)^2.
func MinimumSampleSize(effectSize, desiredPower float64) int {
	if effectSize <= 0 {
		return math.MaxInt32
	}
	if desiredPower <= 0 || desiredPower >= 1 {
		desiredPower = targetPower
	}
	if effectSize > 0.5 {
		effectSize = 0.5
	}

	p1 := 0.5
	p2 := 0.5 - effectSize

	zAlpha := distuv.UnitNormal.Quantile(1 - alpha/2)
	zBeta := distuv.UnitNormal.Quantile(desiredPower)

	variance := p1*(1-p1) + p2*(1-p2)
	n := (zAlpha + zBeta) * (zAlpha + zBeta) * variance / (effectSize * effectSize)
	return int(math.Ceil(n))
}

// StatisticalPower inverts the same framework: given the actual sample size
// and the smallest frequency difference worth detecting, it returns the
// achieved power and the sample size needed to hit the 0.8 planning floor.
func StatisticalPower(sampleSize int, minDetectableFrequency float64) PowerResult {
	if sampleSize <= 0 || minDetectableFrequency <= 0 {
		return PowerResult{RequiredSampleSize: MinimumSampleSize(minDetectableFrequency, targetPower)}
	}
	effect := minDetectableFrequency
	if effect > 0.5 {
		effect = 0.5
	}

	p1 := 0.5
	p2 := 0.5 - effect
	variance := p1*(1-p1) + p2*(1-p2)

	zAlpha := distuv.UnitNormal.Quantile(1 - alpha/2)
	z := effect*math.Sqrt(float64(sampleSize)/variance) - zAlpha
	power := distuv.UnitNormal.CDF(z)

	return PowerResult{
		ObservedPower:      clampProb(power),
		RequiredSampleSize: MinimumSampleSize(effect, targetPower),
	}
}

func clampProb(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
