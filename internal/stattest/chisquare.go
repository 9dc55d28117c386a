package stattest

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ChiSquareResult is the outcome of a chi-square independence test.
type ChiSquareResult struct {
	Statistic        float64 `json:"statistic"`
	PValue           float64 `json:"p_value"`
	DegreesOfFreedom int     `json:"degrees_of_freedom"`
	YatesCorrection  bool    `json:"yates_correction"`
}

// ChiSquare runs the chi-square test of independence on a 2x2 table with the
// Yates continuity correction. The correction is always applied here because
// every table this suite builds is exactly 2x2.
func ChiSquare(t Table2x2) ChiSquareResult {
	total := float64(t.Total())
	r1, r2 := t.RowTotals()
	c1, c2 := t.ColTotals()

	observed := []float64{
		float64(t.PatternTarget), float64(t.PatternOther),
		float64(t.NoPatternTarget), float64(t.NoPatternOther),
	}
	expected := []float64{
		float64(r1) * float64(c1) / total,
		float64(r1) * float64(c2) / total,
		float64(r2) * float64(c1) / total,
		float64(r2) * float64(c2) / total,
	}

	statistic := 0.0
	for i := range observed {
		if expected[i] == 0 {
			continue
		}
		diff := math.Abs(observed[i]-expected[i]) - 0.5 // Yates
		if diff < 0 {
			diff = 0
		}
		statistic += diff * diff / expected[i]
	}

	chiDist := distuv.ChiSquared{K: 1}
	pValue := 1 - chiDist.CDF(statistic)
	if pValue <= 0 {
		// CDF saturates for large statistics; keep p strictly in (0,1].
		pValue = math.SmallestNonzeroFloat64
	}

	return ChiSquareResult{
		Statistic:        statistic,
		PValue:           pValue,
		DegreesOfFreedom: 1,
		YatesCorrection:  true,
	}
}
