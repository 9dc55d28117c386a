package stattest

import (
	"math"

	"gonum.org/v1/gonum/stat/combin"
)

// FisherResult is the outcome of Fisher's exact test on a 2x2 table.
type FisherResult struct {
	PValue     float64 `json:"p_value"`
	OddsRatio  float64 `json:"odds_ratio"`
	CILower    float64 `json:"ci_lower"`
	CIUpper    float64 `json:"ci_upper"`
	Confidence float64 `json:"confidence_level"`
}

// z for a two-sided 95% interval.
const z95 = 1.959963984540054

// FisherExact computes the exact two-sided hypergeometric p-value for a 2x2
// table, plus the odds ratio and its 95% confidence interval via the
// log-odds normal approximation. Zero cells get the Haldane 0.5 correction
// for the odds-ratio arithmetic; the p-value itself stays exact.
func FisherExact(t Table2x2) FisherResult {
	r1, r2 := t.RowTotals()
	c1, _ := t.ColTotals()
	n := t.Total()

	observed := hypergeomLogPMF(t.PatternTarget, r1, r2, c1, n)

	// Two-sided: sum probabilities of all tables with the same margins that
	// are no more likely than the observed one.
	lo := 0
	if c1-r2 > lo {
		lo = c1 - r2
	}
	hi := r1
	if c1 < hi {
		hi = c1
	}

	pValue := 0.0
	const slack = 1e-7 // float tolerance when comparing pmf values
	for a := lo; a <= hi; a++ {
		logP := hypergeomLogPMF(a, r1, r2, c1, n)
		if logP <= observed+slack {
			pValue += math.Exp(logP)
		}
	}
	if pValue > 1 {
		pValue = 1
	}
	if pValue <= 0 {
		pValue = math.SmallestNonzeroFloat64
	}

	a, b := float64(t.PatternTarget), float64(t.PatternOther)
	c, d := float64(t.NoPatternTarget), float64(t.NoPatternOther)
	if a == 0 || b == 0 || c == 0 || d == 0 {
		// Haldane correction keeps the odds ratio finite.
		a, b, c, d = a+0.5, b+0.5, c+0.5, d+0.5
	}
	oddsRatio := (a * d) / (b * c)
	se := math.Sqrt(1/a + 1/b + 1/c + 1/d)
	logOR := math.Log(oddsRatio)

	return FisherResult{
		PValue:     pValue,
		OddsRatio:  oddsRatio,
		CILower:    math.Exp(logOR - z95*se),
		CIUpper:    math.Exp(logOR + z95*se),
		Confidence: 0.95,
	}
}

// hypergeomLogPMF is log P(X = a) for a 2x2 table with fixed margins:
// C(r1, a) * C(r2, c1-a) / C(n, c1).
func hypergeomLogPMF(a, r1, r2, c1, n int) float64 {
	return combin.LogGeneralizedBinomial(float64(r1), float64(a)) +
		combin.LogGeneralizedBinomial(float64(r2), float64(c1-a)) -
		combin.LogGeneralizedBinomial(float64(n), float64(c1))
}
