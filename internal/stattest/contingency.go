// Package stattest runs the hypothesis tests behind correlation validation:
// chi-square with Yates correction, Fisher's exact test, binomial tests, and
// the shared normal-approximation power framework.
package stattest

// Table2x2 is a 2x2 contingency table for one pattern against one target CMS.
//
//	rows:    {has pattern, lacks pattern}
//	columns: {target CMS, all other CMS}
type Table2x2 struct {
	PatternTarget   int `json:"pattern_target"`    // has pattern, target CMS
	PatternOther    int `json:"pattern_other"`     // has pattern, other CMS
	NoPatternTarget int `json:"no_pattern_target"` // lacks pattern, target CMS
	NoPatternOther  int `json:"no_pattern_other"`  // lacks pattern, other CMS
}

// Total returns the table's grand total.
func (t Table2x2) Total() int {
	return t.PatternTarget + t.PatternOther + t.NoPatternTarget + t.NoPatternOther
}

// RowTotals returns {has pattern, lacks pattern} marginals.
func (t Table2x2) RowTotals() (int, int) {
	return t.PatternTarget + t.PatternOther, t.NoPatternTarget + t.NoPatternOther
}

// ColTotals returns {target CMS, other CMS} marginals.
func (t Table2x2) ColTotals() (int, int) {
	return t.PatternTarget + t.NoPatternTarget, t.PatternOther + t.NoPatternOther
}

// MinCell returns the smallest cell count.
func (t Table2x2) MinCell() int {
	min := t.PatternTarget
	for _, v := range []int{t.PatternOther, t.NoPatternTarget, t.NoPatternOther} {
		if v < min {
			min = v
		}
	}
	return min
}

// Degenerate reports whether a whole row or column is zero, which makes any
// independence test meaningless.
func (t Table2x2) Degenerate() bool {
	r1, r2 := t.RowTotals()
	c1, c2 := t.ColTotals()
	return r1 == 0 || r2 == 0 || c1 == 0 || c2 == 0
}

// BuildTable assembles the contingency table from a pattern's occurrence
// counts: occurrences inside the target CMS, the pattern's overall
// occurrences, the target CMS's site total, and the dataset total.
func BuildTable(targetOccurrences, overallOccurrences, targetTotal, totalSites int) Table2x2 {
	return Table2x2{
		PatternTarget:   targetOccurrences,
		PatternOther:    overallOccurrences - targetOccurrences,
		NoPatternTarget: targetTotal - targetOccurrences,
		NoPatternOther:  (totalSites - targetTotal) - (overallOccurrences - targetOccurrences),
	}
}
