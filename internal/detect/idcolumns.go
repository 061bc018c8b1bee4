package detect

import (
	"math"
	"sort"

	"omr-grader/internal/template"

	"gonum.org/v1/gonum/stat"
)

// GroupDigitColumns clusters ID-region bubble candidates into digit columns.
// Columns are split adaptively on large gaps in sorted x, validated by
// bubble count, and trimmed or rejected so every returned column carries
// between IDMinColumnBubbles and IDDigitsPerColumn bubbles in ascending
// digit order top to bottom.
func GroupDigitColumns(candidates []Candidate, p Params) []template.DigitColumn {
	if len(candidates) == 0 {
		return nil
	}

	filtered := filterIDRadiusOutliers(candidates, p.IDRadiusOutlierFrac)
	if len(filtered) == 0 {
		filtered = candidates
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].X != filtered[j].X {
			return filtered[i].X < filtered[j].X
		}
		return filtered[i].Y < filtered[j].Y
	})

	var columns [][]Candidate
	if len(filtered) < 3 {
		// Too few points for gap statistics; plain x-threshold grouping.
		columns = thresholdColumns(filtered, p.IDMinGap)
	} else {
		columns = gapColumns(filtered, p)
	}

	// Top-to-bottom within columns, left-to-right across columns.
	for _, col := range columns {
		sort.SliceStable(col, func(i, j int) bool { return col[i].Y < col[j].Y })
	}
	sort.SliceStable(columns, func(i, j int) bool { return meanX(columns[i]) < meanX(columns[j]) })

	valid := make([][]Candidate, 0, len(columns))
	for _, col := range columns {
		if len(col) >= p.IDColumnMinCount && len(col) <= p.IDColumnMaxCount {
			valid = append(valid, col)
		}
	}
	if len(valid) == 0 {
		// Nothing in the strict window; keep the columns closest to a full
		// digit count and let the per-column refinement sort them out.
		relaxed := make([][]Candidate, len(columns))
		copy(relaxed, columns)
		sort.SliceStable(relaxed, func(i, j int) bool {
			return absInt(len(relaxed[i])-p.IDDigitsPerColumn) < absInt(len(relaxed[j])-p.IDDigitsPerColumn)
		})
		if len(relaxed) > p.IDRelaxedColumns {
			relaxed = relaxed[:p.IDRelaxedColumns]
		}
		sort.SliceStable(relaxed, func(i, j int) bool { return meanX(relaxed[i]) < meanX(relaxed[j]) })
		valid = relaxed
	}

	var result []template.DigitColumn
	for _, col := range valid {
		refined := refineColumn(col, p)
		if refined == nil {
			continue
		}
		dc := template.DigitColumn{Position: len(result) + 1}
		for rowIdx, c := range refined {
			dc.Bubbles = append(dc.Bubbles, template.DigitBubble{
				Digit:  rowIdx, // printed ascending 0-9 top to bottom
				X:      c.X,
				Y:      c.Y,
				Radius: c.Radius,
			})
		}
		result = append(result, dc)
	}
	return result
}

// gapColumns splits x-sorted candidates at gaps exceeding the adaptive
// threshold max(1.8·median, median + 1.5·std, IDMinGap).
func gapColumns(sorted []Candidate, p Params) [][]Candidate {
	gaps := make([]float64, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps[i-1] = float64(sorted[i].X - sorted[i-1].X)
	}
	medGap := median(gaps)
	stdGap := stat.StdDev(gaps, nil)
	if math.IsNaN(stdGap) {
		stdGap = 0
	}
	splitThresh := math.Max(p.IDGapMedianFactor*medGap, medGap+p.IDGapStdFactor*stdGap)
	splitThresh = math.Max(splitThresh, p.IDMinGap)

	var columns [][]Candidate
	start := 0
	for i, gap := range gaps {
		if gap > splitThresh {
			columns = append(columns, sorted[start:i+1])
			start = i + 1
		}
	}
	columns = append(columns, sorted[start:])
	return columns
}

// thresholdColumns groups candidates whose x lies within minGap of a
// column's running mean.
func thresholdColumns(candidates []Candidate, minGap float64) [][]Candidate {
	var columns [][]Candidate
	for _, c := range candidates {
		placed := false
		for i, col := range columns {
			if math.Abs(float64(c.X)-meanX(col)) < minGap {
				columns[i] = append(col, c)
				placed = true
				break
			}
		}
		if !placed {
			columns = append(columns, []Candidate{c})
		}
	}
	return columns
}

// refineColumn forces a column toward exactly IDDigitsPerColumn bubbles.
// Overfull columns keep the bubbles nearest ten evenly spaced y targets;
// columns shorter than IDMinColumnBubbles are rejected, the rest pass
// through as best effort.
func refineColumn(col []Candidate, p Params) []Candidate {
	n := p.IDDigitsPerColumn
	switch {
	case len(col) == n:
		return col
	case len(col) < n:
		if len(col) < p.IDMinColumnBubbles {
			return nil
		}
		return col
	}

	ys := make([]float64, len(col))
	for i, c := range col {
		ys[i] = float64(c.Y)
	}
	yMin, yMax := ys[0], ys[len(ys)-1]

	used := make(map[int]bool, n)
	var chosen []Candidate
	for t := 0; t < n; t++ {
		target := yMin + (yMax-yMin)*float64(t)/float64(n-1)
		best := -1
		bestDist := math.Inf(1)
		for i, y := range ys {
			if used[i] {
				continue
			}
			if d := math.Abs(y - target); d < bestDist {
				bestDist = d
				best = i
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		chosen = append(chosen, col[best])
	}

	sort.SliceStable(chosen, func(i, j int) bool { return chosen[i].Y < chosen[j].Y })
	if len(chosen) > n {
		chosen = chosen[:n]
	}
	return chosen
}

// filterIDRadiusOutliers drops candidates whose radius is further than
// frac of the median radius.
func filterIDRadiusOutliers(candidates []Candidate, frac float64) []Candidate {
	radii := make([]float64, len(candidates))
	for i, c := range candidates {
		radii[i] = float64(c.Radius)
	}
	med := median(radii)
	if med <= 0 {
		med = stat.Mean(radii, nil)
	}

	var kept []Candidate
	for _, c := range candidates {
		if math.Abs(float64(c.Radius)-med) < frac*med {
			kept = append(kept, c)
		}
	}
	return kept
}

func meanX(col []Candidate) float64 {
	xs := make([]float64, len(col))
	for i, c := range col {
		xs[i] = float64(c.X)
	}
	return stat.Mean(xs, nil)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
