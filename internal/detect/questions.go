package detect

import (
	"math"
	"sort"

	"omr-grader/internal/template"

	"gonum.org/v1/gonum/stat"
)

// GroupQuestions partitions bubble candidates into questions: greedy row
// assignment by y, radius-outlier removal per row, consecutive groups of
// ChoicesPerQuestion labeled A.., then column clustering. Question numbers
// run column-major: all of the leftmost column top to bottom, then the next.
func GroupQuestions(candidates []Candidate, p Params) []template.Question {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y < sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	// Greedy row assignment against each row's running mean y.
	var rows [][]Candidate
	for _, c := range sorted {
		placed := false
		for i, row := range rows {
			if math.Abs(float64(c.Y)-meanY(row)) < p.RowTolerance {
				rows[i] = append(row, c)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, []Candidate{c})
		}
	}

	var groups []questionGroup

	for _, row := range rows {
		filtered := filterRadiusOutliers(row, p.RadiusOutlierFrac)
		sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].X < filtered[j].X })

		// Consecutive sets of one question's choices; a trailing partial
		// set is noise, not a question.
		for i := 0; i+p.ChoicesPerQuestion <= len(filtered); i += p.ChoicesPerQuestion {
			set := filtered[i : i+p.ChoicesPerQuestion]
			groups = append(groups, questionGroup{bubbles: set, bounds: groupBounds(set)})
		}
	}

	if len(groups) == 0 {
		return nil
	}

	// Column clustering on the group's x_min, again by running mean.
	var columns [][]questionGroup
	for _, g := range groups {
		placed := false
		for i, col := range columns {
			var sum float64
			for _, cg := range col {
				sum += float64(cg.bounds.XMin)
			}
			if math.Abs(float64(g.bounds.XMin)-sum/float64(len(col))) < p.ColumnTolerance {
				columns[i] = append(col, g)
				placed = true
				break
			}
		}
		if !placed {
			columns = append(columns, []questionGroup{g})
		}
	}

	sort.SliceStable(columns, func(i, j int) bool {
		return columnMeanX(columns[i]) < columnMeanX(columns[j])
	})
	for _, col := range columns {
		sort.SliceStable(col, func(i, j int) bool { return col[i].bounds.YMin < col[j].bounds.YMin })
	}

	var questions []template.Question
	number := 0
	for _, col := range columns {
		for _, g := range col {
			number++
			q := template.Question{Number: number}
			bounds := g.bounds
			q.Bounds = &bounds
			for j, c := range g.bubbles {
				q.Bubbles = append(q.Bubbles, template.Bubble{
					Label:  choiceLabel(j),
					X:      c.X,
					Y:      c.Y,
					Radius: c.Radius,
				})
			}
			questions = append(questions, q)
		}
	}
	return questions
}

// choiceLabel returns the label of the i-th choice in a question: A, B, C...
func choiceLabel(i int) string {
	return string(rune('A' + i))
}

// filterRadiusOutliers drops candidates whose radius deviates more than
// frac of the row's median radius. Spurious contours rarely match the
// uniform printed bubble size.
func filterRadiusOutliers(row []Candidate, frac float64) []Candidate {
	if len(row) == 0 {
		return nil
	}
	radii := make([]float64, len(row))
	for i, c := range row {
		radii[i] = float64(c.Radius)
	}
	med := median(radii)

	var kept []Candidate
	for _, c := range row {
		if math.Abs(float64(c.Radius)-med) < frac*med {
			kept = append(kept, c)
		}
	}
	return kept
}

func groupBounds(set []Candidate) template.BoundingBox {
	bb := template.BoundingBox{
		XMin: set[0].X, XMax: set[0].X,
		YMin: set[0].Y, YMax: set[0].Y,
	}
	var radiusSum float64
	for _, c := range set {
		if c.X < bb.XMin {
			bb.XMin = c.X
		}
		if c.X > bb.XMax {
			bb.XMax = c.X
		}
		if c.Y < bb.YMin {
			bb.YMin = c.Y
		}
		if c.Y > bb.YMax {
			bb.YMax = c.Y
		}
		radiusSum += float64(c.Radius)
	}
	bb.AvgRadius = int(math.Round(radiusSum / float64(len(set))))
	return bb
}

func meanY(row []Candidate) float64 {
	ys := make([]float64, len(row))
	for i, c := range row {
		ys[i] = float64(c.Y)
	}
	return stat.Mean(ys, nil)
}

// questionGroup is one question's worth of adjacent bubbles with its
// reference-space bounds.
type questionGroup struct {
	bubbles []Candidate
	bounds  template.BoundingBox
}

func columnMeanX(col []questionGroup) float64 {
	xs := make([]float64, len(col))
	for i, g := range col {
		xs[i] = float64(g.bounds.XMin)
	}
	return stat.Mean(xs, nil)
}

// median returns the middle value of xs without mutating it.
func median(xs []float64) float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}
