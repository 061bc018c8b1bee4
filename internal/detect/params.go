// Package detect locates alignment markers and bubble candidates on a
// scanned answer sheet and partitions them into questions and student-ID
// digit columns, producing the reference template geometry.
package detect

// Params holds the tunable constants of the detection pipeline. The
// defaults were tuned empirically on letter-size 300 DPI sheets; layouts
// with unusual bubble sizes or column spacing should override them from
// configuration instead of editing the literals.
type Params struct {
	// Corner marker filter.
	MarkerMinArea      float64 // px², reject smaller contours
	MarkerMaxArea      float64 // px²
	MarkerAspectMin    float64 // bounding-box w/h, near-square window
	MarkerAspectMax    float64
	MarkerMaxIntensity float64 // mean gray level inside the contour, solid black
	MarkerMinFillRatio float64 // contour area / bbox area; circles sit near π/4
	MarkerMinSpan      int     // px, minimum width and height of the marker rectangle

	// Bubble candidate filter.
	BubbleMinArea   float64
	BubbleMaxArea   float64
	BubbleMinRadius float64 // min enclosing circle radius, px
	BubbleMaxRadius float64
	CircularityMin  float64 // 4πA/P²
	CircularityMax  float64

	// Question grouping.
	RowTolerance       float64 // px, y distance to a row's running mean
	RadiusOutlierFrac  float64 // drop bubbles deviating this fraction from row median radius
	ChoicesPerQuestion int     // bubbles per question, labeled A..
	ColumnTolerance    float64 // px, x_min distance to a column's running mean

	// Student-ID digit columns.
	IDRegionPadding     int     // px added around the marker rectangle when masking
	IDRadiusOutlierFrac float64 // median-relative radius filter inside the ID region
	IDMinGap            float64 // px, floor for the adaptive column split threshold
	IDGapMedianFactor   float64
	IDGapStdFactor      float64
	IDColumnMinCount    int // bubble count window for a valid column
	IDColumnMaxCount    int
	IDRelaxedColumns    int // fallback: keep this many columns nearest 10 bubbles
	IDMinColumnBubbles  int // columns below this are rejected outright
	IDDigitsPerColumn   int // bubbles a complete column carries
}

// DefaultParams returns the detection constants used by the stock sheet
// layout.
func DefaultParams() Params {
	return Params{
		MarkerMinArea:      200,
		MarkerMaxArea:      2000,
		MarkerAspectMin:    0.85,
		MarkerAspectMax:    1.15,
		MarkerMaxIntensity: 60,
		MarkerMinFillRatio: 0.85,
		MarkerMinSpan:      100,

		BubbleMinArea:   100,
		BubbleMaxArea:   4000,
		BubbleMinRadius: 10,
		BubbleMaxRadius: 50,
		CircularityMin:  0.7,
		CircularityMax:  1.2,

		RowTolerance:       30,
		RadiusOutlierFrac:  0.30,
		ChoicesPerQuestion: 4,
		ColumnTolerance:    100,

		IDRegionPadding:     20,
		IDRadiusOutlierFrac: 0.45,
		IDMinGap:            30,
		IDGapMedianFactor:   1.8,
		IDGapStdFactor:      1.5,
		IDColumnMinCount:    8,
		IDColumnMaxCount:    12,
		IDRelaxedColumns:    6,
		IDMinColumnBubbles:  7,
		IDDigitsPerColumn:   10,
	}
}
