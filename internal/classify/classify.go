// Package classify decides whether individual bubbles are filled by
// measuring the dark-pixel ratio inside each bubble's circular mask.
package classify

import (
	"image"
	"image/color"

	"omr-grader/internal/template"

	"gocv.io/x/gocv"
)

// IsFilled reports whether the circle at (x, y) with the given radius is
// filled on the grayscale image, along with the measured fill percentage
// (0-100). A bubble counts as filled when at least thresholdPercent of its
// mask pixels are darker than mid-gray. A degenerate zero-pixel mask yields
// (false, 0) rather than dividing by zero.
func IsFilled(gray gocv.Mat, x, y, radius int, thresholdPercent float64) (bool, float64) {
	mask := gocv.NewMatWithSize(gray.Rows(), gray.Cols(), gocv.MatTypeCV8U)
	defer mask.Close()
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	gocv.Circle(&mask, image.Point{X: x, Y: y}, radius, white, -1)

	circlePixels := gocv.CountNonZero(mask)
	if circlePixels == 0 {
		return false, 0.0
	}

	region := gocv.NewMat()
	defer region.Close()
	gocv.BitwiseAndWithMask(gray, gray, &region, mask)

	// Inverse threshold turns ink into foreground; the surrounding zeroed
	// pixels also go white, so the count is masked back to the circle.
	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(region, &thresh, 127, 255, gocv.ThresholdBinaryInv)

	dark := gocv.NewMat()
	defer dark.Close()
	gocv.BitwiseAndWithMask(thresh, thresh, &dark, mask)

	fillPercent := 100 * float64(gocv.CountNonZero(dark)) / float64(circlePixels)
	return fillPercent >= thresholdPercent, fillPercent
}

// Questions classifies every bubble of every question in place, recording
// Filled and FillPercent on the (already scaled) bubbles.
func Questions(gray gocv.Mat, questions []template.Question, thresholdPercent float64) {
	for qi := range questions {
		for bi := range questions[qi].Bubbles {
			b := &questions[qi].Bubbles[bi]
			b.Filled, b.FillPercent = IsFilled(gray, b.X, b.Y, b.Radius, thresholdPercent)
		}
	}
}

// DigitColumns classifies every digit bubble of every column in place.
func DigitColumns(gray gocv.Mat, columns []template.DigitColumn, thresholdPercent float64) {
	for ci := range columns {
		for bi := range columns[ci].Bubbles {
			b := &columns[ci].Bubbles[bi]
			b.Filled, b.FillPercent = IsFilled(gray, b.X, b.Y, b.Radius, thresholdPercent)
		}
	}
}
