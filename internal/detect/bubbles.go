package detect

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Candidate is one circular contour that passed the bubble filters.
type Candidate struct {
	X      int
	Y      int
	Radius int
	Area   float64
}

// FindBubbleCandidates detects circular bubble candidates, optionally
// restricted to a binary region mask (255 = search, 0 = ignore). The same
// routine serves question bubbles (masking the ID block out) and ID bubbles
// (masking everything else out).
func FindBubbleCandidates(img gocv.Mat, regionMask *gocv.Mat, p Params) []Candidate {
	gray := toGray(img)
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: 5, Y: 5}, 0, 0, gocv.BorderDefault)

	// Otsu picks the ink threshold per sheet; fixed cuts fail on faint scans.
	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(blurred, &thresh, 0, 255, gocv.ThresholdBinaryInv+gocv.ThresholdOtsu)

	if regionMask != nil {
		masked := gocv.NewMat()
		gocv.BitwiseAndWithMask(thresh, thresh, &masked, *regionMask)
		thresh.Close()
		thresh = masked
	}

	contours := gocv.FindContours(thresh, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var candidates []Candidate
	for i := 0; i < contours.Size(); i++ {
		cnt := contours.At(i)
		area := gocv.ContourArea(cnt)
		if area <= p.BubbleMinArea || area >= p.BubbleMaxArea {
			continue
		}

		x, y, radius := gocv.MinEnclosingCircle(cnt)
		if float64(radius) <= p.BubbleMinRadius || float64(radius) >= p.BubbleMaxRadius {
			continue
		}

		perimeter := gocv.ArcLength(cnt, true)
		if perimeter == 0 {
			continue
		}
		// 4πA/P²: 1.0 for a perfect circle, ~0.785 for a square.
		circularity := 4 * math.Pi * area / (perimeter * perimeter)
		if circularity <= p.CircularityMin || circularity >= p.CircularityMax {
			continue
		}

		candidates = append(candidates, Candidate{
			X:      int(x),
			Y:      int(y),
			Radius: int(radius),
			Area:   area,
		})
	}
	return candidates
}
