package detect

import (
	"image/color"
	"sort"

	"omr-grader/pkg/geometry"

	"gocv.io/x/gocv"
)

// Marker is one detected solid-square corner marker.
type Marker struct {
	Center geometry.PointInt
	Area   float64
	Width  int
	Height int
}

// DetectIDRegion locates the four solid corner squares framing the
// student-ID block and returns their bounding rectangle (of marker centers)
// plus the accepted markers. A nil rectangle means no usable region was
// found; callers treat that as "sheet has no ID block" and carry on.
func DetectIDRegion(img gocv.Mat, p Params) (*geometry.RectInt, []Marker) {
	gray := toGray(img)
	defer gray.Close()

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(gray, &thresh, 127, 255, gocv.ThresholdBinaryInv)

	contours := gocv.FindContours(thresh, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	var markers []Marker

	for i := 0; i < contours.Size(); i++ {
		cnt := contours.At(i)
		area := gocv.ContourArea(cnt)
		if area <= p.MarkerMinArea || area >= p.MarkerMaxArea {
			continue
		}

		rect := gocv.BoundingRect(cnt)
		w, h := rect.Dx(), rect.Dy()
		if h == 0 {
			continue
		}
		aspect := float64(w) / float64(h)
		if aspect <= p.MarkerAspectMin || aspect >= p.MarkerAspectMax {
			continue
		}

		// Solid black check: mean intensity inside the contour.
		mask := gocv.NewMatWithSize(gray.Rows(), gray.Cols(), gocv.MatTypeCV8U)
		gocv.DrawContours(&mask, contours, i, white, -1)
		mean := gray.MeanWithMask(mask)
		mask.Close()
		if mean.Val1 >= p.MarkerMaxIntensity {
			continue
		}

		// Squares fill their bounding box near 100%; circles only ~π/4.
		fillRatio := area / float64(w*h)
		if fillRatio <= p.MarkerMinFillRatio {
			continue
		}

		markers = append(markers, Marker{
			Center: geometry.PointInt{X: rect.Min.X + w/2, Y: rect.Min.Y + h/2},
			Area:   area,
			Width:  w,
			Height: h,
		})
	}

	if len(markers) < 4 {
		return nil, markers
	}

	// Largest four by area; stable so exact-area ties keep detection order.
	sort.SliceStable(markers, func(i, j int) bool { return markers[i].Area > markers[j].Area })
	chosen := markers[:4]

	centers := make([]geometry.PointInt, len(chosen))
	for i, m := range chosen {
		centers[i] = m.Center
	}
	region := geometry.BoundingBoxInt(centers)

	// Markers packed tighter than this can't be framing a real ID block.
	if region.Width < p.MarkerMinSpan || region.Height < p.MarkerMinSpan {
		return nil, chosen
	}
	return &region, chosen
}
