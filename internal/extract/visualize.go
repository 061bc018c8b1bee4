package extract

import (
	"fmt"
	"image"
	"image/color"

	"omr-grader/internal/template"

	"gocv.io/x/gocv"
)

// WriteOverlay draws the extraction outcome onto a copy of the sheet and
// writes it as an image file: filled answer bubbles in green, empty ones in
// red, the selected ID digit per column in magenta (orange when it won a
// conflict), the remaining ID bubbles in purple.
func WriteOverlay(img gocv.Mat, scaled *template.Template, result *Result, outPath string) error {
	if img.Empty() {
		return fmt.Errorf("empty image")
	}
	out := img.Clone()
	defer out.Close()

	green := color.RGBA{G: 255, A: 255}
	red := color.RGBA{R: 255, A: 255}
	magenta := color.RGBA{R: 255, B: 255, A: 255}
	orange := color.RGBA{R: 255, G: 165, A: 255}
	purple := color.RGBA{R: 128, B: 128, A: 255}
	blue := color.RGBA{B: 255, A: 255}

	for _, q := range scaled.Questions {
		qr, ok := result.Answers[fmt.Sprintf("%d", q.Number)]
		for i, b := range q.Bubbles {
			filled := ok && i < len(qr.Bubbles) && qr.Bubbles[i].Filled
			c, thickness := red, 2
			if filled {
				c, thickness = green, 3
			}
			gocv.Circle(&out, image.Point{X: b.X, Y: b.Y}, b.Radius, c, thickness)
			gocv.PutText(&out, b.Label, image.Point{X: b.X - 5, Y: b.Y - b.Radius - 5},
				gocv.FontHersheySimplex, 0.4, c, 1)
		}
	}

	if result.StudentID != nil {
		byPosition := make(map[int]DigitDetail, len(result.StudentID.Digits))
		for _, d := range result.StudentID.Digits {
			byPosition[d.Position] = d
		}

		for _, col := range scaled.DigitColumns {
			detail := byPosition[col.Position]
			for _, b := range col.Bubbles {
				c, thickness := purple, 1
				if detail.Digit != nil && b.Digit == *detail.Digit {
					c, thickness = magenta, 3
					if detail.Status == DigitConflict {
						c = orange
					}
				}
				gocv.Circle(&out, image.Point{X: b.X, Y: b.Y}, b.Radius, c, thickness)
			}
		}

		gocv.PutText(&out, "ID: "+result.StudentID.StudentID, image.Point{X: 50, Y: 50},
			gocv.FontHersheySimplex, 1.2, blue, 3)
	}

	if ok := gocv.IMWrite(outPath, out); !ok {
		return fmt.Errorf("write overlay %s", outPath)
	}
	return nil
}
