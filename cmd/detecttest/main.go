// Command detecttest runs sheet detection on a scanned image and prints the
// raw geometry, for tuning detection parameters against a new layout.
package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"omr-grader/internal/detect"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

func main() {
	imagePath := flag.String("image", "", "Path to scanned sheet (PNG, JPEG, TIFF, or BMP)")
	choices := flag.Int("choices", 4, "Answer choices per question")
	rowTol := flag.Float64("row-tolerance", 30, "Row clustering tolerance in pixels")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: detecttest -image <path> [-choices 4] [-row-tolerance 30]")
		os.Exit(1)
	}

	f, err := os.Open(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open image: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to decode image: %v\n", err)
		os.Exit(1)
	}

	bounds := img.Bounds()
	fmt.Printf("Loaded %s image: %dx%d pixels\n", format, bounds.Dx(), bounds.Dy())

	params := detect.DefaultParams()
	params.ChoicesPerQuestion = *choices
	params.RowTolerance = *rowTol
	fmt.Printf("\nDetection parameters:\n")
	fmt.Printf("  Marker area: %.0f-%.0f px2, aspect %.2f-%.2f, max intensity %.0f\n",
		params.MarkerMinArea, params.MarkerMaxArea,
		params.MarkerAspectMin, params.MarkerAspectMax, params.MarkerMaxIntensity)
	fmt.Printf("  Bubble area: %.0f-%.0f px2, radius %.0f-%.0f px\n",
		params.BubbleMinArea, params.BubbleMaxArea,
		params.BubbleMinRadius, params.BubbleMaxRadius)
	fmt.Printf("  Circularity: %.2f-%.2f\n", params.CircularityMin, params.CircularityMax)
	fmt.Printf("  Row tolerance: %.0f px, choices per question: %d\n",
		params.RowTolerance, params.ChoicesPerQuestion)

	fmt.Printf("\nDetecting...\n")
	geom, err := detect.DetectSheetFromImage(img, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Detection failed: %v\n", err)
		os.Exit(1)
	}

	if geom.IDRegion != nil {
		fmt.Printf("\nStudent-ID region: (%d,%d) %dx%d from %d markers\n",
			geom.IDRegion.X, geom.IDRegion.Y,
			geom.IDRegion.Width, geom.IDRegion.Height, len(geom.Markers))
		for i, m := range geom.Markers {
			fmt.Printf("  marker %d: center (%d,%d) area %.0f\n",
				i+1, m.Center.X, m.Center.Y, m.Area)
		}
	} else {
		fmt.Printf("\nNo student-ID region (corner markers not found)\n")
	}

	fmt.Printf("\nQuestions: %d\n", len(geom.Questions))
	fmt.Printf("%-6s %-8s %10s %10s %8s\n", "Q", "Choices", "X", "Y", "Radius")
	for _, q := range geom.Questions {
		for _, b := range q.Bubbles {
			fmt.Printf("%-6d %-8s %10d %10d %8d\n", q.Number, b.Label, b.X, b.Y, b.Radius)
		}
	}

	if len(geom.DigitColumns) > 0 {
		fmt.Printf("\nID digit columns: %d\n", len(geom.DigitColumns))
		for _, col := range geom.DigitColumns {
			fmt.Printf("  position %d: %d bubbles\n", col.Position, len(col.Bubbles))
		}
	}
}
