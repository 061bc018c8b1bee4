package detect

import (
	"fmt"
	"image"

	"omr-grader/internal/template"
	"omr-grader/pkg/geometry"

	"gocv.io/x/gocv"
)

// SheetGeometry is the raw detection output for one page: questions, ID
// digit columns, and the marker rectangle they were found in. Markers and
// DigitColumns are empty when the corner markers were not found; that is a
// degraded sheet, not an error.
type SheetGeometry struct {
	Questions    []template.Question
	DigitColumns []template.DigitColumn
	IDRegion     *geometry.RectInt
	Markers      []Marker
}

// DetectSheet runs the full detection pass over one sheet image: locate
// the student-ID region from its corner markers, find question bubbles
// everywhere else, then find ID bubbles inside the region.
func DetectSheet(img gocv.Mat, p Params) (*SheetGeometry, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	height, width := img.Rows(), img.Cols()
	geom := &SheetGeometry{}
	geom.IDRegion, geom.Markers = DetectIDRegion(img, p)

	// Question bubbles: everything except the ID block. Without markers
	// we search the whole page and skip ID extraction for this sheet.
	questionMask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), height, width, gocv.MatTypeCV8U)
	defer questionMask.Close()
	if geom.IDRegion != nil {
		excl := geom.IDRegion.Pad(p.IDRegionPadding, width, height)
		zeroRegion(&questionMask, excl)
	}
	qCandidates := FindBubbleCandidates(img, &questionMask, p)
	geom.Questions = GroupQuestions(qCandidates, p)

	if geom.IDRegion != nil {
		idMask := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8U)
		defer idMask.Close()
		fillRegion(&idMask, *geom.IDRegion)

		idCandidates := FindBubbleCandidates(img, &idMask, p)
		geom.DigitColumns = GroupDigitColumns(idCandidates, p)
	}
	return geom, nil
}

// DetectSheetFromImage runs DetectSheet on a decoded Go image.
func DetectSheetFromImage(srcImg image.Image, p Params) (*SheetGeometry, error) {
	mat, err := imageToMat(srcImg)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()
	return DetectSheet(mat, p)
}

// BuildPage detects one page and packages it as a template artifact page.
func BuildPage(img gocv.Mat, dpi int, p Params) (*template.Page, error) {
	geom, err := DetectSheet(img, p)
	if err != nil {
		return nil, err
	}

	page := &template.Page{
		ImageDimensions: template.ImageDimensions{
			Width:  img.Cols(),
			Height: img.Rows(),
			DPI:    dpi,
		},
		Questions: geom.Questions,
	}
	if len(geom.DigitColumns) > 0 {
		page.StudentID = &template.IDBlock{
			TotalDigits:  len(geom.DigitColumns),
			DigitColumns: geom.DigitColumns,
		}
	}
	return page, nil
}

// BuildPageFromImage detects geometry on a decoded Go image, the form
// rasterized PDF pages arrive in.
func BuildPageFromImage(srcImg image.Image, dpi int, p Params) (*template.Page, error) {
	mat, err := imageToMat(srcImg)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()
	return BuildPage(mat, dpi, p)
}

// BuildPageFromFile loads an image file and detects its geometry.
func BuildPageFromFile(path string, dpi int, p Params) (*template.Page, error) {
	mat, err := LoadMat(path)
	if err != nil {
		return nil, err
	}
	defer mat.Close()
	return BuildPage(mat, dpi, p)
}

// zeroRegion blanks a rectangle of a single-channel mask.
func zeroRegion(mask *gocv.Mat, r geometry.RectInt) {
	region := mask.Region(image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height))
	defer region.Close()
	region.SetTo(gocv.NewScalar(0, 0, 0, 0))
}

// fillRegion sets a rectangle of a single-channel mask to 255.
func fillRegion(mask *gocv.Mat, r geometry.RectInt) {
	region := mask.Region(image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height))
	defer region.Close()
	region.SetTo(gocv.NewScalar(255, 0, 0, 0))
}
