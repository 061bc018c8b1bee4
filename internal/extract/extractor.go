package extract

import (
	"fmt"
	"strconv"
	"time"

	"omr-grader/internal/classify"
	"omr-grader/internal/detect"
	"omr-grader/internal/template"

	"gocv.io/x/gocv"
)

// Extractor runs the deterministic extract pipeline for one template.
// The template is shared read-only, so a single Extractor is safe to use
// from concurrent batch workers.
type Extractor struct {
	tmpl         *template.Template
	templatePath string
}

// New creates an extractor for a template. templatePath is recorded in
// result metadata only and may be empty.
func New(tmpl *template.Template, templatePath string) *Extractor {
	return &Extractor{tmpl: tmpl, templatePath: templatePath}
}

// ExtractFile loads a sheet image from disk and extracts it.
func (e *Extractor) ExtractFile(path string, thresholdPercent float64) (*Result, error) {
	mat, err := detect.LoadMat(path)
	if err != nil {
		return nil, err
	}
	defer mat.Close()
	return e.Extract(mat, path, thresholdPercent)
}

// Extract scales the template onto the image, classifies every bubble
// against the grayscale sheet, and resolves answers and student ID. The
// returned Result is complete and never mutated afterwards.
func (e *Extractor) Extract(img gocv.Mat, sourceName string, thresholdPercent float64) (*Result, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image: %s", sourceName)
	}

	scaled, err := e.tmpl.Scale(img.Cols(), img.Rows())
	if err != nil {
		return nil, fmt.Errorf("scale template onto %s: %w", sourceName, err)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if img.Channels() == 1 {
		img.CopyTo(&gray)
	} else {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	}

	classify.Questions(gray, scaled.Questions, thresholdPercent)
	classify.DigitColumns(gray, scaled.DigitColumns, thresholdPercent)

	result := &Result{
		Metadata: Metadata{
			SourceImage:      sourceName,
			ExtractedAt:      time.Now(),
			TemplateUsed:     e.templatePath,
			ThresholdPercent: thresholdPercent,
			TotalQuestions:   len(scaled.Questions),
		},
		StudentID: ResolveDigits(scaled.DigitColumns),
		Answers:   make(map[string]QuestionResult, len(scaled.Questions)),
	}

	for _, q := range scaled.Questions {
		qr := QuestionResult{
			QuestionNumber:  q.Number,
			SelectedAnswers: q.SelectedLabels(),
		}
		for _, b := range q.Bubbles {
			qr.Bubbles = append(qr.Bubbles, BubbleResult{
				Label:          b.Label,
				Filled:         b.Filled,
				FillPercentage: roundPercent(b.FillPercent),
			})
		}
		result.Answers[strconv.Itoa(q.Number)] = qr
	}
	return result, nil
}

// ScaledFor returns the template scaled to the image's dimensions, for
// callers that need the geometry alongside the result (overlay rendering).
func (e *Extractor) ScaledFor(img gocv.Mat) (*template.Template, error) {
	return e.tmpl.Scale(img.Cols(), img.Rows())
}
