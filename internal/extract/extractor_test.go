package extract

import (
	"image"
	"image/color"
	"testing"

	"omr-grader/internal/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocv.io/x/gocv"
)

// syntheticSheet draws a filled white page and returns it with a matching
// two-question, two-digit template at the same resolution.
func syntheticSheet(t *testing.T) (gocv.Mat, *template.Template) {
	t.Helper()
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 600, 600, gocv.MatTypeCV8U)
	t.Cleanup(func() { img.Close() })

	tmpl := &template.Template{ReferenceWidth: 600, ReferenceHeight: 600}
	for q := 1; q <= 2; q++ {
		question := template.Question{Number: q}
		for i, label := range []string{"A", "B", "C", "D"} {
			question.Bubbles = append(question.Bubbles, template.Bubble{
				Label: label, X: 60 + i*50, Y: 60 + q*60, Radius: 14,
			})
		}
		tmpl.Questions = append(tmpl.Questions, question)
	}
	for pos := 1; pos <= 2; pos++ {
		col := template.DigitColumn{Position: pos}
		for d := 0; d < 10; d++ {
			col.Bubbles = append(col.Bubbles, template.DigitBubble{
				Digit: d, X: 380 + pos*50, Y: 150 + d*30, Radius: 10,
			})
		}
		tmpl.DigitColumns = append(tmpl.DigitColumns, col)
	}
	return img, tmpl
}

func mark(img *gocv.Mat, x, y, radius int) {
	gocv.Circle(img, image.Point{X: x, Y: y}, radius, color.RGBA{A: 255}, -1)
}

func TestExtractEndToEnd(t *testing.T) {
	img, tmpl := syntheticSheet(t)

	// Answers: Q1=B, Q2=A and D. Student ID 4 then 7.
	mark(&img, 110, 120, 14)
	mark(&img, 60, 180, 14)
	mark(&img, 210, 180, 14)
	mark(&img, 430, 150+4*30, 10)
	mark(&img, 480, 150+7*30, 10)

	extractor := New(tmpl, "template.json")
	result, err := extractor.Extract(img, "synthetic.png", 25)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Metadata.TotalQuestions)
	assert.Equal(t, []string{"B"}, result.Answers["1"].SelectedAnswers)
	assert.Equal(t, []string{"A", "D"}, result.Answers["2"].SelectedAnswers)

	require.NotNil(t, result.StudentID)
	assert.Equal(t, "47", result.StudentID.StudentID)
	assert.True(t, result.StudentID.IsValid)
}

func TestExtractBlankSheet(t *testing.T) {
	img, tmpl := syntheticSheet(t)

	extractor := New(tmpl, "")
	result, err := extractor.Extract(img, "blank.png", 25)
	require.NoError(t, err)

	for _, qr := range result.Answers {
		assert.Empty(t, qr.SelectedAnswers)
	}
	require.NotNil(t, result.StudentID)
	assert.Equal(t, "__", result.StudentID.StudentID)
	assert.False(t, result.StudentID.IsValid)
}

func TestExtractScalesTemplateToImage(t *testing.T) {
	img, tmpl := syntheticSheet(t)

	// The mark sits where Q1's B bubble lands after scaling the 600x600
	// reference onto this 600x600 image; identity here, but the template
	// handed in is never mutated.
	mark(&img, 110, 120, 14)

	extractor := New(tmpl, "")
	_, err := extractor.Extract(img, "s.png", 25)
	require.NoError(t, err)

	assert.False(t, tmpl.Questions[0].Bubbles[1].Filled)
	assert.Zero(t, tmpl.Questions[0].Bubbles[1].FillPercent)
}

func TestExtractEmptyImage(t *testing.T) {
	_, tmpl := syntheticSheet(t)
	empty := gocv.NewMat()
	defer empty.Close()

	extractor := New(tmpl, "")
	_, err := extractor.Extract(empty, "missing.png", 25)
	assert.Error(t, err)
}
