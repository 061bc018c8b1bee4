package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referenceTemplate() *Template {
	return &Template{
		ReferenceWidth:  850,
		ReferenceHeight: 1100,
		DPI:             100,
		Questions: []Question{
			{
				Number: 1,
				Bounds: &BoundingBox{XMin: 140, XMax: 209, YMin: 90, YMax: 110, AvgRadius: 10},
				Bubbles: []Bubble{
					{Label: "A", X: 140, Y: 100, Radius: 10},
					{Label: "B", X: 163, Y: 100, Radius: 10},
					{Label: "C", X: 186, Y: 100, Radius: 10},
					{Label: "D", X: 209, Y: 100, Radius: 10},
				},
			},
		},
		DigitColumns: []DigitColumn{
			{
				Position: 1,
				Bubbles: []DigitBubble{
					{Digit: 0, X: 600, Y: 800, Radius: 8},
					{Digit: 1, X: 600, Y: 822, Radius: 8},
				},
			},
		},
	}
}

func TestScaleIdentity(t *testing.T) {
	tmpl := referenceTemplate()
	scaled, err := tmpl.Scale(850, 1100)
	require.NoError(t, err)

	assert.Equal(t, tmpl.Questions, scaled.Questions)
	assert.Equal(t, tmpl.DigitColumns, scaled.DigitColumns)
}

func TestScaleDoubleResolution(t *testing.T) {
	tmpl := referenceTemplate()
	scaled, err := tmpl.Scale(1700, 2200)
	require.NoError(t, err)

	b := scaled.Questions[0].Bubbles[0]
	assert.Equal(t, 280, b.X)
	assert.Equal(t, 200, b.Y)
	assert.Equal(t, 20, b.Radius)

	bb := scaled.Questions[0].Bounds
	require.NotNil(t, bb)
	assert.Equal(t, 280, bb.XMin)
	assert.Equal(t, 418, bb.XMax)
	assert.Equal(t, 180, bb.YMin)

	d := scaled.DigitColumns[0].Bubbles[1]
	assert.Equal(t, 1200, d.X)
	assert.Equal(t, 1644, d.Y)
	assert.Equal(t, 16, d.Radius)
}

func TestScaleIndependentAxes(t *testing.T) {
	tmpl := referenceTemplate()
	// Width doubled, height unchanged: x doubles, y stays, radius takes
	// the average factor 1.5.
	scaled, err := tmpl.Scale(1700, 1100)
	require.NoError(t, err)

	b := scaled.Questions[0].Bubbles[0]
	assert.Equal(t, 280, b.X)
	assert.Equal(t, 100, b.Y)
	assert.Equal(t, 15, b.Radius)
}

func TestScaleLeavesReceiverUntouched(t *testing.T) {
	tmpl := referenceTemplate()
	_, err := tmpl.Scale(1700, 2200)
	require.NoError(t, err)

	assert.Equal(t, 140, tmpl.Questions[0].Bubbles[0].X)
	assert.Equal(t, 10, tmpl.Questions[0].Bubbles[0].Radius)
	assert.Equal(t, 800, tmpl.DigitColumns[0].Bubbles[0].Y)
}

func TestScaleRequiresReferenceDimensions(t *testing.T) {
	tmpl := &Template{}
	_, err := tmpl.Scale(850, 1100)
	assert.Error(t, err)
}

func TestSelectedLabels(t *testing.T) {
	q := Question{
		Bubbles: []Bubble{
			{Label: "A", Filled: true},
			{Label: "B"},
			{Label: "C", Filled: true},
			{Label: "D"},
		},
	}
	assert.Equal(t, []string{"A", "C"}, q.SelectedLabels())

	none := Question{Bubbles: []Bubble{{Label: "A"}, {Label: "B"}}}
	assert.Empty(t, none.SelectedLabels())
}

func TestHasStudentID(t *testing.T) {
	tmpl := referenceTemplate()
	assert.True(t, tmpl.HasStudentID())

	tmpl.DigitColumns = nil
	assert.False(t, tmpl.HasStudentID())
}
