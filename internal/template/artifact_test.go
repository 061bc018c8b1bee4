package template

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tenDigitColumn(x int) DigitColumn {
	col := DigitColumn{}
	for d := 0; d < 10; d++ {
		col.Bubbles = append(col.Bubbles, DigitBubble{Digit: d, X: x, Y: 700 + d*22, Radius: 8})
	}
	return col
}

func TestNewDocumentNumbersPages(t *testing.T) {
	doc := NewDocument("scan.pdf", []Page{
		{Questions: []Question{{Number: 1}, {Number: 2}}},
		{Questions: []Question{{Number: 3}}},
	})

	assert.Equal(t, 2, doc.Metadata.TotalPages)
	assert.Equal(t, 3, doc.Metadata.TotalQuestions)
	assert.Equal(t, 1, doc.Pages[0].Page)
	assert.Equal(t, 2, doc.Pages[1].Page)
	assert.Equal(t, 2, doc.Pages[0].QuestionsDetected)
}

func TestDocumentTemplateFlattensPages(t *testing.T) {
	doc := NewDocument("scan.pdf", []Page{
		{
			ImageDimensions: ImageDimensions{Width: 850, Height: 1100, DPI: 100},
			Questions:       []Question{{Number: 1}, {Number: 2}},
			StudentID: &IDBlock{
				TotalDigits:  2,
				DigitColumns: []DigitColumn{tenDigitColumn(600), tenDigitColumn(640)},
			},
		},
		{
			ImageDimensions: ImageDimensions{Width: 850, Height: 1100},
			Questions:       []Question{{Number: 3}},
		},
	})

	tmpl, err := doc.Template()
	require.NoError(t, err)

	assert.Equal(t, 850, tmpl.ReferenceWidth)
	assert.Equal(t, 1100, tmpl.ReferenceHeight)
	assert.Equal(t, 100, tmpl.DPI)
	assert.Equal(t, 3, tmpl.TotalQuestions())
	require.Len(t, tmpl.DigitColumns, 2)
	assert.Equal(t, 1, tmpl.DigitColumns[0].Position)
	assert.Equal(t, 2, tmpl.DigitColumns[1].Position)
}

func TestDocumentTemplateDropsImplausibleColumns(t *testing.T) {
	lone := DigitColumn{Bubbles: []DigitBubble{{Digit: 0, X: 500, Y: 700}}}
	badDigit := DigitColumn{Bubbles: []DigitBubble{
		{Digit: 0, X: 520, Y: 700},
		{Digit: 12, X: 520, Y: 722},
	}}
	duplicate := DigitColumn{Bubbles: []DigitBubble{
		{Digit: 3, X: 540, Y: 700},
		{Digit: 3, X: 540, Y: 722},
	}}

	doc := NewDocument("", []Page{{
		ImageDimensions: ImageDimensions{Width: 850, Height: 1100},
		Questions:       []Question{{Number: 1}},
		StudentID: &IDBlock{
			TotalDigits:  4,
			DigitColumns: []DigitColumn{lone, badDigit, duplicate, tenDigitColumn(600)},
		},
	}})

	tmpl, err := doc.Template()
	require.NoError(t, err)
	require.Len(t, tmpl.DigitColumns, 1)
	assert.Equal(t, 1, tmpl.DigitColumns[0].Position)
	assert.Len(t, tmpl.DigitColumns[0].Bubbles, 10)
}

func TestDocumentTemplateNoPages(t *testing.T) {
	doc := &Document{}
	_, err := doc.Template()
	assert.Error(t, err)
}

func TestDocumentSaveLoadRoundTrip(t *testing.T) {
	doc := NewDocument("ref.png", []Page{{
		ImageDimensions: ImageDimensions{Width: 850, Height: 1100, DPI: 100},
		Questions: []Question{{
			Number:  1,
			Bounds:  &BoundingBox{XMin: 140, XMax: 209, YMin: 90, YMax: 110, AvgRadius: 10},
			Bubbles: []Bubble{{Label: "A", X: 140, Y: 100, Radius: 10}},
		}},
		StudentID: &IDBlock{TotalDigits: 1, DigitColumns: []DigitColumn{tenDigitColumn(600)}},
	}})

	path := filepath.Join(t.TempDir(), "template.json")
	require.NoError(t, doc.Save(path))

	loaded, err := LoadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, doc.Metadata.TotalQuestions, loaded.Metadata.TotalQuestions)
	assert.Equal(t, doc.Pages, loaded.Pages)
}
