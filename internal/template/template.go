// Package template models the reference bubble geometry of an answer sheet
// layout and its scaling onto scanned images of arbitrary resolution.
package template

import (
	"fmt"
	"math"
)

// Bubble is one selectable answer mark at a known position.
type Bubble struct {
	Label  string `json:"label"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Radius int    `json:"radius"`

	// Classification state, populated per scanned sheet. Never persisted
	// in the template artifact.
	Filled      bool    `json:"-"`
	FillPercent float64 `json:"-"`
}

// Scale returns a copy of the bubble mapped by independent axis factors.
// The radius uses the average of the two factors since it has no axis.
func (b Bubble) Scale(scaleX, scaleY float64) Bubble {
	scaleAvg := (scaleX + scaleY) / 2
	return Bubble{
		Label:  b.Label,
		X:      int(math.Round(float64(b.X) * scaleX)),
		Y:      int(math.Round(float64(b.Y) * scaleY)),
		Radius: int(math.Round(float64(b.Radius) * scaleAvg)),
	}
}

// BoundingBox is the extent of a question's bubble group in reference space.
type BoundingBox struct {
	XMin      int `json:"x_min"`
	XMax      int `json:"x_max"`
	YMin      int `json:"y_min"`
	YMax      int `json:"y_max"`
	AvgRadius int `json:"avg_radius"`
}

// Scale maps the bounding box by independent axis factors.
func (bb BoundingBox) Scale(scaleX, scaleY float64) BoundingBox {
	scaleAvg := (scaleX + scaleY) / 2
	return BoundingBox{
		XMin:      int(math.Round(float64(bb.XMin) * scaleX)),
		XMax:      int(math.Round(float64(bb.XMax) * scaleX)),
		YMin:      int(math.Round(float64(bb.YMin) * scaleY)),
		YMax:      int(math.Round(float64(bb.YMax) * scaleY)),
		AvgRadius: int(math.Round(float64(bb.AvgRadius) * scaleAvg)),
	}
}

// Question is one multiple-choice item with its bubbles in choice order.
type Question struct {
	Number  int          `json:"question_number"`
	Bounds  *BoundingBox `json:"bounding_box,omitempty"`
	Bubbles []Bubble     `json:"bubbles"`
}

// Scale returns a deep copy of the question mapped onto the target space.
func (q Question) Scale(scaleX, scaleY float64) Question {
	scaled := Question{Number: q.Number, Bubbles: make([]Bubble, len(q.Bubbles))}
	for i, b := range q.Bubbles {
		scaled.Bubbles[i] = b.Scale(scaleX, scaleY)
	}
	if q.Bounds != nil {
		bb := q.Bounds.Scale(scaleX, scaleY)
		scaled.Bounds = &bb
	}
	return scaled
}

// SelectedLabels returns the labels of all bubbles classified as filled,
// in choice order. Multi-answer questions yield more than one label.
func (q Question) SelectedLabels() []string {
	var labels []string
	for _, b := range q.Bubbles {
		if b.Filled {
			labels = append(labels, b.Label)
		}
	}
	return labels
}

// DigitBubble is one 0-9 mark in a student-ID digit column.
type DigitBubble struct {
	Digit  int `json:"digit"`
	X      int `json:"x"`
	Y      int `json:"y"`
	Radius int `json:"radius"`

	Filled      bool    `json:"-"`
	FillPercent float64 `json:"-"`
}

// Scale returns a copy of the digit bubble mapped onto the target space.
func (b DigitBubble) Scale(scaleX, scaleY float64) DigitBubble {
	scaleAvg := (scaleX + scaleY) / 2
	return DigitBubble{
		Digit:  b.Digit,
		X:      int(math.Round(float64(b.X) * scaleX)),
		Y:      int(math.Round(float64(b.Y) * scaleY)),
		Radius: int(math.Round(float64(b.Radius) * scaleAvg)),
	}
}

// DigitColumn is one position of the multi-digit student ID: ten bubbles
// labeled 0-9 top to bottom.
type DigitColumn struct {
	Position int           `json:"digit_position"`
	Bubbles  []DigitBubble `json:"bubbles"`
}

// Scale returns a deep copy of the column mapped onto the target space.
func (c DigitColumn) Scale(scaleX, scaleY float64) DigitColumn {
	scaled := DigitColumn{Position: c.Position, Bubbles: make([]DigitBubble, len(c.Bubbles))}
	for i, b := range c.Bubbles {
		scaled.Bubbles[i] = b.Scale(scaleX, scaleY)
	}
	return scaled
}

// Template is the reference geometry for one exam layout, captured at a
// known resolution. It is created once (by detection or by the sheet
// renderer) and treated as read-only afterwards; Scale produces fresh
// copies for each scanned sheet.
type Template struct {
	ReferenceWidth  int           `json:"reference_width"`
	ReferenceHeight int           `json:"reference_height"`
	DPI             int           `json:"dpi,omitempty"`
	Questions       []Question    `json:"questions"`
	DigitColumns    []DigitColumn `json:"digit_columns,omitempty"`
}

// TotalQuestions returns the number of questions in the template.
func (t *Template) TotalQuestions() int {
	return len(t.Questions)
}

// HasStudentID reports whether the template carries a student-ID block.
func (t *Template) HasStudentID() bool {
	return len(t.DigitColumns) > 0
}

// Scale maps the template onto a target image of the given dimensions,
// returning a new tree and leaving the receiver untouched. It fails when
// the reference dimensions are unset, since the scale factors would be
// undefined.
func (t *Template) Scale(targetWidth, targetHeight int) (*Template, error) {
	if t.ReferenceWidth == 0 || t.ReferenceHeight == 0 {
		return nil, fmt.Errorf("template has no reference dimensions")
	}

	scaleX := float64(targetWidth) / float64(t.ReferenceWidth)
	scaleY := float64(targetHeight) / float64(t.ReferenceHeight)

	scaled := &Template{
		ReferenceWidth:  targetWidth,
		ReferenceHeight: targetHeight,
		DPI:             t.DPI,
		Questions:       make([]Question, len(t.Questions)),
	}
	for i, q := range t.Questions {
		scaled.Questions[i] = q.Scale(scaleX, scaleY)
	}
	if len(t.DigitColumns) > 0 {
		scaled.DigitColumns = make([]DigitColumn, len(t.DigitColumns))
		for i, c := range t.DigitColumns {
			scaled.DigitColumns[i] = c.Scale(scaleX, scaleY)
		}
	}
	return scaled, nil
}
