package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoint2DDistance(t *testing.T) {
	a := Point2D{X: 0, Y: 0}
	b := Point2D{X: 3, Y: 4}
	assert.InDelta(t, 5.0, a.Distance(b), 1e-9)
	assert.Zero(t, a.Distance(a))
}

func TestRectIntContainsAndCenter(t *testing.T) {
	r := RectInt{X: 10, Y: 20, Width: 100, Height: 50}

	assert.True(t, r.Contains(PointInt{X: 10, Y: 20}))
	assert.True(t, r.Contains(PointInt{X: 60, Y: 45}))
	assert.True(t, r.Contains(PointInt{X: 110, Y: 20}))
	assert.False(t, r.Contains(PointInt{X: 111, Y: 20}))
	assert.False(t, r.Contains(PointInt{X: 9, Y: 20}))

	c := r.Center()
	assert.Equal(t, 60, c.X)
	assert.Equal(t, 45, c.Y)
}

func TestRectIntPadClamps(t *testing.T) {
	r := RectInt{X: 10, Y: 10, Width: 100, Height: 50}

	// Clamping the origin to 0 eats 10 px of the top/left pad, so the
	// padded extent is measured from 0, not from x-pad.
	padded := r.Pad(20, 300, 300)
	assert.Equal(t, RectInt{X: 0, Y: 0, Width: 130, Height: 80}, padded)

	// Near the far edge the rectangle clips to the image bounds.
	edge := RectInt{X: 250, Y: 260, Width: 60, Height: 60}
	padded = edge.Pad(20, 300, 300)
	assert.Equal(t, 230, padded.X)
	assert.Equal(t, 240, padded.Y)
	assert.Equal(t, 70, padded.Width)
	assert.Equal(t, 60, padded.Height)
}

func TestBoundingBoxInt(t *testing.T) {
	pts := []PointInt{
		{X: 50, Y: 400},
		{X: 450, Y: 80},
		{X: 120, Y: 90},
		{X: 300, Y: 350},
	}
	r := BoundingBoxInt(pts)
	assert.Equal(t, RectInt{X: 50, Y: 80, Width: 400, Height: 320}, r)

	assert.Equal(t, RectInt{}, BoundingBoxInt(nil))
}
