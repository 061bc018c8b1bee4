package extract

import (
	"testing"

	"omr-grader/internal/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// classifiedColumn builds a digit column with the given digits filled at
// the given fill percentages.
func classifiedColumn(position int, fills map[int]float64) template.DigitColumn {
	col := template.DigitColumn{Position: position}
	for d := 0; d < 10; d++ {
		b := template.DigitBubble{Digit: d, X: 500 + position*40, Y: 700 + d*22, Radius: 8}
		if pct, ok := fills[d]; ok {
			b.Filled = true
			b.FillPercent = pct
		}
		col.Bubbles = append(col.Bubbles, b)
	}
	return col
}

func TestResolveDigitsAllValid(t *testing.T) {
	res := ResolveDigits([]template.DigitColumn{
		classifiedColumn(1, map[int]float64{4: 92.0}),
		classifiedColumn(2, map[int]float64{2: 88.0}),
	})
	require.NotNil(t, res)

	assert.Equal(t, "42", res.StudentID)
	assert.True(t, res.IsValid)
	assert.InDelta(t, 90.0, res.AverageConfidence, 1e-9)

	require.Len(t, res.Digits, 2)
	assert.Equal(t, DigitValid, res.Digits[0].Status)
	require.NotNil(t, res.Digits[0].Digit)
	assert.Equal(t, 4, *res.Digits[0].Digit)
	assert.Empty(t, res.Digits[0].Conflicting)
}

func TestResolveDigitsBlankPosition(t *testing.T) {
	res := ResolveDigits([]template.DigitColumn{
		classifiedColumn(1, map[int]float64{7: 90.0}),
		classifiedColumn(2, nil),
		classifiedColumn(3, map[int]float64{1: 80.0}),
	})
	require.NotNil(t, res)

	assert.Equal(t, "7_1", res.StudentID)
	assert.False(t, res.IsValid)

	blank := res.Digits[1]
	assert.Equal(t, DigitBlank, blank.Status)
	assert.Nil(t, blank.Digit)
	assert.Zero(t, blank.Confidence)
}

func TestResolveDigitsConflictDarkestWins(t *testing.T) {
	res := ResolveDigits([]template.DigitColumn{
		classifiedColumn(1, map[int]float64{3: 70.0, 7: 95.0}),
	})
	require.NotNil(t, res)

	assert.Equal(t, "7", res.StudentID)
	// A conflict still yields a digit, so the ID remains usable.
	assert.True(t, res.IsValid)

	d := res.Digits[0]
	assert.Equal(t, DigitConflict, d.Status)
	require.NotNil(t, d.Digit)
	assert.Equal(t, 7, *d.Digit)
	assert.InDelta(t, 95.0, d.Confidence, 1e-9)
	assert.Equal(t, []int{3, 7}, d.Conflicting)
}

func TestResolveDigitsConflictTieKeepsFirst(t *testing.T) {
	res := ResolveDigits([]template.DigitColumn{
		classifiedColumn(1, map[int]float64{2: 90.0, 8: 90.0}),
	})
	require.NotNil(t, res)
	assert.Equal(t, "2", res.StudentID)
}

func TestResolveDigitsExhaustiveStatuses(t *testing.T) {
	res := ResolveDigits([]template.DigitColumn{
		classifiedColumn(1, map[int]float64{5: 85.0}),
		classifiedColumn(2, nil),
		classifiedColumn(3, map[int]float64{0: 60.0, 9: 75.0}),
	})
	require.NotNil(t, res)
	require.Len(t, res.Digits, 3)

	// Every position resolves to exactly one of the three statuses.
	for _, d := range res.Digits {
		switch d.Status {
		case DigitBlank:
			assert.Nil(t, d.Digit)
		case DigitValid:
			assert.NotNil(t, d.Digit)
			assert.Empty(t, d.Conflicting)
		case DigitConflict:
			assert.NotNil(t, d.Digit)
			assert.NotEmpty(t, d.Conflicting)
		default:
			t.Fatalf("unexpected status %q", d.Status)
		}
	}
}

func TestResolveDigitsNoColumns(t *testing.T) {
	assert.Nil(t, ResolveDigits(nil))
}
