package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// questionRow lays out one question's worth of candidates at the given
// origin with 46 px between choices.
func questionRow(x, y int) []Candidate {
	var row []Candidate
	for i := 0; i < 4; i++ {
		row = append(row, Candidate{X: x + i*46, Y: y, Radius: 16})
	}
	return row
}

func TestGroupQuestionsColumnMajorNumbering(t *testing.T) {
	p := DefaultParams()

	// Two layout columns, two rows each. Fed deliberately out of order;
	// grouping must not depend on input order.
	var candidates []Candidate
	candidates = append(candidates, questionRow(600, 300)...) // right column, top
	candidates = append(candidates, questionRow(100, 300)...) // left column, top
	candidates = append(candidates, questionRow(100, 370)...) // left column, bottom
	candidates = append(candidates, questionRow(600, 370)...) // right column, bottom

	questions := GroupQuestions(candidates, p)
	require.Len(t, questions, 4)

	// Numbering runs down the left column first, then the right.
	assert.Equal(t, 1, questions[0].Number)
	assert.Equal(t, 100, questions[0].Bubbles[0].X)
	assert.Equal(t, 300, questions[0].Bubbles[0].Y)

	assert.Equal(t, 2, questions[1].Number)
	assert.Equal(t, 370, questions[1].Bubbles[0].Y)

	assert.Equal(t, 3, questions[2].Number)
	assert.Equal(t, 600, questions[2].Bubbles[0].X)
	assert.Equal(t, 300, questions[2].Bubbles[0].Y)

	assert.Equal(t, 4, questions[3].Number)
}

func TestGroupQuestionsChoiceLabels(t *testing.T) {
	questions := GroupQuestions(questionRow(100, 300), DefaultParams())
	require.Len(t, questions, 1)
	require.Len(t, questions[0].Bubbles, 4)

	labels := make([]string, 0, 4)
	for _, b := range questions[0].Bubbles {
		labels = append(labels, b.Label)
	}
	assert.Equal(t, []string{"A", "B", "C", "D"}, labels)

	// Bubbles are in left-to-right choice order.
	for i := 1; i < len(questions[0].Bubbles); i++ {
		assert.Greater(t, questions[0].Bubbles[i].X, questions[0].Bubbles[i-1].X)
	}
}

func TestGroupQuestionsDropsPartialGroups(t *testing.T) {
	p := DefaultParams()

	// A full question plus three stray bubbles in the same row: the
	// trailing partial set must not become a question.
	candidates := questionRow(100, 300)
	candidates = append(candidates,
		Candidate{X: 500, Y: 300, Radius: 16},
		Candidate{X: 546, Y: 300, Radius: 16},
		Candidate{X: 592, Y: 300, Radius: 16},
	)

	questions := GroupQuestions(candidates, p)
	require.Len(t, questions, 1)
	assert.Equal(t, 100, questions[0].Bubbles[0].X)
}

func TestGroupQuestionsFiltersRadiusOutliers(t *testing.T) {
	p := DefaultParams()

	// Four bubbles of radius 16 plus a much larger contour in the same
	// row; the outlier disappears, the question survives intact.
	candidates := questionRow(100, 300)
	candidates = append(candidates, Candidate{X: 70, Y: 300, Radius: 40})

	questions := GroupQuestions(candidates, p)
	require.Len(t, questions, 1)
	require.Len(t, questions[0].Bubbles, 4)
	assert.Equal(t, 100, questions[0].Bubbles[0].X)
	for _, b := range questions[0].Bubbles {
		assert.Equal(t, 16, b.Radius)
	}
}

func TestGroupQuestionsRowToleranceSplitsRows(t *testing.T) {
	p := DefaultParams()

	// Slight vertical jitter within tolerance stays one row; a bubble a
	// full row-spacing away starts a new one.
	var candidates []Candidate
	for i := 0; i < 4; i++ {
		candidates = append(candidates, Candidate{X: 100 + i*46, Y: 300 + i%2*5, Radius: 16})
	}
	candidates = append(candidates, questionRow(100, 370)...)

	questions := GroupQuestions(candidates, p)
	require.Len(t, questions, 2)
}

func TestGroupQuestionsEmptyInput(t *testing.T) {
	assert.Nil(t, GroupQuestions(nil, DefaultParams()))
}

func TestGroupQuestionsBounds(t *testing.T) {
	questions := GroupQuestions(questionRow(100, 300), DefaultParams())
	require.Len(t, questions, 1)

	bb := questions[0].Bounds
	require.NotNil(t, bb)
	assert.Equal(t, 100, bb.XMin)
	assert.Equal(t, 238, bb.XMax)
	assert.Equal(t, 300, bb.YMin)
	assert.Equal(t, 300, bb.YMax)
	assert.Equal(t, 16, bb.AvgRadius)
}
