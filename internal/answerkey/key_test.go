package answerkey

import (
	"path/filepath"
	"testing"
	"time"

	"omr-grader/internal/extract"
	"omr-grader/internal/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fourChoiceTemplate(questions int) *template.Template {
	tmpl := &template.Template{ReferenceWidth: 850, ReferenceHeight: 1100}
	for q := 1; q <= questions; q++ {
		question := template.Question{Number: q}
		for i, label := range []string{"A", "B", "C", "D"} {
			question.Bubbles = append(question.Bubbles, template.Bubble{
				Label: label, X: 140 + i*46, Y: 100 + q*70, Radius: 16,
			})
		}
		tmpl.Questions = append(tmpl.Questions, question)
	}
	return tmpl
}

func TestManualKey(t *testing.T) {
	tmpl := fourChoiceTemplate(3)
	key, err := Manual(tmpl, map[int][]string{
		1: {"A"},
		2: {"C", "B"},
	}, "template.json")
	require.NoError(t, err)

	assert.Equal(t, MethodManual, key.Metadata.CreationMethod)
	assert.Equal(t, 3, key.Metadata.TotalQuestions)
	assert.Equal(t, []string{"A"}, key.Answers["1"])
	// Labels come back sorted regardless of input order.
	assert.Equal(t, []string{"B", "C"}, key.Answers["2"])
	// Unanswered questions get an explicit empty entry.
	assert.Empty(t, key.Answers["3"])
	assert.Contains(t, key.Answers, "3")
}

func TestManualKeyRejectsUnknownLabel(t *testing.T) {
	tmpl := fourChoiceTemplate(1)
	_, err := Manual(tmpl, map[int][]string{1: {"E"}}, "")
	assert.Error(t, err)
}

func TestManualKeyRejectsUnknownQuestion(t *testing.T) {
	tmpl := fourChoiceTemplate(2)
	_, err := Manual(tmpl, map[int][]string{5: {"A"}}, "")
	assert.Error(t, err)
}

func TestFromExtraction(t *testing.T) {
	result := &extract.Result{
		Metadata: extract.Metadata{TotalQuestions: 2},
		Answers: map[string]extract.QuestionResult{
			"1": {QuestionNumber: 1, SelectedAnswers: []string{"B"}},
			"2": {QuestionNumber: 2, SelectedAnswers: []string{"D", "A"}},
		},
	}

	key := FromExtraction(result, "template.json")
	assert.Equal(t, MethodScanned, key.Metadata.CreationMethod)
	assert.Equal(t, 2, key.Metadata.TotalQuestions)
	assert.Equal(t, []string{"B"}, key.Answers["1"])
	assert.Equal(t, []string{"A", "D"}, key.Answers["2"])
}

func TestKeySaveLoadRoundTrip(t *testing.T) {
	tmpl := fourChoiceTemplate(2)
	key, err := Manual(tmpl, map[int][]string{1: {"A"}, 2: {"B", "D"}}, "template.json")
	require.NoError(t, err)
	key.Metadata.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	path := filepath.Join(t.TempDir(), "answer_key.json")
	require.NoError(t, key.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, key.Answers, loaded.Answers)
	assert.Equal(t, key.Metadata.CreationMethod, loaded.Metadata.CreationMethod)
	assert.True(t, key.Metadata.CreatedAt.Equal(loaded.Metadata.CreatedAt))
}
