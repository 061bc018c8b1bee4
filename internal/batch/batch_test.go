package batch

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"omr-grader/internal/answerkey"
	"omr-grader/internal/grade"
	"omr-grader/internal/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
}

func TestListSheets(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "scan_002.png")
	touch(t, dir, "scan_001.jpg")
	touch(t, dir, "scan_003.TIF")
	touch(t, dir, "notes.txt")
	touch(t, dir, "answer_key.json")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "done"), 0755))

	sheets, err := ListSheets(dir)
	require.NoError(t, err)

	require.Len(t, sheets, 3)
	// Sorted by name, extension matching is case-insensitive.
	assert.Equal(t, filepath.Join(dir, "scan_001.jpg"), sheets[0])
	assert.Equal(t, filepath.Join(dir, "scan_002.png"), sheets[1])
	assert.Equal(t, filepath.Join(dir, "scan_003.TIF"), sheets[2])
}

func TestListSheetsMissingDir(t *testing.T) {
	_, err := ListSheets(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	key := &answerkey.Key{Answers: map[string][]string{
		"1": {"A"},
		"2": {"B"},
		"3": {"C"},
	}}
	runner := NewRunner(&template.Template{}, "", key, "")

	summary := &Summary{
		Sheets: []SheetOutcome{
			{
				Image:      "/scans/scan_001.png",
				StudentID:  "12345678",
				Score:      2,
				Percentage: 66.7,
				details: map[int]string{
					1: string(grade.StatusCorrect),
					2: string(grade.StatusIncorrect),
					3: string(grade.StatusCorrect),
				},
			},
			{
				Image: "/scans/scan_002.png",
				Error: "no markers found",
			},
		},
	}

	dir := t.TempDir()
	require.NoError(t, runner.writeCSV(summary, dir))

	f, err := os.Open(filepath.Join(dir, "batch_results.csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"image", "student_id", "score", "percentage", "Q1", "Q2", "Q3"}, rows[0])
	assert.Equal(t, []string{"scan_001.png", "12345678", "2.00", "66.7", "1", "0", "1"}, rows[1])
	assert.Equal(t, "ERROR", rows[2][2])
}

func TestSortedQuestionNumbers(t *testing.T) {
	nums := sortedQuestionNumbers(map[string][]string{
		"10": {"A"},
		"2":  {"B"},
		"1":  {"C"},
		"x":  {"D"},
	})
	assert.Equal(t, []int{1, 2, 10}, nums)
}

func TestWriteSummary(t *testing.T) {
	runner := NewRunner(&template.Template{}, "", &answerkey.Key{}, "")
	summary := &Summary{
		InputDir:    "/scans",
		TotalSheets: 1,
		Graded:      1,
		Sheets:      []SheetOutcome{{Image: "/scans/a.png", Percentage: 80}},
	}

	dir := t.TempDir()
	require.NoError(t, runner.writeSummary(summary, dir))

	data, err := os.ReadFile(filepath.Join(dir, "batch_summary.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_sheets": 1`)
	assert.Contains(t, string(data), `"a.png"`)
}
