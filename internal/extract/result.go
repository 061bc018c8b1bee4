// Package extract runs the per-sheet pipeline: scale the template onto a
// scanned image, classify every bubble, and resolve the fills into answers
// and a student ID.
package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DigitStatus describes how one ID position resolved.
type DigitStatus string

const (
	// DigitBlank means no bubble in the column passed the threshold.
	DigitBlank DigitStatus = "blank"
	// DigitValid means exactly one bubble was filled.
	DigitValid DigitStatus = "valid"
	// DigitConflict means several bubbles were filled; the darkest wins.
	DigitConflict DigitStatus = "conflict"
)

// DigitDetail records the outcome for one ID position.
type DigitDetail struct {
	Position    int         `json:"position"`
	Digit       *int        `json:"digit"`
	Confidence  float64     `json:"confidence"`
	Status      DigitStatus `json:"status"`
	Conflicting []int       `json:"conflicting_digits,omitempty"`
}

// IDResult is the resolved student ID for one sheet. Unresolved positions
// appear as '_' in the ID string; IsValid is true only when every position
// resolved to a digit (conflicts included, since a digit was chosen).
type IDResult struct {
	StudentID         string        `json:"student_id"`
	IsValid           bool          `json:"is_valid"`
	AverageConfidence float64       `json:"average_confidence"`
	Digits            []DigitDetail `json:"digit_details"`
}

// BubbleResult is the classified state of one answer bubble.
type BubbleResult struct {
	Label          string  `json:"label"`
	Filled         bool    `json:"filled"`
	FillPercentage float64 `json:"fill_percentage"`
}

// QuestionResult is the resolved answer set for one question.
type QuestionResult struct {
	QuestionNumber  int            `json:"question_number"`
	SelectedAnswers []string       `json:"selected_answers"`
	Bubbles         []BubbleResult `json:"bubbles"`
}

// Metadata describes one extraction run.
type Metadata struct {
	SourceImage      string    `json:"source_image"`
	ExtractedAt      time.Time `json:"extracted_at"`
	TemplateUsed     string    `json:"template_used,omitempty"`
	ThresholdPercent float64   `json:"threshold_percent"`
	TotalQuestions   int       `json:"total_questions"`
}

// Result is the extraction artifact for one scanned sheet. It is written
// once and never mutated; grading consumes it read-only.
type Result struct {
	Metadata  Metadata                  `json:"metadata"`
	StudentID *IDResult                 `json:"student_id"`
	Answers   map[string]QuestionResult `json:"answers"`
}

// SelectedAnswers flattens the result into question-number → label set,
// the shape the grading engine consumes.
func (r *Result) SelectedAnswers() map[string][]string {
	answers := make(map[string][]string, len(r.Answers))
	for key, q := range r.Answers {
		answers[key] = q.SelectedAnswers
	}
	return answers
}

// Load reads an extraction result from a JSON file.
func Load(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read extraction result: %w", err)
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parse extraction result %s: %w", path, err)
	}
	return &res, nil
}

// Save writes the result to a JSON file.
func (r *Result) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SaveToDir writes the result into dir under a generated name of the form
// answers_<N>q_<studentID>.json, blank ID positions shown as X.
func (r *Result) SaveToDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	studentID := "NOID"
	if r.StudentID != nil && r.StudentID.StudentID != "" {
		studentID = strings.ReplaceAll(r.StudentID.StudentID, "_", "X")
	}
	name := fmt.Sprintf("answers_%dq_%s.json", r.Metadata.TotalQuestions, studentID)
	path := filepath.Join(dir, name)
	return path, r.Save(path)
}

// roundPercent keeps persisted fill percentages at two decimals so results
// diff cleanly across runs.
func roundPercent(v float64) float64 {
	return math.Round(v*100) / 100
}
