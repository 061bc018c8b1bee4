package grade

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ReportMetadata records which artifacts produced a report.
type ReportMetadata struct {
	GradedAt           time.Time `json:"graded_at"`
	AnswerKeyUsed      string    `json:"answer_key_used"`
	ScannedAnswersFile string    `json:"scanned_answers_file"`
}

// ReportSummary is the aggregate block of a report.
type ReportSummary struct {
	TotalQuestions    int     `json:"total_questions"`
	Correct           int     `json:"correct"`
	Incorrect         int     `json:"incorrect"`
	Blank             int     `json:"blank"`
	Partial           int     `json:"partial"`
	MaxPoints         float64 `json:"max_points"`
	PointsPerQuestion float64 `json:"points_per_question"`
	Score             float64 `json:"score"`
	Percentage        float64 `json:"percentage"`
}

// Report is the persisted grading artifact for one sheet.
type Report struct {
	Metadata ReportMetadata           `json:"metadata"`
	Summary  ReportSummary            `json:"summary"`
	Details  map[string]QuestionGrade `json:"details"`
}

// NewReport packages a grading result with its provenance.
func NewReport(result *Result, answerKeyPath, scannedAnswersPath string) *Report {
	report := &Report{
		Metadata: ReportMetadata{
			GradedAt:           time.Now(),
			AnswerKeyUsed:      answerKeyPath,
			ScannedAnswersFile: scannedAnswersPath,
		},
		Summary: ReportSummary{
			TotalQuestions:    result.TotalQuestions,
			Correct:           result.Correct,
			Incorrect:         result.Incorrect,
			Blank:             result.Blank,
			Partial:           result.Partial,
			MaxPoints:         result.MaxPoints,
			PointsPerQuestion: result.PointsPerQuestion,
			Score:             result.Score,
			Percentage:        result.Percentage,
		},
		Details: make(map[string]QuestionGrade, len(result.Details)),
	}
	for qNum, detail := range result.Details {
		report.Details[strconv.Itoa(qNum)] = detail
	}
	return report
}

// Save writes the report as JSON.
func (r *Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SaveToDir writes the report into dir with a timestamped name derived
// from the scanned-answers file.
func (r *Report) SaveToDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	base := strings.TrimSuffix(filepath.Base(r.Metadata.ScannedAnswersFile), filepath.Ext(r.Metadata.ScannedAnswersFile))
	name := fmt.Sprintf("grade_report_%s_%s.json", base, r.Metadata.GradedAt.Format("20060102_150405"))
	path := filepath.Join(dir, name)
	return path, r.Save(path)
}

// LoadReport reads a report from a JSON file.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grade report: %w", err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse grade report %s: %w", path, err)
	}
	return &report, nil
}
