// Package batch grades a folder of scanned sheets in one run: every image
// is extracted and scored against the same template and answer key, results
// are written per sheet, and a summary plus a compact CSV roll the run up.
package batch

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"omr-grader/internal/answerkey"
	"omr-grader/internal/detect"
	"omr-grader/internal/extract"
	"omr-grader/internal/grade"
	"omr-grader/internal/store"
	"omr-grader/internal/template"

	"golang.org/x/sync/errgroup"
)

// sheetExtensions are the image types picked up from the input folder.
var sheetExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
}

// Options configure one batch run.
type Options struct {
	InputDir         string
	OutputDir        string
	ThresholdPercent float64
	GradeOptions     grade.Options
	Workers          int // <=0 means one worker per sheet up to 4
	WriteOverlays    bool

	// Store, when non-nil, mirrors every graded sheet into the database
	// under SessionID.
	Store     *store.Store
	SessionID int64

	Logger *slog.Logger
}

// SheetOutcome is the record for one processed image.
type SheetOutcome struct {
	Image       string         `json:"image"`
	StudentID   string         `json:"student_id,omitempty"`
	IDValid     bool           `json:"id_valid"`
	Score       float64        `json:"score"`
	MaxPoints   float64        `json:"max_points"`
	Percentage  float64        `json:"percentage"`
	Letter      string         `json:"letter_grade"`
	AnswersFile string         `json:"answers_file,omitempty"`
	ReportFile  string         `json:"report_file,omitempty"`
	OverlayFile string         `json:"overlay_file,omitempty"`
	Error       string         `json:"error,omitempty"`

	details map[int]string
}

// Summary rolls a batch run up.
type Summary struct {
	StartedAt         time.Time      `json:"started_at"`
	FinishedAt        time.Time      `json:"finished_at"`
	InputDir          string         `json:"input_dir"`
	TotalSheets       int            `json:"total_sheets"`
	Graded            int            `json:"graded"`
	Failed            int            `json:"failed"`
	AveragePercentage float64        `json:"average_percentage"`
	Sheets            []SheetOutcome `json:"sheets"`
}

// Runner grades folders of sheets against one template and key.
type Runner struct {
	extractor *extract.Extractor
	tmpl      *template.Template
	key       *answerkey.Key
	keyPath   string
}

// NewRunner builds a batch runner. keyPath is recorded in reports only.
func NewRunner(tmpl *template.Template, templatePath string, key *answerkey.Key, keyPath string) *Runner {
	return &Runner{
		extractor: extract.New(tmpl, templatePath),
		tmpl:      tmpl,
		key:       key,
		keyPath:   keyPath,
	}
}

// ListSheets returns the sheet images directly inside dir, sorted by name.
func ListSheets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}
	var sheets []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if sheetExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			sheets = append(sheets, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(sheets)
	return sheets, nil
}

// Run grades every sheet image in opts.InputDir. Individual sheet failures
// do not stop the run; they are recorded in the summary with an error
// message. The returned error covers setup problems only.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sheets, err := ListSheets(opts.InputDir)
	if err != nil {
		return nil, err
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheet images in %s", opts.InputDir)
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	summary := &Summary{
		StartedAt:   time.Now(),
		InputDir:    opts.InputDir,
		TotalSheets: len(sheets),
		Sheets:      make([]SheetOutcome, len(sheets)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, sheet := range sheets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome := r.gradeSheet(sheet, opts, logger)
			mu.Lock()
			summary.Sheets[i] = outcome
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var pctSum float64
	for _, outcome := range summary.Sheets {
		if outcome.Error != "" {
			summary.Failed++
			continue
		}
		summary.Graded++
		pctSum += outcome.Percentage
	}
	if summary.Graded > 0 {
		summary.AveragePercentage = pctSum / float64(summary.Graded)
	}
	summary.FinishedAt = time.Now()

	if err := r.writeSummary(summary, opts.OutputDir); err != nil {
		return nil, err
	}
	if err := r.writeCSV(summary, opts.OutputDir); err != nil {
		return nil, err
	}

	logger.Info("batch complete",
		"total", summary.TotalSheets,
		"graded", summary.Graded,
		"failed", summary.Failed,
		"average", fmt.Sprintf("%.1f%%", summary.AveragePercentage))
	return summary, nil
}

// gradeSheet runs one image through extract, grade, and artifact writing.
// All failures are folded into the outcome so the batch keeps moving.
func (r *Runner) gradeSheet(imagePath string, opts Options, logger *slog.Logger) SheetOutcome {
	outcome := SheetOutcome{Image: imagePath}

	res, err := r.extractor.ExtractFile(imagePath, opts.ThresholdPercent)
	if err != nil {
		logger.Warn("extraction failed", "image", imagePath, "error", err)
		outcome.Error = err.Error()
		return outcome
	}
	if res.StudentID != nil {
		outcome.StudentID = res.StudentID.StudentID
		outcome.IDValid = res.StudentID.IsValid
	}

	answersPath, err := res.SaveToDir(opts.OutputDir)
	if err != nil {
		outcome.Error = fmt.Sprintf("save answers: %v", err)
		return outcome
	}
	outcome.AnswersFile = answersPath

	graded := grade.Grade(r.key.Answers, res.SelectedAnswers(), opts.GradeOptions)
	outcome.Score = graded.Score
	outcome.MaxPoints = graded.MaxPoints
	outcome.Percentage = graded.Percentage
	outcome.Letter = grade.Letter(graded.Percentage)
	outcome.details = make(map[int]string, len(graded.Details))
	for qNum, detail := range graded.Details {
		outcome.details[qNum] = string(detail.Status)
	}

	report := grade.NewReport(graded, r.keyPath, answersPath)
	reportPath, err := report.SaveToDir(opts.OutputDir)
	if err != nil {
		outcome.Error = fmt.Sprintf("save report: %v", err)
		return outcome
	}
	outcome.ReportFile = reportPath

	if opts.WriteOverlays {
		if path, err := r.writeOverlay(imagePath, res, opts.OutputDir); err != nil {
			logger.Warn("overlay failed", "image", imagePath, "error", err)
		} else {
			outcome.OverlayFile = path
		}
	}

	if opts.Store != nil {
		if outcome.StudentID != "" {
			if err := opts.Store.UpsertStudent(outcome.StudentID, "", ""); err != nil {
				logger.Warn("store student failed", "image", imagePath, "error", err)
			}
		}
		if _, err := opts.Store.SaveGradedSheet(opts.SessionID, outcome.StudentID, imagePath, graded); err != nil {
			logger.Warn("store sheet failed", "image", imagePath, "error", err)
		}
	}

	logger.Info("sheet graded",
		"image", filepath.Base(imagePath),
		"student_id", outcome.StudentID,
		"score", fmt.Sprintf("%.2f/%.2f", outcome.Score, outcome.MaxPoints),
		"percentage", fmt.Sprintf("%.1f%%", outcome.Percentage))
	return outcome
}

func (r *Runner) writeOverlay(imagePath string, res *extract.Result, outDir string) (string, error) {
	img, err := detect.LoadMat(imagePath)
	if err != nil {
		return "", err
	}
	defer img.Close()

	scaled, err := r.extractor.ScaledFor(img)
	if err != nil {
		return "", err
	}
	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	outPath := filepath.Join(outDir, base+"_overlay.png")
	if err := extract.WriteOverlay(img, scaled, res, outPath); err != nil {
		return "", err
	}
	return outPath, nil
}

func (r *Runner) writeSummary(summary *Summary, dir string) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "batch_summary.json"), data, 0644)
}

// writeCSV emits one row per sheet: student id, score, percentage, then a
// column per question holding 1 for full credit and 0 otherwise. Failed
// sheets get an ERROR marker in the score column.
func (r *Runner) writeCSV(summary *Summary, dir string) error {
	f, err := os.Create(filepath.Join(dir, "batch_results.csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	qNums := sortedQuestionNumbers(r.key.Answers)
	header := []string{"image", "student_id", "score", "percentage"}
	for _, q := range qNums {
		header = append(header, "Q"+strconv.Itoa(q))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, outcome := range summary.Sheets {
		row := []string{filepath.Base(outcome.Image), outcome.StudentID}
		if outcome.Error != "" {
			row = append(row, "ERROR", "")
			for range qNums {
				row = append(row, "")
			}
		} else {
			row = append(row,
				strconv.FormatFloat(outcome.Score, 'f', 2, 64),
				strconv.FormatFloat(outcome.Percentage, 'f', 1, 64))
			for _, q := range qNums {
				mark := "0"
				if outcome.details[q] == string(grade.StatusCorrect) {
					mark = "1"
				}
				row = append(row, mark)
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func sortedQuestionNumbers(key map[string][]string) []int {
	nums := make([]int, 0, len(key))
	for k := range key {
		if n, err := strconv.Atoi(k); err == nil {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	return nums
}
