// omrgrader is the command-line front end of the bubble-sheet pipeline:
// generate blank sheets, capture templates from scans, build answer keys,
// extract marked answers, and grade single sheets or whole folders.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"omr-grader/internal/answerkey"
	"omr-grader/internal/batch"
	"omr-grader/internal/detect"
	"omr-grader/internal/extract"
	"omr-grader/internal/grade"
	"omr-grader/internal/sheet"
	"omr-grader/internal/store"
	"omr-grader/internal/template"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "omrgrader",
		Short: "Bubble-sheet exam scanner and grader",
	}
	root.AddCommand(sheetCmd(), templateCmd(), keyCmd(), extractCmd(), gradeCmd(), batchCmd())
	return root
}

// addCommonFlags registers the flags every subcommand shares.
func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

// addDetectFlags registers overrides for the detection constants.
func addDetectFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("choices", 4, "Answer choices per question")
	f.Float64("row-tolerance", 30, "Row clustering tolerance in pixels")
	f.Float64("column-tolerance", 100, "Question column clustering tolerance in pixels")
	f.Float64("bubble-min-radius", 10, "Minimum bubble radius in pixels")
	f.Float64("bubble-max-radius", 50, "Maximum bubble radius in pixels")
}

func detectParams(v *viper.Viper) detect.Params {
	p := detect.DefaultParams()
	p.ChoicesPerQuestion = v.GetInt("choices")
	p.RowTolerance = v.GetFloat64("row-tolerance")
	p.ColumnTolerance = v.GetFloat64("column-tolerance")
	p.BubbleMinRadius = v.GetFloat64("bubble-min-radius")
	p.BubbleMaxRadius = v.GetFloat64("bubble-max-radius")
	return p
}

func sheetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheet",
		Short: "Generate a blank answer sheet and its template",
		RunE:  runSheet,
	}
	f := cmd.Flags()
	f.IntP("questions", "q", 20, "Number of questions")
	f.StringP("output", "o", "answer_sheet.png", "Output image path")
	f.String("template-out", "", "Template JSON path (default: output name with .json)")
	f.Int("digits", 8, "Student-ID digits (0 disables the ID block)")
	addCommonFlags(cmd)
	return cmd
}

func templateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Detect sheet geometry from a scanned reference and save it as a template",
		RunE:  runTemplate,
	}
	f := cmd.Flags()
	f.StringP("input", "i", "", "Reference scan (image or PDF, required)")
	f.StringP("output", "o", "template.json", "Template JSON path")
	f.Int("dpi", 200, "Rasterization DPI for PDF input")
	addDetectFlags(cmd)
	addCommonFlags(cmd)
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func keyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Create an answer key, manually or from a filled master sheet",
		RunE:  runKey,
	}
	f := cmd.Flags()
	f.StringP("template", "t", "template.json", "Template JSON path")
	f.StringP("output", "o", "answer_key.json", "Answer key JSON path")
	f.String("answers", "", `Manual answers as JSON, e.g. {"1":["A"],"2":["B","C"]}`)
	f.String("scan", "", "Filled master sheet image (alternative to --answers)")
	f.Float64("threshold", 50, "Fill threshold percent for --scan")
	addCommonFlags(cmd)
	return cmd
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract marked answers and student ID from a scanned sheet",
		RunE:  runExtract,
	}
	f := cmd.Flags()
	f.StringP("template", "t", "template.json", "Template JSON path")
	f.StringP("input", "i", "", "Scanned sheet image (required)")
	f.StringP("output-dir", "o", ".", "Directory for the answers JSON")
	f.Float64("threshold", 50, "Fill threshold percent")
	f.Bool("overlay", false, "Write a visualization overlay next to the answers")
	addCommonFlags(cmd)
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade an extracted answers file against an answer key",
		RunE:  runGrade,
	}
	f := cmd.Flags()
	f.StringP("key", "k", "answer_key.json", "Answer key JSON path")
	f.StringP("answers", "a", "", "Extracted answers JSON (required)")
	f.StringP("output-dir", "o", ".", "Directory for the grade report")
	f.Float64("max-points", 0, "Total points for the exam (0 = one per question)")
	f.Bool("partial-credit", false, "Award partial credit on multi-answer questions")
	addCommonFlags(cmd)
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Grade every sheet image in a folder",
		RunE:  runBatch,
	}
	f := cmd.Flags()
	f.StringP("template", "t", "template.json", "Template JSON path")
	f.StringP("key", "k", "answer_key.json", "Answer key JSON path")
	f.StringP("input-dir", "i", "", "Folder of scanned sheets (required)")
	f.StringP("output-dir", "o", "batch_results", "Directory for results")
	f.Float64("threshold", 50, "Fill threshold percent")
	f.Float64("max-points", 0, "Total points for the exam (0 = one per question)")
	f.Bool("partial-credit", false, "Award partial credit on multi-answer questions")
	f.Int("workers", 4, "Concurrent sheet workers")
	f.Bool("overlay", false, "Write visualization overlays")
	f.String("db", "", "SQLite database to record results in (optional)")
	f.String("session", "", "Session name for the database record")
	addCommonFlags(cmd)
	_ = cmd.MarkFlagRequired("input-dir")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var level slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// viperForCmd binds a command's flags and environment to a fresh viper
// instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("OMRGRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("omrgrader")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/omrgrader")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	}
	return v
}

func runSheet(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	questions := v.GetInt("questions")
	layout := sheet.DefaultLayout()
	layout.ApplyPreset(questions)
	if digits := v.GetInt("digits"); digits > 0 {
		layout.StudentIDDigits = digits
	} else {
		layout.IncludeStudentID = false
	}

	rendered, err := sheet.Render(questions, layout)
	if err != nil {
		return err
	}

	output := v.GetString("output")
	paths, err := sheet.WritePages(rendered.Images, output)
	if err != nil {
		return err
	}

	templateOut := v.GetString("template-out")
	if templateOut == "" {
		templateOut = strings.TrimSuffix(output, filepath.Ext(output)) + ".json"
	}
	rendered.Document.Metadata.SourceFile = output
	if err := rendered.Document.Save(templateOut); err != nil {
		return fmt.Errorf("save template: %w", err)
	}

	slog.Info("sheet created",
		"questions", questions,
		"pages", len(paths),
		"image", output,
		"template", templateOut)
	return nil
}

func runTemplate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	input := v.GetString("input")
	dpi := v.GetInt("dpi")
	params := detectParams(v)

	var pages []template.Page
	if strings.EqualFold(filepath.Ext(input), ".pdf") {
		images, err := sheet.RasterizePDF(input, float64(dpi))
		if err != nil {
			return err
		}
		for i, img := range images {
			page, err := detect.BuildPageFromImage(img, dpi, params)
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			pages = append(pages, *page)
		}
	} else {
		page, err := detect.BuildPageFromFile(input, dpi, params)
		if err != nil {
			return err
		}
		pages = append(pages, *page)
	}

	doc := template.NewDocument(input, pages)
	if doc.Metadata.TotalQuestions == 0 {
		return fmt.Errorf("no questions detected in %s", input)
	}
	if err := doc.Save(v.GetString("output")); err != nil {
		return fmt.Errorf("save template: %w", err)
	}

	slog.Info("template captured",
		"source", input,
		"pages", doc.Metadata.TotalPages,
		"questions", doc.Metadata.TotalQuestions,
		"output", v.GetString("output"))
	return nil
}

func runKey(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	templatePath := v.GetString("template")
	doc, err := template.LoadDocument(templatePath)
	if err != nil {
		return err
	}
	tmpl, err := doc.Template()
	if err != nil {
		return err
	}

	var key *answerkey.Key
	switch {
	case v.GetString("answers") != "":
		var raw map[string][]string
		if err := json.Unmarshal([]byte(v.GetString("answers")), &raw); err != nil {
			return fmt.Errorf("parse --answers: %w", err)
		}
		answers := make(map[int][]string, len(raw))
		for qKey, labels := range raw {
			var qNum int
			if _, err := fmt.Sscanf(qKey, "%d", &qNum); err != nil {
				return fmt.Errorf("question key %q is not a number", qKey)
			}
			answers[qNum] = labels
		}
		key, err = answerkey.Manual(tmpl, answers, templatePath)
		if err != nil {
			return err
		}

	case v.GetString("scan") != "":
		extractor := extract.New(tmpl, templatePath)
		result, err := extractor.ExtractFile(v.GetString("scan"), v.GetFloat64("threshold"))
		if err != nil {
			return err
		}
		key = answerkey.FromExtraction(result, templatePath)

	default:
		return fmt.Errorf("either --answers or --scan is required")
	}

	output := v.GetString("output")
	if err := key.Save(output); err != nil {
		return fmt.Errorf("save answer key: %w", err)
	}
	slog.Info("answer key created",
		"questions", key.Metadata.TotalQuestions,
		"method", key.Metadata.CreationMethod,
		"output", output)
	return nil
}

func runExtract(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	templatePath := v.GetString("template")
	doc, err := template.LoadDocument(templatePath)
	if err != nil {
		return err
	}
	tmpl, err := doc.Template()
	if err != nil {
		return err
	}

	input := v.GetString("input")
	extractor := extract.New(tmpl, templatePath)
	result, err := extractor.ExtractFile(input, v.GetFloat64("threshold"))
	if err != nil {
		return err
	}

	outPath, err := result.SaveToDir(v.GetString("output-dir"))
	if err != nil {
		return err
	}

	if v.GetBool("overlay") {
		img, err := detect.LoadMat(input)
		if err != nil {
			return err
		}
		defer img.Close()
		scaled, err := extractor.ScaledFor(img)
		if err != nil {
			return err
		}
		overlayPath := strings.TrimSuffix(outPath, ".json") + "_overlay.png"
		if err := extract.WriteOverlay(img, scaled, result, overlayPath); err != nil {
			return err
		}
		slog.Info("overlay written", "path", overlayPath)
	}

	studentID := ""
	if result.StudentID != nil {
		studentID = result.StudentID.StudentID
	}
	slog.Info("answers extracted",
		"image", input,
		"questions", result.Metadata.TotalQuestions,
		"student_id", studentID,
		"output", outPath)
	return nil
}

func runGrade(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	keyPath := v.GetString("key")
	key, err := answerkey.Load(keyPath)
	if err != nil {
		return err
	}
	answersPath := v.GetString("answers")
	scanned, err := extract.Load(answersPath)
	if err != nil {
		return err
	}

	result := grade.Grade(key.Answers, scanned.SelectedAnswers(), grade.Options{
		MaxPoints:     v.GetFloat64("max-points"),
		PartialCredit: v.GetBool("partial-credit"),
	})

	report := grade.NewReport(result, keyPath, answersPath)
	reportPath, err := report.SaveToDir(v.GetString("output-dir"))
	if err != nil {
		return err
	}

	slog.Info("sheet graded",
		"score", fmt.Sprintf("%.2f/%.2f", result.Score, result.MaxPoints),
		"percentage", fmt.Sprintf("%.1f%%", result.Percentage),
		"letter", grade.Letter(result.Percentage),
		"correct", result.Correct,
		"incorrect", result.Incorrect,
		"blank", result.Blank,
		"partial", result.Partial,
		"report", reportPath)
	return nil
}

func runBatch(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	templatePath := v.GetString("template")
	doc, err := template.LoadDocument(templatePath)
	if err != nil {
		return err
	}
	tmpl, err := doc.Template()
	if err != nil {
		return err
	}
	keyPath := v.GetString("key")
	key, err := answerkey.Load(keyPath)
	if err != nil {
		return err
	}

	opts := batch.Options{
		InputDir:         v.GetString("input-dir"),
		OutputDir:        v.GetString("output-dir"),
		ThresholdPercent: v.GetFloat64("threshold"),
		GradeOptions: grade.Options{
			MaxPoints:     v.GetFloat64("max-points"),
			PartialCredit: v.GetBool("partial-credit"),
		},
		Workers:       v.GetInt("workers"),
		WriteOverlays: v.GetBool("overlay"),
		Logger:        slog.Default(),
	}

	if dbPath := v.GetString("db"); dbPath != "" {
		db, err := store.New(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		templateID, err := db.GetOrCreateTemplate(
			filepath.Base(templatePath), templatePath,
			tmpl.TotalQuestions(), tmpl.HasStudentID())
		if err != nil {
			return err
		}
		keyID, err := db.GetOrCreateAnswerKey(templateID, filepath.Base(keyPath), keyPath)
		if err != nil {
			return err
		}
		sessionName := v.GetString("session")
		if sessionName == "" {
			sessionName = filepath.Base(opts.InputDir)
		}
		sessionID, err := db.CreateSession(sessionName, templateID, keyID, true)
		if err != nil {
			return err
		}
		opts.Store = db
		opts.SessionID = sessionID
	}

	runner := batch.NewRunner(tmpl, templatePath, key, keyPath)
	summary, err := runner.Run(context.Background(), opts)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		slog.Warn("some sheets failed", "failed", summary.Failed)
	}
	return nil
}
