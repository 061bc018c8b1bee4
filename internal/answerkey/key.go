// Package answerkey builds and persists the mapping from question numbers
// to correct choice labels.
package answerkey

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"omr-grader/internal/extract"
	"omr-grader/internal/template"
)

// Creation methods recorded in key metadata.
const (
	MethodManual  = "manual"
	MethodScanned = "scanned"
)

// Metadata describes how and from what a key was created.
type Metadata struct {
	CreatedAt      time.Time `json:"created_at"`
	CreationMethod string    `json:"creation_method"`
	TemplateFile   string    `json:"template_file,omitempty"`
	TotalQuestions int       `json:"total_questions"`
}

// Key is the answer-key artifact: question number (as a string) to the
// sorted list of correct labels. Multi-answer questions list every label.
// Created once, read-only thereafter.
type Key struct {
	Metadata Metadata            `json:"metadata"`
	Answers  map[string][]string `json:"answer_key"`
}

// Manual builds a key from explicit answers, validating every label
// against the template's choices for that question. Questions left out of
// answers get an empty entry (no correct answer).
func Manual(tmpl *template.Template, answers map[int][]string, templatePath string) (*Key, error) {
	key := &Key{
		Metadata: Metadata{
			CreatedAt:      time.Now(),
			CreationMethod: MethodManual,
			TemplateFile:   templatePath,
			TotalQuestions: tmpl.TotalQuestions(),
		},
		Answers: make(map[string][]string, tmpl.TotalQuestions()),
	}

	for _, q := range tmpl.Questions {
		valid := make(map[string]bool, len(q.Bubbles))
		for _, b := range q.Bubbles {
			valid[b.Label] = true
		}

		given := answers[q.Number]
		for _, label := range given {
			if !valid[label] {
				return nil, fmt.Errorf("question %d: label %q is not one of its choices", q.Number, label)
			}
		}
		sorted := append([]string(nil), given...)
		sort.Strings(sorted)
		key.Answers[strconv.Itoa(q.Number)] = sorted
	}

	for qNum := range answers {
		if _, ok := key.Answers[strconv.Itoa(qNum)]; !ok {
			return nil, fmt.Errorf("question %d is not in the template", qNum)
		}
	}
	return key, nil
}

// FromExtraction builds a key by treating an extracted sheet as the filled
// master copy: each question's selected answers become the correct ones.
func FromExtraction(result *extract.Result, templatePath string) *Key {
	key := &Key{
		Metadata: Metadata{
			CreatedAt:      time.Now(),
			CreationMethod: MethodScanned,
			TemplateFile:   templatePath,
			TotalQuestions: result.Metadata.TotalQuestions,
		},
		Answers: make(map[string][]string, len(result.Answers)),
	}
	for qKey, qr := range result.Answers {
		sorted := append([]string(nil), qr.SelectedAnswers...)
		sort.Strings(sorted)
		key.Answers[qKey] = sorted
	}
	return key
}

// Load reads a key from a JSON file.
func Load(path string) (*Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answer key: %w", err)
	}
	var key Key
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("parse answer key %s: %w", path, err)
	}
	return &key, nil
}

// Save writes the key to a JSON file.
func (k *Key) Save(path string) error {
	data, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
