package template

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ImageDimensions records the pixel size and capture resolution of the
// reference image a page's coordinates were measured on.
type ImageDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	DPI    int `json:"dpi,omitempty"`
}

// IDBlock is the persisted student-ID geometry of one page.
type IDBlock struct {
	TotalDigits  int           `json:"total_digits"`
	DigitColumns []DigitColumn `json:"digit_columns"`
}

// Page holds the detected geometry of one sheet page.
type Page struct {
	Page               int             `json:"page"`
	ImageDimensions    ImageDimensions `json:"image_dimensions"`
	QuestionsDetected  int             `json:"questions_detected"`
	Questions          []Question      `json:"questions"`
	StudentID          *IDBlock        `json:"student_id,omitempty"`
}

// DocumentMetadata describes where a template document came from.
type DocumentMetadata struct {
	SourceFile     string    `json:"source_file,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	TotalPages     int       `json:"total_pages"`
	TotalQuestions int       `json:"total_questions"`
}

// Document is the template artifact persisted to disk: per-page geometry
// plus document metadata. It is written once at capture time and read-only
// for every extraction run afterwards.
type Document struct {
	Metadata DocumentMetadata `json:"metadata"`
	Pages    []Page           `json:"pages"`
}

// NewDocument assembles a document from detected pages, filling in metadata.
func NewDocument(sourceFile string, pages []Page) *Document {
	total := 0
	for i := range pages {
		pages[i].Page = i + 1
		pages[i].QuestionsDetected = len(pages[i].Questions)
		total += len(pages[i].Questions)
	}
	return &Document{
		Metadata: DocumentMetadata{
			SourceFile:     sourceFile,
			CreatedAt:      time.Now(),
			TotalPages:     len(pages),
			TotalQuestions: total,
		},
		Pages: pages,
	}
}

// LoadDocument loads a template document from a JSON file.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse template %s: %w", path, err)
	}
	return &doc, nil
}

// Save writes the document to a JSON file.
func (d *Document) Save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Template flattens the document into the runtime model: questions from all
// pages in order, the student-ID block from the first page that has one.
// Digit columns that cannot be a real ID column (a lone bubble from a stray
// marker, duplicate digit labels, digits outside 0-9) are dropped here so
// downstream resolution only ever sees plausible columns.
func (d *Document) Template() (*Template, error) {
	if len(d.Pages) == 0 {
		return nil, fmt.Errorf("template document has no pages")
	}

	first := d.Pages[0]
	t := &Template{
		ReferenceWidth:  first.ImageDimensions.Width,
		ReferenceHeight: first.ImageDimensions.Height,
		DPI:             first.ImageDimensions.DPI,
	}
	for _, page := range d.Pages {
		t.Questions = append(t.Questions, page.Questions...)
	}

	for _, page := range d.Pages {
		if page.StudentID == nil {
			continue
		}
		pos := 0
		for _, col := range page.StudentID.DigitColumns {
			if !validDigitColumn(col) {
				continue
			}
			pos++
			col.Position = pos
			t.DigitColumns = append(t.DigitColumns, col)
		}
		break
	}
	return t, nil
}

// validDigitColumn rejects columns that cannot represent an ID digit.
func validDigitColumn(col DigitColumn) bool {
	if len(col.Bubbles) <= 1 {
		return false
	}
	seen := make(map[int]bool, len(col.Bubbles))
	for _, b := range col.Bubbles {
		if b.Digit < 0 || b.Digit > 9 {
			return false
		}
		seen[b.Digit] = true
	}
	return len(seen) > 1
}
