// Package sheet renders blank answer sheets. Because the renderer places
// every bubble itself, it emits the matching template document alongside the
// image, so generated sheets never need to round-trip through detection.
package sheet

import (
	"fmt"
	"image"
	"math"

	"omr-grader/internal/template"

	"github.com/fogleman/gg"
)

// Layout holds the sheet design parameters. All lengths are in points on a
// 612x792 (US Letter) page; rendering multiplies by Scale.
type Layout struct {
	PageWidth  int
	PageHeight int
	Scale      int

	MarginTop    int
	MarginBottom int
	MarginLeft   int
	MarginRight  int
	HeaderHeight int

	Columns             int
	QuestionsPerPage    int
	RowSpacing          int
	BubbleRadius        int
	BubbleSpacing       int
	QuestionNumberWidth int
	ChoiceLabels        []string

	IncludeStudentID bool
	StudentIDDigits  int
	IDBubbleRadius   int
	IDBubbleSpacing  int
	IDRowSpacing     int
	IDMarkerSize     int
}

// DefaultLayout returns the standard letter-size design.
func DefaultLayout() Layout {
	return Layout{
		PageWidth:  612,
		PageHeight: 792,
		Scale:      2,

		MarginTop:    10,
		MarginBottom: 50,
		MarginLeft:   50,
		MarginRight:  50,
		HeaderHeight: 80,

		Columns:             3,
		QuestionsPerPage:    40,
		RowSpacing:          35,
		BubbleRadius:        8,
		BubbleSpacing:       23,
		QuestionNumberWidth: 30,
		ChoiceLabels:        []string{"A", "B", "C", "D"},

		IncludeStudentID: true,
		StudentIDDigits:  8,
		IDBubbleRadius:   7,
		IDBubbleSpacing:  20,
		IDRowSpacing:     22,
		IDMarkerSize:     10,
	}
}

// preset tunes column count and density for common exam sizes.
type preset struct {
	columns          int
	questionsPerPage int
	rowSpacing       int
}

var presets = []struct {
	maxQuestions int
	preset
}{
	{10, preset{columns: 2, questionsPerPage: 30, rowSpacing: 40}},
	{20, preset{columns: 2, questionsPerPage: 36, rowSpacing: 35}},
	{30, preset{columns: 3, questionsPerPage: 54, rowSpacing: 35}},
	{40, preset{columns: 3, questionsPerPage: 54, rowSpacing: 35}},
}

// ApplyPreset adjusts the layout for the given exam size, picking the
// smallest preset that fits (the largest when none does).
func (l *Layout) ApplyPreset(totalQuestions int) {
	chosen := presets[len(presets)-1].preset
	for _, p := range presets {
		if totalQuestions <= p.maxQuestions {
			chosen = p.preset
			break
		}
	}
	l.Columns = chosen.columns
	l.QuestionsPerPage = chosen.questionsPerPage
	l.RowSpacing = chosen.rowSpacing
}

// Rendered is the output of one sheet generation: page images plus the
// template document describing exactly where every bubble was placed.
type Rendered struct {
	Images   []image.Image
	Document *template.Document
}

// Render draws a blank sheet for totalQuestions questions. Questions are
// numbered column-major within each page; the student-ID block, when
// enabled, sits in the bottom-right corner of the first page framed by four
// solid square markers.
func Render(totalQuestions int, layout Layout) (*Rendered, error) {
	if totalQuestions <= 0 {
		return nil, fmt.Errorf("total questions must be positive, got %d", totalQuestions)
	}
	if layout.QuestionsPerPage <= 0 || layout.Columns <= 0 {
		return nil, fmt.Errorf("layout needs positive columns and questions per page")
	}

	s := layout.Scale
	if s <= 0 {
		s = 1
	}
	width := layout.PageWidth * s
	height := layout.PageHeight * s
	// 612pt letter width at 2x is close to 144 DPI.
	dpi := 72 * s

	totalPages := (totalQuestions + layout.QuestionsPerPage - 1) / layout.QuestionsPerPage

	rendered := &Rendered{}
	var pages []template.Page

	for pageIdx := 0; pageIdx < totalPages; pageIdx++ {
		dc := gg.NewContext(width, height)
		dc.SetRGB(1, 1, 1)
		dc.Clear()
		dc.SetRGB(0, 0, 0)

		drawHeader(dc, layout, s, pageIdx+1, totalPages)
		questions := drawQuestions(dc, layout, s, pageIdx, totalQuestions)

		page := template.Page{
			ImageDimensions: template.ImageDimensions{Width: width, Height: height, DPI: dpi},
			Questions:       questions,
		}

		if pageIdx == 0 && layout.IncludeStudentID {
			cols := drawStudentID(dc, layout, s, width, height)
			page.StudentID = &template.IDBlock{
				TotalDigits:  len(cols),
				DigitColumns: cols,
			}
		}

		rendered.Images = append(rendered.Images, dc.Image())
		pages = append(pages, page)
	}

	rendered.Document = template.NewDocument("", pages)
	return rendered, nil
}

func drawHeader(dc *gg.Context, l Layout, s int, pageNum, totalPages int) {
	left := float64(l.MarginLeft * s)
	top := float64(l.MarginTop*s + 14*s)

	dc.DrawString("ANSWER SHEET", left, top)
	dc.DrawStringAnchored(fmt.Sprintf("Page %d/%d", pageNum, totalPages),
		float64((l.PageWidth-l.MarginRight)*s), top, 1, 0)

	infoY := top + float64(20*s)
	dc.DrawString("Name: ____________________________", left, infoY)
	dc.DrawString("Date: ______________", left+float64(180*s), infoY)
}

// drawQuestions lays bubbles out column-major and returns their geometry.
func drawQuestions(dc *gg.Context, l Layout, s int, pageIdx, totalQuestions int) []template.Question {
	startQuestion := pageIdx * l.QuestionsPerPage
	endQuestion := totalQuestions
	if end := startQuestion + l.QuestionsPerPage; end < endQuestion {
		endQuestion = end
	}
	questionsThisPage := endQuestion - startQuestion
	perColumn := (questionsThisPage + l.Columns - 1) / l.Columns

	contentWidth := (l.PageWidth - l.MarginLeft - l.MarginRight) * s
	columnWidth := float64(contentWidth) / float64(l.Columns)
	startY := float64((l.MarginTop + l.HeaderHeight) * s)
	radius := l.BubbleRadius * s

	var questions []template.Question
	for col := 0; col < l.Columns; col++ {
		colX := float64(l.MarginLeft*s) + float64(col)*columnWidth

		for row := 0; row < perColumn; row++ {
			qNum := startQuestion + col*perColumn + row + 1
			if qNum > endQuestion {
				break
			}
			rowY := startY + float64(row*l.RowSpacing*s)

			dc.DrawStringAnchored(fmt.Sprintf("%d.", qNum), colX, rowY, 0, 0.5)

			q := template.Question{Number: qNum}
			bubbleStartX := colX + float64(l.QuestionNumberWidth*s)
			for i, label := range l.ChoiceLabels {
				bx := bubbleStartX + float64(i*l.BubbleSpacing*s)
				drawBubble(dc, bx, rowY, float64(radius), label)
				q.Bubbles = append(q.Bubbles, template.Bubble{
					Label:  label,
					X:      int(math.Round(bx)),
					Y:      int(math.Round(rowY)),
					Radius: radius,
				})
			}
			q.Bounds = questionBounds(q.Bubbles)
			questions = append(questions, q)
		}
	}
	return questions
}

// drawStudentID draws the digit grid bottom-right and frames it with four
// solid square markers, the anchors region detection looks for.
func drawStudentID(dc *gg.Context, l Layout, s int, width, height int) []template.DigitColumn {
	digits := l.StudentIDDigits
	spacing := l.IDBubbleSpacing * s
	rowSpacing := l.IDRowSpacing * s
	radius := l.IDBubbleRadius * s
	marker := float64(l.IDMarkerSize * s)

	sectionWidth := digits*spacing + 40*s
	sectionHeight := 10*rowSpacing + 50*s
	startX := float64(width - l.MarginRight*s - sectionWidth)
	topY := float64(height - l.MarginBottom*s - sectionHeight)

	dc.DrawString("STUDENT ID", startX+float64(10*s), topY)

	firstBubbleX := startX + float64(20*s)
	headerY := topY + float64(18*s)
	for col := 0; col < digits; col++ {
		dc.DrawStringAnchored(fmt.Sprintf("%d", col+1),
			firstBubbleX+float64(col*spacing), headerY, 0.5, 0.5)
	}

	firstRowY := topY + float64(35*s)
	columns := make([]template.DigitColumn, digits)
	for col := 0; col < digits; col++ {
		columns[col].Position = col + 1
		bx := firstBubbleX + float64(col*spacing)
		for digit := 0; digit < 10; digit++ {
			by := firstRowY + float64(digit*rowSpacing)
			drawBubble(dc, bx, by, float64(radius), fmt.Sprintf("%d", digit))
			columns[col].Bubbles = append(columns[col].Bubbles, template.DigitBubble{
				Digit:  digit,
				X:      int(math.Round(bx)),
				Y:      int(math.Round(by)),
				Radius: radius,
			})
		}
	}

	// Frame corners around the grid with some clearance so the markers
	// never touch a bubble.
	lastBubbleX := firstBubbleX + float64((digits-1)*spacing)
	lastRowY := firstRowY + float64(9*rowSpacing)
	x1 := firstBubbleX - float64(15*s)
	x2 := lastBubbleX + float64(15*s)
	y1 := firstRowY - float64(15*s)
	y2 := lastRowY + float64(15*s)

	for _, corner := range [][2]float64{{x1, y1}, {x2, y1}, {x1, y2}, {x2, y2}} {
		dc.DrawRectangle(corner[0]-marker/2, corner[1]-marker/2, marker, marker)
		dc.Fill()
	}
	return columns
}

func drawBubble(dc *gg.Context, x, y, radius float64, label string) {
	dc.DrawCircle(x, y, radius)
	dc.SetLineWidth(2)
	dc.Stroke()
	dc.DrawStringAnchored(label, x, y, 0.5, 0.5)
}

func questionBounds(bubbles []template.Bubble) *template.BoundingBox {
	if len(bubbles) == 0 {
		return nil
	}
	bb := &template.BoundingBox{
		XMin: bubbles[0].X, XMax: bubbles[0].X,
		YMin: bubbles[0].Y, YMax: bubbles[0].Y,
	}
	radiusSum := 0
	for _, b := range bubbles {
		if b.X < bb.XMin {
			bb.XMin = b.X
		}
		if b.X > bb.XMax {
			bb.XMax = b.X
		}
		if b.Y < bb.YMin {
			bb.YMin = b.Y
		}
		if b.Y > bb.YMax {
			bb.YMax = b.Y
		}
		radiusSum += b.Radius
	}
	bb.AvgRadius = radiusSum / len(bubbles)
	return bb
}
