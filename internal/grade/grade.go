// Package grade scores resolved answer sets against an answer key.
package grade

import (
	"sort"
	"strconv"
)

// Status classifies one question's outcome.
type Status string

const (
	StatusCorrect   Status = "correct"
	StatusIncorrect Status = "incorrect"
	StatusBlank     Status = "blank"
	StatusPartial   Status = "partial"
)

// Options control scoring. A zero MaxPoints means one point per question.
type Options struct {
	MaxPoints     float64
	PartialCredit bool
}

// QuestionGrade is the outcome for a single question.
type QuestionGrade struct {
	CorrectAnswers []string `json:"correct_answers"`
	StudentAnswers []string `json:"student_answers"`
	Status         Status   `json:"status"`
	Points         float64  `json:"points"`
}

// Result is the grading outcome for one sheet.
type Result struct {
	Correct           int     `json:"correct"`
	Incorrect         int     `json:"incorrect"`
	Blank             int     `json:"blank"`
	Partial           int     `json:"partial"`
	TotalQuestions    int     `json:"total_questions"`
	MaxPoints         float64 `json:"max_points"`
	PointsPerQuestion float64 `json:"points_per_question"`
	Score             float64 `json:"score"`
	Percentage        float64 `json:"percentage"`

	Details map[int]QuestionGrade `json:"details"`
}

// Grade scores scanned answers against the key. The key's question set is
// authoritative: a question missing from the scan grades as blank, and
// scanned questions absent from the key are ignored. The function is pure;
// identical inputs always produce identical results.
func Grade(key map[string][]string, scanned map[string][]string, opts Options) *Result {
	questions := numericQuestions(key)
	totalQuestions := len(questions)

	maxPoints := opts.MaxPoints
	pointsPerQuestion := 1.0
	if maxPoints <= 0 {
		maxPoints = float64(totalQuestions)
	} else if totalQuestions > 0 {
		pointsPerQuestion = maxPoints / float64(totalQuestions)
	}

	result := &Result{
		TotalQuestions:    totalQuestions,
		MaxPoints:         maxPoints,
		PointsPerQuestion: pointsPerQuestion,
		Details:           make(map[int]QuestionGrade, totalQuestions),
	}

	for _, q := range questions {
		correctSet := toSet(key[q.key])
		studentSet := toSet(scanned[q.key])

		status, points := gradeQuestion(correctSet, studentSet, pointsPerQuestion, opts.PartialCredit)
		switch status {
		case StatusCorrect:
			result.Correct++
		case StatusIncorrect:
			result.Incorrect++
		case StatusBlank:
			result.Blank++
		case StatusPartial:
			result.Partial++
		}
		result.Score += points

		result.Details[q.num] = QuestionGrade{
			CorrectAnswers: sortedLabels(correctSet),
			StudentAnswers: sortedLabels(studentSet),
			Status:         status,
			Points:         points,
		}
	}

	if result.MaxPoints > 0 {
		result.Percentage = 100 * result.Score / result.MaxPoints
	}
	return result
}

// gradeQuestion is the per-question decision: blank beats everything,
// exact set equality is full credit, then optional partial credit, then
// incorrect.
func gradeQuestion(correct, student map[string]bool, pointsPerQuestion float64, partialCredit bool) (Status, float64) {
	switch {
	case len(student) == 0:
		return StatusBlank, 0

	case setsEqual(student, correct):
		return StatusCorrect, pointsPerQuestion

	case partialCredit && len(correct) > 0:
		correctSelected := 0
		incorrectSelected := 0
		for label := range student {
			if correct[label] {
				correctSelected++
			} else {
				incorrectSelected++
			}
		}
		fraction := float64(correctSelected-incorrectSelected) / float64(len(correct))
		if fraction <= 0 {
			return StatusIncorrect, 0
		}
		return StatusPartial, fraction * pointsPerQuestion

	default:
		return StatusIncorrect, 0
	}
}

// Letter maps a percentage onto the usual letter-grade ladder.
func Letter(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A"
	case percentage >= 80:
		return "B"
	case percentage >= 70:
		return "C"
	case percentage >= 60:
		return "D"
	default:
		return "F"
	}
}

func toSet(labels []string) map[string]bool {
	set := make(map[string]bool, len(labels))
	for _, l := range labels {
		set[l] = true
	}
	return set
}

func setsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func sortedLabels(set map[string]bool) []string {
	labels := make([]string, 0, len(set))
	for l := range set {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

type numberedQuestion struct {
	num int
	key string
}

// numericQuestions orders key questions by number so grading and reporting
// walk questions in exam order. Keys that are not question numbers are
// dropped; keeping them would collide in Details under a zero number.
func numericQuestions(key map[string][]string) []numberedQuestion {
	questions := make([]numberedQuestion, 0, len(key))
	for k := range key {
		n, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		questions = append(questions, numberedQuestion{num: n, key: k})
	}
	sort.Slice(questions, func(i, j int) bool {
		return questions[i].num < questions[j].num
	})
	return questions
}
