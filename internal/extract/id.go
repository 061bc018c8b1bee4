package extract

import (
	"strconv"
	"strings"

	"omr-grader/internal/template"

	"gonum.org/v1/gonum/stat"
)

// ResolveDigits turns classified digit columns into a student ID. Each
// position resolves independently:
//
//   - no filled bubble: blank, confidence 0, '_' in the ID string
//   - one filled bubble: that digit, confidence = its fill percentage
//   - several filled bubbles: conflict; the highest fill percentage wins
//     (stable first-found on exact ties) and all contenders are recorded
//
// The resolved digit is always one of the column's own labels, never a
// synthesized value.
func ResolveDigits(columns []template.DigitColumn) *IDResult {
	if len(columns) == 0 {
		return nil
	}

	var sb strings.Builder
	confidences := make([]float64, 0, len(columns))
	details := make([]DigitDetail, 0, len(columns))
	valid := true

	for _, col := range columns {
		var filled []template.DigitBubble
		for _, b := range col.Bubbles {
			if b.Filled {
				filled = append(filled, b)
			}
		}

		detail := DigitDetail{Position: col.Position}
		switch len(filled) {
		case 0:
			detail.Status = DigitBlank
			sb.WriteByte('_')
			valid = false
		case 1:
			digit := filled[0].Digit
			detail.Status = DigitValid
			detail.Digit = &digit
			detail.Confidence = filled[0].FillPercent
			sb.WriteString(strconv.Itoa(digit))
		default:
			best := filled[0]
			for _, b := range filled[1:] {
				if b.FillPercent > best.FillPercent {
					best = b
				}
			}
			digit := best.Digit
			detail.Status = DigitConflict
			detail.Digit = &digit
			detail.Confidence = best.FillPercent
			for _, b := range filled {
				detail.Conflicting = append(detail.Conflicting, b.Digit)
			}
			sb.WriteString(strconv.Itoa(digit))
		}

		confidences = append(confidences, detail.Confidence)
		details = append(details, detail)
	}

	return &IDResult{
		StudentID:         sb.String(),
		IsValid:           valid,
		AverageConfidence: stat.Mean(confidences, nil),
		Digits:            details,
	}
}
