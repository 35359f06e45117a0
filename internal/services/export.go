package services

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/soaringjerry/surveyor/internal/models"
)

// ExportResultsCSV renders a summary in long format: one row per question bucket.
// Text questions get a single "average_length" row.
func ExportResultsCSV(sum *ResultsSummary) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"survey_id", "question_id", "question_type", "question_text", "bucket", "value"})
	if sum != nil {
		for _, q := range sum.Questions {
			for _, rec := range resultRows(q) {
				row := append([]string{sum.SurveyID, q.ID, string(q.Type), q.Text}, rec...)
				if err := w.Write(row); err != nil {
					return nil, err
				}
			}
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func resultRows(q QuestionResult) [][]string {
	switch q.Type {
	case models.QuestionMultipleChoice:
		out := make([][]string, 0, len(q.Options))
		for _, oc := range q.Options {
			out = append(out, []string{oc.Option, strconv.Itoa(oc.Count)})
		}
		return out
	case models.QuestionRating:
		out := make([][]string, 0, len(q.Ratings))
		for _, rc := range q.Ratings {
			out = append(out, []string{strconv.Itoa(rc.Rating), strconv.Itoa(rc.Count)})
		}
		return out
	default:
		return [][]string{{"average_length", strconv.Itoa(q.AverageLength)}}
	}
}
