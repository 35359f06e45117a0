package services

import (
	"math/rand/v2"
	"sync"

	"github.com/soaringjerry/surveyor/internal/models"
)

// MockResponseTotal is the response count every mocked summary reports.
const MockResponseTotal = 100

type OptionCount struct {
	Option string `json:"option"`
	Count  int    `json:"count"`
}

type RatingCount struct {
	Rating int `json:"rating"`
	Count  int `json:"count"`
}

type QuestionResult struct {
	ID            string              `json:"id"`
	Type          models.QuestionType `json:"type"`
	Text          string              `json:"text"`
	Options       []OptionCount       `json:"options,omitempty"`
	Ratings       []RatingCount       `json:"ratings,omitempty"`
	AverageLength int                 `json:"average_length,omitempty"`
}

type ResultsSummary struct {
	SurveyID       string           `json:"survey_id"`
	Title          string           `json:"title"`
	TotalResponses int              `json:"total_responses"`
	Questions      []QuestionResult `json:"questions"`
}

// ResultsService fabricates aggregate results; no responses are collected.
type ResultsService struct {
	reader SurveyReader

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewResultsService uses rnd for the mocked counts; nil picks a randomly seeded source.
func NewResultsService(reader SurveyReader, rnd *rand.Rand) *ResultsService {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &ResultsService{reader: reader, rnd: rnd}
}

func (s *ResultsService) Summary(surveyID string) (*ResultsSummary, error) {
	sv, err := mustGetSurvey(s.reader, surveyID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := &ResultsSummary{
		SurveyID:       sv.ID,
		Title:          sv.Title,
		TotalResponses: MockResponseTotal,
		Questions:      make([]QuestionResult, 0, len(sv.Questions)),
	}
	for _, q := range sv.Questions {
		qr := QuestionResult{ID: q.ID, Type: q.Type, Text: q.Text}
		switch q.Type {
		case models.QuestionMultipleChoice:
			qr.Options = make([]OptionCount, 0, len(q.Options))
			for _, opt := range q.Options {
				qr.Options = append(qr.Options, OptionCount{Option: opt, Count: s.rnd.IntN(100)})
			}
		case models.QuestionRating:
			qr.Ratings = make([]RatingCount, 0, models.RatingMax)
			for r := models.RatingMin; r <= models.RatingMax; r++ {
				qr.Ratings = append(qr.Ratings, RatingCount{Rating: r, Count: s.rnd.IntN(100)})
			}
		default:
			qr.AverageLength = s.rnd.IntN(100) + 20
		}
		out.Questions = append(out.Questions, qr)
	}
	return out, nil
}
