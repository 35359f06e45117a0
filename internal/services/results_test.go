package services

import (
	"math/rand/v2"
	"testing"

	"github.com/soaringjerry/surveyor/internal/models"
)

func TestResultsSummaryShape(t *testing.T) {
	svc := NewResultsService(newStateStore(SeedSurveys()...), rand.New(rand.NewPCG(1, 2)))
	sum, err := svc.Summary("1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalResponses != MockResponseTotal || sum.Title != "Customer Satisfaction Survey" {
		t.Fatalf("unexpected header: %+v", sum)
	}
	if len(sum.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(sum.Questions))
	}
	for _, q := range sum.Questions {
		switch q.Type {
		case models.QuestionRating:
			if len(q.Ratings) != 5 {
				t.Fatalf("expected 5 rating buckets, got %d", len(q.Ratings))
			}
			for i, rc := range q.Ratings {
				if rc.Rating != i+1 || rc.Count < 0 || rc.Count >= 100 {
					t.Fatalf("bad rating bucket %+v", rc)
				}
			}
		case models.QuestionMultipleChoice:
			if len(q.Options) != 5 || q.Options[0].Option != "Very likely" {
				t.Fatalf("unexpected options %+v", q.Options)
			}
			for _, oc := range q.Options {
				if oc.Count < 0 || oc.Count >= 100 {
					t.Fatalf("count out of range %+v", oc)
				}
			}
		case models.QuestionText:
			if q.AverageLength < 20 || q.AverageLength >= 120 {
				t.Fatalf("average length out of range: %d", q.AverageLength)
			}
		}
	}
}

func TestResultsSummaryDeterministicWithSeed(t *testing.T) {
	store := newStateStore(SeedSurveys()...)
	a, _ := NewResultsService(store, rand.New(rand.NewPCG(7, 7))).Summary("2")
	b, _ := NewResultsService(store, rand.New(rand.NewPCG(7, 7))).Summary("2")
	if a.Questions[0].Ratings[0] != b.Questions[0].Ratings[0] || a.Questions[2].AverageLength != b.Questions[2].AverageLength {
		t.Fatalf("same seed should give same summary")
	}
}

func TestResultsSummaryMissing(t *testing.T) {
	svc := NewResultsService(newStateStore(), nil)
	if _, err := svc.Summary("x"); !IsNotFound(err) {
		t.Fatalf("expected not_found, got %v", err)
	}
}
