package services

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/soaringjerry/surveyor/internal/models"
)

func TestValidateSurveyFormMessages(t *testing.T) {
	err := ValidateSurveyForm(SurveyForm{Questions: []QuestionForm{{ID: "q", Type: models.QuestionText}}})
	ve, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := map[string]string{
		"title":             "Survey title is required",
		"questions[0].text": "Question text is required",
	}
	if diff := cmp.Diff(want, ve.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateSurveyFormNeedsQuestions(t *testing.T) {
	for _, qs := range [][]QuestionForm{nil, {}} {
		err := ValidateSurveyForm(SurveyForm{Title: "T", Questions: qs})
		ve, ok := AsValidationError(err)
		if !ok {
			t.Fatalf("expected validation error, got %v", err)
		}
		if ve.Fields["questions"] != "At least one question is required" {
			t.Fatalf("unexpected fields: %+v", ve.Fields)
		}
	}
}

func TestValidateSurveyFormRejectsUnknownType(t *testing.T) {
	err := ValidateSurveyForm(SurveyForm{Title: "T", Questions: []QuestionForm{{Type: "essay", Text: "x"}}})
	ve, ok := AsValidationError(err)
	if !ok || ve.Fields["questions[0].type"] == "" {
		t.Fatalf("expected type error, got %v", err)
	}
}

func TestBuilderSubmitCreates(t *testing.T) {
	store := newStateStore(SeedSurveys()...)
	svc := NewBuilderService(store, &CounterGenerator{Prefix: "n"}, nil)
	form := SurveyForm{
		Title: "Lunch",
		Questions: []QuestionForm{
			{ID: "q1", Type: models.QuestionMultipleChoice, Text: "Where?", Options: []string{" Cafe ", "", "Park", ""}},
			{ID: "q1", Type: models.QuestionText, Text: "Why?", Options: []string{"ignored"}},
		},
	}
	sv, err := svc.Submit("", form)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	want := models.Survey{
		ID:    "n2",
		Title: "Lunch",
		Questions: []models.Question{
			{ID: "q1", Type: models.QuestionMultipleChoice, Text: "Where?", Options: []string{"Cafe", "Park"}},
			{ID: "n1", Type: models.QuestionText, Text: "Why?"},
		},
	}
	if diff := cmp.Diff(want, *sv); diff != "" {
		t.Fatalf("survey mismatch (-want +got):\n%s", diff)
	}
	list, _ := store.ListSurveys()
	if len(list) != 3 || list[2].ID != "n2" {
		t.Fatalf("expected new survey appended, got %d surveys", len(list))
	}
}

func TestBuilderSubmitInvalidWritesNothing(t *testing.T) {
	store := newStateStore(SeedSurveys()...)
	svc := NewBuilderService(store, &CounterGenerator{}, nil)
	if _, err := svc.Submit("", SurveyForm{}); err == nil {
		t.Fatalf("expected validation error")
	}
	if len(store.state.Surveys) != 2 {
		t.Fatalf("store changed on invalid submit")
	}
}

func TestBuilderEditRoundTrip(t *testing.T) {
	store := newStateStore(SeedSurveys()...)
	svc := NewBuilderService(store, &CounterGenerator{Prefix: "n"}, nil)
	form, err := svc.Load("2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if form.Title != "Employee Engagement Survey" || len(form.Questions) != 3 {
		t.Fatalf("unexpected form: %+v", form)
	}
	if got := form.Questions[1].Options; len(got) != OptionSlots {
		t.Fatalf("expected %d option slots, got %v", OptionSlots, got)
	}
	form.Title = "Engagement 2"
	form.ExpirationDate = "2031-05-01"
	if err := form.RemoveQuestion(2); err != nil {
		t.Fatalf("remove: %v", err)
	}
	sv, err := svc.Submit("2", form)
	if err != nil {
		t.Fatalf("submit edit: %v", err)
	}
	if sv.ID != "2" {
		t.Fatalf("edit must keep id, got %q", sv.ID)
	}
	stored, _ := store.GetSurvey("2")
	if stored.Title != "Engagement 2" || len(stored.Questions) != 2 || stored.ExpirationDate != "2031-05-01" {
		t.Fatalf("unexpected stored survey: %+v", stored)
	}
	if store.state.Surveys[1].ID != "2" {
		t.Fatalf("edit moved survey")
	}
}

func TestBuilderEditDeletedSurveyIsNotFound(t *testing.T) {
	store := newStateStore(SeedSurveys()...)
	svc := NewBuilderService(store, &CounterGenerator{}, nil)
	form, err := svc.Load("1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := store.DeleteSurvey("1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Submit("1", form); !IsNotFound(err) {
		t.Fatalf("expected not_found, got %v", err)
	}
	if len(store.state.Surveys) != 1 {
		t.Fatalf("stale edit must not resurrect the survey")
	}
	if _, err := svc.Load("1"); !IsNotFound(err) {
		t.Fatalf("expected not_found on load, got %v", err)
	}
}

func TestSurveyFormAddRemoveQuestion(t *testing.T) {
	form := NewSurveyForm(IDFunc(func() string { return "first" }))
	if len(form.Questions) != 1 || form.Questions[0].Type != models.QuestionText {
		t.Fatalf("unexpected blank form: %+v", form)
	}
	if err := form.RemoveQuestion(0); err == nil {
		t.Fatalf("expected the last question to be kept")
	}
	form.AddQuestion("second")
	form.AddQuestion("third")
	if err := form.RemoveQuestion(1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	ids := []string{form.Questions[0].ID, form.Questions[1].ID}
	if diff := cmp.Diff([]string{"first", "third"}, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	if err := form.RemoveQuestion(5); err == nil {
		t.Fatalf("expected out of range error")
	}
}
