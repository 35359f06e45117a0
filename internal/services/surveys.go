package services

import (
	"fmt"

	"github.com/soaringjerry/surveyor/internal/models"
)

// SurveyState is the full survey collection plus the current-selection pointer.
// It is treated as a value: Reduce never mutates its input.
type SurveyState struct {
	Surveys   []models.Survey `json:"surveys"`
	CurrentID string          `json:"current_id,omitempty"`
}

// Action is a single store mutation.
type Action interface {
	apply(SurveyState) (SurveyState, error)
}

type AddSurvey struct{ Survey models.Survey }

type UpdateSurvey struct{ Survey models.Survey }

type DeleteSurvey struct{ ID string }

type SetExpirationDate struct {
	ID   string
	Date string
}

// SetSurveys replaces the whole collection.
type SetSurveys struct{ Surveys []models.Survey }

// SetCurrentSurvey moves the selection pointer. An empty ID clears it.
type SetCurrentSurvey struct{ ID string }

// Reduce applies action to state and returns the resulting state. On error the
// returned state equals the input.
func Reduce(state SurveyState, action Action) (SurveyState, error) {
	if action == nil {
		return state, NewInvalidError("action required")
	}
	return action.apply(state)
}

// List returns the surveys in insertion order as deep copies.
func List(state SurveyState) []models.Survey {
	out := make([]models.Survey, 0, len(state.Surveys))
	for _, s := range state.Surveys {
		out = append(out, s.Clone())
	}
	return out
}

// Get returns the survey with the given id or a not_found error.
func Get(state SurveyState, id string) (models.Survey, error) {
	if i := indexOf(state.Surveys, id); i >= 0 {
		return state.Surveys[i].Clone(), nil
	}
	return models.Survey{}, surveyNotFound(id)
}

// Current returns the selected survey, if any is selected and still present.
func Current(state SurveyState) (models.Survey, bool) {
	if state.CurrentID == "" {
		return models.Survey{}, false
	}
	s, err := Get(state, state.CurrentID)
	return s, err == nil
}

func (a AddSurvey) apply(state SurveyState) (SurveyState, error) {
	if indexOf(state.Surveys, a.Survey.ID) >= 0 {
		return state, NewConflictError(fmt.Sprintf("survey %q already exists", a.Survey.ID))
	}
	next := state
	next.Surveys = make([]models.Survey, len(state.Surveys), len(state.Surveys)+1)
	copy(next.Surveys, state.Surveys)
	next.Surveys = append(next.Surveys, a.Survey.Clone())
	return next, nil
}

func (a UpdateSurvey) apply(state SurveyState) (SurveyState, error) {
	i := indexOf(state.Surveys, a.Survey.ID)
	if i < 0 {
		return state, surveyNotFound(a.Survey.ID)
	}
	next := state
	next.Surveys = append([]models.Survey(nil), state.Surveys...)
	next.Surveys[i] = a.Survey.Clone()
	return next, nil
}

func (a DeleteSurvey) apply(state SurveyState) (SurveyState, error) {
	i := indexOf(state.Surveys, a.ID)
	if i < 0 {
		return state, nil
	}
	next := state
	next.Surveys = make([]models.Survey, 0, len(state.Surveys)-1)
	next.Surveys = append(next.Surveys, state.Surveys[:i]...)
	next.Surveys = append(next.Surveys, state.Surveys[i+1:]...)
	if next.CurrentID == a.ID {
		next.CurrentID = ""
	}
	return next, nil
}

func (a SetExpirationDate) apply(state SurveyState) (SurveyState, error) {
	i := indexOf(state.Surveys, a.ID)
	if i < 0 {
		return state, surveyNotFound(a.ID)
	}
	next := state
	next.Surveys = append([]models.Survey(nil), state.Surveys...)
	next.Surveys[i].ExpirationDate = a.Date
	return next, nil
}

func (a SetSurveys) apply(state SurveyState) (SurveyState, error) {
	seen := make(map[string]struct{}, len(a.Surveys))
	next := state
	next.Surveys = make([]models.Survey, 0, len(a.Surveys))
	for _, s := range a.Surveys {
		if _, dup := seen[s.ID]; dup {
			return state, NewConflictError(fmt.Sprintf("survey %q listed twice", s.ID))
		}
		seen[s.ID] = struct{}{}
		next.Surveys = append(next.Surveys, s.Clone())
	}
	if indexOf(next.Surveys, next.CurrentID) < 0 {
		next.CurrentID = ""
	}
	return next, nil
}

func (a SetCurrentSurvey) apply(state SurveyState) (SurveyState, error) {
	if a.ID != "" && indexOf(state.Surveys, a.ID) < 0 {
		return state, surveyNotFound(a.ID)
	}
	next := state
	next.CurrentID = a.ID
	return next, nil
}

func indexOf(surveys []models.Survey, id string) int {
	if id == "" {
		return -1
	}
	for i := range surveys {
		if surveys[i].ID == id {
			return i
		}
	}
	return -1
}

func surveyNotFound(id string) error {
	return NewNotFoundError(fmt.Sprintf("survey %q not found", id))
}
