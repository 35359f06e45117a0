package api

import (
	"sync"

	"github.com/soaringjerry/surveyor/internal/models"
	"github.com/soaringjerry/surveyor/internal/services"
)

// memoryStore holds a services.SurveyState and applies every mutation through
// services.Reduce under a single lock, so writes are serialised.
type memoryStore struct {
	mu    sync.RWMutex
	state services.SurveyState
}

// NewMemoryStore returns an empty in-memory survey store.
func NewMemoryStore() services.SurveyStore {
	return newMemoryStore()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{state: services.SurveyState{Surveys: []models.Survey{}}}
}

// NewSeededMemoryStore returns a store holding the fixture surveys.
func NewSeededMemoryStore() services.SurveyStore {
	s := newMemoryStore()
	s.state.Surveys = services.SeedSurveys()
	return s
}

func (s *memoryStore) dispatch(a services.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := services.Reduce(s.state, a)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *memoryStore) snapshot() services.SurveyState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *memoryStore) ListSurveys() ([]models.Survey, error) {
	return services.List(s.snapshot()), nil
}

func (s *memoryStore) GetSurvey(id string) (*models.Survey, error) {
	sv, err := services.Get(s.snapshot(), id)
	if err != nil {
		if services.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &sv, nil
}

func (s *memoryStore) CreateSurvey(sv models.Survey) error {
	return s.dispatch(services.AddSurvey{Survey: sv})
}

func (s *memoryStore) UpdateSurvey(sv models.Survey) error {
	return s.dispatch(services.UpdateSurvey{Survey: sv})
}

func (s *memoryStore) DeleteSurvey(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.state.Surveys)
	next, err := services.Reduce(s.state, services.DeleteSurvey{ID: id})
	if err != nil {
		return false, err
	}
	s.state = next
	return len(next.Surveys) < before, nil
}

func (s *memoryStore) SetExpiration(id, date string) error {
	return s.dispatch(services.SetExpirationDate{ID: id, Date: date})
}

func (s *memoryStore) ReplaceSurveys(surveys []models.Survey) error {
	return s.dispatch(services.SetSurveys{Surveys: surveys})
}

func (s *memoryStore) SetCurrent(id string) error {
	return s.dispatch(services.SetCurrentSurvey{ID: id})
}

func (s *memoryStore) Current() (*models.Survey, error) {
	sv, ok := services.Current(s.snapshot())
	if !ok {
		return nil, nil
	}
	return &sv, nil
}

var _ services.SurveyStore = (*memoryStore)(nil)
