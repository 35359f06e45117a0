package services

import "github.com/soaringjerry/surveyor/internal/models"

// SurveyReader is the read side of the survey store. Views resolve surveys
// through it by id each time they render.
type SurveyReader interface {
	ListSurveys() ([]models.Survey, error)
	GetSurvey(id string) (*models.Survey, error)
}

// SurveyStore owns the survey collection. GetSurvey returns (nil, nil) when
// the id is unknown, matching the other store lookups in this package.
type SurveyStore interface {
	SurveyReader
	CreateSurvey(s models.Survey) error
	UpdateSurvey(s models.Survey) error
	DeleteSurvey(id string) (bool, error)
	SetExpiration(id, date string) error
	ReplaceSurveys(surveys []models.Survey) error
	SetCurrent(id string) error
	Current() (*models.Survey, error)
}

// mustGetSurvey resolves id through r and converts a missing survey into a not_found error.
func mustGetSurvey(r SurveyReader, id string) (models.Survey, error) {
	s, err := r.GetSurvey(id)
	if err != nil {
		return models.Survey{}, err
	}
	if s == nil {
		return models.Survey{}, surveyNotFound(id)
	}
	return *s, nil
}
