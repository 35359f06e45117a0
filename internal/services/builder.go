package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/soaringjerry/surveyor/internal/models"
)

// OptionSlots is the number of option inputs the builder offers per multiple-choice question.
const OptionSlots = 4

// QuestionForm is one question as authored in the builder.
type QuestionForm struct {
	ID      string              `json:"id"`
	Type    models.QuestionType `json:"type" validate:"required,oneof=text multiple_choice rating"`
	Text    string              `json:"text" validate:"required"`
	Options []string            `json:"options,omitempty"`
}

// SurveyForm is the builder's authoring form.
type SurveyForm struct {
	Title          string         `json:"title" validate:"required"`
	Questions      []QuestionForm `json:"questions" validate:"required,min=1,dive"`
	ExpirationDate string         `json:"expiration_date,omitempty"`
}

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validateForm runs the validator and converts its errors into a ValidationError
// whose messages come from messageFor.
func validateForm(form any, messageFor func(validator.FieldError) string) error {
	err := formValidator.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewInvalidError(err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		path := fe.Namespace()
		if i := strings.IndexByte(path, '.'); i >= 0 {
			path = path[i+1:]
		}
		if _, seen := fields[path]; !seen {
			fields[path] = messageFor(fe)
		}
	}
	return &ValidationError{Fields: fields}
}

// ValidateSurveyForm checks form against the builder schema.
func ValidateSurveyForm(form SurveyForm) error {
	return validateForm(form, surveyFieldMessage)
}

func surveyFieldMessage(fe validator.FieldError) string {
	switch fe.StructField() {
	case "Title":
		return "Survey title is required"
	case "Questions":
		return "At least one question is required"
	case "Text":
		return "Question text is required"
	case "Type":
		return "Question type must be one of text, multiple_choice, rating"
	}
	return fe.Error()
}

// NewSurveyForm returns the blank form the builder opens with: no title and a
// single empty text question.
func NewSurveyForm(ids IDGenerator) SurveyForm {
	return SurveyForm{Questions: []QuestionForm{{ID: ids.NewID(), Type: models.QuestionText}}}
}

// FormFromSurvey pre-populates the builder for editing s. Multiple-choice
// questions get at least OptionSlots option inputs.
func FormFromSurvey(s models.Survey) SurveyForm {
	form := SurveyForm{Title: s.Title, ExpirationDate: s.ExpirationDate}
	form.Questions = make([]QuestionForm, 0, len(s.Questions))
	for _, q := range s.Questions {
		qf := QuestionForm{ID: q.ID, Type: q.Type, Text: q.Text}
		if q.Type == models.QuestionMultipleChoice {
			qf.Options = append([]string(nil), q.Options...)
			for len(qf.Options) < OptionSlots {
				qf.Options = append(qf.Options, "")
			}
		}
		form.Questions = append(form.Questions, qf)
	}
	return form
}

// AddQuestion appends a blank text question.
func (f *SurveyForm) AddQuestion(id string) {
	f.Questions = append(f.Questions, QuestionForm{ID: id, Type: models.QuestionText})
}

// RemoveQuestion drops the question at index i. The last remaining question cannot be removed.
func (f *SurveyForm) RemoveQuestion(i int) error {
	if i < 0 || i >= len(f.Questions) {
		return NewInvalidError("question index out of range")
	}
	if len(f.Questions) == 1 {
		return NewInvalidError("a survey needs at least one question")
	}
	f.Questions = append(f.Questions[:i:i], f.Questions[i+1:]...)
	return nil
}

// BuilderService turns builder forms into store mutations.
type BuilderService struct {
	store  SurveyStore
	ids    IDGenerator
	logger *zap.Logger
}

func NewBuilderService(store SurveyStore, ids IDGenerator, logger *zap.Logger) *BuilderService {
	if ids == nil {
		ids = UUIDGenerator{Length: 8}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BuilderService{store: store, ids: ids, logger: logger}
}

// Load returns the edit-mode form for the survey with the given id.
func (s *BuilderService) Load(id string) (SurveyForm, error) {
	sv, err := mustGetSurvey(s.store, id)
	if err != nil {
		return SurveyForm{}, err
	}
	return FormFromSurvey(sv), nil
}

// Submit validates form and writes it to the store. With a non-empty editID the
// existing survey is replaced in place; otherwise a new survey is created under a
// freshly generated id. Nothing is written when validation fails.
func (s *BuilderService) Submit(editID string, form SurveyForm) (*models.Survey, error) {
	if err := ValidateSurveyForm(form); err != nil {
		return nil, err
	}
	survey := s.toSurvey(form)
	if editID != "" {
		survey.ID = editID
		if err := s.store.UpdateSurvey(survey); err != nil {
			s.logger.Warn("survey update rejected", zap.String("survey_id", editID), zap.Error(err))
			return nil, err
		}
		if form.ExpirationDate != "" {
			if err := s.store.SetExpiration(editID, form.ExpirationDate); err != nil {
				return nil, err
			}
		}
		s.logger.Info("survey updated", zap.String("survey_id", editID), zap.Int("questions", len(survey.Questions)))
		return &survey, nil
	}
	survey.ID = s.ids.NewID()
	if err := s.store.CreateSurvey(survey); err != nil {
		return nil, err
	}
	s.logger.Info("survey created", zap.String("survey_id", survey.ID), zap.Int("questions", len(survey.Questions)))
	return &survey, nil
}

func (s *BuilderService) toSurvey(form SurveyForm) models.Survey {
	out := models.Survey{Title: form.Title, ExpirationDate: form.ExpirationDate}
	out.Questions = make([]models.Question, 0, len(form.Questions))
	seen := make(map[string]struct{}, len(form.Questions))
	for _, qf := range form.Questions {
		id := strings.TrimSpace(qf.ID)
		if _, dup := seen[id]; id == "" || dup {
			id = s.ids.NewID()
		}
		seen[id] = struct{}{}
		q := models.Question{ID: id, Type: qf.Type, Text: qf.Text}
		if qf.Type == models.QuestionMultipleChoice {
			for _, opt := range qf.Options {
				if opt = strings.TrimSpace(opt); opt != "" {
					q.Options = append(q.Options, opt)
				}
			}
		}
		out.Questions = append(out.Questions, q)
	}
	return out
}
