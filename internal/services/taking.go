package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/soaringjerry/surveyor/internal/models"
)

var (
	// ErrNoQuestions is returned when a taking session is requested for a survey without questions.
	ErrNoQuestions = errors.New("survey has no questions")
	// ErrPreviewReadOnly rejects answers in preview mode.
	ErrPreviewReadOnly = errors.New("preview is read-only")
	// ErrSessionClosed rejects answers after the survey was submitted.
	ErrSessionClosed = errors.New("survey already submitted")
)

// Answer is a tagged union keyed by question type. Only the field matching Kind is meaningful.
type Answer struct {
	Kind   models.QuestionType `json:"kind"`
	Text   string              `json:"text,omitempty"`
	Choice string              `json:"choice,omitempty"`
	Rating int                 `json:"rating,omitempty"`
}

func TextAnswer(s string) Answer   { return Answer{Kind: models.QuestionText, Text: s} }
func ChoiceAnswer(s string) Answer { return Answer{Kind: models.QuestionMultipleChoice, Choice: s} }
func RatingAnswer(n int) Answer    { return Answer{Kind: models.QuestionRating, Rating: n} }

// Value returns the scalar held by the answer: a string for text and choice, an int for rating.
func (a Answer) Value() any {
	switch a.Kind {
	case models.QuestionMultipleChoice:
		return a.Choice
	case models.QuestionRating:
		return a.Rating
	default:
		return a.Text
	}
}

func (a Answer) validateFor(q models.Question) error {
	if a.Kind != q.Type {
		return NewInvalidError(fmt.Sprintf("question %q expects a %s answer, got %s", q.ID, q.Type, a.Kind))
	}
	switch a.Kind {
	case models.QuestionRating:
		if a.Rating < models.RatingMin || a.Rating > models.RatingMax {
			return NewInvalidError(fmt.Sprintf("rating must be between %d and %d", models.RatingMin, models.RatingMax))
		}
	case models.QuestionMultipleChoice:
		for _, opt := range q.Options {
			if opt == a.Choice {
				return nil
			}
		}
		return NewInvalidError(fmt.Sprintf("%q is not an option of question %q", a.Choice, q.ID))
	}
	return nil
}

// Submission is what a finished session produces. It is handed to a SubmissionSink and not stored.
type Submission struct {
	SessionID   string            `json:"session_id"`
	SurveyID    string            `json:"survey_id"`
	Answers     map[string]Answer `json:"answers"`
	CompletedAt time.Time         `json:"completed_at"`
}

// SubmissionSink receives finished submissions.
type SubmissionSink interface {
	Submit(sub Submission)
}

// LogSink writes submissions to the log and drops them.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Submit(sub Submission) {
	if s.Logger == nil {
		return
	}
	values := make(map[string]any, len(sub.Answers))
	for qid, a := range sub.Answers {
		values[qid] = a.Value()
	}
	s.Logger.Info("survey completed",
		zap.String("session_id", sub.SessionID),
		zap.String("survey_id", sub.SurveyID),
		zap.Any("answers", values),
	)
}

// SessionView is the render model of a session at its current position.
type SessionView struct {
	SessionID string          `json:"session_id"`
	SurveyID  string          `json:"survey_id"`
	Title     string          `json:"title"`
	Index     int             `json:"index"`
	Total     int             `json:"total"`
	Question  models.Question `json:"question"`
	Answer    *Answer         `json:"answer,omitempty"`
	IsLast    bool            `json:"is_last"`
	CanGoBack bool            `json:"can_go_back"`
	ReadOnly  bool            `json:"read_only"`
	Completed bool            `json:"completed"`
}

// TakeSession walks a respondent through one survey. It keeps only the survey
// id and resolves the survey through the reader on every call, so edits and
// deletions made elsewhere are seen immediately.
type TakeSession struct {
	id       string
	surveyID string
	reader   SurveyReader
	preview  bool
	index    int
	answers  map[string]Answer
	done     bool
	now      func() time.Time
	touched  time.Time
}

// NewTakeSession starts a session at the first question.
func NewTakeSession(reader SurveyReader, surveyID string, preview bool) (*TakeSession, error) {
	sv, err := mustGetSurvey(reader, surveyID)
	if err != nil {
		return nil, err
	}
	if len(sv.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	return &TakeSession{
		surveyID: surveyID,
		reader:   reader,
		preview:  preview,
		answers:  map[string]Answer{},
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (t *TakeSession) ID() string       { return t.id }
func (t *TakeSession) SurveyID() string { return t.surveyID }
func (t *TakeSession) Preview() bool    { return t.preview }
func (t *TakeSession) Index() int       { return t.index }
func (t *TakeSession) Completed() bool  { return t.done }

// Answers returns a copy of the answers recorded so far.
func (t *TakeSession) Answers() map[string]Answer {
	out := make(map[string]Answer, len(t.answers))
	for k, v := range t.answers {
		out[k] = v
	}
	return out
}

// resolve loads the survey and keeps the index inside [0, N-1].
func (t *TakeSession) resolve() (models.Survey, error) {
	sv, err := mustGetSurvey(t.reader, t.surveyID)
	if err != nil {
		return models.Survey{}, err
	}
	n := len(sv.Questions)
	if n == 0 {
		return models.Survey{}, ErrNoQuestions
	}
	if t.index > n-1 {
		t.index = n - 1
	}
	return sv, nil
}

// Answer records a for the current question, replacing any earlier answer to it.
func (t *TakeSession) Answer(a Answer) error {
	if t.preview {
		return ErrPreviewReadOnly
	}
	if t.done {
		return ErrSessionClosed
	}
	sv, err := t.resolve()
	if err != nil {
		return err
	}
	q := sv.Questions[t.index]
	if err := a.validateFor(q); err != nil {
		return err
	}
	t.answers[q.ID] = a
	return nil
}

// Next advances one question. At the last question it finalises the session and
// returns the submission; a finished session returns (nil, nil).
func (t *TakeSession) Next() (*Submission, error) {
	if t.done {
		return nil, nil
	}
	sv, err := t.resolve()
	if err != nil {
		return nil, err
	}
	if t.index < len(sv.Questions)-1 {
		t.index++
		return nil, nil
	}
	t.done = true
	return &Submission{SessionID: t.id, SurveyID: t.surveyID, Answers: t.Answers(), CompletedAt: t.now()}, nil
}

// Previous moves back one question; it does nothing at the first question or after completion.
func (t *TakeSession) Previous() error {
	if t.done {
		return nil
	}
	if _, err := t.resolve(); err != nil {
		return err
	}
	if t.index > 0 {
		t.index--
	}
	return nil
}

// View renders the current position.
func (t *TakeSession) View() (*SessionView, error) {
	sv, err := t.resolve()
	if err != nil {
		return nil, err
	}
	q := sv.Questions[t.index]
	v := &SessionView{
		SessionID: t.id,
		SurveyID:  sv.ID,
		Title:     sv.Title,
		Index:     t.index,
		Total:     len(sv.Questions),
		Question:  q,
		IsLast:    t.index == len(sv.Questions)-1,
		CanGoBack: t.index > 0 && !t.done,
		ReadOnly:  t.preview,
		Completed: t.done,
	}
	if a, ok := t.answers[q.ID]; ok {
		v.Answer = &a
	}
	return v, nil
}

// TakingService keeps live sessions for the HTTP surface.
//
// Sessions idle for longer than the TTL are dropped, and at most maxLive are
// kept; starting one more evicts the least recently used.
type TakingService struct {
	reader  SurveyReader
	sink    SubmissionSink
	idGen   func() string
	now     func() time.Time
	ttl     time.Duration
	maxLive int

	mu       sync.Mutex
	sessions map[string]*TakeSession
}

const (
	DefaultSessionTTL      = 2 * time.Hour
	DefaultMaxLiveSessions = 10000
)

func NewTakingService(reader SurveyReader, sink SubmissionSink) *TakingService {
	if sink == nil {
		sink = LogSink{}
	}
	return &TakingService{
		reader:   reader,
		sink:     sink,
		idGen:    func() string { return shortID(16) },
		now:      func() time.Time { return time.Now().UTC() },
		ttl:      DefaultSessionTTL,
		maxLive:  DefaultMaxLiveSessions,
		sessions: map[string]*TakeSession{},
	}
}

// Live reports how many sessions are currently held.
func (s *TakingService) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.now())
	return len(s.sessions)
}

// Start opens a session for surveyID; preview sessions cannot record answers.
func (s *TakingService) Start(surveyID string, preview bool) (*SessionView, error) {
	sess, err := NewTakeSession(s.reader, surveyID, preview)
	if err != nil {
		return nil, err
	}
	sess.id = s.idGen()
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.pruneLocked(now)
	if s.maxLive > 0 && len(s.sessions) >= s.maxLive {
		s.evictOldestLocked()
	}
	sess.touched = now
	s.sessions[sess.id] = sess
	return sess.View()
}

// pruneLocked drops sessions idle past the TTL. s.mu must be held.
func (s *TakingService) pruneLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for id, sess := range s.sessions {
		if now.Sub(sess.touched) > s.ttl {
			delete(s.sessions, id)
		}
	}
}

func (s *TakingService) evictOldestLocked() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, sess := range s.sessions {
		if oldestID == "" || sess.touched.Before(oldest) {
			oldestID, oldest = id, sess.touched
		}
	}
	delete(s.sessions, oldestID)
}

// View returns the current render model of a session.
func (s *TakingService) View(sessionID string) (*SessionView, error) {
	var view *SessionView
	err := s.with(sessionID, func(sess *TakeSession) error {
		v, err := sess.View()
		view = v
		return err
	})
	return view, err
}

func (s *TakingService) Answer(sessionID string, a Answer) (*SessionView, error) {
	var view *SessionView
	err := s.with(sessionID, func(sess *TakeSession) error {
		if err := sess.Answer(a); err != nil {
			return err
		}
		v, err := sess.View()
		view = v
		return err
	})
	return view, err
}

// Next advances the session. When it completes the session is dropped and, unless
// it was a preview, the submission goes to the sink.
func (s *TakingService) Next(sessionID string) (*SessionView, *Submission, error) {
	var (
		view    *SessionView
		sub     *Submission
		preview bool
	)
	err := s.with(sessionID, func(sess *TakeSession) error {
		var err error
		preview = sess.Preview()
		sub, err = sess.Next()
		if err != nil {
			return err
		}
		view, err = sess.View()
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if sub != nil {
		if !preview {
			s.sink.Submit(*sub)
		}
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
	}
	return view, sub, nil
}

func (s *TakingService) Previous(sessionID string) (*SessionView, error) {
	var view *SessionView
	err := s.with(sessionID, func(sess *TakeSession) error {
		if err := sess.Previous(); err != nil {
			return err
		}
		v, err := sess.View()
		view = v
		return err
	})
	return view, err
}

func (s *TakingService) with(sessionID string, fn func(*TakeSession) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sess, ok := s.sessions[sessionID]
	if ok && s.ttl > 0 && now.Sub(sess.touched) > s.ttl {
		delete(s.sessions, sessionID)
		ok = false
	}
	if !ok {
		return NewNotFoundError("session not found")
	}
	sess.touched = now
	return fn(sess)
}
