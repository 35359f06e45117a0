package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/soaringjerry/surveyor/internal/middleware"
	"github.com/soaringjerry/surveyor/internal/models"
	"github.com/soaringjerry/surveyor/internal/services"
	"github.com/soaringjerry/surveyor/internal/utils"
)

// Options configures a Router. Zero values pick in-memory defaults.
type Options struct {
	Store      services.SurveyStore
	Users      services.UserDirectory
	Signer     *middleware.Signer
	Logger     *zap.Logger
	IDs        services.IDGenerator
	Rand       *rand.Rand
	PublicHost string
	TokenTTL   time.Duration
	Locales    []string
	Commit     string
	BuildTime  string
}

type Router struct {
	store   services.SurveyStore
	builder *services.BuilderService
	taking  *services.TakingService
	deploy  *services.DeployService
	results *services.ResultsService
	auth    *services.AuthService
	signer  *middleware.Signer
	logger  *zap.Logger
	locales []string
	commit  string
	built   string

	sessMu   sync.RWMutex
	sessions map[string]*services.AuthSession // keyed by token
}

func NewRouter(opts Options) *Router {
	if opts.Store == nil {
		opts.Store = NewSeededMemoryStore()
	}
	if opts.Users == nil {
		opts.Users = services.NewMemoryUsers()
	}
	if opts.Signer == nil {
		opts.Signer = middleware.NewSigner("", "surveyor")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.Locales) == 0 {
		opts.Locales = []string{"en", "zh"}
	}
	return &Router{
		store:    opts.Store,
		builder:  services.NewBuilderService(opts.Store, opts.IDs, opts.Logger),
		taking:   services.NewTakingService(opts.Store, services.LogSink{Logger: opts.Logger}),
		deploy:   services.NewDeployService(opts.Store, opts.PublicHost),
		results:  services.NewResultsService(opts.Store, opts.Rand),
		auth:     services.NewAuthService(opts.Users, opts.Signer.Sign, opts.TokenTTL),
		signer:   opts.Signer,
		logger:   opts.Logger,
		locales:  opts.Locales,
		commit:   opts.Commit,
		built:    opts.BuildTime,
		sessions: map[string]*services.AuthSession{},
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	authed := func(h http.HandlerFunc) http.Handler { return middleware.RequireAuth(h) }

	mux.HandleFunc("GET /health", rt.handleHealth)
	mux.HandleFunc("GET /version", rt.handleVersion)

	mux.HandleFunc("POST /api/auth/register", rt.handleRegister)
	mux.HandleFunc("POST /api/auth/login", rt.handleLogin)
	mux.Handle("POST /api/auth/logout", authed(rt.handleLogout))
	mux.Handle("GET /api/auth/me", authed(rt.handleMe))

	mux.HandleFunc("GET /api/surveys", rt.handleListSurveys)
	mux.Handle("POST /api/surveys", authed(rt.handleCreateSurvey))
	mux.HandleFunc("GET /api/surveys/{id}", rt.handleGetSurvey)
	mux.Handle("GET /api/surveys/{id}/form", authed(rt.handleEditForm))
	mux.Handle("PUT /api/surveys/{id}", authed(rt.handleUpdateSurvey))
	mux.Handle("DELETE /api/surveys/{id}", authed(rt.handleDeleteSurvey))
	mux.Handle("PUT /api/surveys/{id}/expiration", authed(rt.handleSetExpiration))
	mux.Handle("POST /api/surveys/{id}/deploy", authed(rt.handleDeploy))
	mux.Handle("GET /api/surveys/{id}/results", authed(rt.handleResults))
	mux.Handle("GET /api/surveys/{id}/results.csv", authed(rt.handleResultsCSV))
	mux.HandleFunc("POST /api/surveys/{id}/sessions", rt.handleStartSession)

	mux.HandleFunc("GET /api/current-survey", rt.handleGetCurrent)
	mux.Handle("PUT /api/current-survey", authed(rt.handleSetCurrent))

	mux.HandleFunc("GET /api/sessions/{sid}", rt.handleSessionView)
	mux.HandleFunc("POST /api/sessions/{sid}/answer", rt.handleSessionAnswer)
	mux.HandleFunc("POST /api/sessions/{sid}/next", rt.handleSessionNext)
	mux.HandleFunc("POST /api/sessions/{sid}/previous", rt.handleSessionPrevious)
}

// Handler returns a mux with every route registered, wrapped with auth and locale negotiation.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	rt.Register(mux)
	return middleware.Chain(mux,
		middleware.Locale(rt.locales),
		middleware.WithAuth(rt.signer, rt.tokenActive),
	)
}

func (rt *Router) tokenActive(token string) bool {
	rt.sessMu.RLock()
	defer rt.sessMu.RUnlock()
	_, ok := rt.sessions[token]
	return ok
}

func (rt *Router) remember(sess *services.AuthSession) {
	rt.sessMu.Lock()
	rt.sessions[sess.Token] = sess
	rt.sessMu.Unlock()
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"name":       "Surveyor API",
		"locale":     locale,
		"msg":        utils.T(locale, "health.ok"),
		"commit":     rt.commit,
		"build_time": rt.built,
	})
}

func (rt *Router) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"commit": rt.commit, "build_time": rt.built})
}

// --- auth ---

func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	var form services.RegisterForm
	if !decodeBody(w, r, &form) {
		return
	}
	sess, err := rt.auth.Register(&services.AuthSession{}, form)
	if err != nil {
		rt.fail(w, r, err, "")
		return
	}
	rt.remember(sess)
	rt.logger.Info("user registered", zap.String("user_id", sess.User.ID))
	writeJSON(w, http.StatusCreated, sess)
}

func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form services.LoginForm
	if !decodeBody(w, r, &form) {
		return
	}
	sess, err := rt.auth.Login(&services.AuthSession{}, form)
	if err != nil {
		rt.fail(w, r, err, "")
		return
	}
	rt.remember(sess)
	writeJSON(w, http.StatusOK, sess)
}

func (rt *Router) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.TokenFromContext(r.Context())
	rt.sessMu.Lock()
	if sess, ok := rt.sessions[token]; ok {
		rt.auth.Logout(sess)
		delete(rt.sessions, token)
	}
	rt.sessMu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, claims.User())
}

// --- surveys ---

type surveySummary struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	QuestionCount  int    `json:"question_count"`
	ExpirationDate string `json:"expiration_date,omitempty"`
	Deployed       bool   `json:"deployed"`
}

func (rt *Router) handleListSurveys(w http.ResponseWriter, r *http.Request) {
	surveys, err := rt.store.ListSurveys()
	if err != nil {
		rt.fail(w, r, err, "")
		return
	}
	out := make([]surveySummary, 0, len(surveys))
	for _, sv := range surveys {
		out = append(out, surveySummary{
			ID:             sv.ID,
			Title:          sv.Title,
			QuestionCount:  len(sv.Questions),
			ExpirationDate: sv.ExpirationDate,
			Deployed:       rt.deploy.IsDeployed(sv.ID),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"surveys": out})
}

func (rt *Router) handleGetSurvey(w http.ResponseWriter, r *http.Request) {
	sv, ok := rt.lookup(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sv)
}

func (rt *Router) handleEditForm(w http.ResponseWriter, r *http.Request) {
	if !rt.canAuthor(w, r) {
		return
	}
	form, err := rt.builder.Load(r.PathValue("id"))
	if err != nil {
		rt.fail(w, r, err, "survey.not_found")
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (rt *Router) handleCreateSurvey(w http.ResponseWriter, r *http.Request) {
	if !rt.canAuthor(w, r) {
		return
	}
	var form services.SurveyForm
	if !decodeBody(w, r, &form) {
		return
	}
	sv, err := rt.builder.Submit("", form)
	if err != nil {
		rt.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, sv)
}

func (rt *Router) handleUpdateSurvey(w http.ResponseWriter, r *http.Request) {
	if !rt.canAuthor(w, r) {
		return
	}
	var form services.SurveyForm
	if !decodeBody(w, r, &form) {
		return
	}
	sv, err := rt.builder.Submit(r.PathValue("id"), form)
	if err != nil {
		rt.fail(w, r, err, "survey.not_found")
		return
	}
	writeJSON(w, http.StatusOK, sv)
}

// DELETE /api/surveys/{id}?confirm=true. Without confirm nothing is removed.
func (rt *Router) handleDeleteSurvey(w http.ResponseWriter, r *http.Request) {
	if !rt.canAuthor(w, r) {
		return
	}
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if !confirmed {
		writeMessage(w, http.StatusConflict, utils.T(middleware.LocaleFromContext(r.Context()), "survey.confirm_delete"))
		return
	}
	id := r.PathValue("id")
	removed, err := rt.store.DeleteSurvey(id)
	if err != nil {
		rt.fail(w, r, err, "")
		return
	}
	if removed {
		rt.deploy.Forget(id)
		rt.logger.Info("survey deleted", zap.String("survey_id", id))
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "removed": removed})
}

func (rt *Router) handleSetExpiration(w http.ResponseWriter, r *http.Request) {
	if !rt.canAuthor(w, r) {
		return
	}
	var body struct {
		Date string `json:"date"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	id := r.PathValue("id")
	if err := rt.store.SetExpiration(id, body.Date); err != nil {
		rt.fail(w, r, err, "survey.not_found")
		return
	}
	sv, ok := rt.lookup(w, r, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sv)
}

func (rt *Router) handleDeploy(w http.ResponseWriter, r *http.Request) {
	if !rt.canAuthor(w, r) {
		return
	}
	d, err := rt.deploy.Deploy(r.PathValue("id"))
	if err != nil {
		rt.fail(w, r, err, "survey.not_found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (rt *Router) handleResults(w http.ResponseWriter, r *http.Request) {
	if !rt.canAuthor(w, r) {
		return
	}
	sum, err := rt.results.Summary(r.PathValue("id"))
	if err != nil {
		rt.fail(w, r, err, "survey.not_found")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (rt *Router) handleResultsCSV(w http.ResponseWriter, r *http.Request) {
	if !rt.canAuthor(w, r) {
		return
	}
	id := r.PathValue("id")
	sum, err := rt.results.Summary(id)
	if err != nil {
		rt.fail(w, r, err, "survey.not_found")
		return
	}
	b, err := services.ExportResultsCSV(sum)
	if err != nil {
		rt.fail(w, r, err, "")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "results-"+id+".csv"))
	_, _ = w.Write(b)
}

func (rt *Router) handleGetCurrent(w http.ResponseWriter, r *http.Request) {
	sv, err := rt.store.Current()
	if err != nil {
		rt.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"survey": sv})
}

func (rt *Router) handleSetCurrent(w http.ResponseWriter, r *http.Request) {
	if !rt.canAuthor(w, r) {
		return
	}
	var body struct {
		ID string `json:"id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := rt.store.SetCurrent(body.ID); err != nil {
		rt.fail(w, r, err, "survey.not_found")
		return
	}
	rt.handleGetCurrent(w, r)
}

// --- taking ---

func (rt *Router) handleStartSession(w http.ResponseWriter, r *http.Request) {
	preview, _ := strconv.ParseBool(r.URL.Query().Get("preview"))
	view, err := rt.taking.Start(r.PathValue("id"), preview)
	if err != nil {
		rt.fail(w, r, err, "survey.not_found")
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (rt *Router) handleSessionView(w http.ResponseWriter, r *http.Request) {
	view, err := rt.taking.View(r.PathValue("sid"))
	if err != nil {
		rt.fail(w, r, err, "session.not_found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// POST /api/sessions/{sid}/answer
// { "value": "text" | "option" | 1..5 }, read according to the current question type.
func (rt *Router) handleSessionAnswer(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("sid")
	var body struct {
		Value json.RawMessage `json:"value"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	view, err := rt.taking.View(sid)
	if err != nil {
		rt.fail(w, r, err, "session.not_found")
		return
	}
	ans, err := decodeAnswer(view.Question.Type, body.Value)
	if err != nil {
		rt.fail(w, r, err, "")
		return
	}
	view, err = rt.taking.Answer(sid, ans)
	if err != nil {
		rt.fail(w, r, err, "session.not_found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) handleSessionNext(w http.ResponseWriter, r *http.Request) {
	view, sub, err := rt.taking.Next(r.PathValue("sid"))
	if err != nil {
		rt.fail(w, r, err, "session.not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"view": view, "submitted": sub != nil})
}

func (rt *Router) handleSessionPrevious(w http.ResponseWriter, r *http.Request) {
	view, err := rt.taking.Previous(r.PathValue("sid"))
	if err != nil {
		rt.fail(w, r, err, "session.not_found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func decodeAnswer(kind models.QuestionType, raw json.RawMessage) (services.Answer, error) {
	if len(raw) == 0 {
		return services.Answer{}, services.NewInvalidError("value required")
	}
	switch kind {
	case models.QuestionRating:
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return services.Answer{}, services.NewInvalidError("rating must be a whole number")
		}
		return services.RatingAnswer(n), nil
	case models.QuestionMultipleChoice:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return services.Answer{}, services.NewInvalidError("choice must be a string")
		}
		return services.ChoiceAnswer(s), nil
	default:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return services.Answer{}, services.NewInvalidError("answer must be a string")
		}
		return services.TextAnswer(s), nil
	}
}

// --- helpers ---

func (rt *Router) lookup(w http.ResponseWriter, r *http.Request, id string) (*models.Survey, bool) {
	sv, err := rt.store.GetSurvey(id)
	if err != nil {
		rt.fail(w, r, err, "")
		return nil, false
	}
	if sv == nil {
		writeMessage(w, http.StatusNotFound, utils.T(middleware.LocaleFromContext(r.Context()), "survey.not_found"))
		return nil, false
	}
	return sv, true
}

func (rt *Router) canAuthor(w http.ResponseWriter, r *http.Request) bool {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, utils.T(middleware.LocaleFromContext(r.Context()), "auth.required"))
		return false
	}
	if claims.Role == models.RoleRespondent {
		writeMessage(w, http.StatusForbidden, "respondents cannot edit surveys")
		return false
	}
	return true
}

// fail maps err onto a status code. notFoundKey, when set, replaces not_found
// messages with a localized one.
func (rt *Router) fail(w http.ResponseWriter, r *http.Request, err error, notFoundKey string) {
	locale := middleware.LocaleFromContext(r.Context())
	if ve, ok := services.AsValidationError(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": utils.T(locale, "form.invalid"), "fields": ve.Fields})
		return
	}
	switch {
	case errors.Is(err, services.ErrNoQuestions):
		writeMessage(w, http.StatusUnprocessableEntity, utils.T(locale, "survey.no_questions"))
		return
	case errors.Is(err, services.ErrPreviewReadOnly):
		writeMessage(w, http.StatusConflict, utils.T(locale, "session.read_only"))
		return
	case errors.Is(err, services.ErrSessionClosed):
		writeMessage(w, http.StatusConflict, utils.T(locale, "session.closed"))
		return
	}
	if se, ok := services.AsServiceError(err); ok {
		switch se.Code {
		case services.ErrorNotFound:
			msg := se.Message
			if notFoundKey != "" {
				msg = utils.T(locale, notFoundKey)
			}
			writeMessage(w, http.StatusNotFound, msg)
		case services.ErrorConflict:
			writeMessage(w, http.StatusConflict, se.Message)
		case services.ErrorUnauthorized:
			writeMessage(w, http.StatusUnauthorized, se.Message)
		case services.ErrorForbidden:
			writeMessage(w, http.StatusForbidden, se.Message)
		default:
			writeMessage(w, http.StatusBadRequest, se.Message)
		}
		return
	}
	rt.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeMessage(w, http.StatusInternalServerError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
