package services

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/soaringjerry/surveyor/internal/models"
)

type captureSink struct {
	subs []Submission
}

func (c *captureSink) Submit(sub Submission) { c.subs = append(c.subs, sub) }

func mixedSurvey() models.Survey {
	return models.Survey{
		ID:    "mix",
		Title: "Mixed",
		Questions: []models.Question{
			{ID: "t", Type: models.QuestionText, Text: "Say something"},
			{ID: "c", Type: models.QuestionMultipleChoice, Text: "Pick", Options: []string{"A", "B"}},
			{ID: "r", Type: models.QuestionRating, Text: "Rate"},
		},
	}
}

func TestTakeSessionAnswersSurviveNavigation(t *testing.T) {
	store := newStateStore(mixedSurvey())
	sess, err := NewTakeSession(store, "mix", false)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	steps := []Answer{TextAnswer("hello"), ChoiceAnswer("B"), RatingAnswer(4)}
	for i, a := range steps {
		if err := sess.Answer(a); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
		if i < len(steps)-1 {
			if _, err := sess.Next(); err != nil {
				t.Fatalf("next: %v", err)
			}
		}
	}
	if err := sess.Previous(); err != nil {
		t.Fatalf("previous: %v", err)
	}
	if err := sess.Previous(); err != nil {
		t.Fatalf("previous: %v", err)
	}
	view, err := sess.View()
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.Index != 0 || view.Answer == nil || view.Answer.Text != "hello" {
		t.Fatalf("expected first answer kept, got %+v", view)
	}
	if view.CanGoBack {
		t.Fatalf("first question cannot go back")
	}
	want := map[string]Answer{"t": TextAnswer("hello"), "c": ChoiceAnswer("B"), "r": RatingAnswer(4)}
	if diff := cmp.Diff(want, sess.Answers()); diff != "" {
		t.Fatalf("answers mismatch (-want +got):\n%s", diff)
	}
}

func TestTakeSessionPreviousAtStartIsNoop(t *testing.T) {
	sess, err := NewTakeSession(newStateStore(mixedSurvey()), "mix", false)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := sess.Previous(); err != nil || sess.Index() != 0 {
		t.Fatalf("expected index 0, got %d (%v)", sess.Index(), err)
	}
}

func TestTakeSessionSubmitAtLastQuestion(t *testing.T) {
	sess, _ := NewTakeSession(newStateStore(mixedSurvey()), "mix", false)
	for i := 0; i < 2; i++ {
		if sub, err := sess.Next(); err != nil || sub != nil {
			t.Fatalf("step %d: sub=%v err=%v", i, sub, err)
		}
	}
	view, _ := sess.View()
	if !view.IsLast {
		t.Fatalf("expected last question")
	}
	sub, err := sess.Next()
	if err != nil || sub == nil {
		t.Fatalf("expected submission, got %v %v", sub, err)
	}
	if !sess.Completed() {
		t.Fatalf("session should be completed")
	}
	if err := sess.Answer(TextAnswer("late")); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if again, err := sess.Next(); err != nil || again != nil {
		t.Fatalf("second submit should be a no-op, got %v %v", again, err)
	}
}

func TestTakeSessionRejectsBadAnswers(t *testing.T) {
	store := newStateStore(mixedSurvey())
	sess, _ := NewTakeSession(store, "mix", false)
	if err := sess.Answer(RatingAnswer(3)); err == nil {
		t.Fatalf("expected kind mismatch error")
	}
	_, _ = sess.Next()
	if err := sess.Answer(ChoiceAnswer("Z")); err == nil {
		t.Fatalf("expected unknown option error")
	}
	_, _ = sess.Next()
	for _, n := range []int{0, 6} {
		if err := sess.Answer(RatingAnswer(n)); err == nil {
			t.Fatalf("expected rating %d rejected", n)
		}
	}
	if err := sess.Answer(RatingAnswer(5)); err != nil {
		t.Fatalf("rating 5: %v", err)
	}
}

func TestTakeSessionPreviewIsReadOnly(t *testing.T) {
	sess, err := NewTakeSession(newStateStore(mixedSurvey()), "mix", true)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := sess.Answer(TextAnswer("x")); !errors.Is(err, ErrPreviewReadOnly) {
		t.Fatalf("expected ErrPreviewReadOnly, got %v", err)
	}
	if _, err := sess.Next(); err != nil {
		t.Fatalf("preview navigation: %v", err)
	}
	view, _ := sess.View()
	if !view.ReadOnly || view.Index != 1 {
		t.Fatalf("unexpected preview view: %+v", view)
	}
}

func TestTakeSessionMissingOrEmptySurvey(t *testing.T) {
	store := newStateStore(models.Survey{ID: "empty", Title: "Empty"})
	if _, err := NewTakeSession(store, "nope", false); !IsNotFound(err) {
		t.Fatalf("expected not_found, got %v", err)
	}
	if _, err := NewTakeSession(store, "empty", false); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}

func TestTakeSessionSeesConcurrentEdits(t *testing.T) {
	store := newStateStore(mixedSurvey())
	sess, _ := NewTakeSession(store, "mix", false)
	_, _ = sess.Next()
	_, _ = sess.Next()

	shorter := mixedSurvey()
	shorter.Title = "Shorter"
	shorter.Questions = shorter.Questions[:1]
	if err := store.UpdateSurvey(shorter); err != nil {
		t.Fatalf("update: %v", err)
	}
	view, err := sess.View()
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.Title != "Shorter" || view.Index != 0 || view.Total != 1 {
		t.Fatalf("expected clamped view of edited survey, got %+v", view)
	}

	if _, err := store.DeleteSurvey("mix"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := sess.View(); !IsNotFound(err) {
		t.Fatalf("expected not_found after delete, got %v", err)
	}
}

func TestTakingServiceFlow(t *testing.T) {
	sink := &captureSink{}
	svc := NewTakingService(newStateStore(mixedSurvey()), sink)
	svc.idGen = func() string { return "S1" }

	view, err := svc.Start("mix", false)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.SessionID != "S1" || view.Total != 3 {
		t.Fatalf("unexpected start view: %+v", view)
	}
	if _, err := svc.Answer("S1", TextAnswer("hi")); err != nil {
		t.Fatalf("answer: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, sub, err := svc.Next("S1"); err != nil || sub != nil {
			t.Fatalf("next %d: %v %v", i, sub, err)
		}
	}
	view, sub, err := svc.Next("S1")
	if err != nil || sub == nil || !view.Completed {
		t.Fatalf("expected completion, got %+v %v %v", view, sub, err)
	}
	if len(sink.subs) != 1 || sink.subs[0].Answers["t"].Text != "hi" {
		t.Fatalf("unexpected sink contents: %+v", sink.subs)
	}
	if _, err := svc.View("S1"); !IsNotFound(err) {
		t.Fatalf("finished session should be dropped, got %v", err)
	}
}

func TestTakingServicePreviewNeverSubmits(t *testing.T) {
	sink := &captureSink{}
	svc := NewTakingService(newStateStore(mixedSurvey()), sink)
	view, err := svc.Start("mix", true)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Answer(view.SessionID, TextAnswer("x")); !errors.Is(err, ErrPreviewReadOnly) {
		t.Fatalf("expected read-only error, got %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, _, err := svc.Next(view.SessionID); err != nil {
			t.Fatalf("next: %v", err)
		}
	}
	if len(sink.subs) != 0 {
		t.Fatalf("preview must not reach the sink")
	}
}

func TestTakingServiceUnknownSession(t *testing.T) {
	svc := NewTakingService(newStateStore(), nil)
	if _, err := svc.Previous("missing"); !IsNotFound(err) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestTakingServiceDropsIdleSessions(t *testing.T) {
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := NewTakingService(newStateStore(mixedSurvey()), nil)
	svc.now = func() time.Time { return clock }
	svc.ttl = time.Hour

	idle, err := svc.Start("mix", false)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	active, err := svc.Start("mix", false)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	clock = clock.Add(50 * time.Minute)
	if _, err := svc.View(active.SessionID); err != nil {
		t.Fatalf("view active: %v", err)
	}
	clock = clock.Add(20 * time.Minute)
	if _, err := svc.View(idle.SessionID); !IsNotFound(err) {
		t.Fatalf("idle session should expire, got %v", err)
	}
	if _, err := svc.View(active.SessionID); err != nil {
		t.Fatalf("recently used session should survive: %v", err)
	}

	clock = clock.Add(2 * time.Hour)
	if n := svc.Live(); n != 0 {
		t.Fatalf("expected all sessions pruned, got %d", n)
	}
}

func TestTakingServiceCapsLiveSessions(t *testing.T) {
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := NewTakingService(newStateStore(mixedSurvey()), nil)
	svc.now = func() time.Time { return clock }
	svc.maxLive = 3

	first, _ := svc.Start("mix", false)
	for i := 0; i < 5; i++ {
		clock = clock.Add(time.Second)
		if _, err := svc.Start("mix", false); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
	}
	if n := svc.Live(); n != 3 {
		t.Fatalf("expected 3 live sessions, got %d", n)
	}
	if _, err := svc.View(first.SessionID); !IsNotFound(err) {
		t.Fatalf("oldest session should be evicted, got %v", err)
	}
}
