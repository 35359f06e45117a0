package db

import (
	"database/sql"
	"testing"

	"github.com/google/go-cmp/cmp"
	_ "github.com/mattn/go-sqlite3"

	"github.com/soaringjerry/surveyor/internal/models"
	"github.com/soaringjerry/surveyor/internal/services"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })
	if err := RunMigrations(conn, ""); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store, err := NewSQLiteStore(conn, nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return store
}

func TestSQLiteStoreKeepsInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	seed := services.SeedSurveys()
	if err := s.ReplaceSurveys(seed); err != nil {
		t.Fatalf("replace: %v", err)
	}
	extra := models.Survey{ID: "0", Title: "Zero", Questions: []models.Question{{ID: "z", Type: models.QuestionText, Text: "?"}}}
	if err := s.CreateSurvey(extra); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.ListSurveys()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff(append(seed, extra), got); diff != "" {
		t.Fatalf("surveys mismatch (-want +got):\n%s", diff)
	}
	if n, _ := s.Count(); n != 3 {
		t.Fatalf("expected 3 surveys, got %d", n)
	}
}

func TestSQLiteStoreCreateConflict(t *testing.T) {
	s := newTestStore(t)
	sv := models.Survey{ID: "a", Title: "A"}
	if err := s.CreateSurvey(sv); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := s.CreateSurvey(sv)
	if se, ok := services.AsServiceError(err); !ok || se.Code != services.ErrorConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSQLiteStoreUpdateAndExpiration(t *testing.T) {
	s := newTestStore(t)
	if err := s.ReplaceSurveys(services.SeedSurveys()); err != nil {
		t.Fatalf("replace: %v", err)
	}
	edited := models.Survey{ID: "2", Title: "Edited", Questions: []models.Question{{ID: "x", Type: models.QuestionRating, Text: "Rate"}}}
	if err := s.UpdateSurvey(edited); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.SetExpiration("2", "2030-01-01"); err != nil {
		t.Fatalf("set expiration: %v", err)
	}
	got, _ := s.GetSurvey("2")
	edited.ExpirationDate = "2030-01-01"
	if diff := cmp.Diff(&edited, got); diff != "" {
		t.Fatalf("survey mismatch (-want +got):\n%s", diff)
	}
	if err := s.SetExpiration("1", ""); err != nil {
		t.Fatalf("clear expiration: %v", err)
	}
	if one, _ := s.GetSurvey("1"); one.ExpirationDate != "" {
		t.Fatalf("expected cleared date, got %q", one.ExpirationDate)
	}
	if err := s.UpdateSurvey(models.Survey{ID: "nope"}); !services.IsNotFound(err) {
		t.Fatalf("expected not_found, got %v", err)
	}
	if err := s.SetExpiration("nope", "2030-01-01"); !services.IsNotFound(err) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestSQLiteStoreDeleteAndCurrent(t *testing.T) {
	s := newTestStore(t)
	if err := s.ReplaceSurveys(services.SeedSurveys()); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := s.SetCurrent("1"); err != nil {
		t.Fatalf("set current: %v", err)
	}
	if cur, _ := s.Current(); cur == nil || cur.ID != "1" {
		t.Fatalf("expected current 1, got %+v", cur)
	}
	if err := s.SetCurrent("missing"); !services.IsNotFound(err) {
		t.Fatalf("expected not_found, got %v", err)
	}
	removed, err := s.DeleteSurvey("1")
	if err != nil || !removed {
		t.Fatalf("delete: %v %v", removed, err)
	}
	if cur, _ := s.Current(); cur != nil {
		t.Fatalf("current should clear with its survey")
	}
	removed, err = s.DeleteSurvey("1")
	if err != nil || removed {
		t.Fatalf("second delete: %v %v", removed, err)
	}
	if got, err := s.GetSurvey("1"); err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got %v %v", got, err)
	}
}

func TestSQLiteStoreReplaceRejectsDuplicates(t *testing.T) {
	s := newTestStore(t)
	if err := s.ReplaceSurveys(services.SeedSurveys()); err != nil {
		t.Fatalf("replace: %v", err)
	}
	dup := []models.Survey{{ID: "a", Title: "A"}, {ID: "a", Title: "B"}}
	if err := s.ReplaceSurveys(dup); err == nil {
		t.Fatalf("expected duplicate ids to fail")
	}
	if n, _ := s.Count(); n != 2 {
		t.Fatalf("failed replace must roll back, got %d surveys", n)
	}
}
