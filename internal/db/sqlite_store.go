package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/soaringjerry/surveyor/internal/models"
	"github.com/soaringjerry/surveyor/internal/services"
)

const currentSurveyKey = "current_survey"

// SQLiteStore keeps surveys in SQLite. The position column preserves insertion
// order; questions are stored as a JSON document per survey.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStore(db *sql.DB, logger *zap.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) logErr(op string, err error) {
	if err != nil {
		s.logger.Error("sqlite store", zap.String("op", op), zap.Error(err))
	}
}

func contextBg() context.Context { return context.Background() }

func toNullString(v string) sql.NullString {
	if strings.TrimSpace(v) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func encodeQuestions(qs []models.Question) (string, error) {
	if qs == nil {
		qs = []models.Question{}
	}
	b, err := json.Marshal(qs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeQuestions(raw string) ([]models.Question, error) {
	if strings.TrimSpace(raw) == "" {
		return []models.Question{}, nil
	}
	var out []models.Question
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSurvey(row rowScanner) (*models.Survey, error) {
	var (
		sv        models.Survey
		questions string
		expires   sql.NullString
	)
	if err := row.Scan(&sv.ID, &sv.Title, &questions, &expires); err != nil {
		return nil, err
	}
	qs, err := decodeQuestions(questions)
	if err != nil {
		return nil, err
	}
	sv.Questions = qs
	sv.ExpirationDate = expires.String
	return &sv, nil
}

func (s *SQLiteStore) ListSurveys() ([]models.Survey, error) {
	rows, err := s.db.QueryContext(contextBg(), `SELECT id, title, questions_json, expiration_date FROM surveys ORDER BY position ASC`)
	if err != nil {
		s.logErr("ListSurveys: query", err)
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			s.logErr("ListSurveys: rows.Close", cerr)
		}
	}()
	out := []models.Survey{}
	for rows.Next() {
		sv, err := scanSurvey(rows)
		if err != nil {
			s.logErr("ListSurveys: scan", err)
			return nil, err
		}
		out = append(out, *sv)
	}
	if err := rows.Err(); err != nil {
		s.logErr("ListSurveys: rows.Err", err)
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) GetSurvey(id string) (*models.Survey, error) {
	row := s.db.QueryRowContext(contextBg(), `SELECT id, title, questions_json, expiration_date FROM surveys WHERE id = ?`, id)
	sv, err := scanSurvey(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.logErr("GetSurvey", err)
		return nil, err
	}
	return sv, nil
}

func (s *SQLiteStore) CreateSurvey(sv models.Survey) error {
	return s.inTx("CreateSurvey", func(tx *sql.Tx) error {
		return insertSurvey(tx, sv)
	})
}

func insertSurvey(tx *sql.Tx, sv models.Survey) error {
	var exists int
	if err := tx.QueryRow(`SELECT COUNT(1) FROM surveys WHERE id = ?`, sv.ID).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return services.NewConflictError(fmt.Sprintf("survey %q already exists", sv.ID))
	}
	questions, err := encodeQuestions(sv.Questions)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`INSERT INTO surveys (id, position, title, questions_json, expiration_date, created_at)
      VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM surveys), ?, ?, ?, ?)`,
		sv.ID, sv.Title, questions, toNullString(sv.ExpirationDate), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (s *SQLiteStore) UpdateSurvey(sv models.Survey) error {
	questions, err := encodeQuestions(sv.Questions)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(contextBg(), `UPDATE surveys SET title = ?, questions_json = ?, expiration_date = ?, updated_at = ? WHERE id = ?`,
		sv.Title, questions, toNullString(sv.ExpirationDate), time.Now().UTC().Format(time.RFC3339Nano), sv.ID)
	if err != nil {
		s.logErr("UpdateSurvey", err)
		return err
	}
	return requireRow(res, sv.ID)
}

func (s *SQLiteStore) DeleteSurvey(id string) (bool, error) {
	var removed bool
	err := s.inTx("DeleteSurvey", func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM surveys WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed = n > 0
		_, err = tx.Exec(`DELETE FROM store_meta WHERE key = ? AND value = ?`, currentSurveyKey, id)
		return err
	})
	return removed, err
}

func (s *SQLiteStore) SetExpiration(id, date string) error {
	res, err := s.db.ExecContext(contextBg(), `UPDATE surveys SET expiration_date = ?, updated_at = ? WHERE id = ?`,
		toNullString(date), time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		s.logErr("SetExpiration", err)
		return err
	}
	return requireRow(res, id)
}

func (s *SQLiteStore) ReplaceSurveys(surveys []models.Survey) error {
	return s.inTx("ReplaceSurveys", func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM surveys`); err != nil {
			return err
		}
		for _, sv := range surveys {
			if err := insertSurvey(tx, sv); err != nil {
				return err
			}
		}
		_, err := tx.Exec(`DELETE FROM store_meta WHERE key = ? AND value NOT IN (SELECT id FROM surveys)`, currentSurveyKey)
		return err
	})
}

func (s *SQLiteStore) SetCurrent(id string) error {
	if id == "" {
		_, err := s.db.ExecContext(contextBg(), `DELETE FROM store_meta WHERE key = ?`, currentSurveyKey)
		s.logErr("SetCurrent: clear", err)
		return err
	}
	sv, err := s.GetSurvey(id)
	if err != nil {
		return err
	}
	if sv == nil {
		return services.NewNotFoundError(fmt.Sprintf("survey %q not found", id))
	}
	_, err = s.db.ExecContext(contextBg(), `INSERT INTO store_meta (key, value) VALUES (?, ?)
      ON CONFLICT(key) DO UPDATE SET value = excluded.value`, currentSurveyKey, id)
	s.logErr("SetCurrent", err)
	return err
}

func (s *SQLiteStore) Current() (*models.Survey, error) {
	var id string
	err := s.db.QueryRowContext(contextBg(), `SELECT value FROM store_meta WHERE key = ?`, currentSurveyKey).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.logErr("Current", err)
		return nil, err
	}
	return s.GetSurvey(id)
}

// Count returns the number of stored surveys.
func (s *SQLiteStore) Count() (int, error) {
	var n int
	err := s.db.QueryRowContext(contextBg(), `SELECT COUNT(1) FROM surveys`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) inTx(op string, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(contextBg(), nil)
	if err != nil {
		s.logErr(op+": begin", err)
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
				s.logErr(op+": rollback", rerr)
			}
		}
	}()
	if err = fn(tx); err != nil {
		if _, isService := services.AsServiceError(err); !isService {
			s.logErr(op, err)
		}
		return err
	}
	return tx.Commit()
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return services.NewNotFoundError(fmt.Sprintf("survey %q not found", id))
	}
	return nil
}

var _ services.SurveyStore = (*SQLiteStore)(nil)
