package api

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/soaringjerry/surveyor/internal/models"
	"github.com/soaringjerry/surveyor/internal/services"
)

// Snapshot is the on-disk JSON form of a survey store.
type Snapshot struct {
	Surveys []models.Survey `json:"surveys"`
}

// LoadSnapshot reads a snapshot file. A missing file surfaces os.ErrNotExist.
func LoadSnapshot(path string) (*Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// SaveSnapshot writes every survey in store to path, replacing it atomically.
func SaveSnapshot(store services.SurveyReader, path string) error {
	surveys, err := store.ListSurveys()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(Snapshot{Surveys: surveys}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// NewMemoryStoreFromPath builds an in-memory store from a snapshot file.
func NewMemoryStoreFromPath(path string) (services.SurveyStore, error) {
	snap, err := LoadSnapshot(path)
	if err != nil {
		return nil, err
	}
	s := newMemoryStore()
	if err := s.ReplaceSurveys(snap.Surveys); err != nil {
		return nil, err
	}
	return s, nil
}
