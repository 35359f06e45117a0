package main

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/soaringjerry/surveyor/internal/api"
	dbstore "github.com/soaringjerry/surveyor/internal/db"
)

// MigrateIfNeeded imports a JSON snapshot into a SQLite database that does not
// exist yet. An existing database or a missing snapshot is left alone.
func MigrateIfNeeded(snapshotPath, sqlitePath, migrationsDir string, logger *zap.Logger) error {
	if sqlitePath == "" {
		return errors.New("sqlite path is required")
	}
	if _, err := os.Stat(sqlitePath); err == nil {
		return nil // already migrated
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("check sqlite file: %w", err)
	}
	if snapshotPath == "" {
		return nil
	}
	snap, err := api.LoadSnapshot(snapshotPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load snapshot: %w", err)
	}

	logger.Info("first run: importing snapshot into sqlite",
		zap.String("snapshot", snapshotPath), zap.Int("surveys", len(snap.Surveys)))

	conn, err := openSQLite(sqlitePath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logger.Warn("close sqlite after import", zap.Error(cerr))
		}
	}()

	if err := dbstore.RunMigrations(conn, migrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	dst, err := dbstore.NewSQLiteStore(conn, logger)
	if err != nil {
		return fmt.Errorf("init sqlite store: %w", err)
	}
	if err := dst.ReplaceSurveys(snap.Surveys); err != nil {
		return fmt.Errorf("copy surveys: %w", err)
	}
	logger.Info("snapshot import completed")
	return nil
}
