package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/soaringjerry/surveyor/internal/api"
	"github.com/soaringjerry/surveyor/internal/config"
	dbstore "github.com/soaringjerry/surveyor/internal/db"
	"github.com/soaringjerry/surveyor/internal/logging"
	"github.com/soaringjerry/surveyor/internal/middleware"
	"github.com/soaringjerry/surveyor/internal/services"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("open survey store", zap.Error(err))
	}
	defer closeStore()

	rt := api.NewRouter(api.Options{
		Store:      store,
		Signer:     middleware.NewSigner(cfg.JWTSecret, "surveyor"),
		Logger:     logger,
		PublicHost: cfg.PublicHost,
		TokenTTL:   cfg.TokenTTL,
		Locales:    cfg.Locales,
		Commit:     cfg.Commit,
		BuildTime:  cfg.BuildTime,
	})
	handler := middleware.Chain(rt.Handler(),
		middleware.RequestLogger(logger),
		middleware.SecureHeaders,
		middleware.NoStore,
		middleware.CORS(cfg.CORSOrigin),
	)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatal("listen", zap.String("addr", cfg.Addr), zap.Error(err))
	}
	logger.Info("surveyor listening", zap.String("addr", ln.Addr().String()), zap.String("commit", cfg.Commit))
	if err := serve(ctx, server, ln, logger); err != nil {
		logger.Error("server error", zap.Error(err))
	}
	if cfg.SQLitePath == "" && cfg.SnapshotPath != "" {
		if err := api.SaveSnapshot(store, cfg.SnapshotPath); err != nil {
			logger.Error("save snapshot", zap.String("path", cfg.SnapshotPath), zap.Error(err))
		} else {
			logger.Info("snapshot saved", zap.String("path", cfg.SnapshotPath))
		}
	}
}

// serve runs srv on ln until ctx is cancelled. It returns only after Shutdown
// has finished draining in-flight requests.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, logger *zap.Logger) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()
	err := srv.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

// openStore picks SQLite when a path is configured and the in-memory store
// otherwise. The returned func releases the underlying resources.
func openStore(cfg config.Config, logger *zap.Logger) (services.SurveyStore, func(), error) {
	if cfg.SQLitePath == "" {
		return openMemoryStore(cfg, logger)
	}
	if err := MigrateIfNeeded(cfg.SnapshotPath, cfg.SQLitePath, cfg.MigrationsDir, logger); err != nil {
		return nil, nil, err
	}
	conn, err := openSQLite(cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if cerr := conn.Close(); cerr != nil {
			logger.Warn("close sqlite", zap.Error(cerr))
		}
	}
	if err := dbstore.RunMigrations(conn, cfg.MigrationsDir); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	store, err := dbstore.NewSQLiteStore(conn, logger)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	if cfg.Seed {
		n, err := store.Count()
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		if n == 0 {
			if err := store.ReplaceSurveys(services.SeedSurveys()); err != nil {
				closeFn()
				return nil, nil, fmt.Errorf("seed surveys: %w", err)
			}
			logger.Info("seeded sample surveys", zap.String("sqlite", cfg.SQLitePath))
		}
	}
	logger.Info("using sqlite store", zap.String("path", cfg.SQLitePath))
	return store, closeFn, nil
}

func openMemoryStore(cfg config.Config, logger *zap.Logger) (services.SurveyStore, func(), error) {
	noop := func() {}
	if cfg.SnapshotPath != "" {
		store, err := api.NewMemoryStoreFromPath(cfg.SnapshotPath)
		if err == nil {
			logger.Info("loaded snapshot", zap.String("path", cfg.SnapshotPath))
			return store, noop, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, nil, err
		}
	}
	if cfg.Seed {
		return api.NewSeededMemoryStore(), noop, nil
	}
	return api.NewMemoryStore(), noop, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_busy_timeout=5000", filepath.ToSlash(path))
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return conn, nil
}
