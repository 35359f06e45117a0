package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr          string
	PublicHost    string
	JWTSecret     string
	TokenTTL      time.Duration
	SQLitePath    string
	SnapshotPath  string
	MigrationsDir string
	Seed          bool
	LogLevel      string
	CORSOrigin    string
	Locales       []string
	Commit        string
	BuildTime     string
}

// SafeEnv returns the environment variable value for key, or fallback if empty.
func SafeEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// LoadDotEnv loads variables from the given .env files. Missing files are
// ignored; variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the configuration from flags, falling back to SURVEYOR_* environment variables.
func Load(args []string) (Config, error) {
	cfg := Config{
		Addr:          SafeEnv("SURVEYOR_ADDR", ":8080"),
		PublicHost:    SafeEnv("SURVEYOR_PUBLIC_HOST", "surveyapp.com"),
		JWTSecret:     SafeEnv("SURVEYOR_JWT_SECRET", ""),
		SQLitePath:    SafeEnv("SURVEYOR_SQLITE_PATH", ""),
		SnapshotPath:  SafeEnv("SURVEYOR_SNAPSHOT_PATH", ""),
		MigrationsDir: SafeEnv("SURVEYOR_MIGRATIONS_DIR", ""),
		LogLevel:      SafeEnv("SURVEYOR_LOG_LEVEL", "info"),
		CORSOrigin:    SafeEnv("SURVEYOR_CORS_ORIGIN", "*"),
		Commit:        SafeEnv("SURVEYOR_COMMIT", ""),
		BuildTime:     SafeEnv("SURVEYOR_BUILD_TIME", ""),
		Locales:       splitList(SafeEnv("SURVEYOR_LOCALES", "en,zh")),
	}
	ttl, err := time.ParseDuration(SafeEnv("SURVEYOR_TOKEN_TTL", "720h"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SURVEYOR_TOKEN_TTL: %w", err)
	}
	cfg.TokenTTL = ttl
	seed, err := strconv.ParseBool(SafeEnv("SURVEYOR_SEED", "true"))
	if err != nil {
		return Config{}, errors.New("invalid SURVEYOR_SEED env variable")
	}
	cfg.Seed = seed

	fs := flag.NewFlagSet("surveyor", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.PublicHost, "public-host", cfg.PublicHost, "host used in deploy links")
	fs.StringVar(&cfg.SQLitePath, "sqlite", cfg.SQLitePath, "SQLite database file (empty keeps surveys in memory)")
	fs.StringVar(&cfg.SnapshotPath, "snapshot", cfg.SnapshotPath, "JSON snapshot to load surveys from")
	fs.StringVar(&cfg.MigrationsDir, "migrations", cfg.MigrationsDir, "directory with SQL migrations (default: embedded)")
	fs.BoolVar(&cfg.Seed, "seed", cfg.Seed, "seed an empty store with the sample surveys")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", cfg.TokenTTL, "session token lifetime")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL <= 0 {
		return Config{}, errors.New("token ttl must be positive")
	}
	if len(cfg.Locales) == 0 {
		cfg.Locales = []string{"en"}
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
