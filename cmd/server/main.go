// Package main is the entry point for the execbox server. It reads
// configuration from environment variables, builds the logger and hands
// everything to internal/server. All actual logic lives in the imported
// packages.
package main

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/sakif/execbox/internal/dispatch"
	"github.com/sakif/execbox/internal/server"
)

func main() {
	// A missing .env file is fine; real deployments set env vars directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load .env file", slog.String("error", err.Error()))
	}

	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
	}))

	cfg, err := configFromEnv()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Ensure the data directory exists before sqlite tries to open the file.
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(cfg.DBPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// configFromEnv assembles the server configuration from environment
// variables, falling back to sensible defaults for anything unset.
//
//	PORT               HTTP listen port (default 8080)
//	DB_PATH            SQLite database file (default data/execbox.db)
//	SANDBOX_BACKEND    "process" or "docker" (default process)
//	LANGUAGES_FILE     optional TOML file with extra language profiles
//	MAX_CONCURRENT     executions running at once
//	QUEUE_SIZE         executions allowed to wait for a slot
//	QUEUE_WAIT_MS      how long a queued execution waits before 429
//	MAX_OUTPUT_BYTES   per-stream stdout/stderr capture limit
//	DEFAULT_TIMEOUT_MS applied when a request omits timeoutMs
//	MAX_TIMEOUT_MS     ceiling for requested timeouts
func configFromEnv() (server.Config, error) {
	dispatchCfg := dispatch.DefaultConfig()

	maxConcurrent, err := envInt("MAX_CONCURRENT", dispatchCfg.MaxConcurrent)
	if err != nil {
		return server.Config{}, err
	}
	dispatchCfg.MaxConcurrent = maxConcurrent

	queueSize, err := envInt("QUEUE_SIZE", dispatchCfg.QueueSize)
	if err != nil {
		return server.Config{}, err
	}
	dispatchCfg.QueueSize = queueSize

	queueWait, err := envDurationMs("QUEUE_WAIT_MS", dispatchCfg.QueueWait)
	if err != nil {
		return server.Config{}, err
	}
	dispatchCfg.QueueWait = queueWait

	defaultTimeout, err := envDurationMs("DEFAULT_TIMEOUT_MS", dispatchCfg.DefaultTimeout)
	if err != nil {
		return server.Config{}, err
	}
	dispatchCfg.DefaultTimeout = defaultTimeout

	maxTimeout, err := envDurationMs("MAX_TIMEOUT_MS", dispatchCfg.MaxTimeout)
	if err != nil {
		return server.Config{}, err
	}
	dispatchCfg.MaxTimeout = maxTimeout

	port, err := envInt("PORT", 8080)
	if err != nil {
		return server.Config{}, err
	}

	maxOutput, err := envInt("MAX_OUTPUT_BYTES", 0)
	if err != nil {
		return server.Config{}, err
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "data/execbox.db"
	}

	return server.Config{
		Port:           port,
		DBPath:         dbPath,
		LanguagesFile:  os.Getenv("LANGUAGES_FILE"),
		Backend:        os.Getenv("SANDBOX_BACKEND"),
		MaxOutputBytes: maxOutput,
		Dispatch:       dispatchCfg,
	}, nil
}

func envInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("invalid " + key + " value: " + raw)
	}
	return v, nil
}

func envDurationMs(key string, fallback time.Duration) (time.Duration, error) {
	ms, err := envInt(key, int(fallback.Milliseconds()))
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}
