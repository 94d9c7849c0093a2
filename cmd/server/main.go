/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the performance monitoring server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and environment configuration
  2. Initialize SQLite store
  3. Wire the progress workflow service
  4. Configure HTTP router with JWT auth
  5. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

ENVIRONMENT:
  PORT, APP_ENV, DB_PATH, JWT_SECRET, QUARTER_LOCK_ENABLED,
  QUARTER_LOCK_GRACE_DAYS, EVIDENCE_REQUIRED_AFTER_MONTHS, SEED_FILE.
  See config/config.go for defaults.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/BigAlzz/smon/api"
	"github.com/BigAlzz/smon/config"
	"github.com/BigAlzz/smon/fiscal"
	"github.com/BigAlzz/smon/notify"
	"github.com/BigAlzz/smon/progress"
	"github.com/BigAlzz/smon/seed"
	"github.com/BigAlzz/smon/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		log.Error("failed to initialize database", "path", cfg.DB.Path, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if cfg.Seed.File != "" {
		if err := seed.NewLoader(store).LoadFile(context.Background(), cfg.Seed.File); err != nil {
			log.Error("failed to load seed file", "path", cfg.Seed.File, "error", err)
			os.Exit(1)
		}
		log.Info("seed file loaded", "path", cfg.Seed.File)
	}

	svc := progress.NewService(
		store,
		fiscal.SystemClock{},
		cfg.LockConfig(),
		cfg.EvidenceConfig(),
		notify.NewLogNotifier(log),
	)

	handler := api.NewHandler(store, svc, fiscal.SystemClock{})
	auth := api.NewAuthenticator(cfg.Auth.JWTSecret)
	router := api.NewRouter(handler, auth)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.App.Port, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
