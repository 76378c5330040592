/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the LeaveDesk server: configuration, store,
  handler wiring, HTTP server with graceful shutdown.

CONFIGURATION (environment, .env supported):
  LISTEN_ADDR  HTTP listen address (default :8080)
  DB_PATH      SQLite database path (default leavedesk.db, ":memory:" ok)
  ADMIN_CODE   seeds the admin shared secret when config is absent
  LOG_LEVEL    zerolog level (default info)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait up to 30s for
  in-flight requests, close the database, exit.
*/
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"

	"github.com/solara/leavedesk/api"
	"github.com/solara/leavedesk/leave"
	"github.com/solara/leavedesk/store/sqlite"
)

type config struct {
	ListenAddr string `env:"LISTEN_ADDR, default=:8080"`
	DBPath     string `env:"DB_PATH, default=leavedesk.db"`
	AdminCode  string `env:"ADMIN_CODE"`
	LogLevel   string `env:"LOG_LEVEL, default=info"`
}

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer store.Close()

	if err := seedConfig(ctx, store, cfg.AdminCode); err != nil {
		log.Fatal().Err(err).Msg("failed to seed config")
	}

	handler := api.NewHandler(store, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}

// seedConfig writes the initial config record when none exists. An existing
// admin code is never overwritten from the environment.
func seedConfig(ctx context.Context, store leave.Store, adminCode string) error {
	_, err := store.GetConfig(ctx)
	if err == nil {
		return nil
	}
	if !leave.IsNotFound(err) {
		return err
	}
	return store.PutConfig(ctx, leave.Config{AdminCode: adminCode})
}
