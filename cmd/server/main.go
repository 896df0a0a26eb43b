package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kodelive/kodelive-backend/internal/challenge"
	"github.com/kodelive/kodelive-backend/internal/config"
	"github.com/kodelive/kodelive-backend/internal/grading"
	"github.com/kodelive/kodelive-backend/internal/handler"
	"github.com/kodelive/kodelive-backend/internal/logger"
	"github.com/kodelive/kodelive-backend/internal/router"
	"github.com/kodelive/kodelive-backend/internal/store"
	"github.com/kodelive/kodelive-backend/internal/validator"
	"github.com/kodelive/kodelive-backend/internal/ws"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Kodelive Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	// ─── Build Core Components ─────────────────────────────────────────
	// All session state is volatile and in-memory for the life of the
	// process; there is deliberately no database or cache behind it.
	catalog := challenge.Default()
	sessions := store.NewSessionStore(catalog, cfg.InstructionSeconds, cfg.CodingSeconds, log)
	engine := grading.NewEngine(catalog)
	hub := ws.NewHub(log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sessions, catalog, hub, log),
		WS:      handler.NewWSHandler(sessions, engine, hub, log, cfg.AllowedOrigins),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	hub.Close()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
