// Package server runs the analysis job server: the HTTP surface the client
// agent talks to, plus the store, processor pool and event wiring behind it.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/solarworks/sunray/internal/config"
	"github.com/solarworks/sunray/internal/core/event"
	"github.com/solarworks/sunray/internal/core/job"
	"github.com/solarworks/sunray/internal/engine"
	"github.com/solarworks/sunray/internal/engine/raytrace"
	"github.com/solarworks/sunray/internal/pipeline"
	"github.com/solarworks/sunray/internal/sun"
)

// Run starts the job server and blocks until shutdown.
func Run(ctx context.Context, cfg *config.Config) error {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	if err := os.MkdirAll(cfg.Jobs.Dir, 0o755); err != nil {
		return fmt.Errorf("jobs dir: %w", err)
	}

	registry := engine.NewRegistry()
	registry.Register(&raytrace.Engine{Workers: cfg.Engine.Threads})

	backend, err := registry.Get(cfg.Engine.Backend)
	if err != nil {
		return fmt.Errorf("engine backend: %w", err)
	}
	log.Info().Str("backend", backend.Name()).Msg("compute engine selected")

	bus := event.NewBus()
	store := job.NewStore()
	pipe := pipeline.New(backend, sun.Vectors, cfg.Analysis.Colormap)
	processor := job.NewProcessor(store, pipe, bus, cfg.Jobs.Workers, cfg.Jobs.QueueSize)

	setupEventLogging(bus)
	sweepOrphanedDirs(cfg.Jobs.Dir, store)

	procCtx, procCancel := context.WithCancel(context.Background())
	defer procCancel()
	processor.Start(procCtx)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	h := NewHandlers(store, processor, cfg.Jobs.Dir).WithBus(bus)
	h.Register(e)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()
	log.Info().Str("addr", addr).Str("jobs_dir", cfg.Jobs.Dir).Msg("sunray server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	procCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	processor.Wait()
	return nil
}

// setupEventLogging subscribes a structured-log observer to the job
// lifecycle events.
func setupEventLogging(bus event.Bus) {
	logEvent := func(ctx context.Context, e event.Event) error {
		payload, ok := e.Payload.(event.JobEvent)
		if !ok {
			return nil
		}
		evt := log.Info().Str("job_id", payload.JobID).Str("status", payload.Status)
		if payload.Error != "" {
			evt = evt.Str("error", payload.Error)
		}
		if payload.Duration > 0 {
			evt = evt.Dur("duration", payload.Duration)
		}
		evt.Msg(string(e.Type))
		return nil
	}
	bus.Subscribe(logEvent,
		event.EventJobQueued,
		event.EventJobStarted,
		event.EventJobCompleted,
		event.EventJobFailed,
		event.EventJobDeleted,
	)
}

// sweepOrphanedDirs removes job directories with no live record. The store
// does not survive restarts, so on boot every leftover directory is an
// orphan.
func sweepOrphanedDirs(jobsDir string, store *job.Store) {
	entries, err := os.ReadDir(jobsDir)
	if err != nil {
		return
	}
	known := store.KnownDirs()
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		full := filepath.Join(jobsDir, entry.Name())
		if known[full] {
			continue
		}
		log.Info().Str("dir", full).Msg("removing orphaned job directory")
		_ = os.RemoveAll(full)
	}
}
