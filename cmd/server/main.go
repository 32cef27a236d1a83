// Package main is the entry point for the varqo variational objective service.
// It wires the execution backends, the memoizing compiler, the evaluation
// history store and the HTTP API, then runs until interrupted.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/varqo/varqo/internal/config"
	"github.com/varqo/varqo/internal/database"
	"github.com/varqo/varqo/internal/modules/compiler"
	"github.com/varqo/varqo/internal/modules/history"
	"github.com/varqo/varqo/internal/modules/simulator"
	"github.com/varqo/varqo/internal/scheduler"
	"github.com/varqo/varqo/internal/server"
	"github.com/varqo/varqo/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting varqo")

	// Evaluation history database
	db, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "history.db"),
		Name: "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate history database")
	}

	historyRepo := history.NewRepository(db, log)
	historySvc := history.NewService(historyRepo, cfg.RetentionDays, log)

	// Execution backends. The statevector simulator is the default; the
	// unitary backend is exact but limited to small noiseless circuits.
	statevector := simulator.NewStatevector(simulator.StatevectorConfig{
		MaxQubits: cfg.MaxQubits,
		Seed:      cfg.Seed,
		Log:       log,
	})
	unitary := simulator.NewUnitary(log)
	registry := compiler.NewRegistry(statevector, unitary)

	comp := compiler.New(registry, log)
	log.Info().Strs("backends", registry.Names()).Msg("Backends registered")

	srv := server.New(server.Config{
		Port:     cfg.Port,
		Log:      log,
		Compiler: comp,
		Registry: registry,
		History:  historySvc,
	})

	// Daily retention pruning of the evaluation history.
	sched := scheduler.New(log)
	if err := sched.Register(scheduler.Job{
		Name: "history_prune",
		Spec: "30 3 * * *",
		Run:  historySvc.Prune,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule history pruning")
	}
	sched.Start()
	defer sched.Stop()

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
