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

	"github.com/BRA7534/CARFAST/app/api"
	"github.com/BRA7534/CARFAST/app/cfg"
	"github.com/BRA7534/CARFAST/app/metrics"
	"github.com/BRA7534/CARFAST/app/service"
	"github.com/BRA7534/CARFAST/app/tasks"
)

func main() {
	appConfig, err := cfg.Load()
	if err != nil {
		os.Exit(1)
	}
	if appConfig == nil {
		// Help was shown
		return
	}

	setupLogging(appConfig.Debug)

	slog.Info("Starting CarFast server", "version", appConfig.Version)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	svc, err := service.Open(startupCtx, appConfig)
	cancelStartup()
	if err != nil {
		slog.Error("Failed to start", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	slog.Info("Starting background scheduler", "workers", appConfig.WorkerCount, "integrity_interval", appConfig.IntegrityInterval)
	scheduler := tasks.NewScheduler(svc.Reviews, appConfig.WorkerCount, appConfig.IntegrityInterval)
	scheduler.Start()

	registry := metrics.InitRegistry()
	apiHandler := api.NewHandler(svc.Harvester, svc.Reviews, scheduler, metrics.Handler(registry), appConfig.Version)
	server := api.NewServer(apiHandler, appConfig.APIAccessKey)

	// Synchronous harvests wait on the rate limiter and source pacing, so the
	// write timeout is generous.
	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appConfig.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	scheduler.Stop()
	slog.Info("Background scheduler stopped")

	slog.Info("CarFast server shutdown complete")
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
