package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jacobszpz/CarPark/internal/board"
	"github.com/jacobszpz/CarPark/internal/carpark"
	"github.com/jacobszpz/CarPark/internal/config"
	"github.com/jacobszpz/CarPark/internal/logging"
	"github.com/jacobszpz/CarPark/internal/server"
	"github.com/jacobszpz/CarPark/internal/telemetry"
)

var mode = flag.String("mode", "shell", "Mode to run: shell, server, or both")

func main() {
	flag.Parse()

	cfg := config.Load()
	logging.Init(cfg.Environment == "development")
	log := logging.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tel, err := telemetry.Init(ctx, cfg.OTelServiceName, cfg.OTelEndpoint, cfg.Environment)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	switch *mode {
	case "shell":
		runShell(ctx, cancel, tel, sigChan)
	case "server":
		runServer(ctx, cancel, cfg, tel, sigChan)
	case "both":
		runBoth(ctx, cancel, cfg, tel, sigChan)
	default:
		log.Fatal().Str("mode", *mode).Msg("invalid mode, must be shell, server, or both")
	}
}

func runShell(ctx context.Context, cancel context.CancelFunc, tel *telemetry.Provider, sigChan chan os.Signal) {
	go func() {
		<-sigChan
		logging.Logger().Info().Msg("shutting down")
		cancel()
	}()

	shell := carpark.NewShell(os.Stdin, os.Stdout, tel)
	shell.Run(ctx)

	shutdownTelemetry(tel)
}

func newServer(ctx context.Context, cfg *config.Config, tel *telemetry.Provider) *server.Server {
	hub := board.NewHub()
	go hub.Run(ctx)

	carPark, err := carpark.NewInstrumented(cfg.Capacity, cfg.ReservedCapacity, cfg.MinSpacesLeft, tel)
	if err != nil {
		logging.Logger().Fatal().Err(err).
			Int("capacity", cfg.Capacity).
			Int("reserved_capacity", cfg.ReservedCapacity).
			Int("min_spaces_left", cfg.MinSpacesLeft).
			Msg("invalid car park layout")
	}

	return server.NewServer(cfg, tel, hub, carPark)
}

func runServer(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, tel *telemetry.Provider, sigChan chan os.Signal) {
	srv := newServer(ctx, cfg, tel)

	go func() {
		<-sigChan
		logging.Logger().Info().Msg("received shutdown signal")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Logger().Error().Err(err).Msg("server shutdown error")
		}

		cancel()
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Logger().Error().Err(err).Msg("server error")
	}

	shutdownTelemetry(tel)
}

func runBoth(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, tel *telemetry.Provider, sigChan chan os.Signal) {
	srv := newServer(ctx, cfg, tel)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start()
	}()

	shellDone := make(chan bool, 1)
	go func() {
		shell := carpark.NewShell(os.Stdin, os.Stdout, tel)
		shell.Run(ctx)
		shellDone <- true
	}()

	go func() {
		<-sigChan
		logging.Logger().Info().Msg("received shutdown signal")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Logger().Error().Err(err).Msg("server shutdown error")
		}

		cancel()
	}()

	select {
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Logger().Error().Err(err).Msg("server error")
		}
	case <-shellDone:
		logging.Logger().Info().Msg("shell exited")
	case <-ctx.Done():
	}

	shutdownTelemetry(tel)
}

func shutdownTelemetry(tel *telemetry.Provider) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := tel.Shutdown(shutdownCtx); err != nil {
		logging.Logger().Error().Err(err).Msg("telemetry shutdown error")
	}
}
