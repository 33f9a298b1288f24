package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jacobszpz/CarPark/internal/board"
	"github.com/jacobszpz/CarPark/internal/carpark"
	"github.com/jacobszpz/CarPark/internal/config"
	"github.com/jacobszpz/CarPark/internal/logging"
	"github.com/jacobszpz/CarPark/internal/telemetry"
)

type Server struct {
	httpServer *http.Server
	handler    *Handler
}

func NewServer(cfg *config.Config, tel *telemetry.Provider, hub *board.Hub, carPark *carpark.Instrumented) *Server {
	handler := NewHandler(carPark, tel, hub, cfg.OTelServiceName)

	r := chi.NewRouter()

	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(OTelHTTP(cfg.OTelServiceName))
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)

	r.Get("/health", handler.HealthCheck)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/ws/board", board.ServeWS(hub))

	r.Route("/api/carpark", func(r chi.Router) {
		r.Post("/", handler.CreateCarPark)
		r.Post("/enter", handler.EnterCarPark)
		r.Post("/enter-reserved", handler.EnterReservedArea)
		r.Post("/leave", handler.LeaveCarPark)
		r.Post("/subscribe", handler.Subscribe)
		r.Post("/open-reserved", handler.OpenReservedArea)
		r.Post("/close", handler.CloseCarPark)
		r.Get("/availability", handler.GetAvailability)
		r.Get("/status", handler.GetStatus)
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
	}
}

func (s *Server) Start() error {
	logging.Logger().Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	logging.Logger().Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) GetAddress() string {
	return fmt.Sprintf("http://localhost%s", s.httpServer.Addr)
}
