package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heimdex/heimdex-exporter/internal/export"
	"github.com/heimdex/heimdex-exporter/internal/session"
)

// ExportControl is the part of *export.Control the API drives.
type ExportControl interface {
	Activate(ctx context.Context) (*session.ExportRecord, error)
	State() export.State
	Loading() export.LoadingProps
}

// Pinger reports database liveness for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port        int
	Control     ExportControl
	Repository  session.Repository
	Database    Pinger
	DownloadDir string
	Logger      *slog.Logger
	StartTime   time.Time
	Version     string
	DeviceID    string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:        fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:     router,
			ReadTimeout: 15 * time.Second,
			// Exports stream the whole archive before responding.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
