package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mediabatch/mediabatch-agent/internal/app"
	"github.com/mediabatch/mediabatch-agent/internal/jobs"
	"github.com/mediabatch/mediabatch-agent/internal/playback"
	"github.com/mediabatch/mediabatch-agent/internal/store"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port       int
	Controller *app.Controller
	Alerts     *app.AlertQueue
	Bus        *jobs.EventBus
	Outputs    *playback.Server
	Repository store.Repository
	Logger     *slog.Logger
	StartTime  time.Time
	ClientID   string
	Version    string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler: router,
			// uploads and websocket streams have no write deadline
			ReadTimeout:  15 * time.Second,
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

// URL is the control page address including the access token.
func (s *Server) URL(token string) string {
	return fmt.Sprintf("http://%s/?token=%s", s.httpServer.Addr, token)
}
