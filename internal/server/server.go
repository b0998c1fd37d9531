package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"postboard/internal/config"
	"postboard/internal/posts"
)

// HealthChecker reports the state of a backing dependency.
type HealthChecker interface {
	Health() map[string]string
}

// Server holds the dependencies for the HTTP server
type Server struct {
	cfg    config.ServerConfig
	store  posts.Store
	db     HealthChecker
	cache  *redis.Client
	logger *slog.Logger
}

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Store  posts.Store
	DB     HealthChecker
	Cache  *redis.Client // nil when caching is disabled
	Logger *slog.Logger
}

// New builds a Server. It does not start listening.
func New(cfg config.ServerConfig, deps Deps) *Server {
	return &Server{
		cfg:    cfg,
		store:  deps.Store,
		db:     deps.DB,
		cache:  deps.Cache,
		logger: deps.Logger,
	}
}

// HTTPServer wires the routes into an *http.Server using the configured timeouts.
func (s *Server) HTTPServer() *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.RegisterRoutes(),
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	s.logger.Info("HTTP server configured", "port", s.cfg.Port)
	return srv
}
