package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/markdave123-py/newsdesk/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/newsdesk/internal/api/middlewares"
	"github.com/markdave123-py/newsdesk/internal/config"
	"github.com/markdave123-py/newsdesk/internal/metrics"
	"github.com/markdave123-py/newsdesk/internal/services"
)

// Services are the collaborators the HTTP layer talks to.
type Services struct {
	Chat      handlers.ChatSender
	Sessions  *services.SessionService
	Health    *services.HealthService
	Readiness *services.Readiness
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, log *zap.Logger, m *metrics.Metrics, svc Services) *Server {
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg, log, m, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{httpServer: httpSrv, log: log}
}

// NewRouter returns the chi router serving the public API.
func NewRouter(cfg *config.Config, log *zap.Logger, m *metrics.Metrics, svc Services) http.Handler {
	chatHandler := handlers.NewChatHandler(svc.Chat, log)
	sessionHandler := handlers.NewSessionHandler(svc.Sessions, log)
	healthHandler := handlers.NewHealthHandler(svc.Health, svc.Readiness)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appMiddleware.RequestLogger(log, m))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/", healthHandler.Root)
	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", m.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Post("/session/new", sessionHandler.Create)
		api.Get("/session/{sessionId}/history", sessionHandler.History)
		api.Delete("/session/{sessionId}", sessionHandler.Delete)
		api.Get("/sessions", sessionHandler.List)
		api.Post("/chat", chatHandler.Chat)
	})

	return r
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
