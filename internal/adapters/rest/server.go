package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kuroweb/crawlflare/internal/core/port"
)

type Server struct {
	httpServer *http.Server
	logger     port.LoggerPort
}

// NewRouter builds the routing tree. It is separate from NewServer so tests
// can drive it with httptest.
func NewRouter(handlers *CrawlHandlers, baseLogger port.LoggerPort, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP, LoggerMiddleware(baseLogger), middleware.Recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Trace-ID"},
			ExposedHeaders: []string{"X-Trace-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", handlers.HandleHealth)

	r.Route("/api/crawl", func(r chi.Router) {
		r.Post("/execute", handlers.HandleExecuteCrawl)

		r.Route("/results/{productId}", func(r chi.Router) {
			r.Get("/", handlers.HandleListResults)
			r.Delete("/", handlers.HandlePurgeResults)
			r.Get("/{externalId}", handlers.HandleGetResult)
		})
	})

	return r
}

func NewServer(listenPort string, handlers *CrawlHandlers, baseLogger port.LoggerPort, allowedOrigins []string) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + listenPort,
			Handler:           NewRouter(handlers, baseLogger, allowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: baseLogger,
	}
}

// Start blocks until the server stops. A graceful Stop is not an error.
func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", port.Fields{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("Could not start server", err, nil)
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping REST API server...", nil)
	return s.httpServer.Shutdown(ctx)
}
