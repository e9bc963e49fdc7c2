// Package server provides the HTTP server and routing for the trade ledger.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/tradeledger/internal/config"
	"github.com/aristath/tradeledger/internal/di"
	"github.com/aristath/tradeledger/internal/identity"
	ledgerhandlers "github.com/aristath/tradeledger/internal/modules/ledger/handlers"
	portfoliohandlers "github.com/aristath/tradeledger/internal/modules/portfolio/handlers"
	tradinghandlers "github.com/aristath/tradeledger/internal/modules/trading/handlers"
	universehandlers "github.com/aristath/tradeledger/internal/modules/universe/handlers"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Container *di.Container // DI container with all services
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg.Config,
		container: cfg.Container,
	}
	s.systemHandlers = NewSystemHandlers(cfg.Container, cfg.Config.DataDir, cfg.Log)

	s.setupMiddleware()
	s.setupRoutes(cfg.Config.DevMode)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", identity.HeaderUserID},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Use(identity.Middleware)
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(devMode bool) {
	// Long-lived stream: no request timeout, no compression
	s.router.Get("/ws", s.container.Hub.ServeHTTP)

	s.router.Group(func(r chi.Router) {
		if !devMode {
			r.Use(middleware.Compress(5))
		}

		r.Get("/health", s.handleHealth)

		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			universehandlers.NewUniverseHandlers(s.container.StockService, s.log).RegisterRoutes(r)
			portfoliohandlers.NewHandler(s.container.PortfolioService, s.log).RegisterRoutes(r)
			tradinghandlers.NewTradingHandlers(s.container.TradingService, s.log).RegisterRoutes(r)
			ledgerhandlers.NewHandler(s.container.LedgerStore, s.log).RegisterRoutes(r)

			s.systemHandlers.RegisterRoutes(r)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
