// Package server assembles the HTTP API for the settlement engine.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Theseuschain/the-prediction-market/internal/domain"
	"github.com/Theseuschain/the-prediction-market/internal/server/handler"
	"github.com/Theseuschain/the-prediction-market/internal/server/middleware"
	"github.com/Theseuschain/the-prediction-market/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string

	// RateLimit caps requests per caller per RateWindow when a limiter is
	// wired. Zero disables rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Admin       *handler.AdminHandler
	Markets     *handler.MarketHandler
	Bets        *handler.BetHandler
	Resolutions *handler.ResolutionHandler
	Claims      *handler.ClaimHandler
	Events      *handler.EventHandler
}

// Server is the HTTP + WebSocket API server for the settlement engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the
// ServeMux. It wires up middleware (signature auth, logging, rate limiting,
// CORS) and attaches the WebSocket hub. The limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (unauthenticated).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Agent configuration and funding.
	mux.HandleFunc("POST /api/admin/market-creator", handlers.Admin.SetMarketCreator)
	mux.HandleFunc("POST /api/admin/resolver-oracle", handlers.Admin.SetResolverOracle)
	mux.HandleFunc("POST /api/admin/deposits", handlers.Admin.Deposit)
	mux.HandleFunc("GET /api/config", handlers.Admin.GetConfig)
	mux.HandleFunc("GET /api/accounts/{account}/balance", handlers.Admin.GetBalance)

	// Market lifecycle and reads.
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/odds", handlers.Markets.GetImpliedOdds)
	mux.HandleFunc("GET /api/markets/{id}/position", handlers.Markets.GetPosition)

	// Betting.
	mux.HandleFunc("POST /api/markets/{id}/bets", handlers.Bets.PlaceBet)

	// Oracle handshake.
	mux.HandleFunc("POST /api/markets/{id}/resolution-requests", handlers.Resolutions.RequestResolution)
	mux.HandleFunc("POST /api/resolution-callback", handlers.Resolutions.ResolveCallback)

	// Settlement.
	mux.HandleFunc("POST /api/markets/{id}/claims", handlers.Claims.ClaimWinnings)

	// Event log.
	mux.HandleFunc("GET /api/events", handlers.Events.ListEvents)
	mux.HandleFunc("GET /api/markets/{id}/events", handlers.Events.MarketEvents)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first: logging sees the
	// authenticated caller, rate limiting keys on it.
	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.SignatureAuth()(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
