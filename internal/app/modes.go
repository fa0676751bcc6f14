package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Theseuschain/the-prediction-market/internal/archive"
	"github.com/Theseuschain/the-prediction-market/internal/engine"
	"github.com/Theseuschain/the-prediction-market/internal/server"
	"github.com/Theseuschain/the-prediction-market/internal/server/handler"
	"github.com/Theseuschain/the-prediction-market/internal/server/ws"
)

// shutdownTimeout bounds how long in-flight HTTP requests may run after the
// context is cancelled.
const shutdownTimeout = 10 * time.Second

// Serve builds the settlement engine and its API surface on top of the wired
// dependencies and runs everything until the context is cancelled. Optional
// dependencies degrade gracefully: without a signal bus there is no WebSocket
// feed or archiver, without a rate limiter no request throttling.
func (a *App) Serve(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	eng := engine.New(
		deps.Admin,
		deps.Store,
		deps.Clock,
		deps.Dispatcher,
		deps.MarketCache,
		deps.SignalBus,
		a.logger,
	)

	// WebSocket hub — requires the Redis signal bus.
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	// Settlement archiver — uploads a record per resolved market.
	if deps.BlobWriter != nil && deps.SignalBus != nil {
		arch := archive.New(eng, deps.BlobWriter, deps.SignalBus, a.logger)
		g.Go(func() error {
			return arch.Run(ctx)
		})
	}

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(deps.Clock, a.logger),
		Admin:       handler.NewAdminHandler(eng, a.logger),
		Markets:     handler.NewMarketHandler(eng, a.logger),
		Bets:        handler.NewBetHandler(eng, a.logger),
		Resolutions: handler.NewResolutionHandler(eng, a.logger),
		Claims:      handler.NewClaimHandler(eng, a.logger),
		Events:      handler.NewEventHandler(eng, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "http server listening",
			slog.Int("port", a.cfg.Server.Port),
		)
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
