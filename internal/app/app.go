// Package app provides the top-level application lifecycle for the exchange
// simulator. It wires together the store clients, order source, ledger, and
// engine, and runs the HTTP boundary until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/exchangesim/internal/config"
	"github.com/alanyoungcy/exchangesim/internal/server"
	"github.com/alanyoungcy/exchangesim/internal/server/handler"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, imports simulation
// data when needed, starts the HTTP server, and blocks until the context is
// cancelled. On return it runs all registered cleanup functions.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("exchange", a.cfg.Exchange.Name),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// One-time simulation data import; a no-op when the sentinel is set.
	if deps.Importer != nil {
		if _, err := deps.Importer.Run(ctx, a.cfg.Data.OrderBookFile); err != nil {
			return fmt.Errorf("app: import simulation data: %w", err)
		}
	}

	srv := server.NewServer(
		server.Config{Port: a.cfg.Server.Port},
		server.Handlers{
			Health:   handler.NewHealthHandler(a.logger),
			Exchange: handler.NewExchangeHandler(deps.Engine, deps.Tokens, a.logger),
		},
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
