package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"salesdash/internal/api"
	"salesdash/internal/config"
	"salesdash/internal/engine"
	"salesdash/internal/logging"
	"salesdash/internal/metrics"
	"salesdash/internal/realtime"
	"salesdash/internal/tracing"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Configuration and logging
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, logCloser := logging.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(logger)

	shutdownTracing, err := tracing.Init(cfg.Tracing, logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("Tracing shutdown failed", slog.String("error", err.Error()))
		}
	}()

	// 2. Catalog, generator and session
	catalog, err := engine.LoadCatalog(cfg.Data.CatalogFile, cfg.Data.BaseTableFile)
	if err != nil {
		return err
	}
	seed := cfg.Data.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	jitter := engine.UniformJitter{
		Min:    cfg.Data.JitterMin,
		Max:    cfg.Data.JitterMax,
		Source: engine.NewLockedSource(rand.New(rand.NewPCG(seed, seed>>1|1))),
	}
	gen := engine.NewGenerator(catalog, jitter)

	m := metrics.New()
	year, err := cfg.Data.InitialYear(time.Now(), catalog.Years())
	if err != nil {
		return err
	}
	session := engine.NewSession(gen, year,
		engine.WithFetchDelay(cfg.Data.FetchDelay),
		engine.WithObserver(m),
		engine.WithLogger(logger),
	)

	// 3. Live updates
	hub := realtime.NewHub(logger,
		realtime.WithClientCount(m.SetWebsocketClients),
		realtime.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	)
	go hub.Run(ctx)
	unsubscribe := session.Subscribe(hub.PublishSnapshot)
	defer unsubscribe()

	// 4. HTTP
	e := api.NewEcho(cfg.Server, logging.Component(logger, "http"), m.Middleware())
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	api.NewHandler(session, hub, logger).RegisterRoutes(e)

	// 5. Initial load in background; the API answers with an empty state until it lands
	go func() {
		logger.Info("Loading initial sales data", slog.Int("year", year))
		if err := session.Fetch(ctx, year); err != nil && !errors.Is(err, engine.ErrSuperseded) {
			logger.Error("Initial load failed", slog.Int("year", year), slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server ready", slog.String("addr", srv.Addr), slog.Int("year", year))
		if err := e.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// 6. Wait for a signal, then drain
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("Shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}
