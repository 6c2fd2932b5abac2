package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"storefront/internal/infra/config"
	ginserver "storefront/internal/infra/http/gin"
	"storefront/internal/infra/obs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("prod", slog.LevelInfo).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("storefront chat stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("storefront chat stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	metrics := obs.NewMetrics()
	infra, err := buildInfrastructure(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.close(logger, cfg.ShutdownTimeout)

	app := buildApplication(cfg, infra, metrics, logger)
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: infra.checks}, app.handlers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		return ignoreCanceled(app.relay.Run(gctx))
	})
	if app.consumer != nil {
		g.Go(func() error {
			return ignoreCanceled(app.consumer.Run(gctx, []string{cfg.CatalogTopic}))
		})
	}
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
