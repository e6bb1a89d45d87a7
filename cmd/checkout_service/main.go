// Package main runs the point-of-sale checkout service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abgdnv/gopos/internal/app"
	"github.com/abgdnv/gopos/internal/config"
	"github.com/abgdnv/gopos/internal/session"
	"github.com/abgdnv/gopos/internal/store"
	"github.com/abgdnv/gopos/pkg/bootstrap"
	"github.com/abgdnv/gopos/pkg/config/configloader"
	"github.com/abgdnv/gopos/pkg/messaging"
	natsclient "github.com/abgdnv/gopos/pkg/nats"
	"github.com/abgdnv/gopos/pkg/server"
	"github.com/abgdnv/gopos/pkg/telemetry"
	"golang.org/x/sync/errgroup"
)

const serviceName = "checkout"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run wires the stores, the event publisher and the servers, and blocks until ctx is cancelled.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.Config](serviceName)
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := bootstrap.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	tp, err := telemetry.NewTracerProvider(ctx, serviceName, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer shutdownWithTimeout(logger, "tracer provider", cfg.Shutdown.Timeout, tp.Shutdown)

	mp, err := telemetry.NewMeterProvider(serviceName)
	if err != nil {
		return err
	}
	defer shutdownWithTimeout(logger, "meter provider", cfg.Shutdown.Timeout, mp.Shutdown)

	if cfg.Database.Migrate {
		if err := store.Migrate(cfg.Database.URL); err != nil {
			return err
		}
		logger.Info("Database migrations applied")
	}

	dbPool, err := bootstrap.NewDbPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer dbPool.Close()
	logger.Info("Successfully connected to the database!")

	redisClient, err := bootstrap.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("Failed to close Redis client", "error", err)
		}
	}()
	logger.Info("Successfully connected to Redis!")

	nc, err := natsclient.NewClient(cfg.Nats.Url, cfg.Nats.Timeout, cfg.Shutdown.EventDrain)
	if err != nil {
		return err
	}
	defer func() {
		if err := nc.Drain(); err != nil {
			logger.Error("Failed to drain NATS connection", "error", err)
		}
	}()
	js, err := natsclient.NewJetStreamContext(nc)
	if err != nil {
		return err
	}
	streamCtx, cancel := context.WithTimeout(ctx, cfg.Nats.Timeout)
	err = natsclient.EnsureSalesStream(streamCtx, js, cfg.Nats.Stream)
	cancel()
	if err != nil {
		return err
	}
	publisher := messaging.NewBreakerPublisher(
		natsclient.NewNatsPublisher(js, cfg.Resilience.Retry, cfg.Resilience.PublishTimeout),
		cfg.Resilience.CircuitBreaker,
		logger,
	)

	deps := app.SetupDependencies(
		store.NewPgStore(dbPool),
		session.NewRedisRepository(redisClient, cfg.Redis.SessionTTL),
		publisher,
		logger,
	)
	httpServer := app.SetupHttpServer(deps, cfg)

	g, gCtx := errgroup.WithContext(ctx)
	serve(gCtx, g, logger, "HTTP", httpServer, cfg.Shutdown.Timeout)
	if cfg.Diagnostics.Enabled {
		serve(gCtx, g, logger, "diagnostics", server.NewDiagnosticsServer(cfg.Diagnostics.Addr, cfg.Diagnostics.Profiling), cfg.Shutdown.Timeout)
	} else {
		logger.Info("Diagnostics server is disabled")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}

// serve starts srv in g and shuts it down once ctx is done.
func serve(ctx context.Context, g *errgroup.Group, logger *slog.Logger, name string, srv *http.Server, shutdownTimeout time.Duration) {
	g.Go(func() error {
		logger.Info("Server listening", "server", name, "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server failed: %w", name, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server", "server", name)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func shutdownWithTimeout(logger *slog.Logger, name string, timeout time.Duration, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Error("Shutdown failed", "component", name, "error", err)
	}
}
