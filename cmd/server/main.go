package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Brownie44l1/cvae-api/internal/config"
	"github.com/Brownie44l1/cvae-api/internal/cvae"
	"github.com/Brownie44l1/cvae-api/internal/inject"
	"github.com/Brownie44l1/cvae-api/internal/log"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

const (
	sentryFlushTimeout = 2 * time.Second
	shutdownTimeout    = 10 * time.Second
)

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	logger := log.New(os.Stderr, log.LevelFor(cfg.Environment))
	if envErr != nil {
		logger.Info("no .env file found, using environment variables")
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
			Release:     "cvae-api@" + releaseVersion,
		}); err != nil {
			logger.Error("failed to initialize sentry", "error", err)
		} else {
			defer sentry.Flush(sentryFlushTimeout)
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.NewContext(ctx, logger)

	injector := inject.Setup(ctx, cfg)
	defer func() {
		if err := injector.Shutdown(); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	generator, err := do.Invoke[*cvae.CVAE](injector)
	if err != nil {
		logger.Error("failed to initialize model", "error", err)
		os.Exit(1)
	}
	router, err := do.Invoke[*gin.Engine](injector)
	if err != nil {
		logger.Error("failed to initialize router", "error", err)
		os.Exit(1)
	}

	// The server answers /health while the model loads.
	generator.LoadAsync(ctx, onModelLoaded(logger, cfg.DescriptorURI))

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "port", cfg.Port, "descriptor", cfg.DescriptorURI)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		sentry.CaptureException(err)
		logger.Error("server failed", "error", err)
	}
}

func onModelLoaded(logger *slog.Logger, descriptor string) func(*cvae.CVAE, error) {
	return func(c *cvae.CVAE, err error) {
		if err != nil {
			sentry.CaptureException(err)
			return
		}
		labels, err := c.Labels()
		if err != nil {
			sentry.CaptureException(err)
			logger.Error("model loaded but not usable", "descriptor", descriptor, "error", err)
			return
		}
		logger.Info("model ready", "descriptor", descriptor, "labels", labels)
	}
}
