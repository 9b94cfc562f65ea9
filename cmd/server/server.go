package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/janhq/jan-chat/internal/config"
	"github.com/janhq/jan-chat/internal/domain/generation"
	"github.com/janhq/jan-chat/internal/infrastructure/crontab"
	"github.com/janhq/jan-chat/internal/infrastructure/logger"
	"github.com/janhq/jan-chat/internal/infrastructure/observability"
	"github.com/janhq/jan-chat/internal/interfaces/httpserver"
)

type Application struct {
	httpServer *httpserver.HTTPServer
	crontab    *crontab.Crontab
	runtime    *generation.Runtime
	config     *config.Config
}

func (application *Application) Start(ctx context.Context) error {
	log := logger.GetLogger()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return application.crontab.Run(ctx)
	})
	eg.Go(func() error {
		return application.httpServer.Run(ctx)
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), application.config.ShutdownTimeout)
		defer cancel()
		if err := application.runtime.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("generation runtime did not stop in time")
		}
		return nil
	})
	return eg.Wait()
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log := logger.GetLogger()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if log, err = logger.New(cfg.LogLevel, cfg.LogFormat); err != nil {
		log = logger.GetLogger()
		log.Warn().Err(err).Msg("invalid log settings, keeping defaults")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("initialize observability")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("shutdown telemetry")
			}
		}()
	}

	application, err := CreateApplication()
	if err != nil {
		log.Fatal().Err(err).Msg("create application")
	}

	if err := application.Start(ctx); err != nil {
		log.Error().Err(err).Msg("application stopped with error")
		return
	}
	log.Info().Msg("application stopped")
}
