package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pptlinks-bot/internal/app"
	"pptlinks-bot/internal/config"
	"pptlinks-bot/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	builder := app.NewBuilder(&cfg, logger)
	application, err := builder.Build(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("app build error")
	}

	if err := application.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("app start error")
	}

	waitForShutdown(application, logger)
}

func waitForShutdown(application *app.App, logger zerolog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := application.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
}
