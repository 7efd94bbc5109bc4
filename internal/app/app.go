package app

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"pptlinks-bot/internal/config"
	"pptlinks-bot/internal/repositories"
	"pptlinks-bot/internal/scheduler"
	"pptlinks-bot/internal/services/monitoring"
)

type App struct {
	Config    *config.Config
	Store     repositories.Store
	Provider  monitoring.CourseProvider
	Notifier  monitoring.Notifier
	Monitor   *monitoring.Service
	Scheduler *scheduler.Scheduler
	Server    *http.Server

	logger    zerolog.Logger
	ownsStore bool
}

// Start brings up the scheduler, restores tracking for every active
// subscription, registers maintenance jobs and starts serving HTTP.
func (a *App) Start(ctx context.Context) error {
	if err := a.Scheduler.Start(); err != nil {
		return err
	}

	if _, err := a.Monitor.Restore(ctx); err != nil {
		return err
	}

	retention := a.Config.NotificationRetention
	if err := a.Scheduler.Cron(a.Config.CleanupCron, func() {
		if _, err := a.Monitor.CleanupNotifications(context.Background(), retention); err != nil {
			a.logger.Error().Err(err).Msg("notification cleanup failed")
		}
	}); err != nil {
		return err
	}

	go func() {
		a.logger.Info().Str("addr", a.Server.Addr).Msg("HTTP server listening")
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.Scheduler.Stop()
	if err := a.Server.Shutdown(ctx); err != nil {
		return err
	}
	if a.ownsStore {
		a.Store.Close()
	}
	return nil
}
