package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"pptlinks-bot/internal/config"
	"pptlinks-bot/internal/db"
	"pptlinks-bot/internal/httpapi"
	"pptlinks-bot/internal/providers/pptlinks"
	"pptlinks-bot/internal/render"
	"pptlinks-bot/internal/repositories"
	"pptlinks-bot/internal/repositories/postgres"
	"pptlinks-bot/internal/repositories/sqlite"
	"pptlinks-bot/internal/scheduler"
	"pptlinks-bot/internal/services/monitoring"
	"pptlinks-bot/internal/telegram"
)

type Builder struct {
	cfg          *config.Config
	logger       zerolog.Logger
	basePath     string
	ensureSchema bool

	store     repositories.Store
	provider  monitoring.CourseProvider
	notifier  monitoring.Notifier
	renderer  monitoring.Renderer
	scheduler *scheduler.Scheduler
	server    *http.Server
}

type BuilderOption func(*Builder)

func NewBuilder(cfg *config.Config, logger zerolog.Logger, options ...BuilderOption) *Builder {
	builder := &Builder{
		cfg:          cfg,
		logger:       logger,
		ensureSchema: true,
	}
	for _, option := range options {
		option(builder)
	}
	return builder
}

func WithBasePath(basePath string) BuilderOption {
	return func(b *Builder) {
		b.basePath = basePath
	}
}

func WithEnsureSchema(enabled bool) BuilderOption {
	return func(b *Builder) {
		b.ensureSchema = enabled
	}
}

func WithStore(store repositories.Store) BuilderOption {
	return func(b *Builder) {
		b.store = store
	}
}

func WithProvider(provider monitoring.CourseProvider) BuilderOption {
	return func(b *Builder) {
		b.provider = provider
	}
}

func WithNotifier(notifier monitoring.Notifier) BuilderOption {
	return func(b *Builder) {
		b.notifier = notifier
	}
}

func WithRenderer(renderer monitoring.Renderer) BuilderOption {
	return func(b *Builder) {
		b.renderer = renderer
	}
}

func WithScheduler(scheduler *scheduler.Scheduler) BuilderOption {
	return func(b *Builder) {
		b.scheduler = scheduler
	}
}

func WithHTTPServer(server *http.Server) BuilderOption {
	return func(b *Builder) {
		b.server = server
	}
}

func (b *Builder) Build(ctx context.Context) (*App, error) {
	if b.cfg == nil {
		return nil, errors.New("config is required")
	}
	loc, err := b.cfg.Location()
	if err != nil {
		return nil, err
	}

	app := &App{Config: b.cfg, logger: b.logger.With().Str("component", "app").Logger()}

	if b.store == nil {
		store, err := b.openStore(ctx)
		if err != nil {
			return nil, err
		}
		b.store = store
		app.ownsStore = true
	}
	app.Store = b.store

	if b.provider == nil {
		b.provider = pptlinks.NewClient(b.cfg.CourseAPIBase, b.logger,
			pptlinks.WithTimeout(b.cfg.FetchTimeout),
			pptlinks.WithMaxAttempts(uint(b.cfg.FetchMaxAttempts)),
			pptlinks.WithTimezone(b.cfg.CourseTimezone),
		)
	}
	app.Provider = b.provider

	if b.notifier == nil {
		b.notifier = telegram.NewSender(b.cfg.TelegramToken, b.logger, telegram.WithAPIBase(b.cfg.TelegramAPIBase))
	}
	app.Notifier = b.notifier

	if b.renderer == nil {
		b.renderer = render.New(b.cfg.CourseWebBase, b.cfg.CourseFileBase, loc)
	}

	if b.scheduler == nil {
		b.scheduler = scheduler.New(b.logger)
	}
	app.Scheduler = b.scheduler

	app.Monitor = monitoring.NewService(
		app.Store,
		app.Provider,
		app.Notifier,
		b.renderer,
		app.Scheduler,
		app.Scheduler,
		monitoring.Config{
			PollInterval:       b.cfg.PollInterval,
			Location:           loc,
			RestoreConcurrency: b.cfg.RestoreConcurrency,
		},
		b.logger,
	)

	if b.server == nil {
		handler := httpapi.NewHandler(app.Monitor, app.Scheduler, b.cfg.DefaultCourseID, b.logger)
		b.server = &http.Server{
			Addr:              ":" + b.cfg.HTTPPort,
			Handler:           handler.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	app.Server = b.server

	return app, nil
}

func (b *Builder) openStore(ctx context.Context) (repositories.Store, error) {
	switch b.cfg.DBDriver {
	case config.DriverSQLite:
		conn, err := sqlite.Open(ctx, b.cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return sqlite.NewStore(conn), nil

	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, b.cfg.PostgresDSN())
		if err != nil {
			return nil, err
		}
		if b.ensureSchema {
			basePath, err := b.resolveBasePath()
			if err != nil {
				pool.Close()
				return nil, err
			}
			if err := db.EnsureSchema(ctx, pool, basePath); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return postgres.NewStore(pool), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", b.cfg.DBDriver)
}

func (b *Builder) resolveBasePath() (string, error) {
	basePath := b.basePath
	if basePath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		basePath = wd
	}
	return filepath.Abs(basePath)
}
