// Package server wires the snapshot service: it opens the configured
// storage backend, selects the admin alert channel, mounts the HTTP
// handlers and metrics on a fiber app, and handles graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/dmitrijs2005/promptvault/internal/logging"
	"github.com/dmitrijs2005/promptvault/internal/server/auth"
	"github.com/dmitrijs2005/promptvault/internal/server/config"
	"github.com/dmitrijs2005/promptvault/internal/server/handlers"
	"github.com/dmitrijs2005/promptvault/internal/server/notify"
	"github.com/dmitrijs2005/promptvault/internal/server/snapshots"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	store  snapshots.Backend
	closer io.Closer
	web    *fiber.App
}

// Seams for tests.
var (
	openS3 = func(ctx context.Context, c snapshots.S3Config) (snapshots.Backend, error) {
		return snapshots.NewS3Backend(ctx, c)
	}
	openPostgres = func(ctx context.Context, dsn string) (*snapshots.PostgresBackend, error) {
		return snapshots.OpenPostgres(ctx, dsn)
	}
)

// openBackend builds the configured snapshot store. The returned closer
// is nil for backends without resources to release.
func openBackend(ctx context.Context, cfg *config.Config) (snapshots.Backend, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return snapshots.NewMemory(), nil, nil
	case config.BackendS3:
		b, err := openS3(ctx, snapshots.S3Config{
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
			Bucket:       cfg.S3Bucket,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
		return b, nil, err
	case config.BackendPostgres:
		b, err := openPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func newNotifier(cfg *config.Config, logger logging.Logger) notify.Notifier {
	if cfg.TelegramToken == "" || cfg.TelegramChatID == "" {
		return notify.NewLogNotifier(logger)
	}
	return notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, cfg.NotifyEvery, logger)
}

func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	store, closer, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("backend init error: %w", err)
	}

	if cfg.CacheTTL > 0 {
		store = snapshots.NewCached(store, cfg.CacheTTL)
	}

	app := newApp(cfg, logger, store, newNotifier(cfg, logger), prometheus.NewRegistry())
	app.closer = closer
	return app, nil
}

func newApp(cfg *config.Config, logger logging.Logger, store snapshots.Backend, notifier notify.Notifier, registry *prometheus.Registry) *App {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	web := fiber.New(fiber.Config{
		BodyLimit:             cfg.MaxBodySize,
		DisableStartupMessage: true,
	})
	web.Use(recover.New())

	web.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	metrics := fiberprometheus.NewWithRegistry(registry, "promptvault", "", "", nil)
	web.Use(metrics.Middleware)

	h := handlers.New(store, notifier, handlers.NewMetrics(registry), logger)
	h.Register(web, []byte(cfg.SecretKey))

	return &App{config: cfg, logger: logger, store: store, web: web}
}

// IssueToken mints an access token for user signed with the configured secret.
func IssueToken(cfg *config.Config, user string, admin bool) (string, error) {
	return auth.GenerateToken(user, admin, []byte(cfg.SecretKey), cfg.TokenValidity)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// shuts the listener down and releases the backend.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	return app.serve(ctx)
}

func (app *App) serve(ctx context.Context) error {
	app.logger.Info(ctx, "Starting snapshot service...", "addr", app.config.ListenAddr, "backend", app.config.Backend)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.web.Listen(app.config.ListenAddr)
	}()

	var runErr error
	select {
	case err := <-errCh:
		runErr = err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := app.web.ShutdownWithContext(shutdownCtx); err != nil {
			runErr = fmt.Errorf("shutdown: %w", err)
		}
		<-errCh
	}

	if app.closer != nil {
		if err := app.closer.Close(); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("close backend: %w", err))
		}
	}

	app.logger.Info(context.WithoutCancel(ctx), "snapshot service stopped")
	return runErr
}
