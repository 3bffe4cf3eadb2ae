// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/merchware/notify/internal/commerce"
	"github.com/merchware/notify/internal/config"
	"github.com/merchware/notify/internal/notifications"
	"github.com/merchware/notify/internal/notifications/email"
	notificationspostgres "github.com/merchware/notify/internal/notifications/postgres"
	"github.com/merchware/notify/internal/notifications/sms"
	"github.com/merchware/notify/internal/pkg/ctxlog"
	"github.com/merchware/notify/internal/pkg/httputil"
	"github.com/merchware/notify/internal/pkg/metrics"
	"github.com/merchware/notify/internal/pkg/postgres"
	"github.com/merchware/notify/internal/version"
	"github.com/merchware/notify/migrations"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc

	dispatcher *notifications.Dispatcher
	worker     *notifications.Worker
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	if cfg.Database.Migrate {
		if err := postgres.Migrate(cfg.Database.URL, migrations.FS); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go app.collectDBMetrics(metricsCtx)

	router, err := app.setupRouter(metricsCtx)
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	// Stop the delivery worker before closing the servers so in-flight
	// tasks finish against a live pool.
	if a.worker != nil {
		a.worker.Stop()
	}

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

// Dispatcher returns the event dispatcher. The host platform raises its
// domain events through it.
func (a *App) Dispatcher() *notifications.Dispatcher {
	return a.dispatcher
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) collectDBMetrics(ctx context.Context) {
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) collectQueueMetrics(ctx context.Context, repo notifications.Repository) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := repo.GetQueueStats(ctx)
			if err != nil {
				slog.Error("failed to get queue stats", "error", err)
				continue
			}
			notifications.RecordQueueStats(stats)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	eventRegistry := notifications.NewEventRegistry()
	if err := commerce.RegisterEvents(eventRegistry); err != nil {
		return nil, fmt.Errorf("register events: %w", err)
	}

	channelRegistry := notifications.NewChannelRegistry()
	if err := channelRegistry.Register(email.NewChannel(email.Config{
		SMTPHost:     a.config.Notifications.Email.SMTPHost,
		SMTPPort:     a.config.Notifications.Email.SMTPPort,
		SMTPUser:     a.config.Notifications.Email.SMTPUser,
		SMTPPassword: a.config.Notifications.Email.SMTPPassword,
		FromAddress:  a.config.Notifications.Email.FromAddress,
		SendTimeout:  a.config.Notifications.Email.SendTimeout,
		RateLimit:    a.config.Notifications.Email.RateLimit,
	})); err != nil {
		return nil, fmt.Errorf("register email channel: %w", err)
	}
	if err := channelRegistry.Register(sms.NewChannel()); err != nil {
		return nil, fmt.Errorf("register sms channel: %w", err)
	}

	repo := notificationspostgres.NewRepository(a.db)
	renderer := notifications.NewRenderer()

	slog.Info("notifications configured",
		"enabled", a.config.Notifications.Enabled,
		"email_configured", a.config.Notifications.Email.SMTPHost != "",
	)

	if a.config.Notifications.Enabled {
		a.dispatcher = notifications.NewDispatcher(
			eventRegistry,
			channelRegistry,
			repo,
			a.config.Notifications.Retry.MaxAttempts,
		)

		workerConfig := notifications.DefaultWorkerConfig()
		workerConfig.BatchSize = a.config.Notifications.Worker.BatchSize
		workerConfig.PollInterval = a.config.Notifications.Worker.PollInterval
		workerConfig.MaxAttempts = a.config.Notifications.Retry.MaxAttempts
		workerConfig.RetryBackoff = a.config.Notifications.Retry.Backoff
		workerConfig.NumWorkers = a.config.Notifications.Worker.NumWorkers
		a.worker = notifications.NewWorker(workerConfig, repo, channelRegistry, renderer)
		a.worker.Start(ctx)

		go a.collectQueueMetrics(ctx, repo)
	}

	service := notifications.NewService(repo, eventRegistry, channelRegistry, renderer)
	handler := notifications.NewHandler(service)

	r.Route("/api/v1", func(r chi.Router) {
		// Capability checks belong to the host platform; standalone
		// deployments run with all capabilities granted.
		handler.RegisterRoutes(r, httputil.AllowAll{})
	})

	return r, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
