// Package main is the entrypoint for the catalog API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kamazennext/catalog/internal/cache"
	"github.com/kamazennext/catalog/internal/catalog"
	"github.com/kamazennext/catalog/internal/config"
	"github.com/kamazennext/catalog/internal/handler"
	"github.com/kamazennext/catalog/internal/importer"
	"github.com/kamazennext/catalog/internal/ledger"
	"github.com/kamazennext/catalog/internal/metrics"
	"github.com/kamazennext/catalog/internal/middleware"
	"github.com/kamazennext/catalog/internal/redirect"
	"github.com/kamazennext/catalog/internal/repository"
	"github.com/kamazennext/catalog/internal/server"
	"github.com/kamazennext/catalog/internal/service"
)

const (
	serviceName = "kamazen-catalog"
	version     = "0.3.0"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	var (
		metricsRecorder metrics.Recorder
		metricsHandler  http.Handler
	)
	switch cfg.MetricsBackend {
	case config.MetricsMemory:
		mem := metrics.NewInMemory()
		metricsRecorder = mem
		metricsHandler = http.HandlerFunc(handler.NewMetricsHandler(mem).Metrics)
	default:
		prom := metrics.NewPrometheus()
		metricsRecorder = prom
		metricsHandler = prom.Handler()
	}

	// Catalog store
	store, err := catalog.New(catalog.Options{
		Path:            cfg.CatalogPath,
		BackupDir:       cfg.BackupDir,
		LockTimeout:     cfg.CatalogLockTimeout,
		BackupRetention: cfg.BackupRetention,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("failed to open catalog", "error", err, "path", cfg.CatalogPath)
		os.Exit(1)
	}
	logger.Info("catalog ready", "path", store.Path(), "backups", store.BackupDir())

	// Click ledger
	var (
		clickLedger ledger.Ledger
		repo        *repository.Repository
	)
	switch cfg.LedgerDriver {
	case config.LedgerDriverPostgres:
		repo, err = repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error(
				"failed to connect to database",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			os.Exit(1)
		}
		defer repo.Close()
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Error("failed to apply schema", "error", sanitizeError(err, cfg.DatabaseURL))
			os.Exit(1)
		}
		clickLedger = repository.NewClickEventRepository(repo)
		logger.Info("click ledger ready", "driver", cfg.LedgerDriver)
	default:
		fileLedger, err := ledger.NewFileLedger(cfg.LedgerDir, logger)
		if err != nil {
			logger.Error("failed to open click ledger", "error", err, "dir", cfg.LedgerDir)
			os.Exit(1)
		}
		clickLedger = fileLedger
		logger.Info("click ledger ready", "driver", cfg.LedgerDriver, "dir", fileLedger.Dir())
	}

	// Optional Redis: shared import sessions and admin rate limiting
	var (
		cacheClient    *cache.Cache
		importSessions importer.SessionStore = importer.NewMemoryStore()
		adminLimiter   middleware.RateLimiter
	)
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			os.Exit(1)
		}
		defer cacheClient.Close()
		importSessions = cache.NewImportSessions(cacheClient)
		adminLimiter = cacheClient
		logger.Info("connected to Redis")
	}

	// Services
	catalogService := service.NewCatalogService(store, logger, metricsRecorder)
	importService := importer.NewService(store, importSessions, importer.Options{
		RequiredColumns: cfg.RequiredColumns(),
		PreviewRows:     cfg.ImportPreviewRows,
		TokenTTL:        cfg.ImportTokenTTL,
		MaxRows:         cfg.ImportMaxRows,
		Logger:          logger,
		Metrics:         metricsRecorder,
	})
	clickRecorder := ledger.NewAsyncRecorder(clickLedger, cfg.ClickAppendTimeout, logger, metricsRecorder)

	// Handlers
	var healthDB, healthCache handler.HealthChecker
	if repo != nil {
		healthDB = repo
	}
	if cacheClient != nil {
		healthCache = cacheClient
	}

	handlers := routerDeps{
		root:     handler.New(serviceName, version),
		health:   handler.NewHealthHandler(store, healthDB, healthCache),
		redirect: handler.NewRedirectHandler(redirect.NewResolver(store), clickRecorder, cfg.ClickIPSalt, metricsRecorder, logger),
		products: handler.NewProductHandler(catalogService, logger),
		imports:  handler.NewImportHandler(importService, cfg.ImportMaxUploadBytes, logger),
		clicks:   handler.NewClicksHandler(clickLedger, logger),
		metrics:  metricsHandler,
		limiter:  adminLimiter,
	}

	r := setupRouter(handlers, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// LIFO: in-flight click appends drain after the HTTP server stops.
	srv.OnShutdown("click-recorder", clickRecorder.Wait)

	if !cfg.AdminEnabled() {
		logger.Warn("ADMIN_PASSWORD_HASH not set, admin API is disabled")
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"ledger", cfg.LedgerDriver,
		"metrics", cfg.MetricsBackend,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", serviceName)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// routerDeps bundles what setupRouter mounts.
type routerDeps struct {
	root     *handler.Handler
	health   *handler.HealthHandler
	redirect *handler.RedirectHandler
	products *handler.ProductHandler
	imports  *handler.ImportHandler
	clicks   *handler.ClicksHandler
	metrics  http.Handler
	limiter  middleware.RateLimiter
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	// Health and metrics endpoints (no auth required)
	r.Get("/healthz", d.health.Healthz)
	r.Get("/readyz", d.health.Readyz)
	r.Method(http.MethodGet, "/metrics", d.metrics)

	r.Get("/", d.root.Index)

	// Outbound redirects, limited per client IP
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitRedirect(middleware.RedirectRateLimitConfig{
			Enabled:  cfg.RateLimitRedirectEnabled,
			Requests: cfg.RateLimitRedirectRequests,
			Window:   cfg.RateLimitRedirectWindow,
		}))
		r.Get("/out", d.redirect.Out)
		r.Get("/go/{slug}", d.redirect.Go)
	})

	security := middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()})

	// Public catalog snapshot
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(security)
		r.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.GetCORSAllowedOrigins(), MaxAge: 300}))

		r.Get("/products", d.products.PublicList)
		r.Get("/products/{slug}", d.products.PublicGet)
	})

	// Admin API. The rate limiter runs before auth so failed logins count.
	r.Route("/admin/api", func(r chi.Router) {
		r.Use(security)
		r.Use(middleware.RateLimitAdmin(middleware.AdminRateLimitConfig{
			Logger:        logger,
			Limiter:       d.limiter,
			RatePerMinute: cfg.RateLimitAdminPerMinute,
			Burst:         cfg.RateLimitAdminBurst,
		}))
		r.Use(middleware.AdminAuth(middleware.AdminAuthConfig{
			Logger:       logger,
			User:         cfg.AdminUser,
			PasswordHash: cfg.AdminPasswordHash,
			SecureCookie: !cfg.IsDevelopment(),
			CookieMaxAge: cfg.AdminSessionTTL,
		}))

		// Uploads carry their own, larger limit.
		r.Post("/import/preview", d.imports.Preview)

		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

			r.Get("/products", d.products.List)
			r.Post("/products", d.products.Create)
			r.Get("/products/{id}", d.products.Get)
			r.Put("/products/{id}", d.products.Update)
			r.Delete("/products/{id}", d.products.Delete)
			r.Get("/backups", d.products.Backups)
			r.Post("/import/commit", d.imports.Commit)
			r.Get("/clicks", d.clicks.Report)
		})
	})

	// 404 and 405 handlers
	r.NotFound(d.root.NotFound)
	r.MethodNotAllowed(d.root.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
