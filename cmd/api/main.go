// Package main is the entrypoint for the Heylo API server.
package main

import (
	"context"
	"crypto/rand"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/heylo/heylo/internal/analytics"
	"github.com/heylo/heylo/internal/auth"
	"github.com/heylo/heylo/internal/cache"
	"github.com/heylo/heylo/internal/config"
	"github.com/heylo/heylo/internal/handler"
	"github.com/heylo/heylo/internal/metrics"
	"github.com/heylo/heylo/internal/middleware"
	"github.com/heylo/heylo/internal/repository"
	"github.com/heylo/heylo/internal/server"
	"github.com/heylo/heylo/internal/service"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	verifier, err := newVerifier(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize token verifier", "error", err)
		os.Exit(1)
	}

	var recorder metrics.Recorder = metrics.NewNoop()
	var snapshotter metrics.Snapshotter
	if cfg.MetricsEnabled {
		inMemory := metrics.NewInMemory()
		recorder = inMemory
		snapshotter = inMemory
	}

	// Services
	pageCache := cache.NewPageCache(cacheClient, cfg.PageCacheTTL)
	accountService := service.NewAccountService(repo, logger)
	analyticsService := service.NewAnalyticsService(repo, accountService)
	pageService := service.NewPageService(repo, accountService, pageCache, recorder, logger)

	var clicks service.ClickSink = analyticsService
	var worker *analytics.Worker
	if cfg.AnalyticsAsync {
		clicks = analytics.NewPublisher(cacheClient.Client(), analyticsService, logger, recorder)

		worker = analytics.NewWorker(cacheClient.Client(), analyticsService, logger, analytics.NewConsumerID(), recorder)
		worker.SetBatchSize(cfg.AnalyticsBatchSize)
		worker.SetBlockTimeout(cfg.AnalyticsPollInterval)
		worker.SetPurger(repo, analytics.DefaultDedupRetention)
	}
	shortlinkService := service.NewShortlinkService(repo, pageCache, clicks, recorder, logger)

	// Handlers
	errs := handler.NewErrorWriter(logger, !cfg.IsProduction())
	handlers := routeHandlers{
		base:      handler.New(version),
		health:    handler.NewHealthHandler(handler.Dependency{Name: "postgres", Checker: repo}, handler.Dependency{Name: "redis", Checker: cacheClient}),
		shortlink: handler.NewShortlinkHandler(shortlinkService, errs, logger),
		resolve:   handler.NewResolveHandler(shortlinkService, errs, cfg.PageBaseURL),
		page:      handler.NewPageHandler(pageService, errs, logger),
		account:   handler.NewAccountHandler(accountService, errs),
		analytics: handler.NewAnalyticsHandler(analyticsService, errs),
	}
	if snapshotter != nil {
		handlers.metrics = handler.NewMetricsHandler(snapshotter)
	}

	authCfg := middleware.AuthConfig{
		Logger:       logger,
		Verifier:     verifier,
		Cache:        cache.NewPrincipalCache(cacheClient, cfg.AuthCacheTTL),
		TokenHashKey: tokenHashKey(cfg, logger),
	}

	r := setupRouter(handlers, authCfg, cacheClient, recorder, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     cfg.IdleTimeout,
		RequestTimeout:  cfg.RequestTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	if worker != nil {
		workerCtx, cancelWorker := context.WithCancel(ctx)
		defer cancelWorker()
		go func() {
			if err := worker.Run(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("analytics worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("analytics_worker", worker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"auth_mode", cfg.AuthMode,
		"analytics_async", cfg.AnalyticsAsync,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "heylo-api")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newVerifier(cfg *config.Config, logger *slog.Logger) (auth.Verifier, error) {
	if cfg.AuthMode == config.AuthModeHMAC {
		logger.Warn("using HMAC development tokens")
		return auth.NewHMACVerifier([]byte(cfg.AuthHMACSecret), cfg.AuthHMACIssuer)
	}
	return auth.NewFirebaseVerifier(cfg.FirebaseProjectID, logger, auth.WithCertsURL(cfg.FirebaseCertsURL)), nil
}

// tokenHashKey returns the configured fingerprint key, or a random one.
// A random key keeps cached principals private to this process.
func tokenHashKey(cfg *config.Config, logger *slog.Logger) []byte {
	if cfg.TokenHashKey != "" {
		return []byte(cfg.TokenHashKey)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		logger.Error("failed to generate token hash key", "error", err)
		os.Exit(1)
	}
	logger.Warn("TOKEN_HASH_KEY not set, principal cache is per process")
	return key
}

type routeHandlers struct {
	base      *handler.Handler
	health    *handler.HealthHandler
	metrics   *handler.MetricsHandler
	shortlink *handler.ShortlinkHandler
	resolve   *handler.ResolveHandler
	page      *handler.PageHandler
	account   *handler.AccountHandler
	analytics *handler.AnalyticsHandler
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h routeHandlers,
	authCfg middleware.AuthConfig,
	limiter middleware.Limiter,
	recorder metrics.Recorder,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger, cfg.IsDevelopment()))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment: cfg.IsDevelopment(),
		NoStorePrefix: "/api/",
	}))
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	corsCfg.AllowCredentials = true
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	r.Get("/healthz", h.health.Healthz)
	r.Get("/readyz", h.health.Readyz)
	if h.metrics != nil {
		r.Get("/metrics", h.metrics.Metrics)
	}
	r.Get("/", h.base.Index)

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:       logger,
		Limiter:      limiter,
		Metrics:      recorder,
		Enabled:      cfg.RateLimitEnabled,
		ResolveRPS:   cfg.RateLimitResolveRPS,
		ResolveBurst: cfg.RateLimitResolveBurst,
	}
	slowDown := middleware.SlowDown(middleware.SlowDownConfig{
		Logger:   logger,
		Limiter:  limiter,
		Enabled:  cfg.SlowDownEnabled,
		Window:   cfg.SlowDownWindow,
		After:    cfg.SlowDownAfter,
		Step:     cfg.SlowDownStep,
		MaxDelay: cfg.SlowDownMaxDelay,
	})
	publicCreate := middleware.Quota(rateLimitCfg, "public_create", cfg.RateLimitPublicCreate, cfg.RateLimitWindow)
	accountWrites := middleware.Quota(rateLimitCfg, "account_write", cfg.RateLimitAccountWrites, cfg.RateLimitWindow)

	r.With(publicCreate).Post("/shortlinks", h.shortlink.Create)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))
		r.Use(middleware.RecordPrincipal)

		r.Get("/page", h.page.Get)
		r.Get("/init", h.page.Init)
		r.Get("/user", h.account.Ensure)
		r.Get("/analytics", h.analytics.Get)

		r.Group(func(r chi.Router) {
			r.Use(accountWrites)

			r.Post("/shortlinks", h.shortlink.Create)
			r.Post("/users", h.account.Ensure)
			r.Put("/users/{id}", h.account.Update)
			r.Post("/page", h.page.Create)
			r.Put("/page/displaytext", h.page.SetDisplayName)
			r.Put("/page/link/add", h.page.AddLink)
			r.Put("/page/link/edit", h.page.EditLink)
			r.Put("/page/link/changeorder", h.page.ReorderLink)
			r.Delete("/page/link/delete/{id}", h.page.DeleteLink)
			r.Put("/page/link/customize/{field}", h.page.SetTheme)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitIP(rateLimitCfg))
		r.Use(slowDown)

		r.Get("/go/{slug}", h.resolve.Redirect)
		r.Get("/{slug}", h.resolve.Resolve)
		r.Post("/{slug}/clicks", h.resolve.TrackClick)
	})

	r.NotFound(h.base.NotFound)
	r.MethodNotAllowed(h.base.MethodNotAllowed)

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
