// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/cinemadb/internal/admin"
	"github.com/carterperez-dev/cinemadb/internal/auth"
	"github.com/carterperez-dev/cinemadb/internal/cache"
	"github.com/carterperez-dev/cinemadb/internal/config"
	"github.com/carterperez-dev/cinemadb/internal/core"
	"github.com/carterperez-dev/cinemadb/internal/events"
	"github.com/carterperez-dev/cinemadb/internal/health"
	"github.com/carterperez-dev/cinemadb/internal/media"
	"github.com/carterperez-dev/cinemadb/internal/middleware"
	"github.com/carterperez-dev/cinemadb/internal/movie"
	"github.com/carterperez-dev/cinemadb/internal/server"
	"github.com/carterperez-dev/cinemadb/internal/user"
)

const (
	drainDelay = 5 * time.Second

	credentialRate  = 10
	credentialBurst = 5
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrate := flag.Bool("migrate", false, "apply pending migrations before serving")
	flag.Parse()

	if err := run(*configPath, *migrate); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string, migrate bool) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if migrate || cfg.Database.AutoMigrate {
		if err := core.Migrate(ctx, db.DB.DB); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	var publisher events.Publisher = events.Noop{}
	var amqpPublisher *events.AMQPPublisher
	if cfg.AMQP.Enabled {
		amqpPublisher, err = events.NewAMQPPublisher(cfg.AMQP)
		if err != nil {
			return err
		}
		publisher = amqpPublisher
		logger.Info("event publisher connected", "exchange", cfg.AMQP.Exchange)
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.KeyID(),
	)

	responseCache := cache.New(redis.Client, cfg.Cache)
	storage := media.NewStorage(cfg.Media)
	pageSize := cfg.Catalog.DefaultPageSize

	movieSvc := movie.NewService(movie.NewRepository(db.DB), storage, publisher)
	movieHandler := movie.NewHandler(movieSvc, responseCache, pageSize, logger)

	userSvc := user.NewService(user.NewRepository(db.DB), storage, publisher)
	userHandler := user.NewHandler(userSvc, responseCache)
	staffUserHandler := user.NewStaffHandler(userSvc, responseCache, pageSize, logger)

	authSvc := auth.NewService(
		auth.NewRepository(db.DB),
		jwtManager,
		userSvc,
		redis.Client,
		publisher,
		cfg.Auth,
	)
	authHandler := auth.NewHandler(authSvc)

	healthHandler := health.NewHandler(db, redis)
	if amqpPublisher != nil {
		healthHandler.WithOptional("amqp", health.CheckerFunc(amqpPublisher.Ping))
	}

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
		Counters: map[string]admin.Counter{
			movie.CacheKey: movieSvc,
			user.CacheKey:  userSvc,
		},
		Cache: responseCache,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen:   true,
			BypassFunc: isProbe,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", authHandler.JWKS)
	router.Get(storage.URLPrefix()+"/*", storage.Handler().ServeHTTP)

	authenticator := middleware.Authenticator(authSvc)
	credentialThrottle := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit:    middleware.PerMinute(credentialRate, credentialBurst),
		KeyFunc:  middleware.KeyByIPAndEndpoint,
		FailOpen: true,
	}).Handler

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(authSvc))

		movie.RegisterRoutes(r, movieHandler)
		user.RegisterStaffRoutes(r, staffUserHandler)

		r.Route("/auth", func(r chi.Router) {
			authHandler.RegisterRoutes(r, authenticator, credentialThrottle)
			userHandler.RegisterRoutes(r, authenticator)
		})

		adminHandler.RegisterRoutes(r, authenticator, middleware.RequireStaff)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if amqpPublisher != nil {
		if err := amqpPublisher.Close(); err != nil {
			logger.Error("event publisher close error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func isProbe(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/livez", "/readyz":
		return true
	}
	return false
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
