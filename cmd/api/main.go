// Copyright (c) 2026 StorageUp. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the StorageUp HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Build the token service (a missing JWT_SECRET aborts startup).
//  4. Open the credential store selected by STORE_DRIVER.
//  5. Connect to Redis when REDIS_URL is set.
//  6. Wire services and HTTP handlers.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
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

	"github.com/taibuivan/storageup/internal/api"
	"github.com/taibuivan/storageup/internal/platform/config"
	"github.com/taibuivan/storageup/internal/platform/constants"
	"github.com/taibuivan/storageup/internal/platform/mailer"
	"github.com/taibuivan/storageup/internal/platform/middleware"
	"github.com/taibuivan/storageup/internal/platform/migration"
	"github.com/taibuivan/storageup/internal/platform/mongodb"
	pgstore "github.com/taibuivan/storageup/internal/platform/postgres"
	redisstore "github.com/taibuivan/storageup/internal/platform/redis"
	"github.com/taibuivan/storageup/internal/platform/sec"
	"github.com/taibuivan/storageup/internal/users/account"
	"github.com/taibuivan/storageup/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	log := newLogger(slog.LevelInfo)
	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("reset_email_channel", cfg.ResetEmailChannel),
	)

	// Root context for startup. A deadline surfaces misconfiguration quickly
	// instead of hanging on an unreachable dependency.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. Token Service ──────────────────────────────────────────────────
	tokenService, err := sec.NewTokenService(cfg.JWTSecret, constants.AuthIssuer, time.Now)
	must(log, err, "initialize token service")

	// ── 4. Credential Store ───────────────────────────────────────────────
	users, checks, closeStore, err := openUserStore(startupCtx, cfg, log)
	must(log, err, "open credential store")
	defer closeStore()

	// ── 5. Redis (optional) ───────────────────────────────────────────────
	limiterCtx, limiterCancel := context.WithCancel(context.Background())
	defer limiterCancel()

	var forgotPasswordLimiter middleware.KeyedLimiter
	if cfg.RedisURL != "" {
		rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()

		forgotPasswordLimiter = auth.NewRedisRequestLimiter(
			rdb, constants.RedisPrefixForgotPasswordLimit, cfg.ForgotPasswordLimit, cfg.ForgotPasswordWindow)
		checks = append(checks, api.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) },
		})
	} else {
		log.Warn("redis_not_configured", slog.String("effect", "forgot-password limits are per process"))
		forgotPasswordLimiter = middleware.NewRateLimiter(limiterCtx,
			float64(cfg.ForgotPasswordLimit)/cfg.ForgotPasswordWindow.Seconds(), cfg.ForgotPasswordLimit)
	}

	// ── 6. Domain Wiring ──────────────────────────────────────────────────
	resetMailer := mailer.New(cfg.ResetSMTP(), log)
	if !cfg.ResetSMTP().Configured() {
		log.Warn("smtp_not_configured", slog.String("channel", cfg.ResetEmailChannel))
	}

	hasher := sec.NewHasher(cfg.BcryptCost)
	authService := auth.NewService(users, tokenService, hasher, resetMailer, auth.Options{
		SessionTTL:    cfg.JWTExpire,
		ResetTokenTTL: cfg.ResetTokenTTL(),
		StoreTimeout:  cfg.StoreTimeout,
		ClientURL:     cfg.ClientURL,
		Clock:         time.Now,
	})

	resolver := sec.NewResolver()
	authHandler := auth.NewHandler(authService, resolver, cfg.IsProduction()).
		LimitForgotPassword(forgotPasswordLimiter, cfg.ForgotPasswordWindow)

	accountService := account.NewService(users, hasher)
	accountHandler := account.NewHandler(accountService, middleware.Authenticate(authService, resolver))

	liveness, readiness := api.NewHealthHandlers(checks, log)

	// ── 7. HTTP Server ────────────────────────────────────────────────────
	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	server := api.NewServer(serverCtx, cfg, log, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      authHandler,
		Account:   accountHandler,
	})

	// ── 8. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// newLogger builds the process-wide JSON logger and installs it as default.
func newLogger(level slog.Level) *slog.Logger {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("app", constants.AppName))
	slog.SetDefault(log)
	return log
}

// openUserStore connects the driver chosen by STORE_DRIVER and returns the
// repository, its readiness checks and a cleanup function.
func openUserStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (auth.UserRepository, []api.HealthCheck, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		if err := migration.RunUp(cfg.DatabaseURL, log); err != nil {
			return nil, nil, nil, err
		}

		pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL, cfg.StoreTimeout, log)
		if err != nil {
			return nil, nil, nil, err
		}

		checks := []api.HealthCheck{{
			Name:  "postgres",
			Check: func(ctx context.Context) error { return pgstore.Ping(ctx, pool) },
		}}
		closeStore := func() {
			log.Info("closing postgres pool")
			pool.Close()
		}
		return auth.NewPostgresUserRepository(pool), checks, closeStore, nil

	default:
		client, err := mongodb.NewClient(ctx, cfg.MongoURI, log)
		if err != nil {
			return nil, nil, nil, err
		}

		repository := auth.NewMongoUserRepository(client.Database(cfg.MongoDatabase))
		if err := repository.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, nil, err
		}

		checks := []api.HealthCheck{{
			Name:  "mongodb",
			Check: func(ctx context.Context) error { return mongodb.Ping(ctx, client) },
		}}
		closeStore := func() {
			log.Info("closing mongodb client")
			if err := client.Disconnect(context.Background()); err != nil {
				log.Error("mongodb disconnect error", slog.Any("error", err))
			}
		}
		return repository, checks, closeStore, nil
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors are returned
// and handled explicitly.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
