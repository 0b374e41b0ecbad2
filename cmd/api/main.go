// Copyright (c) 2026 Atrium. All rights reserved.

// Command api is the entry point for the Atrium HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire HTTP handlers.
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

	adminauth "github.com/atriumhq/atrium/internal/admin/auth"
	"github.com/atriumhq/atrium/internal/api"
	"github.com/atriumhq/atrium/internal/content"
	"github.com/atriumhq/atrium/internal/core/ambassador"
	"github.com/atriumhq/atrium/internal/core/banner"
	"github.com/atriumhq/atrium/internal/core/category"
	"github.com/atriumhq/atrium/internal/platform/config"
	"github.com/atriumhq/atrium/internal/platform/constants"
	"github.com/atriumhq/atrium/internal/platform/migration"
	pgstore "github.com/atriumhq/atrium/internal/platform/postgres"
	redisstore "github.com/atriumhq/atrium/internal/platform/redis"
	"github.com/atriumhq/atrium/internal/platform/sec"
	"github.com/atriumhq/atrium/internal/shop"
	"github.com/atriumhq/atrium/internal/users/account"
	"github.com/atriumhq/atrium/internal/users/identity"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", "atrium"))
	slog.SetDefault(log)

	log.Info("[Atrium] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "atrium"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// Lifetime context for background goroutines (rate-limit cleanup, view
	// flusher). Cancelled when shutdown begins.
	lifetimeCtx, lifetimeCancel := context.WithCancel(context.Background())
	defer lifetimeCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Token & Session Services ───────────────────────────────────────
	jwtSvc, err := sec.NewTokenService(cfg.JWTPrivKeyPath, cfg.JWTPubKeyPath, constants.AuthIssuer)
	must(log, err, "initialize jwt service")

	adminSessions, err := sec.NewAdminSessionService(cfg.SessionSecret, constants.AuthIssuer, constants.AdminSessionTTL)
	must(log, err, "initialize admin session service")

	// ── 7. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 8. Domain Wiring ──────────────────────────────────────────────────

	// Admin wallet authentication.
	adminLimiter := adminauth.NewMemoryLimiter(constants.AdminAuthMaxAttempts, constants.AdminAuthWindow)
	adminLimiter.StartCleanup(lifetimeCtx, constants.AdminAuthWindow)
	adminAuthService := adminauth.NewService(adminSessions, adminLimiter, cfg.AdminWalletList(), cfg.DisableSignatureCheck, log)
	adminAuthHandler := adminauth.NewHandler(adminAuthService, cfg)

	// Identity and accounts.
	userRepository := identity.NewUserRepository(pool)
	identityRepository := identity.NewIdentityRepository(pool)
	sessionRepository := identity.NewSessionRepository(pool)
	stateRepository := identity.NewStateRepository(rdb)
	identityService := identity.NewService(userRepository, identityRepository, sessionRepository, stateRepository, jwtSvc, log)
	oauthManager := identity.NewOAuthManager(stateRepository, cfg.OAuthRedirectBase,
		identity.OAuthCredentials{ClientID: cfg.GoogleClientID, ClientSecret: cfg.GoogleClientSecret},
		identity.OAuthCredentials{ClientID: cfg.GithubClientID, ClientSecret: cfg.GithubClientSecret},
	)
	identityHandler := identity.NewHandler(identityService, oauthManager, cfg)
	accountService := account.NewService(userRepository, log)
	accountHandler := account.NewHandler(accountService)

	// Content pipeline.
	submissionRepository := content.NewSubmissionRepository(pool)
	publishedRepository := content.NewPublishedRepository(pool)
	viewCounter := content.NewRedisViewCounter(rdb)
	contentService := content.NewService(submissionRepository, publishedRepository, viewCounter, log)
	contentService.StartViewFlusher(lifetimeCtx, content.ViewFlushInterval)
	contentHandler := content.NewHandler(contentService)

	// Shop and on-chain reconciliation.
	receipts, err := shop.NewEthereumReceipts(cfg.RPCURL, cfg.ShopContractAddress)
	must(log, err, "connect to chain rpc")
	defer receipts.Close()

	productRepository := shop.NewProductRepository(pool)
	orderRepository := shop.NewOrderRepository(pool)
	shopService := shop.NewService(productRepository, orderRepository, receipts, log)
	shopHandler := shop.NewHandler(shopService)

	// Admin content panels.
	categoryHandler := category.NewHandler(category.NewService(category.NewPostgresRepository(pool), log))
	bannerHandler := banner.NewHandler(banner.NewService(banner.NewPostgresRepository(pool), log))
	ambassadorHandler := ambassador.NewHandler(ambassador.NewService(ambassador.NewPostgresRepository(pool), log))

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:   liveness,
		Readiness:  readiness,
		AdminAuth:  adminAuthHandler,
		Identity:   identityHandler,
		Account:    accountHandler,
		Content:    contentHandler,
		Shop:       shopHandler,
		Category:   categoryHandler,
		Banner:     bannerHandler,
		Ambassador: ambassadorHandler,
	}

	server := api.NewServer(lifetimeCtx, cfg, log, jwtSvc, adminSessions, handlers)

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Stop background goroutines, then drain in-flight requests.
	lifetimeCancel()

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
