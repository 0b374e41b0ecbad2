// Copyright (c) 2026 Atrium. All rights reserved.

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/api are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	adminauth "github.com/atriumhq/atrium/internal/admin/auth"
	"github.com/atriumhq/atrium/internal/content"
	"github.com/atriumhq/atrium/internal/core/ambassador"
	"github.com/atriumhq/atrium/internal/core/banner"
	"github.com/atriumhq/atrium/internal/core/category"
	"github.com/atriumhq/atrium/internal/platform/config"
	"github.com/atriumhq/atrium/internal/platform/constants"
	"github.com/atriumhq/atrium/internal/platform/middleware"
	"github.com/atriumhq/atrium/internal/shop"
	"github.com/atriumhq/atrium/internal/users/account"
	"github.com/atriumhq/atrium/internal/users/identity"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all domain-specific HTTP handler sets.
//
// # Usage
//
// New domains add a field here; no other change to server.go is required.
type Handlers struct {
	// Liveness is the /health handler. Always returns 200 if process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler. Returns 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// AdminAuth handles the wallet challenge/verify flow for admin sessions.
	AdminAuth *adminauth.Handler

	// Identity handles registration, login, OAuth, and identity linking.
	Identity *identity.Handler

	// Account handles user profile reads and updates.
	Account *account.Handler

	// Content handles submissions, moderation, and the published feed.
	Content *content.Handler

	// Shop handles the storefront, orders, and on-chain reconciliation.
	Shop *shop.Handler

	// Category, Banner and Ambassador are the admin-managed content panels.
	Category   *category.Handler
	Banner     *banner.Handler
	Ambassador *ambassador.Handler
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
func NewServer(
	context context.Context,
	cfg *config.Config,
	log *slog.Logger,
	verifier middleware.TokenVerifier,
	adminSessions middleware.AdminSessionVerifier,
	h Handlers,
) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(middleware.RateLimit(context))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.Authenticate(verifier))
	r.Use(middleware.CORS(cfg))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated health probes for container orchestration.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)

	// # Application API
	// Domain-specific route groups mounted under versioned prefix.
	r.Route("/api/v1", func(api chi.Router) {
		api.Mount("/auth/admin", h.AdminAuth.Routes())
		api.Mount("/auth", h.Identity.Routes())

		api.Mount("/users/me/identities", h.Identity.IdentityRoutes())
		api.Mount("/users/me", h.Account.MeRoutes())
		api.Mount("/users", h.Account.PublicRoutes())

		api.Mount("/content", h.Content.Routes())
		api.Mount("/feed", h.Content.FeedRoutes())
		api.Mount("/shop", h.Shop.Routes())

		api.Mount("/categories", h.Category.Routes())
		api.Mount("/banners", h.Banner.Routes())
		api.Mount("/ambassadors", h.Ambassador.Routes())

		// Admin panel: every route below requires a wallet-bound session.
		api.Route("/admin", func(admin chi.Router) {
			admin.Use(middleware.RequireAdmin(adminSessions))

			admin.Mount("/content", h.Content.AdminRoutes())
			admin.Mount("/shop", h.Shop.AdminRoutes())
			admin.Mount("/categories", h.Category.AdminRoutes())
			admin.Mount("/banners", h.Banner.AdminRoutes())
			admin.Mount("/ambassadors", h.Ambassador.AdminRoutes())
		})
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
