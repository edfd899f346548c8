// Package core provides the HTTP chassis for the tenantkit API: the chi
// router, the global middleware chain, session and tenant-membership
// guards, and the JSON response envelope. Domain handlers register their
// routes through the registrar slices on Server.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tenantkit/internal/config"
)

// RouteRegistrar mounts a handler's routes on r.
type RouteRegistrar func(r chi.Router)

// Server holds the router and the dependencies its middleware needs.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Authenticator Authenticator
	Orgs          OrgLookup
	Memberships   MembershipLookup
	Flags         FlagChecker
	HealthProbes  []HealthProbe

	// PublicAPI routes live under /api/v1 and need no session.
	PublicAPI []RouteRegistrar
	// SessionAPI routes live under /api/v1 and require a session.
	SessionAPI []RouteRegistrar
	// TenantRoutes live under /{tenant} and require an active membership
	// in that organization.
	TenantRoutes []RouteRegistrar
	// GatedTenantRoutes are tenant routes behind a feature flag. They answer
	// 404 while the flag is off, before any authentication.
	GatedTenantRoutes map[string][]RouteRegistrar

	router *chi.Mux
}

// NewServer validates the critical dependencies and prepares an empty
// router. Callers fill the registrar slices, then call MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests within
// the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + s.Config.Server.Port,
		Handler:      s.router,
		ReadTimeout:  s.Config.Server.ReadTimeout,
		WriteTimeout: s.Config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.Logger.Info("server shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	s.Logger.Info("server shutdown complete")
	return nil
}
