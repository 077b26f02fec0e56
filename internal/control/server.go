// Package control implements the control surface (spec.md's expansion,
// §4 C9): a small read-only-plus-protected-action HTTP surface sitting
// alongside the broadcast core, guarded by the teacher's JWT/bcrypt auth
// package. It is not part of the broadcast-correctness core and may be
// disabled entirely by leaving EDIFM_CONTROL_ADDR empty.
//
// Grounded on the teacher's internal/radio/server.go router assembly,
// reduced from a full playlist-CRUD surface down to the handful of routes
// this domain actually needs.
package control

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/arung-agamani/edifm/internal/auth"
	"github.com/arung-agamani/edifm/internal/control/handler"
	"github.com/arung-agamani/edifm/internal/control/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wraps the gin engine and the underlying http.Server, so the
// caller can start it and shut it down alongside the rest of the process.
type Server struct {
	addr string
	http *http.Server
}

// NewServer assembles the control surface's router. svc implements the
// station-facing business logic; a is the configured authenticator.
func NewServer(addr string, a *auth.Auth, svc *service.RadioService) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(SecurityHeadersMiddleware())

	radioHandlers := handler.NewRadioHandlers(svc)
	authHandlers := handler.NewAuthHandlers(a)

	r.GET("/healthz", radioHandlers.Health)
	r.GET("/status", radioHandlers.Status)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/control/login", authHandlers.Login)

	protected := r.Group("/control")
	{
		protected.GET("/verify", RequireAuth(a), authHandlers.VerifyToken)
		protected.POST("/skip", RequireScope(a, auth.ScopeSkip), radioHandlers.Skip)
		protected.POST("/restart", RequireScope(a, auth.ScopeRestart), radioHandlers.Restart)
	}

	return &Server{
		addr: addr,
		http: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("control: listen: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
