package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Domenick1991/visitbooking/api"
	"github.com/Domenick1991/visitbooking/config"
	"github.com/Domenick1991/visitbooking/internal/auth"
	"github.com/Domenick1991/visitbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// NewRouter mounts the public API under /api/v1. Everything except
// /health requires a bearer token; /api/v1/admin also requires the admin role.
func NewRouter(service booking.BookingUseCase, tokens api.TokenParser, checks map[string]HealthCheck, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(log))

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": results})
	})

	v1 := router.Group("/api/v1", api.JWTAuth(tokens))
	api.NewBookingHandler(service).Register(v1.Group("/bookings"))
	api.NewPaymentHandler(service).Register(v1.Group("/payments"))
	api.NewAdminHandler(service).Register(v1.Group("/admin", api.RequireRole(auth.RoleAdmin)))

	return router
}

// Run serves handler on cfg.HTTP.Address and blocks until ctx is canceled or the server fails.
func Run(ctx context.Context, cfg *config.Config, handler http.Handler) error {
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}
