package router // package router defines how HTTP routes are registered for the API

import (
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/todo-auth/internal/handler"
	"github.com/iliyamo/todo-auth/internal/metrics"
	"github.com/iliyamo/todo-auth/internal/middleware"
)

// New returns an echo instance with the error handler and the global
// middleware chain installed.  Order matters: the request id must exist
// before anything logs, and the logger must wrap the metrics middleware so
// both see the final status.
func New(logger logrus.FieldLogger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(logger)
	e.IPExtractor = echo.ExtractIPDirect()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestLogger(logger))
	e.Use(m.HTTPMiddleware())
	e.Use(echomw.BodyLimit("64K"))
	return e
}

// IPExtractor derives the client IP used for per-IP rate limits.  Without
// trusted proxies it is the socket peer address; otherwise X-Forwarded-For
// is honoured only for hops inside the listed CIDRs.
func IPExtractor(trustedProxies []string) (echo.IPExtractor, error) {
	if len(trustedProxies) == 0 {
		return echo.ExtractIPDirect(), nil
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", cidr, err)
		}
		opts = append(opts, echo.TrustIPRange(ipNet))
	}
	return echo.ExtractIPFromXFFHeader(opts...), nil
}

// RegisterRoutes registers routes that do not require authentication:
// the health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, health *handler.Health, m *metrics.Metrics) {
	e.GET("/healthz", health.Handle)
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
}

// RegisterAuth registers the auth endpoints under /api/auth.  Only the
// session check sits behind RequireSession; logout must succeed without a
// live session.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, resolver middleware.SessionResolver) {
	g := e.Group("/api/auth", middleware.NoStore())
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/logout", a.Logout)
	g.GET("/session", a.Me, middleware.RequireSession(resolver))
}
