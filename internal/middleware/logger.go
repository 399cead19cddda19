package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/todo-auth/internal/logging"
)

// RequestLogger writes one entry per request: 5xx at Error, 4xx at Warn,
// everything else at Info.  Errors are rendered by echo's error handler
// before logging, unless an inner middleware already did, so the logged
// status is the one the client saw.
func RequestLogger(logger logrus.FieldLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Record start time
			start := time.Now()

			// Continue with request
			err := next(c)
			if err != nil && !c.Response().Committed {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			fields := logrus.Fields{
				"status_code": res.Status,
				"method":      req.Method,
				"path":        req.URL.Path,
				"route":       c.Path(),
				"ip":          c.RealIP(),
				"user_agent":  req.UserAgent(),
				"duration_ms": time.Since(start).Milliseconds(),
				"bytes_out":   res.Size,
			}
			entry := logging.WithRequestID(logger, res.Header().Get(echo.HeaderXRequestID)).WithFields(fields)
			// Add user ID if available
			if uid := userID(c); uid != "" {
				entry = logging.WithUserID(entry, uid)
			}
			if err != nil {
				entry = entry.WithError(err)
			}

			switch {
			case res.Status >= 500:
				entry.Error("HTTP request failed")
			case res.Status >= 400:
				entry.Warn("HTTP request rejected")
			default:
				entry.Info("HTTP request")
			}
			return nil
		}
	}
}
