package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/todo-auth/internal/apperror"
	"github.com/iliyamo/todo-auth/internal/logging"
)

// ErrorHandler renders every failure as the JSON error envelope.  Internal
// causes are logged with the request id and never sent to the client.
func ErrorHandler(logger logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if _, ok := apperror.As(err); !ok && errors.As(err, &he) {
			cause := he.Internal
			if cause == nil {
				cause = he
			}
			err = apperror.FromStatus(he.Code, cause)
		}

		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		status, body := apperror.ToErrorResponse(err, requestID)

		if status >= http.StatusInternalServerError {
			logging.WithRequestID(logger, requestID).WithFields(logrus.Fields{
				"method": c.Request().Method,
				"path":   c.Request().URL.Path,
			}).WithError(err).Error("unhandled error")
		}
		if body.Error.RetryAfter > 0 {
			c.Response().Header().Set("Retry-After", strconv.Itoa(body.Error.RetryAfter))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.WithError(err).Warn("failed to write error response")
		}
	}
}
