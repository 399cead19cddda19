package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/todo-auth/internal/apperror"
	"github.com/iliyamo/todo-auth/internal/model"
)

// CookieName carries the session token.
const CookieName = "auth-token"

// sessionLookupTimeout bounds the store calls behind a session check.
const sessionLookupTimeout = 5 * time.Second

// Context keys set by RequireSession.
const (
	ContextUserKey   = "user"
	ContextUserIDKey = "user_id"
	ContextTokenKey  = "auth_token"
)

// SessionResolver resolves a token to the user behind a live session.
type SessionResolver interface {
	Whoami(ctx context.Context, token string) (*model.PublicUser, error)
}

// TokenFromRequest extracts the session token.  A request without any
// Cookie header fails with NO_AUTH_COOKIE; one whose cookies lack a
// non-empty auth-token fails with NO_AUTH_TOKEN.
func TokenFromRequest(r *http.Request) (string, error) {
	if r.Header.Get("Cookie") == "" {
		return "", apperror.NoAuthCookie()
	}
	ck, err := r.Cookie(CookieName)
	if err != nil || ck.Value == "" {
		return "", apperror.NoAuthToken()
	}
	return ck.Value, nil
}

// RequireSession rejects requests without a live session and stores the
// resolved user in the echo context.
func RequireSession(resolver SessionResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := TokenFromRequest(c.Request())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), sessionLookupTimeout)
			user, err := resolver.Whoami(ctx, token)
			cancel()
			if err != nil {
				return err
			}
			c.Set(ContextUserKey, user)
			c.Set(ContextUserIDKey, user.ID)
			c.Set(ContextTokenKey, token)
			return next(c)
		}
	}
}

// UserFromContext returns the user stored by RequireSession.
func UserFromContext(c echo.Context) (*model.PublicUser, bool) {
	u, ok := c.Get(ContextUserKey).(*model.PublicUser)
	return u, ok && u != nil
}

// userID returns the authenticated user id, or "" for anonymous requests.
func userID(c echo.Context) string {
	if v, ok := c.Get(ContextUserIDKey).(string); ok {
		return v
	}
	return ""
}
