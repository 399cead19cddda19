package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/todo-auth/internal/apperror"
	"github.com/iliyamo/todo-auth/internal/model"
)

func TestSecurityHeaders(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders())
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	h := rec.Header()
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", h.Get("X-XSS-Protection"))
	assert.Equal(t, ReferrerPolicy, h.Get("Referrer-Policy"))
	assert.Equal(t, ContentSecurityPolicy, h.Get("Content-Security-Policy"))
	assert.Equal(t, StrictTransportSecurity, h.Get("Strict-Transport-Security"))
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := TokenFromRequest(req)
	assert.True(t, apperror.Is(err, apperror.CodeNoAuthCookie))

	req.Header.Set("Cookie", "theme=dark")
	_, err = TokenFromRequest(req)
	assert.True(t, apperror.Is(err, apperror.CodeNoAuthToken))

	req.Header.Set("Cookie", "theme=dark; auth-token=")
	_, err = TokenFromRequest(req)
	assert.True(t, apperror.Is(err, apperror.CodeNoAuthToken))

	req.Header.Set("Cookie", "theme=dark; auth-token=abc.def.ghi")
	tok, err := TokenFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)
}

type stubResolver struct {
	user        *model.PublicUser
	err         error
	got         string
	hasDeadline bool
}

func (s *stubResolver) Whoami(ctx context.Context, token string) (*model.PublicUser, error) {
	s.got = token
	_, s.hasDeadline = ctx.Deadline()
	return s.user, s.err
}

func TestRequireSession(t *testing.T) {
	e := echo.New()
	resolver := &stubResolver{user: &model.PublicUser{ID: "u1", Email: "a@b.com"}}
	var seen *model.PublicUser
	h := RequireSession(resolver)(func(c echo.Context) error {
		seen, _ = UserFromContext(c)
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "tok"})
	c := e.NewContext(req, httptest.NewRecorder())
	require.NoError(t, h(c))
	assert.Equal(t, "tok", resolver.got)
	assert.True(t, resolver.hasDeadline, "session lookup must be time-bounded")
	require.NotNil(t, seen)
	assert.Equal(t, "u1", seen.ID)
	assert.Equal(t, "u1", userID(c))

	resolver.err = apperror.SessionNotFound()
	c = e.NewContext(req, httptest.NewRecorder())
	err := h(c)
	assert.True(t, apperror.Is(err, apperror.CodeSessionNotFound))
}

func TestRequestLogger_Levels(t *testing.T) {
	logger, hook := test.NewNullLogger()
	e := echo.New()
	e.Use(RequestLogger(logger))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/bad", func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadRequest) })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusInternalServerError) })

	for path, level := range map[string]logrus.Level{
		"/ok":   logrus.InfoLevel,
		"/bad":  logrus.WarnLevel,
		"/boom": logrus.ErrorLevel,
	} {
		hook.Reset()
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Len(t, hook.Entries, 1, path)
		assert.Equal(t, level, hook.LastEntry().Level, path)
		assert.Equal(t, rec.Code, hook.LastEntry().Data["status_code"], path)
	}
}

func TestRequestLogger_KeepsErrorRenderedByInnerMiddleware(t *testing.T) {
	logger, hook := test.NewNullLogger()
	e := echo.New()
	e.Use(RequestLogger(logger))
	// renders the error itself and still returns it, like the metrics middleware
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			return err
		}
	})
	e.GET("/bad", func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadRequest, "bad input") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bad", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, http.StatusBadRequest, entry.Data["status_code"])
	assert.NotNil(t, entry.Data[logrus.ErrorKey])
}

func TestRequestLogger_RequestAndUserFields(t *testing.T) {
	logger, hook := test.NewNullLogger()
	e := echo.New()
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: func() string { return "rid-7" }}))
	e.Use(RequestLogger(logger))
	e.GET("/me", func(c echo.Context) error {
		c.Set(ContextUserIDKey, "u1")
		return c.NoContent(http.StatusOK)
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/me", nil))

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "rid-7", hook.LastEntry().Data["request_id"])
	assert.Equal(t, "u1", hook.LastEntry().Data["user_id"])
}

func TestNoStore(t *testing.T) {
	e := echo.New()
	e.Use(NoStore())
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
