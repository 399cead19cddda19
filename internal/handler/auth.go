package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/todo-auth/internal/apperror"
	"github.com/iliyamo/todo-auth/internal/middleware"
	"github.com/iliyamo/todo-auth/internal/model"
	"github.com/iliyamo/todo-auth/internal/service"
	"github.com/iliyamo/todo-auth/internal/utils"
)

// requestTimeout bounds store calls; it leaves room for the failed-login delay.
const requestTimeout = 5 * time.Second

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Svc *service.AuthService
	// SecureCookie adds the Secure attribute; set in production.
	SecureCookie bool
}

func NewAuthHandler(svc *service.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{Svc: svc, SecureCookie: secureCookie}
}

type userResp struct {
	User *model.PublicUser `json:"user"`
}

type successResp struct {
	Success bool `json:"success"`
}

// Register: create an account; no session is opened.
func (h *AuthHandler) Register(c echo.Context) error {
	body, err := decodeBody(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Svc.Register(ctx, service.RegisterInput{Body: body, IP: c.RealIP()})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, userResp{User: u})
}

// Login: verify credentials, open a session and set the cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	body, err := decodeBody(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Svc.Login(ctx, service.LoginInput{Body: body, IP: c.RealIP()})
	if err != nil {
		return err
	}
	c.SetCookie(h.sessionCookie(res.Token, int(utils.TokenTTL/time.Second)))
	return c.JSON(http.StatusOK, userResp{User: res.User})
}

// Logout: revoke the session if there is one and always clear the cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(h.sessionCookie("", -1))

	token, err := middleware.TokenFromRequest(c.Request())
	if err != nil {
		// no cookie or no token: nothing to revoke
		return c.JSON(http.StatusOK, successResp{Success: true})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	if err := h.Svc.Logout(ctx, token); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, successResp{Success: true})
}

// Me returns the user resolved by middleware.RequireSession.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.UserFromContext(c)
	if !ok {
		return apperror.NoAuthToken()
	}
	return c.JSON(http.StatusOK, userResp{User: u})
}

// sessionCookie builds the auth cookie.  maxAge < 0 deletes it (Max-Age=0).
func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}

// decodeBody reads a JSON object into a generic map so field types can be
// validated.  An empty body decodes to an empty map.
func decodeBody(c echo.Context) (map[string]any, error) {
	body := map[string]any{}
	dec := json.NewDecoder(c.Request().Body)
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		var he *echo.HTTPError // raised by the body limit middleware
		if errors.As(err, &he) {
			return nil, he
		}
		return nil, apperror.InvalidRequest()
	}
	if body == nil {
		return nil, apperror.InvalidRequest()
	}
	return body, nil
}
