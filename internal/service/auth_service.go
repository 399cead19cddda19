// Package service implements the register, login, logout and whoami flows.
// Each flow is a linear sequence of checks; the first failing check ends
// the flow with an *apperror.AppError.
package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/todo-auth/internal/apperror"
	"github.com/iliyamo/todo-auth/internal/config"
	"github.com/iliyamo/todo-auth/internal/metrics"
	"github.com/iliyamo/todo-auth/internal/model"
	"github.com/iliyamo/todo-auth/internal/queue"
	"github.com/iliyamo/todo-auth/internal/ratelimit"
	"github.com/iliyamo/todo-auth/internal/repository"
	"github.com/iliyamo/todo-auth/internal/utils"
	"github.com/iliyamo/todo-auth/internal/validate"
)

// Operation names used in metrics and logs.
const (
	OpRegister = "register"
	OpLogin    = "login"
	OpLogout   = "logout"
	OpWhoami   = "whoami"
)

// Rate limit scopes.
const (
	ScopeRegisterIP = "register_ip"
	ScopeLoginIP    = "login_ip"
	ScopeLoginEmail = "login_email"
)

const eventPublishTimeout = 2 * time.Second

// dummyHash is a well-formed hash that no password matches in practice.
const dummyHash = "4c1b7a5e0f3d9e2a6b8c1d4e7f0a3b6c" +
	"9d2e5f8a1b4c7d0e3f6a9b2c5d8e1f4a7b0c3d6e9f2a5b8c1d4e7f0a3b6c9d2e"

// UserStore is the relational collaborator.  GetByEmail only returns
// active users; GetByID returns deactivated ones too.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash, displayName string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error)
}

// SessionStore binds tokens to user ids.
type SessionStore interface {
	Create(ctx context.Context, userID, token string, ttl time.Duration) error
	Lookup(ctx context.Context, token string) (string, bool, error)
	Delete(ctx context.Context, token string) error
}

// Policies are the attempt limits applied by the flows.
type Policies struct {
	Enabled    bool
	Register   config.Policy
	LoginIP    config.Policy
	LoginEmail config.Policy
}

// PoliciesFromConfig copies the configured limits.
func PoliciesFromConfig(cfg config.RateLimitConfig) Policies {
	return Policies{
		Enabled:    cfg.Enabled,
		Register:   cfg.Register(),
		LoginIP:    cfg.LoginIP(),
		LoginEmail: cfg.LoginEmail(),
	}
}

// FailureDelay is the pause applied to every failed login: Min plus a
// uniformly random value in [0, Jitter).
type FailureDelay struct {
	Min    time.Duration
	Jitter time.Duration
}

func (d FailureDelay) next() time.Duration {
	if d.Jitter <= 0 {
		return d.Min
	}
	return d.Min + rand.N(d.Jitter)
}

// Deps are the collaborators of AuthService.  Events, Metrics, Logger and
// Sleep are optional.
type Deps struct {
	Users        UserStore
	Sessions     SessionStore
	Limiter      ratelimit.Limiter
	Tokens       *utils.TokenCodec
	Events       queue.Publisher
	Metrics      *metrics.Metrics
	Logger       logrus.FieldLogger
	Policies     Policies
	FailureDelay FailureDelay
	Sleep        func(time.Duration)
}

// AuthService orchestrates the auth flows.
type AuthService struct {
	d Deps
}

func NewAuthService(d Deps) *AuthService {
	if d.Events == nil {
		d.Events = queue.NopPublisher{}
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.Sleep == nil {
		d.Sleep = time.Sleep
	}
	return &AuthService{d: d}
}

// RegisterInput is a decoded register request.  Body holds the raw JSON
// fields so their types can be validated.
type RegisterInput struct {
	Body map[string]any
	IP   string
}

// LoginInput is a decoded login request.
type LoginInput struct {
	Body map[string]any
	IP   string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User      *model.PublicUser
	Token     string
	ExpiresAt time.Time
}

// Register creates an account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (_ *model.PublicUser, err error) {
	defer s.observe(OpRegister, time.Now(), &err)

	if err := s.checkRate(ctx, ratelimit.RegisterKey(in.IP), s.d.Policies.Register, ScopeRegisterIP); err != nil {
		return nil, err
	}

	body := normalizeEmailField(in.Body)
	if res := validate.Validate(validate.RegisterSchema, body); !res.IsValid {
		return nil, apperror.Validation(res.Errors)
	}
	email := body["email"].(string)
	password := body["password"].(string)
	displayName := strings.TrimSpace(body["displayName"].(string))

	if _, err := s.d.Users.GetByEmail(ctx, email); err == nil {
		return nil, apperror.UserExists()
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperror.Internal(err)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	u, err := s.d.Users.Create(ctx, email, hash, displayName)
	if errors.Is(err, repository.ErrEmailExists) {
		return nil, apperror.UserExists()
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}

	s.d.Logger.WithField("user_id", u.ID).Info("user registered")
	s.publish(ctx, queue.NewAuthEvent(queue.EventRegistered, u.ID, u.Email, in.IP))
	return u.Public(), nil
}

// Login checks credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (_ *LoginResult, err error) {
	defer s.observe(OpLogin, time.Now(), &err)

	body := normalizeEmailField(in.Body)
	if err := s.checkRate(ctx, ratelimit.LoginIPKey(in.IP), s.d.Policies.LoginIP, ScopeLoginIP); err != nil {
		return nil, err
	}
	if email, _ := body["email"].(string); email != "" {
		if err := s.checkRate(ctx, ratelimit.LoginEmailKey(email), s.d.Policies.LoginEmail, ScopeLoginEmail); err != nil {
			return nil, err
		}
	}

	if res := validate.Validate(validate.LoginSchema, body); !res.IsValid {
		return nil, apperror.Validation(res.Errors)
	}
	email := body["email"].(string)
	password := body["password"].(string)

	u, err := s.d.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		// Spend the same PBKDF2 work as a real check before the delay.
		utils.VerifyPassword(dummyHash, password)
		return nil, s.failLogin(ctx, email, in.IP, "unknown_email")
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, s.failLogin(ctx, email, in.IP, "wrong_password")
	}

	token, claims, err := s.d.Tokens.Sign(u.ID, u.Email)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if err := s.d.Sessions.Create(ctx, u.ID, token, s.d.Tokens.TTL()); err != nil {
		return nil, apperror.Internal(err)
	}

	s.d.Logger.WithField("user_id", u.ID).Info("user logged in")
	s.publish(ctx, queue.NewAuthEvent(queue.EventLoggedIn, u.ID, u.Email, in.IP))
	return &LoginResult{
		User:      u.Public(),
		Token:     token,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0).UTC(),
	}, nil
}

// Logout revokes the session of token.  An empty or unknown token is a
// successful no-op.
func (s *AuthService) Logout(ctx context.Context, token string) (err error) {
	defer s.observe(OpLogout, time.Now(), &err)

	if token == "" {
		return nil
	}
	if err := s.d.Sessions.Delete(ctx, token); err != nil {
		return apperror.Internal(err)
	}
	if claims, ok := s.d.Tokens.Verify(token); ok {
		s.publish(ctx, queue.NewAuthEvent(queue.EventLoggedOut, claims.UserID, claims.Email, ""))
	}
	return nil
}

// Whoami resolves the user behind a token.  The token must verify, its
// session must still exist and be bound to the same user, and the account
// must be active.
func (s *AuthService) Whoami(ctx context.Context, token string) (_ *model.PublicUser, err error) {
	defer s.observe(OpWhoami, time.Now(), &err)

	if token == "" {
		return nil, apperror.NoAuthToken()
	}
	claims, ok := s.d.Tokens.Verify(token)
	if !ok {
		return nil, apperror.InvalidToken()
	}

	userID, ok, err := s.d.Sessions.Lookup(ctx, token)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if !ok || userID != claims.UserID {
		return nil, apperror.SessionNotFound()
	}

	u, err := s.d.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperror.UserNotFound()
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if !u.IsActive {
		return nil, apperror.UserDeactivated()
	}
	return u.Public(), nil
}

func (s *AuthService) checkRate(ctx context.Context, key string, p config.Policy, scope string) error {
	if !s.d.Policies.Enabled {
		return nil
	}
	allowed, err := s.d.Limiter.CheckRate(ctx, key, p.Max, p.Window)
	if err != nil {
		return apperror.Internal(err)
	}
	if allowed {
		return nil
	}
	s.d.Metrics.RecordRateLimitRejection(scope)
	left, err := s.d.Limiter.RemainingTime(ctx, key)
	if err != nil {
		return apperror.Internal(err)
	}
	if scope == ScopeLoginEmail {
		return apperror.EmailRateLimited(left)
	}
	return apperror.RateLimited(left)
}

// failLogin applies the failure delay.  The delay is not cut short by
// cancellation.
func (s *AuthService) failLogin(ctx context.Context, email, ip, reason string) error {
	s.d.Sleep(s.d.FailureDelay.next())
	ev := queue.NewAuthEvent(queue.EventLoginFailed, "", email, ip)
	ev.Reason = reason
	s.publish(ctx, ev)
	return apperror.InvalidCredentials()
}

func (s *AuthService) publish(ctx context.Context, ev queue.AuthEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if err := s.d.Events.Publish(ctx, ev); err != nil {
		s.d.Logger.WithError(err).WithField("event", ev.Type).Warn("auth event not published")
	}
}

func (s *AuthService) observe(op string, start time.Time, errp *error) {
	result := metrics.ResultSuccess
	if err := *errp; err != nil {
		result = metrics.ResultRejected
		if appErr, ok := apperror.As(err); !ok || appErr.Code == apperror.CodeInternal {
			result = metrics.ResultError
		}
	}
	s.d.Metrics.RecordAuthOperation(op, result, time.Since(start))
}

// normalizeEmailField returns a copy of body with a string email
// lower-cased and trimmed.
func normalizeEmailField(body map[string]any) map[string]any {
	out := make(map[string]any, len(body))
	for k, v := range body {
		out[k] = v
	}
	if email, ok := out["email"].(string); ok {
		out["email"] = repository.NormalizeEmail(email)
	}
	return out
}
