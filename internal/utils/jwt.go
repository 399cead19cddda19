package utils // package utils provides password hashing and session token helpers

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the fixed lifetime of an issued token.  Sessions use the same
// value so the two expire together.
const TokenTTL = 7 * 24 * time.Hour

var errEmptySecret = errors.New("token secret must not be empty")

// Claims is the token payload.  Times are integer Unix seconds.  The token
// is signed, not encrypted, so nothing secret belongs here.
type Claims struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	IssuedAt  int64  `json:"issuedAt"`
	ExpiresAt int64  `json:"expiresAt"`
}

// The methods below let golang-jwt validate expiry against our own field
// names instead of the registered exp/iat claims.

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}

func (c Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

func (c Claims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c Claims) GetIssuer() (string, error)              { return "", nil }
func (c Claims) GetSubject() (string, error)             { return c.UserID, nil }
func (c Claims) GetAudience() (jwt.ClaimStrings, error)  { return nil, nil }

// TokenCodec signs and verifies HS256 tokens with a single shared secret.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec returns a codec using the wall clock.
func NewTokenCodec(secret string) (*TokenCodec, error) {
	if secret == "" {
		return nil, errEmptySecret
	}
	return &TokenCodec{secret: []byte(secret), ttl: TokenTTL, now: time.Now}, nil
}

// WithClock replaces the time source; used by tests to move time forward.
func (tc *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *tc
	cp.now = now
	return &cp
}

// TTL returns the token lifetime.
func (tc *TokenCodec) TTL() time.Duration { return tc.ttl }

// Sign issues a token for the user valid for TTL from now.
func (tc *TokenCodec) Sign(userID, email string) (string, Claims, error) {
	iat := tc.now().UTC().Unix()
	claims := Claims{
		UserID:    userID,
		Email:     email,
		IssuedAt:  iat,
		ExpiresAt: iat + int64(tc.ttl/time.Second),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(tc.secret)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, claims, nil
}

// Verify returns the payload of a well-formed, correctly signed, unexpired
// token.  Any failure yields (nil, false).
func (tc *TokenCodec) Verify(token string) (*Claims, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, false
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, false
	}
	// Signature first; the payload is not decoded for an unsigned token.
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, tc.secret); err != nil {
		return nil, false
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return tc.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tc.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, false
	}
	if claims.UserID == "" || claims.ExpiresAt < tc.now().Unix() {
		return nil, false
	}
	return claims, true
}
