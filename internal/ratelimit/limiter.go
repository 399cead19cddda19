// Package ratelimit implements fixed-window attempt counters keyed by an
// arbitrary string (client IP, normalized email, ...).
//
// Windows are fixed, not sliding: a burst straddling a window boundary can
// admit up to twice the configured maximum.  Published limits assume this.
package ratelimit

import (
	"context"
	"time"
)

// Limiter counts attempts per key.  CheckRate must be atomic per key so
// that two racing calls cannot both take the last slot.
type Limiter interface {
	// CheckRate records an attempt and reports whether it is allowed.  A
	// rejected attempt does not increment the counter.
	CheckRate(ctx context.Context, key string, max int, window time.Duration) (bool, error)
	// RemainingTime is the time left in key's current window, 0 when the
	// key is unknown or its window has ended.
	RemainingTime(ctx context.Context, key string) (time.Duration, error)
}

// RegisterKey is the per-IP registration counter.
func RegisterKey(ip string) string {
	return "register:" + ip
}

// LoginIPKey is the per-IP login counter.
func LoginIPKey(ip string) string {
	return "login:" + ip
}

// LoginEmailKey is the per-account login counter; email must be normalized.
func LoginEmailKey(email string) string {
	return "login:email:" + email
}
