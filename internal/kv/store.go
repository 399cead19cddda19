// Package kv is the key-value collaborator shared by sessions and rate
// limiting.  Entries written with a TTL disappear on their own.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps backend failures so callers can tell a miss from an
// outage.
var ErrUnavailable = errors.New("kv: store unavailable")

// Store is the minimal key-value contract.  Get reports a miss with
// ok=false and a nil error.  A ttl <= 0 stores the value without expiry.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
