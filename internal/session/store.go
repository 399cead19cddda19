// Package session binds issued tokens to user ids in the key-value store.
// A token is only accepted while its session key exists, which is how
// tokens get revoked before they expire.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/todo-auth/internal/kv"
)

const keyPrefix = "session:"

// Store is the session protocol over a kv.Store.
type Store struct {
	kv kv.Store
}

func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

// Key returns the kv key for a token.
func Key(token string) string {
	return keyPrefix + token
}

// Create records that token belongs to userID for ttl.  Sessions are not
// renewed on use.
func (s *Store) Create(ctx context.Context, userID, token string, ttl time.Duration) error {
	if err := s.kv.Put(ctx, Key(token), userID, ttl); err != nil {
		return fmt.Errorf("session create: %w", err)
	}
	return nil
}

// Lookup returns the user bound to token.  ok is false when the session was
// deleted or has expired.
func (s *Store) Lookup(ctx context.Context, token string) (string, bool, error) {
	userID, ok, err := s.kv.Get(ctx, Key(token))
	if err != nil {
		return "", false, fmt.Errorf("session lookup: %w", err)
	}
	if !ok || userID == "" {
		return "", false, nil
	}
	return userID, true, nil
}

// Delete revokes the session.  Deleting an unknown token is not an error.
func (s *Store) Delete(ctx context.Context, token string) error {
	if err := s.kv.Delete(ctx, Key(token)); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}
