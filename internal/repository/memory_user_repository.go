package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/todo-auth/internal/model"
)

// MemoryUserRepo is a table-backed stand-in for UserRepo used in
// development and tests.  Records are copied in and out so callers never
// share state with the table.
type MemoryUserRepo struct {
	mu      sync.RWMutex
	byID    map[string]*model.User
	byEmail map[string]string // normalized email -> id
	now     func() time.Time
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byID:    make(map[string]*model.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (r *MemoryUserRepo) Create(_ context.Context, email, passwordHash, displayName string) (*model.User, error) {
	email = NormalizeEmail(email)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byEmail[email]; taken {
		return nil, ErrEmailExists
	}
	now := r.now().UTC()
	u := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  strings.TrimSpace(displayName),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byID[u.ID] = u
	r.byEmail[email] = u.ID
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := r.byID[id]
	if !u.IsActive {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepo) Update(_ context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	if upd.DisplayName != nil {
		u.DisplayName = strings.TrimSpace(*upd.DisplayName)
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	u.UpdatedAt = r.now().UTC()
	cp := *u
	return &cp, nil
}
