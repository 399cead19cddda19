package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/iliyamo/todo-auth/internal/model"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

const userColumns = "id,email,password_hash,display_name,is_active,created_at,updated_at"

// UserRepo stores users in MySQL.
type UserRepo struct {
	DB  *sql.DB
	now func() time.Time
}

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db, now: time.Now} }

// NormalizeEmail lower-cases and trims an email before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts an active user and returns the stored record.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash, displayName string) (*model.User, error) {
	now := r.now().UTC().Truncate(time.Millisecond)
	u := &model.User{
		ID:           uuid.NewString(),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		DisplayName:  strings.TrimSpace(displayName),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?,?,?)",
		u.ID, u.Email, u.PasswordHash, u.DisplayName, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetByEmail fetches an active user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? AND is_active=1 LIMIT 1",
		NormalizeEmail(email))
	return scanUser(row)
}

// GetByID fetches a user by id, active or not.  Callers decide what a
// deactivated account means for them.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// Update applies the non-nil fields of upd and bumps updated_at.
func (r *UserRepo) Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	sets := []string{"updated_at=?"}
	args := []any{r.now().UTC().Truncate(time.Millisecond)}
	if upd.DisplayName != nil {
		sets = append(sets, "display_name=?")
		args = append(args, strings.TrimSpace(*upd.DisplayName))
	}
	if upd.IsActive != nil {
		sets = append(sets, "is_active=?")
		args = append(args, *upd.IsActive)
	}
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ",")+" WHERE id=?", args...)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return nil, ErrUserNotFound
	}
	return r.GetByID(ctx, id)
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
