package model

import "time"

// User mirrors a row of the `users` table.  PasswordHash is hex(salt||key)
// and never leaves the server.
type User struct {
	ID           string    `json:"id"`          // users.id (UUID)
	Email        string    `json:"email"`       // users.email, lower-cased and trimmed
	PasswordHash string    `json:"-"`           // users.password_hash
	DisplayName  string    `json:"displayName"` // users.display_name
	IsActive     bool      `json:"isActive"`    // users.is_active
	CreatedAt    time.Time `json:"createdAt"`   // users.created_at
	UpdatedAt    time.Time `json:"updatedAt"`   // users.updated_at
}

// PublicUser is the projection of a user returned to clients.
type PublicUser struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Public strips everything a client must not see.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

// UserUpdate lists the mutable fields of a user.  Nil fields are left as is.
type UserUpdate struct {
	DisplayName *string
	IsActive    *bool
}
