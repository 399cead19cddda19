// Package repository holds the credential record stores.  Both the MySQL
// and the in-memory implementation report failures with the sentinels
// below so the service layer can map them without knowing the backend.
package repository

import "errors"

// ErrEmailExists is returned by Create when the normalized email is
// already taken.  Handlers translate it into a 409 response.
var ErrEmailExists = errors.New("email already exists")

// ErrUserNotFound is returned when no matching record exists, or when
// GetByEmail matches only a deactivated account.
var ErrUserNotFound = errors.New("user not found")
