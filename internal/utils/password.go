package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters.  Changing any of them invalidates every stored hash.
const (
	PBKDF2Iterations = 100000
	SaltLength       = 16
	KeyLength        = 32
)

// EncodedHashLength is the length of a HashPassword result in hex characters.
const EncodedHashLength = 2 * (SaltLength + KeyLength)

// HashPassword derives a PBKDF2-HMAC-SHA256 key from the password and a fresh
// random salt and returns hex(salt || key).
func HashPassword(password string) (string, error) {
	salt := make([]byte, SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key := pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, KeyLength, sha256.New)

	buf := make([]byte, 0, SaltLength+KeyLength)
	buf = append(buf, salt...)
	buf = append(buf, key...)
	return hex.EncodeToString(buf), nil
}

// VerifyPassword reports whether password matches encodedHash.  A malformed
// hash never matches.
func VerifyPassword(encodedHash, password string) bool {
	if len(encodedHash) != EncodedHashLength {
		return false
	}
	raw, err := hex.DecodeString(encodedHash)
	if err != nil || len(raw) != SaltLength+KeyLength {
		return false
	}
	salt, stored := raw[:SaltLength], raw[SaltLength:]
	derived := pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, KeyLength, sha256.New)
	return subtle.ConstantTimeCompare(derived, stored) == 1
}
