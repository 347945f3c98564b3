package service

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// ProctorVerifier checks the shared proctor password. A bcrypt hash, when
// present, replaces the plaintext comparison.
type ProctorVerifier struct {
	plain []byte
	hash  []byte
}

// NewProctorVerifier creates a verifier from the configured password and
// optional bcrypt hash.
func NewProctorVerifier(plain, hash string) *ProctorVerifier {
	v := &ProctorVerifier{plain: []byte(plain)}
	if hash != "" {
		v.hash = []byte(hash)
	}
	return v
}

// Verify reports whether password matches exactly.
func (v *ProctorVerifier) Verify(password string) bool {
	if v.hash != nil {
		return bcrypt.CompareHashAndPassword(v.hash, []byte(password)) == nil
	}
	if len(v.plain) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(v.plain, []byte(password)) == 1
}
