// Package auth provides password hashing, signed session cookies and the
// route guard protecting the admin console.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns a salted bcrypt hash of the plaintext password
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches the stored bcrypt hash.
// Unparsable or empty hashes never match.
func CheckPassword(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// dummyHash is a valid bcrypt hash nobody knows the password of
var dummyHash = func() string {
	hash, err := HashPassword("jobportal: no such user")
	if err != nil {
		panic(err)
	}
	return hash
}()

// RejectPassword spends the same bcrypt work as CheckPassword and always fails.
// Used for unknown users, so response time doesn't reveal which usernames exist.
func RejectPassword(plain string) bool {
	_ = CheckPassword(dummyHash, plain)
	return false
}
