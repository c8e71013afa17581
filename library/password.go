package library

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordScheme controls how new passwords are written to the account files.
type PasswordScheme string

const (
	// PasswordsPlain stores passwords as typed, like the original files.
	PasswordsPlain PasswordScheme = "plain"
	// PasswordsBcrypt stores bcrypt hashes.
	PasswordsBcrypt PasswordScheme = "bcrypt"
)

func (s PasswordScheme) seal(password string) (string, error) {
	if s != PasswordsBcrypt {
		return password, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("library: hash password: %w", err)
	}
	return string(hashed), nil
}

// passwordMatches accepts both forms, so switching schemes never locks out
// existing accounts.
func passwordMatches(stored, typed string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(typed)) == nil
	}
	return stored == typed
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}
