package auth

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	digitRe   = regexp.MustCompile(`[0-9]`)
	specialRe = regexp.MustCompile(`[@$!%*?&#]`)
	emailRe   = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// VerifyPassword compares a plain password with a hashed password
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePasswordStrength checks if a password meets security requirements
func ValidatePasswordStrength(password string) error {
	switch {
	case len(password) < 8:
		return errors.New("password must be at least 8 characters long")
	case len(password) > 72:
		// bcrypt ignores everything past 72 bytes
		return errors.New("password must not exceed 72 characters")
	case !upperRe.MatchString(password):
		return errors.New("password must contain at least one uppercase letter")
	case !lowerRe.MatchString(password):
		return errors.New("password must contain at least one lowercase letter")
	case !digitRe.MatchString(password):
		return errors.New("password must contain at least one number")
	case !specialRe.MatchString(password):
		return errors.New("password must contain at least one special character (@$!%*?&#)")
	}
	return nil
}

// IsValidEmail validates an email address format
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if len(email) < 3 || len(email) > 254 {
		return false
	}
	return emailRe.MatchString(email)
}
