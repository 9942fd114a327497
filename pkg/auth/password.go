package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"math/big"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	upperRe = regexp.MustCompile(`[A-Z]`)
	lowerRe = regexp.MustCompile(`[a-z]`)
	digitRe = regexp.MustCompile(`[0-9]`)
	emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// VerifyPassword compares a plain password with a bcrypt hash
func VerifyPassword(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// MatchTemporaryPassword compares against an admin-issued temporary password in constant time
func MatchTemporaryPassword(password, temporary string) bool {
	if temporary == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(temporary)) == 1
}

// ValidatePasswordStrength checks the minimum password policy
func ValidatePasswordStrength(password string) error {
	switch {
	case len(password) < 8:
		return errors.New("password must be at least 8 characters long")
	case len(password) > 128:
		return errors.New("password must not exceed 128 characters")
	case !upperRe.MatchString(password):
		return errors.New("password must contain at least one uppercase letter")
	case !lowerRe.MatchString(password):
		return errors.New("password must contain at least one lowercase letter")
	case !digitRe.MatchString(password):
		return errors.New("password must contain at least one number")
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

const tempAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"

// GenerateTemporaryPassword returns a random password that satisfies ValidatePasswordStrength
func GenerateTemporaryPassword() (string, error) {
	const length = 12
	for {
		buf := make([]byte, length)
		max := big.NewInt(int64(len(tempAlphabet)))
		for i := range buf {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", err
			}
			buf[i] = tempAlphabet[n.Int64()]
		}
		pw := string(buf)
		if ValidatePasswordStrength(pw) == nil {
			return pw, nil
		}
	}
}
