package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past 72 bytes.
const maxPasswordBytes = 72

// PasswordValidationError contains details about password validation failure.
type PasswordValidationError struct {
	Messages []string
}

func (e *PasswordValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// PasswordPolicy describes the complexity rules applied at signup.
type PasswordPolicy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPasswordPolicy is used when the server config does not override it.
var DefaultPasswordPolicy = PasswordPolicy{
	MinLength:    8,
	RequireUpper: true,
	RequireLower: true,
	RequireDigit: true,
}

// Validate checks a password against the policy and reports every rule it breaks.
func (p PasswordPolicy) Validate(password string) error {
	var messages []string

	if n := utf8.RuneCountInString(password); n < p.MinLength {
		messages = append(messages, fmt.Sprintf("password must be at least %d characters", p.MinLength))
	}
	if len(password) > maxPasswordBytes {
		messages = append(messages, fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case isSpecialChar(r):
			hasSpecial = true
		}
	}

	if p.RequireUpper && !hasUpper {
		messages = append(messages, "password must contain at least 1 uppercase letter")
	}
	if p.RequireLower && !hasLower {
		messages = append(messages, "password must contain at least 1 lowercase letter")
	}
	if p.RequireDigit && !hasDigit {
		messages = append(messages, "password must contain at least 1 digit")
	}
	if p.RequireSpecial && !hasSpecial {
		messages = append(messages, "password must contain at least 1 special character (!@#$%^&*...)")
	}

	if len(messages) > 0 {
		return &PasswordValidationError{Messages: messages}
	}
	return nil
}

// FirstError returns only the first broken rule, for API responses.
func (p PasswordPolicy) FirstError(password string) error {
	err := p.Validate(password)
	var validErr *PasswordValidationError
	if errors.As(err, &validErr) {
		return errors.New(validErr.Messages[0])
	}
	return err
}

func isSpecialChar(r rune) bool {
	return strings.ContainsRune("!@#$%^&*()-_=+[]{}|;:',.<>?/`~\"\\", r)
}

// HashPassword hashes a password with bcrypt at the given cost.
// A cost of 0 uses bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
