// Package users provides account profile and user management endpoints.
package users

import (
	"strings"
	"unicode/utf8"

	"github.com/good-yellow-bee/sitecraft/internal/models"
)

const maxNameLength = 100

// ValidationError contains validation error details.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateName validates a display name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return &ValidationError{Field: "name", Message: "name must be at most 100 characters"}
	}
	return nil
}

// ValidateRole validates a role string.
func ValidateRole(role string) (models.Role, error) {
	switch strings.TrimSpace(strings.ToLower(role)) {
	case "admin":
		return models.RoleAdmin, nil
	case "editor":
		return models.RoleEditor, nil
	case "viewer":
		return models.RoleViewer, nil
	default:
		return "", &ValidationError{Field: "role", Message: "role must be one of: admin, editor, viewer"}
	}
}
