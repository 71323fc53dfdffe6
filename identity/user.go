package identity

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// User is the identity-backend account behind a session. It is only ever
// derived from a session or a backend response, never constructed
// independently.
type User struct {
	ID            string         `json:"id,omitempty"`    // Unique identifier for the user
	Email         string         `json:"email,omitempty"` // User's email address
	EmailVerified bool           `json:"email_verified,omitempty"`
	Providers     []string       `json:"providers,omitempty"` // Identity providers linked to the account
	Metadata      map[string]any `json:"metadata,omitempty"`  // Arbitrary profile metadata, opaque here
	CreatedAt     time.Time      `json:"created_at,omitempty"`
	LastSignInAt  time.Time      `json:"last_sign_in_at,omitempty"`
}

// ValidateEmail performs the shape check applied before any operation that
// sends an email address to the backend.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
// The backend applies its own policy; this keeps obviously-rejected sign-up
// attempts from leaving the client.
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}
