package auth

import (
	"errors"
	"strings"
)

// ValidateToken compares a presented API token against the configured
// one
func ValidateToken(token, expected string) error {
	if expected == "" {
		return errors.New("API token not configured")
	}

	if token != expected {
		return errors.New("invalid API token")
	}

	return nil
}

// ExtractToken extracts the token from an Authorization header
func ExtractToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("missing Authorization header")
	}

	// Support "Bearer {token}" format
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return "", errors.New("invalid Authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", errors.New("authorization header must use Bearer scheme")
	}

	return parts[1], nil
}
