package auth

import (
	"testing"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name        string
		authHeader  string
		wantToken   string
		wantErr     bool
		errContains string
	}{
		{
			name:       "valid bearer token",
			authHeader: "Bearer test-token-123",
			wantToken:  "test-token-123",
			wantErr:    false,
		},
		{
			name:       "valid bearer token with spaces",
			authHeader: "Bearer token-with-spaces",
			wantToken:  "token-with-spaces",
			wantErr:    false,
		},
		{
			name:        "missing authorization header",
			authHeader:  "",
			wantToken:   "",
			wantErr:     true,
			errContains: "missing Authorization header",
		},
		{
			name:        "invalid format - no bearer",
			authHeader:  "test-token-123",
			wantToken:   "",
			wantErr:     true,
			errContains: "invalid Authorization header format",
		},
		{
			name:        "invalid format - no space",
			authHeader:  "Bearertoken",
			wantToken:   "",
			wantErr:     true,
			errContains: "invalid Authorization header format",
		},
		{
			name:        "wrong scheme - not bearer",
			authHeader:  "Basic dGVzdDp0ZXN0",
			wantToken:   "",
			wantErr:     true,
			errContains: "authorization header must use Bearer scheme",
		},
		{
			name:       "case insensitive bearer",
			authHeader: "bearer test-token-123",
			wantToken:  "test-token-123",
			wantErr:    false,
		},
		{
			name:       "uppercase bearer",
			authHeader: "BEARER test-token-123",
			wantToken:  "test-token-123",
			wantErr:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := ExtractToken(tt.authHeader)
			if (err != nil) != tt.wantErr {
				t.Errorf("ExtractToken() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil && tt.errContains != "" {
				if err.Error() != tt.errContains {
					t.Errorf("ExtractToken() error = %v, want %v", err, tt.errContains)
				}
				return
			}
			if token != tt.wantToken {
				t.Errorf("ExtractToken() = %v, want %v", token, tt.wantToken)
			}
		})
	}
}

func TestValidateToken(t *testing.T) {
	tests := []struct {
		name        string
		expected    string
		inputToken  string
		wantErr     bool
		errContains string
	}{
		{
			name:       "valid token match",
			expected:   "test-token-123",
			inputToken: "test-token-123",
			wantErr:    false,
		},
		{
			name:        "invalid token - mismatch",
			expected:    "test-token-123",
			inputToken:  "wrong-token",
			wantErr:     true,
			errContains: "invalid API token",
		},
		{
			name:        "missing configured token",
			expected:    "",
			inputToken:  "any-token",
			wantErr:     true,
			errContains: "API token not configured",
		},
		{
			name:        "empty input token",
			expected:    "test-token-123",
			inputToken:  "",
			wantErr:     true,
			errContains: "invalid API token",
		},
		{
			name:       "token with special characters",
			expected:   "token-with-special-chars-!@#$%",
			inputToken: "token-with-special-chars-!@#$%",
			wantErr:    false,
		},
		{
			name:        "case sensitive token",
			expected:    "Test-Token",
			inputToken:  "test-token",
			wantErr:     true,
			errContains: "invalid API token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateToken(tt.inputToken, tt.expected)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateToken() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil && tt.errContains != "" {
				if err.Error() != tt.errContains {
					t.Errorf("ValidateToken() error = %v, want %v", err, tt.errContains)
				}
			}
		})
	}
}

func TestExtractAndValidateToken(t *testing.T) {
	const configured = "test-token-123"

	tests := []struct {
		name        string
		authHeader  string
		wantErr     bool
		errContains string
	}{
		{
			name:       "valid flow",
			authHeader: "Bearer test-token-123",
			wantErr:    false,
		},
		{
			name:        "invalid header format",
			authHeader:  "invalid",
			wantErr:     true,
			errContains: "invalid Authorization header format",
		},
		{
			name:        "invalid token after extraction",
			authHeader:  "Bearer wrong-token",
			wantErr:     true,
			errContains: "invalid API token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := ExtractToken(tt.authHeader)
			if err != nil {
				if !tt.wantErr {
					t.Errorf("ExtractToken() unexpected error = %v", err)
				}
				return
			}

			err = ValidateToken(token, configured)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateToken() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil && tt.errContains != "" {
				if err.Error() != tt.errContains {
					t.Errorf("ValidateToken() error = %v, want %v", err, tt.errContains)
				}
			}
		})
	}
}
