package auth

import (
	"errors"
	"testing"
	"time"
)

func TestVerifier_IssueAndVerify(t *testing.T) {
	config := Config{
		Secret:   "test-secret-key",
		Issuer:   "test-issuer",
		TokenTTL: 15 * time.Minute,
	}
	verifier := NewVerifier(config)

	userID := "user-123"
	userName := "Alice"
	email := "alice@example.com"

	token, err := verifier.Issue(userID, userName, email)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if token == "" {
		t.Error("Issue() returned empty token")
	}

	identity, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if identity.UserID != userID {
		t.Errorf("identity.UserID = %v, want %v", identity.UserID, userID)
	}
	if identity.UserName != userName {
		t.Errorf("identity.UserName = %v, want %v", identity.UserName, userName)
	}
	if identity.Email != email {
		t.Errorf("identity.Email = %v, want %v", identity.Email, email)
	}
}

func TestVerifier_NameFallsBackToEmail(t *testing.T) {
	verifier := NewVerifier(DefaultConfig())

	token, err := verifier.Issue("user-123", "", "bob@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	identity, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if identity.UserName != "bob@example.com" {
		t.Errorf("identity.UserName = %v, want email fallback", identity.UserName)
	}
}

func TestVerifier_MissingToken(t *testing.T) {
	verifier := NewVerifier(DefaultConfig())

	_, err := verifier.Verify("")
	if !errors.Is(err, ErrTokenRequired) {
		t.Errorf("Verify(\"\") error = %v, want ErrTokenRequired", err)
	}
}

func TestVerifier_InvalidToken(t *testing.T) {
	verifier := NewVerifier(DefaultConfig())

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "random string",
			token: "not.a.valid.token",
		},
		{
			name:  "malformed jwt",
			token: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid",
		},
		{
			name:  "garbage",
			token: "garbage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestVerifier_WrongSecret(t *testing.T) {
	config1 := Config{Secret: "secret-key-1", Issuer: "test-issuer", TokenTTL: 15 * time.Minute}
	config2 := Config{Secret: "secret-key-2", Issuer: "test-issuer", TokenTTL: 15 * time.Minute}

	verifier1 := NewVerifier(config1)
	verifier2 := NewVerifier(config2)

	token, err := verifier1.Issue("user-123", "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, err = verifier2.Verify(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() with wrong secret error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifier_ExpiredToken(t *testing.T) {
	config := Config{
		Secret:   "test-secret-key",
		Issuer:   "test-issuer",
		TokenTTL: -time.Minute, // already expired when issued
	}
	verifier := NewVerifier(config)

	token, err := verifier.Issue("user-123", "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() of expired token error = %v, want ErrExpiredToken", err)
	}
}

func TestVerifier_MissingUserID(t *testing.T) {
	verifier := NewVerifier(DefaultConfig())

	token, err := verifier.Issue("", "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Verify() without userId error = %v, want ErrAuthFailed", err)
	}
}

func TestError_Reason(t *testing.T) {
	tests := []struct {
		err    *Error
		reason string
	}{
		{ErrTokenRequired, "token required"},
		{ErrInvalidToken, "invalid token"},
		{ErrExpiredToken, "token expired"},
		{ErrAuthFailed, "authentication failed"},
	}

	for _, tt := range tests {
		if tt.err.Reason != tt.reason {
			t.Errorf("Reason = %v, want %v", tt.err.Reason, tt.reason)
		}
	}
}
