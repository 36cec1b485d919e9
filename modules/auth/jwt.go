package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/taskflow-realtime/domain/realtime"
)

// Error rejects a connection during the websocket handshake. The reason is
// the string sent back to the client before the connection is refused.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "authentication error: " + e.Reason
}

// Handshake failure modes. Any verification fault that is not a missing
// token, bad signature, or expiry maps to ErrAuthFailed.
var (
	ErrTokenRequired = &Error{Reason: "token required"}
	ErrInvalidToken  = &Error{Reason: "invalid token"}
	ErrExpiredToken  = &Error{Reason: "token expired"}
	ErrAuthFailed    = &Error{Reason: "authentication failed"}
)

// Config holds token verification settings.
type Config struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// DefaultConfig returns the default verifier configuration.
// In production the secret is loaded from the JWT_SECRET environment variable.
func DefaultConfig() Config {
	return Config{
		Secret:   "dev-secret-change-in-production",
		Issuer:   "taskflow",
		TokenTTL: 24 * time.Hour,
	}
}

// Claims are the claims carried by a connection token.
type Claims struct {
	UserID   string `json:"userId"`
	UserName string `json:"name,omitempty"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier validates connection tokens against the server-held secret.
type Verifier struct {
	config Config
}

// NewVerifier creates a Verifier with the given configuration.
func NewVerifier(config Config) *Verifier {
	return &Verifier{config: config}
}

// Verify checks the token's signature and claims and returns the identity to
// attach to the connection. Every failure is an *Error; the connection must
// not be opened when one is returned.
func (v *Verifier) Verify(tokenString string) (*realtime.Identity, error) {
	if tokenString == "" {
		return nil, ErrTokenRequired
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(v.config.Secret), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid),
			errors.Is(err, jwt.ErrTokenMalformed),
			errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, ErrInvalidToken
		default:
			return nil, ErrAuthFailed
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrAuthFailed
	}

	name := claims.UserName
	if name == "" {
		name = claims.Email
	}
	return &realtime.Identity{
		UserID:   claims.UserID,
		UserName: name,
		Email:    claims.Email,
	}, nil
}

// Issue mints a signed connection token for the given user. Used by tests
// and local tooling; production tokens come from the auth service.
func (v *Verifier) Issue(userID, name, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		UserName: name,
		Email:    email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.config.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(v.config.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(v.config.Secret))
}
