package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-monolith/mono"
)

// Module exposes the token verifier to the websocket server.
type Module struct {
	verifier *Verifier
	config   Config
}

// Compile-time interface check
var _ mono.Module = (*Module)(nil)

// NewModule creates the auth module with the given configuration.
func NewModule(config Config) *Module {
	return &Module{
		verifier: NewVerifier(config),
		config:   config,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "auth"
}

// Start validates the configuration.
func (m *Module) Start(_ context.Context) error {
	if m.config.Secret == "" {
		return fmt.Errorf("auth: signing secret is empty")
	}
	if m.config.Secret == DefaultConfig().Secret {
		slog.Warn("Using default JWT secret; set JWT_SECRET in production")
	}
	slog.Info("Auth module started", "issuer", m.config.Issuer)
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	return nil
}

// Verifier returns the token verifier.
func (m *Module) Verifier() *Verifier {
	return m.verifier
}
