package hub

import (
	"context"
	"log/slog"

	"github.com/go-monolith/mono"
)

// Module owns the connection registry for the lifetime of the service.
type Module struct {
	hub *Hub
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the hub module.
func NewModule() *Module {
	return &Module{
		hub: New(),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "hub"
}

// Start initializes the module.
func (m *Module) Start(_ context.Context) error {
	slog.Info("Hub module started")
	return nil
}

// Stop closes any connections still open after the server stopped
// accepting; their session loops run disconnect cleanup as they unwind.
func (m *Module) Stop(_ context.Context) error {
	remaining := m.hub.Count()
	m.hub.CloseAll()
	slog.Info("Hub module stopped", "closedClients", remaining)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.Count(),
		},
	}
}

// Hub returns the connection registry.
func (m *Module) Hub() *Hub {
	return m.hub
}
