package rooms

import (
	"context"
	"log/slog"

	"github.com/go-monolith/mono"
)

// Module owns the room membership manager for the lifetime of the service.
type Module struct {
	manager *Manager
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the rooms module.
func NewModule() *Module {
	return &Module{
		manager: NewManager(),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "rooms"
}

// Start initializes the module.
func (m *Module) Start(_ context.Context) error {
	slog.Info("Rooms module started")
	return nil
}

// Stop shuts down the module. Room state is purely in-memory.
func (m *Module) Stop(_ context.Context) error {
	slog.Info("Rooms module stopped", "activeRooms", m.manager.RoomCount())
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"active_rooms": m.manager.RoomCount(),
		},
	}
}

// Manager returns the membership manager.
func (m *Module) Manager() *Manager {
	return m.manager
}
