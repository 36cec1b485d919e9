package presence

import (
	"context"
	"log/slog"

	"github.com/go-monolith/mono"
)

// Module owns the presence tracker for the lifetime of the service.
type Module struct {
	tracker *Tracker
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the presence module.
func NewModule() *Module {
	return &Module{
		tracker: NewTracker(),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "presence"
}

// Start initializes the module.
func (m *Module) Start(_ context.Context) error {
	slog.Info("Presence module started")
	return nil
}

// Stop shuts down the module. Presence state is not persisted.
func (m *Module) Stop(_ context.Context) error {
	slog.Info("Presence module stopped", "online", m.tracker.Count())
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"online_users": m.tracker.Count(),
		},
	}
}

// Tracker returns the presence tracker.
func (m *Module) Tracker() *Tracker {
	return m.tracker
}
