package typing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-monolith/mono"

	"github.com/example/taskflow-realtime/domain/realtime"
)

// sweepInterval bounds how stale an expired typing indicator can look to
// clients beyond the idle window itself.
const sweepInterval = time.Second

// ExpiryHandler receives entries removed by the sweep so a synthetic
// "typing:stopped" can be broadcast to the task's room.
type ExpiryHandler func(realtime.TypingEntry)

// Module owns the typing tracker and the expiry sweep loop.
type Module struct {
	tracker  *Tracker
	onExpire ExpiryHandler

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the typing module with the given idle window.
func NewModule(idle time.Duration) *Module {
	return &Module{
		tracker: NewTracker(idle),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "typing"
}

// SetExpiryHandler wires the broadcast callback for swept entries.
// Must be called before Start.
func (m *Module) SetExpiryHandler(h ExpiryHandler) {
	m.onExpire = h
}

// Start launches the expiry sweep.
func (m *Module) Start(_ context.Context) error {
	m.stopChan = make(chan struct{})
	m.doneChan = make(chan struct{})
	go m.sweep()
	slog.Info("Typing module started", "idleWindow", m.tracker.idle)
	return nil
}

// sweep periodically expires idle entries and reports them.
func (m *Module) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	defer close(m.doneChan)

	for {
		select {
		case <-m.stopChan:
			return
		case now := <-ticker.C:
			for _, entry := range m.tracker.Expire(now) {
				if m.onExpire != nil {
					m.onExpire(entry)
				}
			}
		}
	}
}

// Stop halts the sweep and waits for it to finish.
func (m *Module) Stop(ctx context.Context) error {
	if m.stopChan == nil {
		return nil
	}
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	select {
	case <-m.doneChan:
	case <-ctx.Done():
		return ctx.Err()
	}
	slog.Info("Typing module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"active_entries": m.tracker.Count(),
		},
	}
}

// Tracker returns the typing tracker.
func (m *Module) Tracker() *Tracker {
	return m.tracker
}
