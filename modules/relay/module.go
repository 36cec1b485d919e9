package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/go-monolith/mono"
)

// Module owns the process-wide pub/sub subscription. It must be registered
// before the websocket server so the subscription is active before any
// client connection is accepted.
type Module struct {
	relay   *Relay
	source  Source
	channel string

	subscribed atomic.Bool
	done       chan struct{}
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the relay module over the given source and channel.
func NewModule(source Source, channel string, rooms Occupants, hub Deliverer) *Module {
	return &Module{
		relay:   New(rooms, hub, slog.Default()),
		source:  source,
		channel: channel,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "relay"
}

// Start subscribes and launches the fanout loop. A subscribe failure is
// fatal for startup.
func (m *Module) Start(ctx context.Context) error {
	payloads, err := m.source.Subscribe(ctx, m.channel)
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	m.subscribed.Store(true)

	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		m.relay.Run(payloads)
	}()

	slog.Info("Relay module started", "channel", m.channel)
	return nil
}

// Stop unsubscribes and waits for the fanout loop to drain.
func (m *Module) Stop(ctx context.Context) error {
	m.subscribed.Store(false)
	if err := m.source.Close(); err != nil {
		slog.Warn("Error closing pub/sub source", "error", err)
	}
	if m.done != nil {
		select {
		case <-m.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	slog.Info("Relay module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	subscribed := m.subscribed.Load()
	msg := "subscribed"
	if !subscribed {
		msg = "not subscribed"
	}
	return mono.HealthStatus{
		Healthy: subscribed,
		Message: msg,
		Details: map[string]any{
			"channel": m.channel,
		},
	}
}
