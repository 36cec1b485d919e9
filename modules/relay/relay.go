package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/example/taskflow-realtime/domain/realtime"
	"github.com/example/taskflow-realtime/events"
)

// Occupants resolves a room's current connection ids.
type Occupants interface {
	Connections(room realtime.RoomKey) []string
}

// Deliverer fans an event out to a set of connections, de-duplicated.
type Deliverer interface {
	SendMany(connIDs []string, msgType string, payload any)
}

// Relay consumes domain events from the pub/sub source and delivers each to
// the connections joined to the affected rooms, and to nobody else.
type Relay struct {
	rooms  Occupants
	hub    Deliverer
	logger *slog.Logger
}

// New creates a relay over the given room index and deliverer.
func New(rooms Occupants, hub Deliverer, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		rooms:  rooms,
		hub:    hub,
		logger: logger,
	}
}

// Run drains the payload stream until it closes. Malformed payloads are
// logged and dropped; the subscription keeps running.
func (r *Relay) Run(payloads <-chan []byte) {
	for payload := range payloads {
		if err := r.Dispatch(payload); err != nil {
			r.logger.Warn("Dropped pub/sub message", "error", err)
		}
	}
}

// Dispatch decodes one pub/sub payload and fans it out. A decode failure is
// returned for logging; an event targeting rooms with no occupants is a
// silent no-op.
func (r *Relay) Dispatch(payload []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("unparseable envelope: %w", err)
	}

	targets, err := targetRooms(env)
	if err != nil {
		return err
	}

	var connIDs []string
	for _, room := range targets {
		connIDs = append(connIDs, r.rooms.Connections(room)...)
	}
	if len(connIDs) == 0 {
		return nil
	}

	// Forward the producer's payload untouched; SendMany de-duplicates
	// connections joined to more than one targeted room.
	r.hub.SendMany(connIDs, env.Event, json.RawMessage(env.Data))
	return nil
}

// targetRooms maps an event to the rooms whose occupants should see it.
// Task mutations go to the owning project's room; updates and deletions
// also reach viewers of the task itself. Comments go to the task room.
func targetRooms(env events.Envelope) ([]realtime.RoomKey, error) {
	switch env.Event {
	case events.TaskCreated:
		var data events.TaskEventData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%s: bad payload: %w", env.Event, err)
		}
		if data.ProjectID == "" {
			return nil, fmt.Errorf("%s: missing projectId", env.Event)
		}
		return []realtime.RoomKey{realtime.ProjectRoom(data.ProjectID)}, nil

	case events.TaskUpdated:
		var data events.TaskEventData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%s: bad payload: %w", env.Event, err)
		}
		if data.ProjectID == "" || data.ID == "" {
			return nil, fmt.Errorf("%s: missing projectId or id", env.Event)
		}
		return []realtime.RoomKey{
			realtime.ProjectRoom(data.ProjectID),
			realtime.TaskRoom(data.ID),
		}, nil

	case events.TaskDeleted:
		var data events.TaskDeletedData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%s: bad payload: %w", env.Event, err)
		}
		if data.ProjectID == "" || data.TaskID == "" {
			return nil, fmt.Errorf("%s: missing projectId or taskId", env.Event)
		}
		return []realtime.RoomKey{
			realtime.ProjectRoom(data.ProjectID),
			realtime.TaskRoom(data.TaskID),
		}, nil

	case events.CommentAdded:
		var data events.CommentEventData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%s: bad payload: %w", env.Event, err)
		}
		if data.TaskID == "" {
			return nil, fmt.Errorf("%s: missing taskId", env.Event)
		}
		return []realtime.RoomKey{realtime.TaskRoom(data.TaskID)}, nil

	default:
		return nil, fmt.Errorf("unknown event type %q", env.Event)
	}
}
