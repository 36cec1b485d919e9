package typing

import (
	"sync"
	"time"

	"github.com/example/taskflow-realtime/domain/realtime"
)

// DefaultIdleWindow is how long a typing entry survives without a refresh
// before a synthetic stop is emitted.
const DefaultIdleWindow = 6 * time.Second

type key struct {
	userID string
	taskID string
}

type state struct {
	entry    realtime.TypingEntry
	deadline time.Time
}

// Tracker maintains ephemeral per-task typing state keyed by
// (user, task). Entries expire after an idle window unless refreshed by a
// repeated Start; expiry is detected by a periodic sweep (see Module).
type Tracker struct {
	mu      sync.Mutex
	entries map[key]*state
	idle    time.Duration
}

// NewTracker creates a typing tracker with the given idle window.
func NewTracker(idle time.Duration) *Tracker {
	if idle <= 0 {
		idle = DefaultIdleWindow
	}
	return &Tracker{
		entries: make(map[key]*state),
		idle:    idle,
	}
}

// Start upserts the typing entry for (user, task) and pushes its deadline
// out. It returns true when the entry is new; a "typing:user" broadcast is
// due only then; a refresh stays silent.
func (t *Tracker) Start(userID, userName, taskID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{userID: userID, taskID: taskID}
	s, ok := t.entries[k]
	if !ok {
		s = &state{
			entry: realtime.TypingEntry{
				UserID:   userID,
				UserName: userName,
				TaskID:   taskID,
			},
		}
		t.entries[k] = s
	}
	s.deadline = time.Now().Add(t.idle)
	return !ok
}

// Stop removes the entry for (user, task). It returns true when an entry
// existed; no broadcast is due otherwise.
func (t *Tracker) Stop(userID, taskID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{userID: userID, taskID: taskID}
	if _, ok := t.entries[k]; !ok {
		return false
	}
	delete(t.entries, k)
	return true
}

// Expire removes every entry whose deadline has passed and returns them.
// An entry is returned at most once across repeated sweeps, which keeps the
// synthetic "typing:stopped" for it from ever duplicating.
func (t *Tracker) Expire(now time.Time) []realtime.TypingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []realtime.TypingEntry
	for k, s := range t.entries {
		if now.After(s.deadline) {
			expired = append(expired, s.entry)
			delete(t.entries, k)
		}
	}
	return expired
}

// ClearUser removes all typing entries for a user and returns them, so a
// stop can be broadcast for each. Called when the user's last connection
// disconnects.
func (t *Tracker) ClearUser(userID string) []realtime.TypingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var cleared []realtime.TypingEntry
	for k, s := range t.entries {
		if k.userID == userID {
			cleared = append(cleared, s.entry)
			delete(t.entries, k)
		}
	}
	return cleared
}

// Count returns the number of active typing entries.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
