package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/example/taskflow-realtime/domain/realtime"
)

// Tracker maintains the global set of online users, reference-counted by
// connection. It is safe for concurrent use; every public operation commits
// atomically so a Snapshot taken after a reported edge always reflects it.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*entry // userID -> entry
}

type entry struct {
	presence realtime.PresenceEntry
	conns    int
}

// NewTracker creates an empty presence tracker.
func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[string]*entry),
	}
}

// MarkOnline records one connection for the user. It returns true on the
// offline-to-online edge, i.e. when this is the user's first connection;
// the caller broadcasts "user:online" only then.
func (t *Tracker) MarkOnline(id realtime.Identity) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id.UserID]
	if !ok {
		t.entries[id.UserID] = &entry{
			presence: realtime.PresenceEntry{
				UserID:   id.UserID,
				UserName: id.UserName,
				Status:   realtime.StatusOnline,
				LastSeen: time.Now(),
			},
			conns: 1,
		}
		return true
	}

	e.conns++
	e.presence.Status = realtime.StatusOnline
	e.presence.LastSeen = time.Now()
	return false
}

// MarkOffline drops one connection for the user. It returns true when that
// was the user's last connection and the user is now offline; the caller
// broadcasts "user:offline" only then.
func (t *Tracker) MarkOffline(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[userID]
	if !ok {
		return false
	}

	e.conns--
	if e.conns > 0 {
		e.presence.LastSeen = time.Now()
		return false
	}
	delete(t.entries, userID)
	return true
}

// Entry returns the presence entry for a user, if online.
func (t *Tracker) Entry(userID string) (realtime.PresenceEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[userID]
	if !ok {
		return realtime.PresenceEntry{}, false
	}
	return e.presence, true
}

// Snapshot returns all online users ordered by user id. Sent to newly
// connecting clients as the initial presence state.
func (t *Tracker) Snapshot() []realtime.PresenceEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]realtime.PresenceEntry, 0, len(t.entries))
	for _, e := range t.entries {
		result = append(result, e.presence)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UserID < result[j].UserID
	})
	return result
}

// Count returns the number of online users.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
