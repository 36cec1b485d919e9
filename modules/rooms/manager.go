package rooms

import (
	"sort"
	"sync"
	"time"

	"github.com/example/taskflow-realtime/domain/realtime"
)

// Manager maintains per-room viewer sets, keyed by user id and
// reference-counted by connection id. A user appears once in a room no
// matter how many of their connections are joined; the Viewer entry is
// removed only when the user's last connection leaves. Rooms are created
// implicitly on first join and dropped when the last viewer leaves.
type Manager struct {
	mu     sync.RWMutex
	rooms  map[realtime.RoomKey]map[string]*member    // room -> userID -> member
	joined map[string]map[realtime.RoomKey]struct{}   // connID -> joined rooms
}

type member struct {
	viewer realtime.Viewer
	conns  map[string]struct{}
}

// JoinResult reports the outcome of a Join.
type JoinResult struct {
	// FirstJoin is true when the user was not previously in the room;
	// a "room:userJoined" broadcast is due only then.
	FirstJoin bool
	// Members is the room snapshot including the joiner, sent back to the
	// joining connection alone.
	Members []realtime.Viewer
}

// NewManager creates an empty room membership manager.
func NewManager() *Manager {
	return &Manager{
		rooms:  make(map[realtime.RoomKey]map[string]*member),
		joined: make(map[string]map[realtime.RoomKey]struct{}),
	}
}

// Join adds the connection to the room. Joining a room the connection is
// already in is a no-op beyond re-sending the snapshot. Concurrent joins by
// two connections of the same user yield exactly one FirstJoin.
func (m *Manager) Join(room realtime.RoomKey, connID string, id realtime.Identity) JoinResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.joined[connID] == nil {
		m.joined[connID] = make(map[realtime.RoomKey]struct{})
	}
	if _, already := m.joined[connID][room]; already {
		return JoinResult{Members: m.membersLocked(room)}
	}
	m.joined[connID][room] = struct{}{}

	occupants := m.rooms[room]
	if occupants == nil {
		occupants = make(map[string]*member)
		m.rooms[room] = occupants
	}

	mem, ok := occupants[id.UserID]
	if !ok {
		mem = &member{
			viewer: realtime.Viewer{
				UserID:   id.UserID,
				UserName: id.UserName,
				Email:    id.Email,
				JoinedAt: time.Now(),
			},
			conns: make(map[string]struct{}),
		}
		occupants[id.UserID] = mem
	}
	mem.conns[connID] = struct{}{}

	return JoinResult{
		FirstJoin: !ok,
		Members:   m.membersLocked(room),
	}
}

// Leave removes the connection from the room. It returns true when that was
// the user's last connection in the room and the Viewer entry was removed;
// the caller broadcasts "room:userLeft" only then.
func (m *Manager) Leave(room realtime.RoomKey, connID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaveLocked(room, connID, userID)
}

func (m *Manager) leaveLocked(room realtime.RoomKey, connID, userID string) bool {
	if conns := m.joined[connID]; conns != nil {
		delete(conns, room)
		if len(conns) == 0 {
			delete(m.joined, connID)
		}
	}

	occupants := m.rooms[room]
	if occupants == nil {
		return false
	}
	mem, ok := occupants[userID]
	if !ok {
		return false
	}

	delete(mem.conns, connID)
	if len(mem.conns) > 0 {
		return false
	}

	delete(occupants, userID)
	if len(occupants) == 0 {
		delete(m.rooms, room)
	}
	return true
}

// DisconnectCleanup performs the equivalent of Leave for every room the
// connection joined, and forgets the connection. It returns the rooms the
// user fully left, so the caller can broadcast "room:userLeft" once per
// room. Safe to call for an unknown connection and idempotent: a second
// call for the same connection returns nothing.
func (m *Manager) DisconnectCleanup(connID, userID string) []realtime.RoomKey {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns := m.joined[connID]
	if conns == nil {
		return nil
	}

	keys := make([]realtime.RoomKey, 0, len(conns))
	for room := range conns {
		keys = append(keys, room)
	}
	// Stable order keeps the departure broadcasts deterministic.
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})

	var left []realtime.RoomKey
	for _, room := range keys {
		if m.leaveLocked(room, connID, userID) {
			left = append(left, room)
		}
	}
	delete(m.joined, connID)
	return left
}

// Members returns the room's viewers ordered by join time.
func (m *Manager) Members(room realtime.RoomKey) []realtime.Viewer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.membersLocked(room)
}

func (m *Manager) membersLocked(room realtime.RoomKey) []realtime.Viewer {
	occupants := m.rooms[room]
	result := make([]realtime.Viewer, 0, len(occupants))
	for _, mem := range occupants {
		result = append(result, mem.viewer)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].JoinedAt.Equal(result[j].JoinedAt) {
			return result[i].UserID < result[j].UserID
		}
		return result[i].JoinedAt.Before(result[j].JoinedAt)
	})
	return result
}

// Connections returns the connection ids of the room's current occupants.
// Used for room-targeted delivery; an unknown room yields nothing.
func (m *Manager) Connections(room realtime.RoomKey) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	occupants := m.rooms[room]
	if occupants == nil {
		return nil
	}
	var connIDs []string
	for _, mem := range occupants {
		for connID := range mem.conns {
			connIDs = append(connIDs, connID)
		}
	}
	return connIDs
}

// JoinedRooms returns the rooms a connection is currently in.
func (m *Manager) JoinedRooms(connID string) []realtime.RoomKey {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := m.joined[connID]
	keys := make([]realtime.RoomKey, 0, len(conns))
	for room := range conns {
		keys = append(keys, room)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// RoomCount returns the number of rooms with at least one viewer.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
