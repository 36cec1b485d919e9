package realtime

import "time"

// RoomKind distinguishes the two room namespaces.
type RoomKind string

const (
	RoomProject RoomKind = "project"
	RoomTask    RoomKind = "task"
)

// Valid reports whether the kind is one of the known namespaces.
func (k RoomKind) Valid() bool {
	return k == RoomProject || k == RoomTask
}

// RoomKey identifies a room by kind and owning entity id.
// Rooms exist only while at least one connection is joined.
type RoomKey struct {
	Kind RoomKind `json:"roomType"`
	ID   string   `json:"roomId"`
}

// ProjectRoom returns the room key for a project's viewers.
func ProjectRoom(projectID string) RoomKey {
	return RoomKey{Kind: RoomProject, ID: projectID}
}

// TaskRoom returns the room key for a task's viewers.
func TaskRoom(taskID string) RoomKey {
	return RoomKey{Kind: RoomTask, ID: taskID}
}

// String returns the canonical form, e.g. "project:p1".
func (k RoomKey) String() string {
	return string(k.Kind) + ":" + k.ID
}

// Viewer is a room-scoped presence record for one user. A room holds at
// most one Viewer per user id, regardless of how many of that user's
// connections are joined.
type Viewer struct {
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
	Email    string    `json:"email,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
}

// PresenceStatus is a user's global online state.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusAway    PresenceStatus = "away"
	StatusOffline PresenceStatus = "offline"
)

// PresenceEntry tracks one user's presence independent of room membership.
type PresenceEntry struct {
	UserID   string         `json:"userId"`
	UserName string         `json:"userName,omitempty"`
	Status   PresenceStatus `json:"status"`
	LastSeen time.Time      `json:"lastSeen"`
}

// TypingEntry marks a user actively composing on a task. At most one entry
// exists per (user, task) pair.
type TypingEntry struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	TaskID   string `json:"taskId"`
}

// Identity is the authenticated principal attached to a connection during
// the handshake. No handler runs for a connection without one.
type Identity struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Email    string `json:"email,omitempty"`
}
