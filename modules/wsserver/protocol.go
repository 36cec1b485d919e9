package wsserver

import (
	"github.com/example/taskflow-realtime/domain/realtime"
)

// Client-to-server command types.
const (
	CmdJoinProject  = "join:project"
	CmdLeaveProject = "leave:project"
	CmdJoinTask     = "join:task"
	CmdLeaveTask    = "leave:task"
	CmdTypingStart  = "typing:start"
	CmdTypingStop   = "typing:stop"
)

// Server-to-client event types.
const (
	EvtRoomJoined     = "room:joined"
	EvtRoomLeft       = "room:left"
	EvtRoomMembers    = "room:members"
	EvtRoomUserJoined = "room:userJoined"
	EvtRoomUserLeft   = "room:userLeft"
	EvtUserOnline     = "user:online"
	EvtUserOffline    = "user:offline"
	EvtTypingUser     = "typing:user"
	EvtTypingStopped  = "typing:stopped"
	EvtPresenceState  = "presence:state"
)

// JoinProjectPayload carries join:project and leave:project commands.
type JoinProjectPayload struct {
	ProjectID string `json:"projectId"`
}

// JoinTaskPayload carries join:task and leave:task commands.
type JoinTaskPayload struct {
	TaskID string `json:"taskId"`
}

// TypingStartPayload carries the typing:start command.
type TypingStartPayload struct {
	TaskID   string `json:"taskId"`
	UserName string `json:"userName,omitempty"`
}

// TypingStopPayload carries the typing:stop command.
type TypingStopPayload struct {
	TaskID string `json:"taskId"`
}

// RoomRef acknowledges a join or leave to the issuing connection.
type RoomRef struct {
	Room realtime.RoomKind `json:"room"`
	ID   string            `json:"id"`
}

// RoomMembersPayload is the room snapshot sent to a joining connection.
type RoomMembersPayload struct {
	RoomType realtime.RoomKind `json:"roomType"`
	RoomID   string            `json:"roomId"`
	Members  []realtime.Viewer `json:"members"`
}

// RoomUserJoinedPayload announces a new viewer to the other occupants.
type RoomUserJoinedPayload struct {
	RoomType realtime.RoomKind `json:"roomType"`
	RoomID   string            `json:"roomId"`
	User     realtime.Viewer   `json:"user"`
}

// RoomUserLeftPayload announces a departed viewer to the remaining occupants.
type RoomUserLeftPayload struct {
	RoomType realtime.RoomKind `json:"roomType"`
	RoomID   string            `json:"roomId"`
	UserID   string            `json:"userId"`
}

// PresenceStatePayload is the full online list pushed to a new connection.
type PresenceStatePayload struct {
	Users []realtime.PresenceEntry `json:"users"`
}

// TypingUserPayload announces active typing to a task's room.
type TypingUserPayload struct {
	TaskID   string `json:"taskId"`
	UserName string `json:"userName"`
	UserID   string `json:"userId"`
}

// TypingStoppedPayload announces a typing stop, explicit or synthetic.
type TypingStoppedPayload struct {
	TaskID string `json:"taskId"`
	UserID string `json:"userId"`
}
