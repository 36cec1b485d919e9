package wsserver

import (
	"encoding/json"
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/taskflow-realtime/domain/realtime"
	"github.com/example/taskflow-realtime/modules/hub"
	"github.com/example/taskflow-realtime/modules/presence"
	"github.com/example/taskflow-realtime/modules/rooms"
	"github.com/example/taskflow-realtime/modules/typing"
)

// identityKey is the fiber.Ctx local under which the auth gate stores the
// verified identity before the websocket upgrade.
const identityKey = "identity"

// Handlers carries the per-connection session logic and the read-only REST
// handlers. All realtime state lives in the injected trackers.
type Handlers struct {
	hub      *hub.Hub
	rooms    *rooms.Manager
	presence *presence.Tracker
	typing   *typing.Tracker
	logger   *slog.Logger
}

// NewHandlers creates a handlers instance over the shared state.
func NewHandlers(h *hub.Hub, r *rooms.Manager, p *presence.Tracker, t *typing.Tracker) *Handlers {
	return &Handlers{
		hub:      h,
		rooms:    r,
		presence: p,
		typing:   t,
		logger:   slog.Default(),
	}
}

// HandleConnection runs one connection's session: register, announce
// presence, process commands in issue order, and clean up exactly once on
// any exit path.
func (h *Handlers) HandleConnection(c *websocket.Conn) {
	identity, ok := c.Locals(identityKey).(realtime.Identity)
	if !ok {
		// The auth gate always runs first; a missing identity means the
		// route was wired wrong. Refuse rather than serve anonymously.
		_ = c.Close()
		return
	}

	client := hub.NewClient(uuid.New().String(), identity, c)
	h.hub.Register(client)
	defer h.Disconnect(client)

	h.logger.Info("Client connected", "connID", client.ID, "userID", identity.UserID)

	// Presence commit happens before the broadcast so a racing snapshot
	// never observes state older than the event.
	if h.presence.MarkOnline(identity) {
		entry, _ := h.presence.Entry(identity.UserID)
		h.hub.BroadcastExcept(client.ID, EvtUserOnline, entry)
	}
	h.hub.Send(client.ID, EvtPresenceState, PresenceStatePayload{Users: h.presence.Snapshot()})

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error", "connID", client.ID, "error", err)
			}
			break
		}

		var msg hub.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.hub.SendError(client.ID, "invalid message format")
			continue
		}
		h.HandleCommand(client, msg)
	}

	h.logger.Info("Client disconnected", "connID", client.ID, "userID", identity.UserID)
}

// HandleCommand dispatches one client command. Malformed commands produce a
// non-fatal error event and mutate nothing.
func (h *Handlers) HandleCommand(client *hub.Client, msg hub.Message) {
	switch msg.Type {
	case CmdJoinProject:
		var p JoinProjectPayload
		if !h.decode(client, msg.Payload, &p) || !h.require(client, p.ProjectID, "projectId") {
			return
		}
		h.join(client, realtime.ProjectRoom(p.ProjectID))

	case CmdLeaveProject:
		var p JoinProjectPayload
		if !h.decode(client, msg.Payload, &p) || !h.require(client, p.ProjectID, "projectId") {
			return
		}
		h.leave(client, realtime.ProjectRoom(p.ProjectID))

	case CmdJoinTask:
		var p JoinTaskPayload
		if !h.decode(client, msg.Payload, &p) || !h.require(client, p.TaskID, "taskId") {
			return
		}
		h.join(client, realtime.TaskRoom(p.TaskID))

	case CmdLeaveTask:
		var p JoinTaskPayload
		if !h.decode(client, msg.Payload, &p) || !h.require(client, p.TaskID, "taskId") {
			return
		}
		h.leave(client, realtime.TaskRoom(p.TaskID))

	case CmdTypingStart:
		var p TypingStartPayload
		if !h.decode(client, msg.Payload, &p) || !h.require(client, p.TaskID, "taskId") {
			return
		}
		h.typingStart(client, p)

	case CmdTypingStop:
		var p TypingStopPayload
		if !h.decode(client, msg.Payload, &p) || !h.require(client, p.TaskID, "taskId") {
			return
		}
		h.typingStop(client, p.TaskID)

	default:
		h.hub.SendError(client.ID, "unknown command: "+msg.Type)
	}
}

func (h *Handlers) decode(client *hub.Client, payload json.RawMessage, dest any) bool {
	if len(payload) == 0 {
		h.hub.SendError(client.ID, "missing payload")
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		h.hub.SendError(client.ID, "invalid payload")
		return false
	}
	return true
}

func (h *Handlers) require(client *hub.Client, value, field string) bool {
	if value == "" {
		h.hub.SendError(client.ID, field+" is required")
		return false
	}
	return true
}

func (h *Handlers) join(client *hub.Client, room realtime.RoomKey) {
	res := h.rooms.Join(room, client.ID, client.Identity)

	h.hub.Send(client.ID, EvtRoomJoined, RoomRef{Room: room.Kind, ID: room.ID})
	h.hub.Send(client.ID, EvtRoomMembers, RoomMembersPayload{
		RoomType: room.Kind,
		RoomID:   room.ID,
		Members:  res.Members,
	})

	if res.FirstJoin {
		var viewer realtime.Viewer
		for _, v := range res.Members {
			if v.UserID == client.Identity.UserID {
				viewer = v
				break
			}
		}
		h.roomBroadcast(room, client.Identity.UserID, EvtRoomUserJoined, RoomUserJoinedPayload{
			RoomType: room.Kind,
			RoomID:   room.ID,
			User:     viewer,
		})
	}
}

func (h *Handlers) leave(client *hub.Client, room realtime.RoomKey) {
	userLeft := h.rooms.Leave(room, client.ID, client.Identity.UserID)

	h.hub.Send(client.ID, EvtRoomLeft, RoomRef{Room: room.Kind, ID: room.ID})

	if userLeft {
		h.roomBroadcast(room, client.Identity.UserID, EvtRoomUserLeft, RoomUserLeftPayload{
			RoomType: room.Kind,
			RoomID:   room.ID,
			UserID:   client.Identity.UserID,
		})
	}
}

func (h *Handlers) typingStart(client *hub.Client, p TypingStartPayload) {
	userName := p.UserName
	if userName == "" {
		userName = client.Identity.UserName
	}

	if h.typing.Start(client.Identity.UserID, userName, p.TaskID) {
		h.roomBroadcast(realtime.TaskRoom(p.TaskID), client.Identity.UserID, EvtTypingUser, TypingUserPayload{
			TaskID:   p.TaskID,
			UserName: userName,
			UserID:   client.Identity.UserID,
		})
	}
}

func (h *Handlers) typingStop(client *hub.Client, taskID string) {
	if h.typing.Stop(client.Identity.UserID, taskID) {
		h.roomBroadcast(realtime.TaskRoom(taskID), client.Identity.UserID, EvtTypingStopped, TypingStoppedPayload{
			TaskID: taskID,
			UserID: client.Identity.UserID,
		})
	}
}

// TypingExpired broadcasts the synthetic stop for an entry removed by the
// idle sweep. Wired as the typing module's expiry handler.
func (h *Handlers) TypingExpired(entry realtime.TypingEntry) {
	h.roomBroadcast(realtime.TaskRoom(entry.TaskID), "", EvtTypingStopped, TypingStoppedPayload{
		TaskID: entry.TaskID,
		UserID: entry.UserID,
	})
}

// Disconnect runs the full cleanup for a connection: room departures,
// presence, and typing, in that order, before the identity is forgotten.
// Idempotent; the hub unregister gate makes repeat calls no-ops.
func (h *Handlers) Disconnect(client *hub.Client) {
	if h.hub.Unregister(client.ID) == nil {
		return
	}

	userID := client.Identity.UserID
	for _, room := range h.rooms.DisconnectCleanup(client.ID, userID) {
		h.roomBroadcast(room, userID, EvtRoomUserLeft, RoomUserLeftPayload{
			RoomType: room.Kind,
			RoomID:   room.ID,
			UserID:   userID,
		})
	}

	if h.presence.MarkOffline(userID) {
		h.hub.Broadcast(EvtUserOffline, realtime.PresenceEntry{
			UserID:   userID,
			UserName: client.Identity.UserName,
			Status:   realtime.StatusOffline,
		})
		// With the last connection gone nothing can refresh the user's
		// typing entries; stop them now rather than waiting out the sweep.
		for _, entry := range h.typing.ClearUser(userID) {
			h.TypingExpired(entry)
		}
	}

	_ = client.Close()
}

func (h *Handlers) roomBroadcast(room realtime.RoomKey, exceptUserID, msgType string, payload any) {
	h.hub.SendManyExceptUser(h.rooms.Connections(room), exceptUserID, msgType, payload)
}

// REST handlers

// HealthCheck handles GET /health.
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "taskflow-realtime",
		"details": fiber.Map{
			"connected_clients": h.hub.Count(),
			"online_users":      h.presence.Count(),
			"active_rooms":      h.rooms.RoomCount(),
		},
	})
}

// GetPresence handles GET /api/v1/presence.
func (h *Handlers) GetPresence(c *fiber.Ctx) error {
	users := h.presence.Snapshot()
	return c.JSON(fiber.Map{
		"users": users,
		"total": len(users),
	})
}

// GetRoomMembers handles GET /api/v1/rooms/:kind/:id/members.
func (h *Handlers) GetRoomMembers(c *fiber.Ctx) error {
	kind := realtime.RoomKind(c.Params("kind"))
	if !kind.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "room kind must be project or task",
		})
	}

	room := realtime.RoomKey{Kind: kind, ID: c.Params("id")}
	members := h.rooms.Members(room)
	return c.JSON(fiber.Map{
		"roomType": room.Kind,
		"roomId":   room.ID,
		"members":  members,
		"total":    len(members),
	})
}
