// Package events defines the domain-event contract carried on the pub/sub
// channel between the REST services (producers) and the realtime relay.
package events

import (
	"encoding/json"
	"time"
)

// Event types published by the external task and comment services.
const (
	TaskCreated  = "task:created"
	TaskUpdated  = "task:updated"
	TaskDeleted  = "task:deleted"
	CommentAdded = "comment:added"
)

// Envelope is the tagged wire message on the pub/sub channel. Data is kept
// raw so the relay can forward it to clients without re-encoding.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// TaskEventData is the payload for task:created and task:updated.
type TaskEventData struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"projectId"`
	Title      string    `json:"title,omitempty"`
	Status     string    `json:"status,omitempty"`
	Priority   string    `json:"priority,omitempty"`
	AssigneeID string    `json:"assigneeId,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
}

// TaskDeletedData is the payload for task:deleted.
type TaskDeletedData struct {
	TaskID    string `json:"taskId"`
	ProjectID string `json:"projectId"`
}

// CommentEventData is the payload for comment:added.
type CommentEventData struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	ProjectID string    `json:"projectId,omitempty"`
	AuthorID  string    `json:"authorId"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}
