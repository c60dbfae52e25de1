package models

import "time"

// Event types published on the todo events topic.
const (
	EventCreated   = "todo.created"
	EventUpdated   = "todo.updated"
	EventCompleted = "todo.completed"
	EventDeleted   = "todo.deleted"
	EventDueSoon   = "todo.due_soon"
)

// TodoEvent is the message payload for Kafka.
type TodoEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	TodoID     int64     `json:"todo_id"`
	Todo       *Todo     `json:"todo,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Mutates reports whether the event reflects a change to stored state.
func (e *TodoEvent) Mutates() bool {
	switch e.Type {
	case EventCreated, EventUpdated, EventCompleted, EventDeleted:
		return true
	}
	return false
}
