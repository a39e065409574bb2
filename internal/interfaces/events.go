package interfaces

import "context"

// EventType identifies a job lifecycle event
type EventType string

const (
	EventJobCreated   EventType = "job_created"
	EventJobProgress  EventType = "job_progress"
	EventJobCompleted EventType = "job_completed"
	EventJobDeleted   EventType = "job_deleted"
)

// Event is a job lifecycle notification published to subscribers
type Event struct {
	Type    EventType              `json:"type"`
	JobID   string                 `json:"job_id"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// EventHandler processes a published event
type EventHandler func(ctx context.Context, event Event) error

// EventService is a process-local pub/sub bus for job lifecycle
// events. Display collaborators (websocket clients) subscribe; the
// tracker publishes. Handlers run asynchronously and must not block
// job processing.
type EventService interface {
	Subscribe(eventType EventType, handler EventHandler)
	Publish(ctx context.Context, event Event)
}
