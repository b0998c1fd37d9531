// Package events publishes post lifecycle events for downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the posts service.
const (
	TypePostCreated    = "post.created"
	TypePostUpdated    = "post.updated"
	TypePostDeleted    = "post.deleted"
	TypeCommentCreated = "comment.created"
)

// Event is the JSON envelope written to the post events topic.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	PostID     int64     `json:"post_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

// New stamps an event with a fresh ID and the current time.
func New(eventType string, postID int64, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		PostID:     postID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// Noop discards every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close()                              {}
