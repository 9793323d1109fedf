package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is what modules produce and the gateway receives. It is buffered in
// the store as JSON, keyed by ID.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Payload   string    `json:"payload"`
}

func New(typ, payload string) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      typ,
		Payload:   payload,
	}
}

// Key is the queue identity for an event.
func Key(e Event) string { return e.ID }
