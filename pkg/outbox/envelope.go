package outbox

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// ActorRef names the shopper whose request produced the event. Events raised
// by background jobs carry no actor.
type ActorRef struct {
	UserID uuid.UUID `json:"user_id"`
}

// UserActor is shorthand for an ActorRef pointing at a signed-in shopper.
func UserActor(userID uuid.UUID) *ActorRef {
	return &ActorRef{UserID: userID}
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published
// verbatim as the message body.
type PayloadEnvelope struct {
	Version    int                   `json:"version"`
	EventID    string                `json:"event_id"`
	EventType  enums.OutboxEventType `json:"event_type"`
	OccurredAt time.Time             `json:"occurred_at"`
	Actor      *ActorRef             `json:"actor,omitempty"`
	Data       json.RawMessage       `json:"data"`
}

// HasData reports whether the envelope carries a non-null payload.
func (e PayloadEnvelope) HasData() bool {
	trimmed := bytes.TrimSpace(e.Data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
