package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ShopperRef identifies the shopper whose action produced the event.
type ShopperRef struct {
	ShopperID uuid.UUID `json:"shopperId"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Shopper    *ShopperRef     `json:"shopper,omitempty"`
	Data       json.RawMessage `json:"data"`
}
