// Package telemetry accumulates discrete storefront events (cart and
// favorite mutations, impressions, clicks) and delivers them to the
// ingestion endpoint in idempotent batches, spilling to durable storage
// rather than losing events on failure.
package telemetry

import "time"

// EventType tags a business event.
type EventType string

// Known event types.
const (
	EventCartAdded       EventType = "cart_added"
	EventCartRemoved     EventType = "cart_removed"
	EventFavoriteAdded   EventType = "favorite_added"
	EventFavoriteRemoved EventType = "favorite_removed"
	EventImpression      EventType = "impression"
	EventClick           EventType = "click"
)

// Event is one immutable business event. Ordering within a batch is
// insertion order and carries no meaning to the receiver.
type Event struct {
	Type      EventType `json:"type"`
	ProductID string    `json:"productId"`
	ShopID    string    `json:"shopId,omitempty"`
}

// Batch is the outbound wire shape. BatchID is an idempotency token: the
// receiver must not double-count duplicate submissions of the same id.
type Batch struct {
	BatchID string  `json:"batchId"`
	Events  []Event `json:"events"`
}

// Spill is the durable on-disk shape for events that could not be
// delivered before retry exhaustion or shutdown.
type Spill struct {
	Events    []Event   `json:"events"`
	Timestamp time.Time `json:"timestamp"`
}
