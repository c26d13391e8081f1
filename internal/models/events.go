package models

import "time"

// Event types
const (
	EventTypeReorderAlert = "REORDER_ALERT"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ReorderEvent is published when an issue drops an item's stock to or below
// its security-stock threshold. Delivery is fire-and-forget: a publish failure
// never surfaces as a ledger error.
type ReorderEvent struct {
	BaseEvent
	ItemID        int64  `json:"item_id"`
	ItemName      string `json:"item_name"`
	CurrentStock  int64  `json:"current_stock"`
	SecurityStock int64  `json:"security_stock"`
}
