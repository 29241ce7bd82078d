package model

// EventType tags a row-level change event.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
)

// ChangeEvent is the message published to the change topic whenever a row is
// inserted or mutated. Delivery is at-least-once and unordered; consumers
// must treat every event as a possibly-duplicate, possibly-stale upsert.
type ChangeEvent struct {
	Type EventType    `json:"type"`
	Row  Notification `json:"row"`
}
