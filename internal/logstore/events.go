package logstore

import (
	"encoding/json"
	"time"
)

// Event types - client → server
const (
	EventTypeAppend = "log.append"
	EventTypePing   = "ping"
)

// Event types - server → client
const (
	EventTypeSnapshot = "log.snapshot"
	EventTypeAck      = "log.ack"
	EventTypePong     = "pong"
	EventTypeError    = "error"
)

// Event is the base envelope for all messages on the log socket.
type Event struct {
	Type      string          `json:"type"`
	Room      string          `json:"room,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- client → server payloads ---

type AppendPayload struct {
	Record Record `json:"record"`
}

// --- server → client payloads ---

// SnapshotPayload carries the complete visible record set, ordered by the
// server-assigned commit timestamp. Every snapshot is a full consistent
// view; there is no incremental diff on the wire.
type SnapshotPayload struct {
	Records []Record `json:"records"`
}

type AckPayload struct {
	ClientKey string `json:"client_key"`
	ID        string `json:"id"`
}

// ErrorPayload reports a store-side failure. ClientKey is set when the
// error rejects a specific append; empty means the subscription itself
// failed.
type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	ClientKey string `json:"client_key,omitempty"`
}

// NewEvent wraps a payload in an envelope with the current timestamp.
func NewEvent(eventType, room string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Room:      room,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}
