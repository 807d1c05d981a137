package core

import "encoding/json"

// TelemetryStream is a per-user subscription yielding raw conversation
// payloads whenever any conversation the user participates in changes.
// Delivery order per conversation is assumed reliable; events may interleave
// across conversations and may race with signaling events.
// Owned by the adapter; the adapter must Close() it.
type TelemetryStream interface {
	Updates() <-chan json.RawMessage
	Close()
}
