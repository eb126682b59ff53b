package domain

import "github.com/bytedance/sonic"

// Command is a write request placed on the fallback command queue when the
// conditional save path is unavailable.
type Command struct {
	// ID carries the idempotency key when enqueued to the board queue.
	ID             string                 `json:"id,omitempty"`
	IdempotencyKey string                 `json:"idempotencyKey"`
	EntityType     string                 `json:"entityType"`
	Type           string                 `json:"type"`
	Data           sonic.NoCopyRawMessage `json:"data,omitempty"`
	Timestamp      int64                  `json:"timestamp"`
}

// CommandEnvelope wraps a command with the board entry it targets.
type CommandEnvelope struct {
	EntryID string  `json:"entryId"`
	Command Command `json:"command"`
}
