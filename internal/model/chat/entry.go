package chat

import "time"

// EntryKind tags a transcript entry for the rendering surface.
type EntryKind string

const (
	Outgoing EntryKind = "outgoing"
	Incoming EntryKind = "incoming"
)

// Entry is one rendered line of the transcript. Incoming entries start as a
// placeholder and have their text replaced exactly once.
type Entry struct {
	ID        string    `json:"id"`
	Kind      EntryKind `json:"kind"`
	Text      string    `json:"text"`
	Pending   bool      `json:"pending,omitempty"`
	Error     bool      `json:"error,omitempty"`
	TurnSeq   uint64    `json:"turnSeq"`
	CreatedAt time.Time `json:"createdAt"`
}
