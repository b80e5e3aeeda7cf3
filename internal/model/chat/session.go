package chat

import "time"

// Session captures one page-load of the chat widget.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}
