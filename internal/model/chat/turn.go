package chat

import (
	"errors"
	"time"
)

// ErrTurnSettled is returned when a turn that already left Pending is settled again.
var ErrTurnSettled = errors.New("turn already settled")

// TurnStatus is the lifecycle state of a Turn.
type TurnStatus string

const (
	TurnPending   TurnStatus = "pending"
	TurnFulfilled TurnStatus = "fulfilled"
	TurnFailed    TurnStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s TurnStatus) Terminal() bool {
	return s == TurnFulfilled || s == TurnFailed
}

// Turn pairs one user submission with its eventual response.
type Turn struct {
	Seq          uint64     `json:"seq"`
	UserText     string     `json:"userText"`
	Status       TurnStatus `json:"status"`
	ResponseText string     `json:"responseText,omitempty"`
	OutgoingID   string     `json:"outgoingId"`
	IncomingID   string     `json:"incomingId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	SettledAt    *time.Time `json:"settledAt,omitempty"`
}

// Fulfill moves a pending turn to TurnFulfilled.
func (t *Turn) Fulfill(text string, at time.Time) error {
	return t.settle(TurnFulfilled, text, at)
}

// Fail moves a pending turn to TurnFailed, recording the text shown instead.
func (t *Turn) Fail(text string, at time.Time) error {
	return t.settle(TurnFailed, text, at)
}

func (t *Turn) settle(status TurnStatus, text string, at time.Time) error {
	if t.Status.Terminal() {
		return ErrTurnSettled
	}
	t.Status = status
	t.ResponseText = text
	t.SettledAt = &at
	return nil
}
