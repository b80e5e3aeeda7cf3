package chat_test

import (
	"errors"
	"testing"
	"time"

	"github.com/zhouzirui/folio-assist/backend/internal/model/chat"
)

func TestTurnSettlesOnce(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	turn := chat.Turn{Seq: 1, UserText: "hello", Status: chat.TurnPending}

	if err := turn.Fulfill("Hi there", now); err != nil {
		t.Fatalf("Fulfill err: %v", err)
	}
	if turn.Status != chat.TurnFulfilled || turn.ResponseText != "Hi there" {
		t.Fatalf("unexpected turn after fulfill: %+v", turn)
	}
	if turn.SettledAt == nil || !turn.SettledAt.Equal(now) {
		t.Fatalf("expected settledAt %v, got %v", now, turn.SettledAt)
	}

	if err := turn.Fail("fallback", now.Add(time.Second)); !errors.Is(err, chat.ErrTurnSettled) {
		t.Fatalf("expected ErrTurnSettled, got %v", err)
	}
	if turn.Status != chat.TurnFulfilled {
		t.Fatalf("terminal status changed to %s", turn.Status)
	}
}

func TestTurnStatusTerminal(t *testing.T) {
	if chat.TurnPending.Terminal() {
		t.Fatal("pending must not be terminal")
	}
	if !chat.TurnFulfilled.Terminal() || !chat.TurnFailed.Terminal() {
		t.Fatal("fulfilled and failed must be terminal")
	}
}
