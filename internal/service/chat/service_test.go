package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/zhouzirui/folio-assist/backend/internal/model/chat"
	chat "github.com/zhouzirui/folio-assist/backend/internal/service/chat"
	"github.com/zhouzirui/folio-assist/backend/internal/widget"
)

func instantSettings() widget.Settings {
	s := widget.DefaultSettings()
	s.ThinkingDelay = 0
	return s
}

func echoService() *chat.Service {
	echo := widget.CompleterFunc(func(_ context.Context, text string) (string, error) {
		return "echo: " + text, nil
	})
	return chat.NewService(chat.NewWidgetFactory(echo, instantSettings()))
}

func TestServiceGetSession(t *testing.T) {
	svc := echoService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	if got.ID != session.ID {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID, session.ID)
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := echoService()
	ctx := context.Background()

	if _, err := svc.GetSession(ctx, "missing"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.Widget(ctx, ""); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for empty id, got %v", err)
	}
}

func TestSessionsOwnSeparateWidgets(t *testing.T) {
	svc := echoService()
	ctx := context.Background()

	a, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	b, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	wa, err := svc.Widget(ctx, a.ID)
	require.NoError(t, err)
	wb, err := svc.Widget(ctx, b.ID)
	require.NoError(t, err)
	require.NotSame(t, wa, wb)

	_, ok := wa.Submit(ctx, "hello")
	require.True(t, ok)
	wa.Wait()

	transcript, err := svc.LoadTranscript(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.Equal(t, model.Outgoing, transcript[0].Kind)
	assert.Equal(t, "echo: hello", transcript[1].Text)

	other, err := svc.LoadTranscript(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestCloseSessionLetsTurnsSettle(t *testing.T) {
	release := make(chan struct{})
	slow := widget.CompleterFunc(func(_ context.Context, text string) (string, error) {
		<-release
		return "late reply", nil
	})
	svc := chat.NewService(chat.NewWidgetFactory(slow, instantSettings()))
	ctx := context.Background()

	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	w, err := svc.Widget(ctx, session.ID)
	require.NoError(t, err)

	_, ok := w.Submit(ctx, "hello")
	require.True(t, ok)
	require.NoError(t, svc.CloseSession(ctx, session.ID))
	assert.Equal(t, 0, svc.Len())
	assert.ErrorIs(t, svc.CloseSession(ctx, session.ID), chat.ErrSessionNotFound)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, svc.Shutdown(short), context.DeadlineExceeded)

	close(release)
	require.NoError(t, svc.Shutdown(ctx))

	turn, ok := w.Turn(1)
	require.True(t, ok)
	assert.Equal(t, model.TurnFulfilled, turn.Status)
	assert.Equal(t, "late reply", turn.ResponseText)
}

func TestCloseSessionEndsSubscriptionsAndRefusesSubmit(t *testing.T) {
	svc := echoService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	w, err := svc.Widget(ctx, session.ID)
	require.NoError(t, err)
	events, unsubscribe := w.Subscribe(8)
	defer unsubscribe()

	require.NoError(t, svc.CloseSession(ctx, session.ID))

	for range events {
	}
	_, ok := w.Submit(ctx, "after delete")
	assert.False(t, ok)
	assert.Empty(t, w.Transcript())
	require.NoError(t, svc.Shutdown(ctx))
}

func TestShutdownClosesOpenSessionsAndRefusesNewOnes(t *testing.T) {
	release := make(chan struct{})
	slow := widget.CompleterFunc(func(_ context.Context, text string) (string, error) {
		<-release
		return "done", nil
	})
	svc := chat.NewService(chat.NewWidgetFactory(slow, instantSettings()))
	ctx := context.Background()

	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	w, err := svc.Widget(ctx, session.ID)
	require.NoError(t, err)
	_, ok := w.Submit(ctx, "hello")
	require.True(t, ok)

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	require.NoError(t, svc.Shutdown(ctx))

	assert.True(t, w.IsShutdown())
	assert.Equal(t, 0, svc.Len())
	turn, _ := w.Turn(1)
	assert.Equal(t, model.TurnFulfilled, turn.Status)

	_, err = svc.CreateSession(ctx)
	assert.ErrorIs(t, err, chat.ErrServiceClosed)
}
