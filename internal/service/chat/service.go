package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/folio-assist/backend/internal/model/chat"
	"github.com/zhouzirui/folio-assist/backend/internal/widget"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrServiceClosed   = errors.New("chat service is shutting down")
)

// WidgetFactory builds the widget owned by a new session.
type WidgetFactory func(sessionID string) *widget.Widget

type sessionState struct {
	session chat.Session
	widget  *widget.Widget
}

// Service keeps one widget per page session, in memory only.
type Service struct {
	factory WidgetFactory

	mu       sync.RWMutex
	sessions map[string]*sessionState
	closed   bool

	// draining tracks closed sessions whose turns have not settled yet.
	draining sync.WaitGroup
}

// NewService bootstraps the in-memory session registry.
func NewService(factory WidgetFactory) *Service {
	return &Service{
		factory:  factory,
		sessions: make(map[string]*sessionState),
	}
}

// NewWidgetFactory returns a factory wiring every widget to the same
// completer and settings.
func NewWidgetFactory(completer widget.Completer, settings widget.Settings, opts ...widget.Option) WidgetFactory {
	return func(sessionID string) *widget.Widget {
		return widget.New(sessionID, completer, settings, opts...)
	}
}

// CreateSession provisions an anonymous session and its widget.
func (s *Service) CreateSession(_ context.Context) (chat.Session, error) {
	session := chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return chat.Session{}, ErrServiceClosed
	}
	s.sessions[session.ID] = &sessionState{session: session, widget: s.factory(session.ID)}
	s.mu.Unlock()

	log.Debug().Str("session", session.ID).Msg("[chat] session created")
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	state, err := s.lookup(sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return state.session, nil
}

// Widget returns the widget owned by sessionID.
func (s *Service) Widget(_ context.Context, sessionID string) (*widget.Widget, error) {
	state, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return state.widget, nil
}

// LoadTranscript returns the rendered entries for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Entry, error) {
	state, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return state.widget.Transcript(), nil
}

// CloseSession shuts the session's widget down and forgets it. Connected
// streams end and no new turns are accepted; turns still in flight keep
// running and Shutdown waits for them.
func (s *Service) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	state, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
		s.draining.Add(1)
	}
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	s.retire(state)
	log.Debug().Str("session", sessionID).Msg("[chat] session closed")
	return nil
}

// CloseAll closes every session and refuses new ones. It does not wait.
func (s *Service) CloseAll() {
	s.mu.Lock()
	s.closed = true
	states := make([]*sessionState, 0, len(s.sessions))
	for id, state := range s.sessions {
		states = append(states, state)
		delete(s.sessions, id)
	}
	s.draining.Add(len(states))
	s.mu.Unlock()

	for _, state := range states {
		s.retire(state)
	}
	if len(states) > 0 {
		log.Debug().Int("sessions", len(states)).Msg("[chat] all sessions closed")
	}
}

// retire shuts the widget down before waiting on it, so no Submit can race
// the widget's WaitGroup. The caller has already counted it in s.draining.
func (s *Service) retire(state *sessionState) {
	state.widget.Shutdown()
	go func() {
		defer s.draining.Done()
		state.widget.Wait()
	}()
}

// Shutdown closes every session and waits, bounded by ctx, for their
// in-flight turns to settle.
func (s *Service) Shutdown(ctx context.Context) error {
	s.CloseAll()

	done := make(chan struct{})
	go func() {
		s.draining.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len reports the number of open sessions.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Service) lookup(sessionID string) (*sessionState, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return state, nil
}
