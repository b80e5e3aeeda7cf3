package widget

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/folio-assist/backend/internal/model/chat"
)

// Completer produces a completion for one piece of user text.
type Completer interface {
	Complete(ctx context.Context, text string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, text string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// Widget owns one page session's transcript. Each accepted submission becomes
// a Turn whose placeholder is resolved independently of every other turn.
type Widget struct {
	id        string
	completer Completer
	settings  Settings
	logger    zerolog.Logger
	now       func() time.Time
	after     func(time.Duration) <-chan time.Time

	mu          sync.Mutex
	entries     []chat.Entry
	positions   map[string]int
	turns       map[uint64]*chat.Turn
	seq         uint64
	input       InputState
	visible     bool
	subscribers map[uint64]chan Event
	nextSub     uint64
	shutdown    bool

	inflight sync.WaitGroup
}

// Option customises a Widget.
type Option func(*Widget)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(w *Widget) {
		if now != nil {
			w.now = now
		}
	}
}

// WithTimer overrides how the thinking delay is awaited.
func WithTimer(after func(time.Duration) <-chan time.Time) Option {
	return func(w *Widget) {
		if after != nil {
			w.after = after
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Widget) {
		w.logger = logger
	}
}

// New creates a hidden widget with an empty transcript.
func New(id string, completer Completer, settings Settings, opts ...Option) *Widget {
	settings = settings.normalized()
	w := &Widget{
		id:          id,
		completer:   completer,
		settings:    settings,
		logger:      log.Logger,
		now:         func() time.Time { return time.Now().UTC() },
		after:       time.After,
		positions:   make(map[string]int),
		turns:       make(map[uint64]*chat.Turn),
		input:       InputState{Height: settings.InputInitHeight},
		subscribers: make(map[uint64]chan Event),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With().Str("widget", id).Logger()
	return w
}

// ID returns the session identifier the widget was created for.
func (w *Widget) ID() string {
	return w.id
}

// Settings returns the normalized settings.
func (w *Widget) Settings() Settings {
	return w.settings
}

// Submit accepts one line of user text. Blank text is ignored and reported
// with ok=false, as is any text after Shutdown. Otherwise the input is
// cleared, the outgoing entry is appended and the completion runs in the
// background; the returned Turn is a snapshot taken while it is still pending.
//
// The request is detached from ctx cancellation: closing the widget or
// dropping the caller does not abort it.
func (w *Widget) Submit(ctx context.Context, text string) (chat.Turn, bool) {
	w.mu.Lock()
	turn, ok := w.acceptLocked(text)
	w.mu.Unlock()

	if ok {
		w.start(ctx, turn)
	}
	return turn, ok
}

// acceptLocked registers a turn for text. The caller must hold w.mu and, on
// success, call start once the lock is released.
func (w *Widget) acceptLocked(text string) (chat.Turn, bool) {
	userText := strings.TrimSpace(text)
	if userText == "" || w.shutdown {
		return chat.Turn{}, false
	}

	w.clearInputLocked()

	w.seq++
	seq := w.seq
	now := w.now()
	outgoing := chat.Entry{
		ID:        uuid.NewString(),
		Kind:      chat.Outgoing,
		Text:      userText,
		TurnSeq:   seq,
		CreatedAt: now,
	}
	w.appendLocked(outgoing)

	turn := &chat.Turn{
		Seq:        seq,
		UserText:   userText,
		Status:     chat.TurnPending,
		OutgoingID: outgoing.ID,
		CreatedAt:  now,
	}
	w.turns[seq] = turn

	w.publishLocked(Event{Type: EventScroll})
	w.inflight.Add(1)
	return *turn, true
}

func (w *Widget) start(ctx context.Context, turn chat.Turn) {
	w.logger.Debug().Uint64("seq", turn.Seq).Int("length", len(turn.UserText)).Msg("[widget] turn accepted")
	go w.run(context.WithoutCancel(ctx), turn.Seq, turn.UserText)
}

// Shutdown makes the widget terminal: subscriber channels are closed and
// later submissions are refused. Turns already accepted still settle.
func (w *Widget) Shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.shutdown {
		return
	}
	w.shutdown = true
	w.visible = false
	for id, ch := range w.subscribers {
		delete(w.subscribers, id)
		close(ch)
	}
	w.logger.Debug().Msg("[widget] shut down")
}

// IsShutdown reports whether Shutdown has been called.
func (w *Widget) IsShutdown() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.shutdown
}

func (w *Widget) run(ctx context.Context, seq uint64, userText string) {
	defer w.inflight.Done()

	if delay := w.settings.ThinkingDelay; delay > 0 {
		<-w.after(delay)
	}

	incomingID := w.appendPlaceholder(seq)
	reply, err := w.complete(ctx, userText)
	w.settle(seq, incomingID, reply, err)
}

func (w *Widget) complete(ctx context.Context, text string) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("completer panicked: %v", r)
		}
	}()
	if w.completer == nil {
		return "", fmt.Errorf("no completer configured")
	}
	return w.completer.Complete(ctx, text)
}

func (w *Widget) appendPlaceholder(seq uint64) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	placeholder := chat.Entry{
		ID:        uuid.NewString(),
		Kind:      chat.Incoming,
		Text:      w.settings.PlaceholderText,
		Pending:   true,
		TurnSeq:   seq,
		CreatedAt: w.now(),
	}
	w.appendLocked(placeholder)
	if turn, ok := w.turns[seq]; ok {
		turn.IncomingID = placeholder.ID
	}
	w.publishLocked(Event{Type: EventScroll})
	return placeholder.ID
}

// settle resolves the placeholder captured for seq. The entry is located by
// its own ID and cross-checked against the turn sequence, so out-of-order
// replies can never land on another turn's entry.
func (w *Widget) settle(seq uint64, entryID, reply string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	turn, ok := w.turns[seq]
	pos, found := w.positions[entryID]
	if !ok || !found || w.entries[pos].TurnSeq != seq {
		w.logger.Error().Uint64("seq", seq).Str("entry", entryID).Msg("[widget] placeholder lost, dropping reply")
		return
	}

	entry := &w.entries[pos]
	at := w.now()
	var settleErr error
	if err != nil {
		settleErr = turn.Fail(w.settings.FallbackText, at)
		entry.Text = w.settings.FallbackText
		entry.Error = true
		w.logger.Warn().Err(err).Uint64("seq", seq).Msg("[widget] completion failed, showing fallback")
	} else {
		text := strings.TrimSpace(reply)
		settleErr = turn.Fulfill(text, at)
		entry.Text = text
		w.logger.Debug().Uint64("seq", seq).Int("length", len(text)).Msg("[widget] completion settled")
	}
	if settleErr != nil {
		w.logger.Error().Err(settleErr).Uint64("seq", seq).Msg("[widget] turn settled twice")
	}
	entry.Pending = false

	w.publishLocked(Event{Type: EventUpdated, Entry: entryRef(*entry), Turn: turnRef(*turn)})
	w.publishLocked(Event{Type: EventScroll})
}

func (w *Widget) appendLocked(entry chat.Entry) {
	w.positions[entry.ID] = len(w.entries)
	w.entries = append(w.entries, entry)
	w.publishLocked(Event{Type: EventAppended, Entry: entryRef(entry)})
}

// Transcript returns a copy of the rendered entries in append order.
func (w *Widget) Transcript() []chat.Entry {
	w.mu.Lock()
	defer w.mu.Unlock()

	copied := make([]chat.Entry, len(w.entries))
	copy(copied, w.entries)
	return copied
}

// Entry looks up a transcript entry by ID.
func (w *Widget) Entry(id string) (chat.Entry, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	pos, ok := w.positions[id]
	if !ok {
		return chat.Entry{}, false
	}
	return w.entries[pos], true
}

// Turns returns every turn ordered by sequence.
func (w *Widget) Turns() []chat.Turn {
	w.mu.Lock()
	defer w.mu.Unlock()

	turns := make([]chat.Turn, 0, len(w.turns))
	for _, turn := range w.turns {
		turns = append(turns, *turn)
	}
	sort.Slice(turns, func(i, j int) bool { return turns[i].Seq < turns[j].Seq })
	return turns
}

// Turn looks up a turn by sequence.
func (w *Widget) Turn(seq uint64) (chat.Turn, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	turn, ok := w.turns[seq]
	if !ok {
		return chat.Turn{}, false
	}
	return *turn, true
}

// Wait blocks until every accepted turn has settled.
func (w *Widget) Wait() {
	w.inflight.Wait()
}

// WaitContext is Wait bounded by ctx.
func (w *Widget) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
