package widget

import "github.com/zhouzirui/folio-assist/backend/internal/model/chat"

// EventType names a change the rendering surface has to apply.
type EventType string

const (
	EventAppended   EventType = "appended"
	EventUpdated    EventType = "updated"
	EventScroll     EventType = "scroll"
	EventVisibility EventType = "visibility"
	EventInput      EventType = "input"
)

// Event is pushed to subscribers in the order the widget state changed.
type Event struct {
	Type    EventType   `json:"type"`
	Entry   *chat.Entry `json:"entry,omitempty"`
	Turn    *chat.Turn  `json:"turn,omitempty"`
	Visible *bool       `json:"visible,omitempty"`
	Input   *InputState `json:"input,omitempty"`
}

const defaultSubscriberBuffer = 64

// Subscribe registers a rendering surface. Events are dropped for a
// subscriber whose buffer is full; the returned func unsubscribes and closes
// the channel, and is safe to call more than once. The channel is also closed
// by Shutdown, and comes back already closed after it.
func (w *Widget) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)

	w.mu.Lock()
	if w.shutdown {
		w.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	w.nextSub++
	id := w.nextSub
	w.subscribers[id] = ch
	w.mu.Unlock()

	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if sub, ok := w.subscribers[id]; ok {
			delete(w.subscribers, id)
			close(sub)
		}
	}
}

// publishLocked must be called with w.mu held so events keep state order and
// never race with an unsubscribe closing the channel.
func (w *Widget) publishLocked(ev Event) {
	for id, ch := range w.subscribers {
		select {
		case ch <- ev:
		default:
			w.logger.Warn().Uint64("subscriber", id).Str("event", string(ev.Type)).Msg("[widget] subscriber buffer full, event dropped")
		}
	}
}

func entryRef(e chat.Entry) *chat.Entry { return &e }

func turnRef(t chat.Turn) *chat.Turn { return &t }
