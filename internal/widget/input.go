package widget

import (
	"context"

	"github.com/zhouzirui/folio-assist/backend/internal/model/chat"
)

// InputState is the text box the user types into.
type InputState struct {
	Value  string `json:"value"`
	Height int    `json:"height"`
}

// Input records the current text and grows the box to its scroll extent.
// The height is reset to the initial height first, so deleting lines shrinks
// it again.
func (w *Widget) Input(value string, scrollHeight int) InputState {
	w.mu.Lock()
	defer w.mu.Unlock()

	height := w.settings.InputInitHeight
	if scrollHeight > height {
		height = scrollHeight
	}
	w.input = InputState{Value: value, Height: height}
	w.publishLocked(Event{Type: EventInput, Input: inputRef(w.input)})
	return w.input
}

// InputState returns the current input box.
func (w *Widget) InputState() InputState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.input
}

func (w *Widget) clearInputLocked() {
	w.input = InputState{Height: w.settings.InputInitHeight}
	w.publishLocked(Event{Type: EventInput, Input: inputRef(w.input)})
}

func inputRef(s InputState) *InputState { return &s }

// KeyAction tells the rendering surface what to do with a key press.
type KeyAction string

const (
	// KeyDefault leaves the key to the input control.
	KeyDefault KeyAction = "default"
	// KeyNewline inserts a literal line break.
	KeyNewline KeyAction = "newline"
	// KeySubmit suppresses the key and submits the current input.
	KeySubmit KeyAction = "submit"
)

// KeyEvent is a key press in the input control.
type KeyEvent struct {
	Key           string `json:"key"`
	Shift         bool   `json:"shiftKey"`
	ViewportWidth int    `json:"viewportWidth"`
}

// KeyResult reports the action taken and, for an accepted submit, the new turn.
type KeyResult struct {
	Action   KeyAction  `json:"action"`
	Accepted bool       `json:"accepted"`
	Turn     *chat.Turn `json:"turn,omitempty"`
}

// KeyDown submits the current input when the submit key is pressed without
// shift on a viewport wider than DesktopMinWidth. Narrower viewports are
// treated as touch devices where the key inserts a line break.
func (w *Widget) KeyDown(ctx context.Context, ev KeyEvent) KeyResult {
	if ev.Key != w.settings.SubmitKey {
		return KeyResult{Action: KeyDefault}
	}
	if ev.Shift || ev.ViewportWidth <= w.settings.DesktopMinWidth {
		return KeyResult{Action: KeyNewline}
	}

	w.mu.Lock()
	turn, ok := w.acceptLocked(w.input.Value)
	w.mu.Unlock()
	if !ok {
		return KeyResult{Action: KeySubmit}
	}

	w.start(ctx, turn)
	return KeyResult{Action: KeySubmit, Accepted: true, Turn: &turn}
}

// Toggle flips visibility and returns the new state.
func (w *Widget) Toggle() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.setVisibleLocked(!w.visible)
	return w.visible
}

// Show opens the widget.
func (w *Widget) Show() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.setVisibleLocked(true)
}

// Close hides the widget. In-flight turns keep running and still settle.
func (w *Widget) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.setVisibleLocked(false)
}

// Visible reports whether the widget is shown.
func (w *Widget) Visible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visible
}

func (w *Widget) setVisibleLocked(visible bool) {
	if w.visible == visible {
		return
	}
	w.visible = visible
	w.publishLocked(Event{Type: EventVisibility, Visible: &visible})
}
