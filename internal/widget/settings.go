package widget

import (
	"encoding/json"
	"time"
)

// Settings are the fixed interaction parameters of a widget.
type Settings struct {
	// ThinkingDelay lets the outgoing entry paint before the placeholder shows up.
	ThinkingDelay   time.Duration `json:"-"`
	PlaceholderText string        `json:"placeholder"`
	FallbackText    string        `json:"fallback"`
	SubmitKey       string        `json:"submitKey"`
	// DesktopMinWidth is exclusive: the submit key only submits when the
	// viewport is wider than this.
	DesktopMinWidth int `json:"desktopMinWidth"`
	InputInitHeight int `json:"inputInitHeight"`
}

func DefaultSettings() Settings {
	return Settings{
		ThinkingDelay:   600 * time.Millisecond,
		PlaceholderText: "Thinking...",
		FallbackText:    "SORRY!,We are not available right now. Please try again.",
		SubmitKey:       "Enter",
		DesktopMinWidth: 800,
		InputInitHeight: 55,
	}
}

// normalized fills blank fields from DefaultSettings. A zero ThinkingDelay is
// kept as is.
func (s Settings) normalized() Settings {
	defaults := DefaultSettings()
	if s.ThinkingDelay < 0 {
		s.ThinkingDelay = 0
	}
	if s.PlaceholderText == "" {
		s.PlaceholderText = defaults.PlaceholderText
	}
	if s.FallbackText == "" {
		s.FallbackText = defaults.FallbackText
	}
	if s.SubmitKey == "" {
		s.SubmitKey = defaults.SubmitKey
	}
	if s.DesktopMinWidth <= 0 {
		s.DesktopMinWidth = defaults.DesktopMinWidth
	}
	if s.InputInitHeight <= 0 {
		s.InputInitHeight = defaults.InputInitHeight
	}
	return s
}

// MarshalJSON exposes ThinkingDelay in milliseconds for the rendering surface.
func (s Settings) MarshalJSON() ([]byte, error) {
	type plain Settings
	return json.Marshal(struct {
		plain
		ThinkingDelayMS int64 `json:"thinkingDelayMs"`
	}{plain(s), s.ThinkingDelay.Milliseconds()})
}
