package voice

import "strings"

// Key 页面上报的按键
type Key struct {
	Name         string `json:"key"`
	InputFocused bool   `json:"input_focused"`
}

// keyAction maps a key to the controller event it triggers.
// V toggles listening and Space stops speaking, both ignored while a text
// input has focus. Escape cancels listening and speaking.
func keyAction(k Key) (EventKind, bool) {
	switch name := strings.TrimSpace(k.Name); {
	case strings.EqualFold(name, "v"):
		if k.InputFocused {
			return 0, false
		}
		return evToggle, true
	case name == "Escape" || name == "Esc":
		return evEscape, true
	case k.Name == " " || name == "Space" || name == "Spacebar":
		if k.InputFocused {
			return 0, false
		}
		return evStopSpeaking, true
	}
	return 0, false
}
