// Package keyio injects synthetic keyboard events at the OS input layer.
// Key codes are the macOS virtual key codes the dictation shortcuts use.
package keyio

import (
	"errors"
	"time"
)

// macOS virtual key codes.
const (
	KeyReturn       = 36
	KeyEscape       = 53
	KeyLeftCommand  = 55
	KeyRightCommand = 54
	KeyShift        = 56
	KeyThree        = 20
	KeyFour         = 21
)

// KeyHold is how long a key stays down within a single press.
const KeyHold = 50 * time.Millisecond

var ErrUnavailable = errors.New("keyio: key event injection not available on this platform")

// Emitter posts a single key-down or key-up event.
type Emitter interface {
	Emit(code int, down bool) error
}

// Combo is a modified key press: modifiers held down around the main key.
type Combo struct {
	Modifiers []int
	Code      int
}

// SendCombo submits the chat input (Command+Return).
var SendCombo = Combo{Modifiers: []int{KeyLeftCommand}, Code: KeyReturn}

// ScreenshotCombo is the OS full-screen capture shortcut (Cmd+Shift+3).
var ScreenshotCombo = Combo{Modifiers: []int{KeyLeftCommand, KeyShift}, Code: KeyThree}

// Press emits a down/up pair for one key with the standard hold time.
func Press(e Emitter, code int) error {
	if e == nil {
		return ErrUnavailable
	}
	if err := e.Emit(code, true); err != nil {
		return err
	}
	time.Sleep(KeyHold)
	return e.Emit(code, false)
}

// PressCombo holds the modifiers, presses the main key, then releases
// the modifiers in reverse order.
func PressCombo(e Emitter, combo Combo) error {
	if e == nil {
		return ErrUnavailable
	}
	for _, m := range combo.Modifiers {
		if err := e.Emit(m, true); err != nil {
			return err
		}
	}
	err := Press(e, combo.Code)
	for i := len(combo.Modifiers) - 1; i >= 0; i-- {
		if e2 := e.Emit(combo.Modifiers[i], false); err == nil {
			err = e2
		}
	}
	return err
}

// DoubleTap presses the same key twice with a gap between the taps. The
// gap is what lets the OS tell a double-tap shortcut from two unrelated
// presses, so callers pass the configured inter-pulse delay.
func DoubleTap(e Emitter, code int, gap time.Duration) error {
	if err := Press(e, code); err != nil {
		return err
	}
	time.Sleep(gap)
	return Press(e, code)
}
