package keyio

import (
	"errors"
	"testing"
)

type event struct {
	code int
	down bool
}

type recordingEmitter struct {
	events []event
	err    error
}

func (r *recordingEmitter) Emit(code int, down bool) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event{code, down})
	return nil
}

func TestPressEmitsDownUp(t *testing.T) {
	e := &recordingEmitter{}
	if err := Press(e, KeyEscape); err != nil {
		t.Fatal(err)
	}

	want := []event{{KeyEscape, true}, {KeyEscape, false}}
	if len(e.events) != len(want) {
		t.Fatalf("events = %v", e.events)
	}
	for i, ev := range want {
		if e.events[i] != ev {
			t.Fatalf("event %d = %v, want %v", i, e.events[i], ev)
		}
	}
}

func TestPressNilEmitter(t *testing.T) {
	if err := Press(nil, KeyEscape); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestPressComboOrdering(t *testing.T) {
	e := &recordingEmitter{}
	if err := PressCombo(e, SendCombo); err != nil {
		t.Fatal(err)
	}

	want := []event{
		{KeyLeftCommand, true},
		{KeyReturn, true},
		{KeyReturn, false},
		{KeyLeftCommand, false},
	}
	if len(e.events) != len(want) {
		t.Fatalf("events = %v", e.events)
	}
	for i, ev := range want {
		if e.events[i] != ev {
			t.Fatalf("event %d = %v, want %v", i, e.events[i], ev)
		}
	}
}

func TestDoubleTapPressesTwice(t *testing.T) {
	e := &recordingEmitter{}
	if err := DoubleTap(e, KeyRightCommand, 0); err != nil {
		t.Fatal(err)
	}

	downs := 0
	for _, ev := range e.events {
		if ev.down {
			downs++
		}
	}
	if downs != 2 {
		t.Fatalf("downs = %d, want 2", downs)
	}
}
