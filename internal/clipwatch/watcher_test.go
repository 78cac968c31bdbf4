package clipwatch

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedChannel returns one value per Read, repeating the last.
type scriptedChannel struct {
	values []string
	err    error
	calls  int
}

func (c *scriptedChannel) Read() (string, error) {
	if c.err != nil {
		return "", c.err
	}
	i := c.calls
	if i >= len(c.values) {
		i = len(c.values) - 1
	}
	c.calls++
	return c.values[i], nil
}

func (c *scriptedChannel) Write(string) error { return nil }

func TestPollReportsNovelContentOnce(t *testing.T) {
	ch := &scriptedChannel{values: []string{"", "A", "A", "B"}}
	w := NewWatcher(ch)

	if _, ok := w.Poll(); ok {
		t.Fatal("empty value must not count as change")
	}

	content, ok := w.Poll()
	if !ok || content != "A" {
		t.Fatalf("Poll = (%q, %v), want (A, true)", content, ok)
	}

	if _, ok := w.Poll(); ok {
		t.Fatal("repeated value must not count as change")
	}

	content, ok = w.Poll()
	if !ok || content != "B" {
		t.Fatalf("Poll = (%q, %v), want (B, true)", content, ok)
	}
}

func TestPollReadErrorIsNoChange(t *testing.T) {
	w := NewWatcher(&scriptedChannel{err: errors.New("no display")})
	if _, ok := w.Poll(); ok {
		t.Fatal("a read error must count as no change")
	}
}

func TestPollForChangeTimesOut(t *testing.T) {
	ch := &scriptedChannel{values: []string{"same"}}
	w := NewWatcher(ch)
	w.Poll() // snapshot "same"

	_, ok := w.PollForChange(context.Background(), time.Millisecond, 20*time.Millisecond)
	if ok {
		t.Fatal("unchanged channel must time out with false")
	}
}

func TestPollForChangePicksUpLateContent(t *testing.T) {
	ch := &scriptedChannel{values: []string{"", "", "", "reply"}}
	w := NewWatcher(ch)

	content, ok := w.PollForChange(context.Background(), time.Millisecond, time.Second)
	if !ok || content != "reply" {
		t.Fatalf("PollForChange = (%q, %v), want (reply, true)", content, ok)
	}
}
