// Package clipwatch watches a shared text channel (the system clipboard)
// for new content.
//
// The watcher cannot tell which application produced the content; the loop
// depends on the user copying the chat reply before the poll starts. Any
// new non-empty value is reported, once.
package clipwatch

import (
	"context"
	log "log/slog"
	"sync"
	"time"

	"github.com/atotto/clipboard"
)

// Channel is the shared text channel being watched.
type Channel interface {
	Read() (string, error)
	Write(text string) error
}

// SystemClipboard is the real clipboard.
type SystemClipboard struct{}

func (SystemClipboard) Read() (string, error)   { return clipboard.ReadAll() }
func (SystemClipboard) Write(text string) error { return clipboard.WriteAll(text) }

// Watcher tracks the last seen value and reports only novel content.
type Watcher struct {
	ch Channel

	mu         sync.Mutex
	last       string
	observedAt time.Time
}

func NewWatcher(ch Channel) *Watcher {
	return &Watcher{ch: ch}
}

// Poll reads the channel once. It returns (content, true) when the value
// is non-empty and differs from the last seen snapshot, updating the
// snapshot so the same value is never returned twice. Read errors are
// logged and count as no change.
func (w *Watcher) Poll() (string, bool) {
	content, err := w.ch.Read()
	if err != nil {
		log.Warn("channel read failed", "err", err)
		return "", false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if content == "" || content == w.last {
		return "", false
	}
	w.last = content
	w.observedAt = time.Now()
	return content, true
}

// PollForChange polls at the given interval until new content shows up or
// the timeout elapses.
func (w *Watcher) PollForChange(ctx context.Context, interval, timeout time.Duration) (string, bool) {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if content, ok := w.Poll(); ok {
			return content, true
		}
		if time.Now().After(deadline) {
			log.Warn("response wait timed out", "timeout", timeout)
			return "", false
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-ticker.C:
		}
	}
}

// LastSeen returns the current snapshot. Tests use it; callers should not
// act on it.
func (w *Watcher) LastSeen() (string, time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last, w.observedAt
}
