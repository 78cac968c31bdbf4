package tts

import (
	"context"
	"sync"
)

// Mock records spoken text for tests.
type Mock struct {
	// SayFunc overrides the default behavior when set.
	SayFunc func(ctx context.Context, text string) error

	mu     sync.Mutex
	spoken []string
}

func (m *Mock) Say(ctx context.Context, text string) error {
	m.mu.Lock()
	m.spoken = append(m.spoken, text)
	m.mu.Unlock()

	if m.SayFunc != nil {
		return m.SayFunc(ctx, text)
	}
	return nil
}

// Spoken returns a copy of everything said so far.
func (m *Mock) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.spoken))
	copy(out, m.spoken)
	return out
}

var _ Speaker = (*Mock)(nil)
