// Package tts speaks text through the OS speech synthesizer.
package tts

import (
	"context"
	"fmt"
	log "log/slog"
	"os/exec"
	"time"
)

// Speaker voices a piece of text and returns once playback finished or the
// bound expired. Failures are user-visible (printed) before they return.
type Speaker interface {
	Say(ctx context.Context, text string) error
}

// SayCommand drives the macOS `say` binary. Synthesis is bounded: a run
// that exceeds the timeout is killed and the text is printed instead.
type SayCommand struct {
	Voice   string
	Timeout time.Duration
}

func NewSayCommand(voice string) *SayCommand {
	return &SayCommand{
		Voice:   voice,
		Timeout: 30 * time.Second,
	}
}

func (s *SayCommand) Say(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{}
	if s.Voice != "" {
		args = append(args, "-v", s.Voice)
	}
	args = append(args, text)

	log.Info("speaking", "chars", len(text))
	if err := exec.CommandContext(ctx, "say", args...).Run(); err != nil {
		log.Warn("speech synthesis failed, printing instead", "err", err)
		fmt.Printf("📝 %s\n", text)
		return fmt.Errorf("say: %w", err)
	}
	return nil
}

var _ Speaker = (*SayCommand)(nil)
