// Package probe reports whether the OS dictation service is running.
//
// The check is a best-effort process-list scan. It may lag a state change
// by a moment, which is why callers insert settle delays before re-probing.
package probe

import (
	"context"
	log "log/slog"
	"os/exec"
	"strings"
	"time"
)

// DictationProcesses are the process names that show up while native
// dictation is listening.
var DictationProcesses = []string{"DictationIM", "SpeechRecognitionServer", "Dictation"}

// Prober answers whether the watched OS feature is currently active.
type Prober interface {
	IsActive() bool
}

// ProcessProbe scans the process table for a set of process names.
type ProcessProbe struct {
	names   []string
	timeout time.Duration
}

func NewProcessProbe(names ...string) *ProcessProbe {
	if len(names) == 0 {
		names = DictationProcesses
	}
	return &ProcessProbe{
		names:   append([]string(nil), names...),
		timeout: 3 * time.Second,
	}
}

// IsActive returns true when any watched process is present. Probe errors
// count as inactive: the fail-safe direction is to allow a retry, never to
// abort the caller.
func (p *ProcessProbe) IsActive() bool {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "ps", "aux").Output()
	if err != nil {
		log.Warn("process probe failed, treating as inactive", "err", err)
		return false
	}

	return ContainsAny(string(out), p.names)
}

// ContainsAny reports whether the process listing mentions any of the names.
func ContainsAny(listing string, names []string) bool {
	for _, name := range names {
		if strings.Contains(listing, name) {
			return true
		}
	}
	return false
}
