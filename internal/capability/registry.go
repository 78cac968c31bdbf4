// Package capability collects the optional OS collaborators in one place.
//
// The registry is built once at startup; components receive the handles
// they need and never probe availability themselves. A missing capability
// is warned about exactly once here and degrades to its fail-safe default
// at the point of use.
package capability

import (
	"errors"
	log "log/slog"

	"voxchat/internal/audio"
	"voxchat/internal/bus"
	"voxchat/internal/clipwatch"
	"voxchat/internal/keyio"
	"voxchat/internal/notify"
	"voxchat/internal/probe"
	"voxchat/internal/tts"
	"voxchat/pkg/stt"
)

// ErrNoKeyEmitter means the system cannot drive dictation at all.
var ErrNoKeyEmitter = errors.New("capability: key event emitter unavailable")

// Registry holds optional handles to every collaborator. A nil field means
// the capability is absent and its consumer substitutes the fail-safe
// default everywhere it is queried.
type Registry struct {
	Keys        keyio.Emitter
	Probe       probe.Prober
	Capture     audio.Capture
	Transcriber stt.Transcriber
	Speaker     tts.Speaker
	Clipboard   clipwatch.Channel
	Chime       *notify.Chime
	Bus         *bus.Bus
}

// Check logs each degraded capability once and returns an error only when
// the setup is unrecoverable: without key injection there is nothing the
// loop can drive.
func (r *Registry) Check() error {
	if r.Keys == nil {
		return ErrNoKeyEmitter
	}
	if r.Probe == nil {
		log.Warn("no activity probe: dictation state is assumed inactive")
	}
	if r.Capture == nil || r.Transcriber == nil {
		log.Warn("voice intent unavailable: every confirmation falls back to no",
			"capture", r.Capture != nil, "stt", r.Transcriber != nil)
	}
	if r.Speaker == nil {
		log.Warn("speech synthesis unavailable: prompts and replies are printed only")
	}
	if r.Clipboard == nil {
		log.Warn("clipboard unavailable: responses cannot be collected")
	}
	return nil
}
