// Package notify plays a short chime right before an intent capture so the
// user knows the microphone is hot.
package notify

import (
	"errors"
	log "log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/vorbis"
)

// Chime holds a decoded sound and plays it on demand. A missing or broken
// asset degrades to silence after one warning.
type Chime struct {
	path string

	once   sync.Once
	buffer *beep.Buffer
	err    error
}

func NewChime(path string) *Chime {
	return &Chime{path: path}
}

func (c *Chime) load() {
	f, err := os.Open(c.path)
	if err != nil {
		c.err = err
		return
	}
	defer f.Close()

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(filepath.Ext(c.path)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".ogg", ".oga":
		streamer, format, err = vorbis.Decode(f)
	default:
		err = errors.New("unsupported chime format")
	}
	if err != nil {
		c.err = err
		return
	}
	defer streamer.Close()

	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		c.err = err
		return
	}

	buf := beep.NewBuffer(format)
	buf.Append(streamer)
	c.buffer = buf
}

// Play sounds the chime and waits for it to finish, bounded at one second.
func (c *Chime) Play() {
	c.once.Do(c.load)
	if c.err != nil {
		log.Warn("chime unavailable", "path", c.path, "err", c.err)
		c.err = nil // warn once
		return
	}
	if c.buffer == nil {
		return
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(
		c.buffer.Streamer(0, c.buffer.Len()),
		beep.Callback(func() { close(done) }),
	))

	select {
	case <-done:
	case <-time.After(time.Second):
	}
}
