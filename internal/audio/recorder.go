// Package audio captures short intent clips from the default microphone.
package audio

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

// SampleRate matches what the transcribers expect: mono 16 kHz.
const SampleRate = 16000

// Capture records a fixed-duration clip as mono float32 PCM.
type Capture interface {
	Record(ctx context.Context, d time.Duration) ([]float32, error)
}

// Recorder captures from the default input device via portaudio.
type Recorder struct{}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Record captures exactly d worth of audio, or less if ctx is cancelled.
func (r *Recorder) Record(ctx context.Context, d time.Duration) ([]float32, error) {
	const frameSize = 320 // 20ms

	if d <= 0 {
		d = 2 * time.Second
	}

	buf := make([]float32, frameSize)
	out := make([]float32, 0, int(float64(SampleRate)*d.Seconds()))

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	frames := int(d.Seconds() * SampleRate / frameSize)
	for i := 0; i < frames; i++ {
		select {
		case <-ctx.Done():
			if len(out) == 0 {
				return nil, ctx.Err()
			}
			return out, nil
		default:
		}

		if err := stream.Read(); err != nil {
			return nil, err
		}
		out = append(out, buf...)
	}

	if len(out) == 0 {
		return nil, errors.New("no audio recorded")
	}
	return out, nil
}

// FrameRMS returns the root-mean-square level of one frame. Used by tests
// and by callers that want to skip obviously silent clips.
func FrameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
