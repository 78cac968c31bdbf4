// Package intent classifies short spoken utterances into yes / stop / unknown.
//
// Transcription is unreliable and slow, so the engine deliberately avoids
// NLU: a clip is recorded for a fixed duration, transcribed, and matched
// against two keyword sets with a hard retry ceiling and a deterministic
// fallback. Terminate keywords win over affirmative ones so an ambiguous
// "yes, that's the end" never continues the loop.
package intent

import (
	"context"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voxchat/internal/audio"
	"voxchat/pkg/audioconv"
	"voxchat/pkg/stt"
)

// Intent is the classified meaning of one utterance.
type Intent int

const (
	Unknown Intent = iota
	Affirmative
	Terminate
)

func (i Intent) String() string {
	switch i {
	case Affirmative:
		return "affirmative"
	case Terminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Sample is the outcome of one recognition attempt.
type Sample struct {
	Transcript     string
	Classification Intent
	AttemptIndex   int
}

// Config holds the keyword sets and capture bounds.
type Config struct {
	AffirmativeWords []string
	TerminateWords   []string

	ClipDuration      time.Duration // first attempt
	RetryClipDuration time.Duration // retries get a longer window
	MaxAttempts       int

	Language    string
	RetryPrompt string // spoken/printed before each retry capture
	SaveDir     string // when set, every clip is dumped as wav
}

// DefaultConfig carries the keyword sets the original operators actually
// spoke, Japanese first with English variants mixed in.
func DefaultConfig() Config {
	return Config{
		AffirmativeWords: []string{
			"はい", "hai", "yes", "うん", "そうです", "オッケー", "ok", "そう",
			"お願い", "続行", "開始", "いいよ", "いいです", "スタート",
		},
		TerminateWords: []string{
			"いいえ", "いえ", "no", "だめ", "やめ", "キャンセル",
			"ストップ", "stop", "中止", "終わり", "おわり", "終了",
		},
		ClipDuration:      2 * time.Second,
		RetryClipDuration: 8 * time.Second,
		MaxAttempts:       3,
		Language:          "ja",
		RetryPrompt:       "もう一度、はい、か、いいえ、と話してください。",
	}
}

// Classify tests a transcript against the keyword sets. Terminate keywords
// take priority: if both sets match, the result is Terminate.
func Classify(transcript string, cfg Config) Intent {
	t := strings.ToLower(strings.TrimSpace(transcript))
	if t == "" {
		return Unknown
	}
	for _, w := range cfg.TerminateWords {
		if strings.Contains(t, strings.ToLower(w)) {
			return Terminate
		}
	}
	for _, w := range cfg.AffirmativeWords {
		if strings.Contains(t, strings.ToLower(w)) {
			return Affirmative
		}
	}
	return Unknown
}

// Chimer plays an audible cue before a capture starts.
type Chimer interface {
	Play()
}

// Prompter voices the retry prompt between attempts.
type Prompter interface {
	Say(ctx context.Context, text string) error
}

// Engine records, transcribes and classifies intent clips.
type Engine struct {
	capture  audio.Capture
	stt      stt.Transcriber
	chime    Chimer   // optional
	prompter Prompter // optional
	cfg      Config

	clipSeq int
}

func NewEngine(capture audio.Capture, transcriber stt.Transcriber, cfg Config) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.ClipDuration <= 0 {
		cfg.ClipDuration = 2 * time.Second
	}
	if cfg.RetryClipDuration <= 0 {
		cfg.RetryClipDuration = cfg.ClipDuration
	}
	return &Engine{capture: capture, stt: transcriber, cfg: cfg}
}

// SetChime attaches the capture cue.
func (e *Engine) SetChime(c Chimer) { e.chime = c }

// SetPrompter attaches the voice used for retry prompts.
func (e *Engine) SetPrompter(p Prompter) { e.prompter = p }

// ClassifyOnce captures one clip of the given duration and classifies it.
// Capture or transcription failure yields Unknown, never an error: the
// retry/fallback policy above this call absorbs every transient fault.
func (e *Engine) ClassifyOnce(ctx context.Context, d time.Duration, attempt int) Sample {
	sample := Sample{Classification: Unknown, AttemptIndex: attempt}

	if e.capture == nil || e.stt == nil {
		log.Warn("intent capture degraded, treating as unknown",
			"capture", e.capture != nil, "stt", e.stt != nil)
		return sample
	}

	if e.chime != nil {
		e.chime.Play()
	}

	pcm, err := e.capture.Record(ctx, d)
	if err != nil {
		log.Warn("intent capture failed", "attempt", attempt, "err", err)
		return sample
	}
	e.maybeSaveClip(pcm, attempt)

	res, err := e.stt.TranscribePCM(ctx, pcm, stt.Options{Language: e.cfg.Language})
	if err != nil {
		log.Warn("intent transcription failed", "attempt", attempt, "err", err)
		return sample
	}

	sample.Transcript = res.Text
	sample.Classification = Classify(res.Text, e.cfg)
	log.Info("intent classified",
		"transcript", res.Text,
		"intent", sample.Classification.String(),
		"attempt", attempt)
	return sample
}

// WaitForAffirmative asks for a yes/no and returns true only on a clear
// affirmative. Unknown results retry up to the configured bound, then the
// deterministic fallback false applies: silence and noise never continue
// the loop on their own.
func (e *Engine) WaitForAffirmative(ctx context.Context) bool {
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return false
		}

		d := e.cfg.ClipDuration
		if attempt > 1 {
			d = e.cfg.RetryClipDuration
			e.speakRetryPrompt(ctx, attempt)
		}

		sample := e.ClassifyOnce(ctx, d, attempt)
		switch sample.Classification {
		case Affirmative:
			return true
		case Terminate:
			return false
		}
	}

	log.Info("intent retries exhausted, falling back to no", "attempts", e.cfg.MaxAttempts)
	fmt.Println("音声認識に失敗しました。デフォルトで「いいえ」として処理します。")
	return false
}

func (e *Engine) speakRetryPrompt(ctx context.Context, attempt int) {
	fmt.Printf("再試行 %d/%d:\n", attempt, e.cfg.MaxAttempts)
	if e.prompter != nil && e.cfg.RetryPrompt != "" {
		if err := e.prompter.Say(ctx, e.cfg.RetryPrompt); err != nil {
			log.Warn("retry prompt failed", "err", err)
		}
	}
}

func (e *Engine) maybeSaveClip(pcm []float32, attempt int) {
	if e.cfg.SaveDir == "" {
		return
	}
	e.clipSeq++
	name := fmt.Sprintf("clip-%03d-attempt%d.wav", e.clipSeq, attempt)
	path := filepath.Join(e.cfg.SaveDir, name)
	if err := os.MkdirAll(e.cfg.SaveDir, 0o755); err != nil {
		log.Warn("clip dump dir", "err", err)
		return
	}
	if err := audioconv.WriteWAVFile(path, pcm, audio.SampleRate); err != nil {
		log.Warn("clip dump failed", "path", path, "err", err)
	}
}
