// Package stt turns captured PCM into text.
//
// Two implementations exist: a local whisper.cpp model and the OpenAI
// transcription API. A Chain tries them in order so a transient local
// failure degrades to the API instead of failing the caller.
package stt

import (
	"context"
	"errors"
	log "log/slog"
)

// ErrNoTranscriber is returned by an empty chain.
var ErrNoTranscriber = errors.New("stt: no transcriber available")

type Options struct {
	Language      string // e.g. "auto", "en", "ja"
	Threads       int    // <=0 => NumCPU()
	InitialPrompt string
}

type Result struct {
	Text     string
	Language string // detected or forced
}

// Transcriber converts mono 16 kHz float32 PCM into text.
type Transcriber interface {
	TranscribePCM(ctx context.Context, pcm []float32, opt Options) (Result, error)
	Close() error
}

// Chain tries each transcriber in order; the first success wins.
type Chain struct {
	transcribers []Transcriber
}

func NewChain(transcribers ...Transcriber) (*Chain, error) {
	if len(transcribers) == 0 {
		return nil, ErrNoTranscriber
	}
	return &Chain{transcribers: transcribers}, nil
}

func (c *Chain) TranscribePCM(ctx context.Context, pcm []float32, opt Options) (Result, error) {
	var lastErr error
	for i, t := range c.transcribers {
		res, err := t.TranscribePCM(ctx, pcm, opt)
		if err == nil {
			if i > 0 {
				log.Info("fallback transcriber succeeded", "index", i)
			}
			return res, nil
		}
		lastErr = err
		log.Warn("transcriber failed, trying next", "index", i, "err", err)

		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
	}
	return Result{}, lastErr
}

func (c *Chain) Close() error {
	var lastErr error
	for _, t := range c.transcribers {
		if err := t.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

var _ Transcriber = (*Chain)(nil)
