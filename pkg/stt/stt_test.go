package stt

import (
	"context"
	"errors"
	"testing"
)

type stubTranscriber struct {
	text  string
	err   error
	calls int
}

func (s *stubTranscriber) TranscribePCM(ctx context.Context, pcm []float32, opt Options) (Result, error) {
	s.calls++
	if s.err != nil {
		return Result{}, s.err
	}
	return Result{Text: s.text}, nil
}

func (s *stubTranscriber) Close() error { return nil }

func TestNewChainEmpty(t *testing.T) {
	if _, err := NewChain(); !errors.Is(err, ErrNoTranscriber) {
		t.Fatalf("err = %v, want ErrNoTranscriber", err)
	}
}

func TestChainFirstSuccessWins(t *testing.T) {
	first := &stubTranscriber{text: "local"}
	second := &stubTranscriber{text: "remote"}

	chain, err := NewChain(first, second)
	if err != nil {
		t.Fatal(err)
	}

	res, err := chain.TranscribePCM(context.Background(), nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "local" {
		t.Fatalf("Text = %q, want local", res.Text)
	}
	if second.calls != 0 {
		t.Fatal("fallback must not run when the first transcriber succeeds")
	}
}

func TestChainFallsBack(t *testing.T) {
	first := &stubTranscriber{err: errors.New("model not loaded")}
	second := &stubTranscriber{text: "remote"}

	chain, err := NewChain(first, second)
	if err != nil {
		t.Fatal(err)
	}

	res, err := chain.TranscribePCM(context.Background(), nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "remote" {
		t.Fatalf("Text = %q, want remote", res.Text)
	}
}

func TestChainAllFail(t *testing.T) {
	boom := errors.New("boom")
	chain, err := NewChain(&stubTranscriber{err: errors.New("first")}, &stubTranscriber{err: boom})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := chain.TranscribePCM(context.Background(), nil, Options{}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want last error", err)
	}
}
