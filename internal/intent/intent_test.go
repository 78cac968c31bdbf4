package intent

import (
	"context"
	"errors"
	"testing"
	"time"

	"voxchat/pkg/stt"
)

type fakeCapture struct {
	calls int
	err   error
}

func (f *fakeCapture) Record(ctx context.Context, d time.Duration) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, 16000), nil
}

// scriptedSTT returns one transcript per call, then empty strings.
type scriptedSTT struct {
	texts []string
	calls int
}

func (s *scriptedSTT) TranscribePCM(ctx context.Context, pcm []float32, opt stt.Options) (stt.Result, error) {
	text := ""
	if s.calls < len(s.texts) {
		text = s.texts[s.calls]
	}
	s.calls++
	return stt.Result{Text: text}, nil
}

func (s *scriptedSTT) Close() error { return nil }

func TestClassifyTerminateBeatsAffirmative(t *testing.T) {
	cfg := DefaultConfig()

	got := Classify("はい、終わりです", cfg)
	if got != Terminate {
		t.Fatalf("Classify = %v, want Terminate", got)
	}
}

func TestClassify(t *testing.T) {
	cfg := DefaultConfig()

	cases := []struct {
		transcript string
		want       Intent
	}{
		{"はい", Affirmative},
		{"  YES  ", Affirmative},
		{"お願いします", Affirmative},
		{"いいえ", Terminate},
		{"ストップして", Terminate},
		{"", Unknown},
		{"今日はいい天気", Affirmative}, // substring match is accepted noise
		{"何を言っているのか", Unknown},
	}
	for _, c := range cases {
		if got := Classify(c.transcript, cfg); got != c.want {
			t.Errorf("Classify(%q) = %v, want %v", c.transcript, got, c.want)
		}
	}
}

func TestWaitForAffirmativeFirstTry(t *testing.T) {
	rec := &fakeCapture{}
	tr := &scriptedSTT{texts: []string{"はい"}}

	e := NewEngine(rec, tr, DefaultConfig())
	if !e.WaitForAffirmative(context.Background()) {
		t.Fatal("want affirmative")
	}
	if rec.calls != 1 {
		t.Fatalf("captures = %d, want 1", rec.calls)
	}
}

func TestWaitForAffirmativeTerminateIsImmediate(t *testing.T) {
	rec := &fakeCapture{}
	tr := &scriptedSTT{texts: []string{"やめて"}}

	e := NewEngine(rec, tr, DefaultConfig())
	if e.WaitForAffirmative(context.Background()) {
		t.Fatal("terminate must not count as affirmative")
	}
	if rec.calls != 1 {
		t.Fatalf("captures = %d, want 1 (no retries after terminate)", rec.calls)
	}
}

func TestWaitForAffirmativeExhaustsToNo(t *testing.T) {
	rec := &fakeCapture{}
	tr := &scriptedSTT{texts: []string{"ゴニョゴニョ", "", "雑音"}}

	cfg := DefaultConfig()
	cfg.RetryClipDuration = time.Millisecond
	cfg.ClipDuration = time.Millisecond

	e := NewEngine(rec, tr, cfg)
	if e.WaitForAffirmative(context.Background()) {
		t.Fatal("unknown results must fall back to no")
	}
	if rec.calls != 3 {
		t.Fatalf("captures = %d, want exactly 3", rec.calls)
	}
}

func TestClassifyOnceCaptureFailureIsUnknown(t *testing.T) {
	rec := &fakeCapture{err: errors.New("device busy")}
	tr := &scriptedSTT{}

	e := NewEngine(rec, tr, DefaultConfig())
	sample := e.ClassifyOnce(context.Background(), time.Millisecond, 1)
	if sample.Classification != Unknown {
		t.Fatalf("Classification = %v, want Unknown", sample.Classification)
	}
	if tr.calls != 0 {
		t.Fatal("transcriber must not run after a failed capture")
	}
}

func TestClassifyOnceDegradedEngine(t *testing.T) {
	e := NewEngine(nil, nil, DefaultConfig())
	sample := e.ClassifyOnce(context.Background(), time.Millisecond, 1)
	if sample.Classification != Unknown {
		t.Fatalf("Classification = %v, want Unknown", sample.Classification)
	}
}
