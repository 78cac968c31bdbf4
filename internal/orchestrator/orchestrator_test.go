package orchestrator

import (
	"context"
	"testing"
	"time"

	"voxchat/internal/dictation"
	"voxchat/internal/intent"
	"voxchat/internal/keyio"
	"voxchat/internal/tts"
)

type fakeDict struct {
	startResults []dictation.Result
	startCalls   int
	stopCalls    int

	completion bool
	block      bool // completion wait blocks until the context ends
}

func (d *fakeDict) Start() dictation.Result {
	i := d.startCalls
	d.startCalls++
	if i < len(d.startResults) {
		return d.startResults[i]
	}
	return dictation.Started
}

func (d *fakeDict) Stop() dictation.Result {
	d.stopCalls++
	return dictation.Stopped
}

func (d *fakeDict) WaitForCompletion(ctx context.Context, timeout time.Duration) bool {
	if d.block {
		<-ctx.Done()
		return false
	}
	return d.completion
}

// scriptedIntent answers one confirmation per call, defaulting to false.
type scriptedIntent struct {
	answers []bool
	calls   int
}

func (s *scriptedIntent) WaitForAffirmative(ctx context.Context) bool {
	i := s.calls
	s.calls++
	if i < len(s.answers) {
		return s.answers[i]
	}
	return false
}

type fakeMonitor struct {
	terminateAt int // classification attempt that hears the stop phrase, 0 = never
	calls       int
}

func (m *fakeMonitor) ClassifyOnce(ctx context.Context, d time.Duration, attempt int) intent.Sample {
	m.calls++
	time.Sleep(time.Millisecond)
	if m.terminateAt > 0 && m.calls >= m.terminateAt {
		return intent.Sample{Transcript: "終わり", Classification: intent.Terminate, AttemptIndex: attempt}
	}
	return intent.Sample{Classification: intent.Unknown, AttemptIndex: attempt}
}

type fakeWatcher struct {
	content string
	ok      bool
	calls   int
}

func (w *fakeWatcher) PollForChange(ctx context.Context, interval, timeout time.Duration) (string, bool) {
	w.calls++
	return w.content, w.ok
}

type recordingEmitter struct {
	downs []int
}

func (r *recordingEmitter) Emit(code int, down bool) error {
	if down {
		r.downs = append(r.downs, code)
	}
	return nil
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.DictationTimeout = 50 * time.Millisecond
	cfg.ResponseTimeout = 50 * time.Millisecond
	cfg.ResponsePollInterval = time.Millisecond
	cfg.MonitorClipDuration = time.Millisecond
	return cfg
}

func newTestOrchestrator(t *testing.T, deps Deps) *Orchestrator {
	t.Helper()
	o, err := New(deps, fastConfig())
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestRunSetupDeclinedTerminates(t *testing.T) {
	dict := &fakeDict{}
	o := newTestOrchestrator(t, Deps{
		Dictation: dict,
		Intent:    &scriptedIntent{answers: []bool{false}},
		Watcher:   &fakeWatcher{},
		Keys:      &recordingEmitter{},
	})

	if err := o.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if o.Phase() != PhaseTerminated {
		t.Fatalf("phase = %v, want terminated", o.Phase())
	}
	if dict.startCalls != 0 {
		t.Fatal("declined setup must never start dictation")
	}
}

func TestRunFullCycleThenStop(t *testing.T) {
	dict := &fakeDict{completion: true}
	keys := &recordingEmitter{}
	speaker := &tts.Mock{}
	watcher := &fakeWatcher{content: "回答テキスト", ok: true}

	// setup yes, reply-ready yes, continue no
	voice := &scriptedIntent{answers: []bool{true, true, false}}

	o := newTestOrchestrator(t, Deps{
		Dictation: dict,
		Intent:    voice,
		Watcher:   watcher,
		Keys:      keys,
		Speaker:   speaker,
	})

	if err := o.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if dict.startCalls != 1 {
		t.Fatalf("dictation starts = %d, want 1", dict.startCalls)
	}
	if watcher.calls != 1 {
		t.Fatalf("watcher polls = %d, want 1", watcher.calls)
	}

	sawSend := false
	for _, code := range keys.downs {
		if code == keyio.KeyReturn {
			sawSend = true
		}
	}
	if !sawSend {
		t.Fatal("send combo was never pressed")
	}

	spokeReply := false
	for _, text := range speaker.Spoken() {
		if text == "回答テキスト" {
			spokeReply = true
		}
	}
	if !spokeReply {
		t.Fatal("reply was never spoken")
	}

	if dict.stopCalls == 0 {
		t.Fatal("teardown must stop dictation")
	}
	if o.Phase() != PhaseTerminated {
		t.Fatalf("phase = %v, want terminated", o.Phase())
	}
	if o.TimedOut() {
		t.Fatal("a completed dictation must not be flagged as timed out")
	}
}

func TestRunResponseTimeoutRetryDeclined(t *testing.T) {
	dict := &fakeDict{completion: true}
	watcher := &fakeWatcher{ok: false}

	// setup yes, reply-ready yes, retry no
	voice := &scriptedIntent{answers: []bool{true, true, false}}

	o := newTestOrchestrator(t, Deps{
		Dictation: dict,
		Intent:    voice,
		Watcher:   watcher,
		Keys:      &recordingEmitter{},
	})

	if err := o.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if watcher.calls != 1 {
		t.Fatalf("watcher polls = %d, want 1", watcher.calls)
	}
	if voice.calls != 3 {
		t.Fatalf("confirmations = %d, want 3", voice.calls)
	}
	if o.Phase() != PhaseTerminated {
		t.Fatalf("phase = %v, want terminated", o.Phase())
	}
}

func TestRunStopPhraseEndsDictation(t *testing.T) {
	dict := &fakeDict{block: true}
	monitor := &fakeMonitor{terminateAt: 2}

	// setup yes, reply-ready no, retry no
	voice := &scriptedIntent{answers: []bool{true, false, false}}

	o := newTestOrchestrator(t, Deps{
		Dictation: dict,
		Intent:    voice,
		Monitor:   monitor,
		Watcher:   &fakeWatcher{},
		Keys:      &recordingEmitter{},
	})

	if err := o.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	// one stop from the monitor plus the teardown stop
	if dict.stopCalls < 2 {
		t.Fatalf("stops = %d, want monitor stop plus teardown", dict.stopCalls)
	}
	if o.TimedOut() {
		t.Fatal("a stop phrase must not count as a timeout")
	}
}

func TestRunDictationTimeoutStillSends(t *testing.T) {
	dict := &fakeDict{block: true}
	keys := &recordingEmitter{}

	// setup yes, reply-ready no, retry no
	voice := &scriptedIntent{answers: []bool{true, false, false}}

	o := newTestOrchestrator(t, Deps{
		Dictation: dict,
		Intent:    voice,
		Watcher:   &fakeWatcher{},
		Keys:      keys,
	})

	if err := o.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !o.TimedOut() {
		t.Fatal("an expired dictation wait must be flagged")
	}
	sawSend := false
	for _, code := range keys.downs {
		if code == keyio.KeyReturn {
			sawSend = true
		}
	}
	if !sawSend {
		t.Fatal("the timeout path must still submit the question")
	}
}

func TestRunDictationStartFailureRetryDeclined(t *testing.T) {
	dict := &fakeDict{startResults: []dictation.Result{dictation.Failed}}

	// setup yes, retry no
	voice := &scriptedIntent{answers: []bool{true, false}}

	o := newTestOrchestrator(t, Deps{
		Dictation: dict,
		Intent:    voice,
		Watcher:   &fakeWatcher{},
		Keys:      &recordingEmitter{},
	})

	if err := o.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if dict.startCalls != 1 {
		t.Fatalf("starts = %d, want 1", dict.startCalls)
	}
	if o.Phase() != PhaseTerminated {
		t.Fatalf("phase = %v, want terminated", o.Phase())
	}
}
