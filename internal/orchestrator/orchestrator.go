// Package orchestrator runs the voice chat cycle: dictate a question into
// the target app, send it, collect the reply from the clipboard, speak it,
// and ask whether to continue.
package orchestrator

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"voxchat/internal/bus"
	"voxchat/internal/dictation"
	"voxchat/internal/intent"
	"voxchat/internal/keyio"
	"voxchat/internal/tts"
)

// Phase is the cycle state machine's position.
type Phase int

const (
	PhaseSetup Phase = iota
	PhaseDictating
	PhaseAwaitingSend
	PhaseAwaitingResponse
	PhaseSpeaking
	PhaseContinuation
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhaseDictating:
		return "dictating"
	case PhaseAwaitingSend:
		return "awaiting-send"
	case PhaseAwaitingResponse:
		return "awaiting-response"
	case PhaseSpeaking:
		return "speaking"
	case PhaseContinuation:
		return "continuation-check"
	default:
		return "terminated"
	}
}

// DictationController is the dictation lifecycle the orchestrator drives.
type DictationController interface {
	Start() dictation.Result
	Stop() dictation.Result
	WaitForCompletion(ctx context.Context, timeout time.Duration) bool
}

// IntentEngine answers yes/no questions by voice.
type IntentEngine interface {
	WaitForAffirmative(ctx context.Context) bool
}

// IntentClassifier is the single-shot classification the stop-phrase
// monitor uses. Kept separate from IntentEngine so the monitor can run a
// chime-less engine that does not leak sounds into the dictation capture.
type IntentClassifier interface {
	ClassifyOnce(ctx context.Context, d time.Duration, attempt int) intent.Sample
}

// ResponseWatcher reports novel content from the shared text channel.
type ResponseWatcher interface {
	PollForChange(ctx context.Context, interval, timeout time.Duration) (string, bool)
}

// Deps are the collaborators; Monitor and Events may be nil.
type Deps struct {
	Dictation DictationController
	Intent    IntentEngine
	Monitor   IntentClassifier
	Watcher   ResponseWatcher
	Keys      keyio.Emitter
	Speaker   tts.Speaker
	Events    *bus.Bus
}

// Prompts are the spoken instructions, in the operator's language.
type Prompts struct {
	Setup      string
	ReplyReady string
	Retry      string
	Continue   string
	Goodbye    string
}

type Config struct {
	DictationTimeout     time.Duration
	ResponseTimeout      time.Duration
	ResponsePollInterval time.Duration
	MonitorClipDuration  time.Duration
	SendCombo            keyio.Combo
	Prompts              Prompts
}

func DefaultConfig() Config {
	return Config{
		DictationTimeout:     60 * time.Second,
		ResponseTimeout:      60 * time.Second,
		ResponsePollInterval: 2 * time.Second,
		MonitorClipDuration:  2 * time.Second,
		SendCombo:            keyio.SendCombo,
		Prompts: Prompts{
			Setup:      "準備はできましたか？",
			ReplyReady: "回答が完了したら、回答をコピーして「はい」と言ってください。",
			Retry:      "再試行しますか？",
			Continue:   "次の質問をしますか？",
			Goodbye:    "チャットを終了します。",
		},
	}
}

func (c Config) Validate() error {
	if c.DictationTimeout <= 0 || c.ResponseTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.ResponsePollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	return nil
}

// Orchestrator is the foreground control loop. During the Dictating phase
// it owns one background monitor goroutine; the only state shared with it
// is a single atomic stop flag the monitor writes and the loop reads.
type Orchestrator struct {
	deps Deps
	cfg  Config

	sessionID string
	stopReq   atomic.Bool

	mu           sync.Mutex
	phase        Phase
	timedOutOnce bool // dictation ended on the timeout path, not on completion
}

func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{deps: deps, cfg: cfg, phase: PhaseSetup}, nil
}

// Phase reports the current state machine position.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// RequestStop asks the loop to terminate gracefully after the phase in
// flight.
func (o *Orchestrator) RequestStop() {
	o.stopReq.Store(true)
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()

	log.Info("phase", "phase", p.String(), "session", o.sessionID)
	o.publish(bus.Event{Kind: "phase", Phase: p.String()})
}

func (o *Orchestrator) publish(ev bus.Event) {
	if o.deps.Events == nil {
		return
	}
	ev.SessionID = o.sessionID
	o.deps.Events.Publish(ev)
}

func (o *Orchestrator) speak(ctx context.Context, text string) {
	if text == "" {
		return
	}
	fmt.Println(text)
	if o.deps.Speaker == nil {
		return
	}
	if err := o.deps.Speaker.Say(ctx, text); err != nil {
		log.Warn("prompt speech failed", "err", err)
	}
}

// Run drives the cycle until Terminated. It returns nil on any graceful
// termination; the process exits non-zero only when setup could not
// produce the required collaborators, which is decided before Run.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.sessionID = uuid.NewString()
	o.stopReq.Store(false)
	log.Info("cycle starting", "session", o.sessionID)

	// Process termination still stops any active dictation. Stop is
	// idempotent: when nothing is active it emits no key events.
	defer func() {
		o.deps.Dictation.Stop()
		o.setPhase(PhaseTerminated)
	}()

	o.setPhase(PhaseSetup)
	o.speak(ctx, o.cfg.Prompts.Setup)
	if !o.waitForAffirmative(ctx) {
		o.speak(ctx, o.cfg.Prompts.Goodbye)
		return nil
	}

	for {
		if ctx.Err() != nil || o.stopReq.Load() {
			o.speak(context.WithoutCancel(ctx), o.cfg.Prompts.Goodbye)
			return nil
		}

		if !o.runPhase(ctx, o.dictatePhase) {
			return nil
		}
		if !o.runPhase(ctx, o.sendPhase) {
			return nil
		}

		content, ok := o.responsePhase(ctx)
		if !ok {
			return nil
		}

		o.speakPhase(ctx, content)

		o.setPhase(PhaseContinuation)
		o.speak(ctx, o.cfg.Prompts.Continue)
		if !o.waitForAffirmative(ctx) {
			o.speak(ctx, o.cfg.Prompts.Goodbye)
			return nil
		}
	}
}

// runPhase applies the retry policy: a failed phase gets a spoken retry
// prompt and one reconfirmation; a negative or fallback answer terminates
// the loop. Returns false when the loop should end.
func (o *Orchestrator) runPhase(ctx context.Context, phase func(context.Context) bool) bool {
	for {
		if phase(ctx) {
			return true
		}
		if !o.confirmRetry(ctx) {
			return false
		}
	}
}

func (o *Orchestrator) confirmRetry(ctx context.Context) bool {
	o.speak(ctx, o.cfg.Prompts.Retry)
	return o.waitForAffirmative(ctx)
}

func (o *Orchestrator) waitForAffirmative(ctx context.Context) bool {
	if o.deps.Intent == nil {
		// Degraded mode: no intent capture means the conservative default
		// everywhere a confirmation is asked.
		return false
	}
	return o.deps.Intent.WaitForAffirmative(ctx)
}

// dictatePhase starts native dictation and waits for the user to finish,
// racing the controller's completion wait against the stop-phrase monitor.
// Timeout of both still advances to the send phase, flagged with a warning.
func (o *Orchestrator) dictatePhase(ctx context.Context) bool {
	o.setPhase(PhaseDictating)

	switch o.deps.Dictation.Start() {
	case dictation.Failed:
		log.Warn("dictation failed to start")
		return false
	case dictation.AlreadyActive:
		log.Info("dictation was already active, reusing it")
	}

	fmt.Println("音声で質問を話してください（終了したら送信されます）")

	monCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stopHeard atomic.Bool
	var wg sync.WaitGroup
	if o.deps.Monitor != nil {
		wg.Add(1)
		go o.monitorStopPhrase(monCtx, &stopHeard, &wg)
	}

	completion := make(chan bool, 1)
	go func() {
		completion <- o.deps.Dictation.WaitForCompletion(monCtx, o.cfg.DictationTimeout)
	}()

	overall := time.NewTimer(o.cfg.DictationTimeout + time.Second)
	defer overall.Stop()
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	completed := false
wait:
	for {
		select {
		case ok := <-completion:
			completed = ok || stopHeard.Load()
			break wait
		case <-ticker.C:
			if stopHeard.Load() {
				completed = true
				break wait
			}
		case <-overall.C:
			break wait
		case <-monCtx.Done():
			break wait
		}
	}

	cancel()
	wg.Wait()

	if !completed {
		o.mu.Lock()
		o.timedOutOnce = true
		o.mu.Unlock()
		log.Warn("dictation wait timed out, proceeding to send anyway")
	}
	return true
}

// monitorStopPhrase is the one background goroutine of the system. It
// listens for a spoken terminate phrase; on detection it stops dictation
// and sets the shared flag, then exits. It never touches other state.
func (o *Orchestrator) monitorStopPhrase(ctx context.Context, heard *atomic.Bool, wg *sync.WaitGroup) {
	defer wg.Done()

	for attempt := 1; ctx.Err() == nil; attempt++ {
		sample := o.deps.Monitor.ClassifyOnce(ctx, o.cfg.MonitorClipDuration, attempt)
		if sample.Transcript != "" {
			o.publish(bus.Event{Kind: "transcript", Content: sample.Transcript})
		}
		if sample.Classification == intent.Terminate {
			log.Info("stop phrase heard, ending dictation", "transcript", sample.Transcript)
			o.deps.Dictation.Stop()
			heard.Store(true)
			return
		}
	}
}

func (o *Orchestrator) sendPhase(ctx context.Context) bool {
	o.setPhase(PhaseAwaitingSend)

	if err := keyio.PressCombo(o.deps.Keys, o.cfg.SendCombo); err != nil {
		log.Warn("send keys failed", "err", err)
		return false
	}
	log.Info("question submitted")
	return true
}

// responsePhase gates the clipboard poll behind a spoken confirmation,
// then waits for novel content. Returns ("", false) when the loop should
// terminate.
func (o *Orchestrator) responsePhase(ctx context.Context) (string, bool) {
	for {
		o.setPhase(PhaseAwaitingResponse)
		o.speak(ctx, o.cfg.Prompts.ReplyReady)

		if o.waitForAffirmative(ctx) {
			content, ok := o.deps.Watcher.PollForChange(ctx, o.cfg.ResponsePollInterval, o.cfg.ResponseTimeout)
			if ok {
				o.publish(bus.Event{Kind: "reply", Content: content})
				return content, true
			}
			log.Warn("no new response appeared before the timeout")
		}

		if !o.confirmRetry(ctx) {
			return "", false
		}
	}
}

func (o *Orchestrator) speakPhase(ctx context.Context, content string) {
	o.setPhase(PhaseSpeaking)

	fmt.Println("----------------------------------------")
	fmt.Println(content)
	fmt.Println("----------------------------------------")

	if o.deps.Speaker != nil {
		if err := o.deps.Speaker.Say(ctx, content); err != nil {
			log.Warn("reply speech failed", "err", err)
		}
	}
}

// TimedOut reports whether any dictation phase ended on the timeout path.
func (o *Orchestrator) TimedOut() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.timedOutOnce
}
