// Package dictation drives the OS native dictation mode through simulated
// key events and a process probe.
package dictation

import (
	"context"
	log "log/slog"
	"sync"
	"time"

	"voxchat/internal/keyio"
	"voxchat/internal/probe"
)

// State is the dictation session lifecycle.
type State int

const (
	StateInactive State = iota
	StateStarting
	StateActive
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	default:
		return "inactive"
	}
}

// Result is the outcome of a start or stop request.
type Result int

const (
	Failed Result = iota
	Started
	AlreadyActive
	Stopped
	AlreadyInactive
)

func (r Result) String() string {
	switch r {
	case Started:
		return "started"
	case AlreadyActive:
		return "already-active"
	case Stopped:
		return "stopped"
	case AlreadyInactive:
		return "already-inactive"
	default:
		return "failed"
	}
}

// Config holds the key choreography timings. The inter-pulse delay is what
// makes the OS read two presses as one double-tap; the settle delays absorb
// dictation's activation latency before the probe is trusted again.
type Config struct {
	ToggleKey int
	CancelKey int

	// StopWithCancelKey stops with a single cancel key press instead of
	// repeating the toggle double-tap.
	StopWithCancelKey bool

	InterPulseDelay time.Duration
	StartSettle     time.Duration
	StopSettle      time.Duration

	ActivationWait time.Duration // how long WaitForCompletion waits for dictation to appear at all
	PollInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		ToggleKey:         keyio.KeyRightCommand,
		CancelKey:         keyio.KeyEscape,
		StopWithCancelKey: true,
		InterPulseDelay:   300 * time.Millisecond,
		StartSettle:       2 * time.Second,
		StopSettle:        time.Second,
		ActivationWait:    10 * time.Second,
		PollInterval:      500 * time.Millisecond,
	}
}

// Session is the single dictation session the controller owns.
type Session struct {
	State         State
	LastProbeTime time.Time
}

// Controller owns the one dictation session the system may have. All state
// transitions go through Start/Stop; teardown resets to inactive.
type Controller struct {
	keys  keyio.Emitter
	probe probe.Prober
	cfg   Config

	mu      sync.Mutex
	session Session
}

func NewController(keys keyio.Emitter, prober probe.Prober, cfg Config) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &Controller{keys: keys, probe: prober, cfg: cfg}
}

// Session returns a snapshot of the current session.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.session.State = s
	c.mu.Unlock()
}

func (c *Controller) probeActive() bool {
	active := c.probe != nil && c.probe.IsActive()
	c.mu.Lock()
	c.session.LastProbeTime = time.Now()
	c.mu.Unlock()
	return active
}

// Start begins native dictation. If the probe already reports it active,
// no key events are emitted.
func (c *Controller) Start() Result {
	if c.probeActive() {
		log.Info("dictation already active")
		c.setState(StateActive)
		return AlreadyActive
	}

	log.Info("starting native dictation", "key", c.cfg.ToggleKey)
	c.setState(StateStarting)

	if err := keyio.DoubleTap(c.keys, c.cfg.ToggleKey, c.cfg.InterPulseDelay); err != nil {
		log.Warn("dictation start keys failed", "err", err)
		c.setState(StateInactive)
		return Failed
	}

	time.Sleep(c.cfg.StartSettle)

	if c.probeActive() {
		log.Info("dictation started")
		c.setState(StateActive)
		return Started
	}

	log.Warn("dictation did not activate within the settle window")
	c.setState(StateInactive)
	return Failed
}

// Stop ends native dictation. Calling it while inactive is a no-op that
// emits no key events.
func (c *Controller) Stop() Result {
	if !c.probeActive() {
		c.setState(StateInactive)
		return AlreadyInactive
	}

	log.Info("stopping native dictation", "cancel", c.cfg.StopWithCancelKey)
	c.setState(StateStopping)

	var err error
	if c.cfg.StopWithCancelKey {
		err = keyio.Press(c.keys, c.cfg.CancelKey)
	} else {
		err = keyio.DoubleTap(c.keys, c.cfg.ToggleKey, c.cfg.InterPulseDelay)
	}
	if err != nil {
		log.Warn("dictation stop keys failed", "err", err)
		c.setState(StateInactive)
		return Failed
	}

	time.Sleep(c.cfg.StopSettle)

	if c.probeActive() {
		log.Warn("dictation still active after stop attempt")
		c.setState(StateActive)
		return Failed
	}

	log.Info("dictation stopped")
	c.setState(StateInactive)
	return Stopped
}

// WaitForCompletion waits for the user to finish dictating: first for the
// session to be observed active at all (bounded by ActivationWait), then
// for it to go inactive. Returns false if activation was never seen or the
// overall timeout elapsed.
func (c *Controller) WaitForCompletion(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	activationDeadline := time.Now().Add(c.cfg.ActivationWait)

	wasActive := false
	for time.Now().Before(activationDeadline) {
		if c.probeActive() {
			wasActive = true
			break
		}
		if !sleepOrDone(ctx, c.cfg.PollInterval) {
			return false
		}
	}
	if !wasActive {
		log.Warn("dictation never became active")
		return false
	}
	c.setState(StateActive)

	for time.Now().Before(deadline) {
		if !c.probeActive() {
			log.Info("dictation completed")
			c.setState(StateInactive)
			return true
		}
		if !sleepOrDone(ctx, c.cfg.PollInterval) {
			return false
		}
	}

	log.Warn("dictation completion wait timed out", "timeout", timeout)
	return false
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
