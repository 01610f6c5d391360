// Package session coordinates the listening lifecycle: intents, engine events,
// auto-restart across segment boundaries, and the transcript ledger.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pandagg110/speach-recognition/internal/engine"
	"github.com/pandagg110/speach-recognition/internal/failure"
	"github.com/pandagg110/speach-recognition/internal/fallback"
	"github.com/pandagg110/speach-recognition/internal/fsm"
	"github.com/pandagg110/speach-recognition/internal/logging"
	"github.com/pandagg110/speach-recognition/internal/transcript"
)

// Outcome is the immediate result of a start or stop intent.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeIgnored  Outcome = "ignored"
	OutcomeRejected Outcome = "rejected"
	OutcomeFallback Outcome = "fallback_requested"
)

// StartOutcome is the synchronous result of asking the engine to start.
type StartOutcome struct {
	Rejected bool
	Reason   string
}

// Options configures optional controller collaborators.
type Options struct {
	Logger    *slog.Logger
	Ledger    *transcript.Ledger
	Fallback  fallback.Hook
	Observers []Observer
	// Locale selects the language of active error messages.
	Locale string
	Now    func() time.Time
}

// Controller owns the listening state machine and the single engine handle.
type Controller struct {
	logger    *slog.Logger
	handle    engine.Handle
	ledger    *transcript.Ledger
	hook      fallback.Hook
	observers []Observer
	locale    string
	now       func() time.Time

	mu        sync.Mutex
	machine   fsm.Machine
	sessionID string
	// run is the engine run whose events are accepted; others are stale.
	run       engine.Run
	closed    bool
}

// NewController constructs a controller around handle. A nil handle means no
// recognition capability; intents are then forwarded to the fallback hook.
func NewController(handle engine.Handle, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Ledger == nil {
		opts.Ledger = transcript.NewLedger()
	}
	if opts.Fallback == nil {
		opts.Fallback = fallback.LogHook{Logger: opts.Logger}
	}
	if opts.Locale == "" {
		opts.Locale = engine.DefaultSettings().Locale
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Controller{
		logger:    opts.Logger,
		handle:    handle,
		ledger:    opts.Ledger,
		hook:      opts.Fallback,
		observers: opts.Observers,
		locale:    opts.Locale,
		now:       opts.Now,
		machine:   fsm.New(handle != nil),
	}
}

// Capable reports whether an engine handle was acquired.
func (c *Controller) Capable() bool {
	return c.handle != nil
}

// State returns the current FSM state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.State
}

// RequestStart asks the controller to begin listening. It never blocks on the engine.
func (c *Controller) RequestStart(ctx context.Context) Outcome {
	return c.intent(ctx, fsm.EventStartIntent)
}

// RequestStop asks the controller to stop listening. The state becomes idle
// only once the engine reports the run ended.
func (c *Controller) RequestStop(ctx context.Context) Outcome {
	return c.intent(ctx, fsm.EventStopIntent)
}

// Toggle stops an active session or starts an idle one.
func (c *Controller) Toggle(ctx context.Context) Outcome {
	c.mu.Lock()
	stopping := c.machine.Listening() && !c.machine.StopRequested
	c.mu.Unlock()

	if stopping {
		return c.RequestStop(ctx)
	}
	return c.RequestStart(ctx)
}

func (c *Controller) intent(ctx context.Context, kind fsm.EventKind) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return OutcomeIgnored
	}

	before := c.machine
	change := c.dispatch(ctx, fsm.Event{Kind: kind})

	for _, effect := range change.Effects {
		if effect.Kind == fsm.EffectRequestFallback {
			return OutcomeFallback
		}
	}
	if change.Event == fsm.EventStartRejected {
		return OutcomeRejected
	}
	if before == c.machine && len(change.Effects) == 0 {
		return OutcomeIgnored
	}
	return OutcomeAccepted
}

// Run delivers engine events to the state machine until ctx is cancelled or
// the engine event stream closes.
func (c *Controller) Run(ctx context.Context) error {
	if c.handle == nil {
		<-ctx.Done()
		return nil
	}

	events := c.handle.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.HandleEngineEvent(ctx, ev)
		}
	}
}

// HandleEngineEvent folds one engine event into the controller state. Events
// from any run other than the most recently started one are dropped.
func (c *Controller) HandleEngineEvent(ctx context.Context, ev engine.Event) {
	input, ok := translate(ev)
	if !ok {
		c.logger.Debug("engine event ignored", "kind", string(ev.Kind))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if ev.Run != c.run {
		c.logger.Debug("stale engine event dropped",
			"kind", string(ev.Kind),
			"run", uint64(ev.Run),
			"current_run", uint64(c.run),
		)
		return
	}
	c.dispatch(ctx, input)
}

// translate maps an engine event onto a state machine input.
func translate(ev engine.Event) (fsm.Event, bool) {
	switch ev.Kind {
	case engine.KindStarted:
		return fsm.Event{Kind: fsm.EventStarted}, true
	case engine.KindEnded:
		return fsm.Event{Kind: fsm.EventEnded}, true
	case engine.KindError:
		return fsm.Event{Kind: fsm.EventError, Code: ev.Code}, true
	case engine.KindResult:
		if n := len(ev.Results); n > 0 && !ev.Results[n-1].Final {
			return fsm.Event{}, false
		}
		text, confidence, ok := ev.Latest()
		if !ok {
			return fsm.Event{}, false
		}
		return fsm.Event{Kind: fsm.EventResult, Text: text, Confidence: confidence}, true
	default:
		return fsm.Event{}, false
	}
}

// dispatch applies ev and performs its effects. A rejected engine start is fed
// back as a follow-up input. Callers hold c.mu.
func (c *Controller) dispatch(ctx context.Context, ev fsm.Event) Change {
	change := Change{Event: ev.Kind, Previous: c.machine}
	pending := []fsm.Event{ev}

	for len(pending) > 0 {
		input := pending[0]
		pending = pending[1:]

		prev := c.machine
		next, effects, err := fsm.Transition(prev, input)
		if err != nil {
			c.logger.Error("state transition failed", "event", string(input.Kind), "error", err.Error())
			continue
		}
		c.machine = next
		change.Event = input.Kind
		change.Effects = append(change.Effects, effects...)
		c.logTransition(prev, next, input)

		if input.Kind == fsm.EventStartIntent && !prev.Listening() && next.Listening() {
			c.sessionID = uuid.NewString()
		}

		for _, effect := range effects {
			switch effect.Kind {
			case fsm.EffectStartEngine:
				if outcome := c.startEngine(); outcome.Rejected {
					pending = append(pending, fsm.Event{Kind: fsm.EventStartRejected, Reason: outcome.Reason})
				}
			case fsm.EffectStopEngine:
				if err := c.handle.Stop(); err != nil {
					c.logger.Warn("engine stop failed", "session_id", c.sessionID, "error", err.Error())
				}
			case fsm.EffectRecord:
				u := c.ledger.Record(effect.Text, effect.Confidence)
				change.Recorded = append(change.Recorded, u)
				c.logger.Info("utterance recorded",
					"session_id", c.sessionID,
					"length", len(u.Text),
					"confidence", u.Confidence,
				)
			case fsm.EffectRequestFallback:
				c.hook.RequestFallback(ctx, fallback.Request{
					Intent: fallbackIntent(effect.Intent),
					At:     c.now(),
				})
			}
		}
	}

	change.Current = c.machine
	change.Snapshot = c.snapshotLocked()
	for _, observer := range c.observers {
		observer.Observe(change)
	}
	return change
}

// startEngine invokes the engine start and converts a synchronous failure
// into a rejected outcome.
func (c *Controller) startEngine() (outcome StartOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = StartOutcome{Rejected: true, Reason: fmt.Sprintf("engine start panicked: %v", r)}
		}
		if outcome.Rejected {
			c.logger.Warn("engine start rejected", "session_id", c.sessionID, "reason", outcome.Reason)
		}
	}()

	run, err := c.handle.Start()
	if err != nil {
		return StartOutcome{Rejected: true, Reason: err.Error()}
	}
	c.run = run
	return StartOutcome{}
}

func (c *Controller) logTransition(prev fsm.Machine, next fsm.Machine, input fsm.Event) {
	if prev == next {
		return
	}
	attrs := []any{
		"event", string(input.Kind),
		"from", string(prev.State),
		"to", string(next.State),
		"session_id", c.sessionID,
	}
	if next.Restarts != prev.Restarts {
		attrs = append(attrs, "restarts", next.Restarts)
	}
	if next.HasError() && next.Err != prev.Err {
		attrs = append(attrs, "error_category", string(next.Err), "engine_code", input.Code)
		c.logger.Warn("listening session failed", attrs...)
		return
	}
	c.logger.Debug("state transition", attrs...)
}

func fallbackIntent(kind fsm.EventKind) fallback.Intent {
	if kind == fsm.EventStopIntent {
		return fallback.IntentStop
	}
	return fallback.IntentStart
}

// Snapshot returns the current read-only view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	latest, _ := c.ledger.Latest()
	snap := Snapshot{
		CapabilitySupported: c.machine.Capable,
		State:               c.machine.State,
		Listening:           c.machine.Listening(),
		StopRequested:       c.machine.StopRequested,
		LastTranscript:      latest,
		History:             c.ledger.History(),
		SessionID:           c.sessionID,
		Restarts:            c.machine.Restarts,
	}
	if c.machine.HasError() {
		snap.ActiveErrorCategory = string(c.machine.Err)
		snap.ActiveErrorMessage = failure.Message(c.machine.Err, c.locale)
	}
	return snap
}

// Close releases the engine: Stop is invoked regardless of state, followed by
// Close when the handle supports it. Failures are logged, never returned.
// Further intents and events are ignored.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.handle == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("engine release panicked", "panic", fmt.Sprint(r))
		}
	}()
	if err := c.handle.Stop(); err != nil {
		c.logger.Warn("engine release failed", "error", err.Error())
	}
	if closer, ok := c.handle.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			c.logger.Warn("engine close failed", "error", err.Error())
		}
	}
	return nil
}
