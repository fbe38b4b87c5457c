// Package relay wires a command source, the dedup gate, and the
// keystroke injector into the loop that drives a shared terminal
// session from remotely supplied text.
package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/relayterm/cli/internal/source"
	"github.com/relayterm/cli/internal/tmate"
)

// Phase is the orchestrator lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSessionStarting
	PhaseRelaying
	PhaseStopping
	PhaseStopped
	PhaseFailed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSessionStarting:
		return "session-starting"
	case PhaseRelaying:
		return "relaying"
	case PhaseStopping:
		return "stopping"
	case PhaseStopped:
		return "stopped"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SessionManager is the full session lifecycle surface the orchestrator
// drives. tmate.Handle satisfies it; tests substitute fakes.
type SessionManager interface {
	SessionController
	Create(ctx context.Context) error
	AwaitReady(ctx context.Context, timeout time.Duration) error
	Links(ctx context.Context) (tmate.Links, error)
	Destroy()
}

// Options configures an Orchestrator.
type Options struct {
	// Session manages the underlying terminal session. Required.
	Session SessionManager

	// Source feeds command events. Required. The orchestrator closes it
	// during teardown.
	Source source.Source

	// Injector delivers commands into the session. Built from Session
	// with defaults when nil.
	Injector *Injector

	// ReadyTimeout bounds the session readiness wait. Zero uses
	// tmate.DefaultReadyTimeout.
	ReadyTimeout time.Duration

	// OnCommand, when set, is called once per delivered (post-dedup,
	// post-injection) command. Repeated identical commands never reach
	// it. Runs on the relay goroutine.
	OnCommand func(text string)

	// OnSessionLost, when set, is called when the loop detects the
	// session died mid-run. Runs on the relay goroutine.
	OnSessionLost func()
}

// Orchestrator owns one relay run: it brings the session up, runs the
// background loop source → dedup → inject, and tears everything down
// on stop or session loss.
//
// Session loss is terminal for the run. The orchestrator never
// recreates a session out from under an attached operator; it stops
// and reports instead.
type Orchestrator struct {
	opts     Options
	injector *Injector
	runID    string

	mu    sync.Mutex
	phase Phase
	state State

	cancel      context.CancelFunc
	done        chan struct{}
	destroyOnce sync.Once
}

// New creates an Orchestrator in the idle phase.
func New(opts Options) *Orchestrator {
	injector := opts.Injector
	if injector == nil {
		injector = NewInjector(opts.Session)
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = tmate.DefaultReadyTimeout
	}
	return &Orchestrator{
		opts:     opts,
		injector: injector,
		runID:    uuid.NewString(),
		phase:    PhaseIdle,
	}
}

// RunID identifies this relay run in logs.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Phase returns the current lifecycle phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
	log.Debug("Relay phase change", "run", o.runID, "phase", p)
}

// LastDelivered returns the dedup boundary. Stable once the loop has
// exited; while relaying it may lag the most recent injection.
func (o *Orchestrator) LastDelivered() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.LastDelivered
}

// Start creates the session, waits for readiness, retrieves the links,
// and spawns the background relay loop.
//
// Creation and readiness failures are fatal: the error is returned,
// the phase moves to failed, and no goroutine is spawned. A link
// retrieval failure is only a warning — the run continues without
// displayable links.
//
// The loop stops when ctx is cancelled, Stop is called, the session
// dies, or the source fails fatally.
func (o *Orchestrator) Start(ctx context.Context) (tmate.Links, error) {
	o.setPhase(PhaseSessionStarting)

	if err := o.opts.Session.Create(ctx); err != nil {
		o.setPhase(PhaseFailed)
		return tmate.Links{}, err
	}
	if err := o.opts.Session.AwaitReady(ctx, o.opts.ReadyTimeout); err != nil {
		o.setPhase(PhaseFailed)
		return tmate.Links{}, err
	}

	links, err := o.opts.Session.Links(ctx)
	if err != nil {
		log.Warn("Session links unavailable", "run", o.runID, "error", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.done = make(chan struct{})
	o.setPhase(PhaseRelaying)
	go o.loop(loopCtx)

	return links, nil
}

// loop is the single background relay task. One nextCommand → inject
// cycle completes, including advancing the dedup boundary, before the
// next begins, so at most one injection is ever in flight.
func (o *Orchestrator) loop(ctx context.Context) {
	defer close(o.done)
	defer o.teardown()

	log.Debug("Relay loop started", "run", o.runID)

	for {
		if ctx.Err() != nil {
			return
		}

		// Liveness is re-checked at every iteration boundary; a dead
		// session is noticed no later than one event after it dies.
		if !o.opts.Session.IsAlive() {
			log.Error("Session is gone; stopping relay", "run", o.runID)
			if o.opts.OnSessionLost != nil {
				o.opts.OnSessionLost()
			}
			return
		}

		ev, err := o.opts.Source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Command source failed; stopping relay", "run", o.runID, "error", err)
			return
		}

		text, ok := Accept(o.LastDelivered(), ev.Text)
		if !ok {
			continue
		}

		// The sends run outside the loop context: a stop request must
		// not cut a command in half, and the injection is bounded by
		// chunk count times chunk pause anyway.
		if err := o.injector.Inject(context.Background(), text); err != nil {
			// Per-occurrence log; the loop carries on and the dedup
			// boundary stays put so the same text can be retried.
			log.Error("Injection failed", "run", o.runID, "error", err)
			continue
		}

		o.mu.Lock()
		o.state.LastDelivered = text
		o.mu.Unlock()

		log.Debug("Command delivered", "run", o.runID, "kind", ev.Kind, "bytes", len(text))
		if o.opts.OnCommand != nil {
			o.opts.OnCommand(text)
		}
	}
}

func (o *Orchestrator) teardown() {
	o.setPhase(PhaseStopping)
	o.destroyOnce.Do(o.opts.Session.Destroy)
	if err := o.opts.Source.Close(); err != nil {
		log.Debug("Source close returned error", "run", o.runID, "error", err)
	}
	o.setPhase(PhaseStopped)
}

// Stop signals the relay loop and blocks until teardown completes.
// Safe to call multiple times and before Start (a no-op then).
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.Wait()
}

// Wait blocks until the relay loop has exited. Returns immediately if
// the loop was never started.
func (o *Orchestrator) Wait() {
	if o.done != nil {
		<-o.done
	}
}
