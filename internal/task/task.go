// Package task runs the acquisition cycle: it owns the receiver's power rail
// and transport for the duration of one trigger and reports the result.
package task

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"

	"gnss-tracker/internal/acquire"
	"gnss-tracker/internal/events"
	"gnss-tracker/internal/gnss"
	"gnss-tracker/internal/payload"
)

// Lifecycle states.
const (
	StateIdle         = "idle"
	StatePoweringUp   = "powering_up"
	StateInitializing = "initializing"
	StatePolling      = "polling"
	StateEncoding     = "encoding"
	StatePoweringDown = "powering_down"
)

const (
	evStart       = "start"
	evPowered     = "powered"
	evInitialized = "initialized"
	evPolled      = "polled"
	evAbort       = "abort"
	evEncoded     = "encoded"
	evFinished    = "finished"
)

// Initializer opens the receiver. *gnss.Detector implements it.
type Initializer interface {
	DetectAndInitialize() (gnss.Driver, error)
	Reinitialize(id gnss.ModuleIdentity, b gnss.TransportBinding) (gnss.Driver, error)
}

// Rail is the receiver's power switch. *power.Rail implements it; On and Off
// include their settle delays.
type Rail interface {
	On() error
	Off() error
	Reset() error
}

// AcquisitionContext is the state carried between cycles.
type AcquisitionContext struct {
	Identity gnss.ModuleIdentity
	Binding  gnss.TransportBinding

	LastFix    gnss.RawFix
	LastReadOK bool
	Compact    payload.Compact
	Precise    payload.Precise
	Outcome    acquire.Outcome

	Cycles  int
	Updated time.Time
}

// Result is handed to OnComplete after each cycle.
type Result struct {
	Fix     bool
	Outcome acquire.Outcome
	Compact payload.Compact
	Precise payload.Precise
	At      time.Time
}

// Options configures a Task.
type Options struct {
	Init     Initializer
	Rail     Rail
	Acquirer *acquire.Acquirer
	Events   events.Sink
	// Interval returns the current reporting interval in milliseconds. It is
	// read at the start of every cycle.
	Interval   func() uint32
	Completion *Completion
	OnComplete func(Result)
	Now        func() time.Time
	Log        logrus.FieldLogger
}

// Task is the single worker that owns the receiver.
type Task struct {
	opts    Options
	log     logrus.FieldLogger
	trigger chan struct{}
	fsm     *fsm.FSM

	mu   sync.Mutex
	actx AcquisitionContext
}

func New(opts Options) *Task {
	if opts.Log == nil {
		opts.Log = logrus.WithField("component", "task")
	}
	if opts.Acquirer == nil {
		opts.Acquirer = &acquire.Acquirer{Log: opts.Log}
	}
	if opts.Events == nil {
		opts.Events = events.Discard{}
	}
	if opts.Interval == nil {
		opts.Interval = func() uint32 { return 0 }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	t := &Task{
		opts:    opts,
		log:     opts.Log,
		trigger: make(chan struct{}, 1),
	}
	t.fsm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: evStart, Src: []string{StateIdle}, Dst: StatePoweringUp},
			{Name: evPowered, Src: []string{StatePoweringUp}, Dst: StateInitializing},
			{Name: evInitialized, Src: []string{StateInitializing}, Dst: StatePolling},
			{Name: evPolled, Src: []string{StatePolling}, Dst: StateEncoding},
			{Name: evAbort, Src: []string{StatePoweringUp, StateInitializing}, Dst: StateEncoding},
			{Name: evEncoded, Src: []string{StateEncoding}, Dst: StatePoweringDown},
			{Name: evFinished, Src: []string{StatePoweringDown}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				t.log.WithFields(logrus.Fields{"from": e.Src, "to": e.Dst}).Debug("state")
			},
		},
	)
	return t
}

// State returns the current lifecycle state.
func (t *Task) State() string { return t.fsm.Current() }

// Snapshot returns a copy of the acquisition context.
func (t *Task) Snapshot() AcquisitionContext {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.actx
}

// Trigger requests one cycle. Triggers arriving while one is already queued
// are coalesced; it reports whether a new cycle was queued.
func (t *Task) Trigger() bool {
	select {
	case t.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run drives the rail low, then serves triggers until ctx is done. A cycle in
// progress always runs to completion.
func (t *Task) Run(ctx context.Context) error {
	if err := t.opts.Rail.Reset(); err != nil {
		t.log.WithError(err).Warn("power down receiver")
	}
	t.log.Info("acquisition task started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.trigger:
			t.RunOnce(context.WithoutCancel(ctx))
		}
	}
}

func (t *Task) event(ctx context.Context, name string) {
	if err := t.fsm.Event(ctx, name); err != nil {
		t.log.WithError(err).WithField("event", name).Debug("lifecycle")
	}
}

func (t *Task) emit(k events.Kind) {
	if err := t.opts.Events.Emit(k); err != nil {
		t.log.WithError(err).Warn("emit event")
	}
}

// open reuses the cached identity when there is one.
func (t *Task) open() (gnss.Driver, error) {
	t.mu.Lock()
	id, b := t.actx.Identity, t.actx.Binding
	t.mu.Unlock()

	var (
		drv gnss.Driver
		err error
	)
	if id == gnss.ModuleUnset {
		drv, err = t.opts.Init.DetectAndInitialize()
	} else {
		drv, err = t.opts.Init.Reinitialize(id, b)
	}
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.actx.Identity = drv.Identity()
	t.actx.Binding = drv.Binding()
	t.mu.Unlock()
	return drv, nil
}

// RunOnce performs one full acquisition cycle.
func (t *Task) RunOnce(ctx context.Context) Result {
	t.log.Debug("task wake up")
	t.emit(events.StartLocation)
	t.event(ctx, evStart)

	out := acquire.Outcome{Status: acquire.StatusTimeout}
	if err := t.opts.Rail.On(); err != nil {
		t.log.WithError(err).Warn("power up receiver")
		t.event(ctx, evAbort)
	} else {
		t.event(ctx, evPowered)
		drv, err := t.open()
		if err != nil {
			t.log.WithError(err).Warn("open receiver")
			t.event(ctx, evAbort)
		} else {
			t.event(ctx, evInitialized)
			budget := acquire.Budget(t.opts.Interval())
			out = t.opts.Acquirer.Acquire(drv, budget)
			if err := drv.Close(); err != nil {
				t.log.WithError(err).Debug("close receiver")
			}
			t.event(ctx, evPolled)
		}
	}

	c, l := payload.Zero()
	if out.OK() {
		c, l = payload.Encode(payload.Position{LatE7: out.Fix.LatE7, LonE7: out.Fix.LonE7, AltMM: out.Fix.AltMM})
	}
	t.event(ctx, evEncoded)

	if err := t.opts.Rail.Off(); err != nil {
		t.log.WithError(err).Warn("power down receiver")
	}
	t.event(ctx, evFinished)

	res := Result{Fix: out.OK(), Outcome: out, Compact: c, Precise: l, At: t.opts.Now()}
	t.mu.Lock()
	t.actx.LastReadOK = res.Fix
	t.actx.LastFix = out.Fix
	t.actx.Compact = c
	t.actx.Precise = l
	t.actx.Outcome = out
	t.actx.Cycles++
	t.actx.Updated = res.At
	t.mu.Unlock()

	t.log.WithFields(logrus.Fields{
		"status":  out.Status.String(),
		"polls":   out.Polls,
		"elapsed": out.Elapsed,
	}).Info("acquisition finished")

	if res.Fix {
		t.emit(events.LocationFix)
	} else {
		t.emit(events.LocationNoFix)
	}
	t.opts.Completion.Notify(FlagGNSSFinished)
	if t.opts.OnComplete != nil {
		t.opts.OnComplete(res)
	}
	return res
}
