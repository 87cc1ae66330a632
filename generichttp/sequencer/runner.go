// Package sequencer exposes a ramp engine bound to one instrument over HTTP.
package sequencer

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/origami-ms/wrensramp/ramp"
)

// SinkFactory opens the sink for one run.  release is called once the run is
// over, whatever its outcome.
type SinkFactory func(ctx context.Context) (sink ramp.CommandSink, release func() error, err error)

// Status is a snapshot of the runner
type Status struct {
	Running  bool             `json:"running"`
	Mode     string           `json:"mode,omitempty"`
	Args     string           `json:"args,omitempty"`
	Started  time.Time        `json:"started,omitempty"`
	Progress ramp.Progress    `json:"progress"`
	Outcome  *ramp.RunOutcome `json:"outcome,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Runner owns the sink and allows one ramp at a time to run against it
type Runner struct {
	engine *ramp.Engine
	open   SinkFactory
	log    logrus.FieldLogger

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner binds engine to the sinks produced by open.  The runner takes
// over the engine's OnProgress hook.
func NewRunner(engine *ramp.Engine, open SinkFactory, log logrus.FieldLogger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Runner{engine: engine, open: open, log: log}
	engine.OnProgress = r.progress
	return r
}

func (r *Runner) progress(p ramp.Progress) {
	r.mu.Lock()
	r.status.Progress = p
	r.mu.Unlock()
}

// Engine is the engine the runner drives
func (r *Runner) Engine() *ramp.Engine {
	return r.engine
}

// Start validates p and runs it in the background.  It returns ErrBusy when a
// ramp is already running and the validation error when p is unusable.
func (r *Runner) Start(p ramp.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, err := ramp.ResolveCommandSet(p.Activation, p.Polarity); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Running {
		return ramp.ErrBusy
	}
	ctx, cancel := context.WithCancel(context.Background())
	sink, release, err := r.open(ctx)
	if err != nil {
		cancel()
		return errors.Wrap(ramp.ErrConnectionFailed, err.Error())
	}
	r.cancel = cancel
	r.done = make(chan struct{})
	r.status = Status{
		Running:  true,
		Mode:     p.Mode.String(),
		Args:     p.Args(),
		Started:  time.Now(),
		Progress: ramp.Progress{Phase: ramp.PhaseIdle},
	}
	go r.run(ctx, p, sink, release, r.done)
	return nil
}

func (r *Runner) run(ctx context.Context, p ramp.Params, sink ramp.CommandSink, release func() error, done chan struct{}) {
	defer close(done)
	out, err := r.engine.Run(ctx, p, sink)
	if release != nil {
		if rerr := release(); rerr != nil {
			r.log.WithError(rerr).Warn("releasing sink")
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Running = false
	r.status.Outcome = &out
	r.status.Progress.Phase = out.Phase
	if out.Phase == ramp.PhaseDone {
		r.status.Progress.Readback = out.FinalReadback
	}
	if err != nil {
		r.status.Error = err.Error()
	}
	r.cancel()
	r.cancel = nil
}

// Cancel stops the running ramp at its next bank write and waits for it to
// end.  It is not an error to cancel when nothing runs.
func (r *Runner) Cancel() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Wait blocks until the current run, if any, is over
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Halt clears the property banks and stops the repeating bank function.  It
// refuses with ErrBusy while a ramp runs; cancel it first.
func (r *Runner) Halt() error {
	r.mu.Lock()
	if r.status.Running {
		r.mu.Unlock()
		return ramp.ErrBusy
	}
	// hold the run slot while halting
	r.status.Running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.status.Running = false
		r.mu.Unlock()
	}()

	sink, release, err := r.open(context.Background())
	if err != nil {
		return errors.Wrap(ramp.ErrConnectionFailed, err.Error())
	}
	if release != nil {
		defer release()
	}
	if err = sink.Connect(r.engine.Config().Target); err != nil {
		return errors.Wrap(ramp.ErrConnectionFailed, err.Error())
	}
	r.log.Info("halting property banks")
	return ramp.Halt(sink)
}

// Status returns a snapshot of the runner
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.status
	if s.Outcome != nil {
		out := *s.Outcome
		s.Outcome = &out
	}
	return s
}
