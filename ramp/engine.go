/*Package ramp sequences Collision Induced Unfolding (CIU) voltage ramps.

An Engine takes ramp Params, validates them, resolves the host commands for
the activation type and ion polarity and then drives a CommandSink through

	Idle -> Priming -> Ramping -> FinalHold -> Resetting -> Done

Each voltage of the ramp is written to the host's property bank together with
the number of scans to hold it for.  The host rejects bank writes above a
scan ceiling (20), so larger counts are split into several writes at the same
voltage.  Every write is followed by a blocking wait of
scans * scan time * TimeUnit milliseconds.

Validation and connection failures end in PhaseAborted with nothing sent to
the device.  A sink error during the run ends in PhaseFailed; the device is
left as the last successful command left it and Halt can be used to stop the
property banks.
*/
package ramp

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Phase is a state of a ramp run
type Phase string

const (
	PhaseIdle      Phase = "Idle"
	PhasePriming   Phase = "Priming"
	PhaseRamping   Phase = "Ramping"
	PhaseFinalHold Phase = "FinalHold"
	PhaseResetting Phase = "Resetting"
	PhaseDone      Phase = "Done"
	PhaseAborted   Phase = "Aborted"
	PhaseFailed    Phase = "Failed"
	PhaseCanceled  Phase = "Canceled"
)

// Terminal reports whether no further transition follows p
func (p Phase) Terminal() bool {
	switch p {
	case PhaseDone, PhaseAborted, PhaseFailed, PhaseCanceled:
		return true
	}
	return false
}

// Progress is published after every bank write and phase change
type Progress struct {
	Phase       Phase   `json:"phase"`
	Step        int     `json:"step"`
	Voltage     float64 `json:"voltage"`
	ScanCount   int     `json:"scanCount"`
	Remaining   int     `json:"remaining"`
	Readback    float64 `json:"readback"`
	Accumulator float64 `json:"accumulator"`
	Batches     int     `json:"batches"`
	Scans       int     `json:"scans"`
}

// RunOutcome summarizes a run, complete or not
type RunOutcome struct {
	Phase Phase `json:"phase"`

	// Steps is the number of ramp voltages started, final hold excluded
	Steps int `json:"steps"`

	// Batches is the number of bank writes issued at ramp or hold voltages
	Batches int `json:"batches"`

	// RampScans counts the scans written during Ramping
	RampScans int `json:"rampScans"`

	// HoldScans counts the scans written during FinalHold
	HoldScans int `json:"holdScans"`

	// WaitedMS is the sum of every wait issued to the sink
	WaitedMS int `json:"waitedMs"`

	// FinalReadback is the setting read back once the ramp has been reset
	FinalReadback float64 `json:"finalReadback"`
}

// Engine runs ramps against a CommandSink.  An Engine holds no per-run state
// and may be reused; a sink must not be shared by concurrent runs.
type Engine struct {
	cfg Config

	// Log receives the run log; defaults to the logrus standard logger
	Log logrus.FieldLogger

	// OnProgress, if not nil, is called synchronously with every progress update
	OnProgress func(Progress)
}

// New returns an engine using cfg, zero fields replaced by their defaults
func New(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, Log: logrus.StandardLogger()}, nil
}

// Config returns the engine constants
func (e *Engine) Config() Config {
	return e.cfg
}

// run carries the state of one ramp; nothing in it outlives Run
type run struct {
	e    *Engine
	ctx  context.Context
	p    Params
	cs   CommandSet
	sink CommandSink
	log  logrus.FieldLogger
	out  RunOutcome
	prog Progress

	// lastCount is the resolved scan count of the last ramp step
	lastCount int
}

// Run executes the ramp described by p against sink.  The context is checked
// before every bank write; cancellation stops the ramp where it stands.
func (e *Engine) Run(ctx context.Context, p Params, sink CommandSink) (RunOutcome, error) {
	r := &run{e: e, ctx: ctx, p: p, sink: sink, out: RunOutcome{Phase: PhaseIdle}}
	r.log = e.logger().WithFields(logrus.Fields{
		"mode":       p.Mode,
		"activation": p.Activation,
		"polarity":   p.Polarity,
	})

	if err := p.Validate(); err != nil {
		return r.abort(err)
	}
	cs, err := ResolveCommandSet(p.Activation, p.Polarity)
	if err != nil {
		return r.abort(err)
	}
	r.cs = cs
	r.banner()
	if err := sink.Connect(e.cfg.Target); err != nil {
		return r.abort(errors.Wrapf(ErrConnectionFailed, "could not connect to the %s: %v", e.cfg.Target, err))
	}

	stages := []struct {
		phase Phase
		fn    func() error
	}{
		{PhasePriming, r.prime},
		{PhaseRamping, r.ramp},
		{PhaseFinalHold, r.finalHold},
		{PhaseResetting, r.reset},
		{PhaseDone, r.finish},
	}
	for _, s := range stages {
		r.enter(s.phase)
		if err := s.fn(); err != nil {
			return r.fail(err)
		}
	}
	r.log.WithField("scans", r.out.RampScans+r.out.HoldScans).Info("finished ramping collision voltage")
	return r.out, nil
}

func (e *Engine) logger() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

func (r *run) enter(p Phase) {
	r.out.Phase = p
	r.prog.Phase = p
	r.log.WithField("phase", p).Debug("phase change")
	r.publish()
}

func (r *run) publish() {
	if r.e.OnProgress != nil {
		r.e.OnProgress(r.prog)
	}
}

func (r *run) abort(err error) (RunOutcome, error) {
	r.out.Phase = PhaseAborted
	r.prog.Phase = PhaseAborted
	r.log.WithError(err).Error("ramp aborted before any command was sent")
	r.publish()
	return r.out, err
}

func (r *run) fail(err error) (RunOutcome, error) {
	at := r.out.Phase
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		r.out.Phase = PhaseCanceled
	} else {
		r.out.Phase = PhaseFailed
	}
	r.prog.Phase = r.out.Phase
	r.log.WithError(err).WithField("phase", at).Error("ramp stopped")
	r.publish()
	return r.out, errors.Wrapf(err, "ramp stopped during %s", at)
}

func (r *run) banner() {
	fields := logrus.Fields{"scanTime": r.p.ScanTime}
	switch r.p.Mode {
	case ExplicitList:
		total := 0
		for _, n := range r.p.ScanCounts {
			total += n
		}
		fields["steps"] = len(r.p.ScanCounts)
		fields["scans"] = total
		fields["minutes"] = float64(total*r.p.ScanTime) / 60
	default:
		fields["spv"] = r.p.ScansPerVoltage
		fields["start"] = r.p.StartVoltage
		fields["end"] = r.p.EndVoltage
		fields["step"] = r.p.StepVoltage
		if r.p.Mode == Exponential {
			fields["expPercent"] = r.p.ExpOnsetPercent
			fields["expIncrement"] = r.p.ExpIncrement
		}
		if r.p.AcquisitionMinutes > 0 {
			fields["minutes"] = r.p.AcquisitionMinutes
			fields["scans"] = int(r.p.AcquisitionMinutes*60/float64(r.p.ScanTime) + 0.5)
		}
	}
	r.log.WithFields(fields).Infof("ramping collision voltage in %s in %s ionisation mode", r.p.Activation, r.p.Polarity)
}

func (r *run) send(cmds ...string) error {
	for _, c := range cmds {
		r.log.WithField("cmd", c).Debug("send")
		if err := r.sink.SendCommand(c); err != nil {
			return errors.Wrapf(err, "send %q", c)
		}
	}
	return nil
}

func (r *run) wait(ms int) error {
	if err := r.sink.Wait(ms); err != nil {
		return errors.Wrapf(err, "wait %d ms", ms)
	}
	r.out.WaitedMS += ms
	return nil
}

// scanWait is the wait for n scans
func (r *run) scanWait(n int) int {
	return n * r.p.ScanTime * r.e.cfg.TimeUnit
}

func (r *run) prime() error {
	cfg := r.e.cfg
	err := r.send(CmdEnableSyncWrite, CmdInitPropertyArrays, r.cs.StartStop, SwitchCount(bank, cfg.StartStopCount))
	if err != nil {
		return err
	}
	if err = r.wait(cfg.TimeUnit); err != nil {
		return err
	}
	if err = r.sink.StartRepeatingFunction(StartScanFunction, BankFunction); err != nil {
		return errors.Wrap(err, "start repeating bank function")
	}
	if err = r.wait(cfg.StartStopCount * cfg.TimeUnit); err != nil {
		return err
	}
	r.log.Info("starting ramping collision voltage")
	return nil
}

// batch writes one bank at voltage v held for count scans, then waits for it
func (r *run) batch(v float64, count int) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	err := r.send(CmdInitPropertyArrays, r.cs.Apply(v), SwitchCount(bank, count))
	if err != nil {
		return err
	}
	if err = r.wait(r.scanWait(count)); err != nil {
		return err
	}
	r.out.Batches++
	r.prog.Batches = r.out.Batches
	r.prog.Scans += count
	return nil
}

// emit writes n scans at voltage v, split at the ceiling.  readback
// selects whether the applied setting is read and logged after each write.
func (r *run) emit(v float64, n int, readback bool) error {
	remaining := n
	return NewBatching(n, r.e.cfg.SplitCeiling).Each(func(count int) error {
		if err := r.batch(v, count); err != nil {
			return err
		}
		remaining -= count
		r.prog.Voltage = v
		r.prog.ScanCount = count
		r.prog.Remaining = remaining
		fields := logrus.Fields{
			"voltage":   v,
			"spv":       count,
			"remaining": remaining,
		}
		if r.p.Mode == Exponential {
			fields["accumulator"] = fmt.Sprintf("%.2f", r.prog.Accumulator)
		}
		if readback {
			val, err := r.sink.ReadSetting(r.cs.Readback)
			if err != nil {
				r.log.WithError(err).WithField("setting", r.cs.Readback).Warn("readback failed")
			} else {
				r.prog.Readback = val
				fields["readback"] = val
			}
		}
		r.log.WithFields(fields).Info("bank written")
		r.publish()
		return nil
	})
}

func (r *run) ramp() error {
	st := newStepper(r.p)
	for s, ok := st.next(); ok; s, ok = st.next() {
		r.out.Steps++
		r.prog.Step = r.out.Steps
		r.prog.Accumulator = st.accumulator()
		r.lastCount = s.ScanCount
		if err := r.emit(s.Voltage, s.ScanCount, true); err != nil {
			return err
		}
		r.out.RampScans += s.ScanCount
	}
	return nil
}

// finalHold acquires the last voltage once more so the end of the range is
// reached even when the voltage walk stopped short of it.  The hold is not
// read back; the setting is read once more after the reset.
func (r *run) finalHold() error {
	n := r.lastCount
	if r.out.Steps == 0 {
		n = r.p.ScansPerVoltage
	}
	if err := r.emit(r.p.FinalVoltage(), n, false); err != nil {
		return err
	}
	r.out.HoldScans = n
	return nil
}

func (r *run) reset() error {
	cfg := r.e.cfg
	hold := r.scanWait(cfg.StartStopCount)
	err := r.send(CmdInitPropertyArrays, r.cs.StartStop, SwitchCount(bank, cfg.StartStopCount))
	if err != nil {
		return err
	}
	if err = r.wait(hold); err != nil {
		return err
	}
	err = r.send(CmdInitPropertyArrays, r.cs.Reset, SwitchCount(bank, cfg.StartStopCount))
	if err != nil {
		return err
	}
	return r.wait(hold)
}

func (r *run) finish() error {
	val, err := r.sink.ReadSetting(r.cs.Readback)
	if err != nil {
		r.log.WithError(err).WithField("setting", r.cs.Readback).Warn("final readback failed")
	} else {
		r.out.FinalReadback = val
		r.prog.Readback = val
		r.log.WithField("readback", val).Info("final collision energy")
	}
	if err = r.sink.DisableDataCapture(); err != nil {
		return errors.Wrap(err, "disable data capture")
	}
	if err = r.send(CmdInitPropertyArrays); err != nil {
		return err
	}
	if err = r.sink.StopRepeatingFunction(StartScanFunction, BankFunction); err != nil {
		return errors.Wrap(err, "stop repeating bank function")
	}
	return nil
}

// Halt clears the property banks and stops the repeating bank function.  It
// is the recovery procedure for a ramp that was canceled or failed.
func Halt(sink CommandSink) error {
	if err := sink.SendCommand(CmdInitPropertyArrays); err != nil {
		return errors.Wrapf(err, "send %q", CmdInitPropertyArrays)
	}
	if err := sink.StopRepeatingFunction(StartScanFunction, BankFunction); err != nil {
		return errors.Wrap(err, "stop repeating bank function")
	}
	return nil
}
