package wrens

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/origami-ms/wrensramp/ramp"
)

// Op names a CommandSink method
type Op string

const (
	OpConnect   Op = "connect"
	OpSend      Op = "send"
	OpStart     Op = "start"
	OpStop      Op = "stop"
	OpWait      Op = "wait"
	OpRead      Op = "get"
	OpNoCapture Op = "nocapture"
)

const addPropCommand = "addPropV"

// Call is one recorded sink invocation
type Call struct {
	Op  Op     `json:"op"`
	Arg string `json:"arg,omitempty"`
	MS  int    `json:"ms,omitempty"`
}

func (c Call) String() string {
	switch c.Op {
	case OpWait:
		return fmt.Sprintf("wait %d", c.MS)
	case OpNoCapture:
		return string(c.Op)
	}
	return string(c.Op) + " " + c.Arg
}

// Recorder is a ramp.CommandSink that records calls instead of performing
// them.  Waits return immediately unless Scale is set; scaled waits end early
// once the context given to Bind is done.  The value queued by
// the last addPropV for a setting is what ReadSetting returns.
type Recorder struct {
	mu       sync.Mutex
	calls    []Call
	settings map[string]float64
	ctx      context.Context

	// Scale, when positive, makes Wait sleep ms*Scale milliseconds
	Scale float64

	// ConnectErr is returned by Connect when not nil
	ConnectErr error

	// ReadErr is returned by ReadSetting when not nil
	ReadErr error

	// FailAt makes the FailAt-th call (1-based, any op) return FailErr
	FailAt  int
	FailErr error
}

var _ ramp.CommandSink = (*Recorder)(nil)

// NewRecorder returns an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{settings: map[string]float64{}}
}

// Bind makes scaled waits return early once ctx is done
func (r *Recorder) Bind(ctx context.Context) {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()
}

func (r *Recorder) context() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	if r.FailAt > 0 && len(r.calls) == r.FailAt {
		return r.FailErr
	}
	return nil
}

// Connect records the target
func (r *Recorder) Connect(target string) error {
	if r.ConnectErr != nil {
		return r.ConnectErr
	}
	return r.record(Call{Op: OpConnect, Arg: target})
}

// SendCommand records cmd and tracks the values queued by addPropV
func (r *Recorder) SendCommand(cmd string) error {
	if err := r.record(Call{Op: OpSend, Arg: cmd}); err != nil {
		return err
	}
	fields := strings.Split(cmd, ",")
	if len(fields) == 5 && fields[0] == addPropCommand {
		v, err := strconv.ParseFloat(strings.ReplaceAll(fields[3], " ", ""), 64)
		if err == nil {
			r.mu.Lock()
			if r.settings == nil {
				r.settings = map[string]float64{}
			}
			r.settings[fields[2]] = v
			r.mu.Unlock()
		}
	}
	return nil
}

// StartRepeatingFunction records the start
func (r *Recorder) StartRepeatingFunction(name, bankFunction string) error {
	return r.record(Call{Op: OpStart, Arg: name + "," + bankFunction})
}

// StopRepeatingFunction records the stop
func (r *Recorder) StopRepeatingFunction(name, bankFunction string) error {
	return r.record(Call{Op: OpStop, Arg: name + "," + bankFunction})
}

// Wait records the wait
func (r *Recorder) Wait(ms int) error {
	if err := r.record(Call{Op: OpWait, MS: ms}); err != nil {
		return err
	}
	if r.Scale <= 0 || ms <= 0 {
		return nil
	}
	ctx := r.context()
	t := time.NewTimer(time.Duration(float64(ms)*r.Scale) * time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadSetting returns the last value queued for setting, 0 if none was
func (r *Recorder) ReadSetting(setting string) (float64, error) {
	if err := r.record(Call{Op: OpRead, Arg: setting}); err != nil {
		return 0, err
	}
	if r.ReadErr != nil {
		return 0, r.ReadErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings[setting], nil
}

// DisableDataCapture records the call
func (r *Recorder) DisableDataCapture() error {
	return r.record(Call{Op: OpNoCapture})
}

// Calls returns a copy of every recorded call in order
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Commands returns the arguments of every SendCommand in order
func (r *Recorder) Commands() []string {
	var out []string
	for _, c := range r.Calls() {
		if c.Op == OpSend {
			out = append(out, c.Arg)
		}
	}
	return out
}

// Waits returns every wait in order, in milliseconds
func (r *Recorder) Waits() []int {
	var out []int
	for _, c := range r.Calls() {
		if c.Op == OpWait {
			out = append(out, c.MS)
		}
	}
	return out
}

// Waited is the sum of every wait
func (r *Recorder) Waited() time.Duration {
	total := 0
	for _, ms := range r.Waits() {
		total += ms
	}
	return time.Duration(total) * time.Millisecond
}

// Transcript renders the calls one per line
func (r *Recorder) Transcript() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Reset forgets every call and setting
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.settings = map[string]float64{}
}
