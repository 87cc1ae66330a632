package ramp

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/origami-ms/wrensramp/mathx"
	"github.com/origami-ms/wrensramp/util"
)

// Step is one point of the ramp: a voltage and the nominal scan count held there
type Step struct {
	Voltage   float64 `json:"voltage"`
	ScanCount int     `json:"scanCount"`
}

// stepper yields the ramp steps one at a time.  Steps are never revisited.
type stepper interface {
	next() (Step, bool)

	// accumulator is the exponential accumulator after the last step, 0 outside exponential mode
	accumulator() float64
}

// strategies is the dispatch table from mode to step generator
var strategies = map[Mode]func(Params) stepper{
	Linear:       newLinearSteps,
	Exponential:  newExponentialSteps,
	ExplicitList: newListSteps,
}

func newStepper(p Params) stepper {
	return strategies[p.Mode](p)
}

// linearSteps walks ce from start to end inclusive by accumulating step.
// No clamping is applied: when the range is not a whole number of steps the
// walk stops short of end.
type linearSteps struct {
	ce, end, step float64
	spv           int
}

func newLinearSteps(p Params) stepper {
	return &linearSteps{ce: p.StartVoltage, end: p.EndVoltage, step: p.StepVoltage, spv: p.ScansPerVoltage}
}

func (l *linearSteps) next() (Step, bool) {
	if !(l.ce <= l.end) {
		return Step{}, false
	}
	s := Step{Voltage: l.ce, ScanCount: l.spv}
	l.ce += l.step
	return s, true
}

func (l *linearSteps) accumulator() float64 { return 0 }

// exponentialSteps walks the voltage axis like linearSteps; at and above the
// onset voltage every step adds increment to the accumulator and the scan
// count becomes round(base * e^acc).  The accumulator never decreases.  The
// walk ends early with err set once a count outgrows MaxScanCount.
type exponentialSteps struct {
	linearSteps
	onset     float64
	increment float64
	acc       float64
	err       error
}

func newExponentialSteps(p Params) stepper {
	return exponentialWalk(p)
}

func exponentialWalk(p Params) *exponentialSteps {
	return &exponentialSteps{
		linearSteps: linearSteps{ce: p.StartVoltage, end: p.EndVoltage, step: p.StepVoltage, spv: p.ScansPerVoltage},
		onset:       p.EndVoltage * (p.ExpOnsetPercent / 100),
		increment:   p.ExpIncrement,
	}
}

func (e *exponentialSteps) next() (Step, bool) {
	s, ok := e.linearSteps.next()
	if !ok {
		return s, false
	}
	if s.Voltage >= e.onset {
		e.acc += e.increment
		n, err := ExponentialCount(e.spv, e.acc)
		if err != nil {
			e.err = errors.Wrapf(err, "at %s V", util.FormatSetting(s.Voltage))
			return Step{}, false
		}
		s.ScanCount = n
	}
	return s, true
}

func (e *exponentialSteps) accumulator() float64 { return e.acc }

// ExponentialCount is base scaled by e^acc, rounded half to even.  A count
// above MaxScanCount fails with ErrOutOfRange, as the host's integer
// conversion does.
func ExponentialCount(base int, acc float64) (int, error) {
	f := float64(base) * math.Exp(acc)
	if !(f < MaxScanCount+1) {
		return 0, errors.Wrapf(ErrOutOfRange, "scan count %.4g exceeds %d", f, MaxScanCount)
	}
	n := mathx.RoundHalfEven(f)
	if n > MaxScanCount {
		return 0, errors.Wrapf(ErrOutOfRange, "scan count %d exceeds %d", n, MaxScanCount)
	}
	return n, nil
}

type listSteps struct {
	counts []int
	volts  []float64
	i      int
}

func newListSteps(p Params) stepper {
	return &listSteps{counts: p.ScanCounts, volts: p.Voltages}
}

func (l *listSteps) next() (Step, bool) {
	if l.i >= len(l.counts) || l.i >= len(l.volts) {
		return Step{}, false
	}
	s := Step{Voltage: l.volts[l.i], ScanCount: l.counts[l.i]}
	l.i++
	return s, true
}

func (l *listSteps) accumulator() float64 { return 0 }

// Batching is how a scan count is split into bank writes: Full writes of
// Ceiling scans followed by one write of Last scans.  No write exceeds the
// ceiling and the writes sum to the count.
type Batching struct {
	Ceiling int `json:"ceiling"`
	Full    int `json:"full"`
	Last    int `json:"last"`
}

// NewBatching splits n scans at ceiling.  A count below one has no writes; a
// ceiling below one leaves n in a single write.
func NewBatching(n, ceiling int) Batching {
	if n < 1 {
		return Batching{Ceiling: ceiling}
	}
	if ceiling < 1 {
		return Batching{Ceiling: ceiling, Last: n}
	}
	full := (n - 1) / ceiling
	return Batching{Ceiling: ceiling, Full: full, Last: n - full*ceiling}
}

// Writes is the number of bank writes
func (b Batching) Writes() int {
	if b.Last < 1 {
		return 0
	}
	return b.Full + 1
}

// Each calls fn with the scan count of every write in order and stops at the
// first error
func (b Batching) Each(fn func(count int) error) error {
	if b.Last < 1 {
		return nil
	}
	for i := 0; i < b.Full; i++ {
		if err := fn(b.Ceiling); err != nil {
			return err
		}
	}
	return fn(b.Last)
}

// String renders the writes as "20+20+5", or "12x20+5" past three full writes
func (b Batching) String() string {
	switch {
	case b.Last < 1:
		return "0"
	case b.Full > 3:
		return fmt.Sprintf("%dx%d+%d", b.Full, b.Ceiling, b.Last)
	}
	parts := make([]string, 0, b.Full+1)
	for i := 0; i < b.Full; i++ {
		parts = append(parts, fmt.Sprint(b.Ceiling))
	}
	return strings.Join(append(parts, fmt.Sprint(b.Last)), "+")
}

// Steps returns every ramp step for p, excluding the final hold
func Steps(p Params) ([]Step, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var out []Step
	st := newStepper(p)
	for s, ok := st.next(); ok; s, ok = st.next() {
		out = append(out, s)
	}
	return out, nil
}
