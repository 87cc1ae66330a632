package ramp

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Mode selects how the scan count per voltage evolves across the ramp
type Mode int

const (
	// Linear holds the same scan count at every voltage
	Linear Mode = iota + 1

	// Exponential grows the scan count once the onset voltage is crossed
	Exponential

	// ExplicitList takes scan counts and voltages from paired lists
	ExplicitList
)

var modeNames = map[Mode]string{
	Linear:       "linear",
	Exponential:  "exponential",
	ExplicitList: "list",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "unknown"
}

// ParseMode parses a mode name, case insensitive.  "exp" and "user-defined"
// are accepted as aliases.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear":
		return Linear, nil
	case "exponential", "exp":
		return Exponential, nil
	case "list", "user-defined":
		return ExplicitList, nil
	}
	return 0, errors.Wrapf(ErrInvalidConfiguration, "unknown ramp mode %q", s)
}

// Activation is the region the collision voltage is applied in
type Activation int

const (
	// Trap ramps the trap (source bias) voltage
	Trap Activation = iota + 1

	// Cone ramps the sample cone voltage
	Cone
)

func (a Activation) String() string {
	switch a {
	case Trap:
		return "TRAP"
	case Cone:
		return "CONE"
	}
	return "unknown"
}

// ParseActivation accepts the tokens the host scripts accept: TRAP, trap, CONE, cone
func ParseActivation(s string) (Activation, error) {
	switch s {
	case "TRAP", "trap":
		return Trap, nil
	case "CONE", "cone":
		return Cone, nil
	}
	return 0, errors.Wrapf(ErrInvalidConfiguration, "activation type %q, make sure you either type in TRAP or CONE", s)
}

// Polarity is the ion polarity of the acquisition
type Polarity int

const (
	// Positive ion mode
	Positive Polarity = iota + 1

	// Negative ion mode
	Negative
)

func (p Polarity) String() string {
	switch p {
	case Positive:
		return "POSITIVE"
	case Negative:
		return "NEGATIVE"
	}
	return "unknown"
}

// ParsePolarity accepts POSITIVE or NEGATIVE
func ParsePolarity(s string) (Polarity, error) {
	switch s {
	case "POSITIVE":
		return Positive, nil
	case "NEGATIVE":
		return Negative, nil
	}
	return 0, errors.Wrapf(ErrInvalidConfiguration, "ion polarity %q, make sure you either type in POSITIVE or NEGATIVE", s)
}

// bounds
const (
	MinScanTime = 1
	MaxScanTime = 5

	MaxExpOnsetPercent = 100.
	MaxExpIncrement    = 0.05

	// MaxScanCount is the largest scan count the host holds at one voltage
	MaxScanCount = math.MaxInt32
)

// Params describe one ramp.  Which fields are read depends on Mode.
type Params struct {
	Mode       Mode
	Activation Activation
	Polarity   Polarity

	// ScanTime is the duration of one scan in seconds
	ScanTime int

	// linear and exponential
	ScansPerVoltage int
	StartVoltage    float64
	EndVoltage      float64
	StepVoltage     float64

	// exponential
	ExpOnsetPercent float64
	ExpIncrement    float64

	// explicit list
	ScanCounts []int
	Voltages   []float64

	// AcquisitionMinutes is informational; it is carried in the argument
	// string of the linear and exponential modes
	AcquisitionMinutes float64
}

// Validate checks the parameters before anything is sent to the device.
// It does not check the activation and polarity; see ResolveCommandSet.
func (p Params) Validate() error {
	if _, ok := modeNames[p.Mode]; !ok {
		return errors.Wrapf(ErrInvalidConfiguration, "unknown ramp mode %d", int(p.Mode))
	}
	if p.ScanTime < MinScanTime || p.ScanTime > MaxScanTime {
		return errors.Wrapf(ErrOutOfRange, "scan time has to be an integer between %d-%d seconds, got %d", MinScanTime, MaxScanTime, p.ScanTime)
	}
	if p.Mode == ExplicitList {
		return p.validateList()
	}
	if p.ScansPerVoltage < 1 || p.ScansPerVoltage > MaxScanCount {
		return errors.Wrapf(ErrOutOfRange, "scans per voltage must be within 1-%d, got %d", MaxScanCount, p.ScansPerVoltage)
	}
	for _, v := range []float64{p.StartVoltage, p.EndVoltage, p.StepVoltage} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrOutOfRange, "voltage %v is not finite", v)
		}
	}
	if p.StepVoltage <= 0 {
		return errors.Wrapf(ErrOutOfRange, "step voltage must be positive, got %v", p.StepVoltage)
	}
	if p.Mode == Exponential {
		if p.ExpOnsetPercent < 0 || p.ExpOnsetPercent > MaxExpOnsetPercent || math.IsNaN(p.ExpOnsetPercent) {
			return errors.Wrapf(ErrOutOfRange, "exponential %% must be within 0-%v, got %v", MaxExpOnsetPercent, p.ExpOnsetPercent)
		}
		if p.ExpIncrement < 0 || p.ExpIncrement > MaxExpIncrement || math.IsNaN(p.ExpIncrement) {
			return errors.Wrapf(ErrOutOfRange, "exponential increment must be within 0-%v, got %v", MaxExpIncrement, p.ExpIncrement)
		}
		return p.checkGrowth()
	}
	return nil
}

// checkGrowth walks the exponential ramp so a scan count that outgrows
// MaxScanCount is refused before any command is sent
func (p Params) checkGrowth() error {
	w := exponentialWalk(p)
	for _, ok := w.next(); ok; _, ok = w.next() {
	}
	return w.err
}

func (p Params) validateList() error {
	if len(p.ScanCounts) != len(p.Voltages) {
		return errors.Wrapf(ErrLengthMismatch, "list of SPVs has %d whereas list of CVs has %d items", len(p.ScanCounts), len(p.Voltages))
	}
	if len(p.ScanCounts) == 0 {
		return errors.Wrap(ErrOutOfRange, "the scan count and voltage lists are empty")
	}
	for i, n := range p.ScanCounts {
		if n < 1 || n > MaxScanCount {
			return errors.Wrapf(ErrOutOfRange, "scan count %d at position %d must be within 1-%d", n, i, MaxScanCount)
		}
	}
	for i, v := range p.Voltages {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrOutOfRange, "voltage %v at position %d is not finite", v, i)
		}
	}
	return nil
}

// FinalVoltage is the voltage the final hold is acquired at
func (p Params) FinalVoltage() float64 {
	if p.Mode == ExplicitList && len(p.Voltages) > 0 {
		return p.Voltages[len(p.Voltages)-1]
	}
	return p.EndVoltage
}

// CheckDivisible reports whether the voltage range is a whole number of steps.
// Ramps that are not still run; the last voltage is only reached by the final hold.
func (p Params) CheckDivisible() bool {
	if p.Mode == ExplicitList || p.StepVoltage <= 0 {
		return true
	}
	n := math.Abs(p.EndVoltage-p.StartVoltage) / p.StepVoltage
	return math.Abs(n-math.Round(n)) < 1e-9
}
