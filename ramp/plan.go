package ramp

import (
	"fmt"
	"time"

	"github.com/origami-ms/wrensramp/mathx"
	"github.com/origami-ms/wrensramp/util"
)

const (
	// LongAcquisitionMinutes is the estimate above which a plan carries a warning
	LongAcquisitionMinutes = 300.

	// primingScans is where the cumulative scan count of a plan starts
	primingScans = 3

	// overheadScans are the priming and reset scans counted by the acquisition estimate
	overheadScans = 6
)

// PlanStep is one voltage of a Plan
type PlanStep struct {
	Step

	// Batches are the bank writes the step is split into
	Batches Batching `json:"batches"`

	// Accumulator is the exponential accumulator after this step
	Accumulator float64 `json:"accumulator,omitempty"`

	// CumulativeScans counts scans from the start of the acquisition to the end of this step
	CumulativeScans int `json:"cumulativeScans"`

	// Elapsed is CumulativeScans expressed in time
	Elapsed time.Duration `json:"elapsed"`
}

// Plan is the schedule of a ramp computed without touching a device
type Plan struct {
	Params    Params     `json:"-"`
	Steps     []PlanStep `json:"steps"`
	FinalHold PlanStep   `json:"finalHold"`

	// RampScans is the sum of the scan counts of Steps
	RampScans int `json:"rampScans"`

	// Duration is the sum of every wait a run of this plan issues
	Duration time.Duration `json:"duration"`

	// EstimatedMinutes is the acquisition time estimate carried in the argument string
	EstimatedMinutes float64 `json:"estimatedMinutes"`

	Warnings []string `json:"warnings,omitempty"`
}

// Preview validates p and computes the schedule a Run would follow
func (e *Engine) Preview(p Params) (Plan, error) {
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	if _, err := ResolveCommandSet(p.Activation, p.Polarity); err != nil {
		return Plan{}, err
	}
	cfg := e.cfg
	unit := time.Duration(cfg.TimeUnit) * time.Millisecond
	scanDur := time.Duration(p.ScanTime) * unit

	plan := Plan{Params: p}
	waited := cfg.TimeUnit + cfg.StartStopCount*cfg.TimeUnit
	cumulative := primingScans

	st := newStepper(p)
	last := p.ScansPerVoltage
	for s, ok := st.next(); ok; s, ok = st.next() {
		cumulative += s.ScanCount
		plan.Steps = append(plan.Steps, PlanStep{
			Step:            s,
			Batches:         NewBatching(s.ScanCount, cfg.SplitCeiling),
			Accumulator:     st.accumulator(),
			CumulativeScans: cumulative,
			Elapsed:         time.Duration(cumulative) * scanDur,
		})
		plan.RampScans += s.ScanCount
		waited += s.ScanCount * p.ScanTime * cfg.TimeUnit
		last = s.ScanCount
	}
	cumulative += last
	plan.FinalHold = PlanStep{
		Step:            Step{Voltage: p.FinalVoltage(), ScanCount: last},
		Batches:         NewBatching(last, cfg.SplitCeiling),
		CumulativeScans: cumulative,
		Elapsed:         time.Duration(cumulative) * scanDur,
	}
	waited += last * p.ScanTime * cfg.TimeUnit
	waited += 2 * cfg.StartStopCount * p.ScanTime * cfg.TimeUnit
	plan.Duration = util.MillisToDuration(waited)

	plan.EstimatedMinutes = EstimateMinutes(p, plan.RampScans)
	if plan.EstimatedMinutes > LongAcquisitionMinutes {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf(
			"the acquisition will take more than %v minutes, consider reducing the collision voltage range or adjusting the parameters",
			LongAcquisitionMinutes))
	}
	if !p.CheckDivisible() {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf(
			"collision voltage range %s-%s is not divisible by the increment %s",
			util.FormatSetting(p.StartVoltage), util.FormatSetting(p.EndVoltage), util.FormatSetting(p.StepVoltage)))
	}
	return plan, nil
}

// Args is the argument string of the plan with the acquisition estimate filled in
func (pl Plan) Args() string {
	p := pl.Params
	p.AcquisitionMinutes = pl.EstimatedMinutes
	return p.Args()
}

// EstimateMinutes is the acquisition time estimate for a ramp of rampScans
// scans, rounded to hundredths.  Linear and exponential ramps count six
// priming/reset scans and one hold at the base scan count on top of the ramp.
func EstimateMinutes(p Params, rampScans int) float64 {
	scans := rampScans
	if p.Mode != ExplicitList {
		scans += overheadScans + p.ScansPerVoltage
	}
	return mathx.Round(float64(scans*p.ScanTime)/60, 0.01)
}
