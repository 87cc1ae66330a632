package ramp_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/origami-ms/wrensramp/ramp"
	"github.com/origami-ms/wrensramp/wrens"
)

func newEngine(t *testing.T) *ramp.Engine {
	e, err := ramp.New(ramp.DefaultConfig())
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	e.Log = logger
	return e
}

func linear(spv, scanTime int, start, end, step float64) ramp.Params {
	return ramp.Params{
		Mode:            ramp.Linear,
		Activation:      ramp.Trap,
		Polarity:        ramp.Positive,
		ScanTime:        scanTime,
		ScansPerVoltage: spv,
		StartVoltage:    start,
		EndVoltage:      end,
		StepVoltage:     step,
	}
}

// values queued by addPropV, in order
func queued(t *testing.T, cmds []string) []float64 {
	var out []float64
	for _, c := range cmds {
		f := strings.Split(c, ",")
		if f[0] != "addPropV" {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(f[3], " ", ""), 64)
		require.NoError(t, err, c)
		out = append(out, v)
	}
	return out
}

// scan counts of every setSwitchCountV, in order
func switchCounts(t *testing.T, cmds []string) []int {
	var out []int
	for _, c := range cmds {
		f := strings.Split(c, ",")
		if f[0] != "setSwitchCountV" {
			continue
		}
		n, err := strconv.Atoi(f[2])
		require.NoError(t, err, c)
		out = append(out, n)
	}
	return out
}

func TestLinearRampSplitsEveryVoltage(t *testing.T) {
	rec := wrens.NewRecorder()
	out, err := newEngine(t).Run(context.Background(), linear(25, 1, 0, 100, 20), rec)
	require.NoError(t, err)

	assert.Equal(t, ramp.PhaseDone, out.Phase)
	assert.Equal(t, 6, out.Steps)
	assert.Equal(t, 14, out.Batches)
	assert.Equal(t, 150, out.RampScans)
	assert.Equal(t, 25, out.HoldScans)
	assert.Equal(t, 185000, out.WaitedMS)
	assert.Equal(t, 4., out.FinalReadback)

	cmds := rec.Commands()
	assert.Equal(t, []float64{
		-20,
		0, 0, 20, 20, 40, 40, 60, 60, 80, 80, 100, 100,
		100, 100,
		-20, 4,
	}, queued(t, cmds))
	assert.Equal(t, []int{
		3,
		20, 5, 20, 5, 20, 5, 20, 5, 20, 5, 20, 5,
		20, 5,
		3, 3,
	}, switchCounts(t, cmds))
	assert.Equal(t, []int{
		1000, 3000,
		20000, 5000, 20000, 5000, 20000, 5000, 20000, 5000, 20000, 5000, 20000, 5000,
		20000, 5000,
		3000, 3000,
	}, rec.Waits())
}

func TestRunCallOrder(t *testing.T) {
	rec := wrens.NewRecorder()
	_, err := newEngine(t).Run(context.Background(), linear(5, 2, 10, 10, 1), rec)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"connect epc",
		"send enableSyncWriteV",
		"send initPropertyArraysV",
		"send addPropV,0,SOURCE_BIAS_SETTING,-20,false",
		"send setSwitchCountV,0,3",
		"wait 1000",
		"start WrensStartScan,writePropertyBankV",
		"wait 3000",
		// ramp
		"send initPropertyArraysV",
		"send addPropV,0,SOURCE_BIAS_SETTING,10,false",
		"send setSwitchCountV,0,5",
		"wait 10000",
		"get SOURCE_BIAS_SETTING",
		// final hold
		"send initPropertyArraysV",
		"send addPropV,0,SOURCE_BIAS_SETTING,10,false",
		"send setSwitchCountV,0,5",
		"wait 10000",
		// reset
		"send initPropertyArraysV",
		"send addPropV,0,SOURCE_BIAS_SETTING,-20,false",
		"send setSwitchCountV,0,3",
		"wait 6000",
		"send initPropertyArraysV",
		"send addPropV,0,SOURCE_BIAS_SETTING,4,false",
		"send setSwitchCountV,0,3",
		"wait 6000",
		// done
		"get SOURCE_BIAS_SETTING",
		"nocapture",
		"send initPropertyArraysV",
		"stop WrensStartScan,writePropertyBankV",
	}, rec.Transcript())
}

func TestNegativeConeRamp(t *testing.T) {
	p := linear(3, 1, 15, 25, 10)
	p.Activation = ramp.Cone
	p.Polarity = ramp.Negative
	rec := wrens.NewRecorder()
	out, err := newEngine(t).Run(context.Background(), p, rec)
	require.NoError(t, err)
	assert.Equal(t, -30., out.FinalReadback)

	cmds := rec.Commands()
	assert.Contains(t, cmds, "addPropV,0,SAMPLE_CONE_VOLTAGE_SETTING, -15,false")
	assert.Contains(t, cmds, "addPropV,0,SAMPLE_CONE_VOLTAGE_SETTING, -25,false")
	assert.Contains(t, cmds, "addPropV,0,SAMPLE_CONE_VOLTAGE_SETTING,20,false")
	assert.Contains(t, cmds, "addPropV,0,SAMPLE_CONE_VOLTAGE_SETTING,-30,false")
	for _, c := range cmds {
		assert.NotContains(t, c, "SOURCE_BIAS_SETTING")
	}
}

func TestExponentialRamp(t *testing.T) {
	p := linear(10, 1, 0, 100, 10)
	p.Mode = ramp.Exponential
	p.ExpOnsetPercent = 50
	p.ExpIncrement = 0.05
	rec := wrens.NewRecorder()
	out, err := newEngine(t).Run(context.Background(), p, rec)
	require.NoError(t, err)

	counts := []int{10, 10, 10, 10, 10, 11, 11, 12, 12, 13, 13}
	sw := switchCounts(t, rec.Commands())
	// priming, ramp, final hold, reset
	assert.Equal(t, counts, sw[1:len(sw)-3])
	assert.Equal(t, 13, sw[len(sw)-3])
	assert.Equal(t, 11, out.Steps)
	assert.Equal(t, 132, out.RampScans)
	assert.Equal(t, 13, out.HoldScans)
}

func TestExplicitListRamp(t *testing.T) {
	p := ramp.Params{
		Mode:       ramp.ExplicitList,
		Activation: ramp.Trap,
		Polarity:   ramp.Positive,
		ScanTime:   1,
		ScanCounts: []int{10, 15, 30, 5},
		Voltages:   []float64{0, 10, 20, 30},
	}
	rec := wrens.NewRecorder()
	out, err := newEngine(t).Run(context.Background(), p, rec)
	require.NoError(t, err)
	assert.Equal(t, 60, out.RampScans)
	assert.Equal(t, 5, out.HoldScans)
	assert.Equal(t, 4, out.Steps)
	assert.Equal(t, 6, out.Batches)
	assert.Equal(t, []int{3, 10, 15, 20, 10, 5, 5, 3, 3}, switchCounts(t, rec.Commands()))
	assert.Equal(t, []float64{-20, 0, 10, 20, 20, 30, 30, -20, 4}, queued(t, rec.Commands()))
}

func TestInvalidParamsSendNothing(t *testing.T) {
	list := ramp.Params{
		Mode:       ramp.ExplicitList,
		Activation: ramp.Trap,
		Polarity:   ramp.Positive,
		ScanTime:   2,
		ScanCounts: []int{10, 15, 30},
		Voltages:   []float64{0, 10},
	}
	badAct := linear(5, 1, 0, 10, 1)
	badAct.Activation = 0
	badPol := linear(5, 1, 0, 10, 1)
	badPol.Polarity = 7
	runaway := linear(10, 1, 0, 100, 0.1)
	runaway.Mode = ramp.Exponential
	runaway.ExpIncrement = 0.05
	hugeList := list
	hugeList.ScanCounts = []int{10, ramp.MaxScanCount + 1}

	cases := []struct {
		name string
		p    ramp.Params
		want error
	}{
		{"length mismatch", list, ramp.ErrLengthMismatch},
		{"scan time 0", linear(5, 0, 0, 10, 1), ramp.ErrOutOfRange},
		{"scan time 6", linear(5, 6, 0, 10, 1), ramp.ErrOutOfRange},
		{"zero step", linear(5, 1, 0, 10, 0), ramp.ErrOutOfRange},
		{"zero spv", linear(0, 1, 0, 10, 1), ramp.ErrOutOfRange},
		{"activation", badAct, ramp.ErrInvalidConfiguration},
		{"polarity", badPol, ramp.ErrInvalidConfiguration},
		{"exponential count overflows", runaway, ramp.ErrOutOfRange},
		{"spv above max", linear(ramp.MaxScanCount+1, 1, 0, 10, 1), ramp.ErrOutOfRange},
		{"list count above max", hugeList, ramp.ErrOutOfRange},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := wrens.NewRecorder()
			out, err := newEngine(t).Run(context.Background(), c.p, rec)
			assert.ErrorIs(t, err, c.want)
			assert.Equal(t, ramp.PhaseAborted, out.Phase)
			assert.Empty(t, rec.Calls())
		})
	}
}

func TestConnectFailureAborts(t *testing.T) {
	rec := wrens.NewRecorder()
	rec.ConnectErr = errors.New("no instrument")
	out, err := newEngine(t).Run(context.Background(), linear(5, 1, 0, 10, 5), rec)
	assert.ErrorIs(t, err, ramp.ErrConnectionFailed)
	assert.Equal(t, ramp.PhaseAborted, out.Phase)
	assert.Empty(t, rec.Calls())
}

func TestSinkFailureStopsRun(t *testing.T) {
	boom := errors.New("pipe closed")
	rec := wrens.NewRecorder()
	rec.FailAt = 12 // wait after the first ramp bank write
	rec.FailErr = boom
	out, err := newEngine(t).Run(context.Background(), linear(5, 1, 0, 10, 5), rec)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, ramp.PhaseFailed, out.Phase)
	assert.Equal(t, 1, out.Steps)
	assert.Zero(t, out.Batches)
	assert.Len(t, rec.Calls(), 12)
}

func TestReadbackFailureIsNotFatal(t *testing.T) {
	logger, hook := test.NewNullLogger()
	e := newEngine(t)
	e.Log = logger
	rec := wrens.NewRecorder()
	rec.ReadErr = errors.New("setting unavailable")
	out, err := e.Run(context.Background(), linear(5, 1, 0, 10, 5), rec)
	require.NoError(t, err)
	assert.Equal(t, ramp.PhaseDone, out.Phase)
	assert.Zero(t, out.FinalReadback)

	warned := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warned++
		}
	}
	// one per ramp batch and one at the end
	assert.Equal(t, 4, warned)
}

func TestCancelStopsAtBatchBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := newEngine(t)
	var phases []ramp.Phase
	e.OnProgress = func(p ramp.Progress) {
		phases = append(phases, p.Phase)
		if p.Phase == ramp.PhaseRamping && p.Batches == 1 {
			cancel()
		}
	}
	rec := wrens.NewRecorder()
	out, err := e.Run(ctx, linear(5, 1, 0, 100, 10), rec)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ramp.PhaseCanceled, out.Phase)
	assert.Equal(t, 1, out.Batches)
	assert.Equal(t, ramp.PhaseCanceled, phases[len(phases)-1])

	require.NoError(t, ramp.Halt(rec))
	tr := rec.Transcript()
	assert.Equal(t, []string{
		"send initPropertyArraysV",
		"stop WrensStartScan,writePropertyBankV",
	}, tr[len(tr)-2:])
}

func TestProgressPhases(t *testing.T) {
	e := newEngine(t)
	seen := map[ramp.Phase]bool{}
	var order []ramp.Phase
	e.OnProgress = func(p ramp.Progress) {
		if !seen[p.Phase] {
			seen[p.Phase] = true
			order = append(order, p.Phase)
		}
	}
	_, err := e.Run(context.Background(), linear(5, 1, 0, 10, 5), wrens.NewRecorder())
	require.NoError(t, err)
	assert.Equal(t, []ramp.Phase{
		ramp.PhasePriming,
		ramp.PhaseRamping,
		ramp.PhaseFinalHold,
		ramp.PhaseResetting,
		ramp.PhaseDone,
	}, order)
	assert.True(t, ramp.PhaseDone.Terminal())
	assert.False(t, ramp.PhaseRamping.Terminal())
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := ramp.New(ramp.Config{SplitCeiling: -1})
	assert.ErrorIs(t, err, ramp.ErrOutOfRange)

	e, err := ramp.New(ramp.Config{})
	require.NoError(t, err)
	assert.Equal(t, ramp.DefaultConfig(), e.Config())
}
