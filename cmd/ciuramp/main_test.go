package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/origami-ms/wrensramp/ramp"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	cmd := NewCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "absent.yml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParamsFromCSV(t *testing.T) {
	path := writeFile(t, "list.csv", "SPV,CV\n5,10\n7,20\n")
	pf := paramFlags{csv: path, activation: "CONE", polarity: "NEGATIVE", scanTime: 2}
	p, err := pf.params([]string{"list"})
	require.NoError(t, err)
	assert.Equal(t, ramp.ExplicitList, p.Mode)
	assert.Equal(t, ramp.Cone, p.Activation)
	assert.Equal(t, ramp.Negative, p.Polarity)
	assert.Equal(t, 2, p.ScanTime)
	assert.Equal(t, []int{5, 7}, p.ScanCounts)
	assert.Equal(t, []float64{10, 20}, p.Voltages)
}

func TestParamsRejectsMisuse(t *testing.T) {
	_, err := paramFlags{csv: "whatever.csv"}.params([]string{"linear"})
	assert.ErrorIs(t, err, ramp.ErrInvalidArguments)

	_, err = paramFlags{}.params([]string{"linear"})
	assert.ErrorIs(t, err, ramp.ErrInvalidArguments)
}

func TestConfigDefaultsWithoutFile(t *testing.T) {
	require.NoError(t, setupConfig(filepath.Join(t.TempDir(), "absent.yml")))
	c, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8000", c.Addr)
	assert.Equal(t, "localhost:7520", c.Host.Addr)
	assert.Equal(t, ramp.DefaultConfig(), c.Engine)
}

func TestConfigFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, "ciuramp.yml", "Mock: true\nEngine:\n  TimeUnit: 1\n")
	require.NoError(t, setupConfig(path))
	c, err := loadConfig()
	require.NoError(t, err)
	assert.True(t, c.Mock)
	assert.Equal(t, 1, c.Engine.TimeUnit)
	assert.Equal(t, ramp.DefaultSplitCeiling, c.Engine.SplitCeiling)
}

func TestPlanCommand(t *testing.T) {
	out, err := execute(t, "plan", "linear", "TRAP,POSITIVE,25,1,0,100,20,0")
	require.NoError(t, err)
	assert.Contains(t, out, "Estimated acquisition: 3.02 min")
	assert.Contains(t, out, "Arguments: TRAP,POSITIVE,25,1,0,100,20,3.02")
	assert.Contains(t, out, "20+5")
}

func TestRunDryRunPrintsTranscript(t *testing.T) {
	out, err := execute(t, "run", "--dry-run", "linear", "TRAP,POSITIVE,25,1,0,100,20,3.02")
	require.NoError(t, err)
	assert.Contains(t, out, "Phase: Done")
	assert.Contains(t, out, "connect epc")
	assert.Contains(t, out, "wait 3000")
}

func TestRunRejectsBadArguments(t *testing.T) {
	_, err := execute(t, "run", "--dry-run", "linear", "TRAP,POSITIVE,25")
	assert.ErrorIs(t, err, ramp.ErrInvalidArguments)
}
