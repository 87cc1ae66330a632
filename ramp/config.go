package ramp

import "github.com/pkg/errors"

const (
	// DefaultSplitCeiling is the largest scan count the host accepts in one bank write
	DefaultSplitCeiling = 20

	// DefaultStartStopCount is the number of scans the flow stop and reset banks run for
	DefaultStartStopCount = 3

	// DefaultTimeUnit is milliseconds per second of scan time
	DefaultTimeUnit = 1000

	// DefaultTarget is the device the host connects to
	DefaultTarget = "epc"
)

// Config holds the engine constants.  The zero value of any field is replaced
// by its default in New.
type Config struct {
	// SplitCeiling is the maximum scan count per bank write
	SplitCeiling int `koanf:"SplitCeiling" yaml:"SplitCeiling"`

	// StartStopCount is how many scans the flow stop and reset commands are held for
	StartStopCount int `koanf:"StartStopCount" yaml:"StartStopCount"`

	// TimeUnit scales one second of scan time into wait units (ms)
	TimeUnit int `koanf:"TimeUnit" yaml:"TimeUnit"`

	// Target is passed to CommandSink.Connect
	Target string `koanf:"Target" yaml:"Target"`
}

// DefaultConfig returns the constants the instrument methods were written against
func DefaultConfig() Config {
	return Config{
		SplitCeiling:   DefaultSplitCeiling,
		StartStopCount: DefaultStartStopCount,
		TimeUnit:       DefaultTimeUnit,
		Target:         DefaultTarget,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.SplitCeiling == 0 {
		c.SplitCeiling = def.SplitCeiling
	}
	if c.StartStopCount == 0 {
		c.StartStopCount = def.StartStopCount
	}
	if c.TimeUnit == 0 {
		c.TimeUnit = def.TimeUnit
	}
	if c.Target == "" {
		c.Target = def.Target
	}
	return c
}

// Validate checks the constants are usable
func (c Config) Validate() error {
	if c.SplitCeiling < 1 {
		return errors.Wrapf(ErrOutOfRange, "split ceiling %d must be positive", c.SplitCeiling)
	}
	if c.StartStopCount < 1 {
		return errors.Wrapf(ErrOutOfRange, "start/stop count %d must be positive", c.StartStopCount)
	}
	if c.TimeUnit < 0 {
		return errors.Wrapf(ErrOutOfRange, "time unit %d must not be negative", c.TimeUnit)
	}
	return nil
}
