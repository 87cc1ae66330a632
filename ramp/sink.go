package ramp

// CommandSink is the acquisition host's scripting interface.  It is the only
// side-effecting boundary of a ramp run and is owned by one run at a time.
type CommandSink interface {
	// Connect establishes the device session with the named target ("epc")
	Connect(target string) error

	// SendCommand passes an opaque property bank command to the host
	SendCommand(cmd string) error

	// StartRepeatingFunction starts a named host function that fires bankFunction every scan
	StartRepeatingFunction(name, bankFunction string) error

	// StopRepeatingFunction stops a function started with StartRepeatingFunction
	StopRepeatingFunction(name, bankFunction string) error

	// Wait blocks for the given number of milliseconds
	Wait(ms int) error

	// ReadSetting reads back the value the device currently applies for a setting
	ReadSetting(name string) (float64, error)

	// DisableDataCapture ends data capture on the host
	DisableDataCapture() error
}
