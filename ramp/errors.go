package ramp

import "github.com/pkg/errors"

var (
	// ErrInvalidConfiguration is returned for an unknown activation type or ion polarity
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrOutOfRange is returned when a numeric parameter is outside its documented bounds
	ErrOutOfRange = errors.New("parameter out of range")

	// ErrLengthMismatch is returned when the scan count and voltage lists differ in length
	ErrLengthMismatch = errors.New("list lengths differ")

	// ErrConnectionFailed is returned when the sink rejects the connection
	ErrConnectionFailed = errors.New("connection failed")

	// ErrInvalidArguments is returned when an argument string cannot be parsed
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrBusy is returned when a run is requested while another owns the sink
	ErrBusy = errors.New("a ramp is already running")
)
