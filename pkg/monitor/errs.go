package monitor

import "errors"

var (
	// ErrMissingIO indicates Options lacked an inspector, input or output.
	ErrMissingIO = errors.New("monitor: inspector, input and output are required")

	// ErrBadInterval indicates a non-positive interval or a clear interval shorter than it.
	ErrBadInterval = errors.New("monitor: invalid interval")
)
