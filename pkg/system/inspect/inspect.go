// Package inspect defines the process introspection capability the monitor
// samples through. Backends live in pkg/system/proc (Linux /proc) and
// pkg/system/psutil (gopsutil).
package inspect

import (
	"errors"

	"github.com/ja7ad/procmon/pkg/types"
)

// ErrProcessNotFound reports that a PID does not (or no longer) refer to a live process.
var ErrProcessNotFound = errors.New("inspect: process not found")

// Process is a handle to a live or recently-live process. Any method may fail
// at any time once the underlying process exits.
type Process interface {
	PID() int
	// Children returns the direct children. A process without children
	// returns an empty slice and no error.
	Children() ([]Process, error)
	// CPUPercent returns CPU usage since the previous call on this handle,
	// 100 meaning one fully busy core. The first call primes the handle and returns 0.
	CPUPercent() (float64, error)
	// RSS returns the resident set size.
	RSS() (types.Bytes, error)
}

// Inspector opens process handles by PID.
type Inspector interface {
	Open(pid int) (Process, error)
}
