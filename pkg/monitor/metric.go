package monitor

import (
	"errors"
	"math"

	"github.com/ja7ad/procmon/pkg/system/inspect"
	"github.com/ja7ad/procmon/pkg/types"
)

// Reading is a metric value that may be unavailable because the process
// exited or could not be read. Unavailable readings count as zero in sums.
type Reading struct {
	value float64
	ok    bool
}

// Available wraps a successfully read value.
func Available(v float64) Reading { return Reading{value: v, ok: true} }

// Unavailable is the reading of a process that could not be measured.
func Unavailable() Reading { return Reading{} }

// Value returns the reading and whether it is available.
func (r Reading) Value() (float64, bool) { return r.value, r.ok }

// OrZero returns the value, or 0 when unavailable.
func (r Reading) OrZero() float64 {
	if !r.ok {
		return 0
	}
	return r.value
}

// CPUPercent reads p's CPU usage since its previous reading.
// Errors and non-finite values map to Unavailable.
func CPUPercent(p inspect.Process) Reading {
	return cpuReading(p.CPUPercent())
}

func cpuReading(v float64, err error) Reading {
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return Unavailable()
	}
	return Available(v)
}

// ResidentMemoryBytes reads p's resident set size.
func ResidentMemoryBytes(p inspect.Process) Reading {
	return rssReading(p.RSS())
}

func rssReading(v types.Bytes, err error) Reading {
	if err != nil {
		return Unavailable()
	}
	return Available(float64(v))
}

// Usage is the summed usage of a set of processes.
type Usage struct {
	CPU     float64
	Memory  types.Bytes
	Missing int // readings that were unavailable
}

// Aggregate sums CPU and RSS over members, whose first element is the tree
// root. Unavailable readings add nothing, except that a root which no longer
// exists fails the whole aggregation with an error wrapping
// inspect.ErrProcessNotFound.
func Aggregate(members []inspect.Process) (Usage, error) {
	var u Usage
	for i, p := range members {
		cpu, cpuErr := p.CPUPercent()
		rss, rssErr := p.RSS()
		if i == 0 {
			for _, err := range []error{cpuErr, rssErr} {
				if errors.Is(err, inspect.ErrProcessNotFound) {
					return Usage{}, err
				}
			}
		}

		if v, ok := cpuReading(cpu, cpuErr).Value(); ok {
			u.CPU += v
		} else {
			u.Missing++
		}
		if v, ok := rssReading(rss, rssErr).Value(); ok {
			u.Memory = u.Memory.Add(types.Bytes(v))
		} else {
			u.Missing++
		}
	}
	return u, nil
}
