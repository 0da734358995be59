// Package psutil adapts gopsutil process handles to inspect.Inspector. It is
// the portable alternative to the /proc backend.
package psutil

import (
	"errors"
	"fmt"
	"math"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/ja7ad/procmon/pkg/system/inspect"
	"github.com/ja7ad/procmon/pkg/types"
)

// Inspector opens gopsutil backed handles.
type Inspector struct{}

var _ inspect.Inspector = Inspector{}

// NewInspector returns a gopsutil Inspector.
func NewInspector() Inspector { return Inspector{} }

func (Inspector) Open(pid int) (inspect.Process, error) {
	if pid <= 0 || pid > math.MaxInt32 {
		return nil, fmt.Errorf("pid %d: %w", pid, inspect.ErrProcessNotFound)
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, translate(pid, err)
	}
	return &handle{p: p}, nil
}

type handle struct {
	p *process.Process
}

func (h *handle) PID() int { return int(h.p.Pid) }

func (h *handle) Children() ([]inspect.Process, error) {
	kids, err := h.p.Children()
	if errors.Is(err, process.ErrorNoChildren) {
		if running, _ := h.p.IsRunning(); !running {
			return nil, translate(h.PID(), process.ErrorProcessNotRunning)
		}
		return nil, nil
	}
	if err != nil {
		return nil, translate(h.PID(), err)
	}
	out := make([]inspect.Process, 0, len(kids))
	for _, k := range kids {
		out = append(out, &handle{p: k})
	}
	return out, nil
}

// CPUPercent uses Percent(0), which measures against the previous call on
// the same *process.Process.
func (h *handle) CPUPercent() (float64, error) {
	v, err := h.p.Percent(0)
	if err != nil {
		return 0, translate(h.PID(), err)
	}
	return v, nil
}

func (h *handle) RSS() (types.Bytes, error) {
	mi, err := h.p.MemoryInfo()
	if err != nil {
		return 0, translate(h.PID(), err)
	}
	return types.ToBytes(mi.RSS), nil
}

func translate(pid int, err error) error {
	if errors.Is(err, process.ErrorProcessNotRunning) {
		return fmt.Errorf("pid %d: %w", pid, inspect.ErrProcessNotFound)
	}
	if running, rerr := process.PidExists(int32(pid)); rerr == nil && !running {
		return fmt.Errorf("pid %d: %w: %v", pid, inspect.ErrProcessNotFound, err)
	}
	return fmt.Errorf("pid %d: %w", pid, err)
}
