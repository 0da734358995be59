//go:build linux

package proc

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ja7ad/procmon/pkg/system/inspect"
	"github.com/ja7ad/procmon/pkg/system/util"
	"github.com/ja7ad/procmon/pkg/types"
)

// Inspector opens /proc backed process handles.
type Inspector struct {
	clkTck float64
	now    func() time.Time
}

var _ inspect.Inspector = (*Inspector)(nil)

// NewInspector returns an Inspector reading /proc directly.
func NewInspector() *Inspector {
	return &Inspector{
		clkTck: float64(ClockTicks()),
		now:    time.Now,
	}
}

// Open returns a handle for pid, or an error wrapping inspect.ErrProcessNotFound.
func (in *Inspector) Open(pid int) (inspect.Process, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("pid %d: %w", pid, inspect.ErrProcessNotFound)
	}
	st, err := ReadProcStat(pid)
	if err != nil {
		return nil, gone(pid, err)
	}
	return &process{in: in, pid: pid, start: st.StartTime}, nil
}

// process remembers the start time it was opened with so a recycled PID is
// reported as gone rather than silently measured.
type process struct {
	in    *Inspector
	pid   int
	start uint64

	primed      bool
	prevJiffies uint64
	prevAt      time.Time
}

func (p *process) PID() int { return p.pid }

// current reads the stat line and fails when the PID now belongs to a
// different process than the one this handle was opened on.
func (p *process) current() (Stat, error) {
	st, err := ReadProcStat(p.pid)
	if err != nil {
		return Stat{}, gone(p.pid, err)
	}
	if st.StartTime != p.start {
		return Stat{}, fmt.Errorf("pid %d was reused: %w", p.pid, inspect.ErrProcessNotFound)
	}
	return st, nil
}

func (p *process) Children() ([]inspect.Process, error) {
	if _, err := p.current(); err != nil {
		return nil, err
	}
	ids, err := ReadProcChildren(p.pid)
	if errors.Is(err, ErrNoChildren) {
		if !Exists(p.pid) {
			return nil, gone(p.pid, unix.ESRCH)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]inspect.Process, 0, len(ids))
	for _, id := range ids {
		c, err := p.in.Open(id)
		if err != nil {
			// exited between listing and open
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (p *process) CPUPercent() (float64, error) {
	st, err := p.current()
	if err != nil {
		return 0, err
	}

	now := p.in.now()
	j := st.Jiffies()
	if !p.primed {
		p.primed, p.prevJiffies, p.prevAt = true, j, now
		return 0, nil
	}

	cpuSec := float64(util.DeltaU64(j, p.prevJiffies)) / p.in.clkTck
	wall := now.Sub(p.prevAt).Seconds()
	p.prevJiffies, p.prevAt = j, now
	return util.SafeDiv(cpuSec, wall) * 100, nil
}

func (p *process) RSS() (types.Bytes, error) {
	rss, err := ReadProcRSS(p.pid)
	if err != nil && !Exists(p.pid) {
		return 0, gone(p.pid, err)
	}
	if err != nil {
		return 0, err
	}
	// a newcomer may have taken the PID between the two reads
	if _, err := p.current(); err != nil {
		return 0, err
	}
	return rss, nil
}

func gone(pid int, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("pid %d: %w", pid, inspect.ErrProcessNotFound)
	}
	return fmt.Errorf("pid %d: %w", pid, err)
}
