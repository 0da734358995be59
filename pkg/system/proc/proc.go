//go:build linux

package proc

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/tklauser/go-sysconf"
	"golang.org/x/sys/unix"

	"github.com/ja7ad/procmon/pkg/types"
)

// ClockTicks returns the number of jiffies (clock ticks) per second.
// It first checks the env var CLK_TCK (useful for testing), then asks
// sysconf(_SC_CLK_TCK), and falls back to 100 (common default).
func ClockTicks() int {
	v, _ := strconv.Atoi(os.Getenv("CLK_TCK"))
	if v > 0 {
		return v
	}
	if tck, err := sysconf.Sysconf(sysconf.SC_CLK_TCK); err == nil && tck > 0 {
		return int(tck)
	}
	return 100
}

// PageSize returns the system memory page size in bytes.
// Like ClockTicks, it first checks an env override (PAGE_SIZE)
// to ease testing, then falls back to unix.Getpagesize().
func PageSize() int {
	if ps := os.Getenv("PAGE_SIZE"); ps != "" {
		if v, _ := strconv.Atoi(ps); v > 0 {
			return v
		}
	}
	return unix.Getpagesize()
}

// Exists reports whether a given PID currently refers to a process.
// It probes with signal 0; EPERM still means the process is there.
func Exists(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Stat holds the /proc/<pid>/stat fields the monitor uses.
type Stat struct {
	UTime     uint64 // user CPU jiffies
	STime     uint64 // system CPU jiffies
	StartTime uint64 // jiffies after boot; changes when a PID is reused
}

// Jiffies returns utime+stime.
func (s Stat) Jiffies() uint64 { return s.UTime + s.STime }

// ReadProcStat parses /proc/<pid>/stat.
//
// Caveats:
//   - Field order is fixed, but comm (2nd field) is in parens and may contain
//     spaces. We strip everything before the closing ") " safely.
//   - Counters are monotonic increasing.
func ReadProcStat(pid int) (Stat, error) {
	b, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return Stat{}, err
	}
	return parseStat(string(b))
}

func parseStat(line string) (Stat, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Stat{}, ErrNoStat
	}
	// Everything before ") " is pid + comm; after that are numeric fields.
	i := strings.LastIndex(line, ") ")
	if i < 0 {
		return Stat{}, ErrNoStat
	}
	fields := strings.Fields(line[i+2:])
	// starttime is the 22nd field overall, fields[19] here.
	if len(fields) < 20 {
		return Stat{}, ErrShortStat
	}

	u := func(idx int) (uint64, error) {
		v, err := strconv.ParseUint(fields[idx], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: field %d: %v", ErrNoStat, idx+3, err)
		}
		return v, nil
	}

	var (
		s    Stat
		errs []error
		err  error
	)
	s.UTime, err = u(11)
	errs = append(errs, err)
	s.STime, err = u(12)
	errs = append(errs, err)
	s.StartTime, err = u(19)
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return Stat{}, err
	}
	return s, nil
}

// ReadProcRSS returns the Resident Set Size (RSS) for a PID.
// It prefers smaps_rollup (aggregated, since kernel 4.14) for accuracy.
// If unavailable, falls back to statm's resident page count.
//
// Returns ErrNoRSS if neither source is available.
func ReadProcRSS(pid int) (types.Bytes, error) {
	if rss, ok := readSmapsRollupRSS(pid); ok {
		return rss, nil
	}
	// Fallback: statm field 2 × page size
	if b, err := os.ReadFile(fmt.Sprintf("/proc/%d/statm", pid)); err == nil {
		fs := strings.Fields(string(b))
		if len(fs) >= 2 {
			if pages, err := strconv.ParseUint(fs[1], 10, 64); err == nil {
				return types.ToBytes(pages * uint64(PageSize())), nil
			}
		}
	}
	return 0, ErrNoRSS
}

func readSmapsRollupRSS(pid int) (types.Bytes, bool) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/smaps_rollup", pid))
	if err != nil {
		return 0, false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if !strings.HasPrefix(sc.Text(), "Rss:") {
			continue
		}
		fs := strings.Fields(sc.Text())
		if len(fs) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseUint(fs[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return types.ToBytes(kb * 1024), true
	}
	return 0, false
}

// ReadProcChildren returns the direct child PIDs of a process by reading
// /proc/<pid>/task/*/children files, sorted ascending. Each children file
// lists space-separated PIDs for that thread's children.
//
// Notes:
//   - Kernel 3.5+ exposes this interface (CONFIG_PROC_CHILDREN).
//   - We deduplicate across threads by using a set.
//   - If no children are found, returns ErrNoChildren.
func ReadProcChildren(pid int) ([]int, error) {
	paths, _ := filepath.Glob(fmt.Sprintf("/proc/%d/task/*/children", pid))
	set := map[int]struct{}{}
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		for _, s := range strings.Fields(string(b)) {
			if id, err := strconv.Atoi(s); err == nil && id > 0 {
				set[id] = struct{}{}
			}
		}
	}
	if len(set) == 0 {
		return nil, ErrNoChildren
	}
	out := make([]int, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}
