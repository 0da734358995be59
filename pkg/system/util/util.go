package util

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadPID is returned by ParsePIDs for anything that is not a positive PID or range.
var ErrBadPID = errors.New("util: invalid pid")

// maxRange bounds A..B expansion so a typo cannot allocate millions of entries.
const maxRange = 1 << 16

// ParsePIDs parses positional arguments of the form "123" or "100..110"
// (inclusive). Duplicates are dropped while first-seen order is kept.
func ParsePIDs(args []string) ([]int, error) {
	var (
		out  []int
		seen = map[int]struct{}{}
	)
	add := func(pid int) {
		if _, ok := seen[pid]; ok {
			return
		}
		seen[pid] = struct{}{}
		out = append(out, pid)
	}

	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if lo, hi, ok := strings.Cut(arg, ".."); ok {
			a, err := parsePID(lo)
			if err != nil {
				return nil, err
			}
			b, err := parsePID(hi)
			if err != nil {
				return nil, err
			}
			if b < a || b-a >= maxRange {
				return nil, fmt.Errorf("%w: range %q", ErrBadPID, arg)
			}
			for pid := a; pid <= b; pid++ {
				add(pid)
			}
			continue
		}
		pid, err := parsePID(arg)
		if err != nil {
			return nil, err
		}
		add(pid)
	}
	return out, nil
}

func parsePID(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadPID, s)
	}
	return v, nil
}

// DeltaU64 returns now-prev, or 0 when the counter went backwards.
func DeltaU64(now, prev uint64) uint64 {
	if now >= prev {
		return now - prev
	}
	// counter wrapped or prev unset
	return 0
}

// SafeDiv returns n/d, or 0 when d is within 1e-12 of zero.
func SafeDiv(n, d float64) float64 {
	const eps = 1e-12
	if d > eps || d < -eps {
		return n / d
	}
	return 0
}
