// Package proc reads per-process counters straight from /proc on Linux and
// exposes them as an inspect.Inspector.
//
// # Readers
//
//   - ReadProcStat:     /proc/<pid>/stat (utime, stime, starttime)
//   - ReadProcRSS:      /proc/<pid>/smaps_rollup, falling back to statm × page size
//   - ReadProcChildren: /proc/<pid>/task/*/children (direct children only)
//
// # Inspector
//
// Handles returned by (*Inspector).Open pin the process start time. When a PID
// is recycled by a different process, CPU, RSS and children reads fail with
// inspect.ErrProcessNotFound instead of reporting the newcomer's usage.
//
// CPUPercent is computed like psutil's cpu_percent(interval=None): the delta
// of utime+stime between two calls on the same handle divided by the wall
// time elapsed, times 100. The first call primes the handle and returns 0, so
// callers must keep handles alive across samples to get meaningful values.
//
// Clock ticks come from sysconf(_SC_CLK_TCK) via go-sysconf (no cgo). The
// CLK_TCK and PAGE_SIZE environment variables override the detected values
// for tests.
package proc
