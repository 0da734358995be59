package monitor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ja7ad/procmon/pkg/protocol"
	"github.com/ja7ad/procmon/pkg/system/inspect"
	"github.com/ja7ad/procmon/pkg/types"
)

var errDenied = errors.New("permission denied")

type fakeProc struct {
	children []int
	cpu      float64
	cpuErr   error
	rss      uint64
	rssErr   error
	gone     bool
}

// fakeInspector is an in-memory process table. It is safe for concurrent use
// so tests can mutate it while a sampler goroutine reads it.
type fakeInspector struct {
	mu    sync.Mutex
	procs map[int]*fakeProc
	opens int
}

func newFakeInspector() *fakeInspector {
	return &fakeInspector{procs: make(map[int]*fakeProc)}
}

func (f *fakeInspector) add(pid int, cpu float64, rss uint64, children ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procs[pid] = &fakeProc{children: children, cpu: cpu, rss: rss}
}

func (f *fakeInspector) update(pid int, fn func(p *fakeProc)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.procs[pid])
}

func (f *fakeInspector) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func (f *fakeInspector) lookup(pid int) (*fakeProc, error) {
	p, ok := f.procs[pid]
	if !ok || p.gone {
		return nil, fmt.Errorf("pid %d: %w", pid, inspect.ErrProcessNotFound)
	}
	return p, nil
}

func (f *fakeInspector) Open(pid int) (inspect.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.lookup(pid); err != nil {
		return nil, err
	}
	f.opens++
	return &fakeHandle{f: f, pid: pid}, nil
}

type fakeHandle struct {
	f   *fakeInspector
	pid int
}

func (h *fakeHandle) PID() int { return h.pid }

func (h *fakeHandle) Children() ([]inspect.Process, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	p, err := h.f.lookup(h.pid)
	if err != nil {
		return nil, err
	}
	var out []inspect.Process
	for _, c := range p.children {
		if _, err := h.f.lookup(c); err == nil {
			out = append(out, &fakeHandle{f: h.f, pid: c})
		}
	}
	return out, nil
}

func (h *fakeHandle) CPUPercent() (float64, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	p, err := h.f.lookup(h.pid)
	if err != nil {
		return 0, err
	}
	return p.cpu, p.cpuErr
}

func (h *fakeHandle) RSS() (types.Bytes, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	p, err := h.f.lookup(h.pid)
	if err != nil {
		return 0, err
	}
	return types.Bytes(p.rss), p.rssErr
}

// syncBuffer is a bytes.Buffer guarded for one writer goroutine and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bufferLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// records parses emitted output, checking every record line is followed by the sentinel.
func records(t *testing.T, out string) []protocol.Record {
	t.Helper()
	if out == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Zero(t, len(lines)%2, "output must be record/sentinel pairs: %q", out)

	var recs []protocol.Record
	for i := 0; i < len(lines); i += 2 {
		require.Equal(t, protocol.DefaultSentinel, lines[i+1])
		r, err := protocol.DecodeRecord([]byte(lines[i]))
		require.NoError(t, err)
		recs = append(recs, r)
	}
	return recs
}

func countPID(recs []protocol.Record, pid int) int {
	return len(slices.DeleteFunc(slices.Clone(recs), func(r protocol.Record) bool { return r.PID != pid }))
}
