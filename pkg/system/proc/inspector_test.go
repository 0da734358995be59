//go:build linux

package proc

import (
	"os"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/procmon/pkg/system/inspect"
)

func TestInspector_OpenMissing(t *testing.T) {
	in := NewInspector()
	for _, pid := range []int{0, -3, 999999999} {
		_, err := in.Open(pid)
		require.ErrorIs(t, err, inspect.ErrProcessNotFound, "pid %d", pid)
	}
}

func TestInspector_SelfMetrics(t *testing.T) {
	in := NewInspector()
	p, err := in.Open(os.Getpid())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), p.PID())

	first, err := p.CPUPercent()
	require.NoError(t, err)
	assert.Equal(t, 0.0, first, "first call primes the handle")

	// burn a little CPU so the second reading has something to show
	deadline := time.Now().Add(30 * time.Millisecond)
	for time.Now().Before(deadline) {
	}
	second, err := p.CPUPercent()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, second, 0.0)

	rss, err := p.RSS()
	require.NoError(t, err)
	assert.Greater(t, rss.Uint64(), uint64(0))
}

func TestInspector_CPUPercentUsesWallDelta(t *testing.T) {
	in := NewInspector()
	at := time.Unix(1000, 0)
	in.now = func() time.Time { return at }

	p := &process{in: in, pid: os.Getpid()}
	st, err := ReadProcStat(p.pid)
	require.NoError(t, err)
	p.start = st.StartTime

	_, err = p.CPUPercent()
	require.NoError(t, err)

	// rewind the baseline so the whole lifetime counts against one second
	p.prevJiffies = 0
	at = at.Add(time.Second)
	got, err := p.CPUPercent()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got, float64(st.Jiffies())/in.clkTck*100)
}

func TestInspector_ReusedPIDReportsGone(t *testing.T) {
	in := NewInspector()
	p, err := in.Open(os.Getpid())
	require.NoError(t, err)
	p.(*process).start++

	_, err = p.CPUPercent()
	require.ErrorIs(t, err, inspect.ErrProcessNotFound)
	_, err = p.RSS()
	require.ErrorIs(t, err, inspect.ErrProcessNotFound)
	_, err = p.Children()
	require.ErrorIs(t, err, inspect.ErrProcessNotFound)
}

func TestInspector_ChildrenOfSpawned(t *testing.T) {
	child := startSleep(t)

	in := NewInspector()
	self, err := in.Open(os.Getpid())
	require.NoError(t, err)
	kids, err := self.Children()
	require.NoError(t, err)
	if len(kids) == 0 {
		t.Skip("skipping: children interface unavailable")
	}
	pids := make([]int, 0, len(kids))
	for _, k := range kids {
		pids = append(pids, k.PID())
	}
	assert.True(t, slices.Contains(pids, child.Process.Pid))

	// a leaf has no children and no error
	leaf, err := in.Open(child.Process.Pid)
	require.NoError(t, err)
	none, err := leaf.Children()
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInspector_ExitedProcess(t *testing.T) {
	child := startSleep(t)
	in := NewInspector()
	p, err := in.Open(child.Process.Pid)
	require.NoError(t, err)

	require.NoError(t, child.Process.Kill())
	_ = child.Wait()

	_, err = p.CPUPercent()
	require.ErrorIs(t, err, inspect.ErrProcessNotFound)
	_, err = p.Children()
	require.ErrorIs(t, err, inspect.ErrProcessNotFound)
}
