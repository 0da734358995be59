package monitor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterIdempotent(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Register(100))
	assert.False(t, r.Register(100))
	assert.Equal(t, []int{100}, r.Snapshot())
}

func TestRegistry_UnregisterAbsent(t *testing.T) {
	r := NewRegistry()
	r.Register(1)
	assert.False(t, r.Unregister(2))
	assert.Equal(t, []int{1}, r.Snapshot())

	assert.True(t, r.Unregister(1))
	assert.False(t, r.Unregister(1))
	assert.Empty(t, r.Snapshot())
}

func TestRegistry_NonPositiveIgnored(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Register(0))
	assert.False(t, r.Register(-5))
	assert.Zero(t, r.Len())
}

func TestRegistry_InsertionOrder(t *testing.T) {
	r := NewRegistry()
	for _, pid := range []int{30, 10, 20} {
		r.Register(pid)
	}
	r.Unregister(10)
	r.Register(10)
	assert.Equal(t, []int{30, 20, 10}, r.Snapshot())
}

func TestRegistry_SnapshotIsCopy(t *testing.T) {
	r := NewRegistry()
	r.Register(1)
	r.Register(2)

	snap := r.Snapshot()
	r.Unregister(1)
	r.Register(3)
	snap[1] = 99

	assert.Equal(t, []int{1, 99}, snap)
	assert.Equal(t, []int{2, 3}, r.Snapshot())
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 1; i <= 200; i++ {
				r.Register(i)
				_ = r.Snapshot()
				if i%2 == 0 {
					r.Unregister(i)
				}
			}
		}(w)
	}
	wg.Wait()

	snap := r.Snapshot()
	seen := map[int]bool{}
	for _, pid := range snap {
		require.False(t, seen[pid], "duplicate pid %d", pid)
		seen[pid] = true
	}
	// every odd pid was registered and never removed
	for i := 1; i <= 200; i += 2 {
		assert.True(t, seen[i], "missing pid %d", i)
	}
}
