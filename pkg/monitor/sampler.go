package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ja7ad/procmon/pkg/protocol"
)

// Sampler periodically aggregates the process tree of every registered root
// and emits one record per root.
type Sampler struct {
	registry      *Registry
	cache         *TreeCache
	emitter       *Emitter
	clock         clock.Clock
	log           *slog.Logger
	period        time.Duration
	clearInterval time.Duration

	lastClear time.Time
	tracked   map[int]struct{}
}

// NewSampler wires a sampler. period and clearInterval must be positive.
func NewSampler(r *Registry, c *TreeCache, e *Emitter, clk clock.Clock, log *slog.Logger, period, clearInterval time.Duration) *Sampler {
	return &Sampler{
		registry:      r,
		cache:         c,
		emitter:       e,
		clock:         clk,
		log:           log,
		period:        period,
		clearInterval: clearInterval,
		lastClear:     clk.Now(),
		tracked:       make(map[int]struct{}),
	}
}

// Run samples once immediately and then every period until ctx is done.
// Slow ticks delay the next one rather than queueing extra ticks.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := s.clock.Ticker(s.period)
	defer ticker.Stop()

	s.Tick()
	for {
		select {
		case <-ctx.Done():
			s.log.Debug("sampler stopped", "reason", context.Cause(ctx))
			return nil
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick runs one sampling pass. Failures are logged per PID and never abort
// the pass.
func (s *Sampler) Tick() {
	if now := s.clock.Now(); now.Sub(s.lastClear) >= s.clearInterval {
		s.cache.Clear()
		s.lastClear = now
		s.log.Debug("process tree cache cleared")
	}

	pids := s.registry.Snapshot()
	s.forgetUntracked(pids)

	for _, pid := range pids {
		rec, ok := s.sample(pid)
		if !ok {
			continue
		}
		if err := s.emitter.Emit(rec); err != nil {
			s.log.Error("emit record", "pid", pid, "err", err)
		}
	}
}

func (s *Sampler) sample(pid int) (protocol.Record, bool) {
	tree, err := s.cache.Resolve(pid)
	if err != nil {
		s.log.Warn("sample failed", "pid", pid, "err", err)
		return protocol.Record{}, false
	}

	u, err := Aggregate(tree.Members)
	if err != nil {
		// the cached tree belongs to a root that exited
		s.cache.Forget(pid)
		s.log.Warn("sample failed", "pid", pid, "err", err)
		return protocol.Record{}, false
	}
	s.log.Debug("sampled",
		"pid", pid,
		"members", len(tree.Members),
		"cpu", u.CPU,
		"memory", u.Memory,
		"missing", u.Missing,
	)
	return protocol.Record{PID: pid, KernelCPU: u.CPU, KernelMemory: u.Memory}, true
}

// forgetUntracked drops cache entries of roots that left the registry since
// the previous tick.
func (s *Sampler) forgetUntracked(pids []int) {
	now := make(map[int]struct{}, len(pids))
	for _, pid := range pids {
		now[pid] = struct{}{}
	}
	for pid := range s.tracked {
		if _, ok := now[pid]; !ok {
			s.cache.Forget(pid)
		}
	}
	s.tracked = now
}
