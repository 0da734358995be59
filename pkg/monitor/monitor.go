// Package monitor tracks registered root PIDs and reports the aggregate CPU
// and resident memory of each root's process tree on a fixed cadence.
//
// Two goroutines run for the lifetime of a Monitor: a Listener applying
// commands from the input stream to the Registry, and a Sampler reading the
// Registry every period and writing records to the output stream. The
// Registry is the only state they share.
package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ja7ad/procmon/pkg/protocol"
	"github.com/ja7ad/procmon/pkg/system/inspect"
)

const (
	DefaultInterval      = time.Second
	DefaultClearInterval = 15 * time.Second
)

// Options configures a Monitor. Zero values select defaults where noted.
type Options struct {
	Inspector inspect.Inspector // required
	Input     io.Reader         // required
	Output    io.Writer         // required

	Logger        *slog.Logger    // default slog.Default()
	Clock         clock.Clock     // default wall clock
	ReadBackOff   backoff.BackOff // default exponential, no deadline
	Interval      time.Duration   // default DefaultInterval
	ClearInterval time.Duration   // default DefaultClearInterval
	Sentinel      uuid.UUID       // default protocol.DefaultSentinel

	InitialPIDs []int
}

// Monitor owns the registry and the two tasks sharing it.
type Monitor struct {
	registry *Registry
	listener *Listener
	sampler  *Sampler
	log      *slog.Logger
}

// New validates o and wires a Monitor.
func New(o Options) (*Monitor, error) {
	if o.Inspector == nil || o.Input == nil || o.Output == nil {
		return nil, ErrMissingIO
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Interval == 0 {
		o.Interval = DefaultInterval
	}
	if o.ClearInterval == 0 {
		o.ClearInterval = DefaultClearInterval
	}
	if o.Interval < 0 {
		return nil, fmt.Errorf("%w: interval %s", ErrBadInterval, o.Interval)
	}
	if o.ClearInterval < o.Interval {
		return nil, fmt.Errorf("%w: clear interval %s shorter than interval %s",
			ErrBadInterval, o.ClearInterval, o.Interval)
	}
	if o.Sentinel == uuid.Nil {
		id, err := protocol.ParseSentinel("")
		if err != nil {
			return nil, err
		}
		o.Sentinel = id
	}

	reg := NewRegistry()
	for _, pid := range o.InitialPIDs {
		reg.Register(pid)
	}

	cache := NewTreeCache(o.Inspector)
	emitter := NewEmitter(o.Output, o.Sentinel)
	return &Monitor{
		registry: reg,
		listener: NewListener(o.Input, reg, o.Logger, o.ReadBackOff),
		sampler:  NewSampler(reg, cache, emitter, o.Clock, o.Logger, o.Interval, o.ClearInterval),
		log:      o.Logger,
	}, nil
}

// Registry exposes the tracked PID set.
func (m *Monitor) Registry() *Registry { return m.registry }

// Run blocks until ctx is done or the listener's input ends. Either way both
// tasks are stopped before Run returns.
func (m *Monitor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		defer stop()
		return m.listener.Run(runCtx)
	})
	g.Go(func() error {
		return m.sampler.Run(runCtx)
	})

	m.log.Info("monitor started", "pids", m.registry.Len())
	err := g.Wait()
	m.log.Info("monitor stopped")
	return err
}
