package monitor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ja7ad/procmon/pkg/protocol"
)

// Listener applies line-delimited commands from an input stream to a Registry.
type Listener struct {
	in       io.Reader
	registry *Registry
	log      *slog.Logger
	backOff  backoff.BackOff
}

// NewListener returns a Listener reading commands from in. A nil b selects an
// exponential backoff without a deadline for retrying failed reads.
func NewListener(in io.Reader, r *Registry, log *slog.Logger, b backoff.BackOff) *Listener {
	if b == nil {
		eb := backoff.NewExponentialBackOff()
		eb.MaxInterval = 5 * time.Second
		eb.MaxElapsedTime = 0
		b = eb
	}
	return &Listener{in: in, registry: r, log: log, backOff: b}
}

// Run applies commands until ctx is done or the input reaches EOF. A bad line
// or a failed read never ends the loop.
//
// Reads happen on a separate goroutine so cancellation is observed even while
// the input blocks; that goroutine exits on its next read result.
func (l *Listener) Run(ctx context.Context) error {
	lines := make(chan []byte)
	go l.read(ctx, lines)

	for {
		select {
		case <-ctx.Done():
			l.log.Debug("listener stopped", "reason", context.Cause(ctx))
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			l.Apply(line)
		}
	}
}

// Apply decodes one line and mutates the registry accordingly.
func (l *Listener) Apply(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	cmd, err := protocol.DecodeCommand(line)
	if err != nil {
		l.log.Warn("malformed command", "line", string(line), "err", err)
		return
	}

	var changed bool
	switch cmd.Action {
	case protocol.ActionRegister:
		changed = l.registry.Register(cmd.PID)
	case protocol.ActionUnregister:
		changed = l.registry.Unregister(cmd.PID)
	default:
		return
	}
	l.log.Debug("command", "action", cmd.Action, "pid", cmd.PID, "changed", changed)
}

func (l *Listener) read(ctx context.Context, out chan<- []byte) {
	defer close(out)

	r := bufio.NewReader(l.in)
	l.backOff.Reset()
	var pending []byte
	for {
		chunk, err := r.ReadBytes('\n')
		pending = append(pending, chunk...)

		if err == nil || (errors.Is(err, io.EOF) && len(pending) > 0) {
			select {
			case out <- pending:
			case <-ctx.Done():
				return
			}
			pending = nil
			l.backOff.Reset()
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			l.log.Info("command input closed")
			return
		}

		l.log.Error("read command", "err", err)
		d := l.backOff.NextBackOff()
		if d == backoff.Stop {
			return
		}
		if d > 0 {
			t := time.NewTimer(d)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return
			}
		}
	}
}
