package monitor

import (
	"bufio"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/ja7ad/procmon/pkg/protocol"
)

// Emitter writes records followed by a sentinel line and flushes after each
// record. Only the sampler writes through it.
type Emitter struct {
	out      io.Writer
	w        *bufio.Writer
	sentinel string
}

// NewEmitter returns an Emitter writing to w.
func NewEmitter(w io.Writer, sentinel uuid.UUID) *Emitter {
	return &Emitter{out: w, w: bufio.NewWriter(w), sentinel: sentinel.String()}
}

// Emit writes rec as one JSON line, then the sentinel line, then flushes.
func (e *Emitter) Emit(rec protocol.Record) error {
	b, err := protocol.EncodeRecord(rec)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	b = append(b, e.sentinel...)
	b = append(b, '\n')
	if _, err = e.w.Write(b); err == nil {
		err = e.w.Flush()
	}
	if err != nil {
		// bufio errors are sticky; drop the partial record so the next one can go out
		e.w.Reset(e.out)
		return fmt.Errorf("emit pid %d: %w", rec.PID, err)
	}
	return nil
}
