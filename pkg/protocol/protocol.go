// Package protocol holds the line formats spoken with the controller: JSON
// commands on input, JSON records plus a sentinel line on output.
//
// Both directions are implemented so a Go controller can drive procmon:
// the monitor uses DecodeCommand and EncodeRecord, a controller uses
// EncodeCommand and DecodeRecord.
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/ja7ad/procmon/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultSentinel is the end-of-record marker the controller splits on.
const DefaultSentinel = "852d303a-98f4-4384-a1a3-ebdace595f8c"

var (
	// ErrMalformedCommand wraps every command decoding failure.
	ErrMalformedCommand = errors.New("protocol: malformed command")

	// ErrBadSentinel is returned by ParseSentinel for non-UUID markers.
	ErrBadSentinel = errors.New("protocol: sentinel must be a uuid")
)

// Action is what a command asks the registry to do.
type Action int

const (
	ActionIgnore Action = iota
	ActionRegister
	ActionUnregister
)

func (a Action) String() string {
	switch a {
	case ActionRegister:
		return "register"
	case ActionUnregister:
		return "unregister"
	default:
		return "ignore"
	}
}

// Command is a decoded input line. PID is always positive unless Action is ActionIgnore.
type Command struct {
	Action Action
	PID    int
}

type wireCommand struct {
	PID *int64 `json:"pid"`
}

// DecodeCommand decodes one {"pid": <int>} line. Zero decodes to
// ActionIgnore, positive to ActionRegister, negative to ActionUnregister of
// the absolute value.
func DecodeCommand(line []byte) (Command, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return Command{}, fmt.Errorf("%w: not a json object", ErrMalformedCommand)
	}
	var w wireCommand
	if err := json.Unmarshal(line, &w); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	if w.PID == nil {
		return Command{}, fmt.Errorf("%w: missing pid", ErrMalformedCommand)
	}

	v := *w.PID
	switch {
	case v == 0:
		return Command{Action: ActionIgnore}, nil
	case v > 0:
		if v > math.MaxInt {
			return Command{}, fmt.Errorf("%w: pid %d out of range", ErrMalformedCommand, v)
		}
		return Command{Action: ActionRegister, PID: int(v)}, nil
	default:
		if v == math.MinInt64 || -v > math.MaxInt {
			return Command{}, fmt.Errorf("%w: pid %d out of range", ErrMalformedCommand, v)
		}
		return Command{Action: ActionUnregister, PID: int(-v)}, nil
	}
}

// EncodeCommand renders c as a controller-side command line, without the
// trailing newline. It is the inverse of DecodeCommand.
func EncodeCommand(c Command) ([]byte, error) {
	v := int64(c.PID)
	switch c.Action {
	case ActionUnregister:
		v = -v
	case ActionIgnore:
		v = 0
	}
	return json.Marshal(wireCommand{PID: &v})
}

// Record is one aggregate sample of a process tree.
type Record struct {
	PID          int         `json:"pid"`
	KernelCPU    float64     `json:"kernel_cpu"`
	KernelMemory types.Bytes `json:"kernel_memory"`
}

// EncodeRecord renders r as a single-line JSON object without a trailing newline.
func EncodeRecord(r Record) ([]byte, error) {
	if math.IsNaN(r.KernelCPU) || math.IsInf(r.KernelCPU, 0) {
		return nil, fmt.Errorf("protocol: pid %d: kernel_cpu is not finite", r.PID)
	}
	return json.Marshal(r)
}

// DecodeRecord parses a record line as produced by EncodeRecord. Controllers
// call it on each line read before the sentinel.
func DecodeRecord(line []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(bytes.TrimSpace(line), &r); err != nil {
		return Record{}, fmt.Errorf("protocol: decode record: %w", err)
	}
	return r, nil
}

// ParseSentinel validates a sentinel marker. An empty string selects DefaultSentinel.
func ParseSentinel(s string) (uuid.UUID, error) {
	if s == "" {
		s = DefaultSentinel
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrBadSentinel, err)
	}
	return id, nil
}
