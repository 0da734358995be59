package types

import (
	"fmt"
	"log/slog"
)

// Bytes is a uint64 wrapper representing a size in bytes.
// It marshals to JSON as a plain integer.
type Bytes uint64

var units = []struct {
	size uint64
	name string
}{
	{1 << 40, "TB"},
	{1 << 30, "GB"},
	{1 << 20, "MB"},
	{1 << 10, "KB"},
}

// ToBytes converts a raw byte count.
func ToBytes(v uint64) Bytes { return Bytes(v) }

// Uint64 returns the raw byte count.
func (b Bytes) Uint64() uint64 { return uint64(b) }

// Add returns b+o, saturating at the maximum value instead of wrapping.
func (b Bytes) Add(o Bytes) Bytes {
	if s := b + o; s >= b {
		return s
	}
	return Bytes(^uint64(0))
}

// Humanized returns a human-readable string with automatic unit (B, KB, MB, GB, TB).
func (b Bytes) Humanized() string {
	for _, u := range units {
		if uint64(b) >= u.size {
			return fmt.Sprintf("%.2f %s", float64(b)/float64(u.size), u.name)
		}
	}
	return fmt.Sprintf("%d B", uint64(b))
}

// LogValue renders sizes humanized in structured logs.
func (b Bytes) LogValue() slog.Value { return slog.StringValue(b.Humanized()) }

// KB returns the number of kilobytes (1024 base).
func (b Bytes) KB() float64 { return float64(b) / 1024 }

// MB returns the number of megabytes (1024 base).
func (b Bytes) MB() float64 { return float64(b) / (1024 * 1024) }
