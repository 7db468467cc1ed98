// Package aflog holds small helpers for structured log values.
package aflog

import (
	"fmt"
	"log/slog"
)

// Hex renders a byte slice as a hex string in log output.
// Without it, slog prints hashes as escaped strings.
type Hex []byte

func (v Hex) LogValue() slog.Value {
	return slog.StringValue(fmt.Sprintf("%x", []byte(v)))
}

// ID returns a copy of log carrying the given block hash and height.
func ID(log *slog.Logger, hash []byte, height uint64) *slog.Logger {
	return log.With("hash", Hex(hash), "height", height)
}
