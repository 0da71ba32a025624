package glog

import (
	"fmt"
	"log/slog"
)

// Hex wraps a byte slice so that it renders as a hex string in log output
// instead of an escaped Unicode string.
type Hex []byte

func (v Hex) LogValue() slog.Value {
	return slog.StringValue(fmt.Sprintf("%x", v))
}

// ShortHash truncates a hex commitment for log output.
// The full value is rarely useful when reading logs from several nodes side by side.
type ShortHash string

func (v ShortHash) LogValue() slog.Value {
	if len(v) <= 12 {
		return slog.StringValue(string(v))
	}
	return slog.StringValue(string(v[:12]))
}
