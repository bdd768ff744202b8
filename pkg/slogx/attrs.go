// Package slogx carries small helpers for building slog attributes.
package slogx

import (
	"fmt"
	"log/slog"
)

// Error wraps an error as a slog.Attr under the "error" key so log lines
// across the module report failures uniformly.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// Stringer records the string form of any fmt.Stringer under the given key.
// Request identifiers are logged this way throughout the broker.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}
