// Package sink defines the write side of the pipeline: every output the
// driver fans chunks out to implements Sink.
package sink

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"goldrates/internal/frame"
)

// Sink consumes enriched chunks in arrival order.
//
// The driver calls Write once per chunk with first=true on the first call
// only, then Flush once after the last chunk, then Close on every exit path.
// Streaming sinks write inside Write and treat Flush as a no-op; sinks that
// need the whole table (spreadsheets) write inside Flush.
type Sink interface {
	// Name is the sink kind used in logs and metrics ("db", "csv", ...).
	Name() string

	// Target describes the destination (path or table).
	Target() string

	Write(ctx context.Context, ch *frame.Chunk, first bool) error
	Flush(ctx context.Context) error
	Close() error
}

var (
	// ErrNotStarted is returned by Write when no first chunk was seen.
	ErrNotStarted = errors.New("write before first chunk")

	// ErrColumnsChanged is returned when a later chunk's columns differ
	// from the first chunk's.
	ErrColumnsChanged = errors.New("chunk columns differ from first chunk")
)

// CheckColumns returns ErrColumnsChanged when got differs from want.
func CheckColumns(want, got []string) error {
	if frame.SameColumns(want, got) {
		return nil
	}
	return fmt.Errorf("%w: have %d columns, chunk has %d", ErrColumnsChanged, len(want), len(got))
}

// FormatCell renders a cell for text outputs: nil is empty, floats use the
// shortest decimal form that round-trips.
func FormatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(t)
	}
}
