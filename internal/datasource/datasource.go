// Package datasource defines the input side of a run.
package datasource

import (
	"context"
	"io"
)

// Source is an input that can be streamed and pre-counted.
//
// Open returns a fresh text stream positioned at the start of the input.
// CountRows returns the number of data rows (lines minus the header); it is
// used for progress estimation only.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	CountRows(ctx context.Context) (int64, error)
}
