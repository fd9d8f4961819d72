// Package parser defines the contract between input parsers and the
// pipeline driver.
package parser

import (
	"context"

	"goldrates/internal/frame"
)

// ChunkSource yields the rows of one input as consecutive chunks.
//
// Next returns io.EOF after the last chunk. Every chunk carries the columns
// reported by Header.
type ChunkSource interface {
	Header() []string
	Next(ctx context.Context) (*frame.Chunk, error)
}
