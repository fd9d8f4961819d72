// Package csv parses a delimited text stream into fixed-size row chunks.
//
// The reader never buffers more than one chunk. Cells are kept as strings;
// empty cells become nil so downstream stages see a single notion of
// "missing". Rows shorter than the header are padded with nil, rows longer
// than the header fail the read with the offending line number.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"goldrates/internal/frame"
)

// DefaultChunkSize is used when Options.ChunkSize is not positive.
const DefaultChunkSize = 50_000

var (
	// ErrNoHeader is returned by NewChunkReader for an empty stream.
	ErrNoHeader = errors.New("input has no header row")

	// ErrDuplicateColumn is returned when two header cells share a name.
	ErrDuplicateColumn = errors.New("duplicate column in header")

	// ErrTooManyFields reports a data row wider than the header.
	ErrTooManyFields = errors.New("row has more fields than header")
)

// Options configures a ChunkReader. The zero value reads comma separated
// input in chunks of DefaultChunkSize.
type Options struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune

	// ChunkSize is the maximum number of rows per chunk.
	ChunkSize int

	// TrimSpace trims leading and trailing white space from cells before
	// the empty check.
	TrimSpace bool

	// LazyQuotes relaxes quote handling (encoding/csv LazyQuotes).
	LazyQuotes bool
}

// ChunkReader yields consecutive chunks of a delimited stream.
type ChunkReader struct {
	cr     *csv.Reader
	opt    Options
	header []string

	offset  int64
	emitted bool
	done    bool
}

// NewChunkReader reads the header row from r and returns a reader positioned
// at the first data row.
func NewChunkReader(r io.Reader, opt Options) (*ChunkReader, error) {
	if opt.ChunkSize <= 0 {
		opt.ChunkSize = DefaultChunkSize
	}
	cr := csv.NewReader(r)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = opt.LazyQuotes
	cr.ReuseRecord = true
	// Width is enforced against the header below.
	cr.FieldsPerRecord = -1

	rec, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	header := StripHeaderBOM(append([]string(nil), rec...))
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		header[i] = h
		if _, dup := seen[h]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, h)
		}
		seen[h] = struct{}{}
	}
	return &ChunkReader{cr: cr, opt: opt, header: header}, nil
}

// Header returns the normalized header row. The slice must not be modified.
func (c *ChunkReader) Header() []string { return c.header }

// Next returns the next chunk, or io.EOF when the stream is exhausted.
//
// A stream with a header and no data rows yields exactly one empty chunk
// before io.EOF, so consumers always observe the column set.
func (c *ChunkReader) Next(ctx context.Context) (*frame.Chunk, error) {
	if c.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	width := len(c.header)
	rows := make([][]any, 0, min(c.opt.ChunkSize, 4096))
	for len(rows) < c.opt.ChunkSize {
		rec, err := c.cr.Read()
		if errors.Is(err, io.EOF) {
			c.done = true
			break
		}
		if err != nil {
			c.done = true
			return nil, fmt.Errorf("read: %w", err)
		}
		if len(rec) > width {
			line, _ := c.cr.FieldPos(0)
			c.done = true
			return nil, fmt.Errorf("line %d: %w (%d > %d)", line, ErrTooManyFields, len(rec), width)
		}
		rows = append(rows, c.row(rec, width))
	}

	if len(rows) == 0 && c.emitted {
		return nil, io.EOF
	}
	ch := &frame.Chunk{Columns: c.header, Rows: rows, Offset: c.offset}
	c.offset += int64(len(rows))
	c.emitted = true
	return ch, nil
}

// Rows returns the number of data rows returned so far.
func (c *ChunkReader) Rows() int64 { return c.offset }

func (c *ChunkReader) row(rec []string, width int) []any {
	out := make([]any, width)
	for i, v := range rec {
		if c.opt.TrimSpace {
			v = strings.TrimSpace(v)
		}
		if v == "" {
			continue
		}
		// ReuseRecord shares the backing slice, not the strings.
		out[i] = v
	}
	return out
}
