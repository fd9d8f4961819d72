// Package dbsink writes chunks to a relational table through the storage
// registry. The first chunk replaces the table; later chunks append.
package dbsink

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"goldrates/internal/ddl"
	"goldrates/internal/frame"
	"goldrates/internal/sink"
	"goldrates/internal/storage"
)

// Options configures the relational sink.
type Options struct {
	Kind  string // storage kind, e.g. "mysql"
	DSN   string
	Table string

	// BatchSize bounds rows per CopyFrom call.
	BatchSize int

	// FloatColumns are created as double precision; everything else is text.
	FloatColumns []string
}

// Sink is the relational sink.
type Sink struct {
	opt  Options
	log  *zap.Logger
	repo storage.Repository

	columns []string
	rows    int64
}

var _ sink.Sink = (*Sink)(nil)

// Open connects to the backend. No DDL runs until the first Write.
func Open(ctx context.Context, opt Options, log *zap.Logger) (*Sink, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opt.BatchSize <= 0 {
		return nil, fmt.Errorf("dbsink: batch size must be > 0, got %d", opt.BatchSize)
	}
	repo, err := storage.New(ctx, storage.Config{Kind: opt.Kind, DSN: opt.DSN, Table: opt.Table})
	if err != nil {
		return nil, fmt.Errorf("dbsink: open %s: %w", opt.Kind, err)
	}
	return &Sink{opt: opt, log: log, repo: repo}, nil
}

func (s *Sink) Name() string { return "db" }

func (s *Sink) Target() string { return s.opt.Kind + ":" + s.opt.Table }

// Rows returns the number of rows the backend reported as written.
func (s *Sink) Rows() int64 { return s.rows }

// Write replaces the table on the first chunk and then inserts the rows in
// batches of Options.BatchSize.
func (s *Sink) Write(ctx context.Context, ch *frame.Chunk, first bool) error {
	if first {
		td := ddl.FromColumns(s.opt.Table, ch.Columns, s.opt.FloatColumns)
		if err := storage.ReplaceTable(ctx, s.opt.Kind, s.repo, td); err != nil {
			return fmt.Errorf("dbsink: %w", err)
		}
		s.columns = append([]string(nil), ch.Columns...)
		s.log.Debug("dbsink: table replaced", zap.String("table", s.opt.Table), zap.Int("columns", len(s.columns)))
	} else if s.columns == nil {
		return fmt.Errorf("dbsink: %w", sink.ErrNotStarted)
	}
	if err := sink.CheckColumns(s.columns, ch.Columns); err != nil {
		return fmt.Errorf("dbsink: %w", err)
	}
	if ch.Len() == 0 {
		return nil
	}

	n, err := storage.LoadBatches(ctx, s.log, ch.Columns, ch.Rows, s.opt.BatchSize, s.repo.CopyFrom)
	s.rows += n
	if err != nil {
		return fmt.Errorf("dbsink: insert at row %d: %w", ch.Offset, err)
	}
	return nil
}

// Flush is a no-op; rows are committed inside Write.
func (s *Sink) Flush(context.Context) error { return nil }

// Close releases the connection. It is safe to call more than once.
func (s *Sink) Close() error {
	if s.repo != nil {
		s.repo.Close()
		s.repo = nil
	}
	return nil
}
