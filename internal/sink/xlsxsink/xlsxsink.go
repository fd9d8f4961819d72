// Package xlsxsink writes the whole enriched table to one spreadsheet sheet.
//
// A spreadsheet cannot be appended to row by row, so Write only accumulates
// chunks and Flush writes the file with an excelize StreamWriter. Memory use
// is proportional to the total input.
package xlsxsink

import (
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"goldrates/internal/frame"
	"goldrates/internal/sink"
)

// DefaultSheet is the sheet the table is written to.
const DefaultSheet = "Sheet1"

// ErrTooManyRows is returned by Flush when header plus rows exceed the
// sheet row limit.
var ErrTooManyRows = errors.New("table exceeds spreadsheet row limit")

// Sink is the spreadsheet sink.
type Sink struct {
	path  string
	sheet string
	log   *zap.Logger

	columns []string
	rows    [][]any
	started bool
}

var _ sink.Sink = (*Sink)(nil)

// Open returns a sink that will write path on Flush. Nothing touches the
// filesystem until then.
func Open(path string, log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sink{path: path, sheet: DefaultSheet, log: log}
}

func (s *Sink) Name() string   { return "xlsx" }
func (s *Sink) Target() string { return s.path }

// Rows returns the number of accumulated rows.
func (s *Sink) Rows() int { return len(s.rows) }

// Write appends the chunk to the accumulated table. The chunk's rows are
// retained, not copied.
func (s *Sink) Write(ctx context.Context, ch *frame.Chunk, first bool) error {
	if first {
		s.columns = append([]string(nil), ch.Columns...)
		s.rows = s.rows[:0]
		s.started = true
	} else if !s.started {
		return fmt.Errorf("xlsxsink: %w", sink.ErrNotStarted)
	}
	if err := sink.CheckColumns(s.columns, ch.Columns); err != nil {
		return fmt.Errorf("xlsxsink: %w", err)
	}
	if len(s.rows)+ch.Len()+1 > excelize.TotalRows {
		return fmt.Errorf("xlsxsink: %w (%d rows)", ErrTooManyRows, len(s.rows)+ch.Len())
	}
	s.rows = append(s.rows, ch.Rows...)
	return nil
}

// Flush writes the accumulated table to the file, replacing any previous
// file.
func (s *Sink) Flush(ctx context.Context) error {
	if !s.started {
		return fmt.Errorf("xlsxsink: %w", sink.ErrNotStarted)
	}
	if len(s.rows)+1 > excelize.TotalRows {
		return fmt.Errorf("xlsxsink: %w (%d rows)", ErrTooManyRows, len(s.rows))
	}

	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(s.sheet)
	if err != nil {
		return fmt.Errorf("xlsxsink: stream writer: %w", err)
	}

	header := make([]interface{}, len(s.columns))
	for i, c := range s.columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("xlsxsink: header: %w", err)
	}

	vals := make([]interface{}, len(s.columns))
	for r, row := range s.rows {
		if r%10_000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for i := range vals {
			vals[i] = nil
			if i < len(row) {
				vals[i] = row[i]
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return fmt.Errorf("xlsxsink: row %d: %w", r, err)
		}
		if err := sw.SetRow(cell, vals); err != nil {
			return fmt.Errorf("xlsxsink: row %d: %w", r, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("xlsxsink: flush: %w", err)
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("xlsxsink: save %s: %w", s.path, err)
	}
	s.log.Debug("xlsxsink: written", zap.String("path", s.path), zap.Int("rows", len(s.rows)))
	return nil
}

// Close drops the accumulated rows.
func (s *Sink) Close() error {
	s.rows = nil
	return nil
}
