// Package csvsink writes chunks to a delimited text file. The file is
// rewritten from scratch on every run: a stale file is removed at Open, the
// header is written with the first chunk, and later chunks append rows.
package csvsink

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"goldrates/internal/frame"
	"goldrates/internal/sink"
)

// Sink is the delimited-file sink.
type Sink struct {
	path  string
	comma rune

	f       *os.File
	bw      *bufio.Writer
	w       *csv.Writer
	columns []string
	record  []string
}

var _ sink.Sink = (*Sink)(nil)

// Open removes any previous file at path. comma zero means ','.
func Open(path string, comma rune) (*Sink, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("csvsink: remove stale %s: %w", path, err)
	}
	if comma == 0 {
		comma = ','
	}
	return &Sink{path: path, comma: comma}, nil
}

func (s *Sink) Name() string   { return "csv" }
func (s *Sink) Target() string { return s.path }

// Write emits the chunk's rows, preceded by the header on the first chunk.
// Output is flushed to the file before Write returns.
func (s *Sink) Write(_ context.Context, ch *frame.Chunk, first bool) error {
	if first {
		if err := s.create(ch.Columns); err != nil {
			return err
		}
	} else if s.w == nil {
		return fmt.Errorf("csvsink: %w", sink.ErrNotStarted)
	}
	if err := sink.CheckColumns(s.columns, ch.Columns); err != nil {
		return fmt.Errorf("csvsink: %w", err)
	}

	for _, row := range ch.Rows {
		for i := range s.record {
			var v any
			if i < len(row) {
				v = row[i]
			}
			s.record[i] = sink.FormatCell(v)
		}
		if err := s.w.Write(s.record); err != nil {
			return fmt.Errorf("csvsink: write %s: %w", s.path, err)
		}
	}
	return s.flush()
}

// create truncates the file and writes the header.
func (s *Sink) create(columns []string) error {
	if s.f != nil {
		_ = s.f.Close()
	}
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("csvsink: create %s: %w", s.path, err)
	}
	s.f = f
	s.bw = bufio.NewWriterSize(f, 1<<20)
	s.w = csv.NewWriter(s.bw)
	s.w.Comma = s.comma
	s.columns = append([]string(nil), columns...)
	s.record = make([]string, len(columns))

	if err := s.w.Write(s.columns); err != nil {
		return fmt.Errorf("csvsink: header %s: %w", s.path, err)
	}
	return s.flush()
}

func (s *Sink) flush() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("csvsink: flush %s: %w", s.path, err)
	}
	if err := s.bw.Flush(); err != nil {
		return fmt.Errorf("csvsink: flush %s: %w", s.path, err)
	}
	return nil
}

// Flush is a no-op; every Write already reached the file.
func (s *Sink) Flush(context.Context) error { return nil }

// Close closes the file if one was created. Safe to call twice.
func (s *Sink) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.flush()
	if cerr := s.f.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("csvsink: close %s: %w", s.path, cerr)
	}
	s.f = nil
	return err
}
