// Package parquetsink writes chunks to a Parquet file, one record batch per
// chunk. The Arrow schema is fixed by the first chunk: derived columns are
// nullable float64, every other column nullable UTF-8.
package parquetsink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"

	"goldrates/internal/frame"
	"goldrates/internal/sink"
)

// Sink is the Parquet sink.
type Sink struct {
	path      string
	floatCols map[string]struct{}
	mem       memory.Allocator

	schema *arrow.Schema
	fw     *pqarrow.FileWriter
	rows   int64
}

var _ sink.Sink = (*Sink)(nil)

// Open removes a stale file at path. floatCols are written as float64.
func Open(path string, floatCols []string) (*Sink, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("parquetsink: remove stale %s: %w", path, err)
	}
	fc := make(map[string]struct{}, len(floatCols))
	for _, c := range floatCols {
		fc[c] = struct{}{}
	}
	return &Sink{path: path, floatCols: fc, mem: memory.DefaultAllocator}, nil
}

func (s *Sink) Name() string   { return "parquet" }
func (s *Sink) Target() string { return s.path }

// Schema builds the Arrow schema for columns.
func (s *Sink) Schema(columns []string) *arrow.Schema {
	fields := make([]arrow.Field, len(columns))
	for i, c := range columns {
		typ := arrow.DataType(arrow.BinaryTypes.String)
		if _, ok := s.floatCols[c]; ok {
			typ = arrow.PrimitiveTypes.Float64
		}
		fields[i] = arrow.Field{Name: c, Type: typ, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// Write creates the file on the first chunk and appends one record batch per
// non-empty chunk.
func (s *Sink) Write(_ context.Context, ch *frame.Chunk, first bool) error {
	if first {
		if err := s.create(ch.Columns); err != nil {
			return err
		}
	} else if s.fw == nil {
		return fmt.Errorf("parquetsink: %w", sink.ErrNotStarted)
	}
	if err := s.checkColumns(ch.Columns); err != nil {
		return err
	}
	if ch.Len() == 0 {
		return nil
	}

	rec := s.record(ch)
	defer rec.Release()
	if err := s.fw.Write(rec); err != nil {
		return fmt.Errorf("parquetsink: write %s: %w", s.path, err)
	}
	s.rows += rec.NumRows()
	return nil
}

func (s *Sink) create(columns []string) error {
	if s.fw != nil {
		_ = s.fw.Close()
		s.fw = nil
	}
	s.schema = s.Schema(columns)

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("parquetsink: create %s: %w", s.path, err)
	}
	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithDictionaryDefault(true),
		parquet.WithCreatedBy("goldrates"),
	)
	fw, err := pqarrow.NewFileWriter(s.schema, f, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		f.Close()
		return fmt.Errorf("parquetsink: writer %s: %w", s.path, err)
	}
	s.fw = fw
	return nil
}

func (s *Sink) checkColumns(columns []string) error {
	names := make([]string, s.schema.NumFields())
	for i, f := range s.schema.Fields() {
		names[i] = f.Name
	}
	if err := sink.CheckColumns(names, columns); err != nil {
		return fmt.Errorf("parquetsink: %w", err)
	}
	return nil
}

// record converts a row-major chunk into a columnar record.
func (s *Sink) record(ch *frame.Chunk) arrow.Record {
	b := array.NewRecordBuilder(s.mem, s.schema)
	defer b.Release()

	for i := range s.schema.Fields() {
		switch fb := b.Field(i).(type) {
		case *array.Float64Builder:
			fb.Reserve(ch.Len())
			for _, row := range ch.Rows {
				if v, ok := asFloat(cell(row, i)); ok {
					fb.Append(v)
				} else {
					fb.AppendNull()
				}
			}
		case *array.StringBuilder:
			for _, row := range ch.Rows {
				v := cell(row, i)
				if v == nil {
					fb.AppendNull()
					continue
				}
				fb.Append(sink.FormatCell(v))
			}
		}
	}
	return b.NewRecord()
}

func cell(row []any, i int) any {
	if i < len(row) {
		return row[i]
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Flush is a no-op; row groups are written by Write.
func (s *Sink) Flush(context.Context) error { return nil }

// Close writes the footer and closes the file. Safe to call twice.
func (s *Sink) Close() error {
	if s.fw == nil {
		return nil
	}
	err := s.fw.Close()
	s.fw = nil
	if err != nil {
		return fmt.Errorf("parquetsink: close %s: %w", s.path, err)
	}
	return nil
}
