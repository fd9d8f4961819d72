// Package pipeline drives one goldrates run: it streams the input in
// chunks, derives the per-ounce columns and fans every enriched chunk out to
// the configured sinks.
//
// The driver is single-threaded. Each chunk is read, transformed and written
// to every sink in order before the next one is read, so at most one chunk
// (plus whatever the spreadsheet sink accumulates) is held in memory.
// Cancellation is honoured between chunks only.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"goldrates/internal/config"
	"goldrates/internal/datasource"
	"goldrates/internal/datasource/file"
	"goldrates/internal/datasource/httpds"
	"goldrates/internal/frame"
	"goldrates/internal/metrics"
	"goldrates/internal/parser"
	csvparser "goldrates/internal/parser/csv"
	"goldrates/internal/sink"
	"goldrates/internal/transformer"
)

// SinkResult describes one sink after a run.
type SinkResult struct {
	Name   string
	Target string
}

// Summary is returned by a successful Run.
type Summary struct {
	RunID    string
	Rows     int64 // data rows read and written to every sink
	Chunks   int64
	Expected int64 // pre-counted rows; drives progress only
	Sinks    []SinkResult
	Duration time.Duration
	Digest   uint64 // xxh3 over header and enriched rows
}

// Option customizes a Driver.
type Option func(*Driver)

// WithSinkBuilder replaces OpenSinks.
func WithSinkBuilder(b SinkBuilder) Option {
	return func(d *Driver) { d.buildSinks = b }
}

// WithSource replaces the local file source derived from Config.Input.
func WithSource(src datasource.Source) Option {
	return func(d *Driver) { d.openSource = func(string) datasource.Source { return src } }
}

// WithRunID fixes the run ID instead of generating one.
func WithRunID(id string) Option {
	return func(d *Driver) { d.runID = id }
}

// Driver executes a single run. It is not reusable.
type Driver struct {
	cfg   config.Config
	log   *zap.Logger
	runID string
	state State
	now   func() time.Time

	openSource func(path string) datasource.Source
	buildSinks SinkBuilder
}

// New returns a Driver for cfg.
func New(cfg config.Config, log *zap.Logger, opts ...Option) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Driver{
		cfg:        cfg,
		log:        log,
		state:      StateInitializing,
		now:        time.Now,
		openSource: openSource,
		buildSinks: OpenSinks,
	}
	for _, o := range opts {
		o(d)
	}
	if d.runID == "" {
		d.runID = uuid.NewString()
	}
	d.log = d.log.With(zap.String("run_id", d.runID))
	return d
}

// RunID returns the identifier attached to logs and metrics.
func (d *Driver) RunID() string { return d.runID }

// State returns the current lifecycle state.
func (d *Driver) State() State { return d.state }

func (d *Driver) setState(s State) {
	d.log.Debug("pipeline: state", zap.Stringer("from", d.state), zap.Stringer("to", s))
	d.state = s
}

// converter builds the transform from the configuration.
func (d *Driver) converter() transformer.Converter {
	conv := transformer.NewConverter()
	conv.Places = int32(d.cfg.Precision)
	conv.AllowMissing = d.cfg.AllowMissingRateColumns
	return conv
}

// step runs fn and records its duration and outcome. io.EOF counts as
// success.
func (d *Driver) step(name string, fn func() error) error {
	start := d.now()
	err := fn()
	recorded := err
	if errors.Is(err, io.EOF) {
		recorded = nil
	}
	metrics.RecordStep(d.runID, name, recorded, d.now().Sub(start))
	return err
}

// Run executes the run to completion. On failure the returned error is a
// *StageError (possibly joined with sink close errors); rows already written
// stay written. Canceling ctx stops the run before the next chunk; chunks
// already written are flushed and the error maps to ExitInterrupted.
func (d *Driver) Run(ctx context.Context) (sum Summary, err error) {
	start := d.now()
	sum.RunID = d.runID
	defer func() {
		if err != nil {
			d.setState(StateFailed)
		}
		metrics.RecordStep(d.runID, "run", err, d.now().Sub(start))
	}()

	if d.cfg.ChunkSize <= 0 {
		return sum, stageErr(StageConfig, "", fmt.Errorf("chunk size must be > 0, got %d", d.cfg.ChunkSize))
	}
	comma, err := d.cfg.CommaRune()
	if err != nil {
		return sum, stageErr(StageConfig, "", err)
	}
	conv := d.converter()

	src := d.openSource(d.cfg.Input)
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}
	d.logInput()

	if err := d.step("count", func() error {
		n, err := src.CountRows(ctx)
		sum.Expected = n
		return err
	}); err != nil {
		return sum, stageErr(StageInput, "", err)
	}
	if r, ok := src.(*httpds.Remote); ok {
		d.log.Info("pipeline: downloaded input", zap.String("url", r.URL()), zap.String("size", humanize.Bytes(uint64(r.Size()))))
	}

	rc, err := src.Open(ctx)
	if err != nil {
		return sum, stageErr(StageInput, "", err)
	}
	defer rc.Close()

	reader, err := csvparser.NewChunkReader(rc, csvparser.Options{Comma: comma, ChunkSize: d.cfg.ChunkSize})
	if err != nil {
		return sum, stageErr(StageInput, "", err)
	}
	if err := conv.Check(reader.Header()); err != nil {
		return sum, stageErr(StageConfig, "", err)
	}

	sinks, err := d.buildSinks(ctx, d.cfg, conv.DerivedColumns(), d.log)
	if err != nil {
		var se *StageError
		if errors.As(err, &se) {
			return sum, err
		}
		return sum, stageErr(StageSink, "", err)
	}
	closed := false
	defer func() {
		if !closed {
			err = joinClose(err, closeSinks(sinks, d.log))
		}
	}()
	for _, s := range sinks {
		sum.Sinks = append(sum.Sinks, SinkResult{Name: s.Name(), Target: s.Target()})
	}
	d.log.Info("pipeline: started",
		zap.String("input", d.cfg.Input),
		zap.Int("chunk_size", d.cfg.ChunkSize),
		zap.Int("sinks", len(sinks)),
		zap.String("expected_rows", humanize.Comma(sum.Expected)),
	)

	d.setState(StateStreaming)
	dg := newDigest()
	streamErr := d.stream(ctx, reader, conv, sinks, dg, &sum)
	if streamErr != nil && !errors.Is(streamErr, errInterrupted) {
		return sum, streamErr
	}
	if streamErr != nil {
		d.log.Warn("pipeline: interrupted, flushing written chunks",
			zap.String("rows", humanize.Comma(sum.Rows)),
			zap.Int64("chunks", sum.Chunks),
		)
	}

	// Chunks already handed to the sinks are completed even after an
	// interrupt; only the next chunk is skipped.
	wctx := context.WithoutCancel(ctx)
	d.setState(StateFlushing)
	for _, s := range sinks {
		if err := d.step("flush", func() error { return s.Flush(wctx) }); err != nil {
			return sum, stageErr(StageSink, s.Name(), fmt.Errorf("flush: %w", err))
		}
	}
	closed = true
	if err := closeSinks(sinks, d.log); err != nil {
		return sum, err
	}
	if streamErr != nil {
		return sum, stageErr(StageInput, "", streamErr)
	}

	sum.Digest = dg.sum()
	sum.Duration = d.now().Sub(start)
	d.setState(StateDone)
	d.logSummary(sum)
	return sum, nil
}

// stream pulls, transforms and writes chunks until the reader is exhausted.
// Cancellation of ctx is observed only before a chunk is read; it is reported
// as an error wrapping errInterrupted and the context error.
func (d *Driver) stream(ctx context.Context, reader parser.ChunkSource, conv transformer.Converter, sinks []sink.Sink, dg *digest, sum *Summary) error {
	wctx := context.WithoutCancel(ctx)
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", errInterrupted, err)
		}

		var ch *frame.Chunk
		err := d.step("read", func() error {
			var err error
			ch, err = reader.Next(wctx)
			return err
		})
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return stageErr(StageInput, "", err)
		}
		metrics.RecordRows(d.runID, "read", "", int64(ch.Len()))

		var out *frame.Chunk
		if err := d.step("transform", func() error {
			var err error
			out, err = conv.Apply(ch)
			return err
		}); err != nil {
			return stageErr(StageTransform, "", err)
		}
		dg.add(out)

		for _, s := range sinks {
			if err := d.step("write", func() error { return s.Write(wctx, out, first) }); err != nil {
				return stageErr(StageSink, s.Name(), err)
			}
			metrics.RecordRows(d.runID, "written", s.Name(), int64(out.Len()))
		}
		first = false

		sum.Rows += int64(out.Len())
		sum.Chunks++
		metrics.RecordChunks(d.runID, 1)
		d.logProgress(sum.Rows, sum.Expected, sum.Chunks)
	}
}

// openSource picks the remote source for http(s) inputs and the local file
// source otherwise.
func openSource(input string) datasource.Source {
	if httpds.IsURL(input) {
		return httpds.NewRemote(input, nil, "")
	}
	return file.NewLocal(input)
}

func (d *Driver) logInput() {
	fi, err := os.Stat(d.cfg.Input)
	if err != nil {
		return
	}
	d.log.Debug("pipeline: input",
		zap.String("path", d.cfg.Input),
		zap.String("size", humanize.Bytes(uint64(fi.Size()))),
		zap.String("codec", file.Codec(d.cfg.Input)),
	)
}

func (d *Driver) logProgress(done, expected, chunks int64) {
	fields := []zap.Field{
		zap.String("rows", humanize.Comma(done)),
		zap.Int64("chunk", chunks),
	}
	if expected > 0 {
		pct := float64(done) / float64(expected) * 100
		if pct > 100 {
			pct = 100
		}
		fields = append(fields,
			zap.String("of", humanize.Comma(expected)),
			zap.String("pct", humanize.FtoaWithDigits(pct, 1)+"%"),
		)
	}
	d.log.Info("pipeline: progress", fields...)
}

func (d *Driver) logSummary(sum Summary) {
	fields := []zap.Field{
		zap.String("rows", humanize.Comma(sum.Rows)),
		zap.Int64("chunks", sum.Chunks),
		zap.Duration("duration", sum.Duration.Truncate(time.Millisecond)),
		zap.String("digest", fmt.Sprintf("%016x", sum.Digest)),
	}
	for _, s := range sum.Sinks {
		fields = append(fields, zap.String("sink."+s.Name, s.Target))
	}
	d.log.Info("pipeline: done", fields...)
}
