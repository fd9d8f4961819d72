package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"goldrates/internal/config"
	"goldrates/internal/sink"
	"goldrates/internal/sink/csvsink"
	"goldrates/internal/sink/dbsink"
	"goldrates/internal/sink/parquetsink"
	"goldrates/internal/sink/xlsxsink"
)

// SinkBuilder opens every sink of a run in write order. derived names the
// float columns the transform appends.
type SinkBuilder func(ctx context.Context, cfg config.Config, derived []string, log *zap.Logger) ([]sink.Sink, error)

// OpenSinks is the production SinkBuilder: the relational sink first, then
// the configured flat-file sinks. On error every sink opened so far is
// closed and the failure is reported against the sink that could not open.
func OpenSinks(ctx context.Context, cfg config.Config, derived []string, log *zap.Logger) ([]sink.Sink, error) {
	var sinks []sink.Sink
	fail := func(name string, err error) ([]sink.Sink, error) {
		closeSinks(sinks, log)
		return nil, stageErr(StageSink, name, err)
	}

	db, err := dbsink.Open(ctx, dbsink.Options{
		Kind:         cfg.DB.Kind,
		DSN:          cfg.DB.DSN,
		Table:        cfg.DB.Table,
		BatchSize:    cfg.ChunkSize,
		FloatColumns: derived,
	}, log)
	if err != nil {
		return fail("db", err)
	}
	sinks = append(sinks, db)

	if p := cfg.Outputs.CSV; p != "" {
		s, err := csvsink.Open(p, ',')
		if err != nil {
			return fail("csv", err)
		}
		sinks = append(sinks, s)
	}
	if p := cfg.Outputs.XLSX; p != "" {
		sinks = append(sinks, xlsxsink.Open(p, log))
	}
	if p := cfg.Outputs.Parquet; p != "" {
		s, err := parquetsink.Open(p, derived)
		if err != nil {
			return fail("parquet", err)
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// closeSinks closes every sink and returns the first error as a sink
// StageError. Later errors are logged.
func closeSinks(sinks []sink.Sink, log *zap.Logger) error {
	var first error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			if first == nil {
				first = stageErr(StageSink, s.Name(), fmt.Errorf("close: %w", err))
				continue
			}
			log.Warn("pipeline: close sink", zap.String("sink", s.Name()), zap.Error(err))
		}
	}
	return first
}

// joinClose folds a close error into the run error without hiding it.
func joinClose(runErr, closeErr error) error {
	switch {
	case closeErr == nil:
		return runErr
	case runErr == nil:
		return closeErr
	default:
		return errors.Join(runErr, closeErr)
	}
}
