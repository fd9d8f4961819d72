package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Stage names the part of a run an error came from.
type Stage string

const (
	StageConfig    Stage = "config"
	StageInput     Stage = "input"
	StageTransform Stage = "transform"
	StageSink      Stage = "sink"
)

// Exit codes returned by ExitCode.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfig      = 2
	ExitInput       = 3
	ExitSink        = 4
	ExitTransform   = 5
	ExitInterrupted = 130
)

// StageError attributes a run failure to a stage and, for sink failures, to
// the sink that failed.
type StageError struct {
	Stage Stage
	Sink  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Sink != "" {
		return fmt.Sprintf("%s %s: %v", e.Stage, e.Sink, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// errInterrupted marks a run stopped between chunks by cancellation.
var errInterrupted = errors.New("interrupted")

func stageErr(stage Stage, sink string, err error) error {
	return &StageError{Stage: stage, Sink: sink, Err: err}
}

// ExitCode maps a Run error to a process exit code. Cancellation wins over
// the stage it interrupted.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, errInterrupted) {
		return ExitInterrupted
	}
	var se *StageError
	if !errors.As(err, &se) {
		return ExitFailure
	}
	switch se.Stage {
	case StageConfig:
		return ExitConfig
	case StageInput:
		return ExitInput
	case StageSink:
		return ExitSink
	case StageTransform:
		return ExitTransform
	default:
		return ExitFailure
	}
}
