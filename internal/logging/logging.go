// Package logging builds the zap logger shared by every component of a run.
package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the logger's level and encoding.
type Options struct {
	// Level is a zap level name: debug, info, warn, error. Empty means info.
	Level string

	// Verbose forces the debug level regardless of Level.
	Verbose bool

	// JSON switches from the console encoder to the production JSON encoder.
	JSON bool
}

// ParseLevel resolves the effective level for opt.
func ParseLevel(opt Options) (zapcore.Level, error) {
	if opt.Verbose {
		return zapcore.DebugLevel, nil
	}
	s := strings.TrimSpace(opt.Level)
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("logging: invalid level %q", opt.Level)
	}
	return lvl, nil
}

// New returns a logger writing to stderr. Level names are colored when
// stderr is a terminal.
func New(opt Options) (*zap.Logger, error) {
	lvl, err := ParseLevel(opt)
	if err != nil {
		return nil, err
	}
	return newLogger(opt, lvl, zapcore.Lock(os.Stderr), IsTerminal(os.Stderr)), nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func newLogger(opt Options, lvl zapcore.Level, w zapcore.WriteSyncer, color bool) *zap.Logger {
	var enc zapcore.Encoder
	if opt.JSON {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		if color {
			ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		enc = zapcore.NewConsoleEncoder(ec)
	}
	core := zapcore.NewCore(enc, w, zap.NewAtomicLevelAt(lvl))
	return zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))
}
