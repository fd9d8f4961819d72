// Package file implements the local filesystem input source.
//
// Inputs may be plain or compressed; the codec is chosen from the file
// extension:
//
//	.zst, .zstd  zstd  (klauspost/compress/zstd)
//	.gz          gzip  (klauspost/compress/gzip)
//	.lz4         lz4   (pierrec/lz4/v4)
//
// Open additionally decodes the byte stream permissively: a leading byte
// order mark is honoured and removed, and ill-formed UTF-8 is replaced with
// U+FFFD instead of failing the run.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Local is a filesystem data source that opens files from the local disk.
type Local struct{ path string }

// NewLocal returns a new Local data source bound to the provided filesystem
// path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the configured path.
func (l *Local) Path() string { return l.path }

// Open opens the configured path for reading and returns a decompressed,
// permissively decoded text stream.
//
// If the context is already canceled, Open returns the context error without
// touching the filesystem. Filesystem errors are wrapped with the path while
// still permitting errors.Is checks (e.g. os.ErrNotExist).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	rc, err := l.openStream(ctx)
	if err != nil {
		return nil, err
	}
	dec := transform.Chain(
		unicode.BOMOverride(unicode.UTF8.NewDecoder()),
		runes.ReplaceIllFormed(),
	)
	return &readCloser{
		Reader: transform.NewReader(rc, dec),
		close:  rc.Close,
	}, nil
}

// openStream opens the file and wraps it in the codec selected by the
// extension. No text decoding is applied.
func (l *Local) openStream(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		// *os.PathError already names the operation and the path.
		return nil, err
	}
	adviseSequential(f)

	switch Codec(l.path) {
	case "zstd":
		d, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd %s: %w", l.path, err)
		}
		return &readCloser{Reader: d, close: func() error {
			d.Close()
			return f.Close()
		}}, nil
	case "gzip":
		g, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip %s: %w", l.path, err)
		}
		return &readCloser{Reader: g, close: func() error {
			gerr := g.Close()
			if err := f.Close(); err != nil {
				return err
			}
			return gerr
		}}, nil
	case "lz4":
		return &readCloser{Reader: lz4.NewReader(f), close: f.Close}, nil
	default:
		return f, nil
	}
}

// Codec names the decompressor used for path, or "" for plain files.
func Codec(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return "zstd"
	case ".gz":
		return "gzip"
	case ".lz4":
		return "lz4"
	default:
		return ""
	}
}

// readCloser pairs a wrapping reader with the close of what it wraps.
type readCloser struct {
	io.Reader
	close func() error
}

func (r *readCloser) Close() error { return r.close() }
