package file

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// countBufSize is the read size used while counting lines.
const countBufSize = 256 * 1024

// CountRows returns the number of data rows in the file: total lines minus
// one header line, never negative. The count runs over the decompressed
// stream but skips text decoding; undecodable bytes cannot change the number
// of newlines.
func (l *Local) CountRows(ctx context.Context) (int64, error) {
	rc, err := l.openStream(ctx)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	n, err := CountLines(ctx, rc)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", l.path, err)
	}
	if n == 0 {
		return 0, nil
	}
	return n - 1, nil
}

// CountLines counts lines in r without buffering the whole stream. A final
// line without a trailing newline still counts. Cancellation is checked
// between reads.
func CountLines(ctx context.Context, r io.Reader) (int64, error) {
	buf := make([]byte, countBufSize)
	var (
		lines int64
		last  byte = '\n'
	)
	for {
		if err := ctx.Err(); err != nil {
			return lines, err
		}
		n, err := r.Read(buf)
		if n > 0 {
			lines += int64(bytes.Count(buf[:n], []byte{'\n'}))
			last = buf[n-1]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return lines, err
		}
	}
	if last != '\n' {
		lines++
	}
	return lines, nil
}
