package pipeline

import (
	"github.com/zeebo/xxh3"

	"goldrates/internal/frame"
	"goldrates/internal/sink"
)

// Field and record separators fed between cells; nil cells get their own
// marker so they never collide with empty strings.
const (
	unitSep   = "\x1f"
	recordSep = "\x1e"
	nilMark   = "\x00"
)

// digest folds the header and every enriched row into one xxh3 hash in
// arrival order. Chunk boundaries do not affect the result.
type digest struct {
	h      *xxh3.Hasher
	header bool
}

func newDigest() *digest { return &digest{h: xxh3.New()} }

func (d *digest) add(ch *frame.Chunk) {
	if !d.header {
		for _, c := range ch.Columns {
			_, _ = d.h.WriteString(c)
			_, _ = d.h.WriteString(unitSep)
		}
		_, _ = d.h.WriteString(recordSep)
		d.header = true
	}
	for _, row := range ch.Rows {
		for _, v := range row {
			if v == nil {
				_, _ = d.h.WriteString(nilMark)
			} else {
				_, _ = d.h.WriteString(sink.FormatCell(v))
			}
			_, _ = d.h.WriteString(unitSep)
		}
		_, _ = d.h.WriteString(recordSep)
	}
}

func (d *digest) sum() uint64 { return d.h.Sum64() }
