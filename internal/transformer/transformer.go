// Package transformer holds the per-chunk transforms applied between the
// reader and the sinks.
//
// Transforms are pure with respect to their input: Apply never mutates the
// chunk it receives and returns a new logical chunk instead. They run on the
// driver's single control path, so implementations need not be safe for
// concurrent use.
package transformer

import "goldrates/internal/frame"

// Transformer maps one chunk to an enriched chunk.
type Transformer interface {
	Apply(c *frame.Chunk) (*frame.Chunk, error)
}

// Chain is an ordered list of transformers.
type Chain []Transformer

// Apply runs every transformer in order, feeding each the previous output.
func (c Chain) Apply(in *frame.Chunk) (*frame.Chunk, error) {
	out := in
	for _, t := range c {
		var err error
		if out, err = t.Apply(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
