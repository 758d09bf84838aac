// Package jsonl implements the JSON Lines adapter: each line is an
// independent JSON document, parsed with the same schema applied
// per-line. This is the adapter spec §5's line-boundary batch
// parallelism is built for (see internal/batch).
package jsonl

import (
	"bytes"

	"github.com/darach/fionn/format/json"
	"github.com/darach/fionn/internal/batch"
	"github.com/darach/fionn/schema"
	"github.com/darach/fionn/tape"
)

// Options configures the JSONL adapter.
type Options struct {
	// JSON carries the per-line document options (fidelity mode, etc.).
	JSON json.Options
	// Workers, when > 1, parses lines concurrently via
	// internal/batch.ParallelLines instead of sequentially.
	Workers int
}

// Parse decodes data as newline-delimited JSON, returning one Tape per
// non-empty line in input order.
func Parse(data []byte, s *schema.Schema, opts Options) ([]*tape.Tape, error) {
	parseLine := func(line []byte) (*tape.Tape, error) {
		return json.Parse(line, s, opts.JSON)
	}
	if opts.Workers > 1 {
		return batch.ParallelLines(data, opts.Workers, parseLine)
	}

	var out []*tape.Tape
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		t, err := parseLine(line)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
