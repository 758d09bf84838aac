// Package isonl implements the ISONL format adapter (spec §4.6.6): the
// pipe-delimited streaming flavor of ISON, where each line carries its
// own schema prefix so the field set can evolve line by line. Grounded
// on format/ison's row/reference/type logic, the way format/jsonl
// reuses format/json per line.
package isonl

import (
	"strings"

	"github.com/darach/fionn/internal/arena"
	"github.com/darach/fionn/internal/batch"
	"github.com/darach/fionn/internal/perr"
	"github.com/darach/fionn/format/ison"
	"github.com/darach/fionn/schema"
	"github.com/darach/fionn/tape"
)

// Options configures the ISONL adapter.
type Options struct {
	// Workers, when > 1, parses lines concurrently via internal/batch
	// (spec §5: line-boundary sharding is safe for ISONL because each
	// line is a self-contained record).
	Workers int
}

// Parse decodes a pipe-delimited ISONL document into one Tape per line.
// A line's shape is "<block>|<field:type field:type ...>|<val>|<val>...",
// letting every line declare its own schema independently of the lines
// around it.
func Parse(data []byte, s *schema.Schema, opts Options) ([]*tape.Tape, error) {
	if opts.Workers > 1 {
		return batch.ParallelLines(data, opts.Workers, func(line []byte) (*tape.Tape, error) {
			return parseLine(line, s)
		})
	}

	var tapes []*tape.Tape
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		tp, err := parseLine([]byte(line), s)
		if err != nil {
			return nil, err
		}
		tapes = append(tapes, tp)
	}
	return tapes, nil
}

func parseLine(line []byte, s *schema.Schema) (*tape.Tape, error) {
	parts := strings.Split(string(line), "|")
	if len(parts) < 2 {
		return nil, perr.New(perr.ErrMalformed, 0, "isonl line missing schema segment")
	}
	blockName := strings.TrimSpace(parts[0])
	fields, err := ison.ParseLineSchema(parts[1])
	if err != nil {
		return nil, err
	}
	values := parts[2:]

	b := tape.NewBuilder(arena.New(len(line)), "isonl", len(line))
	b.PushObjectStart()

	rowPath := schema.Root().Key(blockName)
	forced := s.Matches(rowPath)
	if !forced && !s.CouldMatchChildren(rowPath) {
		b.PushKey([]byte(blockName))
		b.PushSkipMarker(len(line))
		b.PushObjectEnd()
		return b.Build(), nil
	}

	b.PushKey([]byte(blockName))
	if err := ison.EmitLineRow(b, fields, values, rowPath, forced, s); err != nil {
		return nil, err
	}
	b.PushObjectEnd()
	return b.Build(), nil
}
