// Package fionn parses structured text into a flat, schema-filtered
// tape (internal/arena + tape) without materializing values a caller's
// schema excludes. Parse is the single entry point; format-specific
// behavior lives in the format/* subpackages.
package fionn

import (
	"io"

	"github.com/darach/fionn/internal/arena"
	"github.com/darach/fionn/internal/batch"
	"github.com/darach/fionn/format/csv"
	"github.com/darach/fionn/format/ison"
	"github.com/darach/fionn/format/isonl"
	"github.com/darach/fionn/format/json"
	"github.com/darach/fionn/format/jsonl"
	"github.com/darach/fionn/format/toml"
	"github.com/darach/fionn/format/toon"
	"github.com/darach/fionn/format/yaml"
	"github.com/darach/fionn/schema"
	"github.com/darach/fionn/tape"
)

// Format identifies which adapter Parse dispatches to.
type Format uint8

const (
	JSON Format = iota
	JSONL
	YAML
	TOML
	CSV
	ISON
	ISONL
	TOON
)

func (f Format) String() string {
	switch f {
	case JSON:
		return "json"
	case JSONL:
		return "jsonl"
	case YAML:
		return "yaml"
	case TOML:
		return "toml"
	case CSV:
		return "csv"
	case ISON:
		return "ison"
	case ISONL:
		return "isonl"
	case TOON:
		return "toon"
	default:
		return "unknown"
	}
}

// LineOriented reports whether f is parsed as a batch of independent
// per-line tapes (spec §5: the only formats safe to shard on line
// boundaries) rather than a single document tape.
func (f Format) LineOriented() bool {
	switch f {
	case JSONL, ISONL:
		return true
	default:
		return false
	}
}

// Parse decodes data as format, consulting s at every value boundary
// to decide whether to fully tokenize a value or record it as an
// opaque, byte-counted skip. Line-oriented formats (JSONL, ISONL)
// return one tape per line via ParseLines instead; calling Parse on
// them returns the first line's tape for convenience, or a diagnostic
// if the input has none.
func Parse(data []byte, format Format, s *schema.Schema, opts Options) (*tape.Tape, error) {
	switch format {
	case JSON:
		return json.Parse(data, s, json.Options{Lossless: opts.FidelityMode == FidelityLossless})
	case YAML:
		alias := yaml.AliasResolve
		if opts.ReferenceStrategy == ReferenceDefer {
			alias = yaml.AliasPreserve
		}
		return yaml.Parse(data, s, yaml.Options{Alias: alias, Lossless: opts.FidelityMode == FidelityLossless})
	case TOML:
		return toml.Parse(data, s, toml.Options{Lossless: opts.FidelityMode == FidelityLossless})
	case CSV:
		return csv.Parse(data, s, csv.Options{
			Delimiter:      opts.CSVDelimiter,
			SkipBOM:        opts.CSVSkipBOM,
			HasHeader:      opts.CSVHasHeader,
			AllowShortRows: opts.CSVAllowShortRows,
			Lossless:       opts.FidelityMode == FidelityLossless,
		})
	case ISON:
		strategy := ison.ReferenceDefer
		if opts.ReferenceStrategy == ReferenceResolve {
			strategy = ison.ReferenceResolve
		}
		return ison.Parse(data, s, ison.Options{Strategy: strategy, Lossless: opts.FidelityMode == FidelityLossless})
	case TOON:
		return toon.Parse(data, s, toon.Options{
			Lossless:        opts.FidelityMode == FidelityLossless,
			LenientRowCount: !opts.TOONStrictRowCount,
		})
	case JSONL, ISONL:
		tapes, err := ParseLines(data, format, s, opts)
		if err != nil {
			return nil, err
		}
		if len(tapes) == 0 {
			return nil, &Diagnostic{Class: ErrTruncated, Detail: "no lines in input"}
		}
		return tapes[0], nil
	default:
		return nil, &Diagnostic{Class: ErrMalformed, Detail: "unknown format"}
	}
}

// ParseLines decodes a line-oriented document (JSONL or ISONL) into one
// tape per line, optionally sharded across opts.BatchWorkers goroutines
// along line boundaries (spec §5).
func ParseLines(data []byte, format Format, s *schema.Schema, opts Options) ([]*tape.Tape, error) {
	switch format {
	case JSONL:
		return jsonl.Parse(data, s, jsonl.Options{
			JSON:    json.Options{Lossless: opts.FidelityMode == FidelityLossless},
			Workers: opts.BatchWorkers,
		})
	case ISONL:
		strategy := isonl.Options{Workers: opts.BatchWorkers}
		return isonl.Parse(data, s, strategy)
	default:
		return nil, &Diagnostic{Class: ErrMalformed, Detail: "format is not line-oriented"}
	}
}

// ParseLinesGzip decompresses a gzip-compressed line-oriented document
// (JSONL or ISONL) and parses it exactly as ParseLines would. It exists
// for ingestion pipelines that receive their batch input pre-compressed
// rather than requiring every caller to decompress before calling Parse.
func ParseLinesGzip(r io.Reader, format Format, s *schema.Schema, opts Options) ([]*tape.Tape, error) {
	data, err := batch.ReadAllGzip(r)
	if err != nil {
		return nil, &Diagnostic{Class: ErrEncoding, Detail: "gzip: " + err.Error()}
	}
	return ParseLines(data, format, s, opts)
}

// AcquireTape returns an idle Tape from opts.Pool for a caller to reuse
// as a scratch buffer, or a freshly built empty one if opts.Pool is nil
// or has nothing idle. Parse itself always builds a fresh tape — pool
// reuse is the caller's responsibility, paired with ReleaseTape once
// the returned tape is no longer needed (spec §6.1).
func AcquireTape(format Format, inputLen int, opts Options) *tape.Tape {
	if opts.Pool == nil {
		return tape.NewBuilder(arena.New(inputLen), format.String(), inputLen).Build()
	}
	return opts.Pool.Get(format.String(), inputLen)
}

// ReleaseTape returns t to opts.Pool for reuse. It is a no-op if
// opts.Pool is nil.
func ReleaseTape(t *tape.Tape, opts Options) {
	if opts.Pool == nil {
		return
	}
	opts.Pool.Put(t)
}
