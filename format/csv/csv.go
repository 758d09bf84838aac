// Package csv implements the CSV format adapter (spec §4.6): BOM
// detection, delimiter sniffing, RFC4180 quoting, and the same
// schema-driven on_value decision every other adapter applies — here at
// the granularity of individual fields rather than arbitrarily nested
// subtrees, since a CSV row has no deeper structure to skip into.
package csv

import (
	"strconv"

	"github.com/darach/fionn/internal/arena"
	"github.com/darach/fionn/internal/perr"
	"github.com/darach/fionn/schema"
	"github.com/darach/fionn/tape"
)

var utf8BOM = [3]byte{0xEF, 0xBB, 0xBF}

// Options configures the CSV adapter.
type Options struct {
	// Delimiter is the field separator; zero means auto-detect from the
	// first line among comma, semicolon, and tab.
	Delimiter byte
	// SkipBOM strips a leading UTF-8 byte-order mark before parsing.
	SkipBOM bool
	// HasHeader treats the first row as column names, addressing every
	// other row's fields by name ($[i].name) instead of by index
	// ($[i][j]).
	HasHeader bool
	// AllowShortRows tolerates rows with fewer fields than the header;
	// missing trailing fields are simply absent from the row object.
	// The zero value is strict: a short row is Malformed{field_count}.
	AllowShortRows bool
	// Lossless enables an original-syntax sidecar recording which
	// fields in each row were originally RFC4180-quoted.
	Lossless bool
}

// Parse decodes data into a Tape shaped as an array of row objects (or
// row arrays when HasHeader is false): $[rowIndex].<column> for named
// columns, $[rowIndex][fieldIndex] otherwise.
func Parse(data []byte, s *schema.Schema, opts Options) (*tape.Tape, error) {
	if opts.SkipBOM {
		data = stripBOM(data)
	}
	delim := opts.Delimiter
	if delim == 0 {
		delim = detectDelimiter(data)
	}

	rows, quoted, err := splitRows(data, delim)
	if err != nil {
		return nil, err
	}

	b := tape.NewBuilder(arena.New(len(data)), "csv", len(data))
	if opts.Lossless {
		b.EnableSidecar()
	}
	b.PushArrayStart()

	var header []string
	start := 0
	if opts.HasHeader && len(rows) > 0 {
		header = make([]string, len(rows[0]))
		for i, f := range rows[0] {
			header[i] = string(f)
		}
		start = 1
	}

	for ri := start; ri < len(rows); ri++ {
		row := rows[ri]
		rowQuoted := quoted[ri]
		outIdx := ri - start
		rowPath := schema.Root().Index(outIdx)

		if header != nil && len(row) != len(header) && !opts.AllowShortRows {
			return nil, perr.New(perr.ErrMalformed, 0, "field_count: row "+strconv.Itoa(outIdx)+" has "+strconv.Itoa(len(row))+" fields, header has "+strconv.Itoa(len(header)))
		}

		rowIdx := b.Len()
		if header != nil {
			b.PushObjectStart()
		} else {
			b.PushArrayStart()
		}
		if opts.Lossless {
			b.PushSidecar(rowIdx, tape.CSVQuotingRecord{Quoted: rowQuoted})
		}
		for fi, field := range row {
			var colPath schema.Path
			var colName string
			if header != nil {
				if fi >= len(header) {
					if opts.AllowShortRows {
						continue
					}
					return nil, perr.New(perr.ErrMalformed, 0, "field_count: row "+strconv.Itoa(outIdx)+" has more fields than the header")
				}
				colName = header[fi]
				colPath = rowPath.Key(colName)
				b.PushKey([]byte(colName))
			} else {
				colPath = rowPath.Index(fi)
			}

			if s.Matches(colPath) || s.Matches(rowPath) {
				b.PushString(field)
			} else {
				b.PushSkipMarker(len(field))
			}
		}
		if header != nil {
			b.PushObjectEnd()
		} else {
			b.PushArrayEnd()
		}
	}

	b.PushArrayEnd()
	return b.Build(), nil
}

func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == utf8BOM[0] && data[1] == utf8BOM[1] && data[2] == utf8BOM[2] {
		return data[3:]
	}
	return data
}

func detectDelimiter(data []byte) byte {
	end := len(data)
	for i, c := range data {
		if c == '\n' {
			end = i
			break
		}
	}
	line := data[:end]
	counts := map[byte]int{',': 0, ';': 0, '\t': 0}
	inQuotes := false
	for _, c := range line {
		if c == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		if _, ok := counts[c]; ok {
			counts[c]++
		}
	}
	best := byte(',')
	bestCount := -1
	for _, d := range []byte{',', ';', '\t'} {
		if counts[d] > bestCount {
			bestCount = counts[d]
			best = d
		}
	}
	return best
}

// splitRows tokenizes RFC4180-ish CSV: quoted fields may contain the
// delimiter, newlines, and "" as an escaped quote. The parallel quoted
// slice records, per row and field, whether that field was originally
// wrapped in double quotes — the detail format/csv's sidecar preserves.
func splitRows(data []byte, delim byte) (rows [][][]byte, quoted [][]bool, err error) {
	var row [][]byte
	var rowQuoted []bool
	var field []byte
	inQuotes := false
	i := 0
	n := len(data)
	fieldStartedQuoted := false

	flushField := func() {
		row = append(row, field)
		rowQuoted = append(rowQuoted, fieldStartedQuoted)
		field = nil
		fieldStartedQuoted = false
	}
	flushRow := func() {
		flushField()
		rows = append(rows, row)
		quoted = append(quoted, rowQuoted)
		row = nil
		rowQuoted = nil
	}

	for i < n {
		c := data[i]
		switch {
		case inQuotes:
			if c == '"' {
				if i+1 < n && data[i+1] == '"' {
					field = append(field, '"')
					i += 2
					continue
				}
				inQuotes = false
				i++
				continue
			}
			field = append(field, c)
			i++
		case c == '"' && len(field) == 0 && !fieldStartedQuoted:
			inQuotes = true
			fieldStartedQuoted = true
			i++
		case c == delim:
			flushField()
			i++
		case c == '\r':
			i++
		case c == '\n':
			flushRow()
			i++
		default:
			field = append(field, c)
			i++
		}
	}
	if inQuotes {
		return nil, nil, perr.New(perr.ErrTruncated, i, "unterminated quoted field")
	}
	if len(field) > 0 || len(row) > 0 {
		flushRow()
	}
	return rows, quoted, nil
}
