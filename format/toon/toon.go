// Package toon implements the TOON format adapter (spec §4.6.7):
// indentation-structured documents whose arrays can declare a tabular
// header ("items[3]{id,name}:") fixing both the row count and the field
// order for the rows that follow, and whose mapping keys may be folded
// with dots ("a.b.c: v") to denote a nested object. Line tokenization
// follows format/yaml's indentation-tracking approach; the tabular
// header and folded-key handling are TOON-specific.
package toon

import (
	"strconv"
	"strings"

	"github.com/darach/fionn/internal/arena"
	"github.com/darach/fionn/internal/perr"
	"github.com/darach/fionn/schema"
	"github.com/darach/fionn/tape"
)

// Options configures the TOON adapter.
type Options struct {
	// Lossless preserves a folded dotted key's original surface form
	// ("a.b.c") in the sidecar arena alongside the nested object it
	// expands into.
	Lossless bool

	// LenientRowCount, when true, tolerates a declared-vs-actual row
	// count mismatch by taking however many rows actually follow
	// instead of returning Malformed{length_mismatch}. The zero value
	// is strict, matching every other adapter's refusal to silently
	// reshape structure.
	LenientRowCount bool
}

type logicalLine struct {
	indent  int
	content string
}

// Parse decodes a TOON document into a Tape.
func Parse(data []byte, s *schema.Schema, opts Options) (*tape.Tape, error) {
	lines := tokenizeLines(string(data))
	b := tape.NewBuilder(arena.New(len(data)), "toon", len(data))
	if opts.Lossless {
		b.EnableSidecar()
	}
	p := &parser{lines: lines, b: b, schema: s, opts: opts}

	b.PushObjectStart()
	_, err := p.parseMappingEntries(0, 0, schema.Root(), false)
	if err != nil {
		return nil, err
	}
	b.PushObjectEnd()
	return b.Build(), nil
}

func tokenizeLines(src string) []logicalLine {
	var out []logicalLine
	for _, raw := range strings.Split(src, "\n") {
		trimmedRight := strings.TrimRight(raw, "\r")
		if strings.TrimSpace(trimmedRight) == "" {
			continue
		}
		indent := 0
		for indent < len(trimmedRight) && trimmedRight[indent] == ' ' {
			indent++
		}
		out = append(out, logicalLine{indent: indent, content: trimmedRight[indent:]})
	}
	return out
}

type parser struct {
	lines  []logicalLine
	b      *tape.Builder
	schema *schema.Schema
	opts   Options
}

// parseMappingEntries consumes every line at exactly indent starting at
// pos, pushing key/value pairs until a shallower line or EOF, and
// returns the position just past the last consumed line.
func (p *parser) parseMappingEntries(pos, indent int, path schema.Path, forced bool) (int, error) {
	for pos < len(p.lines) {
		ln := p.lines[pos]
		if ln.indent < indent {
			break
		}
		if ln.indent > indent {
			return pos, perr.New(perr.ErrMalformed, 0, "unexpected indentation")
		}

		if name, n, delim, fields, rest, ok := parseTabularHeader(ln.content); ok {
			keyPath, opened := p.pushMappingKey(name, path)
			matches := forced || p.schema.Matches(keyPath)
			could := p.schema.CouldMatchChildren(keyPath)
			if !matches && !could {
				np, consumed := p.skipTabularRows(pos+1, indent, n)
				p.b.PushSkipMarker(len(rest) + consumed)
				p.closeOpened(opened)
				pos = np
				continue
			}
			arrayIdx := p.b.Len()
			np, err := p.emitTabularArray(pos+1, indent, n, delim, fields, keyPath, matches)
			if p.opts.Lossless {
				p.b.PushSidecar(arrayIdx, tape.TOONArrayHeaderRecord{Text: rest})
			}
			p.closeOpened(opened)
			if err != nil {
				return pos, err
			}
			pos = np
			continue
		}

		key, rest, hasValue := splitKey(ln.content)
		if key == "" {
			return pos, perr.New(perr.ErrMalformed, 0, "expected 'key: value' or 'key:'")
		}
		keyPath, opened := p.pushMappingKey(key, path)
		matches := forced || p.schema.Matches(keyPath)
		could := p.schema.CouldMatchChildren(keyPath)

		if hasValue && strings.TrimSpace(rest) != "" {
			if !matches && !could {
				p.b.PushSkipMarker(len(rest))
			} else {
				pushScalar(p.b, strings.TrimSpace(rest))
			}
			p.closeOpened(opened)
			pos++
			continue
		}

		// No inline value: either a nested block at the next line's
		// (deeper) indent, or an empty/null value if nothing follows at
		// deeper indent.
		if pos+1 < len(p.lines) && p.lines[pos+1].indent > indent {
			if !matches && !could {
				endPos := skipBlock(p.lines, pos+1, indent+1)
				p.b.PushSkipMarker(estimateLines(p.lines[pos+1 : endPos]))
				p.closeOpened(opened)
				pos = endPos
				continue
			}
			p.b.PushObjectStart()
			np, err := p.parseMappingEntries(pos+1, p.lines[pos+1].indent, keyPath, matches)
			p.b.PushObjectEnd()
			p.closeOpened(opened)
			if err != nil {
				return pos, err
			}
			pos = np
			continue
		}

		p.b.PushNull()
		p.closeOpened(opened)
		pos++
	}
	return pos, nil
}

// pushMappingKey folds a dotted key ("a.b.c") into nested objects,
// preserving the original surface form in the sidecar when lossless
// mode is enabled. It pushes a Key node for every segment and opens an
// ObjectStart for every segment but the last, returning the leaf path
// and the number of ObjectStart calls the caller must close (via
// closeOpened) once it has pushed the single value/subtree the leaf
// key is followed by. Each folded key opens its own chain of objects:
// two folded keys that share a prefix ("a.b.c" then "a.b.d") are not
// merged, so the tape holds two sibling "a" keys and a path lookup
// finds only the first.
func (p *parser) pushMappingKey(raw string, path schema.Path) (leafPath schema.Path, opened int) {
	segs := strings.Split(raw, ".")
	if len(segs) == 1 {
		p.b.PushKey([]byte(raw))
		return path.Key(raw), 0
	}
	keyIdx := p.b.Len()
	for _, seg := range segs[:len(segs)-1] {
		p.b.PushKey([]byte(seg))
		p.b.PushObjectStart()
		path = path.Key(seg)
		opened++
	}
	last := segs[len(segs)-1]
	p.b.PushKey([]byte(last))
	if p.opts.Lossless {
		p.b.PushSidecar(keyIdx, tape.TOONFoldedKeyRecord{Full: raw})
	}
	return path.Key(last), opened
}

func (p *parser) closeOpened(n int) {
	for i := 0; i < n; i++ {
		p.b.PushObjectEnd()
	}
}

func estimateLines(lines []logicalLine) int {
	n := 0
	for _, l := range lines {
		n += len(l.content)
	}
	return n
}

func skipBlock(lines []logicalLine, pos, minIndent int) int {
	for pos < len(lines) && lines[pos].indent >= minIndent {
		pos++
	}
	return pos
}

// splitKey splits "key: value" or "key:" at the first top-level colon
// (not inside quotes).
func splitKey(line string) (key, rest string, hasColon bool) {
	inQuote := byte(0)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			}
		case c == '"' || c == '\'':
			inQuote = c
		case c == ':':
			return strings.TrimSpace(line[:i]), line[i+1:], true
		}
	}
	return "", "", false
}

// parseTabularHeader recognizes "name[N]{f1,f2}:" or "name[N|]{f1,f2}:",
// returning the declared row count, field delimiter, and field names.
func parseTabularHeader(line string) (name string, n int, delim byte, fields []string, rest string, ok bool) {
	open := strings.IndexByte(line, '[')
	if open < 0 {
		return "", 0, 0, nil, "", false
	}
	name = strings.TrimSpace(line[:open])
	if name == "" {
		return "", 0, 0, nil, "", false
	}
	closeBr := strings.IndexByte(line[open:], ']')
	if closeBr < 0 {
		return "", 0, 0, nil, "", false
	}
	closeBr += open
	countSpec := line[open+1 : closeBr]
	delim = ','
	if strings.HasSuffix(countSpec, "|") {
		delim = '|'
		countSpec = strings.TrimSuffix(countSpec, "|")
	}
	count, err := strconv.Atoi(strings.TrimSpace(countSpec))
	if err != nil {
		return "", 0, 0, nil, "", false
	}

	braceOpen := strings.IndexByte(line[closeBr:], '{')
	if braceOpen < 0 {
		return "", 0, 0, nil, "", false
	}
	braceOpen += closeBr
	braceClose := strings.IndexByte(line[braceOpen:], '}')
	if braceClose < 0 {
		return "", 0, 0, nil, "", false
	}
	braceClose += braceOpen

	fieldList := line[braceOpen+1 : braceClose]
	for _, f := range strings.Split(fieldList, ",") {
		fields = append(fields, strings.TrimSpace(f))
	}

	afterBrace := strings.TrimSpace(line[braceClose+1:])
	if !strings.HasPrefix(afterBrace, ":") {
		return "", 0, 0, nil, "", false
	}
	return name, count, delim, fields, line, true
}

// emitTabularArray reads exactly n row lines indented deeper than the
// header at headerIndent, splitting each on delim and matching
// positionally to fields; a declared-vs-actual mismatch is
// Malformed{length_mismatch} (spec §4.6.7).
func (p *parser) emitTabularArray(pos, headerIndent, n int, delim byte, fields []string, path schema.Path, forced bool) (int, error) {
	if pos >= len(p.lines) || p.lines[pos].indent <= headerIndent {
		if n != 0 && !p.opts.LenientRowCount {
			return pos, perr.New(perr.ErrMalformed, 0, "length_mismatch: declared "+strconv.Itoa(n)+" rows, found 0")
		}
		p.b.PushArrayStart()
		p.b.PushArrayEnd()
		return pos, nil
	}
	rowIndent := p.lines[pos].indent
	var rows [][]string
	for pos < len(p.lines) && p.lines[pos].indent == rowIndent {
		rows = append(rows, splitDelim(p.lines[pos].content, delim))
		pos++
	}
	if len(rows) != n && !p.opts.LenientRowCount {
		return pos, perr.New(perr.ErrMalformed, 0, "length_mismatch: declared "+strconv.Itoa(n)+" rows, found "+strconv.Itoa(len(rows)))
	}

	p.b.PushArrayStart()
	for i, row := range rows {
		rowPath := path.Index(i)
		rowForced := forced || p.schema.Matches(rowPath)
		if !rowForced && !p.schema.CouldMatchChildren(rowPath) {
			p.b.PushSkipMarker(estimateRow(row))
			continue
		}
		p.b.PushObjectStart()
		for j, f := range fields {
			if j >= len(row) {
				break
			}
			fieldPath := rowPath.Key(f)
			p.b.PushKey([]byte(f))
			val := strings.TrimSpace(row[j])
			if !rowForced && !p.schema.Matches(fieldPath) {
				p.b.PushSkipMarker(len(val))
				continue
			}
			pushScalar(p.b, val)
		}
		p.b.PushObjectEnd()
	}
	p.b.PushArrayEnd()
	return pos, nil
}

func (p *parser) skipTabularRows(pos, headerIndent, n int) (int, int) {
	if pos >= len(p.lines) || p.lines[pos].indent <= headerIndent {
		return pos, 0
	}
	rowIndent := p.lines[pos].indent
	consumed := 0
	count := 0
	for pos < len(p.lines) && p.lines[pos].indent == rowIndent && count < n {
		consumed += len(p.lines[pos].content)
		pos++
		count++
	}
	return pos, consumed
}

func estimateRow(row []string) int {
	n := 0
	for _, f := range row {
		n += len(f)
	}
	return n
}

// splitDelim splits on delim, honoring quotes so a quoted field may
// contain the delimiter itself.
func splitDelim(line string, delim byte) []string {
	var out []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			inQuote = !inQuote
			cur.WriteByte(c)
		case c == delim && !inQuote:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	out = append(out, cur.String())
	return out
}

func pushScalar(b *tape.Builder, text string) {
	switch text {
	case "true":
		b.PushBool(true)
		return
	case "false":
		b.PushBool(false)
		return
	case "null", "~":
		b.PushNull()
		return
	}
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		b.PushString([]byte(text[1 : len(text)-1]))
		return
	}
	if _, err := strconv.ParseFloat(text, 64); err == nil {
		b.PushNumber([]byte(text))
		return
	}
	b.PushString([]byte(text))
}
