// Package toml implements the TOML format adapter (spec §4.6). TOML
// tables can be declared out of nesting order ("[a.c]" before "[a.b]" is
// legal), which the tape's single-pass, append-only Builder cannot
// represent directly — so this adapter buffers the document into an
// ordered in-memory tree first, then emits the tape in a second pass
// that applies the usual schema-driven on_value decision. The same tree
// is where a dotted key and a later table header for the same path are
// merged or reported as a conflict.
package toml

import (
	"strconv"
	"strings"

	"github.com/darach/fionn/internal/arena"
	"github.com/darach/fionn/internal/perr"
	"github.com/darach/fionn/schema"
	"github.com/darach/fionn/tape"
)

// Options configures the TOML adapter.
type Options struct {
	// Lossless enables an original-syntax sidecar recording each dotted
	// key's full surface form ("a.b.c") and which string scalars were
	// originally triple-quoted.
	Lossless bool
}

type valueKind uint8

const (
	vkTable valueKind = iota
	vkArray
	vkScalar
)

type value struct {
	kind         valueKind
	entries      []entry  // vkTable
	items        []*value // vkArray
	text         string   // vkScalar: raw source text
	isTable      bool     // vkArray of tables (array-of-tables) vs plain array
	explicit     bool     // vkTable: already declared by a "[...]" header
	dottedKey    string   // non-empty: this leaf was declared via "a.b.c = v", the full original key text
	tripleQuoted bool     // vkScalar: original text was a """ or ''' triple-quoted string
}

type entry struct {
	key string
	val *value
}

func newTable() *value { return &value{kind: vkTable} }

func (v *value) get(key string) *value {
	for _, e := range v.entries {
		if e.key == key {
			return e.val
		}
	}
	return nil
}

func (v *value) set(key string, child *value) {
	for i, e := range v.entries {
		if e.key == key {
			v.entries[i].val = child
			return
		}
	}
	v.entries = append(v.entries, entry{key: key, val: child})
}

// Parse decodes data into a Tape.
func Parse(data []byte, s *schema.Schema, opts Options) (*tape.Tape, error) {
	root, err := parseDocument(string(data))
	if err != nil {
		return nil, err
	}
	b := tape.NewBuilder(arena.New(len(data)), "toml", len(data))
	if opts.Lossless {
		b.EnableSidecar()
	}
	if err := emit(b, root, schema.Root(), false, s); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

func parseDocument(src string) (*value, error) {
	root := newTable()
	current := root

	lines := splitTOMLLines(src)
	for _, raw := range lines {
		line := strings.TrimSpace(stripTOMLComment(raw))
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "[[") && strings.HasSuffix(line, "]]"):
			path := strings.TrimSpace(line[2 : len(line)-2])
			tbl, err := navigateArrayTable(root, splitDotted(path))
			if err != nil {
				return nil, err
			}
			current = tbl
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			path := strings.TrimSpace(line[1 : len(line)-1])
			tbl, err := navigateTable(root, splitDotted(path))
			if err != nil {
				return nil, err
			}
			current = tbl
		default:
			key, rest, ok := strings.Cut(line, "=")
			if !ok {
				return nil, perr.New(perr.ErrMalformed, 0, "expected 'key = value'")
			}
			trimmedKey := strings.TrimSpace(key)
			segs := splitDotted(trimmedKey)
			v, err := parseValueText(strings.TrimSpace(rest))
			if err != nil {
				return nil, err
			}
			if len(segs) > 1 {
				v.dottedKey = trimmedKey
			}
			target := current
			for _, seg := range segs[:len(segs)-1] {
				child := target.get(seg)
				if child == nil {
					child = newTable()
					target.set(seg, child)
				}
				target = child
			}
			target.set(segs[len(segs)-1], v)
		}
	}
	return root, nil
}

// navigateTable creates (or reuses) nested tables along segs and returns
// the final one, the target for subsequent key=value lines. Only the
// leaf table is marked explicit: a "[a.b]" header declares "b", not the
// intermediate "a" it walks through to get there.
func navigateTable(root *value, segs []string) (*value, error) {
	cur := root
	for i, seg := range segs {
		child := cur.get(seg)
		if child == nil {
			child = newTable()
			cur.set(seg, child)
		} else if child.kind == vkArray && child.isTable && len(child.items) > 0 {
			child = child.items[len(child.items)-1]
		} else if child.kind != vkTable {
			return nil, perr.New(perr.ErrMalformed, 0, "table header conflicts with an existing non-table key: "+seg)
		}
		cur = child
		if i == len(segs)-1 {
			if cur.explicit {
				return nil, perr.New(perr.ErrMalformed, 0, "table redefined: "+seg)
			}
			cur.explicit = true
		}
	}
	return cur, nil
}

// navigateArrayTable walks segs[:len-1] as plain tables, then appends a
// new table entry to the array named by the last segment.
func navigateArrayTable(root *value, segs []string) (*value, error) {
	cur := root
	for _, seg := range segs[:len(segs)-1] {
		child := cur.get(seg)
		if child == nil {
			child = newTable()
			cur.set(seg, child)
		} else if child.kind == vkArray && child.isTable && len(child.items) > 0 {
			child = child.items[len(child.items)-1]
		}
		cur = child
	}
	last := segs[len(segs)-1]
	arr := cur.get(last)
	if arr == nil || arr.kind != vkArray {
		arr = &value{kind: vkArray, isTable: true}
		cur.set(last, arr)
	}
	newTbl := newTable()
	arr.items = append(arr.items, newTbl)
	return newTbl, nil
}

func splitDotted(s string) []string {
	var out []string
	depth := 0
	inQuote := byte(0)
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			}
		case c == '"' || c == '\'':
			inQuote = c
		case c == '.' && depth == 0:
			out = append(out, strings.Trim(strings.TrimSpace(s[start:i]), `"'`))
			start = i + 1
		}
	}
	out = append(out, strings.Trim(strings.TrimSpace(s[start:]), `"'`))
	return out
}

func stripTOMLComment(line string) string {
	inQuote := byte(0)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuote != 0:
			if c == inQuote && (c != '"' || i == 0 || line[i-1] != '\\') {
				inQuote = 0
			}
		case c == '"' || c == '\'':
			inQuote = c
		case c == '#':
			return line[:i]
		}
	}
	return line
}

// splitTOMLLines keeps multi-line triple-quoted strings ("""..."""
// or '''...''') intact as a single logical line.
func splitTOMLLines(src string) []string {
	raw := strings.Split(src, "\n")
	var out []string
	for i := 0; i < len(raw); i++ {
		line := raw[i]
		if openTriple := findOpenTriple(line); openTriple != "" && !closesTriple(line, openTriple) {
			buf := line
			for i+1 < len(raw) {
				i++
				buf += "\n" + raw[i]
				if strings.Contains(raw[i], openTriple) {
					break
				}
			}
			out = append(out, buf)
			continue
		}
		out = append(out, line)
	}
	return out
}

func findOpenTriple(line string) string {
	if strings.Count(line, `"""`)%2 == 1 {
		return `"""`
	}
	if strings.Count(line, `'''`)%2 == 1 {
		return `'''`
	}
	return ""
}

func closesTriple(line, triple string) bool {
	return strings.Count(line, triple) >= 2
}

func parseValueText(text string) (*value, error) {
	text = strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(text, "["):
		return parseArrayText(text)
	case strings.HasPrefix(text, "{"):
		return parseInlineTableText(text)
	default:
		triple := strings.HasPrefix(text, `"""`) || strings.HasPrefix(text, "'''")
		return &value{kind: vkScalar, text: text, tripleQuoted: triple}, nil
	}
}

func parseArrayText(text string) (*value, error) {
	inner, err := matchedInner(text, '[', ']')
	if err != nil {
		return nil, err
	}
	parts := splitTopLevel(inner, ',')
	v := &value{kind: vkArray}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		item, err := parseValueText(part)
		if err != nil {
			return nil, err
		}
		v.items = append(v.items, item)
	}
	return v, nil
}

func parseInlineTableText(text string) (*value, error) {
	inner, err := matchedInner(text, '{', '}')
	if err != nil {
		return nil, err
	}
	v := newTable()
	for _, part := range splitTopLevel(inner, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, rest, ok := strings.Cut(part, "=")
		if !ok {
			return nil, perr.New(perr.ErrMalformed, 0, "inline table entry missing '='")
		}
		item, err := parseValueText(strings.TrimSpace(rest))
		if err != nil {
			return nil, err
		}
		v.set(strings.Trim(strings.TrimSpace(k), `"'`), item)
	}
	return v, nil
}

func matchedInner(text string, open, close byte) (string, error) {
	if len(text) < 2 || text[0] != open || text[len(text)-1] != close {
		return "", perr.New(perr.ErrMalformed, 0, "unbalanced collection")
	}
	return text[1 : len(text)-1], nil
}

func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth := 0
	inQuote := byte(0)
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			}
		case c == '"' || c == '\'':
			inQuote = c
		case c == '[' || c == '{':
			depth++
		case c == ']' || c == '}':
			depth--
		case c == sep && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// emit walks the buffered tree, applying the schema's on_value decision
// at every node exactly as the byte-driven adapters do.
func emit(b *tape.Builder, v *value, path schema.Path, forced bool, s *schema.Schema) error {
	if !forced {
		matches := s.Matches(path)
		could := s.CouldMatchChildren(path)
		if !matches && !could {
			b.PushSkipMarker(estimateSize(v))
			return nil
		}
		forced = matches
	}

	switch v.kind {
	case vkTable:
		b.PushObjectStart()
		for _, e := range v.entries {
			b.PushKey([]byte(e.key))
			valueIdx := b.Len()
			if err := emit(b, e.val, path.Key(e.key), forced, s); err != nil {
				return err
			}
			if e.val.dottedKey != "" {
				b.PushSidecar(valueIdx, tape.TOMLDottedKeyRecord{Full: e.val.dottedKey})
			}
		}
		b.PushObjectEnd()
	case vkArray:
		b.PushArrayStart()
		for i, it := range v.items {
			if err := emit(b, it, path.Index(i), forced, s); err != nil {
				return err
			}
		}
		b.PushArrayEnd()
	case vkScalar:
		idx := b.Len()
		pushScalar(b, v.text)
		if v.tripleQuoted {
			b.PushSidecar(idx, tape.TOMLTripleQuotedRecord{})
		}
	}
	return nil
}

func estimateSize(v *value) int {
	switch v.kind {
	case vkScalar:
		return len(v.text)
	case vkTable:
		n := 0
		for _, e := range v.entries {
			n += len(e.key) + estimateSize(e.val)
		}
		return n
	case vkArray:
		n := 0
		for _, it := range v.items {
			n += estimateSize(it)
		}
		return n
	}
	return 0
}

func pushScalar(b *tape.Builder, text string) {
	switch text {
	case "true":
		b.PushBool(true)
		return
	case "false":
		b.PushBool(false)
		return
	}
	if len(text) >= 2 && (text[0] == '"' || text[0] == '\'') {
		b.PushString([]byte(unquoteScalar(text)))
		return
	}
	if _, err := strconv.ParseFloat(strings.ReplaceAll(text, "_", ""), 64); err == nil {
		b.PushNumber([]byte(text))
		return
	}
	// RFC3339 datetimes and anything else unrecognized are kept as
	// verbatim text, matching the tape's opaque-scalar model.
	b.PushString([]byte(text))
}

func unquoteScalar(text string) string {
	if strings.HasPrefix(text, `"""`) && strings.HasSuffix(text, `"""`) && len(text) >= 6 {
		return strings.TrimPrefix(strings.TrimSuffix(text, `"""`), `"""`)
	}
	if strings.HasPrefix(text, "'''") && strings.HasSuffix(text, "'''") && len(text) >= 6 {
		return strings.TrimPrefix(strings.TrimSuffix(text, "'''"), "'''")
	}
	if len(text) >= 2 {
		return text[1 : len(text)-1]
	}
	return text
}
