// Package json implements the JSON format adapter (spec §4.6): a
// recursive-descent walk driven by the schema's matches/could_match_children
// decision at every value boundary, using the scanner's skip strategies to
// fast-forward over subtrees the schema has no interest in.
package json

import (
	"github.com/darach/fionn/internal/arena"
	"github.com/darach/fionn/internal/perr"
	"github.com/darach/fionn/internal/scanner"
	"github.com/darach/fionn/schema"
	"github.com/darach/fionn/tape"
)

// Options configures the JSON adapter. The zero value is the default:
// no sidecar, resolve every matched value fully.
type Options struct {
	// Lossless marks the tape as carrying an original-syntax sidecar.
	// The JSON adapter records no sidecar entries: numbers and strings
	// are stored as their exact source text (e.g. "1.0" stays "1.0")
	// whether or not Lossless is set.
	Lossless bool
}

// Parse decodes data into a Tape, skipping any subtree the schema cannot
// match.
func Parse(data []byte, s *schema.Schema, opts Options) (*tape.Tape, error) {
	b := tape.NewBuilder(arena.New(len(data)), "json", len(data))
	if opts.Lossless {
		b.EnableSidecar()
	}
	p := &parser{data: data, b: b, schema: s}
	p.skipWS()
	if err := p.parseValue(schema.Root(), false); err != nil {
		return nil, err
	}
	p.skipWS()
	if p.pos != len(data) {
		return nil, perr.New(perr.ErrMalformed, p.pos, "trailing data after top-level value")
	}
	return b.Build(), nil
}

type parser struct {
	data   []byte
	pos    int
	b      *tape.Builder
	schema *schema.Schema
}

func (p *parser) skipWS() {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

// parseValue is the shared on_value(path) decision point (spec §4.4):
// parse fully if the schema selects this exact path (or an ancestor
// already matched, forcing the whole subtree in), recurse if a
// descendant might still be selected, otherwise skip the whole value
// without tokenizing it. Once forced is true for a value, every
// descendant is forced too — matching a path means the complete value at
// that path, not a schema-filtered fragment of it.
func (p *parser) parseValue(path schema.Path, forced bool) error {
	p.skipWS()
	if p.pos >= len(p.data) {
		return perr.New(perr.ErrTruncated, p.pos, "expected a value")
	}

	if !forced {
		matches := p.schema.Matches(path)
		couldDescend := p.schema.CouldMatchChildren(path)
		if !matches && !couldDescend {
			return p.skip(path)
		}
		forced = matches
	}

	switch p.data[p.pos] {
	case '{':
		return p.parseObject(path, forced)
	case '[':
		return p.parseArray(path, forced)
	case '"':
		return p.parseString()
	case 't', 'f':
		return p.parseBool()
	case 'n':
		return p.parseNull()
	default:
		return p.parseNumber()
	}
}

func (p *parser) skip(path schema.Path) error {
	strat := scanner.Select(p.data[p.pos:], scanner.HintNone)
	end, _, err := strat.SkipValue(p.data, p.pos)
	if err != nil {
		return perr.FromScanner(err, p.pos)
	}
	p.b.PushSkipMarker(end - p.pos)
	p.pos = end
	return nil
}

func (p *parser) parseObject(path schema.Path, forced bool) error {
	p.b.PushObjectStart()
	p.pos++ // consume '{'
	p.skipWS()
	if p.pos < len(p.data) && p.data[p.pos] == '}' {
		p.pos++
		p.b.PushObjectEnd()
		return nil
	}
	for {
		p.skipWS()
		if p.pos >= len(p.data) || p.data[p.pos] != '"' {
			return perr.New(perr.ErrMalformed, p.pos, "expected object key")
		}
		key, err := p.readStringBytes()
		if err != nil {
			return err
		}
		p.b.PushKey(key)
		p.skipWS()
		if p.pos >= len(p.data) || p.data[p.pos] != ':' {
			return perr.New(perr.ErrMalformed, p.pos, "expected ':' after object key")
		}
		p.pos++
		if err := p.parseValue(path.Key(string(key)), forced); err != nil {
			return err
		}
		p.skipWS()
		if p.pos >= len(p.data) {
			return perr.New(perr.ErrTruncated, p.pos, "unterminated object")
		}
		switch p.data[p.pos] {
		case ',':
			p.pos++
			continue
		case '}':
			p.pos++
			p.b.PushObjectEnd()
			return nil
		default:
			return perr.New(perr.ErrMalformed, p.pos, "expected ',' or '}' in object")
		}
	}
}

func (p *parser) parseArray(path schema.Path, forced bool) error {
	p.b.PushArrayStart()
	p.pos++ // consume '['
	p.skipWS()
	if p.pos < len(p.data) && p.data[p.pos] == ']' {
		p.pos++
		p.b.PushArrayEnd()
		return nil
	}
	idx := 0
	for {
		if err := p.parseValue(path.Index(idx), forced); err != nil {
			return err
		}
		idx++
		p.skipWS()
		if p.pos >= len(p.data) {
			return perr.New(perr.ErrTruncated, p.pos, "unterminated array")
		}
		switch p.data[p.pos] {
		case ',':
			p.pos++
			continue
		case ']':
			p.pos++
			p.b.PushArrayEnd()
			return nil
		default:
			return perr.New(perr.ErrMalformed, p.pos, "expected ',' or ']' in array")
		}
	}
}

func (p *parser) parseString() error {
	b, err := p.readStringBytes()
	if err != nil {
		return err
	}
	p.b.PushString(b)
	return nil
}

// readStringBytes reads a JSON string literal starting at the opening
// quote and returns its content bytes (escapes are passed through
// verbatim rather than decoded, per spec §3.6's "strings stay opaque on
// the tape" model; tape.Text returns them still escaped).
func (p *parser) readStringBytes() ([]byte, error) {
	if p.data[p.pos] != '"' {
		return nil, perr.New(perr.ErrMalformed, p.pos, "expected string")
	}
	strat := scanner.Select(p.data[p.pos+1:], scanner.HintStringHeavy)
	end, _, err := strat.SkipString(p.data, p.pos+1)
	if err != nil {
		return nil, perr.FromScanner(err, p.pos)
	}
	content := p.data[p.pos+1 : end-1]
	p.pos = end
	return content, nil
}

func (p *parser) parseBool() error {
	if hasPrefix(p.data[p.pos:], "true") {
		p.b.PushBool(true)
		p.pos += 4
		return nil
	}
	if hasPrefix(p.data[p.pos:], "false") {
		p.b.PushBool(false)
		p.pos += 5
		return nil
	}
	return perr.New(perr.ErrMalformed, p.pos, "invalid literal")
}

func (p *parser) parseNull() error {
	if hasPrefix(p.data[p.pos:], "null") {
		p.b.PushNull()
		p.pos += 4
		return nil
	}
	return perr.New(perr.ErrMalformed, p.pos, "invalid literal")
}

func (p *parser) parseNumber() error {
	start := p.pos
	i := p.pos
	if i < len(p.data) && p.data[i] == '-' {
		i++
	}
	for i < len(p.data) && isDigit(p.data[i]) {
		i++
	}
	if i < len(p.data) && p.data[i] == '.' {
		i++
		for i < len(p.data) && isDigit(p.data[i]) {
			i++
		}
	}
	if i < len(p.data) && (p.data[i] == 'e' || p.data[i] == 'E') {
		i++
		if i < len(p.data) && (p.data[i] == '+' || p.data[i] == '-') {
			i++
		}
		for i < len(p.data) && isDigit(p.data[i]) {
			i++
		}
	}
	if i == start {
		return perr.New(perr.ErrMalformed, p.pos, "invalid number")
	}
	p.b.PushNumber(p.data[start:i])
	p.pos = i
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func hasPrefix(data []byte, s string) bool {
	if len(data) < len(s) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if data[i] != s[i] {
			return false
		}
	}
	return true
}
