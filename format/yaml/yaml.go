// Package yaml implements the YAML format adapter (spec §4.6): an
// indentation-driven block parser covering mappings, sequences, flow
// collections, scalars, anchors, and aliases, applying the same
// schema-driven on_value decision the other adapters use.
package yaml

import (
	"strconv"
	"strings"

	"github.com/darach/fionn/internal/arena"
	"github.com/darach/fionn/internal/perr"
	"github.com/darach/fionn/schema"
	"github.com/darach/fionn/tape"
)

// AliasStrategy controls how a "*name" alias is represented on the tape.
type AliasStrategy uint8

const (
	// AliasResolve re-parses the anchor's original source text in
	// place of the alias, inlining a full copy of the anchored value.
	// Only anchors on inline values (scalars and flow collections) are
	// resolvable; an alias to an anchor on a block mapping or sequence
	// ("key: &name" followed by indented lines) is reported as an
	// undefined anchor.
	AliasResolve AliasStrategy = iota
	// AliasPreserve emits a YAMLAlias marker node instead of resolving,
	// leaving resolution to the caller.
	AliasPreserve
)

// Options configures the YAML adapter.
type Options struct {
	Alias AliasStrategy
	// Lossless enables an original-syntax sidecar recording anchor
	// names, alias targets, and flow-vs-block style.
	Lossless bool
}

type logicalLine struct {
	indent  int
	content string
	offset  int // byte offset of the first non-space character
}

// Parse decodes a single YAML document into a Tape. Lossless fidelity
// combined with AliasResolve is rejected: resolving an alias inlines a
// copy of its anchor's value, discarding the alias/anchor relationship
// that a lossless sidecar promises to preserve. A caller wanting both
// byte-for-byte fidelity and alias handling must ask for AliasPreserve.
func Parse(data []byte, s *schema.Schema, opts Options) (*tape.Tape, error) {
	if opts.Lossless && opts.Alias == AliasResolve {
		return nil, perr.New(perr.ErrLossRejected, 0, "Lossless requires AliasPreserve: resolving aliases discards the anchor/alias relationship")
	}
	lines, err := tokenizeLines(data)
	if err != nil {
		return nil, err
	}
	b := tape.NewBuilder(arena.New(len(data)), "yaml", len(data))
	if opts.Lossless {
		b.EnableSidecar()
	}
	p := &parser{lines: lines, b: b, schema: s, opts: opts, anchors: make(map[string]string)}

	if len(lines) == 0 {
		b.PushNull()
		return b.Build(), nil
	}
	if _, err := p.parseBlock(0, lines[0].indent, schema.Root(), false); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

type parser struct {
	lines   []logicalLine
	b       *tape.Builder
	schema  *schema.Schema
	opts    Options
	anchors map[string]string // anchor name -> raw YAML source for the anchored node
}

// tokenizeLines strips comments and document markers, records each
// line's indentation, and drops blank lines. A tab anywhere in a line's
// leading whitespace is rejected: YAML block indentation is spaces only
// (spec §4.6.3).
func tokenizeLines(data []byte) ([]logicalLine, error) {
	var out []logicalLine
	offset := 0
	for _, raw := range strings.Split(string(data), "\n") {
		lineStart := offset
		offset += len(raw) + 1
		stripped := stripComment(raw)
		trimmed := strings.TrimRight(stripped, " \t\r")
		leading := 0
		for leading < len(trimmed) && (trimmed[leading] == ' ' || trimmed[leading] == '\t') {
			if trimmed[leading] == '\t' {
				return nil, perr.New(perr.ErrMalformed, lineStart+leading, "tab in leading indentation")
			}
			leading++
		}
		content := trimmed[leading:]
		if content == "" || content == "---" || content == "..." {
			continue
		}
		indent := leading
		out = append(out, logicalLine{indent: indent, content: content, offset: lineStart + indent})
	}
	return out, nil
}

func stripComment(line string) string {
	inSingle, inDouble := false, false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '#':
			if !inSingle && !inDouble && (i == 0 || line[i-1] == ' ' || line[i-1] == '\t') {
				return line[:i]
			}
		}
	}
	return line
}

// parseBlock parses a mapping or sequence whose entries all sit at the
// indent of lines[pos], which must be at least indent (otherwise the
// value is null), starting from lines[pos]. forced propagates a schema
// match from an ancestor: once true, every descendant is included
// unconditionally (spec §4.4's whole-subtree-on-match semantics).
func (p *parser) parseBlock(pos, indent int, path schema.Path, forced bool) (int, error) {
	if pos >= len(p.lines) {
		p.b.PushNull()
		return pos, nil
	}
	line := p.lines[pos]
	if line.indent < indent {
		p.b.PushNull()
		return pos, nil
	}
	indent = line.indent
	if strings.HasPrefix(line.content, "- ") || line.content == "-" {
		return p.parseSequence(pos, indent, path, forced)
	}
	if isMappingKeyLine(line.content) {
		return p.parseMapping(pos, indent, path, forced)
	}
	return p.parseScalarLine(pos, path, forced)
}

func (p *parser) parseMapping(pos, indent int, path schema.Path, forced bool) (int, error) {
	p.b.PushObjectStart()
	next, err := p.parseMappingEntries(pos, indent, path, forced)
	if err != nil {
		return 0, err
	}
	p.b.PushObjectEnd()
	return next, nil
}

// parseMappingEntries consumes every "key: value" line at exactly indent
// starting from pos, pushing Key/value pairs without the surrounding
// ObjectStart/End — shared between a normal block mapping and a mapping
// whose first entry rides on the same line as a sequence dash ("- k: v").
func (p *parser) parseMappingEntries(pos, indent int, path schema.Path, forced bool) (int, error) {
	for pos < len(p.lines) && p.lines[pos].indent == indent && isMappingKeyLine(p.lines[pos].content) {
		line := p.lines[pos]
		key, rest, anchor, err := splitKey(line.content)
		if err != nil {
			return 0, perr.New(perr.ErrMalformed, line.offset, err.Error())
		}
		p.b.PushKey([]byte(key))
		childPath := path.Key(key)
		// "key: &name" with nothing after the anchor anchors the block
		// value on the following lines.
		if t := strings.TrimSpace(rest); strings.HasPrefix(t, "&") && !strings.ContainsAny(t, " \t") {
			anchor, rest = t[1:], ""
		}

		childForced := forced
		if !childForced {
			matches := p.schema.Matches(childPath)
			could := p.schema.CouldMatchChildren(childPath)
			if !matches && !could {
				end := p.skipBlock(pos+1, indent+1)
				p.b.PushSkipMarker(p.byteSpan(pos, end))
				pos = end
				continue
			}
			childForced = matches
		}

		if rest == "" {
			if anchor != "" {
				p.b.PushSidecar(p.b.Len(), tape.YAMLAnchorRecord{Name: anchor})
			}
			next, err := p.parseBlock(pos+1, indent+1, childPath, childForced)
			if err != nil {
				return 0, err
			}
			pos = next
			continue
		}
		if err := p.parseInline(rest, anchor, childPath, childForced, nil); err != nil {
			return 0, err
		}
		pos++
	}
	return pos, nil
}

func (p *parser) parseSequence(pos, indent int, path schema.Path, forced bool) (int, error) {
	p.b.PushArrayStart()
	idx := 0
	for pos < len(p.lines) && p.lines[pos].indent == indent &&
		(strings.HasPrefix(p.lines[pos].content, "- ") || p.lines[pos].content == "-") {
		line := p.lines[pos]
		rest := strings.TrimPrefix(line.content, "-")
		rest = strings.TrimLeft(rest, " ")
		itemPath := path.Index(idx)
		idx++

		itemForced := forced
		if !itemForced {
			matches := p.schema.Matches(itemPath)
			could := p.schema.CouldMatchChildren(itemPath)
			if !matches && !could {
				end := p.skipBlock(pos+1, indent+2)
				p.b.PushSkipMarker(p.byteSpan(pos, end))
				pos = end
				continue
			}
			itemForced = matches
		}

		if rest == "" {
			next, err := p.parseBlock(pos+1, indent+1, itemPath, itemForced)
			if err != nil {
				return 0, err
			}
			pos = next
			continue
		}
		// "- key: value" starts a mapping whose first entry rides on
		// the dash line itself; later entries are ordinary lines at
		// indent+2.
		if isMappingKeyLine(rest) {
			key, kvRest, anchor, err := splitKey(rest)
			if err != nil {
				return 0, perr.New(perr.ErrMalformed, line.offset, err.Error())
			}
			p.b.PushObjectStart()
			p.b.PushKey([]byte(key))
			firstChildPath := itemPath.Key(key)
			firstForced := itemForced
			if !firstForced {
				firstForced = p.schema.Matches(firstChildPath)
			}
			if kvRest == "" {
				next, err := p.parseBlock(pos+1, indent+2, firstChildPath, firstForced)
				if err != nil {
					return 0, err
				}
				pos = next
			} else {
				if err := p.parseInline(kvRest, anchor, firstChildPath, firstForced, nil); err != nil {
					return 0, err
				}
				pos++
			}
			next, err := p.parseMappingEntries(pos, indent+2, itemPath, itemForced)
			if err != nil {
				return 0, err
			}
			p.b.PushObjectEnd()
			pos = next
			continue
		}
		anchor := ""
		if err := p.parseInline(rest, anchor, itemPath, itemForced, nil); err != nil {
			return 0, err
		}
		pos++
	}
	p.b.PushArrayEnd()
	return pos, nil
}

func (p *parser) parseScalarLine(pos int, path schema.Path, forced bool) (int, error) {
	line := p.lines[pos]
	if err := p.parseInline(line.content, "", path, forced, nil); err != nil {
		return 0, err
	}
	return pos + 1, nil
}

// parseInline handles the value portion of a "key: value" or "- value"
// line: a scalar, a flow collection, an alias, or an anchored value.
// The anchor/alias name itself is preserved in the sidecar rather than
// as a main-tape sibling, so it never displaces the Key/value adjacency
// spec §3.2 requires (a separate YAMLAnchor node ahead of the real
// value would make the value two slots away from its Key, not one).
func (p *parser) parseInline(text, anchorFromKey string, path schema.Path, forced bool, visiting map[string]bool) error {
	text = strings.TrimSpace(text)
	anchor := anchorFromKey
	if strings.HasPrefix(text, "&") {
		fields := strings.SplitN(text, " ", 2)
		anchor = strings.TrimPrefix(fields[0], "&")
		if len(fields) > 1 {
			text = strings.TrimSpace(fields[1])
		} else {
			text = ""
		}
	}
	if anchor != "" {
		p.anchors[anchor] = text
	}

	valueIdx := p.b.Len()
	if anchor != "" {
		p.b.PushSidecar(valueIdx, tape.YAMLAnchorRecord{Name: anchor})
	}

	if strings.HasPrefix(text, "*") {
		name := strings.TrimPrefix(text, "*")
		if p.opts.Alias == AliasPreserve {
			p.b.PushMarker(tape.YAMLAlias, []byte(name))
			p.b.PushSidecar(valueIdx, tape.YAMLAliasRecord{Target: name})
			return nil
		}
		if visiting[name] {
			return perr.New(perr.ErrMalformed, 0, "cyclic anchor reference: "+name)
		}
		src, ok := p.anchors[name]
		if !ok {
			return perr.New(perr.ErrMalformed, 0, "alias to undefined anchor "+name)
		}
		next := make(map[string]bool, len(visiting)+1)
		for k := range visiting {
			next[k] = true
		}
		next[name] = true
		return p.parseInline(src, "", path, forced, next)
	}

	if strings.HasPrefix(text, "[") || strings.HasPrefix(text, "{") {
		return p.parseFlow(text, path, forced)
	}

	pushScalar(p.b, text)
	return nil
}

// parseFlow parses a single-line flow collection, [a, b] or {k: v, ...}.
// Nested flow collections are supported; block collections are not valid
// inside flow context per the YAML spec, so this never recurses back
// into parseBlock.
func (p *parser) parseFlow(text string, path schema.Path, forced bool) error {
	items, isMap, err := splitFlow(text)
	if err != nil {
		return err
	}
	containerIdx := p.b.Len()
	p.b.PushSidecar(containerIdx, tape.YAMLFlowStyleRecord{})
	if isMap {
		p.b.PushObjectStart()
		for _, kv := range items {
			k, v, ok := strings.Cut(kv, ":")
			if !ok {
				return perr.New(perr.ErrMalformed, 0, "flow mapping entry missing ':'")
			}
			key := strings.TrimSpace(unquote(strings.TrimSpace(k)))
			p.b.PushKey([]byte(key))
			if err := p.parseInline(strings.TrimSpace(v), "", path.Key(key), forced, nil); err != nil {
				return err
			}
		}
		p.b.PushObjectEnd()
		return nil
	}
	p.b.PushArrayStart()
	for i, it := range items {
		if err := p.parseInline(strings.TrimSpace(it), "", path.Index(i), forced, nil); err != nil {
			return err
		}
	}
	p.b.PushArrayEnd()
	return nil
}

// skipBlock returns the position of the first line at indent < minIndent
// (i.e. one past the skipped block's last line).
func (p *parser) skipBlock(pos, minIndent int) int {
	for pos < len(p.lines) && p.lines[pos].indent >= minIndent {
		pos++
	}
	return pos
}

func (p *parser) byteSpan(fromLine, toLine int) int {
	if toLine >= len(p.lines) {
		return len(p.lines[fromLine].content) * (toLine - fromLine)
	}
	return p.lines[toLine].offset - p.lines[fromLine].offset
}

func isMappingKeyLine(content string) bool {
	if strings.HasPrefix(content, "\"") || strings.HasPrefix(content, "'") {
		return strings.Contains(content, "\": ") || strings.Contains(content, "': ") ||
			strings.HasSuffix(content, "\":") || strings.HasSuffix(content, "':")
	}
	colon := strings.Index(content, ":")
	if colon < 0 {
		return false
	}
	if colon == len(content)-1 {
		return true
	}
	return content[colon+1] == ' '
}

func splitKey(content string) (key, rest, anchor string, err error) {
	colon := strings.Index(content, ":")
	if colon < 0 {
		return "", "", "", errUnexpectedLine
	}
	key = unquote(strings.TrimSpace(content[:colon]))
	rest = strings.TrimSpace(content[colon+1:])
	return key, rest, "", nil
}

var errUnexpectedLine = perr.New(perr.ErrMalformed, 0, "expected 'key: value'")

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

func splitFlow(text string) (items []string, isMap bool, err error) {
	if len(text) < 2 {
		return nil, false, perr.New(perr.ErrMalformed, 0, "empty flow collection")
	}
	isMap = text[0] == '{'
	inner := strings.TrimSpace(text[1 : len(text)-1])
	if inner == "" {
		return nil, isMap, nil
	}
	depth := 0
	inQuote := byte(0)
	start := 0
	for i := 0; i < len(inner); i++ {
		c := inner[i]
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
		case c == ',' && depth == 0:
			items = append(items, inner[start:i])
			start = i + 1
		}
	}
	items = append(items, inner[start:])
	return items, isMap, nil
}

func pushScalar(b *tape.Builder, text string) {
	switch text {
	case "", "~", "null", "Null", "NULL":
		b.PushNull()
		return
	case "true", "True", "TRUE":
		b.PushBool(true)
		return
	case "false", "False", "FALSE":
		b.PushBool(false)
		return
	}
	if _, err := strconv.ParseFloat(text, 64); err == nil {
		b.PushNumber([]byte(text))
		return
	}
	b.PushString([]byte(unquote(text)))
}
