// Package schema implements the path-pattern compiler and matcher (C4):
// a caller-supplied set of path patterns compiled into exact-hash lookups
// and wildcard byte-code, exposing the matches/could_match_children
// contract format adapters consult at every value boundary (spec §4.4).
package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/darach/fionn/internal/perr"
)

// segmentKind classifies one normalized path segment.
type segmentKind uint8

const (
	segLiteral segmentKind = iota
	segIndex
	segWildcard      // *
	segIndexWildcard // [*]
	segRecursive     // **
)

type segment struct {
	kind    segmentKind
	literal string
	index   int
}

func (s segment) canonical() string {
	switch s.kind {
	case segLiteral:
		return s.literal
	case segIndex:
		return "#" + strconv.Itoa(s.index)
	case segWildcard:
		return "*"
	case segIndexWildcard:
		return "[*]"
	case segRecursive:
		return "**"
	}
	return ""
}

func (s segment) hasWildcard() bool {
	return s.kind == segWildcard || s.kind == segIndexWildcard || s.kind == segRecursive
}

// Path is a caller-built, immutable-by-convention sequence of segments
// representing the location of a value being parsed. Format adapters grow
// one by pushing a key or index per level and popping on the way back out
// (spec §4.6's on_value(path) decision point).
type Path struct {
	segs []segment
}

// Root returns the empty path ("$").
func Root() Path { return Path{} }

// Key returns a new path with a literal object-key segment appended.
func (p Path) Key(name string) Path {
	return Path{segs: append(append([]segment{}, p.segs...), segment{kind: segLiteral, literal: name})}
}

// Index returns a new path with an array-index segment appended.
func (p Path) Index(i int) Path {
	return Path{segs: append(append([]segment{}, p.segs...), segment{kind: segIndex, index: i})}
}

// Depth reports the number of segments in the path.
func (p Path) Depth() int { return len(p.segs) }

// Segment is the exported, read-only view of one concrete path segment —
// the kind a caller-built Path can actually contain (a literal key or an
// array index; patterns alone may carry wildcards).
type Segment struct {
	IsIndex bool
	Name    string
	Index   int
}

// Segments returns p's segments in root-to-leaf order for callers (such
// as tape.Tape.ResolvePath) that need to walk a concrete path rather than
// match it against compiled patterns.
func (p Path) Segments() []Segment {
	out := make([]Segment, len(p.segs))
	for i, s := range p.segs {
		out[i] = Segment{IsIndex: s.kind == segIndex, Name: s.literal, Index: s.index}
	}
	return out
}

// String renders the path in the surface pattern syntax, e.g. "$.a[2].b".
func (p Path) String() string {
	var b strings.Builder
	b.WriteByte('$')
	for _, s := range p.segs {
		switch s.kind {
		case segIndex:
			fmt.Fprintf(&b, "[%d]", s.index)
		default:
			b.WriteByte('.')
			b.WriteString(s.literal)
		}
	}
	return b.String()
}

func (p Path) canonicalKey() string {
	parts := make([]string, len(p.segs))
	for i, s := range p.segs {
		parts[i] = s.canonical()
	}
	return strings.Join(parts, "\x00")
}

// pattern is a compiled path pattern: a segment sequence plus whether any
// segment carries a wildcard.
type pattern struct {
	raw        string
	segs       []segment
	isWildcard bool
}

// parsePattern tokenizes the surface syntax from spec §4.4: "$" root,
// "." or "[...]" segment separators, "name" literals, "[n]" indices, "*"
// single wildcard, "**" recursive wildcard, "[*]" array wildcard.
func parsePattern(raw string) (pattern, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	pat := pattern{raw: raw}

	i := 0
	for i < len(s) {
		switch s[i] {
		case '.':
			i++
			continue
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return pattern{}, &FormatError{Pattern: raw, Detail: "unterminated '['"}
			}
			inner := s[i+1 : i+end]
			i += end + 1
			if inner == "*" {
				pat.segs = append(pat.segs, segment{kind: segIndexWildcard})
				pat.isWildcard = true
				continue
			}
			n, err := strconv.Atoi(inner)
			if err != nil || n < 0 {
				return pattern{}, &FormatError{Pattern: raw, Detail: "invalid array index [" + inner + "]"}
			}
			pat.segs = append(pat.segs, segment{kind: segIndex, index: n})
		default:
			end := i
			for end < len(s) && s[end] != '.' && s[end] != '[' {
				end++
			}
			name := s[i:end]
			i = end
			switch name {
			case "":
				continue
			case "**":
				pat.segs = append(pat.segs, segment{kind: segRecursive})
				pat.isWildcard = true
			case "*":
				pat.segs = append(pat.segs, segment{kind: segWildcard})
				pat.isWildcard = true
			default:
				pat.segs = append(pat.segs, segment{kind: segLiteral, literal: name})
			}
		}
	}
	return pat, nil
}

// FormatError reports that a caller-supplied pattern failed to compile
// (spec §7 SchemaFormat).
type FormatError struct {
	Pattern string
	Detail  string
}

func (e *FormatError) Error() string {
	return "schema: pattern " + strconv.Quote(e.Pattern) + ": " + e.Detail
}

// Unwrap lets errors.Is(err, perr.ErrSchemaFormat) recognize a
// FormatError without callers needing to know the concrete type.
func (e *FormatError) Unwrap() error { return perr.ErrSchemaFormat }
