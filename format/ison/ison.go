// Package ison implements the ISON format adapter (spec §4.6.6,
// SPEC_FULL.md §4): block-style records with a typed schema line driving
// value conversion, and a three-way reference syntax disambiguated by
// the case of the reference's first segment. The five behaviors not
// spelled out in spec.md's terse ISON prose (block-header prefix
// stripping, mid-scan '#' comment truncation, the "---" summary marker,
// the case-based reference disambiguation, and quote-aware row
// splitting) are grounded on `original_source/crates/fionn-simd/src/
// formats/ison.rs`, the only surviving original-source file for a
// format adapter.
package ison

import (
	"strconv"
	"strings"

	"github.com/darach/fionn/internal/arena"
	"github.com/darach/fionn/internal/perr"
	"github.com/darach/fionn/schema"
	"github.com/darach/fionn/tape"
)

// FieldType is the declared type of one column in a block's schema line.
type FieldType uint8

const (
	TypeString FieldType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeComputed
	// TypeReference is the default interpretation for any type token
	// that isn't one of the recognized scalar keywords or "computed" —
	// it lets a schema line declare a typed foreign-key column (e.g.
	// "owner:user") without a registry of valid type names.
	TypeReference
)

func parseFieldType(token string) FieldType {
	switch strings.ToLower(token) {
	case "string", "str":
		return TypeString
	case "int", "integer":
		return TypeInt
	case "float", "number", "double":
		return TypeFloat
	case "bool", "boolean":
		return TypeBool
	case "computed":
		return TypeComputed
	default:
		return TypeReference
	}
}

type fieldDecl struct {
	name string
	typ  FieldType
}

// BlockKind distinguishes a "table." header from an "object." header.
type BlockKind uint8

const (
	BlockTable BlockKind = iota
	BlockObject
)

type block struct {
	name   string
	kind   BlockKind
	fields []fieldDecl
	rows   [][]string
}

// ReferenceStrategy controls how a row field carrying ISON reference
// syntax (":id", ":type:id", ":RELATIONSHIP:id") is represented on the
// tape.
type ReferenceStrategy uint8

const (
	// ReferenceDefer leaves an ISONReference marker carrying the raw
	// reference text for the caller to resolve later (default).
	ReferenceDefer ReferenceStrategy = iota
	// ReferenceResolve inlines the referenced row — looked up by id in
	// the block named by the reference's type segment — as a nested
	// object in place of the reference. Resolution is one level deep:
	// a field inside the resolved row that is itself a reference stays
	// a marker, avoiding unbounded or cyclic expansion.
	ReferenceResolve
)

// Options configures the ISON adapter.
type Options struct {
	Strategy ReferenceStrategy
	// Lossless enables an original-syntax sidecar recording each
	// unresolved reference's kind (simple, typed, or relationship).
	Lossless bool
}

// Parse decodes a block-style ISON document into a Tape shaped as an
// object keyed by block name, each block holding its header marker and
// its rows array.
func Parse(data []byte, s *schema.Schema, opts Options) (*tape.Tape, error) {
	blocks, err := parseBlocks(string(data))
	if err != nil {
		return nil, err
	}
	idx := buildIndex(blocks)
	b := tape.NewBuilder(arena.New(len(data)), "ison", len(data))
	if opts.Lossless {
		b.EnableSidecar()
	}
	b.PushObjectStart()
	for _, blk := range blocks {
		blockPath := schema.Root().Key(blk.name)
		matches := s.Matches(blockPath)
		could := s.CouldMatchChildren(blockPath)
		if !matches && !could {
			b.PushKey([]byte(blk.name))
			b.PushSkipMarker(estimateBlockSize(blk))
			continue
		}
		b.PushKey([]byte(blk.name))
		if err := emitBlock(b, blk, blockPath, matches, s, idx, opts.Strategy); err != nil {
			return nil, err
		}
	}
	b.PushObjectEnd()
	return b.Build(), nil
}

// refIndex maps a block name to its field names and its rows keyed by
// the row's first (conventionally the id) field value, for one-level
// reference resolution.
type refIndex map[string]indexedBlock

type indexedBlock struct {
	fields []fieldDecl
	byID   map[string][]string
}

func buildIndex(blocks []block) refIndex {
	idx := make(refIndex, len(blocks))
	for _, blk := range blocks {
		byID := make(map[string][]string, len(blk.rows))
		for _, row := range blk.rows {
			if len(row) == 0 {
				continue
			}
			byID[row[0]] = row
		}
		idx[blk.name] = indexedBlock{fields: blk.fields, byID: byID}
	}
	return idx
}

func emitBlock(b *tape.Builder, blk block, path schema.Path, forced bool, s *schema.Schema, idx refIndex, strategy ReferenceStrategy) error {
	b.PushObjectStart()

	b.PushKey([]byte("header"))
	b.PushMarker(tape.ISONBlockHeader, []byte(encodeBlockHeader(blk.kind, blk.name)))

	b.PushKey([]byte("rows"))
	rowsPath := path.Key("rows")
	rowsMatches := forced || s.Matches(rowsPath)
	rowsCould := s.CouldMatchChildren(rowsPath)
	if !rowsMatches && !rowsCould {
		b.PushSkipMarker(estimateRowsSize(blk.rows))
	} else {
		b.PushArrayStart()
		for i, row := range blk.rows {
			rowPath := rowsPath.Index(i)
			rowForced := rowsMatches
			if !rowForced && !s.Matches(rowPath) && !s.CouldMatchChildren(rowPath) {
				b.PushSkipMarker(estimateRowSize(row))
				continue
			}
			if err := emitRow(b, blk.fields, row, idx, strategy, true); err != nil {
				return err
			}
		}
		b.PushArrayEnd()
	}

	b.PushObjectEnd()
	return nil
}

func emitRow(b *tape.Builder, fields []fieldDecl, row []string, idx refIndex, strategy ReferenceStrategy, allowResolve bool) error {
	b.PushObjectStart()
	for i, f := range fields {
		if i >= len(row) {
			break
		}
		b.PushKey([]byte(f.name))
		val := row[i]
		pushTyped(b, f.typ, val, idx, strategy, allowResolve)
	}
	b.PushObjectEnd()
	return nil
}

func pushTyped(b *tape.Builder, typ FieldType, val string, idx refIndex, strategy ReferenceStrategy, allowResolve bool) {
	isRef := strings.HasPrefix(val, ":") || typ == TypeReference
	if isRef {
		if strategy == ReferenceResolve && allowResolve {
			if resolved := resolveReference(val, idx); resolved != nil {
				b.PushObjectStart()
				for k, v := range resolved.fields {
					b.PushKey([]byte(k))
					b.PushString([]byte(v))
				}
				b.PushObjectEnd()
				return
			}
		}
		refIdx := b.Len()
		b.PushMarker(tape.ISONReference, []byte(val))
		refKind, _, _ := ParseReference(val)
		b.PushSidecar(refIdx, tape.ISONReferenceKindRecord{Kind: refKindLabel(refKind)})
		return
	}
	switch typ {
	case TypeInt, TypeFloat:
		b.PushNumber([]byte(val))
	case TypeBool:
		b.PushBool(val == "true" || val == "1" || val == "y")
	case TypeComputed:
		b.PushString([]byte(val))
	default:
		b.PushString([]byte(unquoteField(val)))
	}
}

type resolvedRow struct {
	fields map[string]string
}

// resolveReference looks up the row a reference points to by block
// name (the reference's type/relationship segment) and id, returning
// its fields as name->text pairs without re-applying field typing —
// a deliberately shallow resolution (see ReferenceResolve).
func resolveReference(raw string, idx refIndex) *resolvedRow {
	kind, name, id := ParseReference(raw)
	if kind == RefSimple {
		return nil
	}
	blk, ok := idx[name]
	if !ok {
		return nil
	}
	row, ok := blk.byID[id]
	if !ok {
		return nil
	}
	fields := make(map[string]string, len(row))
	for i, v := range row {
		key := strconv.Itoa(i)
		if i < len(blk.fields) {
			key = blk.fields[i].name
		}
		fields[key] = v
	}
	return &resolvedRow{fields: fields}
}

// FieldDecl is the exported view of a schema-line field declaration,
// used by format/isonl to parse each line's self-contained schema
// prefix with the same type rules as a block's schema line.
type FieldDecl struct {
	Name string
	Typ  FieldType
}

// ParseLineSchema parses a whitespace-separated "field:type" schema
// segment, the form ISONL embeds on every line rather than once per
// block.
func ParseLineSchema(segment string) ([]FieldDecl, error) {
	decls, err := parseFieldDecls(strings.TrimSpace(segment))
	if err != nil {
		return nil, err
	}
	out := make([]FieldDecl, len(decls))
	for i, d := range decls {
		out[i] = FieldDecl{Name: d.name, Typ: d.typ}
	}
	return out, nil
}

// EmitLineRow pushes one ISONL line's values as an object keyed by its
// declared field names, applying the same type-conversion and
// reference-detection rules as a block row (pushTyped).
func EmitLineRow(b *tape.Builder, fields []FieldDecl, values []string, path schema.Path, forced bool, s *schema.Schema) error {
	b.PushObjectStart()
	for i, f := range fields {
		if i >= len(values) {
			break
		}
		fieldPath := path.Key(f.Name)
		if !forced && !s.Matches(fieldPath) {
			b.PushKey([]byte(f.Name))
			b.PushSkipMarker(len(values[i]))
			continue
		}
		b.PushKey([]byte(f.Name))
		pushTyped(b, f.Typ, strings.TrimSpace(values[i]), nil, ReferenceDefer, false)
	}
	b.PushObjectEnd()
	return nil
}

// ReferenceKind classifies a parsed ISON reference.
type ReferenceKind uint8

const (
	RefSimple      ReferenceKind = iota // ":id"
	RefTyped                            // ":type:id", type is lower/mixed case
	RefRelationship                     // ":RELATIONSHIP:id", all-upper/underscore
)

// ParseReference splits a raw reference field (as stored verbatim on the
// tape) into its kind, optional type/relationship name, and id. The case
// of the first segment — not an explicit tag — disambiguates a typed
// reference from a relationship reference.
func ParseReference(raw string) (kind ReferenceKind, name, id string) {
	raw = strings.TrimPrefix(raw, ":")
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) == 1 {
		return RefSimple, "", parts[0]
	}
	if isShoutCase(parts[0]) {
		return RefRelationship, parts[0], parts[1]
	}
	return RefTyped, parts[0], parts[1]
}

// refKindLabel renders a ReferenceKind as the sidecar's string tag.
func refKindLabel(k ReferenceKind) string {
	switch k {
	case RefTyped:
		return "typed"
	case RefRelationship:
		return "relationship"
	default:
		return "simple"
	}
}

func isShoutCase(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !(c == '_' || (c >= 'A' && c <= 'Z')) {
			return false
		}
	}
	return true
}

func estimateBlockSize(blk block) int {
	n := len(blk.name)
	for _, row := range blk.rows {
		n += estimateRowSize(row)
	}
	return n
}

func estimateRowsSize(rows [][]string) int {
	n := 0
	for _, row := range rows {
		n += estimateRowSize(row)
	}
	return n
}

func estimateRowSize(row []string) int {
	n := 0
	for _, f := range row {
		n += len(f)
	}
	return n
}

// encodeBlockHeader packs the block kind and name into the single text
// blob a marker node can carry; BlockHeaderKind/BlockHeaderName decode it.
func encodeBlockHeader(kind BlockKind, name string) string {
	tag := "table"
	if kind == BlockObject {
		tag = "object"
	}
	return tag + "." + name
}

// BlockHeaderKind and BlockHeaderName decode a header marker's raw text
// (as produced by encodeBlockHeader) back into its parts.
func BlockHeaderKind(raw string) BlockKind {
	if strings.HasPrefix(raw, "object.") {
		return BlockObject
	}
	return BlockTable
}

func BlockHeaderName(raw string) string {
	if i := strings.Index(raw, "."); i >= 0 {
		return raw[i+1:]
	}
	return raw
}

func unquoteField(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// parseBlocks scans the document line by line, grounded on
// fionn-simd/src/formats/ison.rs's block/header/comment/summary rules.
func parseBlocks(src string) ([]block, error) {
	var blocks []block
	var current *block
	// inSummary is set by a "---" marker: the lines after it, up to the
	// next block header, form a summary section and are not parsed.
	inSummary := false

	for _, raw := range strings.Split(src, "\n") {
		line := truncateAtComment(raw)
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.TrimSpace(trimmed) == "---" {
			current = nil
			inSummary = true
			continue
		}

		if name, kind, ok := parseBlockHeader(trimmed); ok {
			blocks = append(blocks, block{name: name, kind: kind})
			current = &blocks[len(blocks)-1]
			inSummary = false
			continue
		}
		if inSummary {
			continue
		}

		if current == nil {
			return nil, perr.New(perr.ErrMalformed, 0, "data row outside any block header")
		}

		if current.fields == nil {
			fields, err := parseFieldDecls(trimmed)
			if err != nil {
				return nil, err
			}
			current.fields = fields
			continue
		}

		row := splitRowQuoteAware(trimmed)
		current.rows = append(current.rows, row)
	}
	return blocks, nil
}

// truncateAtComment implements the "'#' mid-scan ends the structural
// mask" rule: any '#' outside a quoted span ends the line right there,
// as if the rest didn't exist, whatever character precedes it. A '#'
// that opens a full-line comment (first non-space character) is the
// same rule applied at column 0.
func truncateAtComment(line string) string {
	inQuote := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '"' {
			inQuote = !inQuote
			continue
		}
		if c == '#' && !inQuote {
			return line[:i]
		}
	}
	return line
}

// parseBlockHeader recognizes "table.<name>" / "object.<name>" by
// stripping the literal prefix and taking the first whitespace-delimited
// token as the block name — not a general path expression.
func parseBlockHeader(line string) (name string, kind BlockKind, ok bool) {
	var rest string
	switch {
	case strings.HasPrefix(line, "table."):
		rest = strings.TrimPrefix(line, "table.")
		kind = BlockTable
	case strings.HasPrefix(line, "object."):
		rest = strings.TrimPrefix(line, "object.")
		kind = BlockObject
	default:
		return "", 0, false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", 0, false
	}
	return fields[0], kind, true
}

func parseFieldDecls(line string) ([]fieldDecl, error) {
	var decls []fieldDecl
	for _, tok := range strings.Fields(line) {
		name, typ, ok := strings.Cut(tok, ":")
		if !ok {
			return nil, perr.New(perr.ErrMalformed, 0, "invalid field declaration "+strconv.Quote(tok))
		}
		decls = append(decls, fieldDecl{name: name, typ: parseFieldType(typ)})
	}
	return decls, nil
}

// splitRowQuoteAware splits on spaces, tabs and '|' but keeps a quoted field
// (including its surrounding quotes) intact even if it contains spaces;
// quotes are stripped only at value-conversion time (pushTyped /
// unquoteField), not here.
func splitRowQuoteAware(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			inQuote = !inQuote
			cur.WriteByte(c)
		case (c == ' ' || c == '\t' || c == '|') && !inQuote:
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return fields
}
