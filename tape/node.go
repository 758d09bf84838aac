// Package tape implements the unified intermediate representation (C5)
// that every format adapter emits into and every schema-driven query reads
// from: a flat, append-only sequence of typed nodes with back-patched
// sibling-skip offsets, backed by a shared string arena.
package tape

import "github.com/darach/fionn/internal/arena"

// Kind enumerates every node variety that can appear on a tape. The first
// block is format-agnostic (spec §3.2); the remainder are format-specific
// markers emitted only by the adapter that needs them.
type Kind uint8

const (
	ObjectStart Kind = iota
	ObjectEnd
	ArrayStart
	ArrayEnd
	Key
	String
	Number
	Bool
	Null
	SkipMarker

	// YAMLAlias is the sole format-specific marker kind still pushed as
	// a main-tape value: in AliasPreserve mode it legitimately *is* the
	// value at the alias site, not an extra sibling, so unlike the
	// other formats' surface-syntax annotations it has no reason to
	// move into the sidecar-only model (see tape/sidecar.go).
	YAMLAlias
	ISONBlockHeader
	ISONReference
)

func (k Kind) String() string {
	switch k {
	case ObjectStart:
		return "ObjectStart"
	case ObjectEnd:
		return "ObjectEnd"
	case ArrayStart:
		return "ArrayStart"
	case ArrayEnd:
		return "ArrayEnd"
	case Key:
		return "Key"
	case String:
		return "String"
	case Number:
		return "Number"
	case Bool:
		return "Bool"
	case Null:
		return "Null"
	case SkipMarker:
		return "SkipMarker"
	case YAMLAlias:
		return "YAMLAlias"
	case ISONBlockHeader:
		return "ISONBlockHeader"
	case ISONReference:
		return "ISONReference"
	default:
		return "Unknown"
	}
}

// IsContainerStart reports whether k opens a nestable span that must be
// matched by a corresponding *End node.
func (k Kind) IsContainerStart() bool { return k == ObjectStart || k == ArrayStart }

// Node is one fixed-size tape record. Leaf kinds (String, Number, Bool,
// Null, Key, SkipMarker) only use Data/Aux; container-start kinds also use
// Skip as the back-patched sibling-skip offset (spec §3.3).
type Node struct {
	Kind  Kind
	Depth uint8    // count of live *Start nodes at this point; a Start and its matching End share the same value.
	Aux   uint32   // Bool: 0/1. SkipMarker: skipped byte length. Number: format hint bits.
	Data  arena.ID // arena handle for Key/String/Number text; unused otherwise.
	Skip  uint32   // container-start kinds: tape index one past the matching End node.
}

// Header carries the tape's provenance: which format produced it, the
// encoding layer that was applied on the way in, and whether an original-
// syntax sidecar was retained for lossless round-trips (spec §3.3, §4.7).
type Header struct {
	Format      string
	Version     uint32
	Encoding    string
	HasSidecar  bool
	ArenaLength int
}
