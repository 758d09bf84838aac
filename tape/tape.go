package tape

import (
	"strconv"

	"github.com/darach/fionn/internal/arena"
	"github.com/darach/fionn/internal/perr"
	"github.com/darach/fionn/schema"
)

// Tape is the finished, read-only result of a parse: a node sequence plus
// the arena it references. Readers never mutate a Tape; Builder is the
// only write path (spec §3.1, §6.2).
type Tape struct {
	Header  Header
	Nodes   []Node
	Arena   *arena.Arena
	Sidecar []SidecarRecord
}

// Len reports the number of nodes on the tape.
func (t *Tape) Len() int { return len(t.Nodes) }

// NodeAt returns the node at idx.
func (t *Tape) NodeAt(idx int) Node { return t.Nodes[idx] }

// ValueKind reports the Kind of the node at idx, the query spelled out in
// spec §6.2.
func (t *Tape) ValueKind(idx int) Kind { return t.Nodes[idx].Kind }

// Text resolves the arena-backed text of a Key, String, Number, or
// format-specific marker node.
func (t *Tape) Text(idx int) []byte { return t.Arena.Resolve(t.Nodes[idx].Data) }

// Bool resolves a Bool node's value.
func (t *Tape) Bool(idx int) bool { return t.Nodes[idx].Aux != 0 }

// SkippedLen resolves a SkipMarker node's recorded byte span, useful for
// diagnostics and for reconstructing approximate source offsets.
func (t *Tape) SkippedLen(idx int) int { return int(t.Nodes[idx].Aux) }

// Int64 decodes a Number node's verbatim source text as a signed 64-bit
// integer. The tape itself never commits to a numeric width (spec
// §3.2), so a value whose decimal text exceeds int64's range is only
// discovered here, at decode time, as ErrOverflow rather than silently
// truncated or rejected during parsing.
func (t *Tape) Int64(idx int) (int64, error) {
	text := t.Text(idx)
	v, err := strconv.ParseInt(string(text), 10, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, perr.New(perr.ErrOverflow, idx, "number "+strconv.Quote(string(text))+" overflows int64")
		}
		return 0, perr.New(perr.ErrMalformed, idx, "not an integer: "+strconv.Quote(string(text)))
	}
	return v, nil
}

// Float64 decodes a Number node's verbatim source text as a float64.
// strconv.ParseFloat reports ErrRange (rather than an error) for a
// magnitude beyond float64's range, rounding to +/-Inf instead — that
// rounding is itself the overflow spec §3.2 Number values can exhibit at
// decode time, so it is reported as ErrOverflow here rather than
// returned as if it were an ordinary finite result.
func (t *Tape) Float64(idx int) (float64, error) {
	text := t.Text(idx)
	v, err := strconv.ParseFloat(string(text), 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, perr.New(perr.ErrOverflow, idx, "number "+strconv.Quote(string(text))+" overflows float64")
		}
		return 0, perr.New(perr.ErrMalformed, idx, "not a number: "+strconv.Quote(string(text)))
	}
	return v, nil
}

// Depth resolves the count of live *Start nodes at idx (spec §3.2).
func (t *Tape) Depth(idx int) int { return int(t.Nodes[idx].Depth) }

// SidecarFor returns every original-syntax record attached to tapeIndex,
// in push order. Most indices have none.
func (t *Tape) SidecarFor(tapeIndex int) []SidecarVariant {
	var out []SidecarVariant
	for _, rec := range t.Sidecar {
		if rec.TapeIndex == tapeIndex {
			out = append(out, rec.Variant)
		}
	}
	return out
}

// SkipValue returns the tape index immediately after the value starting
// at idx, without visiting any of its children — O(1) for a leaf, O(1)
// for a container thanks to the builder's back-patched Skip offset, so an
// adapter or query walking siblings never re-scans a subtree it already
// decided to ignore (spec §3.3, §4.4, testable property 3).
func (t *Tape) SkipValue(idx int) int {
	n := t.Nodes[idx]
	if n.Kind.IsContainerStart() {
		return int(n.Skip)
	}
	return idx + 1
}

// ResolvePath walks p through the tape starting at root, following
// sibling-skip offsets over every non-matching child so the cost is
// proportional to the path's depth and the container's fan-out at each
// level, never to the full subtree size (spec §4.4, testable property 4).
// It reports the index of the matched value, or ok=false if no such path
// exists on this tape.
func (t *Tape) ResolvePath(root int, p schema.Path) (idx int, ok bool) {
	segs := p.Segments()
	cur := root
	for _, seg := range segs {
		next, found := t.step(cur, seg)
		if !found {
			return 0, false
		}
		cur = next
	}
	return cur, true
}

func (t *Tape) step(containerIdx int, seg schema.Segment) (int, bool) {
	n := t.Nodes[containerIdx]
	switch {
	case seg.IsIndex && n.Kind == ArrayStart:
		i := 0
		child := containerIdx + 1
		for child < int(n.Skip)-1 {
			if i == seg.Index {
				return child, true
			}
			i++
			child = t.SkipValue(child)
		}
		return 0, false
	case !seg.IsIndex && n.Kind == ObjectStart:
		child := containerIdx + 1
		end := int(n.Skip) - 1
		for child < end {
			if t.Nodes[child].Kind != Key {
				return 0, false
			}
			keyText := t.Text(child)
			valueIdx := child + 1
			if string(keyText) == seg.Name {
				return valueIdx, true
			}
			child = t.SkipValue(valueIdx)
		}
		return 0, false
	default:
		return 0, false
	}
}

// Equals reports whether two tapes are structurally identical: same node
// kinds and, for leaf kinds, the same resolved bytes. Arena byte offsets
// and interning decisions are deliberately not compared, since they are
// an implementation detail of how a given parse happened to allocate
// (testable property 9's "bit-identical" bar applies to scanner output,
// not to unrelated arenas built by independent builders).
func (t *Tape) Equals(other *Tape) bool {
	if len(t.Nodes) != len(other.Nodes) {
		return false
	}
	for i, n := range t.Nodes {
		m := other.Nodes[i]
		if n.Kind != m.Kind {
			return false
		}
		switch n.Kind {
		case Bool:
			if n.Aux != m.Aux {
				return false
			}
		case SkipMarker:
			if n.Aux != m.Aux {
				return false
			}
		case Key, String, Number, YAMLAlias, ISONBlockHeader, ISONReference:
			if string(t.Arena.Resolve(n.Data)) != string(other.Arena.Resolve(m.Data)) {
				return false
			}
		}
	}
	return true
}

// DeepClone copies the tape's nodes and arenas so the clone shares no
// backing storage with the original and can outlive a pooled tape being
// recycled out from under it (spec §6.1). Arena.Clone preserves byte
// offsets exactly, so every node's Data id remains valid unchanged.
func (t *Tape) DeepClone() *Tape {
	nodes := make([]Node, len(t.Nodes))
	copy(nodes, t.Nodes)
	var sidecar []SidecarRecord
	if t.Sidecar != nil {
		sidecar = make([]SidecarRecord, len(t.Sidecar))
		copy(sidecar, t.Sidecar)
	}
	return &Tape{Header: t.Header, Nodes: nodes, Arena: t.Arena.Clone(), Sidecar: sidecar}
}

// Reset clears the tape for reuse by a Pool, truncating the node slice,
// the sidecar record slice, and the backing arena without releasing
// their capacity.
func (t *Tape) Reset() {
	t.Nodes = t.Nodes[:0]
	t.Arena.Reset()
	t.Sidecar = t.Sidecar[:0]
}
