package tape

import "github.com/darach/fionn/internal/arena"

// Builder assembles a Tape incrementally. Format adapters call one Push*
// method per value as they walk the input; Builder back-patches each
// container's Skip offset the moment its matching End node is pushed, so
// the finished tape never needs a second pass (spec §4.5).
type Builder struct {
	nodes     []Node
	ar        *arena.Arena
	sidecar   []SidecarRecord
	stack     []int
	openCount int
	header    Header
}

// NewBuilder creates a Builder writing into ar. hint sizes the initial
// node slice from the input length, mirroring the arena's own growth
// policy (spec §4.3).
func NewBuilder(ar *arena.Arena, format string, inputLen int) *Builder {
	hint := inputLen / 8
	if hint < 16 {
		hint = 16
	}
	return &Builder{
		nodes: make([]Node, 0, hint),
		ar:    ar,
		header: Header{
			Format:  format,
			Version: 1,
		},
	}
}

// EnableSidecar marks this tape as carrying an original-syntax sidecar,
// so PushSidecar calls that follow are actually recorded (spec §4.7).
func (b *Builder) EnableSidecar() {
	b.header.HasSidecar = true
}

// SidecarEnabled reports whether EnableSidecar was called.
func (b *Builder) SidecarEnabled() bool { return b.header.HasSidecar }

// Sidecar returns the original-syntax records pushed so far, or nil if
// EnableSidecar was never called.
func (b *Builder) Sidecar() []SidecarRecord { return b.sidecar }

// PushSidecar records that the node at tapeIndex carries a
// format-specific original-syntax detail. A no-op unless EnableSidecar
// was called (spec §3.4).
func (b *Builder) PushSidecar(tapeIndex int, variant SidecarVariant) {
	if !b.header.HasSidecar {
		return
	}
	b.sidecar = append(b.sidecar, SidecarRecord{TapeIndex: tapeIndex, Variant: variant})
}

// Len reports the number of nodes pushed so far; useful to adapters that
// need the tape index a node will occupy before pushing it.
func (b *Builder) Len() int { return len(b.nodes) }

func (b *Builder) push(n Node) int {
	n.Depth = uint8(b.openCount)
	idx := len(b.nodes)
	b.nodes = append(b.nodes, n)
	return idx
}

// PushObjectStart opens an object span and returns its tape index.
func (b *Builder) PushObjectStart() int {
	b.openCount++
	idx := b.push(Node{Kind: ObjectStart})
	b.stack = append(b.stack, idx)
	return idx
}

// PushObjectEnd closes the innermost open object, back-patching its
// Skip offset to one past this End node.
func (b *Builder) PushObjectEnd() int {
	return b.closeContainer(ObjectEnd)
}

// PushArrayStart opens an array span and returns its tape index.
func (b *Builder) PushArrayStart() int {
	b.openCount++
	idx := b.push(Node{Kind: ArrayStart})
	b.stack = append(b.stack, idx)
	return idx
}

// PushArrayEnd closes the innermost open array, back-patching its Skip
// offset to one past this End node.
func (b *Builder) PushArrayEnd() int {
	return b.closeContainer(ArrayEnd)
}

// closeContainer pushes endKind while openCount still counts the
// container being closed, so the End node's Depth matches its Start's
// (spec §3.2: "each *Start has exactly one matching *End at the same
// depth"), then decrements.
func (b *Builder) closeContainer(endKind Kind) int {
	endIdx := b.push(Node{Kind: endKind})
	n := len(b.stack)
	startIdx := b.stack[n-1]
	b.stack = b.stack[:n-1]
	b.nodes[startIdx].Skip = uint32(endIdx + 1)
	b.openCount--
	return endIdx
}

// PushKey interns name (object keys repeat heavily, so interning pays
// off) and pushes a Key node.
func (b *Builder) PushKey(name []byte) int {
	return b.push(Node{Kind: Key, Data: b.ar.Intern(name)})
}

// PushString pushes a String leaf. Value strings, short or long, are
// pushed uninterned: see internal/arena's interning-disabled guidance.
func (b *Builder) PushString(s []byte) int {
	return b.push(Node{Kind: String, Data: b.ar.Push(s)})
}

// PushNumber pushes a Number leaf, storing the original decimal text
// verbatim so callers can choose int64, float64, or big.Float parsing
// without the tape itself committing to a representation (spec §3.2).
func (b *Builder) PushNumber(text []byte) int {
	return b.push(Node{Kind: Number, Data: b.ar.Push(text)})
}

// PushBool pushes a Bool leaf.
func (b *Builder) PushBool(v bool) int {
	aux := uint32(0)
	if v {
		aux = 1
	}
	return b.push(Node{Kind: Bool, Aux: aux})
}

// PushNull pushes a Null leaf.
func (b *Builder) PushNull() int {
	return b.push(Node{Kind: Null})
}

// PushSkipMarker records that a subtree of byteLen bytes was skipped
// without tokenization (spec §3.2, §4.4's on_value "skip" branch).
func (b *Builder) PushSkipMarker(byteLen int) int {
	return b.push(Node{Kind: SkipMarker, Aux: uint32(byteLen)})
}

// PushMarker pushes a format-specific marker node carrying raw text in
// the arena (an ISON block header, an unresolved ISON reference, or a
// preserved YAML alias target).
func (b *Builder) PushMarker(kind Kind, text []byte) int {
	return b.push(Node{Kind: kind, Data: b.ar.Push(text)})
}

// Build finalizes the tape. It panics if any container was left open,
// which indicates an adapter bug rather than a malformed-input condition
// (malformed input is caught by the scanner before nodes are pushed).
func (b *Builder) Build() *Tape {
	if len(b.stack) != 0 {
		panic("tape: Build called with unclosed container")
	}
	b.header.ArenaLength = b.ar.Len()
	return &Tape{
		Header:  b.header,
		Nodes:   b.nodes,
		Arena:   b.ar,
		Sidecar: b.sidecar,
	}
}
