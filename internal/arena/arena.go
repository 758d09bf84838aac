// Package arena implements the append-only bump-allocated string store
// (C3) that backs every tape's key and string values. IDs are 32-bit
// offsets into the arena's backing buffer — opaque handles, never pointers,
// so a Tape (and its Arena) can be copied, pooled, or discarded as a unit.
package arena

import "hash/maphash"

// ID is an opaque handle into an Arena. Callers resolve it back to bytes
// via Arena.Resolve; nothing about its bit layout is part of the contract.
type ID uint32

// growthHintDivisor sets the fraction of input length used as a starting capacity
// hint, per spec §4.3 growth policy ("≈¼ of input length").
const growthHintDivisor = 4

// Arena is a bump-allocated, append-only byte store with an optional
// intern table for short, highly-duplicated strings (object keys).
// It never shrinks during a parse; Reset returns it to zero length for
// reuse by a pool (spec §3.7, §6.1).
type Arena struct {
	buf     []byte
	intern  map[uint64][]ID
	seed    maphash.Seed
	interns bool
}

// New creates an Arena sized from inputLen per the growth policy in
// spec §4.3.
func New(inputLen int) *Arena {
	hint := inputLen / growthHintDivisor
	if hint < 64 {
		hint = 64
	}
	return &Arena{
		buf:     make([]byte, 0, hint),
		intern:  make(map[uint64][]ID),
		seed:    maphash.MakeSeed(),
		interns: true,
	}
}

// DisableInterning turns off the intern map for this arena. Spec §4.3:
// interning should be used for keys (high duplication) and disabled for
// large value strings, since the hash lookup isn't worth it when
// duplicates are rare.
func (a *Arena) DisableInterning() { a.interns = false }

// Push appends b unconditionally and returns its id.
func (a *Arena) Push(b []byte) ID {
	id := ID(len(a.buf))
	a.buf = append(a.buf, lengthPrefix(len(b))...)
	a.buf = append(a.buf, b...)
	return id
}

// Intern looks b up by hash; on a miss it behaves like Push and records
// the new id for future lookups. When interning is disabled it always
// behaves like Push.
func (a *Arena) Intern(b []byte) ID {
	if !a.interns {
		return a.Push(b)
	}
	h := a.hash(b)
	for _, id := range a.intern[h] {
		if existing, ok := a.resolveRaw(id); ok && bytesEqual(existing, b) {
			return id
		}
	}
	id := a.Push(b)
	a.intern[h] = append(a.intern[h], id)
	return id
}

// Resolve reconstitutes the borrowed slice for id. The returned slice
// aliases the arena's backing buffer and is only valid for the arena's
// lifetime (spec §3.6).
func (a *Arena) Resolve(id ID) []byte {
	b, _ := a.resolveRaw(id)
	return b
}

func (a *Arena) resolveRaw(id ID) ([]byte, bool) {
	off := int(id)
	if off < 0 || off >= len(a.buf) {
		return nil, false
	}
	n, headerLen := readLengthPrefix(a.buf[off:])
	start := off + headerLen
	end := start + n
	if end > len(a.buf) {
		return nil, false
	}
	return a.buf[start:end], true
}

// Clone returns a deep copy of the arena with identical byte contents, so
// every existing ID remains valid against the copy — offsets are exact
// byte positions, not pointers, so copying the backing buffer verbatim is
// sufficient (spec §3.6).
func (a *Arena) Clone() *Arena {
	buf := make([]byte, len(a.buf))
	copy(buf, a.buf)
	intern := make(map[uint64][]ID, len(a.intern))
	for k, ids := range a.intern {
		intern[k] = append([]ID{}, ids...)
	}
	return &Arena{buf: buf, intern: intern, seed: a.seed, interns: a.interns}
}

// Len reports the number of bytes committed to the backing buffer,
// recorded in the tape header's arena length field (spec §3.3).
func (a *Arena) Len() int { return len(a.buf) }

// Reset truncates the arena to zero length for reuse, keeping the
// existing backing capacity (and intern table, cleared) — the bump
// allocator's bump pointer simply moves back to zero.
func (a *Arena) Reset() {
	a.buf = a.buf[:0]
	for k := range a.intern {
		delete(a.intern, k)
	}
}

func (a *Arena) hash(b []byte) uint64 {
	var h maphash.Hash
	h.SetSeed(a.seed)
	_, _ = h.Write(b)
	return h.Sum64()
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// lengthPrefix encodes n as a fixed-width little-endian length header.
// Strings in this arena are never larger than input size, so a plain
// 4-byte little-endian length keeps resolution O(1) without varint
// branching.
func lengthPrefix(n int) []byte {
	return []byte{
		byte(n),
		byte(n >> 8),
		byte(n >> 16),
		byte(n >> 24),
	}
}

func readLengthPrefix(b []byte) (n int, headerLen int) {
	if len(b) < 4 {
		return 0, 4
	}
	n = int(b[0]) | int(b[1])<<8 | int(b[2])<<16 | int(b[3])<<24
	return n, 4
}
