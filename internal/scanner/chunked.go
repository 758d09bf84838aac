package scanner

import "math/bits"

// chunkedCore implements skip_string and skip_container by walking data in
// ChunkSize windows, threading the escape and in-string carries described in
// §4.1 between windows. subChunks controls how many ChunkSize windows are
// processed per outer iteration before the caller-visible loop re-checks
// anything — 1 for the "xor-prefix" and "bracket-count" strategies, 2 for
// "wide" (the nearest a pure-Go SWAR port gets to a 256-bit vector register
// without real assembly; see DESIGN.md).
type chunkedCore struct {
	subChunks int
}

func (c chunkedCore) SkipString(data []byte, pos int) (int, bool, error) {
	escaped := false
	escapeCarry := false
	i := pos
	for i < len(data) {
		anyEscaped := false
		for sub := 0; sub < c.subChunks && i < len(data); sub++ {
			chunk := chunkAt(data, i)
			if chunk == nil {
				break
			}
			backslash := BackslashMask(chunk)
			oddEscapes, carryOut := EscapePrefix(backslash, escapeCarry)
			escapeCarry = carryOut
			if backslash != 0 {
				anyEscaped = true
			}
			quote := QuoteMask(chunk)
			real := quote &^ oddEscapes
			if real != 0 {
				offset := bits.TrailingZeros64(real)
				if offset < len(chunk) {
					escaped = escaped || anyEscaped
					return i + offset + 1, escaped, nil
				}
			}
			i += len(chunk)
		}
		escaped = escaped || anyEscaped
	}
	return 0, escaped, ErrTruncated
}

func (c chunkedCore) SkipContainer(data []byte, pos int, open, close byte) (int, bool, error) {
	escaped := false
	escapeCarry := false
	inStringCarry := false
	depth := 1
	i := pos
	for i < len(data) {
		for sub := 0; sub < c.subChunks && i < len(data); sub++ {
			chunk := chunkAt(data, i)
			if chunk == nil {
				break
			}
			backslash := BackslashMask(chunk)
			oddEscapes, escOut := EscapePrefix(backslash, escapeCarry)
			escapeCarry = escOut
			if backslash != 0 {
				escaped = true
			}
			quote := QuoteMask(chunk)
			inString, strOut := InStringMask(quote, oddEscapes, inStringCarry)
			inStringCarry = strOut

			openMask, closeMask := OpenCloseMask(chunk, open, close)
			openMask &^= inString
			closeMask &^= inString

			end, found, newDepth := scanDepth(openMask, closeMask, depth)
			if found {
				if newDepth < 0 {
					return 0, escaped, &MalformedError{Position: i + end, Detail: "unbalanced closer"}
				}
				return i + end + 1, escaped, nil
			}
			depth = newDepth
			if depth < 0 {
				return 0, escaped, &MalformedError{Position: i, Detail: "unbalanced closer"}
			}
			i += len(chunk)
		}
	}
	return 0, escaped, ErrTruncated
}

// scanDepth walks open/close bitmasks for a single chunk bit by bit, in
// document order, tracking depth starting from startDepth. It returns the
// offset of the close that brought depth to zero (found=true), or the
// ending depth after the whole chunk if depth never reached zero.
//
// A plain popcount-and-subtract per chunk (as spec §4.2 describes for
// bracket-count) can't locate the exact closing byte when depth hits zero
// mid-chunk, so this still walks bit-by-bit — the "count" in bracket-count
// names the depth-tracking step, not a claim that zero-crossing detection
// skips scanning the chunk. The bit offsets are collected into a pooled
// []uint32 (the same structural-index shape the teacher's tokenizer built
// from its SIMD masks) instead of being consumed one TrailingZeros64 call
// at a time, so the per-chunk scratch slice is reused across calls rather
// than implied by repeated bit-clearing.
func scanDepth(openMask, closeMask uint64, startDepth int) (offset int, found bool, endDepth int) {
	combined := openMask | closeMask
	if combined == 0 {
		return 0, false, startDepth
	}

	positions := GetIndexSlice()
	rem := combined
	for rem != 0 {
		bit := bits.TrailingZeros64(rem)
		rem &^= 1 << uint(bit)
		positions = append(positions, uint32(bit))
	}

	depth := startDepth
	for _, bit := range positions {
		if openMask&(1<<uint(bit)) != 0 {
			depth++
			continue
		}
		depth--
		if depth <= 0 {
			PutIndexSlice(positions)
			return int(bit), true, depth
		}
	}
	PutIndexSlice(positions)
	return 0, false, depth
}

type xorPrefixStrategy struct{ chunkedCore }

func (xorPrefixStrategy) Name() string { return "xor-prefix" }

type bracketCountStrategy struct{ chunkedCore }

func (bracketCountStrategy) Name() string { return "bracket-count" }

type wideStrategy struct{ chunkedCore }

func (wideStrategy) Name() string { return "wide" }

func newXORPrefixStrategy() xorPrefixStrategy {
	return xorPrefixStrategy{chunkedCore{subChunks: 1}}
}

func newBracketCountStrategy() bracketCountStrategy {
	return bracketCountStrategy{chunkedCore{subChunks: 1}}
}

func newWideStrategy() wideStrategy {
	return wideStrategy{chunkedCore{subChunks: 2}}
}

func (s xorPrefixStrategy) SkipValue(data []byte, pos int) (int, bool, error) {
	return skipValueDispatch(s, data, pos)
}

func (s bracketCountStrategy) SkipValue(data []byte, pos int) (int, bool, error) {
	return skipValueDispatch(s, data, pos)
}

func (s wideStrategy) SkipValue(data []byte, pos int) (int, bool, error) {
	return skipValueDispatch(s, data, pos)
}
