package scanner

// Strategy is the contract shared by all four skip implementations (spec
// §4.2). pos always points at the first byte *inside* the value — after an
// opening quote for SkipString, after an opening bracket for SkipContainer.
type Strategy interface {
	Name() string
	SkipValue(data []byte, pos int) (end int, escapedSeen bool, err error)
	SkipString(data []byte, pos int) (end int, escapedSeen bool, err error)
	SkipContainer(data []byte, pos int, open, close byte) (end int, escapedSeen bool, err error)
}

// Hint lets a caller that already knows something about the remaining
// input (e.g. a JSON adapter skipping a big array of short strings) steer
// strategy selection without re-deriving it from length alone.
type Hint uint8

const (
	HintNone Hint = iota
	// HintStringHeavy favors the xor-prefix strategy, tuned for inputs
	// dominated by string scanning over deep nesting.
	HintStringHeavy
)

// Select implements the selection policy from spec §4.2: inputs under
// ChunkSize use the scalar reference; large inputs use the wide strategy
// when the runtime has SIMD-width registers; everything else uses
// bracket-count, unless the caller hints the remainder is string-heavy.
func Select(remaining []byte, hint Hint) Strategy {
	n := len(remaining)
	switch {
	case n < ChunkSize:
		return scalarStrategy{}
	case hint == HintStringHeavy:
		return newXORPrefixStrategy()
	case n >= 4096 && hasWideSIMD():
		return newWideStrategy()
	default:
		return newBracketCountStrategy()
	}
}

// AllStrategies returns every strategy, in the order scalar, xor-prefix,
// bracket-count, wide. Tests use this to enforce testable property 9 (all
// four agree bit-for-bit) regardless of what Select would have picked.
func AllStrategies() []Strategy {
	return []Strategy{
		scalarStrategy{},
		newXORPrefixStrategy(),
		newBracketCountStrategy(),
		newWideStrategy(),
	}
}
