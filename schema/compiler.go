package schema

import "hash/fnv"

// Mode selects whether compiled patterns name the paths to include in the
// parsed tape (default-skip) or the paths to exclude from it
// (default-parse), per spec §4.4.
type Mode uint8

const (
	Include Mode = iota
	Exclude
)

// Schema is the compiled form of a pattern set: an exact-path hash set for
// O(1) literal lookups, a wildcard matcher list for everything else, and an
// ancestor-hash set so could_match_children never needs to re-walk the
// pattern list for the common case of a literal ancestor prefix.
type Schema struct {
	mode     Mode
	patterns []pattern

	exact    map[uint64]struct{}
	ancestor map[uint64]struct{}
}

// Compile parses and compiles a pattern set. An empty pattern set compiled
// in Include mode matches nothing; compiled in Exclude mode it matches
// everything (no exclusions).
func Compile(patterns []string, mode Mode) (*Schema, error) {
	s := &Schema{
		mode:     mode,
		exact:    make(map[uint64]struct{}),
		ancestor: make(map[uint64]struct{}),
	}
	for _, raw := range patterns {
		p, err := parsePattern(raw)
		if err != nil {
			return nil, err
		}
		s.patterns = append(s.patterns, p)
		if !p.isWildcard {
			s.indexExact(p.segs)
		}
	}
	return s, nil
}

// indexExact records the hash of the full literal path and every proper
// prefix of it, so could_match_children(prefix) resolves without scanning
// the pattern list.
func (s *Schema) indexExact(segs []segment) {
	s.exact[hashSegs(segs)] = struct{}{}
	for i := 0; i < len(segs); i++ {
		s.ancestor[hashSegs(segs[:i])] = struct{}{}
	}
}

func hashSegs(segs []segment) uint64 {
	h := fnv.New64a()
	for i, sg := range segs {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(sg.canonical()))
	}
	return h.Sum64()
}

func hashPath(p Path) uint64 { return hashSegs(p.segs) }
