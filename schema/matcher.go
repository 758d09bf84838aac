package schema

// Matches reports whether path is selected for full parsing: in Include
// mode that means some pattern matches path exactly; in Exclude mode it
// means no pattern matches path (a match there removes it from the
// default-parse set instead).
func (s *Schema) Matches(path Path) bool {
	raw := s.rawMatch(path)
	if s.mode == Exclude {
		return !raw
	}
	return raw
}

func (s *Schema) rawMatch(path Path) bool {
	if _, ok := s.exact[hashPath(path)]; ok {
		return true
	}
	for _, p := range s.patterns {
		if !p.isWildcard {
			continue
		}
		if matchFrom(p.segs, path.segs, 0, 0) {
			return true
		}
	}
	return false
}

// CouldMatchChildren reports whether any path strictly below path might
// still need full parsing, letting an adapter decide whether to recurse
// into a subtree or emit a single SkipMarker for it (spec §4.4's
// could_match_children contract).
func (s *Schema) CouldMatchChildren(path Path) bool {
	raw := s.rawCouldMatchChildren(path)
	if s.mode == Include {
		return raw
	}
	// Exclude mode is conservative: recurse unless this exact subtree is
	// fully and literally excluded by a "path.**" pattern, in which case
	// nothing under it could ever need full parsing.
	return !s.subtreeFullyExcluded(path)
}

func (s *Schema) rawCouldMatchChildren(path Path) bool {
	if _, ok := s.ancestor[hashPath(path)]; ok {
		return true
	}
	for _, p := range s.patterns {
		if !p.isWildcard {
			continue
		}
		if coverFrom(p.segs, path.segs, 0, 0) {
			return true
		}
	}
	return false
}

func (s *Schema) subtreeFullyExcluded(path Path) bool {
	for _, p := range s.patterns {
		if len(p.segs) != len(path.segs)+1 {
			continue
		}
		if p.segs[len(p.segs)-1].kind != segRecursive {
			continue
		}
		if segsEqual(p.segs[:len(path.segs)], path.segs) {
			return true
		}
	}
	return false
}

func segsEqual(a, b []segment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].canonical() != b[i].canonical() {
			return false
		}
	}
	return true
}

// matchFrom is a standard double-wildcard glob matcher: ** may consume
// zero or more path segments, * and [*] consume exactly one.
func matchFrom(pat, path []segment, pi, si int) bool {
	if pi == len(pat) {
		return si == len(path)
	}
	seg := pat[pi]
	if seg.kind == segRecursive {
		if matchFrom(pat, path, pi+1, si) {
			return true
		}
		return si < len(path) && matchFrom(pat, path, pi, si+1)
	}
	if si >= len(path) {
		return false
	}
	if !segMatches(seg, path[si]) {
		return false
	}
	return matchFrom(pat, path, pi+1, si+1)
}

// coverFrom reports whether path is a viable proper-prefix of something
// pat could match — i.e. whether pattern material remains after path is
// consumed. A recursive segment can always stay open for more path levels,
// so it always leaves room for a child.
func coverFrom(pat, path []segment, pi, si int) bool {
	if si == len(path) {
		return pi < len(pat)
	}
	if pi == len(pat) {
		return false
	}
	seg := pat[pi]
	if seg.kind == segRecursive {
		return coverFrom(pat, path, pi, si+1) || coverFrom(pat, path, pi+1, si)
	}
	if !segMatches(seg, path[si]) {
		return false
	}
	return coverFrom(pat, path, pi+1, si+1)
}

func segMatches(pat, s segment) bool {
	switch pat.kind {
	case segLiteral:
		return s.kind == segLiteral && s.literal == pat.literal
	case segIndex:
		return s.kind == segIndex && s.index == pat.index
	case segWildcard:
		return true
	case segIndexWildcard:
		return s.kind == segIndex
	}
	return false
}
