package schema

import (
	"errors"
	"testing"

	"github.com/darach/fionn/internal/perr"
)

func TestExactMatchInclude(t *testing.T) {
	s, err := Compile([]string{"$.a.b"}, Include)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !s.Matches(Root().Key("a").Key("b")) {
		t.Fatalf("exact path should match")
	}
	if s.Matches(Root().Key("a").Key("c")) {
		t.Fatalf("sibling path should not match")
	}
	if !s.CouldMatchChildren(Root().Key("a")) {
		t.Fatalf("ancestor of an included path should could-match-children")
	}
	if s.CouldMatchChildren(Root().Key("a").Key("b")) {
		t.Fatalf("the included leaf itself has no further matchable children")
	}
}

func TestWildcardSingleLevel(t *testing.T) {
	s, err := Compile([]string{"$.items[*].name"}, Include)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !s.Matches(Root().Key("items").Index(3).Key("name")) {
		t.Fatalf("[*] should match any index")
	}
	if s.Matches(Root().Key("items").Index(3).Key("price")) {
		t.Fatalf("different trailing key must not match")
	}
	if !s.CouldMatchChildren(Root().Key("items").Index(3)) {
		t.Fatalf("items[3] should still admit a matching child")
	}
}

func TestRecursiveWildcard(t *testing.T) {
	s, err := Compile([]string{"$.**.id"}, Include)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !s.Matches(Root().Key("a").Key("b").Key("id")) {
		t.Fatalf("** should match arbitrary depth before id")
	}
	if !s.Matches(Root().Key("id")) {
		t.Fatalf("** should also match zero levels")
	}
	if !s.CouldMatchChildren(Root().Key("a").Key("b").Key("c")) {
		t.Fatalf("** keeps every path open for a potential .id child")
	}
}

func TestExcludeMode(t *testing.T) {
	s, err := Compile([]string{"$.secrets"}, Exclude)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if s.Matches(Root().Key("secrets")) {
		t.Fatalf("excluded path must not be selected")
	}
	if !s.Matches(Root().Key("public")) {
		t.Fatalf("everything else should be selected by default")
	}
	if !s.CouldMatchChildren(Root()) {
		t.Fatalf("root still has non-excluded children")
	}
}

func TestExcludeSubtreeFullyExcluded(t *testing.T) {
	s, err := Compile([]string{"$.secrets.**"}, Exclude)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if s.CouldMatchChildren(Root().Key("secrets")) {
		t.Fatalf("secrets.** excludes the entire subtree, no children could ever match")
	}
	if !s.CouldMatchChildren(Root()) {
		t.Fatalf("root still has non-excluded siblings of secrets")
	}
}

func TestInvalidPattern(t *testing.T) {
	_, err := Compile([]string{"$.a[bad]"}, Include)
	if err == nil {
		t.Fatalf("expected a FormatError for a non-numeric, non-* index")
	}
	if !errors.Is(err, perr.ErrSchemaFormat) {
		t.Fatalf("expected errors.Is(err, perr.ErrSchemaFormat), got %v", err)
	}
}

func TestEmptyIncludeMatchesNothing(t *testing.T) {
	s, err := Compile(nil, Include)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if s.Matches(Root().Key("anything")) {
		t.Fatalf("empty include schema should select nothing")
	}
	if s.CouldMatchChildren(Root()) {
		t.Fatalf("empty include schema has nothing to recurse for")
	}
}
