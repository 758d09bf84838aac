package yaml

import (
	"testing"

	stdyaml "gopkg.in/yaml.v3"

	"github.com/darach/fionn/schema"
	"github.com/darach/fionn/tape"
)

func includeAll(t *testing.T) *schema.Schema {
	s, err := schema.Compile([]string{"$.**"}, schema.Include)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return s
}

func TestParseBlockMapping(t *testing.T) {
	s := includeAll(t)
	doc := "name: widget\ncount: 3\nactive: true\ntags:\n  - a\n  - b\nmeta:\n  owner: alice\n"
	tp, err := Parse([]byte(doc), s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	idx, ok := tp.ResolvePath(0, schema.Root().Key("tags").Index(1))
	if !ok || string(tp.Text(idx)) != "b" {
		t.Fatalf("tags[1] mismatch")
	}
	idx, ok = tp.ResolvePath(0, schema.Root().Key("meta").Key("owner"))
	if !ok || string(tp.Text(idx)) != "alice" {
		t.Fatalf("meta.owner mismatch")
	}
}

func TestSequenceOfMappings(t *testing.T) {
	s := includeAll(t)
	doc := "items:\n  - id: 1\n    name: a\n  - id: 2\n    name: b\n"
	tp, err := Parse([]byte(doc), s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	idx, ok := tp.ResolvePath(0, schema.Root().Key("items").Index(1).Key("name"))
	if !ok || string(tp.Text(idx)) != "b" {
		t.Fatalf("items[1].name mismatch, ok=%v", ok)
	}
}

func TestAnchorAliasResolve(t *testing.T) {
	s := includeAll(t)
	doc := "base: &b\n  x: 1\nover: *b\n"
	tp, err := Parse([]byte(doc), s, Options{Alias: AliasResolve})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	idx, ok := tp.ResolvePath(0, schema.Root().Key("over"))
	if !ok {
		t.Fatalf("expected $.over to resolve")
	}
	if tp.ValueKind(idx) != tape.String {
		t.Fatalf("expected alias to resolve to the anchored scalar text, got kind %v", tp.ValueKind(idx))
	}
}

func TestFlowCollections(t *testing.T) {
	s := includeAll(t)
	doc := "point: {x: 1, y: 2}\nlist: [1, 2, 3]\n"
	tp, err := Parse([]byte(doc), s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	idx, ok := tp.ResolvePath(0, schema.Root().Key("point").Key("y"))
	if !ok || string(tp.Text(idx)) != "2" {
		t.Fatalf("point.y mismatch")
	}
	idx, ok = tp.ResolvePath(0, schema.Root().Key("list").Index(2))
	if !ok || string(tp.Text(idx)) != "3" {
		t.Fatalf("list[2] mismatch")
	}
}

func TestSelectiveSchemaSkipsSiblingBlock(t *testing.T) {
	s, err := schema.Compile([]string{"$.wanted"}, schema.Include)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	doc := "wanted:\n  x: 1\nignored:\n  y: 2\n  z: 3\n"
	tp, err := Parse([]byte(doc), s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sawSkip := false
	for i := 0; i < tp.Len(); i++ {
		if tp.ValueKind(i) == tape.SkipMarker {
			sawSkip = true
		}
	}
	if !sawSkip {
		t.Fatalf("expected the 'ignored' block to be skipped")
	}
	idx, ok := tp.ResolvePath(0, schema.Root().Key("wanted").Key("x"))
	if !ok || string(tp.Text(idx)) != "1" {
		t.Fatalf("wanted.x mismatch")
	}
}

func TestTabInIndentationIsMalformed(t *testing.T) {
	s := includeAll(t)
	doc := "a:\n\tb: 1\n"
	if _, err := Parse([]byte(doc), s, Options{}); err == nil {
		t.Fatalf("expected a Malformed error for a tab in leading indentation")
	}
}

func TestLosslessRecordsAnchorAndAliasInSidecar(t *testing.T) {
	s := includeAll(t)
	doc := "base: &b\n  x: 1\nover: *b\n"
	tp, err := Parse([]byte(doc), s, Options{Alias: AliasPreserve, Lossless: true})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	baseIdx, ok := tp.ResolvePath(0, schema.Root().Key("base"))
	if !ok {
		t.Fatalf("expected $.base to resolve")
	}
	var anchor *tape.YAMLAnchorRecord
	for _, v := range tp.SidecarFor(baseIdx) {
		if a, ok := v.(tape.YAMLAnchorRecord); ok {
			anchor = &a
		}
	}
	if anchor == nil || anchor.Name != "b" {
		t.Fatalf("expected a YAMLAnchorRecord{Name: \"b\"} on $.base, got %v", anchor)
	}

	overIdx, ok := tp.ResolvePath(0, schema.Root().Key("over"))
	if !ok {
		t.Fatalf("expected $.over to resolve")
	}
	var alias *tape.YAMLAliasRecord
	for _, v := range tp.SidecarFor(overIdx) {
		if a, ok := v.(tape.YAMLAliasRecord); ok {
			alias = &a
		}
	}
	if alias == nil || alias.Target != "b" {
		t.Fatalf("expected a YAMLAliasRecord{Target: \"b\"} on $.over, got %v", alias)
	}
}

func TestLosslessRejectsAliasResolve(t *testing.T) {
	s := includeAll(t)
	doc := "base: &b\n  x: 1\nover: *b\n"
	if _, err := Parse([]byte(doc), s, Options{Alias: AliasResolve, Lossless: true}); err == nil {
		t.Fatalf("expected Lossless+AliasResolve to be rejected")
	}
}

// TestDifferentialAgainstYAMLv3 cross-checks scalar decoding against
// gopkg.in/yaml.v3 for a fully-included schema.
func TestDifferentialAgainstYAMLv3(t *testing.T) {
	doc := "name: widget\ncount: 3\nactive: true\n"
	var want map[string]any
	if err := stdyaml.Unmarshal([]byte(doc), &want); err != nil {
		t.Fatalf("yaml.v3 Unmarshal: %v", err)
	}

	s := includeAll(t)
	tp, err := Parse([]byte(doc), s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	idx, ok := tp.ResolvePath(0, schema.Root().Key("name"))
	if !ok || string(tp.Text(idx)) != want["name"] {
		t.Fatalf("name mismatch against yaml.v3 decode")
	}
	idx, ok = tp.ResolvePath(0, schema.Root().Key("active"))
	if !ok || !tp.Bool(idx) {
		t.Fatalf("active mismatch against yaml.v3 decode")
	}
}
