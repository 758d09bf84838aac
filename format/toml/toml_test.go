package toml

import (
	"testing"

	gotoml "github.com/pelletier/go-toml/v2"

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

func TestTopLevelKeys(t *testing.T) {
	s := includeAll(t)
	doc := "title = \"demo\"\ncount = 3\nenabled = true\n"
	tp, err := Parse([]byte(doc), s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	idx, ok := tp.ResolvePath(0, schema.Root().Key("title"))
	if !ok || string(tp.Text(idx)) != "demo" {
		t.Fatalf("title mismatch")
	}
}

func TestOutOfOrderTableHeaders(t *testing.T) {
	s := includeAll(t)
	doc := "[a.c]\nz = 1\n\n[a.b]\ny = 2\n"
	tp, err := Parse([]byte(doc), s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	idx, ok := tp.ResolvePath(0, schema.Root().Key("a").Key("c").Key("z"))
	if !ok || string(tp.Text(idx)) != "1" {
		t.Fatalf("a.c.z mismatch")
	}
	idx, ok = tp.ResolvePath(0, schema.Root().Key("a").Key("b").Key("y"))
	if !ok || string(tp.Text(idx)) != "2" {
		t.Fatalf("a.b.y mismatch")
	}
}

func TestRedeclaredTableHeaderIsMalformed(t *testing.T) {
	s := includeAll(t)
	doc := "[a]\nx = 1\n\n[a]\ny = 2\n"
	if _, err := Parse([]byte(doc), s, Options{}); err == nil {
		t.Fatalf("expected an error for a table header declared twice")
	}
}

func TestDottedKeysBuildNestedTable(t *testing.T) {
	s := includeAll(t)
	doc := "a.b.c = 1\na.b.d = 2\n"
	tp, err := Parse([]byte(doc), s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	idx, ok := tp.ResolvePath(0, schema.Root().Key("a").Key("b").Key("d"))
	if !ok || string(tp.Text(idx)) != "2" {
		t.Fatalf("a.b.d mismatch")
	}
}

func TestArrayOfTables(t *testing.T) {
	s := includeAll(t)
	doc := "[[servers]]\nname = \"alpha\"\n\n[[servers]]\nname = \"beta\"\n"
	tp, err := Parse([]byte(doc), s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	idx, ok := tp.ResolvePath(0, schema.Root().Key("servers").Index(1).Key("name"))
	if !ok || string(tp.Text(idx)) != "beta" {
		t.Fatalf("servers[1].name mismatch")
	}
}

func TestInlineTableAndArray(t *testing.T) {
	s := includeAll(t)
	doc := "point = {x = 1, y = 2}\nlist = [1, 2, 3]\n"
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

func TestSelectiveSchemaSkipsTable(t *testing.T) {
	s, err := schema.Compile([]string{"$.wanted"}, schema.Include)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	doc := "[wanted]\nx = 1\n\n[ignored]\ny = 2\n"
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
		t.Fatalf("expected the 'ignored' table to be skipped")
	}
}

// TestDifferentialAgainstGoToml cross-checks scalar decoding against
// github.com/pelletier/go-toml/v2 for a fully-included schema.
func TestDifferentialAgainstGoToml(t *testing.T) {
	doc := "title = \"demo\"\ncount = 3\n"
	var want map[string]any
	if err := gotoml.Unmarshal([]byte(doc), &want); err != nil {
		t.Fatalf("go-toml Unmarshal: %v", err)
	}

	s := includeAll(t)
	tp, err := Parse([]byte(doc), s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	idx, ok := tp.ResolvePath(0, schema.Root().Key("title"))
	if !ok || string(tp.Text(idx)) != want["title"] {
		t.Fatalf("title mismatch against go-toml decode")
	}
}
