package report

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/matzehuels/depsolve/pkg/metadata"
	"github.com/matzehuels/depsolve/pkg/module"
	"github.com/matzehuels/depsolve/pkg/resolve"
)

func fixtureResult(t *testing.T) *resolve.Result {
	t.Helper()

	src := metadata.NewMemory()
	add := func(group, name, version string, deps ...module.Dependency) {
		src.Add(&module.Variant{
			Name:         "runtime",
			Owner:        module.VersionID{Module: module.ID{Group: group, Name: name}, Version: version},
			Dependencies: deps,
		})
	}
	dep := func(group, name, version string) module.Dependency {
		return module.Dependency{Target: module.Selector{
			Module: module.ID{Group: group, Name: name}, Version: version,
		}}
	}

	add("org", "x", "1.0")
	add("org", "x", "2.0")
	add("org", "y", "1.0", dep("org", "x", "2.0"))

	root := &module.Variant{
		Name:         "runtime",
		Owner:        module.VersionID{Module: module.ID{Group: "test", Name: "app"}, Version: "1.0"},
		Dependencies: []module.Dependency{dep("org", "x", "1.0"), dep("org", "y", "1.0")},
	}

	res, err := resolve.New(src, resolve.Options{}).Resolve(context.Background(), root)
	if err != nil {
		t.Fatalf("fixture resolve failed: %v", err)
	}
	if res.Status != resolve.StatusSuccess {
		t.Fatalf("fixture did not resolve: %s", res.FailureCause())
	}
	return res
}

func TestRender(t *testing.T) {
	res := fixtureResult(t)
	out := Render(res, Options{})

	for _, want := range []string{
		"RESOLVED test:app:1.0",
		"3 modules",
		"Conflicts",
		"selected version 2.0",
		"[resolved]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTree(t *testing.T) {
	res := fixtureResult(t)
	out := Tree(res)

	want := strings.Join([]string{
		"test:app:1.0",
		"├── org:x:2.0 (requested 1.0)",
		"└── org:y:1.0",
		"    └── org:x:2.0 (*)",
		"",
	}, "\n")
	if out != want {
		t.Errorf("tree:\n%s\nwant:\n%s", out, want)
	}
}

func TestToDOT(t *testing.T) {
	res := fixtureResult(t)
	dot := ToDOT(res)

	if !strings.HasPrefix(dot, "digraph dependencies {") {
		t.Fatalf("unexpected preamble:\n%s", dot)
	}
	for _, want := range []string{
		`"test:app:1.0/runtime"`,
		`"org:x:2.0/runtime"`,
		`fillcolor=lightblue`,
		`"test:app:1.0/runtime" -> "org:x:2.0/runtime" [label="requested 1.0", style=dashed];`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
	if strings.Contains(dot, "org:x:1.0/runtime") {
		t.Error("DOT contains removed losing node")
	}
}

func TestWriteJSON(t *testing.T) {
	res := fixtureResult(t)

	var buf bytes.Buffer
	if err := WriteJSON(&buf, res); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var doc Document
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if doc.Status != "success" || doc.Root != "test:app:1.0/runtime" {
		t.Errorf("document header = %+v", doc)
	}
	if len(doc.Modules) != 3 {
		t.Errorf("modules = %+v", doc.Modules)
	}
	if len(doc.Conflicts) != 1 || !doc.Conflicts[0].Resolved {
		t.Errorf("conflicts = %+v", doc.Conflicts)
	}
}
