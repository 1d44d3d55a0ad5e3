package resolve

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/depsolve/pkg/metadata"
	"github.com/matzehuels/depsolve/pkg/module"
)

func mid(group, name string) module.ID {
	return module.ID{Group: group, Name: name}
}

func owner(group, name, version string) module.VersionID {
	return module.VersionID{Module: mid(group, name), Version: version}
}

func depOn(group, name, version string) module.Dependency {
	return module.Dependency{Target: module.Selector{Module: mid(group, name), Version: version}}
}

func publish(src *metadata.Memory, ow module.VersionID, caps []module.Capability, deps ...module.Dependency) {
	src.Add(&module.Variant{Name: "runtime", Owner: ow, Dependencies: deps, Capabilities: caps})
}

func appRoot(deps ...module.Dependency) *module.Variant {
	return &module.Variant{Name: "runtime", Owner: owner("test", "app", "1.0"), Dependencies: deps}
}

func nodeIDs(res *Result) []string {
	var ids []string
	for _, n := range res.Graph.Nodes() {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestResolveSimpleChain(t *testing.T) {
	src := metadata.NewMemory()
	publish(src, owner("org", "a", "1.0"), nil, depOn("org", "b", "1.0"))
	publish(src, owner("org", "b", "1.0"), nil)

	res, err := New(src, Options{}).Resolve(context.Background(), appRoot(depOn("org", "a", "1.0")))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if res.Status != StatusSuccess {
		t.Fatalf("status = %v, want success (cause: %s)", res.Status, res.FailureCause())
	}
	if len(res.Conflicts) != 0 {
		t.Errorf("expected no conflicts, got %d", len(res.Conflicts))
	}
	if res.RootID != "test:app:1.0/runtime" {
		t.Errorf("root ID = %q", res.RootID)
	}
	if res.RunID == "" {
		t.Error("expected a run ID")
	}
	if res.Err() != nil {
		t.Errorf("Err() = %v on success", res.Err())
	}

	want := []string{"org:a:1.0/runtime", "org:b:1.0/runtime", "test:app:1.0/runtime"}
	if got := nodeIDs(res); !reflect.DeepEqual(got, want) {
		t.Errorf("nodes = %v, want %v", got, want)
	}
	if got := res.Graph.Children("org:a:1.0/runtime"); !reflect.DeepEqual(got, []string{"org:b:1.0/runtime"}) {
		t.Errorf("children of a = %v", got)
	}
}

func TestResolveDiamond(t *testing.T) {
	src := metadata.NewMemory()
	publish(src, owner("org", "a", "1.0"), nil, depOn("org", "c", "1.0"))
	publish(src, owner("org", "b", "1.0"), nil, depOn("org", "c", "1.0"))
	publish(src, owner("org", "c", "1.0"), nil)

	res, err := New(src, Options{}).Resolve(context.Background(),
		appRoot(depOn("org", "a", "1.0"), depOn("org", "b", "1.0")))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if res.Status != StatusSuccess {
		t.Fatalf("status = %v (cause: %s)", res.Status, res.FailureCause())
	}
	if got := len(nodeIDs(res)); got != 4 {
		t.Fatalf("expected 4 nodes, got %d: %v", got, nodeIDs(res))
	}
	parents := res.Graph.Parents("org:c:1.0/runtime")
	if len(parents) != 2 {
		t.Errorf("expected c to have 2 parents, got %v", parents)
	}
}

func TestResolveVersionConflict(t *testing.T) {
	src := metadata.NewMemory()
	publish(src, owner("org", "x", "1.0"), nil)
	publish(src, owner("org", "x", "2.0"), nil)
	publish(src, owner("org", "y", "1.0"), nil, depOn("org", "x", "2.0"))

	res, err := New(src, Options{}).Resolve(context.Background(),
		appRoot(depOn("org", "x", "1.0"), depOn("org", "y", "1.0")))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if res.Status != StatusSuccess {
		t.Fatalf("status = %v (cause: %s)", res.Status, res.FailureCause())
	}
	if _, ok := res.Graph.Node("org:x:1.0/runtime"); ok {
		t.Error("losing version org:x:1.0 still in graph")
	}
	if _, ok := res.Graph.Node("org:x:2.0/runtime"); !ok {
		t.Fatal("winning version org:x:2.0 missing from graph")
	}

	if len(res.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(res.Conflicts))
	}
	c := res.Conflicts[0]
	if c.Kind != KindVersion {
		t.Fatalf("conflict kind = %v", c.Kind)
	}
	if !c.Resolved || c.Winner != "org:x:2.0/runtime" {
		t.Errorf("resolved = %v, winner = %q", c.Resolved, c.Winner)
	}
	if c.Module != mid("org", "x") {
		t.Errorf("conflict module = %v", c.Module)
	}
	if want := []string{"1.0", "2.0"}; !reflect.DeepEqual(c.RequestedVersions, want) {
		t.Errorf("requested versions = %v, want %v", c.RequestedVersions, want)
	}

	// Both the root's original request and y's request must point at the
	// surviving node, with the original requested versions intact.
	froms := make(map[string]string)
	for _, e := range res.Graph.EdgesTo("org:x:2.0/runtime") {
		froms[e.From] = e.RequestedVersion
	}
	if froms["test:app:1.0/runtime"] != "1.0" {
		t.Errorf("root edge requested version = %q, want 1.0", froms["test:app:1.0/runtime"])
	}
	if froms["org:y:1.0/runtime"] != "2.0" {
		t.Errorf("y edge requested version = %q, want 2.0", froms["org:y:1.0/runtime"])
	}
}

func TestResolveCapabilityConflictMessage(t *testing.T) {
	cap := module.Capability{Group: "org", Name: "capability", Version: "1.0"}

	src := metadata.NewMemory()
	publish(src, owner("test", "b", ""), []module.Capability{cap})

	root := &module.Variant{
		Name:         "runtime",
		Owner:        module.VersionID{Module: mid("", "test")},
		Capabilities: []module.Capability{cap},
		Dependencies: []module.Dependency{depOn("test", "b", "")},
	}

	res, err := New(src, Options{}).Resolve(context.Background(), root)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if res.Status != StatusFailure {
		t.Fatal("expected failure for unresolved capability conflict")
	}
	unresolved := res.Unresolved()
	if len(unresolved) != 1 || unresolved[0].Kind != KindCapability {
		t.Fatalf("unresolved = %+v", unresolved)
	}

	want := "Cannot choose between :test:unspecified and test:b:unspecified because they provide the same capability: org:capability:1.0"
	if got := unresolved[0].Description(); got != want {
		t.Errorf("description:\n got %q\nwant %q", got, want)
	}

	if err := res.Err(); err == nil {
		t.Error("Err() = nil on failure")
	} else if !strings.Contains(err.Error(), want) {
		t.Errorf("Err() = %q, missing conflict description", err)
	}
}

func TestResolveCycle(t *testing.T) {
	src := metadata.NewMemory()
	publish(src, owner("org", "a", "1.0"), nil, depOn("org", "b", "1.0"))
	publish(src, owner("org", "b", "1.0"), nil, depOn("org", "a", "1.0"))

	res, err := New(src, Options{}).Resolve(context.Background(), appRoot(depOn("org", "a", "1.0")))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if res.Status != StatusFailure {
		t.Fatal("expected failure for dependency cycle")
	}
	unresolved := res.Unresolved()
	if len(unresolved) != 1 || unresolved[0].Kind != KindCycle {
		t.Fatalf("unresolved = %+v", unresolved)
	}

	want := "Circular dependency: org:a:1.0 -> org:b:1.0 -> org:a:1.0"
	if got := unresolved[0].Description(); got != want {
		t.Errorf("description = %q, want %q", got, want)
	}

	// The closing edge is reported, never added.
	if got := res.Graph.Children("org:b:1.0/runtime"); len(got) != 0 {
		t.Errorf("b should have no children, got %v", got)
	}
}

func TestResolveCapabilityPolicy(t *testing.T) {
	logging := module.CapabilityID{Group: "org", Name: "logging"}

	build := func(cVersion, dVersion string) *metadata.Memory {
		src := metadata.NewMemory()
		publish(src, owner("org", "c", "1.0"),
			[]module.Capability{{Group: "org", Name: "logging", Version: cVersion}})
		publish(src, owner("org", "d", "1.0"),
			[]module.Capability{{Group: "org", Name: "logging", Version: dVersion}})
		return src
	}
	root := func() *module.Variant {
		return appRoot(depOn("org", "c", "1.0"), depOn("org", "d", "1.0"))
	}

	t.Run("ExplicitRule", func(t *testing.T) {
		opts := Options{Policy: ExplicitRules(map[module.CapabilityID]module.ID{
			logging: mid("org", "c"),
		})}
		res, err := New(build("1.0", "1.0"), opts).Resolve(context.Background(), root())
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if res.Status != StatusSuccess {
			t.Fatalf("status = %v (cause: %s)", res.Status, res.FailureCause())
		}
		if _, ok := res.Graph.Node("org:d:1.0/runtime"); ok {
			t.Error("losing provider org:d still in graph")
		}
		if len(res.Conflicts) != 1 || !res.Conflicts[0].Resolved {
			t.Fatalf("conflicts = %+v", res.Conflicts)
		}
		if res.Conflicts[0].Winner != "org:c:1.0/runtime" {
			t.Errorf("winner = %q", res.Conflicts[0].Winner)
		}
	})

	t.Run("HighestVersion", func(t *testing.T) {
		res, err := New(build("2.0", "1.0"), Options{Policy: HighestVersion()}).
			Resolve(context.Background(), root())
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if res.Status != StatusSuccess {
			t.Fatalf("status = %v (cause: %s)", res.Status, res.FailureCause())
		}
		if res.Conflicts[0].Winner != "org:c:1.0/runtime" {
			t.Errorf("winner = %q", res.Conflicts[0].Winner)
		}
	})

	t.Run("HighestVersionTie", func(t *testing.T) {
		res, err := New(build("1.0", "1.0"), Options{Policy: HighestVersion()}).
			Resolve(context.Background(), root())
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if res.Status != StatusFailure {
			t.Error("tied capability versions must stay unresolved")
		}
	})

	t.Run("RejectAllDefault", func(t *testing.T) {
		res, err := New(build("1.0", "2.0"), Options{}).Resolve(context.Background(), root())
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if res.Status != StatusFailure {
			t.Error("default policy must not pick a winner")
		}
	})
}

func TestResolveSelectorConflict(t *testing.T) {
	src := metadata.NewMemory()

	res, err := New(src, Options{}).Resolve(context.Background(), appRoot(depOn("org", "missing", "1.0")))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if res.Status != StatusFailure {
		t.Fatal("expected failure for unknown module")
	}
	unresolved := res.Unresolved()
	if len(unresolved) != 1 || unresolved[0].Kind != KindSelector {
		t.Fatalf("unresolved = %+v", unresolved)
	}
	want := "Could not resolve org:missing:1.0 (required by test:app:1.0)"
	if got := unresolved[0].Description(); got != want {
		t.Errorf("description = %q, want %q", got, want)
	}
}

func TestResolveRequestedCapabilityMissing(t *testing.T) {
	src := metadata.NewMemory()
	publish(src, owner("org", "a", "1.0"), nil)

	d := depOn("org", "a", "1.0")
	d.RequestedCapability = &module.Capability{Group: "org", Name: "special", Version: "1.0"}

	res, err := New(src, Options{}).Resolve(context.Background(), appRoot(d))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if res.Status != StatusFailure {
		t.Fatal("expected failure when requested capability is not provided")
	}
	unresolved := res.Unresolved()
	if len(unresolved) != 1 || unresolved[0].Kind != KindSelector {
		t.Fatalf("unresolved = %+v", unresolved)
	}
	if got := unresolved[0].Reason; got != "no variant provides capability org:special" {
		t.Errorf("reason = %q", got)
	}
}

func TestResolveExclusions(t *testing.T) {
	src := metadata.NewMemory()
	publish(src, owner("org", "a", "1.0"), nil, depOn("org", "b", "1.0"))
	publish(src, owner("org", "b", "1.0"), nil)

	d := depOn("org", "a", "1.0")
	d.Exclusions = []module.Exclusion{{Group: "org", Name: "b"}}

	res, err := New(src, Options{}).Resolve(context.Background(), appRoot(d))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if res.Status != StatusSuccess {
		t.Fatalf("status = %v (cause: %s)", res.Status, res.FailureCause())
	}
	if _, ok := res.Graph.Node("org:b:1.0/runtime"); ok {
		t.Error("excluded module org:b still in graph")
	}
}

func TestResolveDeterminism(t *testing.T) {
	src := metadata.NewMemory()
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		publish(src, owner("org", name, "1.0"), nil, depOn("org", "shared", "1.0"))
	}
	publish(src, owner("org", "shared", "1.0"), nil)
	publish(src, owner("org", "shared", "2.0"), nil)
	publish(src, owner("org", "f", "1.0"), nil, depOn("org", "shared", "2.0"))

	root := appRoot(
		depOn("org", "a", "1.0"), depOn("org", "b", "1.0"), depOn("org", "c", "1.0"),
		depOn("org", "d", "1.0"), depOn("org", "e", "1.0"), depOn("org", "f", "1.0"),
	)

	eng := New(src, Options{Workers: 4})
	first, err := eng.Resolve(context.Background(), root)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		next, err := eng.Resolve(context.Background(), root)
		if err != nil {
			t.Fatalf("Resolve failed on run %d: %v", i, err)
		}
		if !reflect.DeepEqual(nodeIDs(next), nodeIDs(first)) {
			t.Fatalf("run %d nodes differ: %v vs %v", i, nodeIDs(next), nodeIDs(first))
		}
		if !reflect.DeepEqual(next.Graph.Edges(), first.Graph.Edges()) {
			t.Fatalf("run %d edges differ", i)
		}
		if !reflect.DeepEqual(next.Conflicts, first.Conflicts) {
			t.Fatalf("run %d conflicts differ: %+v vs %+v", i, next.Conflicts, first.Conflicts)
		}
	}
}

func TestResolveAll(t *testing.T) {
	src := metadata.NewMemory()
	publish(src, owner("org", "a", "1.0"), nil)

	configs := []Configuration{
		{Name: "compile", Root: appRoot(depOn("org", "a", "1.0"))},
		{Name: "runtime", Root: appRoot(depOn("org", "missing", "1.0"))},
	}

	results, err := New(src, Options{}).ResolveAll(context.Background(), configs)
	if err != nil {
		t.Fatalf("ResolveAll failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Configuration != "compile" || results[0].Status != StatusSuccess {
		t.Errorf("compile result = %s/%v", results[0].Configuration, results[0].Status)
	}
	if results[1].Configuration != "runtime" || results[1].Status != StatusFailure {
		t.Errorf("runtime result = %s/%v", results[1].Configuration, results[1].Status)
	}
}

// stallingSource blocks every selector lookup until its context is
// cancelled, simulating a hung repository.
type stallingSource struct {
	started chan struct{}
	once    sync.Once
}

func (s *stallingSource) ResolveSelector(ctx context.Context, sel module.Selector) (module.VersionID, error) {
	s.once.Do(func() { close(s.started) })
	<-ctx.Done()
	return module.VersionID{}, ctx.Err()
}

func (s *stallingSource) Variant(ctx context.Context, owner module.VersionID, name string) (*module.Variant, error) {
	return nil, ctx.Err()
}

func TestResolveCancelDuringTraversal(t *testing.T) {
	src := &stallingSource{started: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// More pending dependencies than workers, so dispatch goroutines are
	// still queued behind a full jobs channel when the run is cancelled.
	var deps []module.Dependency
	for i := range 10 {
		deps = append(deps, depOn("org", fmt.Sprintf("m%d", i), "1.0"))
	}

	var (
		res  *Result
		err  error
		done = make(chan struct{})
	)
	go func() {
		defer close(done)
		res, err = New(src, Options{Workers: 1}).Resolve(ctx, appRoot(deps...))
	}()

	<-src.started
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Resolve did not return after cancellation")
	}

	if err == nil {
		t.Fatalf("expected an error, got %+v", res)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
