package metadata

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/depsolve/pkg/cache"
	"github.com/matzehuels/depsolve/pkg/module"
)

func fixtureVariant(group, name, version string) *module.Variant {
	return &module.Variant{
		Name: "runtime",
		Owner: module.VersionID{
			Module:  module.ID{Group: group, Name: name},
			Version: version,
		},
	}
}

func TestMemoryResolveSelector(t *testing.T) {
	src := NewMemory()
	src.Add(fixtureVariant("org", "a", "1.0.0"))
	src.Add(fixtureVariant("org", "a", "1.2.0"))
	src.Add(fixtureVariant("org", "a", "2.0.0"))
	src.Add(fixtureVariant("com.acme", "lib", "0.1.0"))

	ctx := context.Background()

	tests := []struct {
		name    string
		sel     module.Selector
		want    string
		wantErr bool
	}{
		{
			name: "exact",
			sel:  module.Selector{Module: module.ID{Group: "org", Name: "a"}, Version: "1.2.0"},
			want: "1.2.0",
		},
		{
			name: "range selects highest",
			sel:  module.Selector{Module: module.ID{Group: "org", Name: "a"}, Version: ">=1.0.0 <2.0.0"},
			want: "1.2.0",
		},
		{
			name: "project ignores version",
			sel:  module.Selector{Module: module.ID{Group: "com.acme", Name: "lib"}, Project: true},
			want: "0.1.0",
		},
		{
			name:    "unknown module",
			sel:     module.Selector{Module: module.ID{Group: "org", Name: "nope"}, Version: "1.0.0"},
			wantErr: true,
		},
		{
			name:    "no matching version",
			sel:     module.Selector{Module: module.ID{Group: "org", Name: "a"}, Version: "9.9.9"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, err := src.ResolveSelector(ctx, tt.sel)
			if tt.wantErr {
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("err = %v, want ErrNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveSelector failed: %v", err)
			}
			if owner.Version != tt.want {
				t.Errorf("version = %q, want %q", owner.Version, tt.want)
			}
		})
	}
}

func TestMemoryVariantLookup(t *testing.T) {
	src := NewMemory()
	v := fixtureVariant("org", "a", "1.0.0")
	src.Add(v)

	got, err := src.Variant(context.Background(), v.Owner, "runtime")
	if err != nil {
		t.Fatalf("Variant failed: %v", err)
	}
	if got.Owner != v.Owner {
		t.Errorf("owner = %v", got.Owner)
	}

	if _, err := src.Variant(context.Background(), v.Owner, "api"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing variant err = %v, want ErrNotFound", err)
	}
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("commons-1.2.toml", `
group = "org.apache"
name = "commons"
version = "1.2"

[[variant]]
name = "runtime"
capabilities = ["org.apache:commons-io:1.2"]

[[variant.dependency]]
group = "org"
name = "base"
version = "1.0"
exclude = ["org:legacy"]
`)
	write("base-1.0.toml", `
group = "org"
name = "base"
version = "1.0"
`)

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	ctx := context.Background()
	owner, err := store.ResolveSelector(ctx, module.Selector{
		Module: module.ID{Group: "org.apache", Name: "commons"}, Version: "1.2",
	})
	if err != nil {
		t.Fatalf("ResolveSelector failed: %v", err)
	}

	v, err := store.Variant(ctx, owner, "runtime")
	if err != nil {
		t.Fatalf("Variant failed: %v", err)
	}
	if len(v.Capabilities) != 1 || v.Capabilities[0].ID().String() != "org.apache:commons-io" {
		t.Errorf("capabilities = %+v", v.Capabilities)
	}
	if len(v.Dependencies) != 1 || len(v.Dependencies[0].Exclusions) != 1 {
		t.Errorf("dependencies = %+v", v.Dependencies)
	}

	// Descriptor without variants publishes an empty default.
	if _, err := store.Variant(ctx, module.VersionID{
		Module: module.ID{Group: "org", Name: "base"}, Version: "1.0",
	}, "runtime"); err != nil {
		t.Errorf("default variant missing: %v", err)
	}
}

func TestFileStoreBadDescriptor(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.toml"), []byte("group = [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(dir); err == nil {
		t.Fatal("expected an error for a broken descriptor")
	}
}

// countingSource wraps Memory and counts variant fetches.
type countingSource struct {
	*Memory
	variantCalls int
}

func (c *countingSource) Variant(ctx context.Context, owner module.VersionID, name string) (*module.Variant, error) {
	c.variantCalls++
	return c.Memory.Variant(ctx, owner, name)
}

func TestCachedVariantLookups(t *testing.T) {
	inner := &countingSource{Memory: NewMemory()}
	v := fixtureVariant("org", "a", "1.0.0")
	inner.Add(v)

	cached := NewCached(inner, cache.NewMemoryCache())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := cached.Variant(ctx, v.Owner, "runtime")
		if err != nil {
			t.Fatalf("lookup %d failed: %v", i, err)
		}
		if got.Owner != v.Owner {
			t.Errorf("lookup %d owner = %v", i, got.Owner)
		}
	}
	if inner.variantCalls != 1 {
		t.Errorf("inner fetches = %d, want 1", inner.variantCalls)
	}
}

func TestCachedSelectorNeverCached(t *testing.T) {
	inner := &countingSource{Memory: NewMemory()}
	inner.Add(fixtureVariant("org", "a", "1.0.0"))

	cached := NewCached(inner, cache.NewMemoryCache())
	ctx := context.Background()
	sel := module.Selector{Module: module.ID{Group: "org", Name: "a"}, Version: ">=1.0.0"}

	if _, err := cached.ResolveSelector(ctx, sel); err != nil {
		t.Fatal(err)
	}

	// A newly published version must be visible immediately.
	inner.Add(fixtureVariant("org", "a", "2.0.0"))
	owner, err := cached.ResolveSelector(ctx, sel)
	if err != nil {
		t.Fatal(err)
	}
	if owner.Version != "2.0.0" {
		t.Errorf("version = %q, want 2.0.0", owner.Version)
	}
}

func TestChain(t *testing.T) {
	local := NewMemory()
	local.Add(fixtureVariant("com.acme", "lib", "0.1.0"))
	remote := NewMemory()
	remote.Add(fixtureVariant("org", "a", "1.0.0"))
	remote.Add(fixtureVariant("com.acme", "lib", "9.9.9"))

	chain := Chain(local, remote)
	ctx := context.Background()

	// Local shadows remote for the same identity.
	owner, err := chain.ResolveSelector(ctx, module.Selector{
		Module: module.ID{Group: "com.acme", Name: "lib"}, Project: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if owner.Version != "0.1.0" {
		t.Errorf("version = %q, local source should win", owner.Version)
	}

	// Fallthrough to the second source.
	if _, err := chain.ResolveSelector(ctx, module.Selector{
		Module: module.ID{Group: "org", Name: "a"}, Version: "1.0.0",
	}); err != nil {
		t.Errorf("fallthrough failed: %v", err)
	}

	if _, err := chain.ResolveSelector(ctx, module.Selector{
		Module: module.ID{Group: "org", Name: "nope"}, Version: "1.0.0",
	}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
