package metadata

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/depsolve/pkg/errors"
	"github.com/matzehuels/depsolve/pkg/module"
)

// FileStore is a Source backed by a directory of TOML module descriptors,
// acting as a local repository. Every *.toml file below the root directory
// is read once at construction; lookups afterwards are in-memory and
// concurrency-safe.
type FileStore struct {
	dir   string
	store *Memory
}

// descriptorFile is the on-disk TOML shape of a module descriptor.
type descriptorFile struct {
	Group   string              `toml:"group"`
	Name    string              `toml:"name"`
	Version string              `toml:"version"`
	Variant []descriptorVariant `toml:"variant"`
}

type descriptorVariant struct {
	Name         string                 `toml:"name"`
	Capabilities []string               `toml:"capabilities"`
	Dependency   []descriptorDependency `toml:"dependency"`
}

type descriptorDependency struct {
	Group      string   `toml:"group"`
	Name       string   `toml:"name"`
	Version    string   `toml:"version"`
	Variant    string   `toml:"variant"`
	Project    bool     `toml:"project"`
	Exclude    []string `toml:"exclude"`
	Capability string   `toml:"capability"`
}

// NewFileStore loads every module descriptor below dir.
// Descriptors that fail to parse abort loading with an INVALID_MANIFEST error
// naming the offending file.
func NewFileStore(dir string) (*FileStore, error) {
	fsr := &FileStore{dir: dir, store: NewMemory()}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".toml") {
			return nil
		}
		return fsr.loadDescriptor(path)
	})
	if err != nil {
		return nil, err
	}
	return fsr, nil
}

// Dir returns the descriptor root directory.
func (f *FileStore) Dir() string { return f.dir }

// ResolveSelector implements Source.
func (f *FileStore) ResolveSelector(ctx context.Context, sel module.Selector) (module.VersionID, error) {
	return f.store.ResolveSelector(ctx, sel)
}

// Variant implements Source.
func (f *FileStore) Variant(ctx context.Context, owner module.VersionID, name string) (*module.Variant, error) {
	return f.store.Variant(ctx, owner, name)
}

func (f *FileStore) loadDescriptor(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var desc descriptorFile
	if err := toml.Unmarshal(data, &desc); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse descriptor %s", path)
	}
	if desc.Name == "" {
		return errors.New(errors.ErrCodeInvalidManifest, "descriptor %s: missing module name", path)
	}

	owner := module.VersionID{
		Module:  module.ID{Group: desc.Group, Name: desc.Name},
		Version: desc.Version,
	}

	variants := desc.Variant
	if len(variants) == 0 {
		// A descriptor without variants publishes a single empty default.
		variants = []descriptorVariant{{Name: "runtime"}}
	}

	for _, dv := range variants {
		v, err := dv.toVariant(owner, path)
		if err != nil {
			return err
		}
		f.store.Add(v)
	}
	return nil
}

func (dv descriptorVariant) toVariant(owner module.VersionID, path string) (*module.Variant, error) {
	name := dv.Name
	if name == "" {
		name = "runtime"
	}
	v := &module.Variant{Name: name, Owner: owner}

	for _, raw := range dv.Capabilities {
		c, err := module.ParseCapability(raw)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "descriptor %s variant %s", path, name)
		}
		v.Capabilities = append(v.Capabilities, c)
	}

	for _, dd := range dv.Dependency {
		dep, err := dd.toDependency(path)
		if err != nil {
			return nil, err
		}
		v.Dependencies = append(v.Dependencies, dep)
	}
	return v, nil
}

func (dd descriptorDependency) toDependency(path string) (module.Dependency, error) {
	dep := module.Dependency{
		Target: module.Selector{
			Module:  module.ID{Group: dd.Group, Name: dd.Name},
			Version: dd.Version,
			Project: dd.Project,
		},
		Variant: dd.Variant,
	}

	for _, raw := range dd.Exclude {
		parts := strings.SplitN(raw, ":", 2)
		if len(parts) != 2 {
			return module.Dependency{}, errors.New(errors.ErrCodeInvalidManifest,
				"descriptor %s: invalid exclusion %q, want group:name", path, raw)
		}
		dep.Exclusions = append(dep.Exclusions, module.Exclusion{Group: parts[0], Name: parts[1]})
	}

	if dd.Capability != "" {
		c, err := module.ParseCapability(dd.Capability)
		if err != nil {
			return module.Dependency{}, errors.Wrap(errors.ErrCodeInvalidManifest, err, "descriptor %s", path)
		}
		dep.RequestedCapability = &c
	}
	return dep, nil
}
