// Package manifest loads project manifests: TOML files declaring the
// project's identity, its configurations with their dependencies, local
// subprojects, and explicit capability resolution rules.
package manifest

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/depsolve/pkg/errors"
	"github.com/matzehuels/depsolve/pkg/metadata"
	"github.com/matzehuels/depsolve/pkg/module"
	"github.com/matzehuels/depsolve/pkg/resolve"
)

// DefaultFileName is the manifest file looked for when none is given.
const DefaultFileName = "depsolve.toml"

// File is a parsed project manifest.
type File struct {
	Project Project `toml:"project"`

	// Configurations maps configuration names to their dependency sets.
	Configurations map[string]Configuration `toml:"configurations"`

	// Subprojects are project-local modules resolvable without a registry.
	Subprojects []Subproject `toml:"subproject"`

	// CapabilityRules maps a capability identifier ("group:name") to the
	// module ("group:name") chosen when that capability is contested.
	CapabilityRules map[string]string `toml:"capability_rules"`
}

// Project identifies the root module.
type Project struct {
	Group   string `toml:"group"`
	Name    string `toml:"name"`
	Version string `toml:"version"`

	// Capabilities the project itself provides, as "group:name:version".
	Capabilities []string `toml:"capabilities"`
}

// Configuration is one named dependency scope.
type Configuration struct {
	Dependencies []Dependency `toml:"dependency"`
}

// Dependency is a single declared dependency.
type Dependency struct {
	Group   string `toml:"group"`
	Name    string `toml:"name"`
	Version string `toml:"version"`

	// Project marks a project-local reference; the version is ignored.
	Project bool `toml:"project"`

	// Variant names the target variant; empty selects the default.
	Variant string `toml:"variant"`

	// Capability requires the target to provide this capability,
	// as "group:name" or "group:name:version".
	Capability string `toml:"capability"`

	// Exclude lists "group:name" patterns pruned from the subtree below
	// this edge. Either part may be "*".
	Exclude []string `toml:"exclude"`
}

// Subproject declares a project-local module with a flat dependency list.
type Subproject struct {
	Group   string `toml:"group"`
	Name    string `toml:"name"`
	Version string `toml:"version"`

	Capabilities []string     `toml:"capabilities"`
	Dependencies []Dependency `toml:"dependency"`
}

// Load reads and validates a manifest file.
func Load(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse %s", path)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Parse decodes a manifest from TOML source text.
func Parse(data string) (*File, error) {
	var f File
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse manifest")
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	if f.Project.Name == "" {
		return errors.New(errors.ErrCodeInvalidManifest, "project.name is required")
	}
	if len(f.Configurations) == 0 {
		return errors.New(errors.ErrCodeInvalidManifest, "at least one configuration is required")
	}
	for name, cfg := range f.Configurations {
		for _, d := range cfg.Dependencies {
			if d.Name == "" {
				return errors.New(errors.ErrCodeInvalidManifest,
					"configuration %q has a dependency without a name", name)
			}
		}
	}
	for _, sp := range f.Subprojects {
		if sp.Name == "" {
			return errors.New(errors.ErrCodeInvalidManifest, "subproject without a name")
		}
	}
	return nil
}

// Owner returns the root module's version identity.
func (f *File) Owner() module.VersionID {
	return module.VersionID{
		Module:  module.ID{Group: f.Project.Group, Name: f.Project.Name},
		Version: f.Project.Version,
	}
}

// Roots builds one resolvable root variant per configuration, sorted by
// configuration name.
func (f *File) Roots() ([]resolve.Configuration, error) {
	caps, err := parseCapabilities(f.Project.Capabilities)
	if err != nil {
		return nil, err
	}

	names := slices.Sorted(maps.Keys(f.Configurations))

	var configs []resolve.Configuration
	for _, name := range names {
		deps, err := parseDependencies(f.Configurations[name].Dependencies)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "configuration %q", name)
		}
		configs = append(configs, resolve.Configuration{
			Name: name,
			Root: &module.Variant{
				Name:         name,
				Owner:        f.Owner(),
				Dependencies: deps,
				Capabilities: caps,
			},
		})
	}
	return configs, nil
}

// Register adds every subproject to the source so that project-local
// selectors resolve against it.
func (f *File) Register(src *metadata.Memory) error {
	for _, sp := range f.Subprojects {
		caps, err := parseCapabilities(sp.Capabilities)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidManifest, err, "subproject %q", sp.Name)
		}
		deps, err := parseDependencies(sp.Dependencies)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidManifest, err, "subproject %q", sp.Name)
		}
		group := sp.Group
		if group == "" {
			group = f.Project.Group
		}
		src.Add(&module.Variant{
			Name: resolve.DefaultVariant,
			Owner: module.VersionID{
				Module:  module.ID{Group: group, Name: sp.Name},
				Version: sp.Version,
			},
			Dependencies: deps,
			Capabilities: caps,
		})
	}
	return nil
}

// Policy translates the manifest's capability rules into a resolution
// policy. Without rules the default reject-all policy applies.
func (f *File) Policy() (resolve.Policy, error) {
	if len(f.CapabilityRules) == 0 {
		return resolve.RejectAll(), nil
	}

	rules := make(map[module.CapabilityID]module.ID, len(f.CapabilityRules))
	for capStr, modStr := range f.CapabilityRules {
		cap, err := module.ParseCapability(capStr)
		if err != nil {
			return resolve.Policy{}, errors.Wrap(errors.ErrCodeInvalidManifest, err, "capability rule %q", capStr)
		}
		id, err := parseModuleID(modStr)
		if err != nil {
			return resolve.Policy{}, errors.Wrap(errors.ErrCodeInvalidManifest, err, "capability rule %q", capStr)
		}
		rules[cap.ID()] = id
	}
	return resolve.ExplicitRules(rules), nil
}

func parseDependencies(deps []Dependency) ([]module.Dependency, error) {
	var out []module.Dependency
	for _, d := range deps {
		dep := module.Dependency{
			Target: module.Selector{
				Module:  module.ID{Group: d.Group, Name: d.Name},
				Version: d.Version,
				Project: d.Project,
			},
			Variant: d.Variant,
		}
		if d.Capability != "" {
			cap, err := module.ParseCapability(d.Capability)
			if err != nil {
				return nil, err
			}
			dep.RequestedCapability = &cap
		}
		for _, pattern := range d.Exclude {
			excl, err := parseExclusion(pattern)
			if err != nil {
				return nil, err
			}
			dep.Exclusions = append(dep.Exclusions, excl)
		}
		out = append(out, dep)
	}
	return out, nil
}

func parseCapabilities(specs []string) ([]module.Capability, error) {
	var caps []module.Capability
	for _, s := range specs {
		c, err := module.ParseCapability(s)
		if err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, nil
}

func parseExclusion(pattern string) (module.Exclusion, error) {
	parts := strings.Split(pattern, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return module.Exclusion{}, fmt.Errorf("exclusion %q must be \"group:name\"", pattern)
	}
	return module.Exclusion{Group: parts[0], Name: parts[1]}, nil
}

func parseModuleID(s string) (module.ID, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || parts[1] == "" {
		return module.ID{}, fmt.Errorf("module %q must be \"group:name\"", s)
	}
	return module.ID{Group: parts[0], Name: parts[1]}, nil
}
