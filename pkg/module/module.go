// Package module defines the identity model for dependency resolution:
// module coordinates, versions, variants, capabilities, and dependency
// declarations. These types are plain values shared by the metadata layer
// and the resolution engine.
package module

import (
	"fmt"
	"strings"
)

// UnspecifiedVersion is rendered in place of an empty version string.
// Root projects commonly have no version until one is assigned at publish time.
const UnspecifiedVersion = "unspecified"

// ID identifies a module by its (group, name) coordinates.
// The group may be empty for root projects.
type ID struct {
	Group string
	Name  string
}

// String renders the ID as "group:name". An empty group yields ":name".
func (id ID) String() string {
	return id.Group + ":" + id.Name
}

// VersionID identifies a concrete released version of a module.
type VersionID struct {
	Module  ID
	Version string
}

// String renders the identity as "group:name:version", substituting
// "unspecified" when no version is set. A root project without a group
// renders as ":name:unspecified".
func (v VersionID) String() string {
	version := v.Version
	if version == "" {
		version = UnspecifiedVersion
	}
	return v.Module.String() + ":" + version
}

// CapabilityID identifies a capability group: the (group, name) pair without
// the version. Two variants conflict when they expose the same CapabilityID,
// regardless of the versions attached.
type CapabilityID struct {
	Group string
	Name  string
}

// String renders the identifier as "group:name".
func (c CapabilityID) String() string {
	return c.Group + ":" + c.Name
}

// Capability is a versioned claim of what a variant provides.
type Capability struct {
	Group   string
	Name    string
	Version string
}

// ID returns the version-less capability identifier used for conflict grouping.
func (c Capability) ID() CapabilityID {
	return CapabilityID{Group: c.Group, Name: c.Name}
}

// String renders the capability as "group:name:version".
func (c Capability) String() string {
	version := c.Version
	if version == "" {
		version = UnspecifiedVersion
	}
	return c.Group + ":" + c.Name + ":" + version
}

// ParseCapability parses "group:name:version" notation. The version part is
// optional; "group:name" parses with an empty version.
func ParseCapability(s string) (Capability, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2:
		return Capability{Group: parts[0], Name: parts[1]}, nil
	case 3:
		return Capability{Group: parts[0], Name: parts[1], Version: parts[2]}, nil
	default:
		return Capability{}, fmt.Errorf("invalid capability notation %q", s)
	}
}

// Selector requests a module from the metadata source. Either a published
// module at a specific version (or version range), or a project-local module
// identified by name alone.
type Selector struct {
	Module  ID
	Version string // exact version or range expression; empty for projects
	Project bool   // project-local reference, resolved without version matching
}

// String renders the selector for diagnostics and visited-set keys.
func (s Selector) String() string {
	if s.Project {
		return "project " + s.Module.String()
	}
	return s.Module.String() + ":" + s.Version
}

// Exclusion prunes transitive edges during traversal. An empty or "*" field
// matches any value.
type Exclusion struct {
	Group string
	Name  string
}

// Matches reports whether the exclusion applies to the given module.
func (e Exclusion) Matches(id ID) bool {
	return matchPart(e.Group, id.Group) && matchPart(e.Name, id.Name)
}

func matchPart(pattern, value string) bool {
	return pattern == "" || pattern == "*" || pattern == value
}

// Dependency is a single declared edge from a variant to a target selector.
type Dependency struct {
	Target     Selector
	Exclusions []Exclusion

	// Variant names which variant of the target to select.
	// Empty means the resolver's configured default.
	Variant string

	// RequestedCapability constrains which capability of the target this
	// dependency is asking for. Nil means the target's default capability.
	RequestedCapability *Capability
}

// Excludes reports whether any of the dependency's exclusion rules match id.
func (d Dependency) Excludes(id ID) bool {
	for _, e := range d.Exclusions {
		if e.Matches(id) {
			return true
		}
	}
	return false
}

// Variant is a named configuration of a concrete module version. It owns the
// outgoing dependency declarations and the declared capability set.
type Variant struct {
	Name         string
	Owner        VersionID
	Dependencies []Dependency

	// Capabilities is the explicitly declared set. When empty, the variant
	// exposes the implicit default capability derived from its owner.
	Capabilities []Capability
}

// EffectiveCapabilities returns the declared capability set, or the implicit
// default (the owner's own coordinates) when nothing is declared explicitly.
// Explicit declarations replace the default entirely.
func (v *Variant) EffectiveCapabilities() []Capability {
	if len(v.Capabilities) > 0 {
		caps := make([]Capability, len(v.Capabilities))
		copy(caps, v.Capabilities)
		return caps
	}
	return []Capability{{
		Group:   v.Owner.Module.Group,
		Name:    v.Owner.Module.Name,
		Version: v.Owner.Version,
	}}
}
