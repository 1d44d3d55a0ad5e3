package metadata

import (
	"context"
	"sync"

	semver "github.com/Masterminds/semver/v3"

	"github.com/matzehuels/depsolve/pkg/module"
)

// Memory is an in-memory Source. It backs project-local modules and test
// fixtures, and is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	variants map[string]*module.Variant // node key -> variant
	versions map[module.ID][]string     // published versions per module
}

// NewMemory creates an empty in-memory source.
func NewMemory() *Memory {
	return &Memory{
		variants: make(map[string]*module.Variant),
		versions: make(map[module.ID][]string),
	}
}

// Add registers a variant, publishing its owner version if new.
// Registering the same (owner, variant) pair twice replaces the earlier entry.
func (m *Memory) Add(v *module.Variant) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := variantKey(v.Owner, v.Name)
	m.variants[key] = v

	id := v.Owner.Module
	for _, existing := range m.versions[id] {
		if existing == v.Owner.Version {
			return
		}
	}
	m.versions[id] = append(m.versions[id], v.Owner.Version)
}

// ResolveSelector implements Source. Project selectors match any registered
// version of the module (projects have at most one). Published selectors
// match exact versions first, then treat the version as a range expression
// and select the highest satisfying published version.
func (m *Memory) ResolveSelector(ctx context.Context, sel module.Selector) (module.VersionID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions := m.versions[sel.Module]
	if len(versions) == 0 {
		return module.VersionID{}, ErrNotFound
	}

	if sel.Project {
		return module.VersionID{Module: sel.Module, Version: versions[0]}, nil
	}

	for _, v := range versions {
		if v == sel.Version {
			return module.VersionID{Module: sel.Module, Version: v}, nil
		}
	}

	if v, ok := maxSatisfying(sel.Version, versions); ok {
		return module.VersionID{Module: sel.Module, Version: v}, nil
	}
	return module.VersionID{}, ErrNotFound
}

// Variant implements Source.
func (m *Memory) Variant(ctx context.Context, owner module.VersionID, name string) (*module.Variant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.variants[variantKey(owner, name)]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func variantKey(owner module.VersionID, name string) string {
	return owner.String() + "/" + name
}

// maxSatisfying returns the highest version in candidates satisfying the
// range expression, and whether any did. Candidates that do not parse as
// versions are skipped; an unparseable range matches nothing.
func maxSatisfying(rangeExpr string, candidates []string) (string, bool) {
	constraint, err := semver.NewConstraint(rangeExpr)
	if err != nil {
		return "", false
	}

	best := ""
	for _, raw := range candidates {
		v, err := semver.NewVersion(raw)
		if err != nil || !constraint.Check(v) {
			continue
		}
		if best == "" || module.CompareVersions(raw, best) > 0 {
			best = raw
		}
	}
	return best, best != ""
}
