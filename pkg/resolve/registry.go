package resolve

import (
	"maps"
	"slices"
	"sync"

	"github.com/matzehuels/depsolve/pkg/module"
)

// Registry maps capability identifiers to the nodes declaring them. It only
// aggregates; judging whether shared ownership is a conflict happens in the
// detector.
//
// Registration is guarded by a mutex because concurrent subtree traversals
// can discover capability owners at the same time.
type Registry struct {
	mu     sync.Mutex
	owners map[module.CapabilityID][]ownerEntry
}

type ownerEntry struct {
	nodeID     string
	ownerMod   module.ID
	capability module.Capability
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{owners: make(map[module.CapabilityID][]ownerEntry)}
}

// Register records that node (belonging to owner) declares the given
// capabilities. Re-registering the same node for a capability is a no-op.
func (r *Registry) Register(nodeID string, owner module.ID, caps []module.Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range caps {
		id := c.ID()
		if slices.ContainsFunc(r.owners[id], func(e ownerEntry) bool { return e.nodeID == nodeID }) {
			continue
		}
		r.owners[id] = append(r.owners[id], ownerEntry{nodeID: nodeID, ownerMod: owner, capability: c})
	}
}

// OwnerGroup is a capability identifier together with every node owning it.
type OwnerGroup struct {
	ID module.CapabilityID

	// Capability carries the highest version declared for the identifier
	// across all owners, for message rendering.
	Capability module.Capability

	// Nodes are the owning node IDs, sorted.
	Nodes []string
}

// MultiOwnerGroups returns every capability identifier owned by more than
// one distinct module, sorted by identifier. Two variants of the same module
// sharing the module's own capability are not reported; conflicts are judged
// strictly between distinct modules.
func (r *Registry) MultiOwnerGroups() []OwnerGroup {
	r.mu.Lock()
	defer r.mu.Unlock()

	var groups []OwnerGroup
	for _, id := range slices.SortedFunc(maps.Keys(r.owners), compareCapabilityIDs) {
		entries := r.owners[id]
		if !multiModule(entries) {
			continue
		}

		group := OwnerGroup{ID: id}
		for _, e := range entries {
			group.Nodes = append(group.Nodes, e.nodeID)
			if group.Capability == (module.Capability{}) ||
				module.CompareVersions(e.capability.Version, group.Capability.Version) > 0 {
				group.Capability = e.capability
			}
		}
		slices.Sort(group.Nodes)
		groups = append(groups, group)
	}
	return groups
}

func multiModule(entries []ownerEntry) bool {
	for _, e := range entries[1:] {
		if e.ownerMod != entries[0].ownerMod {
			return true
		}
	}
	return false
}

func compareCapabilityIDs(a, b module.CapabilityID) int {
	if a.Group != b.Group {
		if a.Group < b.Group {
			return -1
		}
		return 1
	}
	switch {
	case a.Name < b.Name:
		return -1
	case a.Name > b.Name:
		return 1
	}
	return 0
}
