package resolve

import (
	"maps"
	"slices"

	"github.com/matzehuels/depsolve/pkg/module"
)

// detect scans a completed provisional graph for version and capability
// conflicts, forwards the builder's cycle and selector conflicts unchanged,
// and returns everything in stable reporting order. The graph is not
// mutated.
func detect(prov *Provisional) []Conflict {
	conflicts := slices.Clone(prov.Conflicts)
	conflicts = append(conflicts, detectVersionConflicts(prov)...)
	conflicts = append(conflicts, detectCapabilityConflicts(prov)...)
	slices.SortFunc(conflicts, CompareConflicts)
	return conflicts
}

// detectVersionConflicts reports every module selected at more than one
// distinct version, with the full set of requested versions drawn from the
// graph's edges.
func detectVersionConflicts(prov *Provisional) []Conflict {
	byModule := make(map[module.ID][]string) // module -> node IDs
	for _, n := range prov.Graph.Nodes() {
		byModule[n.Owner.Module] = append(byModule[n.Owner.Module], n.ID)
	}

	var conflicts []Conflict
	for _, id := range slices.SortedFunc(maps.Keys(byModule), compareModuleIDs) {
		nodes := byModule[id]
		versions := distinctVersions(prov, nodes)
		if len(versions) < 2 {
			continue
		}

		requested := versions
		for _, nodeID := range nodes {
			for _, e := range prov.Graph.EdgesTo(nodeID) {
				if e.RequestedVersion != "" && !slices.Contains(requested, e.RequestedVersion) {
					requested = append(requested, e.RequestedVersion)
				}
			}
		}
		slices.SortFunc(requested, module.CompareVersions)

		slices.Sort(nodes)
		conflicts = append(conflicts, Conflict{
			Kind:              KindVersion,
			Module:            id,
			Participants:      nodes,
			RequestedVersions: requested,
		})
	}
	return conflicts
}

func distinctVersions(prov *Provisional, nodes []string) []string {
	var versions []string
	for _, nodeID := range nodes {
		n, ok := prov.Graph.Node(nodeID)
		if !ok {
			continue
		}
		if !slices.Contains(versions, n.Owner.Version) {
			versions = append(versions, n.Owner.Version)
		}
	}
	return versions
}

// detectCapabilityConflicts reports every capability identifier owned by
// more than one distinct module, straight from the registry.
func detectCapabilityConflicts(prov *Provisional) []Conflict {
	var conflicts []Conflict
	for _, group := range prov.Registry.MultiOwnerGroups() {
		conflicts = append(conflicts, Conflict{
			Kind:         KindCapability,
			Capability:   group.Capability,
			Participants: group.Nodes,
		})
	}
	return conflicts
}

func compareModuleIDs(a, b module.ID) int {
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
