package resolve

import (
	"slices"

	"github.com/matzehuels/depsolve/pkg/graph"
	"github.com/matzehuels/depsolve/pkg/module"
)

// PolicyKind enumerates the capability conflict policies. Policies are
// closed tagged alternatives rather than open-ended plugins so that every
// possible resolution behavior is visible here.
type PolicyKind int

const (
	// PolicyRejectAll never chooses a winner: every capability conflict
	// stays unresolved and fails the run. This is the default.
	PolicyRejectAll PolicyKind = iota

	// PolicyHighestVersion selects the candidate declaring the highest
	// version of the contested capability. Ties between distinct modules
	// remain unresolved.
	PolicyHighestVersion

	// PolicyExplicitRules selects winners from a user-supplied mapping of
	// capability identifier to winning module. Conflicts without a rule
	// remain unresolved.
	PolicyExplicitRules
)

// Policy decides capability conflicts. The zero value rejects everything.
type Policy struct {
	Kind  PolicyKind
	Rules map[module.CapabilityID]module.ID // used by PolicyExplicitRules
}

// RejectAll returns the default policy: capability conflicts are fatal.
func RejectAll() Policy {
	return Policy{Kind: PolicyRejectAll}
}

// HighestVersion returns the policy selecting the highest declared
// capability version.
func HighestVersion() Policy {
	return Policy{Kind: PolicyHighestVersion}
}

// ExplicitRules returns a policy resolving conflicts from an explicit
// capability-to-module mapping.
func ExplicitRules(rules map[module.CapabilityID]module.ID) Policy {
	return Policy{Kind: PolicyExplicitRules, Rules: rules}
}

// Choose picks a winner among the candidate nodes for the contested
// capability. Returns the winning node ID and true, or "" and false when
// the policy makes no choice. Candidates must be non-empty; the decision is
// deterministic for any candidate order.
func (p Policy) Choose(capability module.Capability, candidates []*graph.Node) (string, bool) {
	switch p.Kind {
	case PolicyHighestVersion:
		return chooseHighestVersion(capability.ID(), candidates)
	case PolicyExplicitRules:
		winner, ok := p.Rules[capability.ID()]
		if !ok {
			return "", false
		}
		for _, n := range sortedCandidates(candidates) {
			if n.Owner.Module == winner {
				return n.ID, true
			}
		}
		return "", false
	}
	return "", false
}

func chooseHighestVersion(id module.CapabilityID, candidates []*graph.Node) (string, bool) {
	var best *graph.Node
	bestVersion := ""
	tied := false

	for _, n := range sortedCandidates(candidates) {
		v, ok := declaredVersion(n, id)
		if !ok {
			continue
		}
		if best == nil {
			best, bestVersion = n, v
			continue
		}
		switch cmp := module.CompareVersions(v, bestVersion); {
		case cmp > 0:
			best, bestVersion = n, v
			tied = false
		case cmp == 0 && n.Owner.Module != best.Owner.Module:
			tied = true
		}
	}
	if best == nil || tied {
		return "", false
	}
	return best.ID, true
}

func declaredVersion(n *graph.Node, id module.CapabilityID) (string, bool) {
	for _, c := range n.Capabilities {
		if c.ID() == id {
			return c.Version, true
		}
	}
	return "", false
}

func sortedCandidates(candidates []*graph.Node) []*graph.Node {
	sorted := slices.Clone(candidates)
	slices.SortFunc(sorted, func(a, b *graph.Node) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return sorted
}
