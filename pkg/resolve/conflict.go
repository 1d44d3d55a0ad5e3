package resolve

import (
	"fmt"
	"strings"

	"github.com/matzehuels/depsolve/pkg/module"
)

// Kind classifies a conflict found in the provisional graph.
type Kind int

const (
	// KindVersion marks multiple distinct selected versions of one module.
	// Auto-resolved by the highest-version policy.
	KindVersion Kind = iota
	// KindCapability marks distinct modules providing the same capability.
	// Fatal unless an explicit capability policy names a winner.
	KindCapability
	// KindCycle marks a module that transitively depends on itself.
	// Never auto-resolved.
	KindCycle
	// KindSelector marks a dependency selector that matched no module.
	// Fatal for the declaring edge.
	KindSelector
)

// String returns the conflict kind name.
func (k Kind) String() string {
	switch k {
	case KindVersion:
		return "version"
	case KindCapability:
		return "capability"
	case KindCycle:
		return "cycle"
	case KindSelector:
		return "selector"
	}
	return "unknown"
}

// Conflict records one detected violation, its participants, and how (or
// whether) it was resolved.
type Conflict struct {
	Kind Kind

	// Participants are the node IDs involved, in reporting order. For
	// cycles the order follows the dependency chain; elsewhere it is
	// sorted lexically.
	Participants []string

	// Module is the subject of a version conflict.
	Module module.ID
	// RequestedVersions are the distinct versions requested for Module,
	// sorted ascending by version order.
	RequestedVersions []string

	// Capability is the shared capability of a capability conflict. Its
	// version is the highest declared among the participants.
	Capability module.Capability

	// Selector and From describe an unresolvable dependency edge.
	Selector module.Selector
	From     string
	// Reason carries the underlying lookup failure for selector conflicts.
	Reason string

	// Resolved reports whether resolution picked a winner.
	Resolved bool
	// Winner is the surviving node ID when Resolved is true.
	Winner string
}

// subject is the identifier conflicts are ordered by: the module or
// capability identity the conflict is about.
func (c Conflict) subject() string {
	switch c.Kind {
	case KindVersion:
		return c.Module.String()
	case KindCapability:
		return c.Capability.ID().String()
	case KindCycle:
		return strings.Join(c.Participants, " -> ")
	case KindSelector:
		return c.Selector.String() + "|" + c.From
	}
	return ""
}

// CompareConflicts orders conflicts for reporting: by kind, then by the
// subject identifier lexically. The order is total for any conflict set a
// single resolution run can produce, which keeps failure output stable
// across runs.
func CompareConflicts(a, b Conflict) int {
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	return strings.Compare(a.subject(), b.subject())
}

// Description renders the stable, human-readable account of the conflict.
// Capability conflict wording is part of the tool's contract and must not
// change between releases.
func (c Conflict) Description() string {
	switch c.Kind {
	case KindVersion:
		if c.Resolved {
			return fmt.Sprintf("Conflict on module %s: selected version %s among requested %s",
				c.Module, winnerVersion(c), strings.Join(c.RequestedVersions, ", "))
		}
		return fmt.Sprintf("Conflict on module %s: no version could be selected among requested %s",
			c.Module, strings.Join(c.RequestedVersions, ", "))

	case KindCapability:
		if c.Resolved {
			return fmt.Sprintf("Selected %s as the provider of capability %s", c.Winner, c.Capability)
		}
		return fmt.Sprintf("Cannot choose between %s and %s because they provide the same capability: %s",
			ownerOf(c.Participants[0]), joinOwners(c.Participants[1:]), c.Capability)

	case KindCycle:
		chain := append([]string{}, c.Participants...)
		chain = append(chain, c.Participants[0])
		owners := make([]string, len(chain))
		for i, p := range chain {
			owners[i] = ownerOf(p)
		}
		return "Circular dependency: " + strings.Join(owners, " -> ")

	case KindSelector:
		msg := fmt.Sprintf("Could not resolve %s (required by %s)", c.Selector, ownerOf(c.From))
		if c.Reason != "" {
			msg += ": " + c.Reason
		}
		return msg
	}
	return "unknown conflict"
}

// winnerVersion extracts the version part from the winner node's owner.
func winnerVersion(c Conflict) string {
	owner := ownerOf(c.Winner)
	if i := strings.LastIndex(owner, ":"); i >= 0 {
		return owner[i+1:]
	}
	return owner
}

// ownerOf strips the variant suffix from a node ID, leaving the
// group:name:version identity used in user-facing messages.
func ownerOf(nodeID string) string {
	if i := strings.LastIndex(nodeID, "/"); i >= 0 {
		return nodeID[:i]
	}
	return nodeID
}

func joinOwners(nodeIDs []string) string {
	owners := make([]string, len(nodeIDs))
	for i, id := range nodeIDs {
		owners[i] = ownerOf(id)
	}
	return strings.Join(owners, " and ")
}
