package resolve

import (
	"strings"

	"github.com/matzehuels/depsolve/pkg/errors"
	"github.com/matzehuels/depsolve/pkg/graph"
)

// Status is the terminal outcome of a resolution run.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Result is the outcome of a resolution run. It is frozen when the run
// finishes: callers must treat the graph and conflict list as read-only.
//
// A failed result still carries the full graph and every conflict found, so
// callers can report all problems at once instead of fixing them one retry
// at a time.
type Result struct {
	// RunID uniquely identifies this run, for correlating logs and reports.
	RunID string

	// Configuration names the resolved configuration, when resolution was
	// driven by a project manifest. Empty for direct variant resolution.
	Configuration string

	// RootID is the node ID of the root variant.
	RootID string

	// Graph is the resolved dependency graph. On success every surviving
	// node is reachable from the root and each module appears at a single
	// version.
	Graph *graph.Graph

	// Conflicts holds every conflict detected during the run, resolved and
	// unresolved alike, in deterministic order.
	Conflicts []Conflict

	Status Status
}

// Unresolved returns the conflicts that no policy could settle.
func (r *Result) Unresolved() []Conflict {
	var out []Conflict
	for _, c := range r.Conflicts {
		if !c.Resolved {
			out = append(out, c)
		}
	}
	return out
}

// FailureCause renders the unresolved conflicts as a single message, one
// line per conflict. Empty on success.
func (r *Result) FailureCause() string {
	var lines []string
	for _, c := range r.Unresolved() {
		lines = append(lines, c.Description())
	}
	return strings.Join(lines, "\n")
}

// Err converts a failed result into an error. Successful results return nil.
func (r *Result) Err() error {
	if r.Status == StatusSuccess {
		return nil
	}
	return errors.New(errors.ErrCodeResolutionFailed, "%s", r.FailureCause())
}
