// Package resolve implements dependency-graph resolution: transitive graph
// construction from declared dependencies, version and capability conflict
// detection, and policy-driven conflict resolution producing an immutable
// result.
//
// A resolution run moves through fixed phases - building, detecting,
// resolving - and never re-enters an earlier phase; retrying after an input
// change means a fresh run. Conflicts are collected rather than thrown: a
// failed run reports every independent problem found, not just the first.
package resolve

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/depsolve/pkg/graph"
	"github.com/matzehuels/depsolve/pkg/metadata"
	"github.com/matzehuels/depsolve/pkg/module"
	"github.com/matzehuels/depsolve/pkg/observability"
)

// Engine resolves dependency graphs against a metadata source. An Engine is
// immutable after construction and safe for concurrent use; each Resolve
// call is an independent run with no shared mutable state.
type Engine struct {
	src  metadata.Source
	opts Options
}

// New creates an engine with the given metadata source and options.
func New(src metadata.Source, opts Options) *Engine {
	return &Engine{src: src, opts: opts.WithDefaults()}
}

// phase tracks the run state machine: Building -> Detecting -> Resolving ->
// done. Transitions are forward-only.
type phase int

const (
	phaseBuilding phase = iota
	phaseDetecting
	phaseResolving
	phaseDone
)

type run struct {
	current phase
}

func (r *run) advance(next phase) {
	if next < r.current {
		panic(fmt.Sprintf("resolution phase regression: %d -> %d", r.current, next))
	}
	r.current = next
}

// Resolve builds, checks, and resolves the dependency graph rooted at the
// given variant. The returned result carries the outcome either way; the
// error return is reserved for infrastructure failures such as context
// cancellation.
func (e *Engine) Resolve(ctx context.Context, root *module.Variant) (*Result, error) {
	r := &run{}
	start := time.Now()
	rootID := graph.NodeID(root.Owner, root.Name)
	observability.Resolution().OnResolveStart(ctx, rootID)

	prov, err := e.build(ctx, root)
	if err != nil {
		return nil, err
	}

	r.advance(phaseDetecting)
	conflicts := detect(prov)

	r.advance(phaseResolving)
	result := e.resolveConflicts(prov, conflicts)

	r.advance(phaseDone)
	observability.Resolution().OnResolveComplete(ctx, rootID, result.Status.String(),
		len(result.Conflicts), time.Since(start))
	return result, nil
}

// resolveConflicts applies resolution policy to the detected conflicts,
// rewrites the graph for every resolvable one, and freezes the outcome.
func (e *Engine) resolveConflicts(prov *Provisional, conflicts []Conflict) *Result {
	g := prov.Graph

	for i := range conflicts {
		switch conflicts[i].Kind {
		case KindVersion:
			e.resolveVersionConflict(g, &conflicts[i])
		case KindCapability:
			e.resolveCapabilityConflict(g, &conflicts[i])
		}
	}

	// Edge rewriting can close a loop that traversal never followed.
	// Cycles are reported, never silently broken.
	conflicts = appendNewCycles(g, conflicts)

	failed := false
	for _, c := range conflicts {
		if !c.Resolved {
			failed = true
			break
		}
	}

	status := StatusSuccess
	if failed {
		status = StatusFailure
	} else {
		pruneUnreachable(g, prov.RootID)
		// A successful result must keep capability ownership disjoint;
		// anything still shared here is a failure, not a partial commit.
		if leftover := residualCapabilityConflicts(g); len(leftover) > 0 {
			conflicts = append(conflicts, leftover...)
			status = StatusFailure
		}
	}

	slices.SortFunc(conflicts, CompareConflicts)
	return &Result{
		RunID:     uuid.NewString(),
		RootID:    prov.RootID,
		Graph:     g,
		Conflicts: conflicts,
		Status:    status,
	}
}

// resolveVersionConflict applies the highest-version policy: the highest
// selected version wins, edges requesting lower versions are rewritten to
// the winning node, and losing nodes are removed.
func (e *Engine) resolveVersionConflict(g *graph.Graph, c *Conflict) {
	type nodeInfo struct {
		id      string
		version string
		variant string
	}
	var nodes []nodeInfo
	var versions []string
	for _, id := range c.Participants {
		n, ok := g.Node(id)
		if !ok {
			continue
		}
		nodes = append(nodes, nodeInfo{id: id, version: n.Owner.Version, variant: n.Variant})
		if !slices.Contains(versions, n.Owner.Version) {
			versions = append(versions, n.Owner.Version)
		}
	}
	if len(versions) < 2 {
		if len(nodes) > 0 {
			c.Resolved = true
			c.Winner = nodes[0].id
		}
		return
	}

	winner := module.MaxVersion(versions)

	winnersByVariant := make(map[string]string)
	first := ""
	for _, n := range nodes {
		if n.version != winner {
			continue
		}
		winnersByVariant[n.variant] = n.id
		if first == "" {
			first = n.id
		}
	}

	for _, n := range nodes {
		if n.version == winner {
			continue
		}
		target, ok := winnersByVariant[n.variant]
		if !ok {
			target = first
		}
		g.RetargetEdges(n.id, target)
		g.RemoveNode(n.id)
	}

	c.Resolved = true
	c.Winner = first
}

// resolveCapabilityConflict consults the configured policy. Without an
// explicit winner the conflict stays unresolved and fails the run.
func (e *Engine) resolveCapabilityConflict(g *graph.Graph, c *Conflict) {
	var survivors []*graph.Node
	for _, id := range c.Participants {
		if n, ok := g.Node(id); ok {
			survivors = append(survivors, n)
		}
	}

	// Version resolution may already have removed all but one provider.
	if !multiOwner(survivors) {
		c.Resolved = true
		if len(survivors) > 0 {
			c.Winner = survivors[0].ID
		}
		return
	}

	winner, ok := e.opts.Policy.Choose(c.Capability, survivors)
	if !ok {
		return
	}

	for _, n := range survivors {
		if n.ID == winner {
			continue
		}
		g.RetargetEdges(n.ID, winner)
		g.RemoveNode(n.ID)
	}
	c.Resolved = true
	c.Winner = winner
}

func multiOwner(nodes []*graph.Node) bool {
	for _, n := range nodes[1:] {
		if n.Owner.Module != nodes[0].Owner.Module {
			return true
		}
	}
	return false
}

// appendNewCycles records cycles present after rewriting that were not
// already reported by the builder.
func appendNewCycles(g *graph.Graph, conflicts []Conflict) []Conflict {
	seen := make(map[string]bool)
	for _, c := range conflicts {
		if c.Kind == KindCycle {
			seen[c.subject()] = true
		}
	}
	for _, cycle := range g.Cycles() {
		c := Conflict{Kind: KindCycle, Participants: cycle}
		if !seen[c.subject()] {
			conflicts = append(conflicts, c)
		}
	}
	return conflicts
}

// pruneUnreachable drops nodes no path from the root reaches anymore,
// which removes subtrees orphaned by conflict rewriting.
func pruneUnreachable(g *graph.Graph, rootID string) {
	reachable := map[string]bool{rootID: true}
	queue := []string{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range g.Children(id) {
			if !reachable[child] {
				reachable[child] = true
				queue = append(queue, child)
			}
		}
	}
	for _, n := range g.Nodes() {
		if !reachable[n.ID] {
			g.RemoveNode(n.ID)
		}
	}
}

// residualCapabilityConflicts rebuilds capability ownership over the final
// node set and reports anything still owned by distinct modules.
func residualCapabilityConflicts(g *graph.Graph) []Conflict {
	reg := NewRegistry()
	for _, n := range g.Nodes() {
		reg.Register(n.ID, n.Owner.Module, n.Capabilities)
	}
	var conflicts []Conflict
	for _, group := range reg.MultiOwnerGroups() {
		conflicts = append(conflicts, Conflict{
			Kind:         KindCapability,
			Capability:   group.Capability,
			Participants: group.Nodes,
		})
	}
	return conflicts
}
