// Package graph provides the node/edge structure shared by provisional and
// final resolution graphs.
//
// Nodes live in a flat table keyed by a stable string identifier, and edges
// are non-owning (From, To) identifier pairs resolved through that table.
// This representation tolerates cycles while they are being detected and
// reported, and lets the resolver rewrite edges without touching node
// identity.
package graph

import (
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/depsolve/pkg/module"
)

// Node is a selected (module, version, variant) triple participating in the
// graph. Nodes never own their neighbours; edges reference them by ID.
type Node struct {
	ID           string // stable identifier: "group:name:version/variant"
	Owner        module.VersionID
	Variant      string
	Capabilities []module.Capability
}

// NodeID derives the stable node identifier for an owner/variant pair.
func NodeID(owner module.VersionID, variant string) string {
	return owner.String() + "/" + variant
}

// Edge is a directed, non-owning reference between two nodes. The requested
// version records what the declaring dependency originally asked for, which
// may differ from the target node's selected version after conflict
// resolution.
type Edge struct {
	From             string
	To               string
	RequestedVersion string
}

// Graph is a directed graph of resolution nodes. Unlike a strict DAG it may
// transiently contain cycles; they are surfaced by [Graph.Cycles] rather than
// rejected on insert.
//
// The zero value is not usable - use New. Graph is not safe for concurrent
// use without external synchronization.
type Graph struct {
	nodes    map[string]*Node
	edges    []Edge
	outgoing map[string][]string
	incoming map[string][]string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
	}
}

// AddNode adds a node to the table. Returns ErrInvalidNodeID for an empty ID
// or ErrDuplicateNodeID when the ID is already present.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := g.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	node := &n
	g.nodes[node.ID] = node
	return nil
}

// AddEdge adds a directed edge between two existing nodes. Self-edges and
// exact duplicates are ignored; multiple edges between the same nodes with
// different requested versions are kept, since each represents an
// independently declared requirement.
func (g *Graph) AddEdge(e Edge) error {
	if _, ok := g.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := g.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	if e.From == e.To {
		return nil
	}
	if slices.Contains(g.edges, e) {
		return nil
	}
	g.edges = append(g.edges, e)
	g.outgoing[e.From] = append(g.outgoing[e.From], e.To)
	g.incoming[e.To] = append(g.incoming[e.To], e.From)
	return nil
}

// RemoveNode deletes a node and every edge touching it.
// Removing an unknown ID is a no-op.
func (g *Graph) RemoveNode(id string) {
	if _, ok := g.nodes[id]; !ok {
		return
	}
	delete(g.nodes, id)
	g.edges = slices.DeleteFunc(g.edges, func(e Edge) bool {
		return e.From == id || e.To == id
	})
	delete(g.outgoing, id)
	delete(g.incoming, id)
	for from, targets := range g.outgoing {
		g.outgoing[from] = slices.DeleteFunc(targets, func(s string) bool { return s == id })
	}
	for to, sources := range g.incoming {
		g.incoming[to] = slices.DeleteFunc(sources, func(s string) bool { return s == id })
	}
}

// RetargetEdges rewrites every edge pointing at oldTo to point at newTo,
// preserving each edge's originally requested version. Edges that would
// become self-edges are dropped. This is how losing conflict participants
// are unlinked before pruning.
func (g *Graph) RetargetEdges(oldTo, newTo string) {
	if oldTo == newTo {
		return
	}
	for i := 0; i < len(g.edges); i++ {
		if g.edges[i].To != oldTo {
			continue
		}
		e := g.edges[i]
		g.edges = slices.Delete(g.edges, i, i+1)
		i--
		g.outgoing[e.From] = slices.DeleteFunc(g.outgoing[e.From], func(s string) bool { return s == oldTo })
		g.incoming[oldTo] = slices.DeleteFunc(g.incoming[oldTo], func(s string) bool { return s == e.From })
		e.To = newTo
		_ = g.AddEdge(e) // endpoints are known to exist
	}
}

// Node returns the node with the given ID and true, or nil and false.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes sorted by ID for deterministic iteration.
func (g *Graph) Nodes() []*Node {
	ids := slices.Sorted(maps.Keys(g.nodes))
	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// Edges returns a copy of all edges sorted by (From, To, RequestedVersion).
func (g *Graph) Edges() []Edge {
	edges := slices.Clone(g.edges)
	slices.SortFunc(edges, CompareEdges)
	return edges
}

// CompareEdges orders edges by (From, To, RequestedVersion) lexically.
func CompareEdges(a, b Edge) int {
	if c := strings.Compare(a.From, b.From); c != 0 {
		return c
	}
	if c := strings.Compare(a.To, b.To); c != 0 {
		return c
	}
	return strings.Compare(a.RequestedVersion, b.RequestedVersion)
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Children returns the IDs of nodes this node has edges to.
// The returned slice is a read-only view.
func (g *Graph) Children(id string) []string { return g.outgoing[id] }

// Parents returns the IDs of nodes with edges to this node.
// The returned slice is a read-only view.
func (g *Graph) Parents(id string) []string { return g.incoming[id] }

// EdgesTo returns all edges whose target is the given node,
// sorted for deterministic reporting.
func (g *Graph) EdgesTo(id string) []Edge {
	var edges []Edge
	for _, e := range g.edges {
		if e.To == id {
			edges = append(edges, e)
		}
	}
	slices.SortFunc(edges, CompareEdges)
	return edges
}

// Roots returns the IDs of nodes with no incoming edges, sorted.
func (g *Graph) Roots() []string {
	var roots []string
	for id := range g.nodes {
		if len(g.incoming[id]) == 0 {
			roots = append(roots, id)
		}
	}
	slices.Sort(roots)
	return roots
}
