package graph

import (
	"maps"
	"slices"
	"strings"
)

// Cycles finds every distinct directed cycle in the graph and returns each
// as the list of node IDs along the cycle, rotated to start at the lexically
// smallest member. Results are sorted for deterministic reporting.
//
// Detection is depth-first search with white/gray/black coloring; a back
// edge to a gray node closes a cycle, and the members are read off the
// current DFS path.
func (g *Graph) Cycles() [][]string {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(g.nodes))
	seen := make(map[string]bool)
	var path []string
	var cycles [][]string

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		path = append(path, id)
		children := slices.Sorted(slices.Values(g.outgoing[id]))
		for _, child := range children {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				start := slices.Index(path, child)
				cycle := canonicalCycle(path[start:])
				if key := strings.Join(cycle, "\x00"); !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
	}

	for _, id := range slices.Sorted(maps.Keys(g.nodes)) {
		if color[id] == white {
			dfs(id)
		}
	}

	slices.SortFunc(cycles, slices.Compare)
	return cycles
}

// canonicalCycle rotates the cycle to start at its smallest member, making
// reported cycles independent of the DFS entry point.
func canonicalCycle(path []string) []string {
	cycle := slices.Clone(path)
	min := 0
	for i, id := range cycle {
		if id < cycle[min] {
			min = i
		}
	}
	return append(cycle[min:], cycle[:min]...)
}
