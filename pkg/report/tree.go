package report

import (
	"slices"
	"strings"

	"github.com/matzehuels/depsolve/pkg/resolve"
)

// Tree renders the dependency tree from the root. Nodes reached through
// several paths are expanded once; later occurrences carry a (*) marker,
// the convention build tools use for shared subtrees.
func Tree(res *resolve.Result) string {
	var b strings.Builder
	b.WriteString(displayID(res.RootID))
	b.WriteString("\n")

	seen := map[string]bool{res.RootID: true}
	writeChildren(&b, res, res.RootID, "", seen)
	return b.String()
}

func writeChildren(b *strings.Builder, res *resolve.Result, id, prefix string, seen map[string]bool) {
	children := slices.Sorted(slices.Values(res.Graph.Children(id)))
	children = slices.Compact(children)

	for i, child := range children {
		last := i == len(children)-1
		branch, cont := "├── ", "│   "
		if last {
			branch, cont = "└── ", "    "
		}

		label := displayID(child)
		if req := requestedVersion(res, id, child); req != "" && !strings.HasSuffix(label, ":"+req) {
			label += " (requested " + req + ")"
		}

		if seen[child] {
			b.WriteString(prefix + branch + label + " (*)\n")
			continue
		}
		seen[child] = true

		b.WriteString(prefix + branch + label + "\n")
		writeChildren(b, res, child, prefix+cont, seen)
	}
}

func requestedVersion(res *resolve.Result, from, to string) string {
	for _, e := range res.Graph.EdgesTo(to) {
		if e.From == from {
			return e.RequestedVersion
		}
	}
	return ""
}
