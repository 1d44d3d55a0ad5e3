package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/depsolve/pkg/resolve"
)

// ToDOT converts a resolution result to Graphviz DOT format. The root is
// emphasized, conflict participants are tinted by outcome, and edges whose
// requested version differs from the selected one carry the request as a
// label.
func ToDOT(res *resolve.Result) string {
	unresolved := make(map[string]bool)
	resolved := make(map[string]bool)
	for _, c := range res.Conflicts {
		for _, p := range c.Participants {
			if c.Resolved {
				resolved[p] = true
			} else {
				unresolved[p] = true
			}
		}
		if c.Winner != "" {
			resolved[c.Winner] = true
		}
	}

	var buf bytes.Buffer
	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, margin=\"0.2,0.1\"];\n")
	buf.WriteString("\n")

	for _, n := range res.Graph.Nodes() {
		attrs := []string{fmt.Sprintf("label=%q", displayID(n.ID))}
		switch {
		case n.ID == res.RootID:
			attrs = append(attrs, "style=\"rounded,filled,bold\"", "fillcolor=lightblue")
		case unresolved[n.ID]:
			attrs = append(attrs, "fillcolor=lightcoral")
		case resolved[n.ID]:
			attrs = append(attrs, "fillcolor=lightyellow")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range res.Graph.Edges() {
		if e.RequestedVersion != "" && !strings.Contains(e.To, ":"+e.RequestedVersion+"/") {
			fmt.Fprintf(&buf, "  %q -> %q [label=%q, style=dashed];\n", e.From, e.To, "requested "+e.RequestedVersion)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
