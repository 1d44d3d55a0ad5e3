// Package report renders resolution results for people and tools: plain and
// styled text summaries, dependency trees, Graphviz exports, and a JSON
// document format.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/depsolve/pkg/resolve"
)

// Options configures text rendering.
type Options struct {
	// Color enables lipgloss styling. Off by default so piped output stays
	// plain.
	Color bool

	// Tree appends the dependency tree to the summary.
	Tree bool
}

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	titleStyle = lipgloss.NewStyle().Bold(true)
)

// Render produces the human-readable account of a resolution result: status
// line, counts, every conflict with its outcome, and optionally the tree.
func Render(res *resolve.Result, opts Options) string {
	style := func(s lipgloss.Style, text string) string {
		if !opts.Color {
			return text
		}
		return s.Render(text)
	}

	var b strings.Builder

	status := style(okStyle, "RESOLVED")
	if res.Status == resolve.StatusFailure {
		status = style(failStyle, "FAILED")
	}
	fmt.Fprintf(&b, "%s %s\n", status, style(titleStyle, displayID(res.RootID)))
	if res.Configuration != "" {
		fmt.Fprintf(&b, "configuration: %s\n", res.Configuration)
	}
	fmt.Fprintf(&b, "%s\n", style(dimStyle, fmt.Sprintf("%d modules, %d dependencies, run %s",
		res.Graph.NodeCount(), res.Graph.EdgeCount(), res.RunID)))

	if len(res.Conflicts) > 0 {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s\n", style(titleStyle, "Conflicts"))
		for _, c := range res.Conflicts {
			marker := style(okStyle, "resolved")
			if !c.Resolved {
				marker = style(failStyle, "unresolved")
			}
			fmt.Fprintf(&b, "  [%s] %s\n", marker, c.Description())
		}
	}

	if opts.Tree {
		b.WriteString("\n")
		b.WriteString(Tree(res))
	}

	return b.String()
}

// displayID strips the variant suffix for headline output.
func displayID(nodeID string) string {
	if i := strings.LastIndex(nodeID, "/"); i >= 0 {
		return nodeID[:i]
	}
	return nodeID
}
