package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/depsolve/pkg/report"
	"github.com/matzehuels/depsolve/pkg/resolve"
)

// graphCommand creates the graph export command.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		src    sourceFlags
		config string
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "graph [manifest]",
		Short: "Export a resolved configuration as DOT or SVG",
		Long: `Graph resolves one configuration and writes its dependency graph in
Graphviz DOT format, or renders it to SVG directly. Conflict participants
are highlighted so rewritten and failing parts of the graph stand out.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "depsolve.toml"
			if len(args) == 1 {
				path = args[0]
			}
			return c.runGraph(cmd, path, src, config, format, output)
		},
	}

	src.register(cmd)
	cmd.Flags().StringVarP(&config, "config", "c", "", "configuration to export (default: first)")
	cmd.Flags().StringVarP(&format, "format", "f", "dot", "output format: dot, svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")

	return cmd
}

func (c *CLI) runGraph(cmd *cobra.Command, path string, src sourceFlags, config, format, output string) error {
	ctx := cmd.Context()

	if format != "dot" && format != "svg" {
		return fmt.Errorf("unsupported format %q (want dot or svg)", format)
	}

	results, err := c.resolveManifest(ctx, path, src, resolve.Options{})
	if err != nil {
		return err
	}

	res, err := pickResult(results, config)
	if err != nil {
		return err
	}
	if res.Status == resolve.StatusFailure {
		printWarning("configuration %q did not resolve; exporting the conflicted graph", res.Configuration)
	}

	dot := report.ToDOT(res)
	data := []byte(dot)
	if format == "svg" {
		if data, err = report.RenderSVG(ctx, dot); err != nil {
			return fmt.Errorf("render SVG: %w", err)
		}
	}

	if output == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	printSuccess("Exported %s graph", format)
	printFile(output)
	return nil
}

func pickResult(results []*resolve.Result, config string) (*resolve.Result, error) {
	if config == "" {
		return results[0], nil
	}
	var names []string
	for _, res := range results {
		if res.Configuration == config {
			return res, nil
		}
		names = append(names, res.Configuration)
	}
	return nil, fmt.Errorf("unknown configuration %q (have: %s)", config, strings.Join(names, ", "))
}
