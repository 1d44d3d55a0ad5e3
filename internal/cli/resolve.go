package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/depsolve/pkg/manifest"
	"github.com/matzehuels/depsolve/pkg/metadata"
	"github.com/matzehuels/depsolve/pkg/report"
	"github.com/matzehuels/depsolve/pkg/resolve"
)

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	var (
		src         sourceFlags
		jsonOut     bool
		showTree    bool
		interactive bool
		workers     int
	)

	cmd := &cobra.Command{
		Use:   "resolve [manifest]",
		Short: "Resolve every configuration of a project manifest",
		Long: `Resolve builds the full transitive dependency graph for each
configuration declared in the manifest, detects version and capability
conflicts, and applies the resolution policy.

Version conflicts resolve automatically to the highest requested version.
Capability conflicts fail the build unless the manifest names an explicit
winner under [capability_rules].

The command exits non-zero when any configuration fails to resolve.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := manifest.DefaultFileName
			if len(args) == 1 {
				path = args[0]
			}
			opts := resolve.Options{Workers: workers}
			return c.runResolve(cmd.Context(), path, src, opts, outputOptions{
				json:        jsonOut,
				tree:        showTree,
				interactive: interactive,
			})
		},
	}

	src.register(cmd)
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit JSON documents instead of text")
	cmd.Flags().BoolVarP(&showTree, "tree", "t", false, "include the dependency tree")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse conflicts interactively")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent metadata fetches (0 = default)")

	return cmd
}

type outputOptions struct {
	json        bool
	tree        bool
	interactive bool
}

func (c *CLI) runResolve(ctx context.Context, path string, src sourceFlags, opts resolve.Options, out outputOptions) error {
	logger := loggerFromContext(ctx)

	results, err := c.resolveManifest(ctx, path, src, opts)
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Status == resolve.StatusFailure {
			failed++
		}
	}

	if out.json {
		for _, res := range results {
			if err := report.WriteJSON(os.Stdout, res); err != nil {
				return err
			}
		}
	} else {
		for i, res := range results {
			if i > 0 {
				fmt.Println()
			}
			fmt.Print(report.Render(res, report.Options{Color: true, Tree: out.tree}))
			printStats(len(res.Graph.Nodes()), len(res.Graph.Edges()), len(res.Conflicts))
		}
	}

	if out.interactive {
		var conflicts []resolve.Conflict
		for _, res := range results {
			conflicts = append(conflicts, res.Conflicts...)
		}
		if err := browseConflicts(conflicts); err != nil {
			logger.Warn("conflict browser", "err", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d configurations failed to resolve", failed, len(results))
	}
	return nil
}

// resolveManifest loads the manifest, wires the metadata sources, and
// resolves all configurations.
func (c *CLI) resolveManifest(ctx context.Context, path string, src sourceFlags, opts resolve.Options) ([]*resolve.Result, error) {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	mf, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}

	configs, err := mf.Roots()
	if err != nil {
		return nil, err
	}

	if policy, err := mf.Policy(); err != nil {
		return nil, err
	} else if policy.Kind != resolve.PolicyRejectAll {
		opts.Policy = policy
	}
	opts.Logger = logger.Debugf

	base, cleanup, err := src.open(ctx, logger)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	local := metadata.NewMemory()
	if err := mf.Register(local); err != nil {
		return nil, err
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Resolving %s...", mf.Owner()))
	spinner.Start()

	engine := resolve.New(metadata.Chain(local, base), opts)
	results, err := engine.ResolveAll(ctx, configs)
	if err != nil {
		spinner.StopWithError("Resolution aborted")
		return nil, err
	}
	spinner.Stop()

	prog.done(fmt.Sprintf("Resolved %d configurations", len(results)))
	return results, nil
}
