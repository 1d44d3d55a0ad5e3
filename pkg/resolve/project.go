package resolve

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/depsolve/pkg/module"
)

// Configuration is one independently resolvable scope of a project, such as
// a compile or runtime classpath. Each configuration carries its own root
// variant and resolves in isolation: two configurations of the same project
// may legitimately select different versions of the same module.
type Configuration struct {
	Name string
	Root *module.Variant
}

// ResolveAll resolves every configuration concurrently and returns results
// in input order. Runs share nothing but the engine and its metadata
// source; a cancelled context aborts the remaining runs.
func (e *Engine) ResolveAll(ctx context.Context, configs []Configuration) ([]*Result, error) {
	results := make([]*Result, len(configs))

	grp, ctx := errgroup.WithContext(ctx)
	for i, cfg := range configs {
		grp.Go(func() error {
			res, err := e.Resolve(ctx, cfg.Root)
			if err != nil {
				return err
			}
			res.Configuration = cfg.Name
			results[i] = res
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
