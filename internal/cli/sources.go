package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/depsolve/pkg/cache"
	"github.com/matzehuels/depsolve/pkg/metadata"
)

// sourceFlags holds the flags choosing where module metadata comes from and
// how lookups are cached. They are shared by resolve, graph, and serve.
type sourceFlags struct {
	repos     []string
	noCache   bool
	redisAddr string
	cacheTTL  time.Duration
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.repos, "repo", "r", nil, "module descriptor directory (repeatable)")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable metadata caching")
	cmd.Flags().StringVar(&f.redisAddr, "redis", "", "redis address (host:port) for a shared metadata cache")
	cmd.Flags().DurationVar(&f.cacheTTL, "cache-ttl", time.Hour, "metadata cache entry lifetime")
}

// open builds the metadata source from the flags. The returned cleanup
// function closes any cache backend and must be called when done.
func (f *sourceFlags) open(ctx context.Context, logger *log.Logger) (metadata.Source, func(), error) {
	if len(f.repos) == 0 {
		return nil, nil, fmt.Errorf("at least one --repo directory is required")
	}

	var stores []metadata.Source
	for _, dir := range f.repos {
		store, err := metadata.NewFileStore(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("open repository %s: %w", dir, err)
		}
		stores = append(stores, store)
		logger.Debug("opened repository", "dir", dir)
	}
	src := metadata.Source(metadata.Chain(stores...))

	backend, err := f.cacheBackend(ctx)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := backend.Close(); err != nil {
			logger.Warn("closing cache", "err", err)
		}
	}

	if _, ok := backend.(*cache.NullCache); !ok {
		opts := []metadata.CachedOption{metadata.WithTTL(f.cacheTTL)}
		if f.redisAddr != "" {
			// Redis backends are shared; namespace our entries.
			opts = append(opts, metadata.WithKeyer(cache.NewScopedKeyer(nil, "depsolve:")))
		}
		src = metadata.NewCached(src, backend, opts...)
	}
	return src, cleanup, nil
}

func (f *sourceFlags) cacheBackend(ctx context.Context) (cache.Cache, error) {
	if f.noCache {
		return cache.NewNullCache(), nil
	}
	if f.redisAddr != "" {
		c, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: f.redisAddr})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return c, nil
	}

	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the on-disk metadata cache location.
func cacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate cache dir: %w", err)
	}
	return filepath.Join(base, "depsolve"), nil
}
