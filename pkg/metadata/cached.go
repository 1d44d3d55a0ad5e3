package metadata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matzehuels/depsolve/pkg/cache"
	"github.com/matzehuels/depsolve/pkg/module"
	"github.com/matzehuels/depsolve/pkg/observability"
)

// DefaultCacheTTL is how long cached descriptor lookups stay fresh.
const DefaultCacheTTL = 24 * time.Hour

// Cached decorates a Source with a cache for variant lookups. Selector
// resolution is never cached: range selectors must always see newly
// published versions.
type Cached struct {
	src     Source
	cache   cache.Cache
	keyer   cache.Keyer
	ttl     time.Duration
	refresh bool
}

// CachedOption configures a Cached source.
type CachedOption func(*Cached)

// WithTTL overrides the default cache TTL.
func WithTTL(ttl time.Duration) CachedOption {
	return func(c *Cached) { c.ttl = ttl }
}

// WithRefresh bypasses cached entries, always refetching and rewriting them.
func WithRefresh(refresh bool) CachedOption {
	return func(c *Cached) { c.refresh = refresh }
}

// WithKeyer overrides the key generator, e.g. to namespace entries in a
// shared backend with a [cache.ScopedKeyer].
func WithKeyer(k cache.Keyer) CachedOption {
	return func(c *Cached) { c.keyer = k }
}

// NewCached wraps src with the given cache backend.
func NewCached(src Source, backend cache.Cache, opts ...CachedOption) *Cached {
	c := &Cached{
		src:   src,
		cache: backend,
		keyer: cache.NewDefaultKeyer(),
		ttl:   DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveSelector implements Source by delegating to the wrapped source.
func (c *Cached) ResolveSelector(ctx context.Context, sel module.Selector) (module.VersionID, error) {
	return c.src.ResolveSelector(ctx, sel)
}

// Variant implements Source, serving cached descriptors when fresh.
func (c *Cached) Variant(ctx context.Context, owner module.VersionID, name string) (*module.Variant, error) {
	key := c.keyer.VariantKey(owner.String(), name)

	if !c.refresh {
		if data, ok, err := c.cache.Get(ctx, key); err == nil && ok {
			var v module.Variant
			if err := json.Unmarshal(data, &v); err == nil {
				observability.Cache().OnCacheHit(ctx, "variant")
				return &v, nil
			}
			// Corrupt entry: fall through and refetch.
		}
	}
	observability.Cache().OnCacheMiss(ctx, "variant")

	v, err := c.src.Variant(ctx, owner, name)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(v); err == nil {
		// Cache failures never fail the lookup.
		if c.cache.Set(ctx, key, data, c.ttl) == nil {
			observability.Cache().OnCacheSet(ctx, "variant", len(data))
		}
	}
	return v, nil
}
