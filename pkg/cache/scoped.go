package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation.
// Useful when one cache backend is shared between repositories or tenants
// that must not see each other's descriptors.
//
// Example usage:
//
//	// Per-repository keys for the resolve server
//	repoKeyer := NewScopedKeyer(NewDefaultKeyer(), "repo:acme:")
//
//	// Global keys for a single-project CLI run
//	globalKeyer := NewDefaultKeyer()
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// VariantKey generates a prefixed key for a module variant descriptor.
func (k *ScopedKeyer) VariantKey(owner, variant string) string {
	return k.prefix + k.inner.VariantKey(owner, variant)
}
