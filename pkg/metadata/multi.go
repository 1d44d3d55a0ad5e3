package metadata

import (
	"context"
	"errors"

	"github.com/matzehuels/depsolve/pkg/module"
)

// Multi chains sources: lookups try each in order and return the first hit.
// Project-local sources are typically placed before registry-backed ones so
// subprojects shadow published modules of the same identity.
type Multi []Source

// Chain builds a Multi from the given sources.
func Chain(sources ...Source) Multi { return Multi(sources) }

// ResolveSelector implements Source.
func (m Multi) ResolveSelector(ctx context.Context, sel module.Selector) (module.VersionID, error) {
	for _, src := range m {
		owner, err := src.ResolveSelector(ctx, sel)
		if err == nil {
			return owner, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return module.VersionID{}, err
		}
	}
	return module.VersionID{}, ErrNotFound
}

// Variant implements Source.
func (m Multi) Variant(ctx context.Context, owner module.VersionID, name string) (*module.Variant, error) {
	for _, src := range m {
		v, err := src.Variant(ctx, owner, name)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}
