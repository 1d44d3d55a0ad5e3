// Package metadata supplies module descriptors to the resolution engine.
//
// The engine only ever sees the [Source] interface: selector-to-version
// resolution plus variant lookup. Backends include an in-memory fixture
// store (project-local modules, tests), a TOML descriptor directory acting
// as a local repository, and a caching decorator that can sit in front of
// any other source.
package metadata

import (
	"context"
	"errors"

	"github.com/matzehuels/depsolve/pkg/module"
)

// ErrNotFound is returned when a selector matches no known module or a
// variant does not exist on a module version.
var ErrNotFound = errors.New("module not found")

// Source provides the module metadata consumed during graph construction.
//
// Implementations must be safe for concurrent use: the graph builder issues
// lookups from multiple traversal workers at once.
type Source interface {
	// ResolveSelector maps a selector to the concrete module version that
	// satisfies it. Version ranges select the highest matching published
	// version. Returns ErrNotFound when nothing matches.
	ResolveSelector(ctx context.Context, sel module.Selector) (module.VersionID, error)

	// Variant returns the named variant of a concrete module version,
	// including its declared dependencies and capabilities.
	// Returns ErrNotFound when the version or variant does not exist.
	Variant(ctx context.Context, owner module.VersionID, name string) (*module.Variant, error)
}
