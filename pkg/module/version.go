package module

import (
	"strconv"
	"strings"

	semver "github.com/Masterminds/semver/v3"
)

// CompareVersions orders two version strings for conflict resolution.
//
// When both versions parse as (lenient) semantic versions, semver ordering
// applies, so "1.10.0" > "1.9.0" and "2.0.0-rc.1" < "2.0.0". Otherwise a
// component-wise fallback takes over: versions are split on '.', '-', '_'
// and '+', numeric parts compare numerically, string parts lexically, and a
// numeric part outranks a string part at the same position. The fallback is
// a total order, so any two version strings are comparable.
//
// Returns -1 if a < b, 0 if equal, 1 if a > b.
func CompareVersions(a, b string) int {
	if a == b {
		return 0
	}
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		if cmp := va.Compare(vb); cmp != 0 {
			return cmp
		}
		// Semver-equal but textually different (e.g. "1.0" vs "1.0.0").
		return strings.Compare(a, b)
	}
	return compareParts(splitVersion(a), splitVersion(b))
}

// MaxVersion returns the highest of the given version strings, or "" for an
// empty input. Selection is deterministic for any input order.
func MaxVersion(versions []string) string {
	best := ""
	for i, v := range versions {
		if i == 0 || CompareVersions(v, best) > 0 {
			best = v
		}
	}
	return best
}

func splitVersion(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == '.' || r == '-' || r == '_' || r == '+'
	})
}

func compareParts(a, b []string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		na, okA := parseNumeric(a[i])
		nb, okB := parseNumeric(b[i])
		switch {
		case okA && okB:
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
		case okA:
			return 1 // numeric outranks string
		case okB:
			return -1
		default:
			if cmp := strings.Compare(a[i], b[i]); cmp != 0 {
				return cmp
			}
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func parseNumeric(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}
