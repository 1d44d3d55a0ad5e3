package resolve

import (
	"testing"

	"github.com/matzehuels/depsolve/pkg/graph"
	"github.com/matzehuels/depsolve/pkg/module"
)

func candidate(group, name, version, capVersion string) *graph.Node {
	return &graph.Node{
		ID:           graph.NodeID(owner(group, name, version), "runtime"),
		Owner:        owner(group, name, version),
		Variant:      "runtime",
		Capabilities: []module.Capability{capv("org", "logging", capVersion)},
	}
}

func TestPolicyChoose(t *testing.T) {
	logging := capv("org", "logging", "1.0")

	t.Run("RejectAll", func(t *testing.T) {
		candidates := []*graph.Node{candidate("org", "a", "1.0", "1.0"), candidate("org", "b", "1.0", "2.0")}
		if _, ok := RejectAll().Choose(logging, candidates); ok {
			t.Error("reject-all policy chose a winner")
		}
	})

	t.Run("HighestVersionWins", func(t *testing.T) {
		candidates := []*graph.Node{candidate("org", "a", "1.0", "1.0"), candidate("org", "b", "1.0", "2.0")}
		winner, ok := HighestVersion().Choose(logging, candidates)
		if !ok || winner != "org:b:1.0/runtime" {
			t.Errorf("winner = %q, ok = %v", winner, ok)
		}
	})

	t.Run("HighestVersionTieAcrossModules", func(t *testing.T) {
		candidates := []*graph.Node{candidate("org", "a", "1.0", "1.0"), candidate("org", "b", "1.0", "1.0")}
		if _, ok := HighestVersion().Choose(logging, candidates); ok {
			t.Error("tie between distinct modules must not choose")
		}
	})

	t.Run("HighestVersionOrderIndependent", func(t *testing.T) {
		a := candidate("org", "a", "1.0", "3.0")
		b := candidate("org", "b", "1.0", "2.0")
		w1, _ := HighestVersion().Choose(logging, []*graph.Node{a, b})
		w2, _ := HighestVersion().Choose(logging, []*graph.Node{b, a})
		if w1 != w2 {
			t.Errorf("winner depends on candidate order: %q vs %q", w1, w2)
		}
	})

	t.Run("ExplicitRule", func(t *testing.T) {
		policy := ExplicitRules(map[module.CapabilityID]module.ID{
			logging.ID(): mid("org", "b"),
		})
		candidates := []*graph.Node{candidate("org", "a", "1.0", "1.0"), candidate("org", "b", "1.0", "1.0")}
		winner, ok := policy.Choose(logging, candidates)
		if !ok || winner != "org:b:1.0/runtime" {
			t.Errorf("winner = %q, ok = %v", winner, ok)
		}
	})

	t.Run("ExplicitRuleMissing", func(t *testing.T) {
		policy := ExplicitRules(nil)
		candidates := []*graph.Node{candidate("org", "a", "1.0", "1.0"), candidate("org", "b", "1.0", "1.0")}
		if _, ok := policy.Choose(logging, candidates); ok {
			t.Error("policy without a matching rule chose a winner")
		}
	})
}
