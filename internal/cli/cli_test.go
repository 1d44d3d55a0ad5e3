package cli

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
)

func TestRootCommand(t *testing.T) {
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()

	if root.Use != "depsolve" {
		t.Errorf("Use = %q", root.Use)
	}

	want := []string{"resolve", "graph", "serve", "cache", "completion"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}

	if root.PersistentFlags().Lookup("verbose") == nil {
		t.Error("missing persistent --verbose flag")
	}
}

func TestSetLogLevel(t *testing.T) {
	c := New(io.Discard, LogInfo)
	if got := c.Logger.GetLevel(); got != log.InfoLevel {
		t.Fatalf("initial level = %v", got)
	}
	c.SetLogLevel(LogDebug)
	if got := c.Logger.GetLevel(); got != log.DebugLevel {
		t.Errorf("level after SetLogLevel = %v", got)
	}
}
