package agent

import (
	"io"
	"log"
	"testing"

	"github.com/Kris4js/WildGooseAgent/config"
	"github.com/Kris4js/WildGooseAgent/internal/contextstore"
	"github.com/Kris4js/WildGooseAgent/internal/llm"
	"github.com/Kris4js/WildGooseAgent/internal/tools"
)

type testAgentOpts struct {
	maxIterations       int
	emptySelectionFails bool
	registry            *tools.Registry
}

func newTestAgent(t *testing.T, provider llm.Provider, opts testAgentOpts) (*Agent, contextstore.Store) {
	t.Helper()
	store, err := contextstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := opts.registry
	if registry == nil {
		registry = tools.NewRegistry()
	}
	a, err := New(Options{
		Config: config.AgentConfig{
			Name:                "WildGoose",
			MaxIterations:       opts.maxIterations,
			EmptySelectionFails: opts.emptySelectionFails,
		},
		Routing:  config.LLMRoutingConfig{Small: "gpt-4o-mini", Large: "gpt-4o"},
		Provider: provider,
		Registry: registry,
		Store:    store,
		Logger:   log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, store
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("New with no provider should fail")
	}
}

func TestNewDefaults(t *testing.T) {
	a, _ := newTestAgent(t, &stubProvider{}, testAgentOpts{})
	if a.MaxIterations() != defaultMaxIterations {
		t.Errorf("MaxIterations = %d, want %d", a.MaxIterations(), defaultMaxIterations)
	}
}
