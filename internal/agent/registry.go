package agent

import (
	"fmt"
	"sort"

	"github.com/xqin1/pipeflow/internal/adapter/llm"
)

// Registry holds the fixed set of agent capabilities. Agent identifiers in
// a workflow definition are resolved here at validation time so that the
// execution hot path never does string dispatch against unknown names.
type Registry struct {
	capabilities map[string]Capability
}

// NewRegistry builds the registry of built-in agents backed by the given
// generation client.
func NewRegistry(client llm.Client) *Registry {
	caps := []Capability{
		&researchAgent{client: client},
		&summarizerAgent{client: client},
		&insightAgent{client: client},
		&devilAgent{client: client},
	}
	m := make(map[string]Capability, len(caps))
	for _, c := range caps {
		m[c.ID()] = c
	}
	return &Registry{capabilities: m}
}

// IDs returns the known agent identifiers in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.capabilities))
	for id := range r.capabilities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve maps a workflow's agent sequence to concrete capabilities.
// Duplicates are allowed. The first unknown identifier fails resolution.
func (r *Registry) Resolve(sequence []string) ([]Capability, error) {
	if len(sequence) == 0 {
		return nil, fmt.Errorf("agent sequence is empty")
	}
	resolved := make([]Capability, 0, len(sequence))
	for _, id := range sequence {
		c, ok := r.capabilities[id]
		if !ok {
			return nil, fmt.Errorf("unknown agent %q", id)
		}
		resolved = append(resolved, c)
	}
	return resolved, nil
}
