// Package scenario holds the scripted end-to-end walks through the
// shared-tasks API: each one registers users, exercises delegation and
// activity endpoints in a fixed order, prints what it sees and records
// checks on the outcomes it expects.
package scenario

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Scenario is one scripted walk. Run returns a non-nil error only when the
// walk cannot continue; expected outcomes are recorded as checks on env.Out.
type Scenario struct {
	Name     string
	Synopsis string
	Run      func(ctx context.Context, env *Env) error
}

// Registry holds registered scenarios.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Scenario
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Scenario)}
}

// Register adds s. Returns an error if the name is already registered.
func (r *Registry) Register(s Scenario) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Name == "" || s.Run == nil {
		return fmt.Errorf("scenario needs a name and a run func")
	}
	if _, exists := r.byName[s.Name]; exists {
		return fmt.Errorf("scenario already registered: %s", s.Name)
	}
	r.byName[s.Name] = s
	return nil
}

func (r *Registry) Find(name string) (Scenario, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	return s, ok
}

// All returns every scenario sorted by name.
func (r *Registry) All() []Scenario {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Scenario, 0, len(r.byName))
	for _, s := range r.byName {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Default is the registry the built-in scenarios add themselves to.
var Default = NewRegistry()

func register(s Scenario) {
	if err := Default.Register(s); err != nil {
		panic(err)
	}
}
