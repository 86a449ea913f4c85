// Package engine dispatches research queries to independent engines in
// parallel, parses each free-form answer into a typed payload, and merges the
// disagreeing results under a confidence-weighted policy.
package engine

import "context"

// ResearchEngine is one external research capability: given a structured
// prompt, return free-form researched text. The enricher is agnostic to how
// an engine finds its data.
type ResearchEngine interface {
	Name() string
	Research(ctx context.Context, prompt string) (string, error)
}

// Registration binds an engine to its merge weight. Registration order is
// significant: earlier engines win first-non-null scalar conflicts and the
// first engine anchors divergence computation.
type Registration struct {
	Engine ResearchEngine
	Weight float64
}

// Registry is the ordered set of wired engines.
type Registry struct {
	entries []Registration
}

// NewRegistry builds a registry from ordered registrations. Entries with a
// nil engine are skipped; non-positive weights default to 1.
func NewRegistry(regs ...Registration) *Registry {
	r := &Registry{}
	for _, reg := range regs {
		if reg.Engine == nil {
			continue
		}
		if reg.Weight <= 0 {
			reg.Weight = 1
		}
		r.entries = append(r.entries, reg)
	}
	return r
}

// Entries returns the ordered registrations.
func (r *Registry) Entries() []Registration {
	return r.entries
}

// Len returns the number of wired engines.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Order returns engine names in priority order.
func (r *Registry) Order() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Engine.Name()
	}
	return names
}

// Weights returns the per-engine merge weights keyed by name.
func (r *Registry) Weights() map[string]float64 {
	out := make(map[string]float64, len(r.entries))
	for _, e := range r.entries {
		out[e.Engine.Name()] = e.Weight
	}
	return out
}
