// Package bundle holds research-type descriptors: the prompt set, domain
// taxonomy, fact categories, and output schema for each supported research
// type. The engine looks a bundle up once at run start; unknown names fail
// the run immediately.
package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Domain is one predefined facet of inquiry searched independently during
// breadth-first research.
type Domain struct {
	Label string
	Hint  string // appended to the supervisor's query to derive the domain query
}

// Bundle supplies everything research-type-specific: decision policy
// prompts, gap-analysis prompt, structuring prompt, taxonomy, and the output
// schema with its validation.
type Bundle interface {
	Name() string
	DisplayName() string
	SubjectNoun() string

	// Domains returns the fixed taxonomy for breadth-first fan-out.
	// Nil means a single implicit domain.
	Domains() []Domain

	// Categories are the fact categories the extraction step sorts into.
	Categories() []string

	SupervisorPrompt(subject, gapSummary, lastNote string) string
	GapPrompt(digest string) string
	StructurePrompt(subject, digest string) string

	// DecodeOutput validates a candidate structure against the output
	// schema, returning the typed artifact or a validation error.
	DecodeOutput(raw []byte) (any, error)
}

// Registry maps research-type names to bundles. Registration happens via
// explicit construction at startup.
type Registry struct {
	mu      sync.RWMutex
	bundles map[string]Bundle
}

func NewRegistry() *Registry {
	return &Registry{bundles: make(map[string]Bundle)}
}

// DefaultRegistry returns a registry with all built-in research types.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, b := range []Bundle{
		Biography{}, Company{}, Market{}, Topic{}, People{},
	} {
		if err := r.Register(b); err != nil {
			panic(err) // built-ins are registered exactly once
		}
	}
	return r
}

// Register adds a bundle, rejecting duplicate names.
func (r *Registry) Register(b Bundle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := strings.ToLower(strings.TrimSpace(b.Name()))
	if name == "" {
		return fmt.Errorf("bundle name cannot be empty")
	}
	if _, ok := r.bundles[name]; ok {
		return fmt.Errorf("research type %q is already registered", name)
	}
	r.bundles[name] = b
	return nil
}

// Get retrieves a bundle by name.
func (r *Registry) Get(name string) (Bundle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bundles[strings.ToLower(strings.TrimSpace(name))]
	return b, ok
}

// List returns all registered research-type names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.bundles))
	for name := range r.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// decodeStrict unmarshals raw into v, rejecting unknown fields so schema
// drift surfaces as a validation error instead of silent data loss.
func decodeStrict(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding structured output: %w", err)
	}
	return nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
