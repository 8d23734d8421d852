package relation

import (
	"slices"
	"sort"
)

// EngineOptions are the capability flags an engine advertises. Simplification
// consults them when deciding whether to flatten or reject a node.
type EngineOptions struct {
	FlattenJoins       bool `yaml:"flatten_joins" mapstructure:"flatten_joins"`
	FlattenUnions      bool `yaml:"flatten_unions" mapstructure:"flatten_unions"`
	PairwiseJoinsOnly  bool `yaml:"pairwise_joins_only" mapstructure:"pairwise_joins_only"`
	PairwiseUnionsOnly bool `yaml:"pairwise_unions_only" mapstructure:"pairwise_unions_only"`
	CanSort            bool `yaml:"can_sort" mapstructure:"can_sort"`
}

// DefaultEngineOptions flattens nested joins and unions and allows sorting.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		FlattenJoins:  true,
		FlattenUnions: true,
		CanSort:       true,
	}
}

// Engine is an opaque identity for a system that evaluates relations.
// Engines are compared by identity; two engines with the same name are
// different engines.
type Engine interface {
	String() string
	Options() EngineOptions
	// EvaluateLeaf resolves the engine-specific payload of a leaf.
	EvaluateLeaf(leaf *Leaf) (any, error)
	// ColumnFunction looks up an engine-native implementation of a named
	// scalar function used by expressions.
	ColumnFunction(name string) (any, bool)
}

// Tag is an engine that only carries a name, options, and a set of
// supported function names. It cannot evaluate anything, which makes it
// the engine of choice for planning and for the command-line tools.
type Tag struct {
	name      string
	options   EngineOptions
	functions map[string]struct{}
}

// TagOption configures a Tag.
type TagOption func(*Tag)

// WithOptions overrides the engine's options.
func WithOptions(opts EngineOptions) TagOption {
	return func(t *Tag) { t.options = opts }
}

// WithFunctions declares scalar functions the engine understands.
func WithFunctions(names ...string) TagOption {
	return func(t *Tag) {
		for _, n := range names {
			t.functions[n] = struct{}{}
		}
	}
}

// NewTag returns a fresh engine identity.
func NewTag(name string, opts ...TagOption) *Tag {
	t := &Tag{name: name, options: DefaultEngineOptions(), functions: map[string]struct{}{}}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tag) String() string         { return t.name }
func (t *Tag) Options() EngineOptions { return t.options }

func (t *Tag) EvaluateLeaf(leaf *Leaf) (any, error) {
	return nil, newEngineError(t, "engine %s cannot evaluate leaf %s", t.name, leaf.Name())
}

func (t *Tag) ColumnFunction(name string) (any, bool) {
	_, ok := t.functions[name]
	return name, ok
}

// EngineState maps engines to engine-specific implementation state, such as
// a compiled closure or a SQL fragment. It is immutable; With returns a copy.
// A nil *EngineState is empty.
type EngineState struct {
	entries map[Engine]any
}

// NewEngineState returns an empty side table.
func NewEngineState() *EngineState {
	return &EngineState{entries: map[Engine]any{}}
}

// With returns a copy of s with engine mapped to state.
func (s *EngineState) With(engine Engine, state any) *EngineState {
	out := NewEngineState()
	if s != nil {
		for k, v := range s.entries {
			out.entries[k] = v
		}
	}
	out.entries[engine] = state
	return out
}

// Lookup returns the state recorded for engine.
func (s *EngineState) Lookup(engine Engine) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.entries[engine]
	return v, ok
}

// Supports reports whether engine has an entry.
func (s *EngineState) Supports(engine Engine) bool {
	_, ok := s.Lookup(engine)
	return ok
}

// Engines returns the engines with entries, ordered by name.
func (s *EngineState) Engines() []Engine {
	if s == nil {
		return nil
	}
	out := make([]Engine, 0, len(s.entries))
	for e := range s.entries {
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// EngineNames returns the sorted names of the engines with entries.
func (s *EngineState) EngineNames() []string {
	engines := s.Engines()
	names := make([]string, len(engines))
	for i, e := range engines {
		names[i] = e.String()
	}
	return slices.Compact(names)
}
