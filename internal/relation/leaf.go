package relation

import (
	"maps"
	"slices"
	"sync/atomic"
)

var leafIDs atomic.Uint64

// Leaf is a relation whose rows come directly from an engine: a table, a
// cached result, or a constant. Its payload is opaque to the algebra and
// interpreted by Engine.EvaluateLeaf.
type Leaf struct {
	id         uint64
	name       string
	engine     Engine
	tree       *EngineTree
	columns    ColumnSet
	uniqueKeys KeySet
	fullKeys   ColumnSet
	payload    any
	parameters map[string]any
	doomedBy   []string
}

// LeafOption configures a leaf.
type LeafOption func(*Leaf)

// WithUniqueKeys declares the leaf's unique keys.
func WithUniqueKeys(keys ...UniqueKey) LeafOption {
	return func(l *Leaf) { l.uniqueKeys = NewKeySet(keys...) }
}

// WithFullKeys declares columns known never to hold nulls.
func WithFullKeys(cols ColumnSet) LeafOption {
	return func(l *Leaf) { l.fullKeys = cols }
}

// WithPayload attaches engine-specific state, such as a table description
// or literal rows.
func WithPayload(payload any) LeafOption {
	return func(l *Leaf) { l.payload = payload }
}

// WithParameters attaches serializable, engine-independent parameters.
func WithParameters(params map[string]any) LeafOption {
	return func(l *Leaf) { l.parameters = maps.Clone(params) }
}

// WithDoomedBy marks the leaf as known to be empty.
func WithDoomedBy(messages ...string) LeafOption {
	return func(l *Leaf) { l.doomedBy = sortedMessages(messages) }
}

// NewLeaf builds a leaf. Every leaf gets a process-unique ID, so two leaves
// built from identical arguments are still different relations.
func NewLeaf(name string, engine Engine, columns ColumnSet, opts ...LeafOption) (*Leaf, error) {
	if engine == nil {
		return nil, newEngineError(nil, "leaf %s has no engine", name)
	}
	l := &Leaf{
		id:      leafIDs.Add(1),
		name:    name,
		engine:  engine,
		tree:    BuildEngineTree(engine),
		columns: columns,
	}
	for _, opt := range opts {
		opt(l)
	}
	if missing := l.uniqueKeys.Columns().Difference(columns); !missing.IsEmpty() {
		return nil, newColumnError(missing, "unique keys of leaf %s are not all columns", name)
	}
	if missing := l.fullKeys.Difference(columns); !missing.IsEmpty() {
		return nil, newColumnError(missing, "full keys of leaf %s are not all columns", name)
	}
	l.uniqueKeys = DropCoveredInternalUniqueKeys(l.uniqueKeys)
	return l, nil
}

// ID is the leaf's process-unique identity, suitable as a cache key.
func (l *Leaf) ID() uint64 { return l.id }

// Name is a human-readable label, also used to find the leaf again after
// serialization.
func (l *Leaf) Name() string { return l.name }

// LeafEngine is the engine that owns the leaf's data.
func (l *Leaf) LeafEngine() Engine { return l.engine }

// Payload is the engine-specific state given at construction.
func (l *Leaf) Payload() any { return l.payload }

// Parameters returns a copy of the leaf's parameters.
func (l *Leaf) Parameters() map[string]any { return maps.Clone(l.parameters) }

// FullKeys are columns that never hold nulls.
func (l *Leaf) FullKeys() ColumnSet { return l.fullKeys }

func (l *Leaf) Engine() *EngineTree { return l.tree }
func (l *Leaf) Columns() ColumnSet  { return l.columns }
func (l *Leaf) UniqueKeys() KeySet  { return l.uniqueKeys }
func (l *Leaf) DoomedBy() []string  { return slices.Clone(l.doomedBy) }
func (l *Leaf) String() string      { return l.name }
func (l *Leaf) accept(d dispatcher) { d.leaf(l) }

// CheckedAndSimplified returns the leaf; leaves are validated when built.
func (l *Leaf) CheckedAndSimplified(bool) (Relation, error) {
	return l, nil
}

// Serialize writes the leaf's serializable fields. The payload is not
// written; readers rebuild it through their hooks.
func (l *Leaf) Serialize(w Writer) map[string]any {
	doc := map[string]any{
		"name":        l.name,
		"engine":      w.WriteEngine(l.engine),
		"columns":     w.WriteColumns(l.columns),
		"unique_keys": w.WriteUniqueKeys(l.uniqueKeys),
	}
	if !l.fullKeys.IsEmpty() {
		doc["full_keys"] = w.WriteColumns(l.fullKeys)
	}
	if len(l.parameters) > 0 {
		doc["parameters"] = maps.Clone(l.parameters)
	}
	if len(l.doomedBy) > 0 {
		msgs := make([]any, len(l.doomedBy))
		for i, m := range l.doomedBy {
			msgs[i] = m
		}
		doc["doomed_by"] = msgs
	}
	return doc
}
