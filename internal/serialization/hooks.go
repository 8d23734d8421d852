package serialization

import (
	"fmt"
	"maps"

	"github.com/roach88/relir/internal/expr"
	"github.com/roach88/relir/internal/relation"
)

// Hooks rebuild the engine-specific parts of a tree from their
// engine-independent serialized fields. The Reader handles structure and
// calls the hooks for everything else.
type Hooks interface {
	ReadColumn(raw any) (relation.ColumnTag, error)
	ReadEngine(raw any) (relation.Engine, error)
	ReadLeaf(spec LeafSpec) (relation.Relation, error)
	ReadPredicate(doc map[string]any) (relation.Predicate, error)
	ReadOrderByTerm(doc map[string]any) (relation.OrderByTerm, error)
	ReadJoinCondition(doc map[string]any) (*relation.JoinCondition, error)
	ReadExpression(doc map[string]any) (relation.Expression, error)
	ReadExtension(name string, base relation.Relation, payload map[string]any) (relation.ExtensionOp, error)
}

// LeafSpec is a decoded leaf document.
type LeafSpec struct {
	Name       string
	Engine     relation.Engine
	Columns    relation.ColumnSet
	UniqueKeys []relation.UniqueKey
	FullKeys   relation.ColumnSet
	Parameters map[string]any
	DoomedBy   []string
	// Extra holds fields the standard leaf form does not define.
	Extra map[string]any
}

// HelperKind distinguishes the named helper objects whose engine state
// BasicHooks rebuilds.
type HelperKind string

const (
	HelperPredicate     HelperKind = "predicate"
	HelperOrderBy       HelperKind = "order_by"
	HelperJoinCondition HelperKind = "join_condition"
)

// StateFunc builds the implementation of a named helper for one engine.
type StateFunc func(kind HelperKind, name string, engine relation.Engine, general map[string]any) (any, error)

// ExtensionDecoder rebuilds an extension operation on top of base.
type ExtensionDecoder func(base relation.Relation, payload map[string]any) (relation.ExtensionOp, error)

// BasicHooks resolves engines by name from a fixed registry, builds plain
// leaves, and reads predicates and order-by terms either as expressions or
// as named helpers. Leaves are shared: reading the same leaf name twice
// returns the same relation. BasicHooks is not safe for concurrent use.
type BasicHooks struct {
	Engines map[string]relation.Engine
	// LeafPayload attaches engine-specific state to each new leaf.
	LeafPayload func(spec LeafSpec) (any, error)
	// State builds helper implementations. Nil stores the helper name.
	State      StateFunc
	Extensions map[string]ExtensionDecoder

	exprs  *expr.Reader
	leaves map[string]*relation.Leaf
}

// NewBasicHooks returns hooks that know the given engines by name.
func NewBasicHooks(engines ...relation.Engine) *BasicHooks {
	h := &BasicHooks{
		Engines:    make(map[string]relation.Engine, len(engines)),
		Extensions: map[string]ExtensionDecoder{},
	}
	for _, e := range engines {
		h.Engines[e.String()] = e
	}
	return h
}

// RegisterExtension adds a decoder for extension documents named name.
func (h *BasicHooks) RegisterExtension(name string, decode ExtensionDecoder) {
	if h.Extensions == nil {
		h.Extensions = map[string]ExtensionDecoder{}
	}
	h.Extensions[name] = decode
}

func (h *BasicHooks) ReadColumn(raw any) (relation.ColumnTag, error) {
	return expr.PlainColumns(raw)
}

func (h *BasicHooks) ReadEngine(raw any) (relation.Engine, error) {
	name, ok := raw.(string)
	if !ok {
		return nil, relation.NewSerializationError("", "expected an engine name, got %T", raw)
	}
	e, ok := h.Engines[name]
	if !ok {
		return nil, relation.NewSerializationError("", "unknown engine %q", name)
	}
	return e, nil
}

func (h *BasicHooks) ReadLeaf(spec LeafSpec) (relation.Relation, error) {
	if prev, ok := h.leaves[spec.Name]; ok {
		if prev.LeafEngine() != spec.Engine || !prev.Columns().Equal(spec.Columns) {
			return nil, relation.NewSerializationError("name", "leaf %q appears twice with different engines or columns", spec.Name)
		}
		return prev, nil
	}
	opts := []relation.LeafOption{
		relation.WithUniqueKeys(spec.UniqueKeys...),
		relation.WithFullKeys(spec.FullKeys),
		relation.WithDoomedBy(spec.DoomedBy...),
	}
	if len(spec.Parameters) > 0 {
		opts = append(opts, relation.WithParameters(spec.Parameters))
	}
	if h.LeafPayload != nil {
		payload, err := h.LeafPayload(spec)
		if err != nil {
			return nil, fmt.Errorf("leaf %s: %w", spec.Name, err)
		}
		opts = append(opts, relation.WithPayload(payload))
	}
	leaf, err := relation.NewLeaf(spec.Name, spec.Engine, spec.Columns, opts...)
	if err != nil {
		return nil, err
	}
	if h.leaves == nil {
		h.leaves = map[string]*relation.Leaf{}
	}
	h.leaves[spec.Name] = leaf
	return leaf, nil
}

func (h *BasicHooks) ReadPredicate(doc map[string]any) (relation.Predicate, error) {
	if expr.IsPredicateDocument(doc) {
		return h.expressions().ReadPredicate(doc)
	}
	name, columns, general, state, err := h.readHelper(HelperPredicate, doc)
	if err != nil {
		return nil, err
	}
	return relation.NewPredicate(name, columns, general, state)
}

func (h *BasicHooks) ReadOrderByTerm(doc map[string]any) (relation.OrderByTerm, error) {
	if _, ok := doc["expression"]; ok {
		return h.expressions().ReadOrderBy(doc)
	}
	ascending, ok := doc["ascending"].(bool)
	if !ok {
		return nil, relation.NewSerializationError("ascending", "expected a bool, got %T", doc["ascending"])
	}
	name, columns, general, state, err := h.readHelper(HelperOrderBy, doc)
	if err != nil {
		return nil, err
	}
	return relation.NewOrderByTerm(name, columns, ascending, general, state)
}

func (h *BasicHooks) ReadJoinCondition(doc map[string]any) (*relation.JoinCondition, error) {
	sides, ok := doc["columns_required"].([]any)
	if !ok || len(sides) != 2 {
		return nil, relation.NewSerializationError("columns_required", "expected [lhs, rhs] column lists")
	}
	lhs, err := readColumns(h, sides[0], "columns_required[0]")
	if err != nil {
		return nil, err
	}
	rhs, err := readColumns(h, sides[1], "columns_required[1]")
	if err != nil {
		return nil, err
	}
	name, _ := doc["name"].(string)
	general, err := generalOf(doc)
	if err != nil {
		return nil, err
	}
	state, err := h.readState(HelperJoinCondition, name, doc, general)
	if err != nil {
		return nil, err
	}
	c, err := relation.NewJoinCondition(name, lhs, rhs, general, state)
	if err != nil {
		return nil, err
	}
	if flipped, _ := doc["flipped"].(bool); flipped {
		c = c.Flipped()
	}
	return c, nil
}

func (h *BasicHooks) ReadExpression(doc map[string]any) (relation.Expression, error) {
	return h.expressions().ReadExpression(doc)
}

func (h *BasicHooks) ReadExtension(name string, base relation.Relation, payload map[string]any) (relation.ExtensionOp, error) {
	decode, ok := h.Extensions[name]
	if !ok {
		return nil, relation.NewSerializationError("name", "no decoder for extension %q", name)
	}
	return decode(base, payload)
}

func (h *BasicHooks) expressions() *expr.Reader {
	if h.exprs == nil {
		h.exprs = expr.NewReader(h.ReadColumn)
	}
	return h.exprs
}

func (h *BasicHooks) readHelper(kind HelperKind, doc map[string]any) (string, relation.ColumnSet, map[string]any, *relation.EngineState, error) {
	name, ok := doc["name"].(string)
	if !ok || name == "" {
		return "", relation.ColumnSet{}, nil, nil, relation.NewSerializationError("name", "%s has no name", kind)
	}
	columns, err := readColumns(h, doc["columns_required"], "columns_required")
	if err != nil {
		return "", relation.ColumnSet{}, nil, nil, err
	}
	general, err := generalOf(doc)
	if err != nil {
		return "", relation.ColumnSet{}, nil, nil, err
	}
	state, err := h.readState(kind, name, doc, general)
	if err != nil {
		return "", relation.ColumnSet{}, nil, nil, err
	}
	return name, columns, general, state, nil
}

func (h *BasicHooks) readState(kind HelperKind, name string, doc, general map[string]any) (*relation.EngineState, error) {
	raw, err := list(doc["engines"], "engines")
	if err != nil {
		return nil, err
	}
	state := relation.NewEngineState()
	for i, item := range raw {
		engine, err := h.ReadEngine(item)
		if err != nil {
			return nil, fmt.Errorf("engines[%d]: %w", i, err)
		}
		var impl any = name
		if h.State != nil {
			if impl, err = h.State(kind, name, engine, general); err != nil {
				return nil, fmt.Errorf("%s %s on %s: %w", kind, name, engine, err)
			}
		}
		state = state.With(engine, impl)
	}
	return state, nil
}

func generalOf(doc map[string]any) (map[string]any, error) {
	raw, ok := doc["general"]
	if !ok || raw == nil {
		return nil, nil
	}
	general, ok := raw.(map[string]any)
	if !ok {
		return nil, relation.NewSerializationError("general", "expected a mapping, got %T", raw)
	}
	return maps.Clone(general), nil
}
