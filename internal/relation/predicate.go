package relation

import (
	"fmt"
	"maps"
	"strings"

	"github.com/roach88/relir/internal/value"
)

// Predicate is a boolean filter over a relation's rows.
type Predicate interface {
	String() string
	// Key identifies the predicate for de-duplication.
	Key() string
	ColumnsRequired() ColumnSet
	SupportsEngine(engine Engine) bool
	Serialize(w Writer) (map[string]any, error)
}

// OrderByTerm is one sort key of a Slice.
type OrderByTerm interface {
	String() string
	Key() string
	ColumnsRequired() ColumnSet
	SupportsEngine(engine Engine) bool
	Ascending() bool
	// Reversed returns the same term sorting the other way.
	Reversed() OrderByTerm
	Serialize(w Writer) (map[string]any, error)
}

// Expression computes a new column value from existing columns.
type Expression interface {
	String() string
	ColumnsRequired() ColumnSet
	SupportsEngine(engine Engine) bool
	Serialize(w Writer) (map[string]any, error)
}

// BasicPredicate is a named predicate whose behavior lives entirely in
// engine state: each engine that supports it has an entry holding its
// implementation.
type BasicPredicate struct {
	name    string
	columns ColumnSet
	general map[string]any
	state   *EngineState
	key     string
}

// NewPredicate builds a BasicPredicate. General holds engine-independent
// parameters and must be representable as canonical JSON.
func NewPredicate(name string, columns ColumnSet, general map[string]any, state *EngineState) (*BasicPredicate, error) {
	key, err := helperKey("predicate", name, columns, general)
	if err != nil {
		return nil, err
	}
	return &BasicPredicate{name: name, columns: columns, general: maps.Clone(general), state: state, key: key}, nil
}

// MustPredicate is NewPredicate that panics on error.
func MustPredicate(name string, columns ColumnSet, general map[string]any, state *EngineState) *BasicPredicate {
	p, err := NewPredicate(name, columns, general, state)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *BasicPredicate) Name() string                      { return p.name }
func (p *BasicPredicate) Key() string                       { return p.key }
func (p *BasicPredicate) ColumnsRequired() ColumnSet        { return p.columns }
func (p *BasicPredicate) General() map[string]any           { return maps.Clone(p.general) }
func (p *BasicPredicate) State() *EngineState               { return p.state }
func (p *BasicPredicate) SupportsEngine(engine Engine) bool { return p.state.Supports(engine) }

func (p *BasicPredicate) String() string {
	return helperString(p.name, p.columns)
}

func (p *BasicPredicate) Serialize(w Writer) (map[string]any, error) {
	return helperDoc(w, p.name, w.WriteColumns(p.columns), p.general, p.state), nil
}

// BasicOrderByTerm is a named sort key whose comparison lives in engine
// state, like BasicPredicate.
type BasicOrderByTerm struct {
	name      string
	columns   ColumnSet
	ascending bool
	general   map[string]any
	state     *EngineState
	key       string
}

// NewOrderByTerm builds a BasicOrderByTerm.
func NewOrderByTerm(name string, columns ColumnSet, ascending bool, general map[string]any, state *EngineState) (*BasicOrderByTerm, error) {
	key, err := helperKey(fmt.Sprintf("order_by(ascending=%t)", ascending), name, columns, general)
	if err != nil {
		return nil, err
	}
	return &BasicOrderByTerm{
		name:      name,
		columns:   columns,
		ascending: ascending,
		general:   maps.Clone(general),
		state:     state,
		key:       key,
	}, nil
}

func (t *BasicOrderByTerm) Name() string                      { return t.name }
func (t *BasicOrderByTerm) Key() string                       { return t.key }
func (t *BasicOrderByTerm) ColumnsRequired() ColumnSet        { return t.columns }
func (t *BasicOrderByTerm) Ascending() bool                   { return t.ascending }
func (t *BasicOrderByTerm) General() map[string]any           { return maps.Clone(t.general) }
func (t *BasicOrderByTerm) State() *EngineState               { return t.state }
func (t *BasicOrderByTerm) SupportsEngine(engine Engine) bool { return t.state.Supports(engine) }

func (t *BasicOrderByTerm) Reversed() OrderByTerm {
	out, err := NewOrderByTerm(t.name, t.columns, !t.ascending, t.general, t.state)
	if err != nil {
		// general already produced a key once, so it cannot fail now
		panic(err)
	}
	return out
}

func (t *BasicOrderByTerm) String() string {
	s := helperString(t.name, t.columns)
	if !t.ascending {
		return "-" + s
	}
	return s
}

func (t *BasicOrderByTerm) Serialize(w Writer) (map[string]any, error) {
	doc := helperDoc(w, t.name, w.WriteColumns(t.columns), t.general, t.state)
	doc["ascending"] = t.ascending
	return doc, nil
}

// JoinCondition relates columns of two join members beyond equality on
// shared columns. It is directional: LHS columns come from one member and
// RHS columns from another. A flipped condition swaps the sides while
// keeping the engine state, which is written for the unflipped orientation.
type JoinCondition struct {
	name    string
	lhs     ColumnSet
	rhs     ColumnSet
	general map[string]any
	state   *EngineState
	flipped bool
	key     string
}

// NewJoinCondition builds a condition between lhs and rhs columns.
func NewJoinCondition(name string, lhs, rhs ColumnSet, general map[string]any, state *EngineState) (*JoinCondition, error) {
	return newJoinCondition(name, lhs, rhs, maps.Clone(general), state, false)
}

func newJoinCondition(name string, lhs, rhs ColumnSet, general map[string]any, state *EngineState, flipped bool) (*JoinCondition, error) {
	key, err := value.CanonicalString(map[string]any{
		"kind":    "join_condition",
		"name":    name,
		"lhs":     toAnySlice(lhs.Strings()),
		"rhs":     toAnySlice(rhs.Strings()),
		"general": general,
		"flipped": flipped,
	})
	if err != nil {
		return nil, &RelationalAlgebraError{Message: fmt.Sprintf("join condition %s: %v", name, err)}
	}
	return &JoinCondition{name: name, lhs: lhs, rhs: rhs, general: general, state: state, flipped: flipped, key: key}, nil
}

func (c *JoinCondition) Name() string               { return c.name }
func (c *JoinCondition) LHS() ColumnSet             { return c.lhs }
func (c *JoinCondition) RHS() ColumnSet             { return c.rhs }
func (c *JoinCondition) IsFlipped() bool            { return c.flipped }
func (c *JoinCondition) General() map[string]any    { return maps.Clone(c.general) }
func (c *JoinCondition) State() *EngineState        { return c.state }
func (c *JoinCondition) Key() string                { return c.key }
func (c *JoinCondition) ColumnsRequired() ColumnSet { return c.lhs.Union(c.rhs) }

// SupportsEngine reports whether engine has an implementation.
func (c *JoinCondition) SupportsEngine(engine Engine) bool { return c.state.Supports(engine) }

// Engines lists the engines with implementations.
func (c *JoinCondition) Engines() []Engine { return c.state.Engines() }

// Flipped returns the condition with its sides swapped.
func (c *JoinCondition) Flipped() *JoinCondition {
	out, err := newJoinCondition(c.name, c.rhs, c.lhs, c.general, c.state, !c.flipped)
	if err != nil {
		panic(err)
	}
	return out
}

// Matches reports whether the condition applies with lhs columns drawn from
// lhsColumns and rhs columns from rhsColumns.
func (c *JoinCondition) Matches(lhsColumns, rhsColumns ColumnSet) bool {
	return c.lhs.IsSubsetOf(lhsColumns) && c.rhs.IsSubsetOf(rhsColumns)
}

func (c *JoinCondition) String() string {
	return fmt.Sprintf("%s(%s, %s)", c.name, c.lhs, c.rhs)
}

// Serialize writes the condition in its unflipped orientation.
func (c *JoinCondition) Serialize(w Writer) (map[string]any, error) {
	lhs, rhs := c.lhs, c.rhs
	if c.flipped {
		lhs, rhs = rhs, lhs
	}
	doc := helperDoc(w, c.name, []any{w.WriteColumns(lhs), w.WriteColumns(rhs)}, c.general, c.state)
	if c.flipped {
		doc["flipped"] = true
	}
	return doc, nil
}

// FindMatching returns the conditions that apply between lhs and rhs,
// flipping those that only match with the sides swapped.
func FindMatching(lhs, rhs ColumnSet, conditions []*JoinCondition) []*JoinCondition {
	var out []*JoinCondition
	for _, c := range conditions {
		switch {
		case c.Matches(lhs, rhs):
			out = append(out, c)
		case c.Matches(rhs, lhs):
			out = append(out, c.Flipped())
		}
	}
	return out
}

func helperKey(kind, name string, columns ColumnSet, general map[string]any) (string, error) {
	key, err := value.CanonicalString(map[string]any{
		"kind":    kind,
		"name":    name,
		"columns": toAnySlice(columns.Strings()),
		"general": general,
	})
	if err != nil {
		return "", &RelationalAlgebraError{Message: fmt.Sprintf("%s %s: %v", kind, name, err)}
	}
	return key, nil
}

func helperString(name string, columns ColumnSet) string {
	if columns.IsEmpty() {
		return name
	}
	return name + "(" + strings.Join(columns.Strings(), ", ") + ")"
}

func helperDoc(w Writer, name string, columns any, general map[string]any, state *EngineState) map[string]any {
	doc := map[string]any{
		"name":             name,
		"columns_required": columns,
	}
	engines := state.Engines()
	if len(engines) > 0 {
		written := make([]any, len(engines))
		for i, e := range engines {
			written[i] = w.WriteEngine(e)
		}
		doc["engines"] = written
	}
	if len(general) > 0 {
		doc["general"] = maps.Clone(general)
	}
	return doc
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
