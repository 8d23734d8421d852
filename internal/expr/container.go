package expr

import (
	"fmt"

	"github.com/roach88/relir/internal/relation"
)

// Container is a set of values an expression can be tested against.
type Container interface {
	String() string
	ColumnsRequired() relation.ColumnSet
	SupportsEngine(engine relation.Engine) bool
	Serialize(w relation.Writer) (map[string]any, error)
	container()
}

// RangeLiteral is the integers start, start+step, ... below stop.
type RangeLiteral struct {
	Start, Stop, Step int64
}

// Sequence is an explicit list of expressions.
type Sequence struct {
	Items []Expression
}

// InContainer holds when Item is one of the container's values.
type InContainer struct {
	Item      Expression
	Container Container
}

// Range builds a RangeLiteral. Step must be positive.
func Range(start, stop, step int64) (RangeLiteral, error) {
	if step <= 0 {
		return RangeLiteral{}, &relation.RelationalAlgebraError{Message: fmt.Sprintf("range step must be positive, got %d", step)}
	}
	return RangeLiteral{Start: start, Stop: stop, Step: step}, nil
}

// Seq builds a Sequence.
func Seq(items ...Expression) Sequence { return Sequence{Items: items} }

// In builds an InContainer predicate.
func In(item Expression, c Container) InContainer { return InContainer{Item: item, Container: c} }

func (RangeLiteral) container() {}
func (Sequence) container()     {}

// Contains reports whether n is in the range.
func (r RangeLiteral) Contains(n int64) bool {
	return r.Step > 0 && n >= r.Start && n < r.Stop && (n-r.Start)%r.Step == 0
}

func (r RangeLiteral) String() string {
	return fmt.Sprintf("range(%d, %d, %d)", r.Start, r.Stop, r.Step)
}
func (RangeLiteral) ColumnsRequired() relation.ColumnSet { return relation.ColumnSet{} }
func (RangeLiteral) SupportsEngine(relation.Engine) bool { return true }
func (r RangeLiteral) Serialize(relation.Writer) (map[string]any, error) {
	return map[string]any{"type": "range", "start": r.Start, "stop": r.Stop, "step": r.Step}, nil
}

func (s Sequence) String() string                      { return "[" + joinStrings(s.Items) + "]" }
func (s Sequence) ColumnsRequired() relation.ColumnSet { return columnsOf(s.Items) }
func (s Sequence) SupportsEngine(engine relation.Engine) bool {
	for _, item := range s.Items {
		if !item.SupportsEngine(engine) {
			return false
		}
	}
	return true
}
func (s Sequence) Serialize(w relation.Writer) (map[string]any, error) {
	items, err := serializeAll(w, s.Items)
	if err != nil {
		return nil, err
	}
	return map[string]any{"type": "sequence", "items": items}, nil
}

func (p InContainer) String() string { return p.Item.String() + " IN " + p.Container.String() }
func (p InContainer) Key() string    { return keyOf(p) }
func (p InContainer) ColumnsRequired() relation.ColumnSet {
	return p.Item.ColumnsRequired().Union(p.Container.ColumnsRequired())
}
func (p InContainer) SupportsEngine(engine relation.Engine) bool {
	return p.Item.SupportsEngine(engine) && p.Container.SupportsEngine(engine)
}
func (p InContainer) Serialize(w relation.Writer) (map[string]any, error) {
	item, err := p.Item.Serialize(w)
	if err != nil {
		return nil, err
	}
	c, err := p.Container.Serialize(w)
	if err != nil {
		return nil, err
	}
	return map[string]any{"type": "in_container", "item": item, "container": c}, nil
}

// ContainerVisitor handles each container kind.
type ContainerVisitor[T any] interface {
	VisitRangeLiteral(RangeLiteral) (T, error)
	VisitSequence(Sequence) (T, error)
}

// VisitContainer dispatches c to the matching visitor method.
func VisitContainer[T any](c Container, v ContainerVisitor[T]) (T, error) {
	switch x := c.(type) {
	case RangeLiteral:
		return v.VisitRangeLiteral(x)
	case Sequence:
		return v.VisitSequence(x)
	default:
		var zero T
		return zero, relation.NewSerializationError("", "unknown container type %T", c)
	}
}

// OrderBy sorts by an expression.
type OrderBy struct {
	Expression Expression
	Asc        bool
}

// Asc sorts ascending by e.
func Asc(e Expression) OrderBy { return OrderBy{Expression: e, Asc: true} }

// Desc sorts descending by e.
func Desc(e Expression) OrderBy { return OrderBy{Expression: e} }

func (o OrderBy) Ascending() bool { return o.Asc }

func (o OrderBy) Reversed() relation.OrderByTerm {
	return OrderBy{Expression: o.Expression, Asc: !o.Asc}
}

func (o OrderBy) Key() string                         { return keyOf(o) }
func (o OrderBy) ColumnsRequired() relation.ColumnSet { return o.Expression.ColumnsRequired() }

func (o OrderBy) SupportsEngine(engine relation.Engine) bool {
	return o.Expression.SupportsEngine(engine)
}

func (o OrderBy) String() string {
	if o.Asc {
		return o.Expression.String()
	}
	return "-" + o.Expression.String()
}

func (o OrderBy) Serialize(w relation.Writer) (map[string]any, error) {
	e, err := o.Expression.Serialize(w)
	if err != nil {
		return nil, err
	}
	return map[string]any{"expression": e, "ascending": o.Asc}, nil
}
