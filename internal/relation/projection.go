package relation

import "fmt"

// Projection keeps a subset of its base's columns. It does not remove
// duplicate rows; pair it with Distinct for set semantics.
type Projection struct {
	base    Relation
	columns ColumnSet
}

// NewProjection builds a checked and simplified projection.
func NewProjection(base Relation, columns ColumnSet) (Relation, error) {
	return (&Projection{base: base, columns: columns}).CheckedAndSimplified(false)
}

func (p *Projection) Base() Relation      { return p.base }
func (p *Projection) Engine() *EngineTree { return p.base.Engine() }
func (p *Projection) Columns() ColumnSet  { return p.columns }
func (p *Projection) DoomedBy() []string  { return p.base.DoomedBy() }
func (p *Projection) accept(d dispatcher) { d.projection(p) }

// UniqueKeys keeps the base keys that survive the projection.
func (p *Projection) UniqueKeys() KeySet {
	var keys []UniqueKey
	for _, k := range p.base.UniqueKeys().keys {
		if k.IsSubsetOf(p.columns) {
			keys = append(keys, k)
		}
	}
	return NewKeySet(keys...)
}

func (p *Projection) Rebased(base Relation) (Relation, error) {
	return NewProjection(base, p.columns)
}

func (p *Projection) CheckedAndSimplified(recursive bool) (Relation, error) {
	base, err := simplifyBase(p.base, recursive)
	if err != nil {
		return nil, err
	}
	if missing := p.columns.Difference(base.Columns()); !missing.IsEmpty() {
		return nil, newColumnError(missing, "cannot project %s onto %s", base, p.columns)
	}
	if p.columns.Equal(base.Columns()) {
		return base, nil
	}
	if inner, ok := base.(*Projection); ok {
		return &Projection{base: inner.base, columns: p.columns}, nil
	}
	if base == p.base {
		return p, nil
	}
	return &Projection{base: base, columns: p.columns}, nil
}

func (p *Projection) String() string {
	return fmt.Sprintf("project(%s, %s)", p.base, p.columns)
}
