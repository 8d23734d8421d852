package relation

import "fmt"

// Calculation adds a column computed from each row of its base.
type Calculation struct {
	base       Relation
	tag        ColumnTag
	expression Expression
}

// NewCalculation builds a checked and simplified calculation.
func NewCalculation(base Relation, tag ColumnTag, expression Expression) (Relation, error) {
	return (&Calculation{base: base, tag: tag, expression: expression}).CheckedAndSimplified(false)
}

// Tag is the new column.
func (c *Calculation) Tag() ColumnTag { return c.tag }

// Expression computes the new column.
func (c *Calculation) Expression() Expression { return c.expression }

func (c *Calculation) Base() Relation      { return c.base }
func (c *Calculation) Engine() *EngineTree { return c.base.Engine() }
func (c *Calculation) Columns() ColumnSet  { return c.base.Columns().With(c.tag) }
func (c *Calculation) UniqueKeys() KeySet  { return c.base.UniqueKeys() }
func (c *Calculation) DoomedBy() []string  { return c.base.DoomedBy() }
func (c *Calculation) accept(d dispatcher) { d.calculation(c) }

func (c *Calculation) Rebased(base Relation) (Relation, error) {
	return NewCalculation(base, c.tag, c.expression)
}

func (c *Calculation) CheckedAndSimplified(recursive bool) (Relation, error) {
	base, err := simplifyBase(c.base, recursive)
	if err != nil {
		return nil, err
	}
	if base.Columns().Contains(c.tag) {
		return nil, newColumnError(ColumnSet{}, "column %s is already present in %s", c.tag, base)
	}
	if missing := c.expression.ColumnsRequired().Difference(base.Columns()); !missing.IsEmpty() {
		return nil, newColumnError(missing, "expression %s needs columns not in %s", c.expression, base)
	}
	engine := base.Engine().Destination()
	if !c.expression.SupportsEngine(engine) {
		return nil, newEngineError(engine, "expression %s does not support engine %s", c.expression, engine)
	}
	if base == c.base {
		return c, nil
	}
	return &Calculation{base: base, tag: c.tag, expression: c.expression}, nil
}

func (c *Calculation) String() string {
	return fmt.Sprintf("calculate(%s, %s=%s)", c.base, c.tag, c.expression)
}
