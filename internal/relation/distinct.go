package relation

import "fmt"

// Distinct removes duplicate rows so that its unique keys hold.
type Distinct struct {
	base       Relation
	uniqueKeys KeySet
}

// NewDistinct builds a checked and simplified distinct. An empty key set
// means all columns together form the key.
func NewDistinct(base Relation, uniqueKeys KeySet) (Relation, error) {
	return (&Distinct{base: base, uniqueKeys: uniqueKeys}).CheckedAndSimplified(false)
}

func (d *Distinct) Base() Relation      { return d.base }
func (d *Distinct) Engine() *EngineTree { return d.base.Engine() }
func (d *Distinct) Columns() ColumnSet  { return d.base.Columns() }
func (d *Distinct) UniqueKeys() KeySet  { return d.uniqueKeys }
func (d *Distinct) DoomedBy() []string  { return d.base.DoomedBy() }
func (d *Distinct) accept(v dispatcher) { v.distinct(d) }

func (d *Distinct) Rebased(base Relation) (Relation, error) {
	return NewDistinct(base, d.uniqueKeys)
}

func (d *Distinct) CheckedAndSimplified(recursive bool) (Relation, error) {
	base, err := simplifyBase(d.base, recursive)
	if err != nil {
		return nil, err
	}
	keys := d.uniqueKeys
	if keys.IsEmpty() {
		keys = NewKeySet(base.Columns())
	}
	if missing := keys.Columns().Difference(base.Columns()); !missing.IsEmpty() {
		return nil, newColumnError(missing, "distinct keys %s are not all columns of %s", keys, base)
	}
	keys = DropCoveredInternalUniqueKeys(keys)

	if baseKeys := base.UniqueKeys(); !baseKeys.IsEmpty() {
		for _, k := range keys.keys {
			if !IsUniqueKeyCovered(k, baseKeys) {
				return nil, newAlgebraError("distinct keys %s conflict with unique keys %s of %s", keys, baseKeys, base)
			}
		}
		return base, nil
	}
	if base == d.base && keys.Equal(d.uniqueKeys) {
		return d, nil
	}
	return &Distinct{base: base, uniqueKeys: keys}, nil
}

func (d *Distinct) String() string {
	return fmt.Sprintf("distinct(%s, %s)", d.base, d.uniqueKeys)
}
