package relation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Transfer moves the rows of its base into another engine.
type Transfer struct {
	base        Relation
	destination Engine
	tree        *EngineTree
}

// NewTransfer builds a checked and simplified transfer. Transferring into
// the engine the base already lives in returns base.
func NewTransfer(base Relation, destination Engine) (Relation, error) {
	return newTransfer(base, destination).CheckedAndSimplified(false)
}

func newTransfer(base Relation, destination Engine) *Transfer {
	return &Transfer{base: base, destination: destination, tree: BuildEngineTree(destination, base.Engine())}
}

// Destination is the engine the rows are moved into.
func (t *Transfer) Destination() Engine { return t.destination }

func (t *Transfer) Base() Relation      { return t.base }
func (t *Transfer) Engine() *EngineTree { return t.tree }
func (t *Transfer) Columns() ColumnSet  { return t.base.Columns() }
func (t *Transfer) UniqueKeys() KeySet  { return t.base.UniqueKeys() }
func (t *Transfer) DoomedBy() []string  { return t.base.DoomedBy() }
func (t *Transfer) accept(d dispatcher) { d.transfer(t) }

func (t *Transfer) Rebased(base Relation) (Relation, error) {
	return NewTransfer(base, t.destination)
}

func (t *Transfer) CheckedAndSimplified(recursive bool) (Relation, error) {
	base, err := simplifyBase(t.base, recursive)
	if err != nil {
		return nil, err
	}
	if base.Engine().Destination() == t.destination {
		return base, nil
	}
	if inner, ok := base.(*Transfer); ok {
		if inner.base.Engine().Destination() == t.destination {
			return inner.base, nil
		}
		return newTransfer(inner.base, t.destination), nil
	}
	if base == t.base {
		return t, nil
	}
	return newTransfer(base, t.destination), nil
}

func (t *Transfer) String() string {
	return fmt.Sprintf("transfer(%s -> %s)", t.base, t.destination)
}

// NameGenerator produces names for materializations built without one.
type NameGenerator interface {
	Generate() string
}

// UUIDNameGenerator names materializations with time-ordered UUIDs.
type UUIDNameGenerator struct{}

func (UUIDNameGenerator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "materialization_" + strings.ReplaceAll(id.String(), "-", "")
}

// Materialization marks a point where an engine should compute and keep
// the rows of its base, for reuse by every parent referencing it.
type Materialization struct {
	base Relation
	name string
}

// NewMaterialization builds a checked and simplified materialization. An
// empty name is replaced by a generated one.
func NewMaterialization(base Relation, name string, opts ...BuildOption) (Relation, error) {
	if name == "" {
		o := applyBuildOptions(opts)
		if o.names == nil {
			o.names = UUIDNameGenerator{}
		}
		name = o.names.Generate()
	}
	return (&Materialization{base: base, name: name}).CheckedAndSimplified(false)
}

// Name identifies the materialized rows.
func (m *Materialization) Name() string { return m.name }

func (m *Materialization) Base() Relation      { return m.base }
func (m *Materialization) Engine() *EngineTree { return m.base.Engine() }
func (m *Materialization) Columns() ColumnSet  { return m.base.Columns() }
func (m *Materialization) UniqueKeys() KeySet  { return m.base.UniqueKeys() }
func (m *Materialization) DoomedBy() []string  { return m.base.DoomedBy() }
func (m *Materialization) accept(d dispatcher) { d.materialization(m) }

func (m *Materialization) Rebased(base Relation) (Relation, error) {
	return NewMaterialization(base, m.name)
}

func (m *Materialization) CheckedAndSimplified(recursive bool) (Relation, error) {
	base, err := simplifyBase(m.base, recursive)
	if err != nil {
		return nil, err
	}
	if inner, ok := base.(*Materialization); ok && inner.name == m.name {
		return inner, nil
	}
	if base == m.base {
		return m, nil
	}
	return &Materialization{base: base, name: m.name}, nil
}

func (m *Materialization) String() string {
	return fmt.Sprintf("materialize(%s, %q)", m.base, m.name)
}
