package relation

// ExtensionOp is a custom unary operation. The algebra treats it as an
// opaque node: it asks the op for its schema and engine support and
// rebases it when its base is simplified. Implementations must be
// comparable, which in practice means pointer types.
type ExtensionOp interface {
	// Name identifies the kind of operation, and is the key readers use
	// to find a decoder for it.
	Name() string
	Base() Relation
	Columns() ColumnSet
	UniqueKeys() KeySet
	SupportsEngine(engine Engine) bool
	Rebased(base Relation) (ExtensionOp, error)
	// Serialize writes the op's own fields; the base is written separately.
	Serialize(w Writer) (map[string]any, error)
	String() string
}

// Extension wraps an ExtensionOp so it can appear in a relation tree.
type Extension struct {
	op ExtensionOp
}

// NewExtension builds a checked and simplified extension node.
func NewExtension(op ExtensionOp) (Relation, error) {
	return (&Extension{op: op}).CheckedAndSimplified(false)
}

// Op returns the wrapped operation.
func (e *Extension) Op() ExtensionOp { return e.op }

func (e *Extension) Base() Relation      { return e.op.Base() }
func (e *Extension) Engine() *EngineTree { return e.op.Base().Engine() }
func (e *Extension) Columns() ColumnSet  { return e.op.Columns() }
func (e *Extension) UniqueKeys() KeySet  { return e.op.UniqueKeys() }
func (e *Extension) DoomedBy() []string  { return e.op.Base().DoomedBy() }
func (e *Extension) String() string      { return e.op.String() }
func (e *Extension) accept(d dispatcher) { d.extension(e) }

func (e *Extension) Rebased(base Relation) (Relation, error) {
	op, err := e.op.Rebased(base)
	if err != nil {
		return nil, err
	}
	return NewExtension(op)
}

func (e *Extension) CheckedAndSimplified(recursive bool) (Relation, error) {
	op := e.op
	base, err := simplifyBase(op.Base(), recursive)
	if err != nil {
		return nil, err
	}
	if base != op.Base() {
		if op, err = op.Rebased(base); err != nil {
			return nil, err
		}
	}
	engine := base.Engine().Destination()
	if !op.SupportsEngine(engine) {
		return nil, newEngineError(engine, "extension %s does not support engine %s", op.Name(), engine)
	}
	if op == e.op {
		return e, nil
	}
	return &Extension{op: op}, nil
}
