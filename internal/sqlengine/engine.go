package sqlengine

import (
	"context"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/relir/internal/iteration"
	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/store"
)

// Table is the payload of a leaf evaluated by an Engine.
type Table struct {
	// Name is the SQL table name.
	Name string
	// Columns maps column tags to SQL column names. Tags not listed use
	// the tag itself.
	Columns map[relation.ColumnTag]string
}

func (t Table) column(tag relation.ColumnTag) string {
	if name, ok := t.Columns[tag]; ok {
		return name
	}
	return string(tag)
}

// Fragment is the state generic predicates, join conditions and order-by
// terms store for this engine. It renders the object as SQL given the
// expression of each column the object requires.
type Fragment func(cols map[relation.ColumnTag]sq.Sqlizer) (sq.Sqlizer, error)

// Lowerer is implemented by extension operations this engine can run. The
// returned SELECT must name its result columns by the op's column tags.
type Lowerer interface {
	LowerSQL(base sq.SelectBuilder) (sq.SelectBuilder, error)
}

// Options returns the capabilities of a SQL engine: joins and unions are
// flattened without pairwise limits, and sorting is supported.
func Options() relation.EngineOptions {
	return relation.EngineOptions{
		FlattenJoins:  true,
		FlattenUnions: true,
		CanSort:       true,
	}
}

// Engine generates SQL for relations and, given a store, executes it.
type Engine struct {
	name      string
	options   relation.EngineOptions
	functions map[string]Function
	store     *store.Store
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore sets the store Fetch reads from.
func WithStore(s *store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithEngineOptions overrides the capability flags.
func WithEngineOptions(opts relation.EngineOptions) Option {
	return func(e *Engine) { e.options = opts }
}

// WithFunction adds or replaces a scalar function.
func WithFunction(name string, fn Function) Option {
	return func(e *Engine) { e.functions[name] = fn }
}

// New creates an engine with the built-in functions.
func New(name string, opts ...Option) *Engine {
	e := &Engine{
		name:      name,
		options:   Options(),
		functions: Builtins(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) String() string                  { return e.name }
func (e *Engine) Options() relation.EngineOptions { return e.options }

// ColumnFunction returns the Function registered under name.
func (e *Engine) ColumnFunction(name string) (any, bool) {
	fn, ok := e.functions[name]
	return fn, ok
}

// EvaluateLeaf returns the Table a leaf of this engine reads.
func (e *Engine) EvaluateLeaf(leaf *relation.Leaf) (any, error) {
	if leaf.LeafEngine() != relation.Engine(e) {
		return nil, relation.NewEngineError(e, "leaf %s belongs to engine %s", leaf.Name(), leaf.LeafEngine())
	}
	t, ok := leaf.Payload().(Table)
	if !ok {
		return nil, relation.NewEngineError(e, "leaf %s has payload %T, not a Table", leaf.Name(), leaf.Payload())
	}
	return t, nil
}

// Leaf builds a leaf over a cataloged table.
func (e *Engine) Leaf(t store.Table, opts ...relation.LeafOption) (*relation.Leaf, error) {
	keys := make([]relation.UniqueKey, len(t.UniqueKeys))
	for i, k := range t.UniqueKeys {
		keys[i] = relation.Columns(k...)
	}
	opts = append([]relation.LeafOption{
		relation.WithUniqueKeys(keys...),
		relation.WithPayload(Table{Name: t.Name}),
	}, opts...)
	return relation.NewLeaf(t.Name, e, relation.Columns(t.Columns...), opts...)
}

// ToSelect lowers r, which must have this engine as its destination.
func (e *Engine) ToSelect(r relation.Relation) (sq.SelectBuilder, error) {
	if dest := r.Engine().Destination(); dest != relation.Engine(e) {
		return sq.SelectBuilder{}, relation.NewEngineError(e, "relation %s is evaluated in %s, not %s", r, dest, e)
	}
	q, err := relation.Visit[*query](r, &lowering{engine: e, aliases: map[string]bool{}})
	if err != nil {
		return sq.SelectBuilder{}, err
	}
	return q.builder(), nil
}

// ToSQL lowers r and renders the statement with its arguments.
func (e *Engine) ToSQL(r relation.Relation) (string, []any, error) {
	b, err := e.ToSelect(r)
	if err != nil {
		return "", nil, err
	}
	return b.ToSql()
}

// Execute runs r against st. The returned rows hold exactly r's columns.
func (e *Engine) Execute(ctx context.Context, st *store.Store, r relation.Relation) (iteration.Rows, error) {
	query, args, err := e.ToSQL(r)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("executing query", "engine", e.name, "sql", query, "args", len(args))
	res, err := st.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(res.Columns))
	for i, c := range res.Columns {
		index[c] = i
	}
	cols := r.Columns().Tags()
	for _, c := range cols {
		if _, ok := index[string(c)]; !ok {
			return nil, relation.NewEngineError(e, "query result has no column %s", c)
		}
	}
	rows := make(iteration.Rows, len(res.Rows))
	for i, values := range res.Rows {
		row := make(iteration.Row, len(cols))
		for _, c := range cols {
			row[c] = values[index[string(c)]]
		}
		rows[i] = row
	}
	return rows, nil
}

// Fetch executes r against the engine's store, so an iteration engine can
// read it through a Transfer.
func (e *Engine) Fetch(ctx context.Context, r relation.Relation) (iteration.Rows, error) {
	if e.store == nil {
		return nil, relation.NewEngineError(e, "engine %s has no store to fetch from", e)
	}
	return e.Execute(ctx, e.store, r)
}
