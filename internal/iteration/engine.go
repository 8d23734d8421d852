package iteration

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/relir/internal/relation"
)

// DefaultLeafCacheSize bounds the number of leaves whose rows an Engine
// keeps.
const DefaultLeafCacheSize = 128

// Source produces the rows of a leaf on demand.
type Source interface {
	LeafRows(ctx context.Context, leaf *relation.Leaf) (Rows, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, leaf *relation.Leaf) (Rows, error)

func (f SourceFunc) LeafRows(ctx context.Context, leaf *relation.Leaf) (Rows, error) {
	return f(ctx, leaf)
}

// Fetcher is implemented by engines that can hand their results to this
// one through a Transfer.
type Fetcher interface {
	Fetch(ctx context.Context, r relation.Relation) (Rows, error)
}

// ExtensionExecutor is implemented by extension operations this engine
// can run, given the rows of their base.
type ExtensionExecutor interface {
	ExecuteRows(ctx context.Context, engine *Engine, base Rows) (Rows, error)
}

// Options returns the capabilities of an iteration engine: unions are
// flattened, joins are kept pairwise, and sorting is supported.
func Options() relation.EngineOptions {
	return relation.EngineOptions{
		FlattenUnions:     true,
		PairwiseJoinsOnly: true,
		CanSort:           true,
	}
}

// Engine evaluates relations in memory.
type Engine struct {
	name         string
	options      relation.EngineOptions
	functions    map[string]Function
	cacheSize    int
	leaves       *lru.Cache[uint64, Rows]
	materialized map[string]Rows
	logger       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithLeafCacheSize bounds the leaf row cache.
func WithLeafCacheSize(n int) Option {
	return func(e *Engine) { e.cacheSize = n }
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
func New(name string, opts ...Option) (*Engine, error) {
	e := &Engine{
		name:         name,
		options:      Options(),
		functions:    Builtins(),
		cacheSize:    DefaultLeafCacheSize,
		materialized: map[string]Rows{},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	cache, err := lru.New[uint64, Rows](e.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("leaf cache: %w", err)
	}
	e.leaves = cache
	return e, nil
}

func (e *Engine) String() string                  { return e.name }
func (e *Engine) Options() relation.EngineOptions { return e.options }

// ColumnFunction returns the Function registered under name.
func (e *Engine) ColumnFunction(name string) (any, bool) {
	fn, ok := e.functions[name]
	return fn, ok
}

// EvaluateLeaf returns the rows of leaf.
func (e *Engine) EvaluateLeaf(leaf *relation.Leaf) (any, error) {
	return e.leafRows(context.Background(), leaf)
}

// Fetch executes r, so one iteration engine can feed another.
func (e *Engine) Fetch(ctx context.Context, r relation.Relation) (Rows, error) {
	return e.Execute(ctx, r)
}

// Reset drops cached leaf rows and materializations.
func (e *Engine) Reset() {
	e.leaves.Purge()
	clear(e.materialized)
}

// Execute evaluates r, which must have this engine as its destination.
// The returned rows hold exactly r's columns.
func (e *Engine) Execute(ctx context.Context, r relation.Relation) (Rows, error) {
	if dest := r.Engine().Destination(); dest != relation.Engine(e) {
		return nil, relation.NewEngineError(e, "relation %s is evaluated in %s, not %s", r, dest, e)
	}
	rows, err := (&executor{ctx: ctx, engine: e}).run(r)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("relation executed", "engine", e.name, "columns", r.Columns().String(), "rows", len(rows))
	return rows, nil
}

func (e *Engine) leafRows(ctx context.Context, leaf *relation.Leaf) (Rows, error) {
	if leaf.LeafEngine() != relation.Engine(e) {
		return nil, relation.NewEngineError(e, "leaf %s belongs to engine %s", leaf.Name(), leaf.LeafEngine())
	}
	if rows, ok := e.leaves.Get(leaf.ID()); ok {
		e.logger.Debug("leaf cache hit", "leaf", leaf.Name())
		return rows, nil
	}
	var rows Rows
	switch payload := leaf.Payload().(type) {
	case Rows:
		rows = payload
	case Source:
		var err error
		if rows, err = payload.LeafRows(ctx, leaf); err != nil {
			return nil, fmt.Errorf("leaf %s: %w", leaf.Name(), err)
		}
	case nil:
		if len(leaf.DoomedBy()) == 0 {
			return nil, relation.NewEngineError(e, "leaf %s has no rows", leaf.Name())
		}
	default:
		return nil, relation.NewEngineError(e, "leaf %s has payload %T, not Rows or a Source", leaf.Name(), payload)
	}
	cols := leaf.Columns()
	out := make(Rows, len(rows))
	for i, row := range rows {
		for _, c := range cols.Tags() {
			if _, ok := row[c]; !ok {
				return nil, relation.NewEngineError(e, "row %d of leaf %s has no column %s", i, leaf.Name(), c)
			}
		}
		out[i] = row.Project(cols)
	}
	e.leaves.Add(leaf.ID(), out)
	return out, nil
}
