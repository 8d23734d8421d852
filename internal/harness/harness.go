package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/relir/internal/iteration"
	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/serialization"
	"github.com/roach88/relir/internal/sqlengine"
	"github.com/roach88/relir/internal/store"
	"github.com/roach88/relir/internal/testutil"
	"github.com/roach88/relir/internal/value"
)

// Harness runs scenarios. The zero value discards logs.
type Harness struct {
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger passed to both engines.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// New creates a harness.
func New(opts ...Option) *Harness {
	h := &Harness{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with a default harness.
func Run(scenario *Scenario) (*Result, error) {
	return New().Run(context.Background(), scenario)
}

// Run reads the scenario's relation in each engine, executes it and
// checks the expectations. The returned error reports a broken scenario
// or environment; failed expectations are recorded in the Result.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	result := NewResult()

	rel, mem, err := h.readIteration(scenario)
	if err != nil {
		result.ReadError = err.Error()
		checkReadError(result, scenario.Expect, err)
		return result, nil
	}
	if scenario.Expect.Error != "" {
		result.AddError(fmt.Sprintf("expected a %s error, read succeeded", scenario.Expect.Error))
		return result, nil
	}
	if err := describe(result, rel); err != nil {
		return nil, err
	}

	rows, err := mem.Execute(ctx, rel)
	if err != nil {
		result.AddError(fmt.Sprintf("%s: %v", KindIteration, err))
	} else {
		result.Rows[KindIteration] = rows.Sorted(rel.Columns()).Plain()
	}

	if err := h.runSQL(ctx, scenario, result); err != nil {
		return nil, err
	}

	for _, msg := range checkExpect(result, scenario.Expect) {
		result.AddError(msg)
	}
	h.logger.Info("scenario finished", "scenario", scenario.Name, "pass", result.Pass)
	return result, nil
}

func (h *Harness) readIteration(scenario *Scenario) (relation.Relation, *iteration.Engine, error) {
	mem, err := iteration.New(scenario.EngineName(), iteration.WithLogger(h.logger))
	if err != nil {
		return nil, nil, err
	}
	hooks := serialization.NewBasicHooks(mem)
	hooks.LeafPayload = func(spec serialization.LeafSpec) (any, error) {
		fixture, err := fixtureFor(scenario, spec)
		if err != nil {
			return nil, err
		}
		return iteration.NewRows(fixture.Rows...)
	}
	rel, err := read(hooks, scenario)
	return rel, mem, err
}

// runSQL loads the fixtures into a fresh in-memory store and runs the
// relation through the SQL engine.
func (h *Harness) runSQL(ctx context.Context, scenario *Scenario, result *Result) error {
	st, err := store.Open(":memory:")
	if err != nil {
		return fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	for _, l := range scenario.Leaves {
		if err := loadFixture(ctx, st, l); err != nil {
			return fmt.Errorf("leaf %s: %w", l.Name, err)
		}
	}

	e := sqlengine.New(scenario.EngineName(), sqlengine.WithStore(st), sqlengine.WithLogger(h.logger))
	hooks := serialization.NewBasicHooks(e)
	hooks.LeafPayload = func(spec serialization.LeafSpec) (any, error) {
		if _, err := fixtureFor(scenario, spec); err != nil {
			return nil, err
		}
		return sqlengine.Table{Name: spec.Name}, nil
	}
	rel, err := read(hooks, scenario)
	if err != nil {
		// The iteration engine read the same document.
		result.AddError(fmt.Sprintf("%s: read: %v", KindSQL, err))
		return nil
	}

	if result.SQL, result.SQLArgs, err = e.ToSQL(rel); err != nil {
		result.AddError(fmt.Sprintf("%s: %v", KindSQL, err))
		return nil
	}
	rows, err := e.Execute(ctx, st, rel)
	if err != nil {
		result.AddError(fmt.Sprintf("%s: %v", KindSQL, err))
		return nil
	}
	result.Rows[KindSQL] = rows.Sorted(rel.Columns()).Plain()
	return nil
}

func read(hooks *serialization.BasicHooks, scenario *Scenario) (relation.Relation, error) {
	reader, err := serialization.NewReader(hooks, serialization.WithNameGenerator(testutil.NewNameSequence("m")))
	if err != nil {
		return nil, err
	}
	return reader.Read(scenario.Relation)
}

func fixtureFor(scenario *Scenario, spec serialization.LeafSpec) (LeafFixture, error) {
	fixture, ok := scenario.leaf(spec.Name)
	if !ok {
		return LeafFixture{}, fmt.Errorf("no fixture for leaf %q", spec.Name)
	}
	if !relation.Columns(fixture.Columns...).Equal(spec.Columns) {
		return LeafFixture{}, fmt.Errorf("leaf %q has columns %s, fixture has %v", spec.Name, spec.Columns, fixture.Columns)
	}
	return fixture, nil
}

func loadFixture(ctx context.Context, st *store.Store, l LeafFixture) error {
	if err := st.CreateTable(ctx, store.Table{Name: l.Name, Columns: l.Columns, UniqueKeys: l.UniqueKeys}); err != nil {
		return err
	}
	rows := make([]map[string]value.Value, len(l.Rows))
	for i, row := range l.Rows {
		rows[i] = make(map[string]value.Value, len(row))
		for k, v := range row {
			val, err := value.FromAny(v)
			if err != nil {
				return fmt.Errorf("rows[%d].%s: %w", i, k, err)
			}
			rows[i][k] = val
		}
	}
	return st.InsertRows(ctx, l.Name, rows)
}

// describe records the schema and diagnostics of rel.
func describe(result *Result, rel relation.Relation) error {
	result.Columns = rel.Columns().Strings()
	for _, k := range rel.UniqueKeys().Keys() {
		result.UniqueKeys = append(result.UniqueKeys, k.Strings())
	}
	diag, err := relation.Diagnose(rel)
	if err != nil {
		return fmt.Errorf("diagnose: %w", err)
	}
	result.Doomed = diag.IsDoomed
	result.Messages = diag.Messages
	return nil
}
