package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/relir/internal/iteration"
	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/serialization"
	"github.com/roach88/relir/internal/sqlengine"
	"github.com/roach88/relir/internal/store"
	"github.com/roach88/relir/internal/transform"
)

// Error codes for CLI responses.
const (
	ErrCodeGeneric       = "E001" // unclassified failure
	ErrCodeNotFound      = "E002" // input file or database not found
	ErrCodeConfig        = "E003" // invalid relir.yaml or flags
	ErrCodeColumn        = "E101" // column missing or duplicated
	ErrCodeEngine        = "E102" // engine mismatch or unsupported node
	ErrCodeAlgebra       = "E103" // invalid relational algebra
	ErrCodeSerialization = "E104" // malformed document
	ErrCodePlan          = "E105" // transfers could not be planned
	ErrCodeDoomed        = "E106" // relation has no rows
	ErrCodeExecution     = "E107" // engine failed while running
	ErrCodeScenario      = "E108" // scenarios failed
)

// errorCode classifies err for CLI responses.
func errorCode(err error) string {
	switch {
	case relation.IsColumnError(err):
		return ErrCodeColumn
	case relation.IsEngineError(err):
		return ErrCodeEngine
	case relation.IsRelationalAlgebraError(err):
		return ErrCodeAlgebra
	case relation.IsSerializationError(err):
		return ErrCodeSerialization
	case transform.IsPlanError(err):
		return ErrCodePlan
	case errors.Is(err, os.ErrNotExist):
		return ErrCodeNotFound
	}
	return ErrCodeGeneric
}

// Document is a decoded relation document and the bytes it came from.
type Document struct {
	Path string
	Raw  []byte
	Tree map[string]any
}

// ReadDocument loads path, or stdin when path is "-".
func ReadDocument(path string, stdin io.Reader) (*Document, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	tree, err := serialization.Decode(data)
	if err != nil {
		return nil, err
	}
	return &Document{Path: path, Raw: data, Tree: tree}, nil
}

// Loader turns documents into relations over a set of engines.
//
// Iteration leaves take their rows from parameters.rows. SQL leaves read
// the table named by parameters.table, defaulting to the leaf name; when
// the engines have a store, the table must be cataloged with the leaf's
// columns.
type Loader struct {
	ctx     context.Context
	engines *EngineSet
	mixed   bool
}

// NewLoader returns a loader over engines. A mixed loader accepts trees
// spanning several engines.
func NewLoader(ctx context.Context, engines *EngineSet, mixed bool) *Loader {
	return &Loader{ctx: ctx, engines: engines, mixed: mixed}
}

// Load reads doc.
func (l *Loader) Load(doc *Document) (relation.Relation, error) {
	hooks := serialization.NewBasicHooks(l.engines.All()...)
	hooks.LeafPayload = l.payload

	var opts []serialization.ReaderOption
	if l.mixed {
		opts = append(opts, serialization.WithMixedEngines())
	}
	reader, err := serialization.NewReader(hooks, opts...)
	if err != nil {
		return nil, err
	}
	return reader.Read(doc.Tree)
}

func (l *Loader) payload(spec serialization.LeafSpec) (any, error) {
	switch l.engines.Kind(spec.Engine) {
	case KindIteration:
		raw, ok := spec.Parameters["rows"]
		if !ok {
			name := spec.Name
			return iteration.SourceFunc(func(context.Context, *relation.Leaf) (iteration.Rows, error) {
				return nil, fmt.Errorf("leaf %s has no parameters.rows", name)
			}), nil
		}
		return leafRows(raw)
	case KindSQL:
		return l.table(spec)
	}
	return nil, fmt.Errorf("engine %s has no leaf payload", spec.Engine)
}

func leafRows(raw any) (iteration.Rows, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, relation.NewSerializationError("parameters.rows", "expected a list of rows, got %T", raw)
	}
	rows := make([]map[string]any, len(items))
	for i, item := range items {
		row, ok := item.(map[string]any)
		if !ok {
			return nil, relation.NewSerializationError(fmt.Sprintf("parameters.rows[%d]", i), "expected a mapping, got %T", item)
		}
		rows[i] = row
	}
	return iteration.NewRows(rows...)
}

func (l *Loader) table(spec serialization.LeafSpec) (sqlengine.Table, error) {
	name := spec.Name
	if raw, ok := spec.Parameters["table"]; ok {
		s, ok := raw.(string)
		if !ok || s == "" {
			return sqlengine.Table{}, relation.NewSerializationError("parameters.table", "expected a table name, got %v", raw)
		}
		name = s
	}
	st := l.engines.Store()
	if st == nil {
		return sqlengine.Table{Name: name}, nil
	}
	t, err := st.Catalog(l.ctx, name)
	if err != nil {
		return sqlengine.Table{}, err
	}
	if !relation.Columns(t.Columns...).Equal(spec.Columns) {
		return sqlengine.Table{}, fmt.Errorf("table %s has columns %v, leaf %s declares %s", name, t.Columns, spec.Name, spec.Columns)
	}
	return sqlengine.Table{Name: name}, nil
}

// routeTo makes r evaluate in dest, inserting transfers from every other
// engine r reads.
func routeTo(r relation.Relation, dest relation.Engine) (relation.Relation, error) {
	engines := r.Engine().Engines()
	if len(engines) == 1 && engines[0] == dest {
		return r, nil
	}
	var sources []*relation.EngineTree
	for _, e := range engines {
		if e != dest {
			sources = append(sources, relation.BuildEngineTree(e))
		}
	}
	routed, err := transform.InsertTransfers(r, relation.BuildEngineTree(dest, sources...))
	if err != nil {
		return nil, err
	}
	if routed.Engine().Destination() != dest {
		return relation.NewTransfer(routed, dest)
	}
	return routed, nil
}

// engineNames lists the engines r reads, sorted.
func engineNames(r relation.Relation) []string {
	var names []string
	for _, e := range r.Engine().Engines() {
		names = append(names, e.String())
	}
	slices.Sort(names)
	return names
}

// loaded is a relation read for a command, with the engines it was read
// over.
type loaded struct {
	doc     *Document
	rel     relation.Relation
	engines *EngineSet
}

// load reads the document at path over the configured engines. Missing
// input is a command error; a document that does not describe a valid
// relation is a failure.
func (o *RootOptions) load(cmd *cobra.Command, f *OutputFormatter, path string, mixed bool, st *store.Store) (*loaded, error) {
	doc, err := ReadDocument(path, cmd.InOrStdin())
	if err != nil {
		if relation.IsSerializationError(err) {
			return nil, f.Fail(ExitFailure, "invalid document", err)
		}
		return nil, f.Fail(ExitCommandError, "cannot read document", err)
	}
	engines, err := o.Config().BuildEngines(st, o.Logger(cmd.ErrOrStderr()))
	if err != nil {
		return nil, f.Fail(ExitCommandError, "cannot build engines", err)
	}
	rel, err := NewLoader(cmd.Context(), engines, mixed).Load(doc)
	if err != nil {
		return nil, f.Fail(ExitFailure, "invalid relation", err)
	}
	f.VerboseLog("read %s: %s", path, rel)
	return &loaded{doc: doc, rel: rel, engines: engines}, nil
}
