package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/roach88/relir/internal/iteration"
	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/sqlengine"
	"github.com/roach88/relir/internal/store"
	"github.com/roach88/relir/internal/value"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Engine string // engine to evaluate in; defaults to the relation's own
	DB     string // SQLite database for SQL engines
	Mixed  bool
	Sort   bool // order rows by their columns
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Engine  string           `json:"engine"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Evaluate a relation and print its rows",
		Long: `Evaluate a relation in one of the configured engines.

Iteration leaves take their rows from the leaf's parameters.rows. SQL
leaves read tables from the SQLite database given by --db or the db key
of relir.yaml; each table must be cataloged with the leaf's columns.

When the tree spans engines (--mixed), or --engine names an engine other
than the relation's own, transfers are inserted so the result is
evaluated in --engine, which must then be an iteration engine.

Examples:
  relir run tree.yaml
  relir run tree.yaml --db data.db
  relir run mixed.yaml --mixed --engine iteration --db data.db
  relir run tree.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelation(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Engine, "engine", "", "engine to evaluate the relation in")
	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database for SQL engines (default from config)")
	cmd.Flags().BoolVar(&opts.Mixed, "mixed", false, "accept trees spanning several engines")
	cmd.Flags().BoolVar(&opts.Sort, "sort", false, "sort rows by their columns")

	return cmd
}

func runRelation(opts *RunOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	st, err := opts.openStore()
	if err != nil {
		return f.FailCode(ErrCodeNotFound, ExitCommandError, "cannot open database", err)
	}
	if st != nil {
		defer st.Close()
	}

	l, err := opts.load(cmd, f, path, opts.Mixed, st)
	if err != nil {
		return err
	}
	rel := l.rel

	dest := rel.Engine().Destination()
	if opts.Engine != "" {
		var ok bool
		if dest, ok = l.engines.Lookup(opts.Engine); !ok {
			return f.FailCode(ErrCodeConfig, ExitCommandError, fmt.Sprintf("unknown engine %q", opts.Engine), nil)
		}
	}
	if rel, err = routeTo(rel, dest); err != nil {
		return f.Fail(ExitFailure, "cannot insert transfers", err)
	}
	if st == nil {
		for _, e := range rel.Engine().Engines() {
			if l.engines.Kind(e) == KindSQL {
				return f.FailCode(ErrCodeConfig, ExitCommandError,
					fmt.Sprintf("relation reads SQL engine %s: pass --db or set db in relir.yaml", e), nil)
			}
		}
	}

	var rows iteration.Rows
	switch e := dest.(type) {
	case *iteration.Engine:
		rows, err = e.Execute(cmd.Context(), rel)
	case *sqlengine.Engine:
		rows, err = e.Execute(cmd.Context(), st, rel)
	default:
		err = relation.NewEngineError(dest, "engine %s cannot execute relations", dest)
	}
	if err != nil {
		return f.FailCode(ErrCodeExecution, ExitFailure, "execution failed", err)
	}
	if opts.Sort {
		rows = rows.Sorted(rel.Columns())
	}
	f.VerboseLog("%d rows from %s", len(rows), dest)

	if opts.Format == "json" {
		return f.Success(RunResult{Engine: dest.String(), Columns: rel.Columns().Strings(), Rows: rows.Plain()})
	}
	renderTable(cmd.OutOrStdout(), rel.Columns(), rows)
	return nil
}

// openStore opens the configured database. No database is not an error;
// a missing database file is, since opening would create an empty one.
func (o *RunOptions) openStore() (*store.Store, error) {
	path := o.DB
	if path == "" {
		path = o.Config().DB
	}
	if path == "" {
		return nil, nil
	}
	if path != ":memory:" {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
	}
	return store.Open(path)
}

func renderTable(w io.Writer, cols relation.ColumnSet, rows iteration.Rows) {
	if cols.IsEmpty() {
		fmt.Fprintf(w, "%d rows, no columns\n", len(rows))
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetColWidth(24)
	table.SetRowLine(false)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(cols.Strings())

	tags := cols.Tags()
	for _, row := range rows {
		cells := make([]string, len(tags))
		for i, tag := range tags {
			cells[i] = cell(row[tag])
		}
		table.Append(cells)
	}
	table.SetFooter(footer(len(tags), len(rows)))
	table.Render()
}

func cell(v value.Value) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case value.String:
		return string(x)
	}
	return v.String()
}

// footer puts the row count under the last column.
func footer(width, count int) []string {
	out := make([]string, width)
	out[width-1] = fmt.Sprintf("%d rows", count)
	return out
}
