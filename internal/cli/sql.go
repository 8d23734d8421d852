package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/sqlengine"
)

// SQLResult is the JSON payload of the sql command.
type SQLResult struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args"`
}

// NewSQLCommand creates the sql command.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sql <file>",
		Short: "Print the SQL a relation lowers to",
		Long: `Lower a relation evaluated in a SQL engine to a single SELECT.

Placeholders are printed as "?" and their values listed separately.

Examples:
  relir sql tree.yaml
  relir sql tree.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSQL(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runSQL(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	l, err := opts.load(cmd, f, path, false, nil)
	if err != nil {
		return err
	}
	dest := l.rel.Engine().Destination()
	e, ok := dest.(*sqlengine.Engine)
	if !ok {
		err := relation.NewEngineError(dest, "relation is evaluated in %s, which is not a SQL engine", dest)
		return f.Fail(ExitFailure, "cannot lower relation", err)
	}
	query, args, err := e.ToSQL(l.rel)
	if err != nil {
		return f.Fail(ExitFailure, "cannot lower relation", err)
	}
	if args == nil {
		args = []any{}
	}

	if opts.Format == "json" {
		return f.Success(SQLResult{SQL: query, Args: args})
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, query)
	if len(args) > 0 {
		fmt.Fprintf(w, "-- args: %v\n", args)
	}
	return nil
}
