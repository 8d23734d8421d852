package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/serialization"
)

// DiagnoseOptions holds flags for the diagnose command.
type DiagnoseOptions struct {
	*RootOptions
	Mixed  bool
	Pruned bool // also print the relation with doomed branches removed
}

// DiagnoseResult is the JSON payload of the diagnose command.
type DiagnoseResult struct {
	Doomed   bool           `json:"doomed"`
	Messages []string       `json:"messages"`
	Pruned   map[string]any `json:"pruned,omitempty"`
}

// NewDiagnoseCommand creates the diagnose command.
func NewDiagnoseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiagnoseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diagnose <file>",
		Short: "Explain why a relation has no rows",
		Long: `Walk a relation and report every branch known to have no rows.

Messages are nested to follow the tree: a join names the operands that
doom it, a union lists its doomed members. With --pruned, the relation is
also printed with doomed union members removed.

Exit codes:
  0 - Relation may have rows
  1 - Relation is doomed, or invalid
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Mixed, "mixed", false, "accept trees spanning several engines")
	cmd.Flags().BoolVar(&opts.Pruned, "pruned", false, "print the relation with doomed branches removed")

	return cmd
}

func runDiagnose(opts *DiagnoseOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	l, err := opts.load(cmd, f, path, opts.Mixed, nil)
	if err != nil {
		return err
	}
	diag, err := relation.Diagnose(l.rel)
	if err != nil {
		return f.Fail(ExitFailure, "cannot diagnose relation", err)
	}

	result := DiagnoseResult{Doomed: diag.IsDoomed, Messages: diag.Messages}
	if result.Messages == nil {
		result.Messages = []string{}
	}
	if opts.Pruned && diag.Relation != nil {
		if result.Pruned, err = serialization.NewDictWriter().Write(diag.Relation); err != nil {
			return f.Fail(ExitFailure, "cannot write pruned relation", err)
		}
	}

	if opts.Format == "json" {
		if diag.IsDoomed {
			if err := f.Error(ErrCodeDoomed, "relation is doomed", result); err != nil {
				return err
			}
			return &ExitError{Code: ExitFailure, Message: "relation is doomed", Reported: true}
		}
		return f.Success(result)
	}

	w := cmd.OutOrStdout()
	if diag.IsDoomed {
		fmt.Fprintln(w, "\u2717 relation is doomed")
	} else {
		fmt.Fprintln(w, "\u2713 relation may have rows")
	}
	if len(diag.Messages) > 0 {
		fmt.Fprintln(w, diag.Text())
	}
	if result.Pruned != nil {
		data, err := serialization.Encode(result.Pruned, serialization.FormatYAML)
		if err != nil {
			return f.Fail(ExitFailure, "cannot encode pruned relation", err)
		}
		fmt.Fprintln(w, "---")
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	if diag.IsDoomed {
		return &ExitError{Code: ExitFailure, Message: "relation is doomed", Reported: true}
	}
	return nil
}
