package cli

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/roach88/relir/internal/serialization"
)

// SimplifyOptions holds flags for the simplify command.
type SimplifyOptions struct {
	*RootOptions
	Diff   bool   // print a unified diff instead of the document
	To     string // document format of the output
	Route  string // engine to insert transfers toward
	Output string
}

// SimplifyResult is the JSON payload of the simplify command.
type SimplifyResult struct {
	Document map[string]any `json:"document"`
	Changed  bool           `json:"changed"`
	Diff     string         `json:"diff,omitempty"`
}

// NewSimplifyCommand creates the simplify command.
func NewSimplifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimplifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simplify <file>",
		Short: "Write the canonical form of a relation",
		Long: `Read a relation document and write it back in canonical form.

Reading checks and simplifies every node: nested joins and unions are
flattened where the engine allows it, redundant projections and
selections disappear, and doomed branches are pruned. With --route, the
tree may span engines and transfers are inserted toward the named
engine.

Examples:
  relir simplify tree.yaml
  relir simplify tree.yaml --diff
  relir simplify tree.yaml --to json -o simplified.json
  relir simplify mixed.yaml --route iteration`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimplify(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Diff, "diff", false, "print a unified diff between the input and the simplified document")
	cmd.Flags().StringVar(&opts.To, "to", "yaml", "document format (yaml|json)")
	cmd.Flags().StringVar(&opts.Route, "route", "", "insert transfers so the relation evaluates in this engine")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the document to a file instead of stdout")

	return cmd
}

func runSimplify(opts *SimplifyOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	format, err := serialization.ParseFormat(opts.To)
	if err != nil {
		return f.FailCode(ErrCodeConfig, ExitCommandError, "invalid --to", err)
	}

	l, err := opts.load(cmd, f, path, opts.Route != "", nil)
	if err != nil {
		return err
	}
	rel := l.rel
	if opts.Route != "" {
		dest, ok := l.engines.Lookup(opts.Route)
		if !ok {
			return f.FailCode(ErrCodeConfig, ExitCommandError, fmt.Sprintf("unknown engine %q", opts.Route), nil)
		}
		if rel, err = routeTo(rel, dest); err != nil {
			return f.Fail(ExitFailure, "cannot insert transfers", err)
		}
	}

	doc, err := serialization.NewDictWriter().Write(rel)
	if err != nil {
		return f.Fail(ExitFailure, "cannot write relation", err)
	}
	after, err := serialization.Encode(doc, format)
	if err != nil {
		return f.Fail(ExitFailure, "cannot encode relation", err)
	}
	before, err := serialization.Encode(l.doc.Tree, format)
	if err != nil {
		return f.Fail(ExitFailure, "cannot encode input", err)
	}

	diff, err := unifiedDiff(path, "simplified", string(before), string(after))
	if err != nil {
		return f.Fail(ExitFailure, "cannot diff documents", err)
	}

	if opts.Format == "json" {
		return f.Success(SimplifyResult{Document: doc, Changed: diff != "", Diff: diff})
	}

	if opts.Diff {
		if diff == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "\u2713 already in canonical form")
			return nil
		}
		_, err := fmt.Fprint(cmd.OutOrStdout(), diff)
		return err
	}
	return writeOutput(cmd, opts.Output, after)
}

// unifiedDiff compares two documents line by line. Equal documents give an
// empty diff.
func unifiedDiff(from, to, a, b string) (string, error) {
	if a == b {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: from,
		ToFile:   to,
		Context:  3,
	})
}
