package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/serialization"
	"github.com/roach88/relir/internal/value"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Mixed bool
}

// RelationSummary describes a relation without its rows.
type RelationSummary struct {
	// ID fingerprints the simplified relation's document, so equivalent
	// documents share it.
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Columns    []string   `json:"columns"`
	UniqueKeys [][]string `json:"unique_keys"`
	Engines    []string   `json:"engines"`
	EngineTree string     `json:"engine_tree"`
	Doomed     bool       `json:"doomed"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Check that a document describes a valid relation",
		Long: `Read a relation document, checking and simplifying every node.

Reports the relation's content id, columns, unique keys and engines. Use "-" to read
the document from stdin.

Exit codes:
  0 - Relation is valid
  1 - Document or relation is invalid
  2 - Command error (file not found, bad config)

Examples:
  relir check tree.yaml
  relir check --mixed tree.yaml
  relir check tree.json --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Mixed, "mixed", false, "accept trees spanning several engines")

	return cmd
}

func runCheck(opts *CheckOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	l, err := opts.load(cmd, f, path, opts.Mixed, nil)
	if err != nil {
		return err
	}
	summary, err := summarize(l.rel)
	if err != nil {
		return f.Fail(ExitFailure, "cannot describe relation", err)
	}

	if opts.Format == "json" {
		return f.Success(summary)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\u2713 %s is a valid %s\n", path, summary.Type)
	fmt.Fprintf(w, "  id:          %s\n", summary.ID)
	fmt.Fprintf(w, "  columns:     %s\n", l.rel.Columns())
	fmt.Fprintf(w, "  unique keys: %s\n", l.rel.UniqueKeys())
	fmt.Fprintf(w, "  engines:     %s\n", summary.EngineTree)
	if summary.Doomed {
		fmt.Fprintf(w, "  doomed:      %s\n", strings.Join(l.rel.DoomedBy(), "; "))
	}
	return nil
}

func summarize(r relation.Relation) (RelationSummary, error) {
	doc, err := serialization.NewDictWriter().Write(r)
	if err != nil {
		return RelationSummary{}, err
	}
	id, err := value.Fingerprint(value.DomainRelation, doc)
	if err != nil {
		return RelationSummary{}, err
	}
	kind, _ := doc["type"].(string)
	keys := [][]string{}
	for _, k := range r.UniqueKeys().Keys() {
		keys = append(keys, k.Strings())
	}
	return RelationSummary{
		ID:         id,
		Type:       kind,
		Columns:    r.Columns().Strings(),
		UniqueKeys: keys,
		Engines:    engineNames(r),
		EngineTree: r.Engine().String(),
		Doomed:     len(r.DoomedBy()) > 0,
	}, nil
}
