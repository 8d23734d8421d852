package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awalterschulze/gographviz"
	"github.com/spf13/cobra"

	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/serialization"
)

// GraphOptions holds flags for the graph command.
type GraphOptions struct {
	*RootOptions
	Mixed  bool
	Output string
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GraphOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "graph <file>",
		Short: "Render a relation as a Graphviz digraph",
		Long: `Render the simplified relation as a DOT digraph, one record node per
relation node with edges to its inputs.

Examples:
  relir graph tree.yaml | dot -Tsvg > tree.svg
  relir graph tree.yaml -o tree.dot`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Mixed, "mixed", false, "accept trees spanning several engines")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the graph to a file instead of stdout")

	return cmd
}

func runGraph(opts *GraphOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	l, err := opts.load(cmd, f, path, opts.Mixed, nil)
	if err != nil {
		return err
	}
	graph, err := Graph(l.rel)
	if err != nil {
		return f.Fail(ExitFailure, "cannot render relation", err)
	}
	if opts.Format == "json" {
		return f.Success(map[string]string{"dot": graph.String()})
	}
	return writeOutput(cmd, opts.Output, []byte(graph.String()))
}

// Graph builds a digraph of r from its serialized form.
func Graph(r relation.Relation) (*gographviz.Graph, error) {
	doc, err := serialization.NewDictWriter().Write(r)
	if err != nil {
		return nil, err
	}
	graph := gographviz.NewGraph()
	if err := graph.SetName("relation"); err != nil {
		return nil, err
	}
	if err := graph.SetDir(true); err != nil {
		return nil, err
	}
	if err := graph.AddAttr("relation", "rankdir", "BT"); err != nil {
		return nil, err
	}
	b := &graphBuilder{graph: graph, counters: map[string]int{}}
	if _, err := b.node(doc); err != nil {
		return nil, err
	}
	return graph, nil
}

type graphBuilder struct {
	graph    *gographviz.Graph
	counters map[string]int
}

func (b *graphBuilder) id(kind string) string {
	n := b.counters[kind]
	b.counters[kind]++
	return fmt.Sprintf("%s_%d", kind, n)
}

// graphFields are the scalar node fields shown in labels, in order.
var graphFields = []string{"name", "engine", "destination", "tag", "offset", "limit", "columns", "unique_keys"}

func (b *graphBuilder) node(doc map[string]any) (string, error) {
	kind, _ := doc["type"].(string)
	parts := []string{"<f0> " + kind}
	for _, field := range graphFields {
		v, ok := doc[field]
		if !ok || v == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", field, escapeRecord(formatField(v))))
	}
	for _, field := range []string{"predicates", "conditions", "order_by"} {
		if items, ok := doc[field].([]any); ok && len(items) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", field, len(items)))
		}
	}

	var children []map[string]any
	if base, ok := doc["base"].(map[string]any); ok {
		children = append(children, base)
	}
	if members, ok := doc["relations"].([]any); ok {
		for _, m := range members {
			if child, ok := m.(map[string]any); ok {
				children = append(children, child)
			}
		}
	}

	id := b.id(kind)
	label := fmt.Sprintf("\"{%s}\"", strings.Join(parts, "|"))
	if err := b.graph.AddNode("relation", id, map[string]string{"shape": "record", "label": label}); err != nil {
		return "", err
	}
	for _, child := range children {
		childID, err := b.node(child)
		if err != nil {
			return "", err
		}
		if err := b.graph.AddEdge(childID, id, true, nil); err != nil {
			return "", err
		}
	}
	return id, nil
}

func formatField(v any) string {
	switch x := v.(type) {
	case []any:
		items := make([]string, len(x))
		for i, item := range x {
			items[i] = formatField(item)
		}
		sort.Strings(items)
		return "(" + strings.Join(items, ", ") + ")"
	case map[string]any:
		return fmt.Sprintf("%d fields", len(x))
	}
	return fmt.Sprint(v)
}

// escapeRecord quotes the characters record labels treat as structure.
func escapeRecord(s string) string {
	r := strings.NewReplacer(`"`, `\"`, "{", `\{`, "}", `\}`, "|", `\|`, "<", `\<`, ">", `\>`)
	return r.Replace(s)
}
