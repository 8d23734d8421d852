package serialization

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/relir/internal/relation"
)

//go:embed schema.cue
var schemaSource string

// definitions maps a node type to its schema definition.
var definitions = map[string]string{
	"leaf":            "#Leaf",
	"join":            "#Join",
	"union":           "#Union",
	"projection":      "#Projection",
	"selection":       "#Selection",
	"distinct":        "#Distinct",
	"slice":           "#Slice",
	"transfer":        "#Transfer",
	"materialization": "#Materialization",
	"calculation":     "#Calculation",
	"extension":       "#Extension",
}

// Schema checks the shape of single serialized nodes. A cue.Context is not
// safe for concurrent use, so validation is serialized.
type Schema struct {
	mu   sync.Mutex
	ctx  *cue.Context
	defs map[string]cue.Value
}

var (
	defaultSchema     *Schema
	defaultSchemaErr  error
	defaultSchemaOnce sync.Once
)

// DefaultSchema returns the compiled built-in schema.
func DefaultSchema() (*Schema, error) {
	defaultSchemaOnce.Do(func() {
		defaultSchema, defaultSchemaErr = CompileSchema(schemaSource)
	})
	return defaultSchema, defaultSchemaErr
}

// CompileSchema compiles CUE source defining one definition per node type.
func CompileSchema(src string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, schemaError("", err)
	}
	s := &Schema{ctx: ctx, defs: make(map[string]cue.Value, len(definitions))}
	for kind, name := range definitions {
		def := v.LookupPath(cue.ParsePath(name))
		if !def.Exists() {
			return nil, relation.NewSerializationError("", "schema is missing %s", name)
		}
		s.defs[kind] = def
	}
	return s, nil
}

// ValidateNode checks doc against the definition for its type. Nested
// relations are only required to carry a type; callers validate them as
// they descend.
func (s *Schema) ValidateNode(doc map[string]any) error {
	kind, _ := doc["type"].(string)
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.defs[kind]
	if !ok {
		return relation.NewSerializationError("type", "unknown relation type %q", kind)
	}
	v := def.Unify(s.ctx.Encode(doc))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return schemaError(kind, err)
	}
	return nil
}

// schemaError converts the first CUE error into a SerializationError that
// names the offending field.
func schemaError(kind string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return relation.NewSerializationError("", "%s: %v", kind, err)
	}
	first := errs[0]
	format, args := first.Msg()
	msg := fmt.Sprintf(format, args...)
	if kind != "" {
		msg = kind + ": " + msg
	}
	return &relation.SerializationError{Path: documentPath(first.Path()), Message: msg}
}

// documentPath drops the definition selectors CUE puts in error paths,
// leaving the field names of the document.
func documentPath(selectors []string) string {
	fields := make([]string, 0, len(selectors))
	for _, sel := range selectors {
		if !strings.HasPrefix(sel, "#") {
			fields = append(fields, sel)
		}
	}
	return strings.Join(fields, ".")
}
