package harness

// Engine kinds a scenario runs in.
const (
	KindIteration = "iteration"
	KindSQL       = "sql"
)

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every expectation held in every engine.
	Pass bool `json:"pass"`

	// Errors lists each failed expectation.
	Errors []string `json:"errors,omitempty"`

	// ReadError is the error reading the relation failed with, if any.
	ReadError string `json:"read_error,omitempty"`

	Columns    []string   `json:"columns,omitempty"`
	UniqueKeys [][]string `json:"unique_keys,omitempty"`
	Doomed     bool       `json:"doomed"`
	Messages   []string   `json:"messages,omitempty"`

	// Rows holds the sorted rows each engine produced, keyed by kind.
	Rows map[string][]map[string]any `json:"rows,omitempty"`

	// SQL is the statement the SQL engine ran, with its arguments.
	SQL     string `json:"sql,omitempty"`
	SQLArgs []any  `json:"sql_args,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Rows:   map[string][]map[string]any{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
