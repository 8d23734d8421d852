package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// DefaultEngineName is the engine name relation documents use when a
// scenario does not set one.
const DefaultEngineName = "main"

// Scenario is one conformance case.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Engine is the engine name the relation document refers to.
	Engine string `yaml:"engine,omitempty"`

	// Leaves hold the rows of every leaf the document reads.
	Leaves []LeafFixture `yaml:"leaves"`

	// Relation is the serialized relation under test.
	Relation map[string]any `yaml:"relation"`

	Expect Expect `yaml:"expect"`
}

// LeafFixture is the data behind one leaf.
type LeafFixture struct {
	Name       string           `yaml:"name"`
	Columns    []string         `yaml:"columns"`
	UniqueKeys [][]string       `yaml:"unique_keys,omitempty"`
	Rows       []map[string]any `yaml:"rows,omitempty"`
}

// Expect is what a scenario must produce.
type Expect struct {
	// Error is the kind of error reading the relation must fail with.
	// When set, nothing else is checked.
	Error string `yaml:"error,omitempty"`

	Columns    []string   `yaml:"columns,omitempty"`
	UniqueKeys [][]string `yaml:"unique_keys,omitempty"`

	// Doomed requires the relation to be known empty.
	Doomed bool `yaml:"doomed,omitempty"`

	// Messages are substrings the diagnostics text must contain.
	Messages []string `yaml:"messages,omitempty"`

	// Rows is the expected bag of rows. Missing means none.
	Rows []map[string]any `yaml:"rows,omitempty"`
}

// Error kinds an expectation can name.
const (
	ErrorColumn            = "column"
	ErrorEngine            = "engine"
	ErrorRelationalAlgebra = "relational_algebra"
	ErrorSerialization     = "serialization"
)

var errorKinds = []string{ErrorColumn, ErrorEngine, ErrorRelationalAlgebra, ErrorSerialization}

// EngineName returns the engine name the document uses.
func (s *Scenario) EngineName() string {
	if s.Engine == "" {
		return DefaultEngineName
	}
	return s.Engine
}

func (s *Scenario) leaf(name string) (LeafFixture, bool) {
	for _, l := range s.Leaves {
		if l.Name == name {
			return l, true
		}
	}
	return LeafFixture{}, false
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses scenario YAML, rejecting unknown fields.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Relation) == 0 {
		return fmt.Errorf("relation is required")
	}

	seen := map[string]bool{}
	for i, l := range s.Leaves {
		if l.Name == "" {
			return fmt.Errorf("leaves[%d]: name is required", i)
		}
		if seen[l.Name] {
			return fmt.Errorf("leaves[%d]: duplicate leaf %q", i, l.Name)
		}
		seen[l.Name] = true
		for j, row := range l.Rows {
			for _, c := range l.Columns {
				if _, ok := row[c]; !ok {
					return fmt.Errorf("leaves[%d].rows[%d]: missing column %q", i, j, c)
				}
			}
			if len(row) != len(l.Columns) {
				return fmt.Errorf("leaves[%d].rows[%d]: has columns beyond %v", i, j, l.Columns)
			}
		}
	}

	if e := s.Expect.Error; e != "" && !slices.Contains(errorKinds, e) {
		return fmt.Errorf("expect.error: unknown error kind %q", e)
	}
	return nil
}
