package relation

import (
	"fmt"
	"slices"
	"strings"
)

// Selection keeps the rows of its base for which every predicate holds.
type Selection struct {
	base       Relation
	predicates []Predicate
	opts       buildOptions
}

// NewSelection builds a checked and simplified selection. With no
// predicates it returns base.
func NewSelection(base Relation, predicates []Predicate, opts ...BuildOption) (Relation, error) {
	return newSelection(base, predicates, applyBuildOptions(opts)).CheckedAndSimplified(false)
}

func newSelection(base Relation, predicates []Predicate, opts buildOptions) *Selection {
	return &Selection{base: base, predicates: dedupPredicates(predicates), opts: opts}
}

func dedupPredicates(predicates []Predicate) []Predicate {
	out := slices.Clone(predicates)
	slices.SortFunc(out, func(a, b Predicate) int { return strings.Compare(a.Key(), b.Key()) })
	return slices.CompactFunc(out, func(a, b Predicate) bool { return a.Key() == b.Key() })
}

// Predicates returns the predicates, sorted by key.
func (s *Selection) Predicates() []Predicate { return slices.Clone(s.predicates) }

// EngineChecksSkipped reports whether the selection was built with
// SkipEngineChecks.
func (s *Selection) EngineChecksSkipped() bool { return s.opts.skipEngineChecks }

func (s *Selection) Base() Relation      { return s.base }
func (s *Selection) Engine() *EngineTree { return s.base.Engine() }
func (s *Selection) Columns() ColumnSet  { return s.base.Columns() }
func (s *Selection) UniqueKeys() KeySet  { return s.base.UniqueKeys() }
func (s *Selection) DoomedBy() []string  { return s.base.DoomedBy() }
func (s *Selection) accept(d dispatcher) { d.selection(s) }

func (s *Selection) Rebased(base Relation) (Relation, error) {
	return newSelection(base, s.predicates, s.opts).CheckedAndSimplified(false)
}

func (s *Selection) CheckedAndSimplified(recursive bool) (Relation, error) {
	base, err := simplifyBase(s.base, recursive)
	if err != nil {
		return nil, err
	}
	if len(s.predicates) == 0 {
		return base, nil
	}
	engine := base.Engine().Destination()
	for _, p := range s.predicates {
		if !s.opts.skipEngineChecks && !p.SupportsEngine(engine) {
			return nil, newEngineError(engine, "predicate %s does not support engine %s", p, engine)
		}
		if missing := p.ColumnsRequired().Difference(base.Columns()); !missing.IsEmpty() {
			return nil, newColumnError(missing, "predicate %s needs columns not in %s", p, base)
		}
	}

	switch b := base.(type) {
	case *Selection:
		opts := s.opts
		opts.skipEngineChecks = opts.skipEngineChecks || b.opts.skipEngineChecks
		// The merged predicates may now reach past a calculation.
		return newSelection(b.base, append(b.Predicates(), s.predicates...), opts).CheckedAndSimplified(false)
	case *Calculation:
		var below, above []Predicate
		for _, p := range s.predicates {
			if p.ColumnsRequired().Contains(b.tag) {
				above = append(above, p)
			} else {
				below = append(below, p)
			}
		}
		if len(below) > 0 {
			inner, err := newSelection(b.base, below, s.opts).CheckedAndSimplified(false)
			if err != nil {
				return nil, err
			}
			calc, err := b.Rebased(inner)
			if err != nil {
				return nil, err
			}
			if len(above) == 0 {
				return calc, nil
			}
			return newSelection(calc, above, s.opts), nil
		}
	}

	if base == s.base {
		return s, nil
	}
	return newSelection(base, s.predicates, s.opts), nil
}

func (s *Selection) String() string {
	parts := make([]string, len(s.predicates))
	for i, p := range s.predicates {
		parts[i] = p.String()
	}
	return fmt.Sprintf("select(%s, {%s})", s.base, strings.Join(parts, ", "))
}
