package relation

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Unbounded is the Slice limit meaning "all remaining rows".
const Unbounded = -1

// Slice sorts its base and keeps a window of rows.
type Slice struct {
	base    Relation
	orderBy []OrderByTerm
	offset  int
	limit   int
	opts    buildOptions
}

// NewSlice builds a checked and simplified slice. limit may be Unbounded.
func NewSlice(base Relation, orderBy []OrderByTerm, offset, limit int, opts ...BuildOption) (Relation, error) {
	s := &Slice{base: base, orderBy: slices.Clone(orderBy), offset: offset, limit: limit, opts: applyBuildOptions(opts)}
	return s.CheckedAndSimplified(false)
}

// OrderBy returns the sort terms, most significant first.
func (s *Slice) OrderBy() []OrderByTerm { return slices.Clone(s.orderBy) }

// Offset is the number of leading rows skipped.
func (s *Slice) Offset() int { return s.offset }

// Limit is the maximum number of rows kept; ok is false when unbounded.
func (s *Slice) Limit() (limit int, ok bool) { return s.limit, s.limit != Unbounded }

// EngineChecksSkipped reports whether the slice was built with
// SkipEngineChecks.
func (s *Slice) EngineChecksSkipped() bool { return s.opts.skipEngineChecks }

func (s *Slice) Base() Relation      { return s.base }
func (s *Slice) Engine() *EngineTree { return s.base.Engine() }
func (s *Slice) Columns() ColumnSet  { return s.base.Columns() }
func (s *Slice) UniqueKeys() KeySet  { return s.base.UniqueKeys() }
func (s *Slice) accept(d dispatcher) { d.slice(s) }

// ZeroLimitMessage dooms a slice whose window holds no rows.
const ZeroLimitMessage = "slice has limit=0"

// DoomedBy adds a message when the window is empty.
func (s *Slice) DoomedBy() []string {
	if s.limit == 0 {
		return sortedMessages(s.base.DoomedBy(), []string{ZeroLimitMessage})
	}
	return s.base.DoomedBy()
}

func (s *Slice) Rebased(base Relation) (Relation, error) {
	return (&Slice{base: base, orderBy: s.orderBy, offset: s.offset, limit: s.limit, opts: s.opts}).CheckedAndSimplified(false)
}

func (s *Slice) CheckedAndSimplified(recursive bool) (Relation, error) {
	base, err := simplifyBase(s.base, recursive)
	if err != nil {
		return nil, err
	}
	if s.offset < 0 || s.limit < Unbounded {
		return nil, newAlgebraError("slice offset and limit must not be negative (offset=%d, limit=%d)", s.offset, s.limit)
	}
	if len(s.orderBy) == 0 {
		return nil, newAlgebraError("cannot slice %s without an ordering", base)
	}
	if s.offset == 0 && s.limit == Unbounded {
		return nil, newAlgebraError("cannot order %s unless it is sliced with a nonzero offset or a limit", base)
	}
	engine := base.Engine().Destination()
	if !s.opts.skipEngineChecks && !engine.Options().CanSort {
		return nil, newEngineError(engine, "engine %s cannot sort", engine)
	}
	for _, t := range s.orderBy {
		if !s.opts.skipEngineChecks && !t.SupportsEngine(engine) {
			return nil, newEngineError(engine, "order-by term %s does not support engine %s", t, engine)
		}
		if missing := t.ColumnsRequired().Difference(base.Columns()); !missing.IsEmpty() {
			return nil, newColumnError(missing, "order-by term %s needs columns not in %s", t, base)
		}
	}

	if inner, ok := base.(*Slice); ok && sameOrdering(inner.orderBy, s.orderBy) {
		offset, limit := mergeWindows(inner.offset, inner.limit, s.offset, s.limit)
		return &Slice{base: inner.base, orderBy: s.orderBy, offset: offset, limit: limit, opts: s.opts}, nil
	}
	if base == s.base {
		return s, nil
	}
	return &Slice{base: base, orderBy: s.orderBy, offset: s.offset, limit: s.limit, opts: s.opts}, nil
}

func sameOrdering(a, b []OrderByTerm) bool {
	return slices.EqualFunc(a, b, func(x, y OrderByTerm) bool { return x.Key() == y.Key() })
}

// mergeWindows composes an outer window applied to the rows of an inner
// one, both relative to the same ordering, into a single window over the
// inner base.
func mergeWindows(innerOffset, innerLimit, outerOffset, outerLimit int) (offset, limit int) {
	offset = innerOffset + outerOffset
	end := Unbounded
	if innerLimit != Unbounded {
		end = innerOffset + innerLimit
	}
	if outerLimit != Unbounded {
		outerEnd := offset + outerLimit
		if end == Unbounded || outerEnd < end {
			end = outerEnd
		}
	}
	if end == Unbounded {
		return offset, Unbounded
	}
	return offset, max(end-offset, 0)
}

func (s *Slice) String() string {
	terms := make([]string, len(s.orderBy))
	for i, t := range s.orderBy {
		terms[i] = t.String()
	}
	return fmt.Sprintf("slice(%s, order_by=[%s], offset=%d, limit=%s)", s.base, strings.Join(terms, ", "), s.offset, formatLimit(s.limit))
}

func formatLimit(limit int) string {
	if limit == Unbounded {
		return "none"
	}
	return strconv.Itoa(limit)
}
