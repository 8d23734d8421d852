// Package iteration is an engine that evaluates relation trees in memory,
// row by row.
//
// Leaves carry their rows as a Rows payload or a Source. Joins are hash
// joins on the columns the operands share, with join conditions checked on
// each joined row. Selections and calculations are evaluated from the
// expression language in package expr, or from per-engine closures stored
// in a helper's EngineState (PredicateFunc, ConditionFunc, SortKeyFunc).
//
// Execution is bag-based: projections and unions keep duplicates, and only
// Distinct removes them. Row order follows the input except under Slice.
//
// An Engine caches leaf rows and materializations. It is not safe for
// concurrent use.
package iteration
