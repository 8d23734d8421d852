package transform

import (
	"slices"
	"strings"

	"github.com/roach88/relir/internal/relation"
)

func destination(r relation.Relation) relation.Engine {
	return r.Engine().Destination()
}

// supportedSomewhere reports whether some engine in tree can evaluate p.
func supportedSomewhere(p relation.Predicate, tree *relation.EngineTree) bool {
	for _, e := range tree.Engines() {
		if p.SupportsEngine(e) {
			return true
		}
	}
	return false
}

func splitPredicates(preds []relation.Predicate, keep func(relation.Predicate) bool) (in, out []relation.Predicate) {
	for _, p := range preds {
		if keep(p) {
			in = append(in, p)
		} else {
			out = append(out, p)
		}
	}
	return in, out
}

func dedup(preds []relation.Predicate) []relation.Predicate {
	out := slices.Clone(preds)
	slices.SortFunc(out, func(a, b relation.Predicate) int { return strings.Compare(a.Key(), b.Key()) })
	return slices.CompactFunc(out, func(a, b relation.Predicate) bool { return a.Key() == b.Key() })
}

func predicateNames(preds []relation.Predicate) string {
	names := make([]string, len(preds))
	for i, p := range preds {
		names[i] = p.String()
	}
	return "[" + strings.Join(names, ", ") + "]"
}

// matchesPair reports whether c applies between two distinct members.
func matchesPair(c *relation.JoinCondition, members []relation.Relation) bool {
	for i, a := range members {
		for k, b := range members {
			if i != k && c.Matches(a.Columns(), b.Columns()) {
				return true
			}
		}
	}
	return false
}

func sameMembers(a, b []relation.Relation) bool {
	return slices.EqualFunc(a, b, func(x, y relation.Relation) bool { return x == y })
}
