package relation

import (
	"sort"
	"strings"
)

// EngineTree records where a relation is evaluated: the destination engine
// at the root and, as sources, the trees of data that must be transferred
// into it. A relation whose inputs all live in one engine has a tree of
// depth one.
type EngineTree struct {
	destination Engine
	sources     []*EngineTree
}

// BuildEngineTree constructs a tree. Duplicate sources are merged, and a
// single source whose destination is the same engine collapses into the
// result so that a no-op hop never appears.
func BuildEngineTree(destination Engine, sources ...*EngineTree) *EngineTree {
	var kept []*EngineTree
	for _, s := range sources {
		if s == nil {
			continue
		}
		dup := false
		for _, k := range kept {
			if k.Equal(s) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, s)
		}
	}
	if len(kept) == 1 && kept[0].destination == destination {
		return kept[0]
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Key() < kept[j].Key() })
	return &EngineTree{destination: destination, sources: kept}
}

// Destination is the engine that produces the final rows.
func (t *EngineTree) Destination() Engine { return t.destination }

// Tag is an alias for Destination.
func (t *EngineTree) Tag() Engine { return t.destination }

// Sources returns the upstream trees.
func (t *EngineTree) Sources() []*EngineTree {
	out := make([]*EngineTree, len(t.sources))
	copy(out, t.sources)
	return out
}

// Depth is 1 for a single engine and grows by one per transfer hop.
func (t *EngineTree) Depth() int {
	depth := 0
	for _, s := range t.sources {
		depth = max(depth, s.Depth())
	}
	return depth + 1
}

// Iter returns every tree node in post-order: sources before their
// destination.
func (t *EngineTree) Iter() []*EngineTree {
	var out []*EngineTree
	for _, s := range t.sources {
		out = append(out, s.Iter()...)
	}
	return append(out, t)
}

// Engines lists the engines referenced anywhere in the tree, each once, in
// post-order of first appearance.
func (t *EngineTree) Engines() []Engine {
	var out []Engine
	seen := map[Engine]bool{}
	for _, node := range t.Iter() {
		if !seen[node.destination] {
			seen[node.destination] = true
			out = append(out, node.destination)
		}
	}
	return out
}

// Contains reports whether engine appears anywhere in the tree.
func (t *EngineTree) Contains(engine Engine) bool {
	return t.Find(engine) != nil
}

// Find returns the first subtree, searching the root then sources in order,
// whose destination is engine.
func (t *EngineTree) Find(engine Engine) *EngineTree {
	if t.destination == engine {
		return t
	}
	for _, s := range t.sources {
		if found := s.Find(engine); found != nil {
			return found
		}
	}
	return nil
}

// Equal compares trees structurally, using engine identity.
func (t *EngineTree) Equal(other *EngineTree) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil {
		return false
	}
	if t.destination != other.destination || len(t.sources) != len(other.sources) {
		return false
	}
	for _, s := range t.sources {
		found := false
		for _, o := range other.sources {
			if s.Equal(o) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Key is a deterministic string form used for ordering sources.
func (t *EngineTree) Key() string {
	return t.String()
}

// String formats the tree as dest(src1, src2).
func (t *EngineTree) String() string {
	if len(t.sources) == 0 {
		return t.destination.String()
	}
	parts := make([]string, len(t.sources))
	for i, s := range t.sources {
		parts[i] = s.String()
	}
	return t.destination.String() + "(" + strings.Join(parts, ", ") + ")"
}

// mergedTree computes the tree of an n-ary operation evaluated in engine:
// members already in engine contribute their sources, members elsewhere
// contribute their whole tree.
func mergedTree(engine Engine, members []Relation) *EngineTree {
	var sources []*EngineTree
	for _, m := range members {
		tree := m.Engine()
		if tree.destination == engine {
			sources = append(sources, tree.sources...)
		} else {
			sources = append(sources, tree)
		}
	}
	return BuildEngineTree(engine, sources...)
}
