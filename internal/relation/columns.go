package relation

import (
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ColumnTag identifies a column. Tags are compared by value and ordered by
// their string form; relations only ever reference sets of them.
type ColumnTag string

// Column builds a ColumnTag from a name, NFC-normalizing it so visually
// identical names compare equal.
func Column(name string) ColumnTag {
	return ColumnTag(norm.NFC.String(name))
}

func (c ColumnTag) String() string {
	return string(c)
}

// ColumnSet is an immutable, sorted set of column tags.
// The zero value is the empty set.
type ColumnSet struct {
	tags []ColumnTag
}

// NewColumnSet builds a set from tags, dropping duplicates.
func NewColumnSet(tags ...ColumnTag) ColumnSet {
	if len(tags) == 0 {
		return ColumnSet{}
	}
	out := slices.Clone(tags)
	slices.Sort(out)
	return ColumnSet{tags: slices.Compact(out)}
}

// Columns builds a set from plain column names.
func Columns(names ...string) ColumnSet {
	tags := make([]ColumnTag, len(names))
	for i, n := range names {
		tags[i] = Column(n)
	}
	return NewColumnSet(tags...)
}

// Len returns the number of columns.
func (s ColumnSet) Len() int { return len(s.tags) }

// IsEmpty reports whether the set has no columns.
func (s ColumnSet) IsEmpty() bool { return len(s.tags) == 0 }

// Tags returns the columns in sorted order. The caller owns the slice.
func (s ColumnSet) Tags() []ColumnTag { return slices.Clone(s.tags) }

// Strings returns the sorted column names.
func (s ColumnSet) Strings() []string {
	out := make([]string, len(s.tags))
	for i, t := range s.tags {
		out[i] = string(t)
	}
	return out
}

// Contains reports whether tag is in the set.
func (s ColumnSet) Contains(tag ColumnTag) bool {
	_, found := slices.BinarySearch(s.tags, tag)
	return found
}

// IsSubsetOf reports whether every column of s is in other.
func (s ColumnSet) IsSubsetOf(other ColumnSet) bool {
	if len(s.tags) > len(other.tags) {
		return false
	}
	for _, t := range s.tags {
		if !other.Contains(t) {
			return false
		}
	}
	return true
}

// IsStrictSubsetOf reports whether s is a subset of other and smaller.
func (s ColumnSet) IsStrictSubsetOf(other ColumnSet) bool {
	return len(s.tags) < len(other.tags) && s.IsSubsetOf(other)
}

// Equal reports whether both sets hold the same columns.
func (s ColumnSet) Equal(other ColumnSet) bool {
	return slices.Equal(s.tags, other.tags)
}

// Union returns the columns in s or any of others.
func (s ColumnSet) Union(others ...ColumnSet) ColumnSet {
	all := slices.Clone(s.tags)
	for _, o := range others {
		all = append(all, o.tags...)
	}
	return NewColumnSet(all...)
}

// Intersection returns the columns in both s and other.
func (s ColumnSet) Intersection(other ColumnSet) ColumnSet {
	var out []ColumnTag
	for _, t := range s.tags {
		if other.Contains(t) {
			out = append(out, t)
		}
	}
	return ColumnSet{tags: out}
}

// Difference returns the columns in s that are not in other.
func (s ColumnSet) Difference(other ColumnSet) ColumnSet {
	var out []ColumnTag
	for _, t := range s.tags {
		if !other.Contains(t) {
			out = append(out, t)
		}
	}
	return ColumnSet{tags: out}
}

// With returns s plus tag.
func (s ColumnSet) With(tag ColumnTag) ColumnSet {
	return NewColumnSet(append(slices.Clone(s.tags), tag)...)
}

// Key returns a string usable as a map key for the set.
func (s ColumnSet) Key() string {
	return strings.Join(s.Strings(), "\x00")
}

// String formats the set as {a, b}.
func (s ColumnSet) String() string {
	return "{" + strings.Join(s.Strings(), ", ") + "}"
}

// UniqueKey is a set of columns whose values identify a row.
type UniqueKey = ColumnSet

// KeySet is an immutable set of unique keys, any one of which is enough to
// make rows unique. Keys are kept sorted by their column lists.
type KeySet struct {
	keys []UniqueKey
}

// NewKeySet builds a key set, dropping duplicate keys. It does not drop
// covered keys; see DropCoveredInternalUniqueKeys.
func NewKeySet(keys ...UniqueKey) KeySet {
	if len(keys) == 0 {
		return KeySet{}
	}
	out := slices.Clone(keys)
	slices.SortFunc(out, compareKeys)
	out = slices.CompactFunc(out, func(a, b UniqueKey) bool { return a.Equal(b) })
	return KeySet{keys: out}
}

func compareKeys(a, b UniqueKey) int {
	return slices.Compare(a.tags, b.tags)
}

// Len returns the number of keys.
func (k KeySet) Len() int { return len(k.keys) }

// IsEmpty reports whether there are no keys (no uniqueness guarantee).
func (k KeySet) IsEmpty() bool { return len(k.keys) == 0 }

// Keys returns the keys in sorted order. The caller owns the slice.
func (k KeySet) Keys() []UniqueKey { return slices.Clone(k.keys) }

// Contains reports whether key is one of the keys.
func (k KeySet) Contains(key UniqueKey) bool {
	for _, existing := range k.keys {
		if existing.Equal(key) {
			return true
		}
	}
	return false
}

// Equal reports whether both sets hold the same keys.
func (k KeySet) Equal(other KeySet) bool {
	return slices.EqualFunc(k.keys, other.keys, func(a, b UniqueKey) bool { return a.Equal(b) })
}

// Columns returns the union of all key columns.
func (k KeySet) Columns() ColumnSet {
	return ColumnSet{}.Union(k.keys...)
}

// Key returns a string usable as a map key for the key set.
func (k KeySet) Key() string {
	parts := make([]string, len(k.keys))
	for i, key := range k.keys {
		parts[i] = key.Key()
	}
	return strings.Join(parts, "\x01")
}

// String formats the key set as {{a}, {b, c}}.
func (k KeySet) String() string {
	parts := make([]string, len(k.keys))
	for i, key := range k.keys {
		parts[i] = key.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// IsUniqueKeyCovered reports whether key is implied by base: key is one of
// base's keys, or some base key is a subset of it.
func IsUniqueKeyCovered(key UniqueKey, base KeySet) bool {
	for _, b := range base.keys {
		if b.IsSubsetOf(key) {
			return true
		}
	}
	return false
}

// DropCoveredInternalUniqueKeys removes every key that is a strict superset
// of another key in the same set, repeating until nothing changes.
func DropCoveredInternalUniqueKeys(keys KeySet) KeySet {
	current := keys.keys
	for {
		var kept []UniqueKey
		for i, k1 := range current {
			covered := false
			for j, k2 := range current {
				if i != j && k2.IsStrictSubsetOf(k1) {
					covered = true
					break
				}
			}
			if !covered {
				kept = append(kept, k1)
			}
		}
		if len(kept) == len(current) {
			return KeySet{keys: kept}
		}
		current = kept
	}
}

// crossKeys combines the keys of join members: each result key is the
// union of one key from every member. A member with no keys removes every
// guarantee.
func crossKeys(members []KeySet) KeySet {
	acc := []UniqueKey{{}}
	for _, m := range members {
		if m.IsEmpty() {
			return KeySet{}
		}
		next := make([]UniqueKey, 0, len(acc)*len(m.keys))
		for _, a := range acc {
			for _, b := range m.keys {
				next = append(next, a.Union(b))
			}
		}
		acc = next
	}
	return DropCoveredInternalUniqueKeys(NewKeySet(acc...))
}
