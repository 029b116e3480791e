package interview

import (
	"sort"
	"strings"
)

// Category is an eligibility outcome code such as "B-1" or "EB-5".
type Category string

// CategoryInfo describes a category for display purposes.
type CategoryInfo struct {
	Code        Category `json:"code" yaml:"code"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description"`
}

// CategorySet is an immutable, code-sorted set of categories.
type CategorySet struct {
	items []Category
}

// NewCategorySet builds a set from arbitrary input, dropping duplicates.
func NewCategorySet(codes ...Category) CategorySet {
	if len(codes) == 0 {
		return CategorySet{}
	}
	items := append([]Category(nil), codes...)
	sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })

	out := items[:1]
	for _, c := range items[1:] {
		if c != out[len(out)-1] {
			out = append(out, c)
		}
	}
	return CategorySet{items: out}
}

// Len returns the number of categories in the set.
func (s CategorySet) Len() int { return len(s.items) }

// IsEmpty reports whether no category remains.
func (s CategorySet) IsEmpty() bool { return len(s.items) == 0 }

// Contains reports whether c is a member of the set.
func (s CategorySet) Contains(c Category) bool {
	i := sort.Search(len(s.items), func(i int) bool { return s.items[i] >= c })
	return i < len(s.items) && s.items[i] == c
}

// Codes returns a copy of the members in code order.
func (s CategorySet) Codes() []Category {
	return append([]Category(nil), s.items...)
}

// Strings returns the members as plain strings, in code order.
func (s CategorySet) Strings() []string {
	out := make([]string, len(s.items))
	for i, c := range s.items {
		out[i] = string(c)
	}
	return out
}

// Lowest returns the smallest code, used as the deterministic tie-break.
func (s CategorySet) Lowest() (Category, bool) {
	if len(s.items) == 0 {
		return "", false
	}
	return s.items[0], true
}

// Intersect returns the members present in both sets.
func (s CategorySet) Intersect(other CategorySet) CategorySet {
	out := make([]Category, 0, min(len(s.items), len(other.items)))
	i, j := 0, 0
	for i < len(s.items) && j < len(other.items) {
		switch {
		case s.items[i] == other.items[j]:
			out = append(out, s.items[i])
			i++
			j++
		case s.items[i] < other.items[j]:
			i++
		default:
			j++
		}
	}
	return CategorySet{items: out}
}

// Without returns the members of s that are not in other.
func (s CategorySet) Without(other CategorySet) CategorySet {
	out := make([]Category, 0, len(s.items))
	for _, c := range s.items {
		if !other.Contains(c) {
			out = append(out, c)
		}
	}
	return CategorySet{items: out}
}

// Equal reports whether both sets hold the same members.
func (s CategorySet) Equal(other CategorySet) bool {
	if len(s.items) != len(other.items) {
		return false
	}
	for i := range s.items {
		if s.items[i] != other.items[i] {
			return false
		}
	}
	return true
}

// IsSubsetOf reports whether every member of s is also in other.
func (s CategorySet) IsSubsetOf(other CategorySet) bool {
	for _, c := range s.items {
		if !other.Contains(c) {
			return false
		}
	}
	return true
}

func (s CategorySet) String() string {
	return "{" + strings.Join(s.Strings(), ", ") + "}"
}
