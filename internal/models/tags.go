package models

import (
	"encoding/json"
	"sort"
)

// Category is one of the five fixed tag categories.
type Category string

const (
	CategoryLevel       Category = "level"
	CategoryCitizenship Category = "citizenship"
	CategoryType        Category = "type"
	CategoryField       Category = "field"
	CategoryFunding     Category = "funding"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryLevel,
	CategoryCitizenship,
	CategoryType,
	CategoryField,
	CategoryFunding,
}

// ParseCategory maps a category key to its Category.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// TagSet is a sorted, duplicate-free set of canonical tokens.
type TagSet []string

// NewTagSet sorts and deduplicates values. Empty strings are dropped.
func NewTagSet(values ...string) TagSet {
	out := make(TagSet, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (s TagSet) Len() int { return len(s) }

func (s TagSet) Contains(v string) bool {
	i := sort.SearchStrings(s, v)
	return i < len(s) && s[i] == v
}

// Intersects reports whether the two sets share at least one token.
func (s TagSet) Intersects(o TagSet) bool {
	i, j := 0, 0
	for i < len(s) && j < len(o) {
		switch {
		case s[i] == o[j]:
			return true
		case s[i] < o[j]:
			i++
		default:
			j++
		}
	}
	return false
}

// Toggle returns a new set with v added, or removed if it was present.
func (s TagSet) Toggle(v string) TagSet {
	if s.Contains(v) {
		out := make(TagSet, 0, len(s)-1)
		for _, x := range s {
			if x != v {
				out = append(out, x)
			}
		}
		return out
	}
	return NewTagSet(append(append([]string{}, s...), v)...)
}

func (s TagSet) Equal(o TagSet) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s TagSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

func (s *TagSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewTagSet(values...)
	return nil
}

// Tags holds one TagSet per category. Every category is always present.
type Tags struct {
	Level       TagSet `json:"level"`
	Citizenship TagSet `json:"citizenship"`
	Type        TagSet `json:"type"`
	Field       TagSet `json:"field"`
	Funding     TagSet `json:"funding"`
}

// Get returns the set for c. Unknown categories yield an empty set.
func (t Tags) Get(c Category) TagSet {
	var s TagSet
	switch c {
	case CategoryLevel:
		s = t.Level
	case CategoryCitizenship:
		s = t.Citizenship
	case CategoryType:
		s = t.Type
	case CategoryField:
		s = t.Field
	case CategoryFunding:
		s = t.Funding
	}
	if s == nil {
		return TagSet{}
	}
	return s
}

// With returns a copy of t with the set for c replaced.
func (t Tags) With(c Category, s TagSet) Tags {
	if s == nil {
		s = TagSet{}
	}
	switch c {
	case CategoryLevel:
		t.Level = s
	case CategoryCitizenship:
		t.Citizenship = s
	case CategoryType:
		t.Type = s
	case CategoryField:
		t.Field = s
	case CategoryFunding:
		t.Funding = s
	}
	return t
}

// Filled returns a copy where every nil set is replaced by an empty one.
func (t Tags) Filled() Tags {
	for _, c := range Categories {
		t = t.With(c, t.Get(c))
	}
	return t
}

func (t Tags) Equal(o Tags) bool {
	for _, c := range Categories {
		if !t.Get(c).Equal(o.Get(c)) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether no category holds a token.
func (t Tags) IsEmpty() bool {
	for _, c := range Categories {
		if t.Get(c).Len() > 0 {
			return false
		}
	}
	return true
}
