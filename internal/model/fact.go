package model

import (
	"slices"
	"strings"
)

// Category identifies one of the three identity-service transaction streams.
type Category string

const (
	CategoryEnrollment  Category = "Enrollment"
	CategoryBiometric   Category = "Biometric"
	CategoryDemographic Category = "Demographic"
)

// Categories lists the service categories in dominance priority order.
var Categories = []Category{CategoryEnrollment, CategoryBiometric, CategoryDemographic}

// Key returns the lower-case form used in flags, config keys and file names.
func (c Category) Key() string {
	return strings.ToLower(string(c))
}

// ParseCategory resolves a category case-insensitively.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enrollment":
		return CategoryEnrollment, true
	case "biometric":
		return CategoryBiometric, true
	case "demographic":
		return CategoryDemographic, true
	}
	return "", false
}

// DistrictKey is the natural join key of every derived table. State and
// district arrive canonicalized and are compared verbatim.
type DistrictKey struct {
	State    string `json:"state"`
	District string `json:"district"`
}

// Less orders keys by state, then district.
func (k DistrictKey) Less(o DistrictKey) bool {
	if k.State != o.State {
		return k.State < o.State
	}
	return k.District < o.District
}

// Compare orders keys like Less, returning -1, 0 or 1.
func (k DistrictKey) Compare(o DistrictKey) int {
	switch {
	case k.Less(o):
		return -1
	case o.Less(k):
		return 1
	}
	return 0
}

func sortByKey[T any](rows []T, key func(T) DistrictKey) {
	slices.SortFunc(rows, func(a, b T) int { return key(a).Compare(key(b)) })
}

func (k DistrictKey) String() string {
	return k.State + "/" + k.District
}

// AgeBands holds counts for the three age bands of a fact record.
type AgeBands struct {
	Age0To5   int64 `json:"age_0_5"`
	Age5To17  int64 `json:"age_5_17"`
	Age18Plus int64 `json:"age_18_plus"`
}

// Total is the reconstructed total; source totals are never trusted.
func (a AgeBands) Total() int64 {
	return a.Age0To5 + a.Age5To17 + a.Age18Plus
}

// Add returns the band-wise sum of a and b.
func (a AgeBands) Add(b AgeBands) AgeBands {
	return AgeBands{
		Age0To5:   a.Age0To5 + b.Age0To5,
		Age5To17:  a.Age5To17 + b.Age5To17,
		Age18Plus: a.Age18Plus + b.Age18Plus,
	}
}

// FactRecord is one district-month row of a normalized fact table.
type FactRecord struct {
	DistrictKey
	Month string `json:"month"` // "YYYY-MM"
	AgeBands
}

// FactTables holds the normalized fact table of each category. A category
// whose table could not be loaded is absent from the map.
type FactTables map[Category][]FactRecord

// Has reports whether the table for c is present and non-empty.
func (t FactTables) Has(c Category) bool {
	return len(t[c]) > 0
}

// Present returns the categories with a loaded table, in priority order.
func (t FactTables) Present() []Category {
	var out []Category
	for _, c := range Categories {
		if t.Has(c) {
			out = append(out, c)
		}
	}
	return out
}
