package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"enrollment", CategoryEnrollment, true},
		{" Biometric ", CategoryBiometric, true},
		{"DEMOGRAPHIC", CategoryDemographic, true},
		{"census", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseCategory(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, "biometric", CategoryBiometric.Key())
}

func TestDistrictKey_Less(t *testing.T) {
	a := DistrictKey{State: "Bihar", District: "Patna"}
	b := DistrictKey{State: "Bihar", District: "Purnia"}
	c := DistrictKey{State: "Assam", District: "Zunheboto"}

	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.True(t, c.Less(a))
	assert.False(t, a.Less(a))
	assert.Equal(t, "Bihar/Patna", a.String())
}

func TestAgeBands(t *testing.T) {
	a := AgeBands{Age0To5: 1, Age5To17: 2, Age18Plus: 3}
	assert.Equal(t, int64(6), a.Total())
	assert.Equal(t, AgeBands{Age0To5: 2, Age5To17: 4, Age18Plus: 6}, a.Add(a))
}

func TestFactTables_Present(t *testing.T) {
	tables := FactTables{
		CategoryDemographic: {{Month: "2024-01"}},
		CategoryEnrollment:  {{Month: "2024-01"}},
		CategoryBiometric:   {},
	}
	assert.Equal(t, []Category{CategoryEnrollment, CategoryDemographic}, tables.Present())
	assert.False(t, tables.Has(CategoryBiometric))
}

func TestDistrictKey_Compare(t *testing.T) {
	a := DistrictKey{State: "A", District: "x"}
	b := DistrictKey{State: "B", District: "a"}
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}
