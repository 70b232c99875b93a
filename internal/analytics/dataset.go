package analytics

import (
	"slices"

	"github.com/sells-group/pressure-cli/internal/model"
)

// Series is the combined (all-category) monthly total of one district,
// ordered by month.
type Series struct {
	Key    model.DistrictKey
	Months []string
	Totals []float64
}

// categoryVolumes sums the total of every district in one category table.
func categoryVolumes(records []model.FactRecord) map[model.DistrictKey]int64 {
	out := make(map[model.DistrictKey]int64)
	for _, r := range records {
		out[r.DistrictKey] += r.Total()
	}
	return out
}

// MonthlySeries unions the given category tables and regroups them into one
// combined series per district. Districts and months are sorted.
func MonthlySeries(tables model.FactTables) []Series {
	byKey := make(map[model.DistrictKey]map[string]float64)
	for _, c := range tables.Present() {
		for _, r := range tables[c] {
			months, ok := byKey[r.DistrictKey]
			if !ok {
				months = make(map[string]float64)
				byKey[r.DistrictKey] = months
			}
			months[r.Month] += float64(r.Total())
		}
	}

	out := make([]Series, 0, len(byKey))
	for _, key := range sortedKeys(byKey) {
		months := byKey[key]
		s := Series{Key: key, Months: make([]string, 0, len(months))}
		for m := range months {
			s.Months = append(s.Months, m)
		}
		slices.Sort(s.Months)
		s.Totals = make([]float64, len(s.Months))
		for i, m := range s.Months {
			s.Totals[i] = months[m]
		}
		out = append(out, s)
	}
	return out
}

// AgeTotals sums the age bands of every district across all present tables.
func AgeTotals(tables model.FactTables) map[model.DistrictKey]model.AgeBands {
	out := make(map[model.DistrictKey]model.AgeBands)
	for _, c := range tables.Present() {
		for _, r := range tables[c] {
			out[r.DistrictKey] = out[r.DistrictKey].Add(r.AgeBands)
		}
	}
	return out
}

// sortedKeys returns the keys of m ordered by state, then district.
func sortedKeys[V any](m map[model.DistrictKey]V) []model.DistrictKey {
	keys := make([]model.DistrictKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, model.DistrictKey.Compare)
	return keys
}
