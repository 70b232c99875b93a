package analytics

import (
	"fmt"

	"github.com/sells-group/pressure-cli/internal/model"
)

func key(state, district string) model.DistrictKey {
	return model.DistrictKey{State: state, District: district}
}

// fact builds a record whose whole volume sits in the adult band unless
// bands are given explicitly.
func fact(state, district, month string, total int64) model.FactRecord {
	return model.FactRecord{
		DistrictKey: key(state, district),
		Month:       month,
		AgeBands:    model.AgeBands{Age18Plus: total},
	}
}

func months(n int) []string {
	out := make([]string, n)
	for i := range n {
		out[i] = fmt.Sprintf("2024-%02d", i+1)
	}
	return out
}

func series(k model.DistrictKey, totals ...float64) Series {
	return Series{Key: k, Months: months(len(totals)), Totals: totals}
}

// flatTables returns three single-month tables with the given per-category volumes.
func flatTables(k model.DistrictKey, enrollment, biometric, demographic int64) model.FactTables {
	return model.FactTables{
		model.CategoryEnrollment:  {fact(k.State, k.District, "2024-01", enrollment)},
		model.CategoryBiometric:   {fact(k.State, k.District, "2024-01", biometric)},
		model.CategoryDemographic: {fact(k.State, k.District, "2024-01", demographic)},
	}
}
