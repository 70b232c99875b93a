package pipeline

import (
	"github.com/sells-group/pressure-cli/internal/model"
)

var testLocations = map[model.Category]string{
	model.CategoryEnrollment:  "enrollment.csv",
	model.CategoryBiometric:   "biometric.csv",
	model.CategoryDemographic: "demographic.csv",
}

func record(district, month string, child, adult int64) model.FactRecord {
	return model.FactRecord{
		DistrictKey: model.DistrictKey{State: "Kerala", District: district},
		Month:       month,
		AgeBands:    model.AgeBands{Age5To17: child, Age18Plus: adult},
	}
}

// testFacts is two districts over three months in every category. Three
// points can never exceed mean + 2 sample stdev, so no district spikes.
func testFacts() model.FactTables {
	table := func(scale int64) []model.FactRecord {
		return []model.FactRecord{
			record("Ernakulam", "2024-01", 80*scale, 20*scale),
			record("Ernakulam", "2024-02", 90*scale, 20*scale),
			record("Ernakulam", "2024-03", 160*scale, 30*scale),
			record("Idukki", "2024-01", 10*scale, 40*scale),
			record("Idukki", "2024-02", 10*scale, 45*scale),
			record("Idukki", "2024-03", 12*scale, 41*scale),
		}
	}
	return model.FactTables{
		model.CategoryEnrollment:  table(3),
		model.CategoryBiometric:   table(2),
		model.CategoryDemographic: table(1),
	}
}

func loadedInputs() model.RunInputs {
	return model.RunInputs{Rows: map[model.Category]int{
		model.CategoryEnrollment:  6,
		model.CategoryBiometric:   6,
		model.CategoryDemographic: 6,
	}}
}
