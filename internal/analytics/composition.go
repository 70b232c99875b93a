package analytics

import (
	"context"
	"math"

	"github.com/sells-group/pressure-cli/internal/model"
)

// dominanceEpsilon is the tolerance within which a ratio counts as the maximum.
const dominanceEpsilon = 1e-9

// Dominance strength thresholds, inclusive lower bounds.
const (
	strongDominantThreshold = 0.6
	mixedDemandThreshold    = 0.4
)

// Composition computes the service-mix profile of every district present in
// all three category tables. Districts with zero combined volume are excluded.
func (e *Engine) Composition(ctx context.Context, tables model.FactTables) (*Output[model.CompositionRow], error) {
	for _, c := range model.Categories {
		if !tables.Has(c) {
			return nil, &MissingInputError{Stage: model.StageComposition, Input: c.Key() + " table"}
		}
	}

	enrollment := categoryVolumes(tables[model.CategoryEnrollment])
	biometric := categoryVolumes(tables[model.CategoryBiometric])
	demographic := categoryVolumes(tables[model.CategoryDemographic])

	// Inner join: a district must appear in every category.
	var keys []model.DistrictKey
	for _, k := range sortedKeys(enrollment) {
		_, inBio := biometric[k]
		_, inDemo := demographic[k]
		if inBio && inDemo {
			keys = append(keys, k)
		}
	}

	rows := make([]*model.CompositionRow, len(keys))
	excluded := make([]*ZeroDenominatorError, len(keys))
	err := forEach(ctx, len(keys), e.workers, func(i int) error {
		k := keys[i]
		row, ok := composeDistrict(k, enrollment[k], biometric[k], demographic[k])
		if !ok {
			excluded[i] = &ZeroDenominatorError{Key: k, Field: "total_volume"}
			return nil
		}
		rows[i] = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return collect(model.StageComposition, rows, excluded, nil), nil
}

// composeDistrict derives ratios and dominance for one district. ok is false
// when the combined volume is zero.
func composeDistrict(k model.DistrictKey, enrollment, biometric, demographic int64) (model.CompositionRow, bool) {
	total := enrollment + biometric + demographic
	if total == 0 {
		return model.CompositionRow{}, false
	}
	row := model.CompositionRow{
		DistrictKey:       k,
		EnrollmentVolume:  enrollment,
		BiometricVolume:   biometric,
		DemographicVolume: demographic,
		TotalVolume:       total,
		EnrollmentRatio:   float64(enrollment) / float64(total),
		BiometricRatio:    float64(biometric) / float64(total),
		DemographicRatio:  float64(demographic) / float64(total),
	}
	row.DominanceScore, row.DominantType = dominantType(row.EnrollmentRatio, row.BiometricRatio, row.DemographicRatio)
	row.DominanceStrength = ClassifyStrength(row.DominanceScore)
	row.Meaning = OperationalMeaning(row.DominanceStrength, row.DominantType)
	return row, true
}

// dominantType returns the maximum ratio and the first category, in
// Enrollment > Biometric > Demographic order, within dominanceEpsilon of it.
func dominantType(enrollment, biometric, demographic float64) (float64, model.Category) {
	score := math.Max(enrollment, math.Max(biometric, demographic))
	ratios := []float64{enrollment, biometric, demographic}
	for i, c := range model.Categories {
		if score-ratios[i] <= dominanceEpsilon {
			return score, c
		}
	}
	return score, model.CategoryDemographic
}

// ClassifyStrength tiers a dominance score.
func ClassifyStrength(score float64) model.DominanceStrength {
	switch {
	case score >= strongDominantThreshold:
		return model.StrengthStrongDominant
	case score >= mixedDemandThreshold:
		return model.StrengthMixedDemand
	default:
		return model.StrengthBalanced
	}
}

// OperationalMeaning reads a strongly dominant enrollment or biometric mix as
// population entry or maintenance burden; anything else is general load.
func OperationalMeaning(strength model.DominanceStrength, dominant model.Category) model.OperationalMeaning {
	if strength == model.StrengthStrongDominant {
		switch dominant {
		case model.CategoryEnrollment:
			return model.MeaningNewPopulationEntry
		case model.CategoryBiometric:
			return model.MeaningMaintenanceBurden
		}
	}
	return model.MeaningGeneralServiceLoad
}
