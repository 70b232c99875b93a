package analytics

import (
	"context"

	"github.com/sells-group/pressure-cli/internal/model"
)

// Typology thresholds. migrationVolatilityThreshold is in people, compared
// against the raw (unnormalized) volatility.
const (
	childSurgeThreshold          = 0.6
	adultOverloadThreshold       = 0.7
	migrationVolatilityThreshold = 100
)

// TypologyInput is everything the typology rules look at for one district.
type TypologyInput struct {
	ChildRatio   float64
	AdultRatio   float64
	Tier         model.PressureTier
	DominantType model.Category
	Volatility   float64
}

type typologyRule struct {
	name   string
	match  func(TypologyInput) bool
	result model.Typology
}

// typologyRules are evaluated top to bottom; the first match wins. More than
// one rule may hold for a district.
var typologyRules = []typologyRule{
	{
		name:   "child surge under high stress",
		match:  func(in TypologyInput) bool { return in.ChildRatio > childSurgeThreshold && highStress(in.Tier) },
		result: model.TypologySchoolSurge,
	},
	{
		name:   "adult overload under high stress",
		match:  func(in TypologyInput) bool { return in.AdultRatio > adultOverloadThreshold && highStress(in.Tier) },
		result: model.TypologyCorrectionalOverload,
	},
	{
		name: "volatile biometric demand",
		match: func(in TypologyInput) bool {
			return in.DominantType == model.CategoryBiometric && in.Volatility > migrationVolatilityThreshold
		},
		result: model.TypologyMigrationImpact,
	},
}

func highStress(t model.PressureTier) bool {
	return t == model.TierHigh || t == model.TierCritical
}

// ClassifyTypology applies the typology rules in order, defaulting to
// Population Expansion Zone.
func ClassifyTypology(in TypologyInput) model.Typology {
	for _, r := range typologyRules {
		if r.match(in) {
			return r.result
		}
	}
	return model.TypologyPopulationExpansion
}

// Typology classifies every district that has age totals, a pressure row and
// a composition row. Districts with a zero population total are excluded.
func (e *Engine) Typology(
	ctx context.Context,
	ages map[model.DistrictKey]model.AgeBands,
	pressure []model.PressureRow,
	composition []model.CompositionRow,
) (*Output[model.TypologyRow], error) {
	switch {
	case len(ages) == 0:
		return nil, &MissingInputError{Stage: model.StageTypology, Input: "age totals"}
	case pressure == nil:
		return nil, &MissingInputError{Stage: model.StageTypology, Input: model.TablePressure + " table"}
	case composition == nil:
		return nil, &MissingInputError{Stage: model.StageTypology, Input: model.TableComposition + " table"}
	}

	pressureByKey := make(map[model.DistrictKey]model.PressureRow, len(pressure))
	for _, p := range pressure {
		pressureByKey[p.DistrictKey] = p
	}
	compositionByKey := make(map[model.DistrictKey]model.CompositionRow, len(composition))
	for _, c := range composition {
		compositionByKey[c.DistrictKey] = c
	}

	var keys []model.DistrictKey
	for _, k := range sortedKeys(ages) {
		_, inPressure := pressureByKey[k]
		_, inComposition := compositionByKey[k]
		if inPressure && inComposition {
			keys = append(keys, k)
		}
	}

	rows := make([]*model.TypologyRow, len(keys))
	excluded := make([]*ZeroDenominatorError, len(keys))
	err := forEach(ctx, len(keys), e.workers, func(i int) error {
		k := keys[i]
		bands := ages[k]
		total := bands.Total()
		if total == 0 {
			excluded[i] = &ZeroDenominatorError{Key: k, Field: "total"}
			return nil
		}
		p := pressureByKey[k]
		row := model.TypologyRow{
			DistrictKey:  k,
			AgeBands:     bands,
			Total:        total,
			ChildRatio:   float64(bands.Age0To5+bands.Age5To17) / float64(total),
			AdultRatio:   float64(bands.Age18Plus) / float64(total),
			PressureTier: p.PressureTier,
			Volatility:   p.Volatility,
			DominantType: compositionByKey[k].DominantType,
		}
		row.Typology = ClassifyTypology(TypologyInput{
			ChildRatio:   row.ChildRatio,
			AdultRatio:   row.AdultRatio,
			Tier:         row.PressureTier,
			DominantType: row.DominantType,
			Volatility:   row.Volatility,
		})
		rows[i] = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return collect(model.StageTypology, rows, excluded, nil), nil
}
