package analytics

import (
	"context"

	"github.com/sells-group/pressure-cli/internal/model"
)

// Interventions and their fixed rationales.
const (
	ActionSchoolDrives    = "Launch school-based biometric drives"
	ActionTemporaryCamps  = "Set up temporary camps"
	ActionBiometricStaff  = "Increase biometric operators"
	ActionMobileVans      = "Deploy mobile enrollment vans"
	RationaleSchoolSurge  = "High child ratio indicates school admission season pressure."
	RationaleAdultUpdates = "Adult dominance suggests high demand for updates."
	RationaleCritical     = "Critical stress levels require immediate capacity expansion."
	RationaleBiometric    = "Biometric heavy load requires specialized operators."
	RationaleMigrantChurn = "High adult correction load + volatility indicates migrant churn."
)

// Recommendation is an action and the rationale selected with it.
type Recommendation struct {
	Action    string
	Rationale string
}

// RecommendationInput is everything the decision table looks at for one district.
type RecommendationInput struct {
	Typology          model.Typology
	Tier              model.PressureTier
	DominanceStrength model.DominanceStrength
	DominantType      model.Category
}

type recommendationRule struct {
	name   string
	match  func(RecommendationInput) bool
	result Recommendation
}

// recommendationRules are evaluated top to bottom; the first match wins.
var recommendationRules = []recommendationRule{
	{
		name:   "school-linked surge",
		match:  func(in RecommendationInput) bool { return in.Typology == model.TypologySchoolSurge },
		result: Recommendation{ActionSchoolDrives, RationaleSchoolSurge},
	},
	{
		name:   "correctional overload",
		match:  func(in RecommendationInput) bool { return in.Typology == model.TypologyCorrectionalOverload },
		result: Recommendation{ActionTemporaryCamps, RationaleAdultUpdates},
	},
	{
		name:   "critical stress",
		match:  func(in RecommendationInput) bool { return in.Tier == model.TierCritical },
		result: Recommendation{ActionTemporaryCamps, RationaleCritical},
	},
	{
		name: "strong biometric dominance",
		match: func(in RecommendationInput) bool {
			return in.DominanceStrength == model.StrengthStrongDominant && in.DominantType == model.CategoryBiometric
		},
		result: Recommendation{ActionBiometricStaff, RationaleBiometric},
	},
}

// defaultRecommendation applies when no rule matches.
var defaultRecommendation = Recommendation{ActionMobileVans, RationaleMigrantChurn}

// Recommend applies the decision table to one district.
func Recommend(in RecommendationInput) Recommendation {
	for _, r := range recommendationRules {
		if r.match(in) {
			return r.result
		}
	}
	return defaultRecommendation
}

// Recommendations assigns an intervention to every district with both a
// typology row and a composition row.
func (e *Engine) Recommendations(
	ctx context.Context,
	typology []model.TypologyRow,
	composition []model.CompositionRow,
) (*Output[model.RecommendationRow], error) {
	switch {
	case typology == nil:
		return nil, &MissingInputError{Stage: model.StageRecommendations, Input: model.TableTypology + " table"}
	case composition == nil:
		return nil, &MissingInputError{Stage: model.StageRecommendations, Input: model.TableComposition + " table"}
	}

	compositionByKey := make(map[model.DistrictKey]model.CompositionRow, len(composition))
	for _, c := range composition {
		compositionByKey[c.DistrictKey] = c
	}

	var joined []model.TypologyRow
	for _, t := range typology {
		if _, ok := compositionByKey[t.DistrictKey]; ok {
			joined = append(joined, t)
		}
	}

	rows := make([]*model.RecommendationRow, len(joined))
	err := forEach(ctx, len(joined), e.workers, func(i int) error {
		t := joined[i]
		c := compositionByKey[t.DistrictKey]
		rec := Recommend(RecommendationInput{
			Typology:          t.Typology,
			Tier:              t.PressureTier,
			DominanceStrength: c.DominanceStrength,
			DominantType:      c.DominantType,
		})
		rows[i] = &model.RecommendationRow{
			DistrictKey:       t.DistrictKey,
			Typology:          t.Typology,
			PressureTier:      t.PressureTier,
			DominanceStrength: c.DominanceStrength,
			DominantType:      c.DominantType,
			Action:            rec.Action,
			Rationale:         rec.Rationale,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return collect(model.StageRecommendations, rows, nil, nil), nil
}
