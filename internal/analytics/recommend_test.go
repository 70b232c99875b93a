package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pressure-cli/internal/model"
)

func TestRecommend_DecisionTable(t *testing.T) {
	tests := []struct {
		name string
		in   RecommendationInput
		want Recommendation
	}{
		{
			name: "school surge wins over critical tier",
			in:   RecommendationInput{Typology: model.TypologySchoolSurge, Tier: model.TierCritical, DominanceStrength: model.StrengthStrongDominant, DominantType: model.CategoryBiometric},
			want: Recommendation{ActionSchoolDrives, RationaleSchoolSurge},
		},
		{
			name: "correctional overload",
			in:   RecommendationInput{Typology: model.TypologyCorrectionalOverload, Tier: model.TierCritical},
			want: Recommendation{ActionTemporaryCamps, RationaleAdultUpdates},
		},
		{
			name: "critical tier without surge typology",
			in:   RecommendationInput{Typology: model.TypologyMigrationImpact, Tier: model.TierCritical, DominanceStrength: model.StrengthStrongDominant, DominantType: model.CategoryBiometric},
			want: Recommendation{ActionTemporaryCamps, RationaleCritical},
		},
		{
			name: "strong biometric dominance",
			in:   RecommendationInput{Typology: model.TypologyMigrationImpact, Tier: model.TierHigh, DominanceStrength: model.StrengthStrongDominant, DominantType: model.CategoryBiometric},
			want: Recommendation{ActionBiometricStaff, RationaleBiometric},
		},
		{
			name: "strong enrollment dominance falls through",
			in:   RecommendationInput{Typology: model.TypologyPopulationExpansion, Tier: model.TierHigh, DominanceStrength: model.StrengthStrongDominant, DominantType: model.CategoryEnrollment},
			want: Recommendation{ActionMobileVans, RationaleMigrantChurn},
		},
		{
			name: "mixed biometric falls through",
			in:   RecommendationInput{Typology: model.TypologyPopulationExpansion, Tier: model.TierStable, DominanceStrength: model.StrengthMixedDemand, DominantType: model.CategoryBiometric},
			want: Recommendation{ActionMobileVans, RationaleMigrantChurn},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Recommend(tt.in))
		})
	}
}

func TestRecommend_Deterministic(t *testing.T) {
	typologies := []model.Typology{model.TypologySchoolSurge, model.TypologyCorrectionalOverload, model.TypologyMigrationImpact, model.TypologyPopulationExpansion}
	tiers := []model.PressureTier{model.TierCritical, model.TierHigh, model.TierModerate, model.TierStable}
	strengths := []model.DominanceStrength{model.StrengthStrongDominant, model.StrengthMixedDemand, model.StrengthBalanced}

	for _, ty := range typologies {
		for _, tier := range tiers {
			for _, s := range strengths {
				for _, c := range model.Categories {
					in := RecommendationInput{Typology: ty, Tier: tier, DominanceStrength: s, DominantType: c}
					first := Recommend(in)
					assert.Equal(t, first, Recommend(in))
					assert.NotEmpty(t, first.Action)
					assert.NotEmpty(t, first.Rationale)
				}
			}
		}
	}
}

func TestRecommendations_Stage(t *testing.T) {
	a, b, orphan := key("UP", "A"), key("UP", "B"), key("UP", "Orphan")
	typology := []model.TypologyRow{
		{DistrictKey: a, Typology: model.TypologyPopulationExpansion, PressureTier: model.TierModerate},
		{DistrictKey: b, Typology: model.TypologyCorrectionalOverload, PressureTier: model.TierHigh},
		{DistrictKey: orphan, Typology: model.TypologySchoolSurge, PressureTier: model.TierHigh},
	}
	composition := []model.CompositionRow{
		{DistrictKey: a, DominanceStrength: model.StrengthStrongDominant, DominantType: model.CategoryBiometric},
		{DistrictKey: b, DominanceStrength: model.StrengthBalanced, DominantType: model.CategoryEnrollment},
	}

	out, err := NewEngine(2).Recommendations(context.Background(), typology, composition)
	require.NoError(t, err)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, ActionBiometricStaff, out.Rows[0].Action)
	assert.Equal(t, model.TypologyPopulationExpansion, out.Rows[0].Typology)
	assert.Equal(t, ActionTemporaryCamps, out.Rows[1].Action)
	assert.Equal(t, RationaleAdultUpdates, out.Rows[1].Rationale)
}

func TestRecommendations_MissingTypology(t *testing.T) {
	_, err := NewEngine(1).Recommendations(context.Background(), nil, []model.CompositionRow{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "typology table")
}
