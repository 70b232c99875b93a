package model

// DominanceStrength tiers the dominance score of a district.
type DominanceStrength string

const (
	StrengthStrongDominant DominanceStrength = "Strong Dominant"
	StrengthMixedDemand    DominanceStrength = "Mixed Demand"
	StrengthBalanced       DominanceStrength = "Balanced Demand"
)

// OperationalMeaning is the plain-language reading of a composition profile.
type OperationalMeaning string

const (
	MeaningNewPopulationEntry OperationalMeaning = "New Population Entry"
	MeaningMaintenanceBurden  OperationalMeaning = "Maintenance Burden"
	MeaningGeneralServiceLoad OperationalMeaning = "General Service Load"
)

// PressureTier bands the composite pressure index.
type PressureTier string

const (
	TierCritical PressureTier = "Critical Infrastructure Stress"
	TierHigh     PressureTier = "High Stress"
	TierModerate PressureTier = "Moderate Stress"
	TierStable   PressureTier = "Stable"
)

// Rank orders tiers by stress, Stable = 0 through Critical = 3.
func (t PressureTier) Rank() int {
	switch t {
	case TierCritical:
		return 3
	case TierHigh:
		return 2
	case TierModerate:
		return 1
	}
	return 0
}

// Typology is the operational demand classification of a district.
type Typology string

const (
	TypologySchoolSurge          Typology = "School-linked Surge Zone"
	TypologyCorrectionalOverload Typology = "Correctional Overload Zone"
	TypologyMigrationImpact      Typology = "Migration Impact Zone"
	TypologyPopulationExpansion  Typology = "Population Expansion Zone"
)

// SpikeType labels the pattern of outlier months in a district series.
type SpikeType string

const (
	SpikeIrregular SpikeType = "Irregular/Migration"
	SpikeSeasonal  SpikeType = "Seasonal Pattern"
)

// CompositionRow is the service-mix profile of one district.
type CompositionRow struct {
	DistrictKey
	EnrollmentVolume  int64              `json:"enrollment_vol"`
	BiometricVolume   int64              `json:"biometric_vol"`
	DemographicVolume int64              `json:"demographic_vol"`
	TotalVolume       int64              `json:"total_volume"`
	EnrollmentRatio   float64            `json:"enrollment_ratio"`
	BiometricRatio    float64            `json:"biometric_ratio"`
	DemographicRatio  float64            `json:"demographic_ratio"`
	DominanceScore    float64            `json:"dominance_score"`
	DominantType      Category           `json:"dominant_type"`
	DominanceStrength DominanceStrength  `json:"dominance_strength"`
	Meaning           OperationalMeaning `json:"operational_meaning"`
}

// PressureRow is the infrastructure pressure profile of one district.
type PressureRow struct {
	DistrictKey
	TotalVolume           float64      `json:"total_volume"`
	MonthlyGrowthRate     float64      `json:"monthly_growth_rate"`
	Volatility            float64      `json:"volatility"`
	NormTotalVolume       float64      `json:"norm_total_volume"`
	NormMonthlyGrowthRate float64      `json:"norm_monthly_growth_rate"`
	NormVolatility        float64      `json:"norm_volatility"`
	PressureIndex         float64      `json:"pressure_index"`
	PressureTier          PressureTier `json:"pressure_tier"`
}

// TypologyRow is the demand typology of one district.
type TypologyRow struct {
	DistrictKey
	AgeBands
	Total        int64        `json:"total"`
	ChildRatio   float64      `json:"child_ratio"`
	AdultRatio   float64      `json:"adult_ratio"`
	PressureTier PressureTier `json:"pressure_tier"`
	Volatility   float64      `json:"volatility"`
	DominantType Category     `json:"dominant_type"`
	Typology     Typology     `json:"typology"`
}

// SpikeRow lists the outlier months of one district.
type SpikeRow struct {
	DistrictKey
	SpikeMonths []string  `json:"spike_months"`
	SpikeType   SpikeType `json:"spike_type"`
	Volatility  float64   `json:"volatility"`
}

// RecommendationRow is the intervention chosen for one district.
type RecommendationRow struct {
	DistrictKey
	Typology          Typology          `json:"classification"`
	PressureTier      PressureTier      `json:"pressure_tier"`
	DominanceStrength DominanceStrength `json:"dominance_strength"`
	DominantType      Category          `json:"dominant_type"`
	Action            string            `json:"recommended_action"`
	Rationale         string            `json:"rationale"`
}

// Table names used for output files, storage and the API.
const (
	TableComposition     = "composition"
	TablePressure        = "pressure"
	TableTypology        = "typology"
	TableSpikes          = "spikes"
	TableRecommendations = "recommendations"
)

// TableNames lists the derived tables in stage order.
var TableNames = []string{TableComposition, TablePressure, TableTypology, TableSpikes, TableRecommendations}

// Tables holds the five derived tables of a run. A nil slice means the
// producing stage failed; an empty non-nil slice means it produced no rows.
type Tables struct {
	Composition     []CompositionRow    `json:"composition"`
	Pressure        []PressureRow       `json:"pressure"`
	Typology        []TypologyRow       `json:"typology"`
	Spikes          []SpikeRow          `json:"spikes"`
	Recommendations []RecommendationRow `json:"recommendations"`
}

// RowCount returns the number of rows in the named table and whether it exists.
func (t *Tables) RowCount(name string) (int, bool) {
	switch name {
	case TableComposition:
		return len(t.Composition), t.Composition != nil
	case TablePressure:
		return len(t.Pressure), t.Pressure != nil
	case TableTypology:
		return len(t.Typology), t.Typology != nil
	case TableSpikes:
		return len(t.Spikes), t.Spikes != nil
	case TableRecommendations:
		return len(t.Recommendations), t.Recommendations != nil
	}
	return 0, false
}

// Table returns the rows of the named table as an untyped slice for
// serialization, and whether the table exists.
func (t *Tables) Table(name string) (any, bool) {
	switch name {
	case TableComposition:
		return t.Composition, t.Composition != nil
	case TablePressure:
		return t.Pressure, t.Pressure != nil
	case TableTypology:
		return t.Typology, t.Typology != nil
	case TableSpikes:
		return t.Spikes, t.Spikes != nil
	case TableRecommendations:
		return t.Recommendations, t.Recommendations != nil
	}
	return nil, false
}
