package analytics

import (
	"context"
	"math"
	"strings"

	"github.com/sells-group/pressure-cli/internal/model"
)

// Composite weights of the pressure index (sum = 1).
const (
	VolumeWeight     = 0.5
	GrowthWeight     = 0.3
	VolatilityWeight = 0.2
)

// Pressure tier thresholds, inclusive lower bounds, highest first.
var tierThresholds = []struct {
	min  float64
	tier model.PressureTier
}{
	{0.75, model.TierCritical},
	{0.55, model.TierHigh},
	{0.35, model.TierModerate},
}

// Pressure scores every district in the batch. Scores are relative to the
// batch: each feature is min-max scaled across all districts, so the raw
// aggregates of every district are computed before any index is finalized.
func (e *Engine) Pressure(ctx context.Context, series []Series) (*Output[model.PressureRow], error) {
	if len(series) == 0 {
		return nil, &MissingInputError{Stage: model.StagePressure, Input: "monthly fact rows"}
	}

	// Pass 1: raw per-district aggregates.
	rows := make([]*model.PressureRow, len(series))
	warnings := make([]*InsufficientDataWarning, len(series))
	err := forEach(ctx, len(series), e.workers, func(i int) error {
		row, warn := rawPressure(series[i])
		rows[i] = &row
		warnings[i] = warn
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Synchronization point: batch-wide extremes.
	volume, growth, volatility := newBounds(), newBounds(), newBounds()
	for _, r := range rows {
		volume.observe(r.TotalVolume)
		growth.observe(r.MonthlyGrowthRate)
		volatility.observe(r.Volatility)
	}

	// Pass 2: normalize, combine, tier.
	err = forEach(ctx, len(rows), e.workers, func(i int) error {
		r := rows[i]
		r.NormTotalVolume = volume.scale(r.TotalVolume)
		r.NormMonthlyGrowthRate = growth.scale(r.MonthlyGrowthRate)
		r.NormVolatility = volatility.scale(r.Volatility)
		r.PressureIndex = PressureIndex(r.NormTotalVolume, r.NormMonthlyGrowthRate, r.NormVolatility)
		r.PressureTier = ClassifyTier(r.PressureIndex)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return collect(model.StagePressure, rows, nil, warnings), nil
}

// rawPressure computes the unnormalized features of one series. A
// single-month series has no defined sample deviation; its volatility is 0.
func rawPressure(s Series) (model.PressureRow, *InsufficientDataWarning) {
	row := model.PressureRow{DistrictKey: s.Key}
	for _, v := range s.Totals {
		row.TotalVolume += v
	}

	var reasons []string
	sd, ok := sampleStdDev(s.Totals)
	if !ok {
		reasons = append(reasons, "single month, volatility set to 0")
	}
	row.Volatility = sd

	growth, skipped := meanGrowth(s.Totals)
	if len(s.Totals) < 2 {
		reasons = append(reasons, "fewer than 2 months, growth set to 0")
	} else if skipped > 0 {
		reasons = append(reasons, "growth skipped transitions from zero volume")
	}
	row.MonthlyGrowthRate = growth

	if len(reasons) == 0 {
		return row, nil
	}
	return row, &InsufficientDataWarning{Key: s.Key, Reason: strings.Join(reasons, "; ")}
}

// PressureIndex combines normalized features into a score clamped to [0,1].
func PressureIndex(normVolume, normGrowth, normVolatility float64) float64 {
	idx := VolumeWeight*normVolume + GrowthWeight*normGrowth + VolatilityWeight*normVolatility
	return math.Min(1, math.Max(0, idx))
}

// ClassifyTier bands a pressure index, testing the highest threshold first.
func ClassifyTier(index float64) model.PressureTier {
	for _, t := range tierThresholds {
		if index >= t.min {
			return t.tier
		}
	}
	return model.TierStable
}
