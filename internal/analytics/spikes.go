package analytics

import (
	"context"

	"github.com/sells-group/pressure-cli/internal/model"
)

// spikeSigmas is how many sample deviations above the mean a month must be.
const spikeSigmas = 2

// DetectSpikes returns the months of s whose total exceeds mean + 2 sample
// deviations, and the deviation used. Flat or single-month series have none.
func DetectSpikes(s Series) (months []string, sd float64) {
	sd, ok := sampleStdDev(s.Totals)
	if !ok || sd == 0 {
		return nil, sd
	}
	limit := mean(s.Totals) + spikeSigmas*sd
	for i, v := range s.Totals {
		if v > limit {
			months = append(months, s.Months[i])
		}
	}
	return months, sd
}

// ClassifySpikes labels a spike set: one month is irregular, more is seasonal.
func ClassifySpikes(months []string) model.SpikeType {
	if len(months) > 1 {
		return model.SpikeSeasonal
	}
	return model.SpikeIrregular
}

// Spikes scans every district series for outlier months. Districts without
// variance or without spikes produce no row.
func (e *Engine) Spikes(ctx context.Context, series []Series) (*Output[model.SpikeRow], error) {
	if len(series) == 0 {
		return nil, &MissingInputError{Stage: model.StageSpikes, Input: "monthly fact rows"}
	}

	rows := make([]*model.SpikeRow, len(series))
	warnings := make([]*InsufficientDataWarning, len(series))
	err := forEach(ctx, len(series), e.workers, func(i int) error {
		s := series[i]
		months, sd := DetectSpikes(s)
		switch {
		case len(s.Totals) < 2:
			warnings[i] = &InsufficientDataWarning{Key: s.Key, Reason: "single month, spike test skipped"}
			return nil
		case sd == 0:
			warnings[i] = &InsufficientDataWarning{Key: s.Key, Reason: "zero variance, spike test skipped"}
			return nil
		case len(months) == 0:
			return nil
		}
		rows[i] = &model.SpikeRow{
			DistrictKey: s.Key,
			SpikeMonths: months,
			SpikeType:   ClassifySpikes(months),
			Volatility:  sd,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return collect(model.StageSpikes, rows, nil, warnings), nil
}
