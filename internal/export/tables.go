// Package export writes the derived district tables to CSV or XLSX files and
// records a manifest of what a run produced.
package export

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/sells-group/pressure-cli/internal/model"
)

// Sheet is one derived table flattened to strings in output column order.
type Sheet struct {
	Name    string
	Header  []string
	Numeric []bool
	Rows    [][]string
}

var compositionColumns = []string{
	"state", "district", "enrollment_ratio", "biometric_ratio", "demographic_ratio",
	"dominant_type", "dominance_score", "dominance_strength", "operational_meaning",
}

var pressureColumns = []string{
	"state", "district", "pressure_index", "pressure_tier", "total_volume",
	"monthly_growth_rate", "volatility",
}

var typologyColumns = []string{
	"state", "district", "typology", "child_ratio", "adult_ratio", "pressure_tier",
}

var spikeColumns = []string{
	"state", "district", "spike_months", "spike_type", "volatility",
}

var recommendationColumns = []string{
	"state", "district", "classification", "pressure_tier", "recommended_action", "rationale",
}

// BuildSheets flattens every table that exists. Tables of failed stages are
// skipped, as is an empty spikes table.
func BuildSheets(tables *model.Tables) []Sheet {
	var out []Sheet

	if tables.Composition != nil {
		s := newSheet(model.TableComposition, compositionColumns, 2, 3, 4, 6)
		for _, r := range tables.Composition {
			s.Rows = append(s.Rows, []string{
				r.State, r.District,
				formatFloat(r.EnrollmentRatio), formatFloat(r.BiometricRatio), formatFloat(r.DemographicRatio),
				string(r.DominantType), formatFloat(r.DominanceScore),
				string(r.DominanceStrength), string(r.Meaning),
			})
		}
		out = append(out, s)
	}

	if tables.Pressure != nil {
		s := newSheet(model.TablePressure, pressureColumns, 2, 4, 5, 6)
		for _, r := range tables.Pressure {
			s.Rows = append(s.Rows, []string{
				r.State, r.District,
				formatFloat(r.PressureIndex), string(r.PressureTier), formatFloat(r.TotalVolume),
				formatFloat(r.MonthlyGrowthRate), formatFloat(r.Volatility),
			})
		}
		out = append(out, s)
	}

	if tables.Typology != nil {
		s := newSheet(model.TableTypology, typologyColumns, 3, 4)
		for _, r := range tables.Typology {
			s.Rows = append(s.Rows, []string{
				r.State, r.District, string(r.Typology),
				formatFloat(r.ChildRatio), formatFloat(r.AdultRatio), string(r.PressureTier),
			})
		}
		out = append(out, s)
	}

	if len(tables.Spikes) > 0 {
		s := newSheet(model.TableSpikes, spikeColumns, 4)
		for _, r := range tables.Spikes {
			s.Rows = append(s.Rows, []string{
				r.State, r.District, formatMonths(r.SpikeMonths),
				string(r.SpikeType), formatFloat(r.Volatility),
			})
		}
		out = append(out, s)
	}

	if tables.Recommendations != nil {
		s := newSheet(model.TableRecommendations, recommendationColumns)
		for _, r := range tables.Recommendations {
			s.Rows = append(s.Rows, []string{
				r.State, r.District, string(r.Typology), string(r.PressureTier),
				r.Action, r.Rationale,
			})
		}
		out = append(out, s)
	}

	return out
}

func newSheet(name string, header []string, numeric ...int) Sheet {
	s := Sheet{Name: name, Header: header, Numeric: make([]bool, len(header)), Rows: [][]string{}}
	for _, i := range numeric {
		s.Numeric[i] = true
	}
	return s
}

// Round3 rounds to three decimal places, the precision of every written
// float column.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func formatFloat(v float64) string {
	r := Round3(v)
	if r == 0 {
		r = 0 // normalize -0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// formatMonths encodes spike months as a JSON array of "YYYY-MM" strings.
func formatMonths(months []string) string {
	if months == nil {
		months = []string{}
	}
	b, _ := json.Marshal(months)
	return string(b)
}
