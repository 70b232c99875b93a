// Package report renders the human-readable run summary: stage outcomes,
// tier and typology distributions and the most pressured districts.
package report

import (
	"cmp"
	"io"
	"slices"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/pressure-cli/internal/model"
)

// TopN is the number of districts listed by pressure index.
const TopN = 5

// Count is one bucket of a distribution.
type Count struct {
	Label string
	N     int
}

// Summary is the aggregated view of a run.
type Summary struct {
	RunID      string
	Status     model.RunStatus
	Stages     []model.StageResult
	Districts  int
	Tiers      []Count
	Typologies []Count
	Top        []model.PressureRow
}

var tierOrder = []model.PressureTier{model.TierCritical, model.TierHigh, model.TierModerate, model.TierStable}

var typologyOrder = []model.Typology{
	model.TypologySchoolSurge,
	model.TypologyCorrectionalOverload,
	model.TypologyMigrationImpact,
	model.TypologyPopulationExpansion,
}

// Build aggregates a run result. Distributions over a missing table are empty.
func Build(runID string, res *model.Result) *Summary {
	s := &Summary{
		RunID:     runID,
		Status:    res.Status(),
		Stages:    res.Stages,
		Districts: len(res.Tables.Profiles()),
	}

	if res.Tables.Pressure != nil {
		tiers := make(map[model.PressureTier]int)
		for _, p := range res.Tables.Pressure {
			tiers[p.PressureTier]++
		}
		for _, t := range tierOrder {
			s.Tiers = append(s.Tiers, Count{Label: string(t), N: tiers[t]})
		}

		s.Top = slices.Clone(res.Tables.Pressure)
		slices.SortStableFunc(s.Top, func(a, b model.PressureRow) int {
			if c := cmp.Compare(b.PressureIndex, a.PressureIndex); c != 0 {
				return c
			}
			return a.DistrictKey.Compare(b.DistrictKey)
		})
		if len(s.Top) > TopN {
			s.Top = s.Top[:TopN]
		}
	}

	if res.Tables.Typology != nil {
		typologies := make(map[model.Typology]int)
		for _, t := range res.Tables.Typology {
			typologies[t.Typology]++
		}
		for _, t := range typologyOrder {
			s.Typologies = append(s.Typologies, Count{Label: string(t), N: typologies[t]})
		}
	}
	return s
}

// Write renders the summary as aligned text.
func (s *Summary) Write(out io.Writer) error {
	p := message.NewPrinter(language.English)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if s.RunID != "" {
		p.Fprintf(w, "Run %s: %s\n", s.RunID, s.Status)
	} else {
		p.Fprintf(w, "Run: %s\n", s.Status)
	}
	p.Fprintf(w, "Districts: %d\n\n", s.Districts)

	p.Fprintln(w, "STAGE\tSTATUS\tROWS\tEXCLUDED\tWARNINGS\tDURATION")
	for _, st := range s.Stages {
		p.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%dms\n", st.Name, st.Status, st.Rows, st.Excluded, st.Warnings, st.Duration)
	}
	for _, st := range s.Stages {
		if st.Error != "" {
			p.Fprintf(w, "  %s: %s\n", st.Name, st.Error)
		}
	}

	if len(s.Tiers) > 0 {
		p.Fprintln(w, "\nPRESSURE TIER\tDISTRICTS")
		for _, c := range s.Tiers {
			p.Fprintf(w, "%s\t%d\n", c.Label, c.N)
		}
	}

	if len(s.Typologies) > 0 {
		p.Fprintln(w, "\nTYPOLOGY\tDISTRICTS")
		for _, c := range s.Typologies {
			p.Fprintf(w, "%s\t%d\n", c.Label, c.N)
		}
	}

	if len(s.Top) > 0 {
		p.Fprintln(w, "\nRANK\tSTATE\tDISTRICT\tINDEX\tTIER\tVOLUME")
		for i, r := range s.Top {
			p.Fprintf(w, "%d\t%s\t%s\t%.3f\t%s\t%.0f\n", i+1, r.State, r.District, r.PressureIndex, r.PressureTier, r.TotalVolume)
		}
	}

	return w.Flush()
}
