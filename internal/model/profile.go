package model

// DistrictProfile is the one-row-per-district view joining every derived
// table of a run. Fields from a table the district is absent from stay zero.
type DistrictProfile struct {
	DistrictKey
	DominantType      Category          `json:"dominant_type,omitempty"`
	DominanceStrength DominanceStrength `json:"dominance_strength,omitempty"`
	PressureIndex     float64           `json:"pressure_index"`
	PressureTier      PressureTier      `json:"pressure_tier,omitempty"`
	Typology          Typology          `json:"typology,omitempty"`
	SpikeType         SpikeType         `json:"spike_type,omitempty"`
	SpikeMonths       int               `json:"spike_months"`
	Action            string            `json:"recommended_action,omitempty"`
}

// Profiles joins the tables on (state, district) and returns one profile per
// district seen in any table, ordered by key.
func (t *Tables) Profiles() []DistrictProfile {
	byKey := make(map[DistrictKey]*DistrictProfile)
	get := func(k DistrictKey) *DistrictProfile {
		p, ok := byKey[k]
		if !ok {
			p = &DistrictProfile{DistrictKey: k}
			byKey[k] = p
		}
		return p
	}

	for _, r := range t.Composition {
		p := get(r.DistrictKey)
		p.DominantType = r.DominantType
		p.DominanceStrength = r.DominanceStrength
	}
	for _, r := range t.Pressure {
		p := get(r.DistrictKey)
		p.PressureIndex = r.PressureIndex
		p.PressureTier = r.PressureTier
	}
	for _, r := range t.Typology {
		get(r.DistrictKey).Typology = r.Typology
	}
	for _, r := range t.Spikes {
		p := get(r.DistrictKey)
		p.SpikeType = r.SpikeType
		p.SpikeMonths = len(r.SpikeMonths)
	}
	for _, r := range t.Recommendations {
		get(r.DistrictKey).Action = r.Action
	}

	out := make([]DistrictProfile, 0, len(byKey))
	for _, p := range byKey {
		out = append(out, *p)
	}
	sortByKey(out, func(p DistrictProfile) DistrictKey { return p.DistrictKey })
	return out
}
