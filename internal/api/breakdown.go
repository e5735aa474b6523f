package api

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/23atomist/electrion-PA/internal/model"
)

// Parties compared by the breakdown.
const (
	PartyDem = "DEM"
	PartyRep = "REP"
)

// TopPrecincts caps the vote-sorted breakdown.
const TopPrecincts = 150

// Sort orders accepted by Breakdown.
const (
	SortVotes    = "votes"
	SortPrecinct = "precinct"
)

// PrecinctBreakdown compares DEM and REP votes and registrations in one
// precinct. Registration counts are zero when the precinct has no
// registration data for the year.
type PrecinctBreakdown struct {
	CountyCode             string          `json:"county_code"`
	PrecinctCode           string          `json:"precinct_code"`
	MunicipalityName       string          `json:"municipality_name"`
	DemVotes               int64           `json:"dem_votes"`
	RepVotes               int64           `json:"rep_votes"`
	VoteDifference         int64           `json:"vote_difference"`
	DemRegistered          int64           `json:"dem_registered"`
	RepRegistered          int64           `json:"rep_registered"`
	RegistrationDifference int64           `json:"registration_difference"`
	DemShare               decimal.Decimal `json:"dem_share"` // percent of the two-party vote
}

// combined is the total bar length of the precinct when charted.
func (b PrecinctBreakdown) combined() int64 {
	return b.DemVotes + b.RepVotes + b.DemRegistered + b.RepRegistered
}

type precinctKey struct{ county, precinct string }

// Breakdown merges vote and registration tallies per precinct. Only
// precincts with votes appear. SortVotes keeps the TopPrecincts largest by
// combined votes and registrations, ordered by vote difference; SortPrecinct
// returns every precinct ordered by county and precinct code.
func Breakdown(votes, registration []model.PrecinctTally, sortBy string) []PrecinctBreakdown {
	rows := make(map[precinctKey]*PrecinctBreakdown)
	var order []precinctKey
	for _, t := range votes {
		k := precinctKey{t.CountyCode, t.PrecinctCode}
		b, ok := rows[k]
		if !ok {
			b = &PrecinctBreakdown{CountyCode: t.CountyCode, PrecinctCode: t.PrecinctCode, MunicipalityName: t.MunicipalityName}
			rows[k] = b
			order = append(order, k)
		}
		switch t.PartyCode {
		case PartyDem:
			b.DemVotes += t.Total
		case PartyRep:
			b.RepVotes += t.Total
		}
	}
	for _, t := range registration {
		b, ok := rows[precinctKey{t.CountyCode, t.PrecinctCode}]
		if !ok {
			continue
		}
		switch t.PartyCode {
		case PartyDem:
			b.DemRegistered += t.Total
		case PartyRep:
			b.RepRegistered += t.Total
		}
	}

	out := make([]PrecinctBreakdown, 0, len(order))
	for _, k := range order {
		b := rows[k]
		b.VoteDifference = b.DemVotes - b.RepVotes
		b.RegistrationDifference = b.DemRegistered - b.RepRegistered
		b.DemShare = demShare(b.DemVotes, b.RepVotes)
		out = append(out, *b)
	}

	byPrecinct := func(a, b PrecinctBreakdown) bool {
		if a.CountyCode != b.CountyCode {
			return a.CountyCode < b.CountyCode
		}
		return a.PrecinctCode < b.PrecinctCode
	}

	if sortBy == SortPrecinct {
		sort.SliceStable(out, func(i, j int) bool { return byPrecinct(out[i], out[j]) })
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := out[i].combined(), out[j].combined()
		if ci != cj {
			return ci > cj
		}
		return byPrecinct(out[i], out[j])
	})
	if len(out) > TopPrecincts {
		out = out[:TopPrecincts]
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].VoteDifference != out[j].VoteDifference {
			return out[i].VoteDifference < out[j].VoteDifference
		}
		return byPrecinct(out[i], out[j])
	})
	return out
}

// demShare returns DEM's percentage of the two-party vote, rounded to 2dp.
func demShare(dem, rep int64) decimal.Decimal {
	total := dem + rep
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(dem).Div(decimal.NewFromInt(total)).Mul(decimal.NewFromInt(100)).Round(2)
}
