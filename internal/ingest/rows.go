package ingest

import (
	"context"
	"errors"

	"github.com/23atomist/electrion-PA/internal/model"
	"github.com/23atomist/electrion-PA/internal/normalize"
	"github.com/23atomist/electrion-PA/internal/source"
)

type rowOutcome int

const (
	rowStored    rowOutcome = iota // at least one new fact, or nothing to store
	rowDuplicate                   // every fact already existed
	rowBlank                       // blank ballot line, skipped silently
	rowRejected                    // failed normalization
)

func (o rowOutcome) String() string {
	switch o {
	case rowStored:
		return "stored"
	case rowDuplicate:
		return "duplicate"
	case rowBlank:
		return "blank"
	case rowRejected:
		return "rejected"
	}
	return "unknown"
}

// rowResult is the recoverable outcome of one row. Fatal faults travel
// separately as an error so they cannot be mistaken for a rejected row.
type rowResult struct {
	outcome    rowOutcome
	inserted   int
	duplicates int
	warnings   []string
	cause      error // set when rejected
}

func rejected(err error) rowResult {
	return rowResult{outcome: rowRejected, cause: err}
}

func (res *rowResult) fact(inserted bool) {
	if inserted {
		res.inserted++
	} else {
		res.duplicates++
	}
}

func (res *rowResult) settle() {
	if res.inserted == 0 && res.duplicates > 0 {
		res.outcome = rowDuplicate
	}
}

func (e *Engine) resultRow(ctx context.Context, r *run, electionID int64, rec source.Record) (rowResult, error) {
	row, err := normalize.Result(rec)
	if errors.Is(err, normalize.ErrBlankLine) {
		return rowResult{outcome: rowBlank}, nil
	}
	if err != nil {
		return rejected(err), nil
	}
	res := rowResult{warnings: row.Warnings}

	countyID, err := r.resolver.County(ctx,
		model.CountyKey{StateID: r.stateID, Code: row.CountyCode},
		model.CountyAttrs{Name: row.CountyName})
	if err != nil {
		return res, err
	}
	precinctID, err := r.resolver.Precinct(ctx,
		model.PrecinctKey{CountyID: countyID, Code: row.PrecinctCode},
		model.PrecinctAttrs{})
	if err != nil {
		return res, err
	}
	candidateID, err := r.resolver.Candidate(ctx,
		model.CandidateKey{Number: row.CandidateNumber},
		model.CandidateAttrs{FirstName: row.FirstName, LastName: row.LastName})
	if err != nil {
		return res, err
	}
	partyID, err := r.resolver.Party(ctx,
		model.PartyKey{Code: row.PartyCode},
		model.PartyAttrs{Name: row.PartyName})
	if err != nil {
		return res, err
	}
	officeID, err := r.resolver.Office(ctx,
		model.OfficeKey{Code: row.OfficeCode},
		model.OfficeAttrs{Name: row.OfficeName, District: row.District})
	if err != nil {
		return res, err
	}

	inserted, err := r.facts.WriteResult(ctx, model.Result{
		ElectionID:  electionID,
		PrecinctID:  precinctID,
		CandidateID: candidateID,
		PartyID:     partyID,
		OfficeID:    officeID,
		VoteTotal:   row.VoteTotal,
	})
	if err != nil {
		return res, err
	}
	res.fact(inserted)
	res.settle()
	return res, nil
}

func (e *Engine) registrationRow(ctx context.Context, r *run, electionID int64, rec source.Record) (rowResult, error) {
	row, err := normalize.Registration(rec)
	if err != nil {
		return rejected(err), nil
	}
	res := rowResult{warnings: row.Warnings}

	countyID, err := r.resolver.County(ctx,
		model.CountyKey{StateID: r.stateID, Code: row.CountyCode},
		model.CountyAttrs{Name: row.CountyName, FIPSCode: row.FIPSCode})
	if err != nil {
		return res, err
	}

	attrs := model.PrecinctAttrs{
		MunicipalityName:      row.MunicipalityName,
		CongressionalDistrict: row.CongressionalDistrict,
		SenatorialDistrict:    row.SenatorialDistrict,
		HouseDistrict:         row.HouseDistrict,
	}
	if row.TotalVoters > 0 {
		total := row.TotalVoters
		attrs.RegisteredVoters = &total
	}
	precinctID, err := r.resolver.Precinct(ctx,
		model.PrecinctKey{CountyID: countyID, Code: row.PrecinctCode}, attrs)
	if err != nil {
		return res, err
	}

	for _, p := range row.Parties {
		partyID, err := r.resolver.Party(ctx, model.PartyKey{Code: p.Code}, model.PartyAttrs{Name: p.Name})
		if err != nil {
			return res, err
		}
		inserted, err := r.facts.WriteRegistration(ctx, model.Registration{
			ElectionID:       electionID,
			PrecinctID:       precinctID,
			PartyID:          partyID,
			RegisteredVoters: p.Voters,
		})
		if err != nil {
			return res, err
		}
		res.fact(inserted)
	}
	res.settle()
	return res, nil
}
