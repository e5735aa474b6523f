// Package model defines the core domain types shared across the ingestion
// engine: natural keys and enrichable attributes for every dimension, the
// two fact rows, and the read-side rows returned to the reporting layer.
//
// Attribute structs use the zero value ("" or nil) to mean "not supplied".
// The resolver never writes a not-supplied attribute.
package model

// StateKey is the natural key of a state.
type StateKey struct {
	Abbreviation string
}

// StateAttrs are the enrichable attributes of a state.
type StateAttrs struct {
	Name string
}

// ElectionKey is the natural key of an election. Elections carry no
// attributes.
type ElectionKey struct {
	StateID int64
	Year    int
	Type    string // "G" for general, "P" for primary
}

// CountyKey is the natural key of a county within a state.
type CountyKey struct {
	StateID int64
	Code    string // two-digit, zero-padded
}

// CountyAttrs are the enrichable attributes of a county.
type CountyAttrs struct {
	Name     string
	FIPSCode string
}

// PrecinctKey is the natural key of a precinct within a county.
type PrecinctKey struct {
	CountyID int64
	Code     string
}

// PrecinctAttrs are the enrichable attributes of a precinct.
type PrecinctAttrs struct {
	MunicipalityName      string
	RegisteredVoters      *int
	BallotsCast           *int
	CongressionalDistrict string
	SenatorialDistrict    string
	HouseDistrict         string
}

// CandidateKey is the natural key of a candidate.
type CandidateKey struct {
	Number string
}

// CandidateAttrs are the enrichable attributes of a candidate.
type CandidateAttrs struct {
	FirstName string
	LastName  string
}

// PartyKey is the natural key of a party.
type PartyKey struct {
	Code string
}

// PartyAttrs are the enrichable attributes of a party.
type PartyAttrs struct {
	Name string
}

// OfficeKey is the natural key of an office.
type OfficeKey struct {
	Code string
}

// OfficeAttrs are the enrichable attributes of an office.
type OfficeAttrs struct {
	Name     string
	District *int
}

// Result is an immutable vote-total fact. Once inserted for a composite key
// it is never modified.
type Result struct {
	ElectionID  int64 `json:"election_id" db:"election_id"`
	PrecinctID  int64 `json:"precinct_id" db:"precinct_id"`
	CandidateID int64 `json:"candidate_id" db:"candidate_id"`
	PartyID     int64 `json:"party_id" db:"party_id"`
	OfficeID    int64 `json:"office_id" db:"office_id"`
	VoteTotal   int   `json:"vote_total" db:"vote_total"`
}

// Registration is an immutable registered-voter fact for one party in one
// precinct for one election.
type Registration struct {
	ElectionID       int64 `json:"election_id" db:"election_id"`
	PrecinctID       int64 `json:"precinct_id" db:"precinct_id"`
	PartyID          int64 `json:"party_id" db:"party_id"`
	RegisteredVoters int   `json:"registered_voters" db:"registered_voters"`
}

// Office is the read-side view of an office row.
type Office struct {
	Code     string `json:"office_code"`
	Name     string `json:"name"`
	District *int   `json:"district,omitempty"`
}

// PrecinctTally is a per-precinct, per-party total (votes or registered
// voters) aggregated by the store.
type PrecinctTally struct {
	CountyCode       string `json:"county_code"`
	PrecinctCode     string `json:"precinct_code"`
	MunicipalityName string `json:"municipality_name"`
	PartyCode        string `json:"party_code"`
	Total            int64  `json:"total"`
}

// JoinedRow is one line of the verification sample: a result joined to its
// dimensions and, when present, the matching registration count.
type JoinedRow struct {
	Year             int    `json:"year"`
	State            string `json:"state"`
	CountyName       string `json:"county_name"`
	MunicipalityName string `json:"municipality_name"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	PartyCode        string `json:"party_code"`
	VoteTotal        int    `json:"vote_total"`
	RegisteredVoters *int   `json:"registered_voters,omitempty"`
}

// TableCount is the row count of one table.
type TableCount struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}
