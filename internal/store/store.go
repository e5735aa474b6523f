// Package store defines the persistence interface for the normalized
// election store. Implementations include SQLite (the default, single-file
// store), PostgreSQL, in-memory (for testing), and a Redis read-through
// cache for report queries.
package store

import (
	"context"
	"errors"

	"github.com/23atomist/electrion-PA/internal/model"
)

// ErrUnknownTable is returned when a table name is not part of the schema.
var ErrUnknownTable = errors.New("store: unknown table")

// Column is one enrichable attribute column of a dimension table.
type Column struct {
	Name    string
	Numeric bool // NULL is the only empty value; otherwise NULL or ''.
}

// Dimension describes a dimension table: its natural key columns, in the
// order key values are passed, and its enrichable attribute columns, in the
// order attribute values are passed.
type Dimension struct {
	Name  string // label used in logs and metrics
	Table string
	Key   []string
	Attrs []Column
}

// The seven dimension tables.
var (
	States = Dimension{
		Name:  "state",
		Table: "states",
		Key:   []string{"abbreviation"},
		Attrs: []Column{{Name: "name"}},
	}
	Elections = Dimension{
		Name:  "election",
		Table: "elections",
		Key:   []string{"state_id", "year", "type"},
	}
	Counties = Dimension{
		Name:  "county",
		Table: "counties",
		Key:   []string{"state_id", "county_code"},
		Attrs: []Column{{Name: "name"}, {Name: "fips_code"}},
	}
	Precincts = Dimension{
		Name:  "precinct",
		Table: "precincts",
		Key:   []string{"county_id", "precinct_code"},
		Attrs: []Column{
			{Name: "municipality_name"},
			{Name: "registered_voters", Numeric: true},
			{Name: "ballots_cast", Numeric: true},
			{Name: "us_congressional_district"},
			{Name: "state_senatorial_district"},
			{Name: "state_house_district"},
		},
	}
	Candidates = Dimension{
		Name:  "candidate",
		Table: "candidates",
		Key:   []string{"candidate_number"},
		Attrs: []Column{{Name: "first_name"}, {Name: "last_name"}},
	}
	Parties = Dimension{
		Name:  "party",
		Table: "parties",
		Key:   []string{"party_code"},
		Attrs: []Column{{Name: "name"}},
	}
	Offices = Dimension{
		Name:  "office",
		Table: "offices",
		Key:   []string{"office_code"},
		Attrs: []Column{{Name: "name"}, {Name: "district", Numeric: true}},
	}
)

// Fact table names.
const (
	ResultsTable      = "results"
	RegistrationTable = "registration"
)

// Tables lists every table in dependency order (referenced tables first).
var Tables = []string{
	States.Table, Elections.Table, Counties.Table, Precincts.Table,
	Candidates.Table, Parties.Table, Offices.Table,
	ResultsTable, RegistrationTable,
}

func knownTable(name string) bool {
	for _, t := range Tables {
		if t == name {
			return true
		}
	}
	return false
}

// Tx is one unit of ingestion work against the store. Attribute and key
// slices are positional against the Dimension descriptor; a nil attribute
// value means "not supplied".
type Tx interface {
	// FindDimension returns the id of the row whose natural key equals key.
	FindDimension(ctx context.Context, d Dimension, key []any) (id int64, found bool, err error)

	// InsertDimension inserts a new row. It reports inserted=false, without
	// error, when a row with the same natural key already exists.
	InsertDimension(ctx context.Context, d Dimension, key, attrs []any) (id int64, inserted bool, err error)

	// FillDimension writes supplied attributes into columns of row id that
	// are currently empty. Populated columns are left untouched. It reports
	// whether any column changed.
	FillDimension(ctx context.Context, d Dimension, id int64, attrs []any) (changed bool, err error)

	// InsertResult appends a result fact; a duplicate composite key is a
	// no-op reported as inserted=false.
	InsertResult(ctx context.Context, r model.Result) (inserted bool, err error)

	// InsertRegistration appends a registration fact; a duplicate composite
	// key is a no-op reported as inserted=false.
	InsertRegistration(ctx context.Context, r model.Registration) (inserted bool, err error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Reports is the read-only query surface used by the reporting layer and
// the verification command.
type Reports interface {
	// ListYears returns distinct election years, newest first.
	ListYears(ctx context.Context) ([]int, error)

	// ListOffices returns all offices ordered by code.
	ListOffices(ctx context.Context) ([]model.Office, error)

	// PrecinctVotes sums vote totals per precinct and party for one year
	// and office, restricted to the given parties.
	PrecinctVotes(ctx context.Context, year int, officeCode string, parties []string) ([]model.PrecinctTally, error)

	// PrecinctRegistration sums registered voters per precinct and party for
	// one year, restricted to the given parties.
	PrecinctRegistration(ctx context.Context, year int, parties []string) ([]model.PrecinctTally, error)

	// CountRows returns the row count of every table, in schema order.
	CountRows(ctx context.Context) ([]model.TableCount, error)

	// SampleJoined returns up to limit results joined to their dimensions
	// and matching registration counts.
	SampleJoined(ctx context.Context, limit int) ([]model.JoinedRow, error)
}

// Store is the persistence interface.
type Store interface {
	Reports

	// Begin starts a transaction spanning one ingestion run (or one file,
	// under the per-file commit policy).
	Begin(ctx context.Context) (Tx, error)

	// Count returns the number of rows in one table.
	Count(ctx context.Context, table string) (int64, error)

	// Reset drops and recreates every table. It is the schema-setup step
	// and is never called by ingestion.
	Reset(ctx context.Context) error

	Close() error
}
