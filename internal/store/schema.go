package store

import (
	"fmt"
	"strconv"
	"strings"
)

// dialect captures the handful of SQL differences between SQLite and
// PostgreSQL. Queries are written with '?' placeholders and rebound.
type dialect struct {
	name     string
	idColumn string
	refType  string
	// countType holds vote and voter counts.
	countType string
	numbered  bool
}

var (
	sqliteDialect = dialect{
		name:      "sqlite",
		idColumn:  "INTEGER PRIMARY KEY AUTOINCREMENT",
		refType:   "INTEGER",
		countType: "INTEGER",
	}
	postgresDialect = dialect{
		name:      "postgres",
		idColumn:  "BIGSERIAL PRIMARY KEY",
		refType:   "BIGINT",
		countType: "BIGINT",
		numbered:  true,
	}
)

// rebind rewrites '?' placeholders to $1..$n for PostgreSQL. Queries in this
// package never contain a literal '?'.
func (d dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// dropStatements drops tables in reverse dependency order.
func (d dialect) dropStatements() []string {
	stmts := make([]string, 0, len(Tables))
	for i := len(Tables) - 1; i >= 0; i-- {
		stmts = append(stmts, "DROP TABLE IF EXISTS "+Tables[i])
	}
	return stmts
}

// createStatements returns the DDL for all nine tables.
func (d dialect) createStatements() []string {
	id, ref, count := d.idColumn, d.refType, d.countType
	return []string{
		fmt.Sprintf(`CREATE TABLE states (
		id %s,
		name TEXT,
		abbreviation TEXT NOT NULL UNIQUE
	)`, id),
		fmt.Sprintf(`CREATE TABLE elections (
		id %[1]s,
		state_id %[2]s NOT NULL REFERENCES states (id),
		year INTEGER NOT NULL,
		type TEXT NOT NULL,
		UNIQUE (state_id, year, type)
	)`, id, ref),
		fmt.Sprintf(`CREATE TABLE counties (
		id %[1]s,
		state_id %[2]s NOT NULL REFERENCES states (id),
		county_code TEXT NOT NULL,
		name TEXT,
		fips_code TEXT,
		UNIQUE (state_id, county_code)
	)`, id, ref),
		fmt.Sprintf(`CREATE TABLE precincts (
		id %[1]s,
		county_id %[2]s NOT NULL REFERENCES counties (id),
		precinct_code TEXT NOT NULL,
		municipality_name TEXT,
		registered_voters %[3]s,
		ballots_cast %[3]s,
		us_congressional_district TEXT,
		state_senatorial_district TEXT,
		state_house_district TEXT,
		UNIQUE (county_id, precinct_code)
	)`, id, ref, count),
		fmt.Sprintf(`CREATE TABLE candidates (
		id %s,
		candidate_number TEXT NOT NULL UNIQUE,
		first_name TEXT,
		last_name TEXT
	)`, id),
		fmt.Sprintf(`CREATE TABLE parties (
		id %s,
		party_code TEXT NOT NULL UNIQUE,
		name TEXT
	)`, id),
		fmt.Sprintf(`CREATE TABLE offices (
		id %s,
		office_code TEXT NOT NULL UNIQUE,
		name TEXT,
		district %s
	)`, id, count),
		fmt.Sprintf(`CREATE TABLE results (
		id %[1]s,
		election_id %[2]s NOT NULL REFERENCES elections (id),
		precinct_id %[2]s NOT NULL REFERENCES precincts (id),
		candidate_id %[2]s NOT NULL REFERENCES candidates (id),
		party_id %[2]s NOT NULL REFERENCES parties (id),
		office_id %[2]s NOT NULL REFERENCES offices (id),
		vote_total %[3]s NOT NULL,
		UNIQUE (election_id, precinct_id, candidate_id, party_id, office_id)
	)`, id, ref, count),
		fmt.Sprintf(`CREATE TABLE registration (
		id %[1]s,
		election_id %[2]s NOT NULL REFERENCES elections (id),
		precinct_id %[2]s NOT NULL REFERENCES precincts (id),
		party_id %[2]s NOT NULL REFERENCES parties (id),
		registered_voters %[3]s NOT NULL,
		UNIQUE (election_id, precinct_id, party_id)
	)`, id, ref, count),
		`CREATE INDEX idx_results_election_office ON results (election_id, office_id)`,
		`CREATE INDEX idx_registration_election ON registration (election_id)`,
	}
}
