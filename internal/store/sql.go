package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/23atomist/electrion-PA/internal/model"
)

// errNoRows is the driver-neutral "no row" signal returned by querier
// adapters.
var errNoRows = errors.New("store: no rows")

type rowScanner interface {
	Scan(dest ...any) error
}

// rowsIter reads driver rows into domain values.
type rowsIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// querier is the subset of database/sql and pgx shared by both SQL
// backends.
type querier interface {
	exec(ctx context.Context, q string, args ...any) (rowsAffected int64, err error)
	queryRow(ctx context.Context, q string, args ...any) rowScanner
	query(ctx context.Context, q string, args ...any) (rowsIter, error)
}

// sqlTx implements Tx over any querier.
type sqlTx struct {
	q        querier
	d        dialect
	commit   func(context.Context) error
	rollback func(context.Context) error
}

func (t *sqlTx) Commit(ctx context.Context) error   { return t.commit(ctx) }
func (t *sqlTx) Rollback(ctx context.Context) error { return t.rollback(ctx) }

func (t *sqlTx) FindDimension(ctx context.Context, d Dimension, key []any) (int64, bool, error) {
	if len(key) != len(d.Key) {
		return 0, false, fmt.Errorf("find %s: want %d key values, got %d", d.Name, len(d.Key), len(key))
	}
	q := "SELECT id FROM " + d.Table + " WHERE " + equalities(d.Key)

	var id int64
	err := t.q.queryRow(ctx, t.d.rebind(q), key...).Scan(&id)
	if errors.Is(err, errNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find %s: %w", d.Name, err)
	}
	return id, true, nil
}

func (t *sqlTx) InsertDimension(ctx context.Context, d Dimension, key, attrs []any) (int64, bool, error) {
	if len(key) != len(d.Key) {
		return 0, false, fmt.Errorf("insert %s: want %d key values, got %d", d.Name, len(d.Key), len(key))
	}
	cols := append([]string(nil), d.Key...)
	args := append([]any(nil), key...)
	for i, c := range d.Attrs {
		if i < len(attrs) && attrs[i] != nil {
			cols = append(cols, c.Name)
			args = append(args, attrs[i])
		}
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING RETURNING id",
		d.Table, strings.Join(cols, ", "), placeholders(len(cols)), strings.Join(d.Key, ", "))

	var id int64
	err := t.q.queryRow(ctx, t.d.rebind(q), args...).Scan(&id)
	if errors.Is(err, errNoRows) {
		// The natural key already exists.
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("insert %s: %w", d.Name, err)
	}
	return id, true, nil
}

func (t *sqlTx) FillDimension(ctx context.Context, d Dimension, id int64, attrs []any) (bool, error) {
	var sets, empties []string
	var args []any
	for i, c := range d.Attrs {
		if i >= len(attrs) || attrs[i] == nil {
			continue
		}
		if c.Numeric {
			sets = append(sets, fmt.Sprintf("%[1]s = COALESCE(%[1]s, ?)", c.Name))
			empties = append(empties, c.Name+" IS NULL")
		} else {
			sets = append(sets, fmt.Sprintf("%[1]s = COALESCE(NULLIF(%[1]s, ''), ?)", c.Name))
			empties = append(empties, fmt.Sprintf("%[1]s IS NULL OR %[1]s = ''", c.Name))
		}
		args = append(args, attrs[i])
	}
	if len(sets) == 0 {
		return false, nil
	}

	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = ? AND (%s)",
		d.Table, strings.Join(sets, ", "), strings.Join(empties, " OR "))
	args = append(args, id)

	n, err := t.q.exec(ctx, t.d.rebind(q), args...)
	if err != nil {
		return false, fmt.Errorf("enrich %s %d: %w", d.Name, id, err)
	}
	return n > 0, nil
}

func (t *sqlTx) InsertResult(ctx context.Context, r model.Result) (bool, error) {
	n, err := t.q.exec(ctx, t.d.rebind(
		`INSERT INTO results (election_id, precinct_id, candidate_id, party_id, office_id, vote_total)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`),
		r.ElectionID, r.PrecinctID, r.CandidateID, r.PartyID, r.OfficeID, r.VoteTotal,
	)
	if err != nil {
		return false, fmt.Errorf("insert result: %w", err)
	}
	return n > 0, nil
}

func (t *sqlTx) InsertRegistration(ctx context.Context, r model.Registration) (bool, error) {
	n, err := t.q.exec(ctx, t.d.rebind(
		`INSERT INTO registration (election_id, precinct_id, party_id, registered_voters)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`),
		r.ElectionID, r.PrecinctID, r.PartyID, r.RegisteredVoters,
	)
	if err != nil {
		return false, fmt.Errorf("insert registration: %w", err)
	}
	return n > 0, nil
}

// sqlBase implements the non-transactional parts of Store shared by the SQL
// backends.
type sqlBase struct {
	q querier
	d dialect
}

func (s *sqlBase) Reset(ctx context.Context) error {
	stmts := append(s.d.dropStatements(), s.d.createStatements()...)
	for _, stmt := range stmts {
		if _, err := s.q.exec(ctx, stmt); err != nil {
			return fmt.Errorf("reset schema: %w", err)
		}
	}
	return nil
}

func (s *sqlBase) Count(ctx context.Context, table string) (int64, error) {
	if !knownTable(table) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	var n int64
	if err := s.q.queryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func (s *sqlBase) CountRows(ctx context.Context) ([]model.TableCount, error) {
	counts := make([]model.TableCount, 0, len(Tables))
	for _, t := range Tables {
		n, err := s.Count(ctx, t)
		if err != nil {
			return nil, err
		}
		counts = append(counts, model.TableCount{Table: t, Rows: n})
	}
	return counts, nil
}

func (s *sqlBase) ListYears(ctx context.Context) ([]int, error) {
	rows, err := s.q.query(ctx, `SELECT DISTINCT year FROM elections ORDER BY year DESC`)
	if err != nil {
		return nil, fmt.Errorf("list years: %w", err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

func (s *sqlBase) ListOffices(ctx context.Context) ([]model.Office, error) {
	rows, err := s.q.query(ctx,
		`SELECT office_code, COALESCE(name, ''), district FROM offices ORDER BY office_code`)
	if err != nil {
		return nil, fmt.Errorf("list offices: %w", err)
	}
	defer rows.Close()

	var offices []model.Office
	for rows.Next() {
		var o model.Office
		var district *int64
		if err := rows.Scan(&o.Code, &o.Name, &district); err != nil {
			return nil, err
		}
		o.District = intPtr(district)
		offices = append(offices, o)
	}
	return offices, rows.Err()
}

func (s *sqlBase) PrecinctVotes(ctx context.Context, year int, officeCode string, parties []string) ([]model.PrecinctTally, error) {
	q := `SELECT co.county_code, p.precinct_code, COALESCE(p.municipality_name, ''), pa.party_code, CAST(SUM(r.vote_total) AS BIGINT)
		 FROM results r
		 JOIN elections e ON r.election_id = e.id
		 JOIN precincts p ON r.precinct_id = p.id
		 JOIN counties co ON p.county_id = co.id
		 JOIN parties pa ON r.party_id = pa.id
		 JOIN offices o ON r.office_id = o.id
		 WHERE e.year = ? AND o.office_code = ?`
	args := []any{year, officeCode}
	q, args = partyFilter(q, args, parties)
	q += ` GROUP BY co.county_code, p.precinct_code, p.municipality_name, pa.party_code
		 ORDER BY co.county_code, p.precinct_code, pa.party_code`

	return s.tallies(ctx, "precinct votes", q, args)
}

func (s *sqlBase) PrecinctRegistration(ctx context.Context, year int, parties []string) ([]model.PrecinctTally, error) {
	q := `SELECT co.county_code, p.precinct_code, COALESCE(p.municipality_name, ''), pa.party_code, CAST(SUM(reg.registered_voters) AS BIGINT)
		 FROM registration reg
		 JOIN elections e ON reg.election_id = e.id
		 JOIN precincts p ON reg.precinct_id = p.id
		 JOIN counties co ON p.county_id = co.id
		 JOIN parties pa ON reg.party_id = pa.id
		 WHERE e.year = ?`
	args := []any{year}
	q, args = partyFilter(q, args, parties)
	q += ` GROUP BY co.county_code, p.precinct_code, p.municipality_name, pa.party_code
		 ORDER BY co.county_code, p.precinct_code, pa.party_code`

	return s.tallies(ctx, "precinct registration", q, args)
}

func (s *sqlBase) tallies(ctx context.Context, what, q string, args []any) ([]model.PrecinctTally, error) {
	rows, err := s.q.query(ctx, s.d.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer rows.Close()

	var out []model.PrecinctTally
	for rows.Next() {
		var t model.PrecinctTally
		if err := rows.Scan(&t.CountyCode, &t.PrecinctCode, &t.MunicipalityName, &t.PartyCode, &t.Total); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *sqlBase) SampleJoined(ctx context.Context, limit int) ([]model.JoinedRow, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.q.query(ctx, s.d.rebind(
		`SELECT e.year, COALESCE(st.name, ''), COALESCE(co.name, ''), COALESCE(p.municipality_name, ''),
		        COALESCE(ca.first_name, ''), COALESCE(ca.last_name, ''), pa.party_code,
		        r.vote_total, reg.registered_voters
		 FROM results r
		 JOIN elections e ON r.election_id = e.id
		 JOIN states st ON e.state_id = st.id
		 JOIN precincts p ON r.precinct_id = p.id
		 JOIN counties co ON p.county_id = co.id
		 JOIN candidates ca ON r.candidate_id = ca.id
		 JOIN parties pa ON r.party_id = pa.id
		 LEFT JOIN registration reg ON r.precinct_id = reg.precinct_id
		                           AND r.election_id = reg.election_id
		                           AND r.party_id = reg.party_id
		 ORDER BY r.id
		 LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("sample joined: %w", err)
	}
	defer rows.Close()

	var out []model.JoinedRow
	for rows.Next() {
		var j model.JoinedRow
		var reg *int64
		if err := rows.Scan(&j.Year, &j.State, &j.CountyName, &j.MunicipalityName,
			&j.FirstName, &j.LastName, &j.PartyCode, &j.VoteTotal, &reg); err != nil {
			return nil, err
		}
		j.RegisteredVoters = intPtr(reg)
		out = append(out, j)
	}
	return out, rows.Err()
}

func partyFilter(q string, args []any, parties []string) (string, []any) {
	if len(parties) == 0 {
		return q, args
	}
	q += " AND pa.party_code IN (" + placeholders(len(parties)) + ")"
	for _, p := range parties {
		args = append(args, p)
	}
	return q, args
}

func equalities(cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c + " = ?"
	}
	return strings.Join(parts, " AND ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func intPtr(v *int64) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}
