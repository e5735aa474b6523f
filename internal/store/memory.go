package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/23atomist/electrion-PA/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
//
// A transaction works on a private copy of the data; Commit publishes the
// copy. Only one writer is expected at a time.
type MemoryStore struct {
	mu   sync.RWMutex
	data *memData
}

type memRow struct {
	key   []any
	attrs []any
}

type memTable struct {
	rows  []memRow // id is index+1
	byKey map[string]int64
}

type resultKey struct {
	election, precinct, candidate, party, office int64
}

type registrationKey struct {
	election, precinct, party int64
}

type memData struct {
	dims         map[string]*memTable
	results      []model.Result
	resultKeys   map[resultKey]bool
	registration []model.Registration
	regKeys      map[registrationKey]bool
}

// NewMemoryStore creates a new in-memory store with an empty schema.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData()}
}

func newMemData() *memData {
	d := &memData{
		dims:       make(map[string]*memTable),
		resultKeys: make(map[resultKey]bool),
		regKeys:    make(map[registrationKey]bool),
	}
	for _, dim := range dimensions {
		d.dims[dim.Table] = &memTable{byKey: make(map[string]int64)}
	}
	return d
}

var dimensions = []Dimension{States, Elections, Counties, Precincts, Candidates, Parties, Offices}

func (d *memData) clone() *memData {
	c := &memData{
		dims:         make(map[string]*memTable, len(d.dims)),
		results:      append([]model.Result(nil), d.results...),
		resultKeys:   make(map[resultKey]bool, len(d.resultKeys)),
		registration: append([]model.Registration(nil), d.registration...),
		regKeys:      make(map[registrationKey]bool, len(d.regKeys)),
	}
	for name, t := range d.dims {
		ct := &memTable{
			rows:  make([]memRow, len(t.rows)),
			byKey: make(map[string]int64, len(t.byKey)),
		}
		for i, r := range t.rows {
			// Keys are immutable; attributes are filled in place.
			ct.rows[i] = memRow{key: r.key, attrs: append([]any(nil), r.attrs...)}
		}
		for k, id := range t.byKey {
			ct.byKey[k] = id
		}
		c.dims[name] = ct
	}
	for k := range d.resultKeys {
		c.resultKeys[k] = true
	}
	for k := range d.regKeys {
		c.regKeys[k] = true
	}
	return c
}

func (s *MemoryStore) Begin(_ context.Context) (Tx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &memTx{store: s, data: s.data.clone()}, nil
}

func (s *MemoryStore) Count(_ context.Context, table string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.count(table)
}

func (d *memData) count(table string) (int64, error) {
	switch table {
	case ResultsTable:
		return int64(len(d.results)), nil
	case RegistrationTable:
		return int64(len(d.registration)), nil
	}
	t, ok := d.dims[table]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return int64(len(t.rows)), nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = newMemData()
	return nil
}

func (s *MemoryStore) Close() error { return nil }

type memTx struct {
	store *MemoryStore
	data  *memData
	done  bool
}

func (t *memTx) table(d Dimension) (*memTable, error) {
	if t.done {
		return nil, fmt.Errorf("memory store: transaction already finished")
	}
	tbl, ok := t.data.dims[d.Table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, d.Table)
	}
	return tbl, nil
}

func (t *memTx) FindDimension(_ context.Context, d Dimension, key []any) (int64, bool, error) {
	tbl, err := t.table(d)
	if err != nil {
		return 0, false, err
	}
	id, ok := tbl.byKey[keyString(key)]
	return id, ok, nil
}

func (t *memTx) InsertDimension(_ context.Context, d Dimension, key, attrs []any) (int64, bool, error) {
	tbl, err := t.table(d)
	if err != nil {
		return 0, false, err
	}
	if len(key) != len(d.Key) {
		return 0, false, fmt.Errorf("insert %s: want %d key values, got %d", d.Name, len(d.Key), len(key))
	}
	k := keyString(key)
	if _, exists := tbl.byKey[k]; exists {
		return 0, false, nil
	}
	row := memRow{key: append([]any(nil), key...), attrs: make([]any, len(d.Attrs))}
	for i := range d.Attrs {
		if i < len(attrs) && !empty(attrs[i]) {
			row.attrs[i] = attrs[i]
		}
	}
	tbl.rows = append(tbl.rows, row)
	id := int64(len(tbl.rows))
	tbl.byKey[k] = id
	return id, true, nil
}

func (t *memTx) FillDimension(_ context.Context, d Dimension, id int64, attrs []any) (bool, error) {
	tbl, err := t.table(d)
	if err != nil {
		return false, err
	}
	if id < 1 || id > int64(len(tbl.rows)) {
		return false, fmt.Errorf("enrich %s %d: no such row", d.Name, id)
	}
	row := &tbl.rows[id-1]
	changed := false
	for i := range d.Attrs {
		if i >= len(attrs) || attrs[i] == nil {
			continue
		}
		if empty(row.attrs[i]) {
			row.attrs[i] = attrs[i]
			changed = true
		}
	}
	return changed, nil
}

func (t *memTx) InsertResult(_ context.Context, r model.Result) (bool, error) {
	if t.done {
		return false, fmt.Errorf("memory store: transaction already finished")
	}
	if err := t.checkRefs(map[string]int64{
		Elections.Table:  r.ElectionID,
		Precincts.Table:  r.PrecinctID,
		Candidates.Table: r.CandidateID,
		Parties.Table:    r.PartyID,
		Offices.Table:    r.OfficeID,
	}); err != nil {
		return false, fmt.Errorf("insert result: %w", err)
	}
	k := resultKey{r.ElectionID, r.PrecinctID, r.CandidateID, r.PartyID, r.OfficeID}
	if t.data.resultKeys[k] {
		return false, nil
	}
	t.data.resultKeys[k] = true
	t.data.results = append(t.data.results, r)
	return true, nil
}

func (t *memTx) InsertRegistration(_ context.Context, r model.Registration) (bool, error) {
	if t.done {
		return false, fmt.Errorf("memory store: transaction already finished")
	}
	if err := t.checkRefs(map[string]int64{
		Elections.Table: r.ElectionID,
		Precincts.Table: r.PrecinctID,
		Parties.Table:   r.PartyID,
	}); err != nil {
		return false, fmt.Errorf("insert registration: %w", err)
	}
	k := registrationKey{r.ElectionID, r.PrecinctID, r.PartyID}
	if t.data.regKeys[k] {
		return false, nil
	}
	t.data.regKeys[k] = true
	t.data.registration = append(t.data.registration, r)
	return true, nil
}

// checkRefs enforces foreign keys the way the SQL backends do.
func (t *memTx) checkRefs(refs map[string]int64) error {
	for table, id := range refs {
		if id < 1 || id > int64(len(t.data.dims[table].rows)) {
			return fmt.Errorf("foreign key violation: %s id %d", table, id)
		}
	}
	return nil
}

func (t *memTx) Commit(_ context.Context) error {
	if t.done {
		return fmt.Errorf("memory store: transaction already finished")
	}
	t.done = true
	t.store.mu.Lock()
	t.store.data = t.data
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	t.done = true
	return nil
}

// --- Reports ---

func (s *MemoryStore) ListYears(_ context.Context) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int]bool)
	var years []int
	for _, r := range s.data.dims[Elections.Table].rows {
		y := int(asInt(r.key[1]))
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

func (s *MemoryStore) ListOffices(_ context.Context) ([]model.Office, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var offices []model.Office
	for _, r := range s.data.dims[Offices.Table].rows {
		o := model.Office{Code: asString(r.key[0]), Name: asString(r.attrs[0])}
		if r.attrs[1] != nil {
			d := int(asInt(r.attrs[1]))
			o.District = &d
		}
		offices = append(offices, o)
	}
	sort.Slice(offices, func(i, j int) bool { return offices[i].Code < offices[j].Code })
	return offices, nil
}

func (s *MemoryStore) PrecinctVotes(_ context.Context, year int, officeCode string, parties []string) ([]model.PrecinctTally, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.data
	agg := newTallies()
	for _, r := range d.results {
		if d.electionYear(r.ElectionID) != year || d.code(Offices, r.OfficeID) != officeCode {
			continue
		}
		party := d.code(Parties, r.PartyID)
		if !wanted(party, parties) {
			continue
		}
		agg.add(d, r.PrecinctID, party, int64(r.VoteTotal))
	}
	return agg.sorted(), nil
}

func (s *MemoryStore) PrecinctRegistration(_ context.Context, year int, parties []string) ([]model.PrecinctTally, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.data
	agg := newTallies()
	for _, r := range d.registration {
		if d.electionYear(r.ElectionID) != year {
			continue
		}
		party := d.code(Parties, r.PartyID)
		if !wanted(party, parties) {
			continue
		}
		agg.add(d, r.PrecinctID, party, int64(r.RegisteredVoters))
	}
	return agg.sorted(), nil
}

func (s *MemoryStore) CountRows(_ context.Context) ([]model.TableCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make([]model.TableCount, 0, len(Tables))
	for _, t := range Tables {
		n, err := s.data.count(t)
		if err != nil {
			return nil, err
		}
		counts = append(counts, model.TableCount{Table: t, Rows: n})
	}
	return counts, nil
}

func (s *MemoryStore) SampleJoined(_ context.Context, limit int) ([]model.JoinedRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	d := s.data
	regs := make(map[registrationKey]int, len(d.registration))
	for _, r := range d.registration {
		regs[registrationKey{r.ElectionID, r.PrecinctID, r.PartyID}] = r.RegisteredVoters
	}

	var out []model.JoinedRow
	for _, r := range d.results {
		if len(out) == limit {
			break
		}
		election := d.row(Elections, r.ElectionID)
		state := d.row(States, asInt(election.key[0]))
		precinct := d.row(Precincts, r.PrecinctID)
		county := d.row(Counties, asInt(precinct.key[0]))
		candidate := d.row(Candidates, r.CandidateID)

		j := model.JoinedRow{
			Year:             int(asInt(election.key[1])),
			State:            asString(state.attrs[0]),
			CountyName:       asString(county.attrs[0]),
			MunicipalityName: asString(precinct.attrs[0]),
			FirstName:        asString(candidate.attrs[0]),
			LastName:         asString(candidate.attrs[1]),
			PartyCode:        d.code(Parties, r.PartyID),
			VoteTotal:        r.VoteTotal,
		}
		if v, ok := regs[registrationKey{r.ElectionID, r.PrecinctID, r.PartyID}]; ok {
			j.RegisteredVoters = &v
		}
		out = append(out, j)
	}
	return out, nil
}

func (d *memData) row(dim Dimension, id int64) memRow {
	return d.dims[dim.Table].rows[id-1]
}

// code returns the single-column natural key of a row.
func (d *memData) code(dim Dimension, id int64) string {
	return asString(d.row(dim, id).key[0])
}

func (d *memData) electionYear(id int64) int {
	return int(asInt(d.row(Elections, id).key[1]))
}

type tallyKey struct {
	county, precinct, party string
}

type tallies struct {
	totals map[tallyKey]*model.PrecinctTally
}

func newTallies() *tallies {
	return &tallies{totals: make(map[tallyKey]*model.PrecinctTally)}
}

func (t *tallies) add(d *memData, precinctID int64, party string, n int64) {
	p := d.row(Precincts, precinctID)
	county := d.code(Counties, asInt(p.key[0]))
	k := tallyKey{county, asString(p.key[1]), party}
	pt, ok := t.totals[k]
	if !ok {
		pt = &model.PrecinctTally{
			CountyCode:       k.county,
			PrecinctCode:     k.precinct,
			MunicipalityName: asString(p.attrs[0]),
			PartyCode:        party,
		}
		t.totals[k] = pt
	}
	pt.Total += n
}

func (t *tallies) sorted() []model.PrecinctTally {
	out := make([]model.PrecinctTally, 0, len(t.totals))
	for _, pt := range t.totals {
		out = append(out, *pt)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.CountyCode != b.CountyCode {
			return a.CountyCode < b.CountyCode
		}
		if a.PrecinctCode != b.PrecinctCode {
			return a.PrecinctCode < b.PrecinctCode
		}
		return a.PartyCode < b.PartyCode
	})
	return out
}

func wanted(party string, parties []string) bool {
	if len(parties) == 0 {
		return true
	}
	for _, p := range parties {
		if p == party {
			return true
		}
	}
	return false
}

// empty reports whether a stored attribute value may be filled.
func empty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func keyString(key []any) string {
	parts := make([]string, len(key))
	for i, v := range key {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "\x1f")
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case int32:
		return int64(n)
	}
	return 0
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
