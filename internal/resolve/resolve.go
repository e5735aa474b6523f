// Package resolve maps natural keys to dimension row ids, creating rows on
// first sight and filling in empty attributes as richer sources arrive.
//
// A Resolver works inside one store transaction and is not safe for
// concurrent use.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/23atomist/electrion-PA/internal/metrics"
	"github.com/23atomist/electrion-PA/internal/model"
	"github.com/23atomist/electrion-PA/internal/store"
)

// ErrIntegrity is wrapped by every IntegrityError.
var ErrIntegrity = errors.New("resolve: dimension integrity fault")

// IntegrityError reports a natural key that could neither be inserted nor
// found. The store lost a write it should have recorded, so the enclosing
// run must abort.
type IntegrityError struct {
	Dimension string
	Key       []any
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("resolve: %s %v conflicted on insert but is absent on lookup", e.Dimension, e.Key)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// Stats counts resolver work since construction.
type Stats struct {
	Lookups     int64 `json:"lookups"`
	CacheHits   int64 `json:"cache_hits"`
	Inserts     int64 `json:"inserts"`
	Enrichments int64 `json:"enrichments"`
	Retries     int64 `json:"retries"`
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Lookups += o.Lookups
	s.CacheHits += o.CacheHits
	s.Inserts += o.Inserts
	s.Enrichments += o.Enrichments
	s.Retries += o.Retries
}

// Resolver resolves dimension keys within a single transaction.
type Resolver struct {
	tx    store.Tx
	ids   map[string]*entry
	stats Stats
}

// entry is a resolved row. known marks attribute columns already non-empty
// in the store; enrichment never empties them, so they need no further
// writes for the life of the transaction.
type entry struct {
	id    int64
	known []bool
}

// New returns a Resolver bound to tx. Ids it hands out are only valid while
// tx is open.
func New(tx store.Tx) *Resolver {
	return &Resolver{tx: tx, ids: make(map[string]*entry)}
}

// Stats returns a snapshot of the counters.
func (r *Resolver) Stats() Stats { return r.stats }

func (r *Resolver) State(ctx context.Context, k model.StateKey, a model.StateAttrs) (int64, error) {
	return r.resolve(ctx, store.States,
		[]any{k.Abbreviation},
		[]any{text(a.Name)})
}

func (r *Resolver) Election(ctx context.Context, k model.ElectionKey) (int64, error) {
	return r.resolve(ctx, store.Elections,
		[]any{k.StateID, k.Year, k.Type},
		nil)
}

func (r *Resolver) County(ctx context.Context, k model.CountyKey, a model.CountyAttrs) (int64, error) {
	return r.resolve(ctx, store.Counties,
		[]any{k.StateID, k.Code},
		[]any{text(a.Name), text(a.FIPSCode)})
}

func (r *Resolver) Precinct(ctx context.Context, k model.PrecinctKey, a model.PrecinctAttrs) (int64, error) {
	return r.resolve(ctx, store.Precincts,
		[]any{k.CountyID, k.Code},
		[]any{
			text(a.MunicipalityName),
			number(a.RegisteredVoters),
			number(a.BallotsCast),
			text(a.CongressionalDistrict),
			text(a.SenatorialDistrict),
			text(a.HouseDistrict),
		})
}

func (r *Resolver) Candidate(ctx context.Context, k model.CandidateKey, a model.CandidateAttrs) (int64, error) {
	return r.resolve(ctx, store.Candidates,
		[]any{k.Number},
		[]any{text(a.FirstName), text(a.LastName)})
}

func (r *Resolver) Party(ctx context.Context, k model.PartyKey, a model.PartyAttrs) (int64, error) {
	return r.resolve(ctx, store.Parties,
		[]any{k.Code},
		[]any{text(a.Name)})
}

func (r *Resolver) Office(ctx context.Context, k model.OfficeKey, a model.OfficeAttrs) (int64, error) {
	return r.resolve(ctx, store.Offices,
		[]any{k.Code},
		[]any{text(a.Name), number(a.District)})
}

// resolve is get-or-create over one dimension. attrs is positional against
// d.Attrs; nil entries are not supplied.
func (r *Resolver) resolve(ctx context.Context, d store.Dimension, key, attrs []any) (int64, error) {
	ck := cacheKey(d, key)
	if e, ok := r.ids[ck]; ok {
		r.stats.CacheHits++
		return e.id, r.enrich(ctx, d, e, attrs)
	}

	id, found, err := r.lookup(ctx, d, key)
	if err != nil {
		return 0, err
	}
	if found {
		e := r.remember(ck, d, id)
		return id, r.enrich(ctx, d, e, attrs)
	}

	id, inserted, err := r.tx.InsertDimension(ctx, d, key, attrs)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", d.Name, err)
	}
	if inserted {
		r.count(d, "insert", &r.stats.Inserts)
		e := r.remember(ck, d, id)
		e.learn(attrs)
		return id, nil
	}

	// Another writer created the key between lookup and insert.
	r.count(d, "retry", &r.stats.Retries)
	id, found, err = r.lookup(ctx, d, key)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, &IntegrityError{Dimension: d.Name, Key: key}
	}
	e := r.remember(ck, d, id)
	return id, r.enrich(ctx, d, e, attrs)
}

func (r *Resolver) remember(ck string, d store.Dimension, id int64) *entry {
	e := &entry{id: id, known: make([]bool, len(d.Attrs))}
	r.ids[ck] = e
	return e
}

// learn marks the supplied attributes as stored.
func (e *entry) learn(attrs []any) {
	for i, v := range attrs {
		if v != nil && i < len(e.known) {
			e.known[i] = true
		}
	}
}

func (r *Resolver) lookup(ctx context.Context, d store.Dimension, key []any) (int64, bool, error) {
	r.count(d, "lookup", &r.stats.Lookups)
	id, found, err := r.tx.FindDimension(ctx, d, key)
	if err != nil {
		return 0, false, fmt.Errorf("resolve %s: %w", d.Name, err)
	}
	return id, found, nil
}

// enrich fills empty columns of the row from the supplied attributes,
// skipping columns already known to be populated.
func (r *Resolver) enrich(ctx context.Context, d store.Dimension, e *entry, attrs []any) error {
	var fresh []any
	for i, v := range attrs {
		if v == nil || (i < len(e.known) && e.known[i]) {
			continue
		}
		if fresh == nil {
			fresh = make([]any, len(attrs))
		}
		fresh[i] = v
	}
	if fresh == nil {
		return nil
	}
	changed, err := r.tx.FillDimension(ctx, d, e.id, fresh)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", d.Name, err)
	}
	if changed {
		r.count(d, "enrich", &r.stats.Enrichments)
	}
	e.learn(fresh)
	return nil
}

func (r *Resolver) count(d store.Dimension, op string, n *int64) {
	*n++
	metrics.DimensionOps.WithLabelValues(d.Name, op).Inc()
}

func text(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

func number(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func cacheKey(d store.Dimension, key []any) string {
	var b strings.Builder
	b.WriteString(d.Table)
	for _, v := range key {
		fmt.Fprintf(&b, "\x1f%v", v)
	}
	return b.String()
}
