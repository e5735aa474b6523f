package resolve_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23atomist/electrion-PA/internal/model"
	"github.com/23atomist/electrion-PA/internal/resolve"
	"github.com/23atomist/electrion-PA/internal/store"
)

func intp(i int) *int { return &i }

// stores returns a fresh memory store and a fresh in-memory SQLite store.
func stores(t *testing.T) map[string]store.Store {
	t.Helper()
	ctx := context.Background()
	lite, err := store.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lite.Close() })

	out := map[string]store.Store{"memory": store.NewMemoryStore(), "sqlite": lite}
	for _, s := range out {
		require.NoError(t, s.Reset(ctx))
	}
	return out
}

func TestResolve_SameKeySameID(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			tx, err := s.Begin(ctx)
			require.NoError(t, err)

			first := resolve.New(tx)
			stateID, err := first.State(ctx, model.StateKey{Abbreviation: "PA"}, model.StateAttrs{Name: "Pennsylvania"})
			require.NoError(t, err)
			countyID, err := first.County(ctx, model.CountyKey{StateID: stateID, Code: "02"}, model.CountyAttrs{Name: "Allegheny"})
			require.NoError(t, err)

			// A second resolver has no cache and must find the same rows.
			second := resolve.New(tx)
			again, err := second.State(ctx, model.StateKey{Abbreviation: "PA"}, model.StateAttrs{})
			require.NoError(t, err)
			assert.Equal(t, stateID, again)
			again, err = second.County(ctx, model.CountyKey{StateID: stateID, Code: "02"}, model.CountyAttrs{})
			require.NoError(t, err)
			assert.Equal(t, countyID, again)
			assert.Equal(t, int64(2), second.Stats().Lookups)
			assert.Zero(t, second.Stats().Inserts)

			require.NoError(t, tx.Commit(ctx))
			n, err := s.Count(ctx, store.Counties.Table)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
		})
	}
}

func TestResolve_MonotonicEnrichment(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			tx, err := s.Begin(ctx)
			require.NoError(t, err)
			r := resolve.New(tx)

			key := model.OfficeKey{Code: "STH"}
			id, err := r.Office(ctx, key, model.OfficeAttrs{})
			require.NoError(t, err)

			got, err := r.Office(ctx, key, model.OfficeAttrs{Name: "State House", District: intp(21)})
			require.NoError(t, err)
			assert.Equal(t, id, got)

			got, err = r.Office(ctx, key, model.OfficeAttrs{Name: "Something Else", District: intp(99)})
			require.NoError(t, err)
			assert.Equal(t, id, got)

			assert.Equal(t, int64(1), r.Stats().Enrichments)
			require.NoError(t, tx.Commit(ctx))

			offices, err := s.ListOffices(ctx)
			require.NoError(t, err)
			require.Len(t, offices, 1)
			assert.Equal(t, "State House", offices[0].Name)
			require.NotNil(t, offices[0].District)
			assert.Equal(t, 21, *offices[0].District)
		})
	}
}

func TestResolve_BlankAttributesAreNotSupplied(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	r := resolve.New(tx)

	key := model.OfficeKey{Code: "GOV"}
	_, err = r.Office(ctx, key, model.OfficeAttrs{Name: "Governor"})
	require.NoError(t, err)
	_, err = r.Office(ctx, key, model.OfficeAttrs{Name: "   "})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	offices, err := s.ListOffices(ctx)
	require.NoError(t, err)
	require.Len(t, offices, 1)
	assert.Equal(t, "Governor", offices[0].Name)
}

// racyTx simulates a concurrent writer: the first `missing` lookups see no
// row and every insert reports a conflict.
type racyTx struct {
	store.Tx
	missing int
	finds   int
	findErr error
}

func (t *racyTx) FindDimension(context.Context, store.Dimension, []any) (int64, bool, error) {
	t.finds++
	if t.findErr != nil {
		return 0, false, t.findErr
	}
	if t.finds > t.missing {
		return 42, true, nil
	}
	return 0, false, nil
}

func (t *racyTx) InsertDimension(context.Context, store.Dimension, []any, []any) (int64, bool, error) {
	return 0, false, nil
}

func (t *racyTx) FillDimension(context.Context, store.Dimension, int64, []any) (bool, error) {
	return false, nil
}

func TestResolve_ConflictRetriesLookupOnce(t *testing.T) {
	tx := &racyTx{missing: 1}
	r := resolve.New(tx)

	id, err := r.Party(context.Background(), model.PartyKey{Code: "DEM"}, model.PartyAttrs{Name: "Democratic"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, 2, tx.finds)
	assert.Equal(t, int64(1), r.Stats().Retries)
}

func TestResolve_IntegrityFaultIsFatal(t *testing.T) {
	tx := &racyTx{missing: 2}
	r := resolve.New(tx)

	_, err := r.Party(context.Background(), model.PartyKey{Code: "DEM"}, model.PartyAttrs{})
	require.ErrorIs(t, err, resolve.ErrIntegrity)

	var ie *resolve.IntegrityError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "party", ie.Dimension)
	assert.Equal(t, []any{"DEM"}, ie.Key)
	assert.Equal(t, 2, tx.finds, "the lookup is retried exactly once")
}

func TestResolve_StoreErrorPropagates(t *testing.T) {
	boom := errors.New("disk on fire")
	r := resolve.New(&racyTx{findErr: boom})

	_, err := r.Candidate(context.Background(), model.CandidateKey{Number: "123"}, model.CandidateAttrs{})
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, resolve.ErrIntegrity)
}

func TestResolve_CachesIDsWithinTransaction(t *testing.T) {
	ctx := context.Background()
	tx, err := store.NewMemoryStore().Begin(ctx)
	require.NoError(t, err)
	r := resolve.New(tx)

	for i := 0; i < 3; i++ {
		_, err := r.Election(ctx, model.ElectionKey{StateID: 1, Year: 2020, Type: "G"})
		require.NoError(t, err)
	}
	st := r.Stats()
	assert.Equal(t, int64(1), st.Lookups)
	assert.Equal(t, int64(1), st.Inserts)
	assert.Equal(t, int64(2), st.CacheHits)
}

// fillCounter records the attributes of every FillDimension call.
type fillCounter struct {
	store.Tx
	fills [][]any
}

func (t *fillCounter) FillDimension(ctx context.Context, d store.Dimension, id int64, attrs []any) (bool, error) {
	t.fills = append(t.fills, attrs)
	return t.Tx.FillDimension(ctx, d, id, attrs)
}

func TestResolve_CacheHitSkipsKnownColumns(t *testing.T) {
	ctx := context.Background()
	inner, err := store.NewMemoryStore().Begin(ctx)
	require.NoError(t, err)
	tx := &fillCounter{Tx: inner}
	r := resolve.New(tx)

	key := model.PrecinctKey{CountyID: 1, Code: "0001"}
	attrs := model.PrecinctAttrs{MunicipalityName: "Pittsburgh Ward 1", RegisteredVoters: intp(300)}
	for i := 0; i < 5; i++ {
		_, err := r.Precinct(ctx, key, attrs)
		require.NoError(t, err)
	}
	assert.Empty(t, tx.fills, "attributes written by the insert are not written again")

	attrs.HouseDistrict = "21"
	for i := 0; i < 3; i++ {
		_, err := r.Precinct(ctx, key, attrs)
		require.NoError(t, err)
	}
	require.Len(t, tx.fills, 1)
	assert.Equal(t, []any{nil, nil, nil, nil, nil, "21"}, tx.fills[0], "only the new column is filled")
	assert.Equal(t, int64(1), r.Stats().Enrichments)
}

func TestResolve_FoundRowIsFilledOnce(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	inner, err := s.Begin(ctx)
	require.NoError(t, err)

	key := model.CandidateKey{Number: "123"}
	_, err = resolve.New(inner).Candidate(ctx, key, model.CandidateAttrs{})
	require.NoError(t, err)

	tx := &fillCounter{Tx: inner}
	r := resolve.New(tx)
	for i := 0; i < 4; i++ {
		_, err := r.Candidate(ctx, key, model.CandidateAttrs{FirstName: "Jane", LastName: "Doe"})
		require.NoError(t, err)
	}
	assert.Len(t, tx.fills, 1)
	assert.Equal(t, int64(1), r.Stats().Enrichments)
}
