package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/23atomist/electrion-PA/internal/model"
)

const (
	cachePrefix = "electiondb:"
	genKey      = cachePrefix + "gen"
)

// CachedStore wraps a primary Store with a Redis read-through cache for
// report queries. Ingestion goes to the primary store; a committed
// transaction invalidates every cached report.
//
// Report keys carry a generation number that every commit increments. A
// reader stores its result under the generation it saw before loading, so a
// result loaded before a commit is never served after that commit's
// increment. Between a primary commit and its increment, readers may still
// be served the previous generation. Abandoned generations expire with the
// TTL.
type CachedStore struct {
	Store
	rdb *redis.Client
	ttl time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		Store: primary,
		rdb:   rdb,
		ttl:   ttl,
	}
}

// --- Write path (invalidate on commit) ---

func (s *CachedStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &cachedTx{Tx: tx, cache: s}, nil
}

func (s *CachedStore) Reset(ctx context.Context) error {
	if err := s.Store.Reset(ctx); err != nil {
		return err
	}
	return s.Invalidate(ctx)
}

type cachedTx struct {
	Tx
	cache *CachedStore
}

func (t *cachedTx) Commit(ctx context.Context) error {
	if err := t.Tx.Commit(ctx); err != nil {
		return err
	}
	if err := t.cache.Invalidate(ctx); err != nil {
		// Stale reports expire with the TTL.
		slog.Warn("report cache invalidation failed", "err", err)
	}
	return nil
}

// Invalidate retires every cached report by starting a new generation.
func (s *CachedStore) Invalidate(ctx context.Context) error {
	if err := s.rdb.Incr(ctx, genKey).Err(); err != nil {
		return fmt.Errorf("bump cache generation: %w", err)
	}
	return nil
}

// generation returns the current cache generation. A missing key is
// generation zero.
func (s *CachedStore) generation(ctx context.Context) (int64, error) {
	gen, err := s.rdb.Get(ctx, genKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// --- Read-through (check cache first) ---

func (s *CachedStore) ListYears(ctx context.Context) ([]int, error) {
	return readThrough(ctx, s, "years", func() ([]int, error) {
		return s.Store.ListYears(ctx)
	})
}

func (s *CachedStore) ListOffices(ctx context.Context) ([]model.Office, error) {
	return readThrough(ctx, s, "offices", func() ([]model.Office, error) {
		return s.Store.ListOffices(ctx)
	})
}

func (s *CachedStore) PrecinctVotes(ctx context.Context, year int, officeCode string, parties []string) ([]model.PrecinctTally, error) {
	key := fmt.Sprintf("votes:%d:%s:%s", year, officeCode, strings.Join(parties, ","))
	return readThrough(ctx, s, key, func() ([]model.PrecinctTally, error) {
		return s.Store.PrecinctVotes(ctx, year, officeCode, parties)
	})
}

func (s *CachedStore) PrecinctRegistration(ctx context.Context, year int, parties []string) ([]model.PrecinctTally, error) {
	key := fmt.Sprintf("registration:%d:%s", year, strings.Join(parties, ","))
	return readThrough(ctx, s, key, func() ([]model.PrecinctTally, error) {
		return s.Store.PrecinctRegistration(ctx, year, parties)
	})
}

// --- Passthrough (not cached) ---

func (s *CachedStore) CountRows(ctx context.Context) ([]model.TableCount, error) {
	return s.Store.CountRows(ctx)
}

func (s *CachedStore) SampleJoined(ctx context.Context, limit int) ([]model.JoinedRow, error) {
	return s.Store.SampleJoined(ctx, limit)
}

func (s *CachedStore) Close() error {
	err := s.Store.Close()
	if cerr := s.rdb.Close(); err == nil {
		err = cerr
	}
	return err
}

// --- Cache helpers ---

func readThrough[T any](ctx context.Context, s *CachedStore, key string, load func() (T, error)) (T, error) {
	gen, err := s.generation(ctx)
	if err != nil {
		// Redis is unavailable; serve from the primary without caching.
		return load()
	}
	key = fmt.Sprintf("%s%d:%s", cachePrefix, gen, key)

	// Try cache.
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var v T
		if json.Unmarshal(data, &v) == nil {
			return v, nil
		}
	}

	// Cache miss: read from primary.
	v, err := load()
	if err != nil {
		return v, err
	}
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
	return v, nil
}
