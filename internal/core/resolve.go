package core

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultLookupCacheSize bounds the number of memoized reference queries per run.
const DefaultLookupCacheSize = 1024

// lookupLimit is how many matches are requested from the store. Two is
// enough to tell a unique match from an ambiguous one.
const lookupLimit = 2

// resolution is a memoized answer to one ReferenceQuery.
type resolution struct {
	id  uuid.UUID
	err error
}

// ResolverStats counts store round trips and cache hits.
type ResolverStats struct {
	Lookups   int64 `json:"lookups"`
	CacheHits int64 `json:"cacheHits"`
}

// Resolver turns reference names into ids by exact-match lookup.
//
// Answers are memoized for the lifetime of the Resolver, which is one run.
// Definitive failures (not found, ambiguous) are memoized too;
// store errors are not, so a later row re-queries.
type Resolver struct {
	store    ReferenceStore
	cache    *lru.Cache[ReferenceQuery, resolution]
	recorder Recorder

	lookups   atomic.Int64
	cacheHits atomic.Int64
}

// NewResolver creates a Resolver. A cacheSize <= 0 disables memoization.
func NewResolver(store ReferenceStore, cacheSize int, rec Recorder) (*Resolver, error) {
	if rec == nil {
		rec = NopRecorder{}
	}
	r := &Resolver{store: store, recorder: rec}
	if cacheSize > 0 {
		cache, err := lru.New[ReferenceQuery, resolution](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create lookup cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Resolve returns the id of the single reference matching q.
func (r *Resolver) Resolve(ctx context.Context, q ReferenceQuery) (uuid.UUID, error) {
	if q.Name == "" {
		return uuid.Nil, &MissingNameError{Kind: q.Kind}
	}

	if r.cache != nil {
		if res, ok := r.cache.Get(q); ok {
			r.cacheHits.Add(1)
			r.recorder.ReferenceLookup(q.Kind, true, res.err)
			return res.id, res.err
		}
	}

	r.lookups.Add(1)
	ids, err := r.store.FindReferences(ctx, q, lookupLimit)
	if err != nil {
		err = &LookupError{Kind: q.Kind, Name: q.Name, Err: err}
		r.recorder.ReferenceLookup(q.Kind, false, err)
		return uuid.Nil, err
	}

	var res resolution
	switch len(ids) {
	case 0:
		res.err = &NotFoundError{Kind: q.Kind, Name: q.Name}
	case 1:
		res.id = ids[0]
	default:
		res.err = &AmbiguousError{Kind: q.Kind, Name: q.Name}
	}

	if r.cache != nil {
		r.cache.Add(q, res)
	}
	r.recorder.ReferenceLookup(q.Kind, false, res.err)
	return res.id, res.err
}

// ResolveRow resolves the circuit, tyre and engine of a row in that order,
// stopping at the first failure.
func (r *Resolver) ResolveRow(ctx context.Context, row RawRow, userID string) (ResolvedRefs, error) {
	var refs ResolvedRefs
	var err error

	if refs.CircuitID, err = r.Resolve(ctx, ReferenceQuery{Kind: KindTrack, Name: row.Get(ColCircuit), UserID: userID}); err != nil {
		return ResolvedRefs{}, err
	}
	if refs.TyreID, err = r.Resolve(ctx, ReferenceQuery{Kind: KindTyre, Name: row.Get(ColTyres), UserID: userID}); err != nil {
		return ResolvedRefs{}, err
	}
	if refs.EngineID, err = r.Resolve(ctx, ReferenceQuery{Kind: KindEngine, Name: row.Get(ColEngine), UserID: userID}); err != nil {
		return ResolvedRefs{}, err
	}
	return refs, nil
}

// Stats returns lookup counters accumulated so far.
func (r *Resolver) Stats() ResolverStats {
	return ResolverStats{
		Lookups:   r.lookups.Load(),
		CacheHits: r.cacheHits.Load(),
	}
}
