package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefs struct {
	mu    sync.Mutex
	ids   map[ReferenceQuery][]uuid.UUID
	err   error
	calls []ReferenceQuery
}

func newFakeRefs() *fakeRefs {
	return &fakeRefs{ids: make(map[ReferenceQuery][]uuid.UUID)}
}

func (f *fakeRefs) add(kind ReferenceKind, user, name string) uuid.UUID {
	id := uuid.New()
	q := ReferenceQuery{Kind: kind, Name: name, UserID: user}
	f.ids[q] = append(f.ids[q], id)
	return id
}

func (f *fakeRefs) FindReferences(_ context.Context, q ReferenceQuery, limit int) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, q)
	if f.err != nil {
		return nil, f.err
	}
	ids := f.ids[q]
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeRefs) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestResolve_Unique(t *testing.T) {
	refs := newFakeRefs()
	id := refs.add(KindTrack, "u1", "PFI")
	r, err := NewResolver(refs, 16, nil)
	require.NoError(t, err)

	got, err := r.Resolve(context.Background(), ReferenceQuery{Kind: KindTrack, Name: "PFI", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestResolve_Failures(t *testing.T) {
	refs := newFakeRefs()
	refs.add(KindTyre, "u1", "MG Red")
	refs.add(KindTyre, "u1", "MG Red")
	refs.add(KindTrack, "u2", "PFI")
	r, err := NewResolver(refs, 16, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = r.Resolve(ctx, ReferenceQuery{Kind: KindTrack, Name: "PFI", UserID: "u1"})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf, "references of other users are invisible")
	assert.Equal(t, KindTrack, nf.Kind)
	assert.Equal(t, `track "PFI" not found`, err.Error())

	_, err = r.Resolve(ctx, ReferenceQuery{Kind: KindTyre, Name: "MG Red", UserID: "u1"})
	var amb *AmbiguousError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, "MG Red", amb.Name)

	before := refs.callCount()
	_, err = r.Resolve(ctx, ReferenceQuery{Kind: KindEngine, Name: "", UserID: "u1"})
	assert.ErrorIs(t, err, ErrMissingName)
	assert.Equal(t, before, refs.callCount(), "blank names never reach the store")
}

func TestResolve_CachesAnswers(t *testing.T) {
	refs := newFakeRefs()
	refs.add(KindEngine, "u1", "X30")
	r, err := NewResolver(refs, 16, nil)
	require.NoError(t, err)
	ctx := context.Background()

	hit := ReferenceQuery{Kind: KindEngine, Name: "X30", UserID: "u1"}
	miss := ReferenceQuery{Kind: KindEngine, Name: "Rotax", UserID: "u1"}
	for i := 0; i < 3; i++ {
		_, err := r.Resolve(ctx, hit)
		require.NoError(t, err)
		_, err = r.Resolve(ctx, miss)
		require.Error(t, err)
	}

	assert.Equal(t, 2, refs.callCount())
	assert.Equal(t, ResolverStats{Lookups: 2, CacheHits: 4}, r.Stats())
}

func TestResolve_StoreErrorsNotCached(t *testing.T) {
	refs := newFakeRefs()
	id := refs.add(KindTrack, "u1", "PFI")
	refs.err = errors.New("connection refused")
	r, err := NewResolver(refs, 16, nil)
	require.NoError(t, err)
	ctx := context.Background()
	q := ReferenceQuery{Kind: KindTrack, Name: "PFI", UserID: "u1"}

	_, err = r.Resolve(ctx, q)
	var lookupErr *LookupError
	require.ErrorAs(t, err, &lookupErr)
	assert.ErrorIs(t, err, refs.err)

	refs.err = nil
	got, err := r.Resolve(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, 2, refs.callCount())
}

func TestResolve_CacheDisabled(t *testing.T) {
	refs := newFakeRefs()
	refs.add(KindTrack, "u1", "PFI")
	r, err := NewResolver(refs, -1, nil)
	require.NoError(t, err)

	q := ReferenceQuery{Kind: KindTrack, Name: "PFI", UserID: "u1"}
	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), q)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, refs.callCount())
}

func TestResolveRow_StopsAtFirstFailure(t *testing.T) {
	refs := newFakeRefs()
	refs.add(KindTyre, "u1", "MG")
	refs.add(KindEngine, "u1", "X30")
	r, err := NewResolver(refs, 16, nil)
	require.NoError(t, err)

	row := RawRow{Ordinal: 1, Fields: map[string]string{ColCircuit: "Nowhere", ColTyres: "MG", ColEngine: "X30"}}
	_, err = r.ResolveRow(context.Background(), row, "u1")

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, KindTrack, nf.Kind)
	assert.Equal(t, 1, refs.callCount())
}

func TestResolveRow_NotFoundPerKind(t *testing.T) {
	for _, kind := range []ReferenceKind{KindTrack, KindTyre, KindEngine} {
		t.Run(string(kind), func(t *testing.T) {
			refs := newFakeRefs()
			want := map[ReferenceKind]string{KindTrack: "PFI", KindTyre: "MG", KindEngine: "X30"}
			for k, name := range want {
				if k != kind {
					refs.add(k, "u1", name)
				}
			}
			r, err := NewResolver(refs, 16, nil)
			require.NoError(t, err)

			row := RawRow{Fields: map[string]string{ColCircuit: "PFI", ColTyres: "MG", ColEngine: "X30"}}
			_, err = r.ResolveRow(context.Background(), row, "u1")

			var nf *NotFoundError
			require.ErrorAs(t, err, &nf)
			assert.Equal(t, kind, nf.Kind)
			assert.True(t, IsRowError(err))
		})
	}
}
