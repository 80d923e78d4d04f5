package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/JonMunkholm/kartlog/internal/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindReferences_ExactMatchPerUserAndKind(t *testing.T) {
	s := New()
	ctx := context.Background()
	track := s.AddReference(core.KindTrack, "u1", "PFI")
	s.AddReference(core.KindTrack, "u2", "PFI")
	s.AddReference(core.KindTyre, "u1", "PFI")

	ids, err := s.FindReferences(ctx, core.ReferenceQuery{Kind: core.KindTrack, UserID: "u1", Name: "PFI"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{track}, ids)

	ids, err = s.FindReferences(ctx, core.ReferenceQuery{Kind: core.KindTrack, UserID: "u1", Name: "pfi"}, 2)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFindReferences_HonoursLimit(t *testing.T) {
	s := New()
	for i := 0; i < 3; i++ {
		s.AddReference(core.KindEngine, "u1", "X30")
	}

	ids, err := s.FindReferences(context.Background(), core.ReferenceQuery{Kind: core.KindEngine, UserID: "u1", Name: "X30"}, 2)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Equal(t, 1, s.LookupCount())
}

func TestCommitBatch_AppendsInOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CommitBatch(ctx, []core.CanonicalSession{{Session: "a"}, {Session: "b"}}))
	require.NoError(t, s.CommitBatch(ctx, []core.CanonicalSession{{Session: "c"}}))

	got := s.Sessions()
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Session)
	assert.Equal(t, "c", got[2].Session)
	assert.Equal(t, 2, s.CommitCount())
}

func TestCommitBatch_CancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.CommitBatch(ctx, []core.CanonicalSession{{}}), context.Canceled)
	assert.Empty(t, s.Sessions())
}

func TestFailureInjection(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	s.FailCommitsAfter(1, boom)
	require.NoError(t, s.CommitBatch(ctx, []core.CanonicalSession{{}}))
	assert.ErrorIs(t, s.CommitBatch(ctx, []core.CanonicalSession{{}}), boom)
	assert.Len(t, s.Sessions(), 1)

	s.FailLookups(boom)
	_, err := s.FindReferences(ctx, core.ReferenceQuery{Kind: core.KindTrack, Name: "x"}, 2)
	assert.ErrorIs(t, err, boom)
}
