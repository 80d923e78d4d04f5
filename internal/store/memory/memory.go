// Package memory provides in-process reference and session stores.
// They back tests and dry runs; nothing is persisted.
package memory

import (
	"context"
	"sync"

	"github.com/JonMunkholm/kartlog/internal/core"
	"github.com/google/uuid"
)

// Reference is a stored track, tyre or engine.
type Reference struct {
	ID     uuid.UUID
	Kind   core.ReferenceKind
	UserID string
	Name   string
}

// Store implements core.ReferenceStore and core.SessionStore.
type Store struct {
	mu         sync.RWMutex
	references []Reference
	sessions   []core.CanonicalSession
	lookups    int
	commits    int

	lookupErr error
	commitErr error
	failAfter int
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// AddReference stores a reference and returns its new id.
// Duplicate names are allowed, matching the production store.
func (s *Store) AddReference(kind core.ReferenceKind, userID, name string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	s.references = append(s.references, Reference{ID: id, Kind: kind, UserID: userID, Name: name})
	return id
}

// FindReferences returns up to limit ids in insertion order.
func (s *Store) FindReferences(ctx context.Context, q core.ReferenceQuery, limit int) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}

	var ids []uuid.UUID
	for _, ref := range s.references {
		if ref.Kind != q.Kind || ref.UserID != q.UserID || ref.Name != q.Name {
			continue
		}
		ids = append(ids, ref.ID)
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	return ids, nil
}

// CommitBatch appends all sessions or, if the context is done, none.
func (s *Store) CommitBatch(ctx context.Context, sessions []core.CanonicalSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil && s.commits >= s.failAfter {
		return s.commitErr
	}
	s.commits++
	s.sessions = append(s.sessions, sessions...)
	return nil
}

// FailLookups makes every later FindReferences call return err. A nil err
// restores normal behaviour.
func (s *Store) FailLookups(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookupErr = err
}

// FailCommitsAfter lets n more batches succeed, then fails every later
// CommitBatch with err without storing anything.
func (s *Store) FailCommitsAfter(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
	s.failAfter = s.commits + n
}

// Sessions returns a copy of every committed session in commit order.
func (s *Store) Sessions() []core.CanonicalSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.CanonicalSession, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// LookupCount returns how many FindReferences calls reached the store.
func (s *Store) LookupCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookups
}

// CommitCount returns how many batches were committed.
func (s *Store) CommitCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}
