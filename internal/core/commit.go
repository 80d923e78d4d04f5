package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxBatchSize is the largest batch the session store accepts in one write.
const MaxBatchSize = 500

// Chunk splits sessions into contiguous groups of at most size, keeping order.
// The last group holds the remainder.
func Chunk(sessions []CanonicalSession, size int) [][]CanonicalSession {
	if size <= 0 || size > MaxBatchSize {
		size = MaxBatchSize
	}
	if len(sessions) == 0 {
		return nil
	}

	batches := make([][]CanonicalSession, 0, (len(sessions)+size-1)/size)
	for start := 0; start < len(sessions); start += size {
		end := start + size
		if end > len(sessions) {
			end = len(sessions)
		}
		batches = append(batches, sessions[start:end:end])
	}
	return batches
}

// Committer writes sessions to a SessionStore in bounded, sequential batches.
type Committer struct {
	store     SessionStore
	batchSize int
	recorder  Recorder
	newID     func() uuid.UUID
}

// NewCommitter creates a Committer. batchSize is clamped to 1..MaxBatchSize.
func NewCommitter(store SessionStore, batchSize int, rec Recorder) *Committer {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	if rec == nil {
		rec = NopRecorder{}
	}
	return &Committer{
		store:     store,
		batchSize: batchSize,
		recorder:  rec,
		newID:     uuid.New,
	}
}

// BatchSize returns the effective batch size.
func (c *Committer) BatchSize() int {
	return c.batchSize
}

// Commit assigns each session a fresh id and writes the batches one at a
// time. It returns the number of sessions persisted. On failure the returned
// count covers the batches committed before the failing one, and the error
// is a *BatchCommitError.
func (c *Committer) Commit(ctx context.Context, sessions []CanonicalSession, progress ProgressFunc) (int, error) {
	committed := 0
	for i, batch := range Chunk(sessions, c.batchSize) {
		if err := ctx.Err(); err != nil {
			return committed, &BatchCommitError{Batch: i + 1, Size: len(batch), Committed: committed, Err: err}
		}

		for j := range batch {
			batch[j].ID = c.newID()
		}

		start := time.Now()
		err := c.store.CommitBatch(ctx, batch)
		c.recorder.BatchCommitted(len(batch), time.Since(start), err)
		if err != nil {
			return committed, &BatchCommitError{
				Batch:     i + 1,
				Size:      len(batch),
				Committed: committed,
				Err:       fmt.Errorf("session store: %w", err),
			}
		}

		committed += len(batch)
		if progress != nil {
			progress(ProgressEvent{Kind: ProgressBatch, Uploaded: committed, ToUpload: len(sessions)})
		}
	}
	return committed, nil
}
