package postgres

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/kartlog/internal/core"
	"github.com/jackc/pgx/v5"
)

const insertSessionSQL = `INSERT INTO sessions (
	id, user_id, date, circuit_id, temp, condition, session,
	tyre_id, engine_id,
	rear_sprocket, front_sprocket, caster, ride_height, jet,
	rear_inner, rear_outer, front_inner, front_outer,
	laps, fastest,
	is_race, entries, start_pos, end_pos, penalties, notes,
	imported_from, csv_id, source_row, imported_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7,
	$8, $9,
	$10, $11, $12, $13, $14,
	$15, $16, $17, $18,
	$19, $20,
	$21, $22, $23, $24, $25, $26,
	$27, $28, $29, $30
)`

// SessionStore appends imported sessions.
type SessionStore struct {
	db TxBeginner
}

// NewSessionStore creates a SessionStore over db.
func NewSessionStore(db TxBeginner) *SessionStore {
	return &SessionStore{db: db}
}

// CommitBatch inserts every session in one transaction. Each session is a
// separate INSERT queued on a single pgx.Batch round trip.
func (s *SessionStore) CommitBatch(ctx context.Context, sessions []core.CanonicalSession) error {
	if len(sessions) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	batch := &pgx.Batch{}
	for _, sess := range sessions {
		batch.Queue(insertSessionSQL, sessionArgs(sess)...)
	}

	results := tx.SendBatch(ctx, batch)
	for _, sess := range sessions {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("insert session for row %d: %w", sess.Provenance.SourceRow, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func sessionArgs(s core.CanonicalSession) []any {
	return []any{
		toPgUUID(s.ID), s.UserID, s.Date, toPgUUID(s.CircuitID), s.Temp, s.Condition, s.Session,
		toPgUUID(s.TyreID), toPgUUID(s.EngineID),
		s.RearSprocket, s.FrontSprocket, s.Caster, s.RideHeight, s.Jet,
		s.RearInner, s.RearOuter, s.FrontInner, s.FrontOuter,
		s.Laps, s.Fastest,
		s.IsRace, s.Entries, s.StartPos, s.EndPos, toPgText(s.Penalties), toPgText(s.Notes),
		s.Provenance.ImportedFrom, s.Provenance.SourceID, s.Provenance.SourceRow, s.Provenance.ImportedAt,
	}
}
