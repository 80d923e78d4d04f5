package postgres

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/kartlog/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// referenceTables maps each reference kind to its table. Table names are
// never taken from input.
var referenceTables = map[core.ReferenceKind]string{
	core.KindTrack:  "tracks",
	core.KindTyre:   "tyres",
	core.KindEngine: "engines",
}

// ReferenceStore resolves track, tyre and engine names.
type ReferenceStore struct {
	db DBTX
}

// NewReferenceStore creates a ReferenceStore over db.
func NewReferenceStore(db DBTX) *ReferenceStore {
	return &ReferenceStore{db: db}
}

// FindReferences returns up to limit ids whose name equals q.Name exactly,
// oldest first.
func (s *ReferenceStore) FindReferences(ctx context.Context, q core.ReferenceQuery, limit int) ([]uuid.UUID, error) {
	table, ok := referenceTables[q.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown reference kind %q", q.Kind)
	}

	query := fmt.Sprintf(
		"SELECT id FROM %s WHERE user_id = $1 AND name = $2 ORDER BY created_at, id LIMIT $3",
		table,
	)
	rows, err := s.db.Query(ctx, query, q.UserID, q.Name, limit)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}

	found, err := pgx.CollectRows(rows, pgx.RowTo[pgtype.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}

	ids := make([]uuid.UUID, 0, len(found))
	for _, id := range found {
		if id.Valid {
			ids = append(ids, uuid.UUID(id.Bytes))
		}
	}
	return ids, nil
}

// CreateReference inserts a reference and returns its id. Used for seeding.
func (s *ReferenceStore) CreateReference(ctx context.Context, kind core.ReferenceKind, userID, name string) (uuid.UUID, error) {
	table, ok := referenceTables[kind]
	if !ok {
		return uuid.Nil, fmt.Errorf("unknown reference kind %q", kind)
	}

	id := uuid.New()
	query := fmt.Sprintf("INSERT INTO %s (id, user_id, name) VALUES ($1, $2, $3)", table)
	if _, err := s.db.Exec(ctx, query, toPgUUID(id), userID, name); err != nil {
		return uuid.Nil, fmt.Errorf("insert %s: %w", table, err)
	}
	return id, nil
}
