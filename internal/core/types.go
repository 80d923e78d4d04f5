package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Column names of the session export. They must match the CSV header exactly.
const (
	ColID            = "ID"
	ColDate          = "Date"
	ColCircuit       = "Circuit"
	ColTemp          = "Temp"
	ColCondition     = "Condition"
	ColSession       = "Session"
	ColTyres         = "Tyres"
	ColEngine        = "Engine"
	ColRearSprocket  = "Rear Sprocket"
	ColFrontSprocket = "Front Sprocket"
	ColCaster        = "Caster"
	ColRideHeight    = "Ride Height"
	ColJet           = "Jet"
	ColRearInner     = "Rear inner"
	ColRearOuter     = "Rear outer"
	ColFrontInner    = "Front inner"
	ColFrontOuter    = "Front outer"
	ColLaps          = "Laps"
	ColFastest       = "Fastest"
	ColRace          = "Race"
	ColEntries       = "Entries"
	ColStartPos      = "Start Pos"
	ColEndPos        = "End Pos"
	ColPenalties     = "Penalities" // spelled as in the export
	ColNotes         = "Notes"
)

// ExpectedColumns lists the export header in its canonical order.
var ExpectedColumns = []string{
	ColID, ColDate, ColCircuit, ColTemp, ColCondition, ColSession, ColTyres,
	ColEngine, ColRearSprocket, ColFrontSprocket, ColCaster, ColRideHeight,
	ColJet, ColRearInner, ColRearOuter, ColFrontInner, ColFrontOuter, ColLaps,
	ColFastest, ColRace, ColEntries, ColStartPos, ColEndPos, ColPenalties,
	ColNotes,
}

// RaceMarker is the only Race column value that marks a race session.
const RaceMarker = "Y"

// DefaultSourceTag is recorded as ImportedFrom when none is configured.
const DefaultSourceTag = "csv"

// RawRow is one data line of the export keyed by header name.
type RawRow struct {
	Ordinal int // 1-based position among data rows
	Fields  map[string]string
}

// Get returns the value for a column, or "" if the column is absent.
func (r RawRow) Get(col string) string {
	return r.Fields[col]
}

// ReferenceKind identifies which reference collection a name is resolved against.
type ReferenceKind string

const (
	KindTrack  ReferenceKind = "track"
	KindTyre   ReferenceKind = "tyre"
	KindEngine ReferenceKind = "engine"
)

// ReferenceQuery is a single name lookup scoped to a kind and owner.
type ReferenceQuery struct {
	Kind   ReferenceKind
	Name   string
	UserID string
}

// ReferenceStore looks up reference ids by exact name.
// Implementations return at most limit ids in store order.
type ReferenceStore interface {
	FindReferences(ctx context.Context, q ReferenceQuery, limit int) ([]uuid.UUID, error)
}

// SessionStore appends sessions. CommitBatch must be atomic: either every
// session in the slice is persisted or none is.
type SessionStore interface {
	CommitBatch(ctx context.Context, sessions []CanonicalSession) error
}

// ResolvedRefs holds the reference ids a row needs before conversion.
type ResolvedRefs struct {
	CircuitID uuid.UUID
	TyreID    uuid.UUID
	EngineID  uuid.UUID
}

// Provenance records where an imported session came from.
type Provenance struct {
	ImportedFrom string
	SourceID     string // value of the export's ID column
	SourceRow    int
	ImportedAt   time.Time
}

// CanonicalSession is the typed, reference-resolved form of one export row.
// Nullable fields use pgtype values with Valid=false for missing data.
type CanonicalSession struct {
	ID     uuid.UUID // assigned at commit time
	UserID string

	Date      pgtype.Timestamptz
	CircuitID uuid.UUID
	Temp      pgtype.Float8
	Condition string
	Session   string

	TyreID   uuid.UUID
	EngineID uuid.UUID

	RearSprocket  pgtype.Int4
	FrontSprocket pgtype.Int4
	Caster        string
	RideHeight    string
	Jet           pgtype.Int4
	RearInner     pgtype.Float8
	RearOuter     pgtype.Float8
	FrontInner    pgtype.Float8
	FrontOuter    pgtype.Float8

	Laps    pgtype.Int4
	Fastest pgtype.Float8

	IsRace    bool
	Entries   pgtype.Int4
	StartPos  pgtype.Int4
	EndPos    pgtype.Int4
	Penalties string
	Notes     string

	Provenance Provenance
}

// SkipRecord describes a row that was excluded from the upload.
type SkipRecord struct {
	Row      int    `json:"row"`
	SourceID string `json:"sourceId"`
	Session  string `json:"session"`
	Circuit  string `json:"circuit"`
	Tyres    string `json:"tyres"`
	Engine   string `json:"engine"`
	Reason   string `json:"reason"`
	Code     string `json:"code"`
	Err      error  `json:"-"`
}

// RowOutcome is the result of processing one RawRow: exactly one of
// Session or Skip is set.
type RowOutcome struct {
	Ordinal int
	Session *CanonicalSession
	Skip    *SkipRecord
}

// Skipped reports whether the row was excluded from the upload.
func (o RowOutcome) Skipped() bool {
	return o.Skip != nil
}

// ProgressKind tags a ProgressEvent.
type ProgressKind string

const (
	ProgressParsed    ProgressKind = "parsed"
	ProgressRow       ProgressKind = "row"
	ProgressSkip      ProgressKind = "skip"
	ProgressBatch     ProgressKind = "batch"
	ProgressCommitted ProgressKind = "committed"
)

// ProgressEvent is emitted in input order while a run executes.
type ProgressEvent struct {
	Kind      ProgressKind
	Row       int // 1-based row for row/skip events
	TotalRows int
	Raw       *RawRow
	Skip      *SkipRecord
	Uploaded  int // cumulative sessions committed, for batch events
	ToUpload  int
}

// ProgressFunc receives progress events. It is called from the run's own
// goroutine only.
type ProgressFunc func(ProgressEvent)
