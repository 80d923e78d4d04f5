package core

// convert.go builds CanonicalSessions from export rows.
//
// A malformed number never fails a row. All ToPg* functions return pgtype
// values with Valid=false for empty or unparseable input.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Numeric cells are read by their leading number, so "12 laps" is 12 and
// "25.5psi" is 25.5. A cell that does not start with a number is null.
var (
	intPrefix   = regexp.MustCompile(`^[+-]?[0-9]+`)
	floatPrefix = regexp.MustCompile(`^[+-]?(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][+-]?[0-9]+)?`)
)

// ToPgFloat8 converts a string to pgtype.Float8 using its leading number.
func ToPgFloat8(s string) pgtype.Float8 {
	num := floatPrefix.FindString(strings.TrimSpace(s))
	if num == "" {
		return pgtype.Float8{Valid: false}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsInf(f, 0) {
		return pgtype.Float8{Valid: false}
	}
	return pgtype.Float8{Float64: f, Valid: true}
}

// ToPgInt4 converts a string to pgtype.Int4 using its leading digits.
// Decimal input is truncated toward zero ("14.5" -> 14).
func ToPgInt4(s string) pgtype.Int4 {
	num := intPrefix.FindString(strings.TrimSpace(s))
	if num == "" {
		return pgtype.Int4{Valid: false}
	}
	i, err := strconv.ParseInt(num, 10, 32)
	if err != nil {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(i), Valid: true}
}

// IsRaceMarker reports whether a Race cell marks a race session.
// Only the exact value "Y" counts; anything else, including "y", is practice.
func IsRaceMarker(s string) bool {
	return s == RaceMarker
}

// Converter maps a RawRow plus resolved references to a CanonicalSession.
type Converter struct {
	Dates     DateNormalizer
	SourceTag string
	Now       func() time.Time
}

// NewConverter returns a Converter with the default source tag and wall clock.
func NewConverter(dates DateNormalizer) *Converter {
	return &Converter{
		Dates:     dates,
		SourceTag: DefaultSourceTag,
		Now:       time.Now,
	}
}

// Convert builds the canonical session. refs must already be resolved.
func (c *Converter) Convert(row RawRow, refs ResolvedRefs, userID string) CanonicalSession {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	tag := c.SourceTag
	if tag == "" {
		tag = DefaultSourceTag
	}

	return CanonicalSession{
		UserID: userID,

		Date:      c.Dates.Normalize(row.Get(ColDate)),
		CircuitID: refs.CircuitID,
		Temp:      ToPgFloat8(row.Get(ColTemp)),
		Condition: row.Get(ColCondition),
		Session:   row.Get(ColSession),

		TyreID:   refs.TyreID,
		EngineID: refs.EngineID,

		RearSprocket:  ToPgInt4(row.Get(ColRearSprocket)),
		FrontSprocket: ToPgInt4(row.Get(ColFrontSprocket)),
		Caster:        row.Get(ColCaster),
		RideHeight:    row.Get(ColRideHeight),
		Jet:           ToPgInt4(row.Get(ColJet)),
		RearInner:     ToPgFloat8(row.Get(ColRearInner)),
		RearOuter:     ToPgFloat8(row.Get(ColRearOuter)),
		FrontInner:    ToPgFloat8(row.Get(ColFrontInner)),
		FrontOuter:    ToPgFloat8(row.Get(ColFrontOuter)),

		Laps:    ToPgInt4(row.Get(ColLaps)),
		Fastest: ToPgFloat8(row.Get(ColFastest)),

		IsRace:    IsRaceMarker(row.Get(ColRace)),
		Entries:   ToPgInt4(row.Get(ColEntries)),
		StartPos:  ToPgInt4(row.Get(ColStartPos)),
		EndPos:    ToPgInt4(row.Get(ColEndPos)),
		Penalties: row.Get(ColPenalties),
		Notes:     row.Get(ColNotes),

		Provenance: Provenance{
			ImportedFrom: tag,
			SourceID:     row.Get(ColID),
			SourceRow:    row.Ordinal,
			ImportedAt:   now().UTC(),
		},
	}
}
