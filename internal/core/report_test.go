package core

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func session(circuit, tyre, engine uuid.UUID, race bool, laps int32, date time.Time) *CanonicalSession {
	s := &CanonicalSession{CircuitID: circuit, TyreID: tyre, EngineID: engine, IsRace: race}
	if laps > 0 {
		s.Laps = pgtype.Int4{Int32: laps, Valid: true}
	}
	if !date.IsZero() {
		s.Date = pgtype.Timestamptz{Time: date, Valid: true}
	}
	return s
}

func TestSummarize(t *testing.T) {
	pfi, whilton := uuid.New(), uuid.New()
	red, blue := uuid.New(), uuid.New()
	x30 := uuid.New()
	feb := time.Date(2024, 2, 25, 0, 0, 0, 0, time.UTC)
	may := time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC)

	skip := &SkipRecord{Row: 3, SourceID: "3", Reason: `track "Nowhere" not found`, Code: "REF002"}
	outcomes := []RowOutcome{
		{Ordinal: 1, Session: session(pfi, red, x30, true, 12, may)},
		{Ordinal: 2, Session: session(whilton, blue, x30, false, 20, feb)},
		{Ordinal: 3, Skip: skip},
		{Ordinal: 4, Session: session(pfi, red, x30, false, 0, time.Time{})},
	}

	s := Summarize(outcomes, 3)

	assert.Equal(t, 4, s.InputRows)
	assert.Equal(t, 3, s.Succeeded)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 3, s.Uploaded)
	assert.Equal(t, 1, s.RaceSessions)
	assert.Equal(t, 2, s.PracticeSessions)
	assert.Equal(t, 2, s.DistinctVenues)
	require.NotNil(t, s.FirstDate)
	require.NotNil(t, s.LastDate)
	assert.Equal(t, feb, *s.FirstDate)
	assert.Equal(t, may, *s.LastDate)
	assert.Equal(t, []SkipRecord{*skip}, s.Skips)

	require.Len(t, s.Tyres, 2)
	assert.Equal(t, EquipmentUsage{ID: red, Sessions: 2, TotalLaps: 12}, s.Tyres[0])
	assert.Equal(t, EquipmentUsage{ID: blue, Sessions: 1, TotalLaps: 20}, s.Tyres[1])
	assert.Equal(t, []EquipmentUsage{{ID: x30, Sessions: 3, TotalLaps: 32}}, s.Engines)
}

func TestSummarize_OnlyUploadedSessionsAreAggregated(t *testing.T) {
	pfi, whilton := uuid.New(), uuid.New()
	red, x30 := uuid.New(), uuid.New()
	day := func(d int) time.Time { return time.Date(2024, 2, d, 0, 0, 0, 0, time.UTC) }

	outcomes := []RowOutcome{
		{Ordinal: 1, Session: session(pfi, red, x30, false, 10, day(25))},
		{Ordinal: 2, Session: session(pfi, red, x30, false, 10, day(26))},
		{Ordinal: 3, Session: session(whilton, red, x30, true, 10, day(27))},
	}

	s := Summarize(outcomes, 2)

	assert.Equal(t, 3, s.Succeeded)
	assert.Equal(t, 2, s.Uploaded)
	assert.Equal(t, 2, s.PracticeSessions)
	assert.Zero(t, s.RaceSessions)
	assert.Equal(t, 1, s.DistinctVenues)
	require.NotNil(t, s.LastDate)
	assert.Equal(t, day(26), *s.LastDate)
	assert.Equal(t, []EquipmentUsage{{ID: red, Sessions: 2, TotalLaps: 20}}, s.Tyres)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, 0)
	assert.Zero(t, s.InputRows)
	assert.NotNil(t, s.Skips)
	assert.Nil(t, s.FirstDate)
	assert.Empty(t, s.Tyres)
}

func TestPrintSummary(t *testing.T) {
	first := time.Date(2024, 2, 25, 12, 0, 0, 0, time.Local)
	last := time.Date(2024, 5, 30, 12, 0, 0, 0, time.Local)
	s := RunSummary{
		InputRows: 3, Uploaded: 2, Skipped: 1, RaceSessions: 1, PracticeSessions: 1, DistinctVenues: 1,
		FirstDate: &first, LastDate: &last,
		Skips: []SkipRecord{{
			Row: 2, SourceID: "17", Session: "Heat 2", Circuit: "Nowhere", Tyres: "MG", Engine: "X30",
			Reason: `track "Nowhere" not found`, Code: "REF002",
		}},
	}

	var buf bytes.Buffer
	PrintSummary(&buf, s)
	out := buf.String()

	assert.Contains(t, out, "--- Upload Summary ---")
	assert.Contains(t, out, "Total sessions processed: 3\n")
	assert.Contains(t, out, "Sessions uploaded: 2\n")
	assert.Contains(t, out, "Sessions skipped: 1\n")
	assert.Contains(t, out, "Race sessions: 1\n")
	assert.Contains(t, out, "Practice sessions: 1\n")
	assert.Contains(t, out, "Circuits used: 1\n")
	assert.Contains(t, out, "Date range: Sun Feb 25 2024 to Thu May 30 2024\n")
	assert.Contains(t, out, "--- Skipped Records ---")
	assert.Contains(t, out, `Row 2 (ID: 17): track "Nowhere" not found [REF002]`)
	assert.Contains(t, out, "  Session: Heat 2 at Nowhere\n")
	assert.Contains(t, out, "  Tyres: MG, Engine: X30\n")
}

func TestPrintSummary_NoSkipsNoDates(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, RunSummary{InputRows: 1, Uploaded: 1})
	assert.NotContains(t, buf.String(), "Date range")
	assert.NotContains(t, buf.String(), "Skipped Records")
}

func TestConsoleProgress(t *testing.T) {
	var buf bytes.Buffer
	progress := ConsoleProgress(&buf)
	raw := RawRow{Ordinal: 1, Fields: map[string]string{ColSession: "Heat 1", ColCircuit: "PFI"}}

	progress(ProgressEvent{Kind: ProgressParsed, TotalRows: 2})
	progress(ProgressEvent{Kind: ProgressRow, Row: 1, TotalRows: 2, Raw: &raw})
	progress(ProgressEvent{Kind: ProgressSkip, Skip: &SkipRecord{Row: 2, SourceID: "9", Reason: "tyre name is required", Err: errors.New("x")}})
	progress(ProgressEvent{Kind: ProgressBatch, Uploaded: 1, ToUpload: 1})
	progress(ProgressEvent{Kind: ProgressCommitted, Uploaded: 1})

	assert.Equal(t, "Found 2 records\n"+
		"Processing session 1/2: Heat 1 at PFI\n"+
		"SKIPPING ROW 2 (ID: 9): tyre name is required\n"+
		"Uploaded batch: 1/1 sessions\n"+
		"Successfully uploaded 1 sessions!\n", buf.String())
}
