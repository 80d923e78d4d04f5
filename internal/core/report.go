package core

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
)

// reportDateLayout renders summary dates like "Sun Feb 25 2024".
const reportDateLayout = "Mon Jan 02 2006"

// EquipmentUsage aggregates imported sessions for one tyre or engine.
type EquipmentUsage struct {
	ID        uuid.UUID `json:"id"`
	Sessions  int       `json:"sessions"`
	TotalLaps int       `json:"totalLaps"`
}

// RunSummary is the operator-facing result of one import run.
type RunSummary struct {
	RunID     string `json:"runId"`
	UserID    string `json:"userId"`
	InputRows int    `json:"inputRows"`
	Succeeded int    `json:"succeeded"`
	Skipped   int    `json:"skipped"`
	Uploaded  int    `json:"uploaded"`

	RaceSessions     int `json:"raceSessions"`
	PracticeSessions int `json:"practiceSessions"`
	DistinctVenues   int `json:"distinctVenues"`

	FirstDate *time.Time `json:"firstDate,omitempty"`
	LastDate  *time.Time `json:"lastDate,omitempty"`

	Tyres   []EquipmentUsage `json:"tyres"`
	Engines []EquipmentUsage `json:"engines"`

	Lookups ResolverStats `json:"lookups"`
	Skips   []SkipRecord  `json:"skips"`
}

// Summarize aggregates outcomes in order. uploaded is the number of
// sessions the committer persisted; sessions are committed in outcome order,
// so the race, venue, date and equipment figures cover only the first
// uploaded sessions. It has no side effects.
func Summarize(outcomes []RowOutcome, uploaded int) RunSummary {
	s := RunSummary{
		InputRows: len(outcomes),
		Uploaded:  uploaded,
		Skips:     []SkipRecord{},
	}

	venues := make(map[uuid.UUID]struct{})
	tyres := make(map[uuid.UUID]*EquipmentUsage)
	engines := make(map[uuid.UUID]*EquipmentUsage)

	for _, o := range outcomes {
		if o.Skip != nil {
			s.Skipped++
			s.Skips = append(s.Skips, *o.Skip)
			continue
		}
		if o.Session == nil {
			continue
		}
		sess := o.Session
		s.Succeeded++
		if s.Succeeded > uploaded {
			continue
		}

		if sess.IsRace {
			s.RaceSessions++
		} else {
			s.PracticeSessions++
		}
		if sess.CircuitID != uuid.Nil {
			venues[sess.CircuitID] = struct{}{}
		}

		if sess.Date.Valid {
			d := sess.Date.Time
			if s.FirstDate == nil || d.Before(*s.FirstDate) {
				s.FirstDate = &d
			}
			if s.LastDate == nil || d.After(*s.LastDate) {
				s.LastDate = &d
			}
		}

		laps := 0
		if sess.Laps.Valid {
			laps = int(sess.Laps.Int32)
		}
		addUsage(tyres, sess.TyreID, laps)
		addUsage(engines, sess.EngineID, laps)
	}

	s.DistinctVenues = len(venues)
	s.Tyres = sortedUsage(tyres)
	s.Engines = sortedUsage(engines)
	return s
}

func addUsage(m map[uuid.UUID]*EquipmentUsage, id uuid.UUID, laps int) {
	if id == uuid.Nil {
		return
	}
	u, ok := m[id]
	if !ok {
		u = &EquipmentUsage{ID: id}
		m[id] = u
	}
	u.Sessions++
	u.TotalLaps += laps
}

// sortedUsage orders by session count, then id for stable output.
func sortedUsage(m map[uuid.UUID]*EquipmentUsage) []EquipmentUsage {
	out := make([]EquipmentUsage, 0, len(m))
	for _, u := range m {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sessions != out[j].Sessions {
			return out[i].Sessions > out[j].Sessions
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// PrintSummary writes the end-of-run report.
func PrintSummary(w io.Writer, s RunSummary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "--- Upload Summary ---")
	fmt.Fprintf(w, "Total sessions processed: %d\n", s.InputRows)
	fmt.Fprintf(w, "Sessions uploaded: %d\n", s.Uploaded)
	fmt.Fprintf(w, "Sessions skipped: %d\n", s.Skipped)
	fmt.Fprintf(w, "Race sessions: %d\n", s.RaceSessions)
	fmt.Fprintf(w, "Practice sessions: %d\n", s.PracticeSessions)
	fmt.Fprintf(w, "Circuits used: %d\n", s.DistinctVenues)
	if s.FirstDate != nil && s.LastDate != nil {
		fmt.Fprintf(w, "Date range: %s to %s\n",
			s.FirstDate.Local().Format(reportDateLayout),
			s.LastDate.Local().Format(reportDateLayout))
	}

	if len(s.Skips) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "--- Skipped Records ---")
	for _, sk := range s.Skips {
		fmt.Fprintf(w, "Row %d (ID: %s): %s [%s]\n", sk.Row, sk.SourceID, sk.Reason, sk.Code)
		fmt.Fprintf(w, "  Session: %s at %s\n", sk.Session, sk.Circuit)
		fmt.Fprintf(w, "  Tyres: %s, Engine: %s\n", sk.Tyres, sk.Engine)
	}
}

// ConsoleProgress returns a ProgressFunc printing one line per row, skip and batch.
func ConsoleProgress(w io.Writer) ProgressFunc {
	return func(ev ProgressEvent) {
		switch ev.Kind {
		case ProgressParsed:
			fmt.Fprintf(w, "Found %d records\n", ev.TotalRows)
		case ProgressRow:
			if ev.Raw != nil {
				fmt.Fprintf(w, "Processing session %d/%d: %s at %s\n",
					ev.Row, ev.TotalRows, ev.Raw.Get(ColSession), ev.Raw.Get(ColCircuit))
			}
		case ProgressSkip:
			if ev.Skip != nil {
				fmt.Fprintf(w, "SKIPPING ROW %d (ID: %s): %s\n", ev.Skip.Row, ev.Skip.SourceID, ev.Skip.Reason)
			}
		case ProgressBatch:
			fmt.Fprintf(w, "Uploaded batch: %d/%d sessions\n", ev.Uploaded, ev.ToUpload)
		case ProgressCommitted:
			fmt.Fprintf(w, "Successfully uploaded %d sessions!\n", ev.Uploaded)
		}
	}
}
