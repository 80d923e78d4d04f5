package core

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// epochMillisRegex matches exported timestamp cells such as "1748595457138".
// It must be checked before any layout parsing: a 13-digit number would
// otherwise be read by the compact layouts as a wildly wrong calendar date.
var epochMillisRegex = regexp.MustCompile(`^[0-9]{13}$`)

// sessionDateLayouts are tried in order after the epoch check.
// Month comes before day, as in the export's US-locale sheet.
var sessionDateLayouts = []string{
	"1/2/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"01/02/2006",
	"01/02/2006 15:04:05",
	"1-2-2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC3339Nano,
	time.RFC3339,
	"Jan 2, 2006",
	"Jan 2, 2006 15:04:05",
	"January 2, 2006",
	"2 Jan 2006",
	"Mon Jan 02 2006",
}

// DateNormalizer converts export date cells into instants.
// Dates without an explicit offset are read in Location.
type DateNormalizer struct {
	Location *time.Location
}

// NewDateNormalizer returns a normalizer for loc, or time.Local if loc is nil.
func NewDateNormalizer(loc *time.Location) DateNormalizer {
	if loc == nil {
		loc = time.Local
	}
	return DateNormalizer{Location: loc}
}

// Normalize returns the instant encoded by s. Unrecognised or empty input
// yields an invalid (null) value rather than an error.
func (n DateNormalizer) Normalize(s string) pgtype.Timestamptz {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Timestamptz{Valid: false}
	}

	if epochMillisRegex.MatchString(s) {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return pgtype.Timestamptz{Valid: false}
		}
		return pgtype.Timestamptz{Time: time.UnixMilli(ms).UTC(), Valid: true}
	}

	loc := n.Location
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range sessionDateLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
		}
	}

	return pgtype.Timestamptz{Valid: false}
}
