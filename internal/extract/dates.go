package extract

import (
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/recall-cli/internal/model"
)

// openedDateAliases are the columns consulted, in order, for the dedup
// tie-break date.
var openedDateAliases = []string{
	"DATETIME OPEN",
	"DATE OPENED",
	"OPENED",
	"OPEN DATE",
	"DATE IN",
	"DATE",
}

// dateLayouts cover the string encodings seen in fleet exports.
var dateLayouts = []string{
	"1/2/2006 15:04",
	"1/2/2006",
	"1/2/06",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// excelEpoch is the base for serial date numbers. Serial 61 = 1900-03-01;
// the 1900 leap-year bug makes serials below that ambiguous, and they are
// rejected rather than guessed at.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// openedDate finds and parses the row's "opened" date, or nil when no alias
// column holds a parseable value.
func openedDate(row model.RawRow) *time.Time {
	for _, want := range openedDateAliases {
		for _, col := range row.Columns {
			if !foldEqual(col, want) {
				continue
			}
			if t, ok := ParseDate(row.Get(col)); ok {
				return &t
			}
		}
	}
	return nil
}

// ParseDate parses a spreadsheet date value: either an Excel serial number
// or one of the known string layouts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		// Bounds keep us inside 1900-03-01 .. ~2173; anything else is not a date.
		if f < 61 || f > 100000 {
			return time.Time{}, false
		}
		return excelEpoch.AddDate(0, 0, int(f)), true
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
