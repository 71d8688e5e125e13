package extract

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/recall-cli/internal/fetcher"
	"github.com/sells-group/recall-cli/internal/model"
)

const vinLength = 17

// vinPattern is the full-VIN check: 17 characters, alphanumeric minus I, O, Q.
var vinPattern = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

// vinColumnPriority is searched in order before falling back to a whole-row
// scan. Names are matched case- and whitespace-insensitively.
var vinColumnPriority = []string{
	"SERIAL NO",
	"SERIAL NO.",
	"SERIAL NUMBER",
	"VIN",
	"VIN NO",
	"VIN NUMBER",
	"VEHICLE ID",
	"VEHICLE IDENTIFICATION NUMBER",
}

// ColumnNotFoundError reports a manually specified column letter that does
// not exist in the sheet. Available lists the sheet's columns so the caller
// can self-diagnose.
type ColumnNotFoundError struct {
	Letter    string
	Available []string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("extract: column %q not found (available: %s)", e.Letter, strings.Join(e.Available, ", "))
}

// Result is the extractor's output: deduplicated valid records, the audit
// trail of rejected rows, and which column supplied the VINs.
type Result struct {
	Records   []model.VinRecord
	Invalid   []model.InvalidRow
	Column    string   // column name actually used, for downstream messaging
	Available []string // sheet columns, reported when nothing was extracted
}

// Extract pulls VINs out of the decoded rows. columnLetter optionally pins
// the VIN column ("A", "AB"); when empty, the priority list and then a
// whole-row pattern scan decide per row. Duplicate VINs resolve by the
// (hasDate, openedAt, firstSeen) order described on pickWinner.
func Extract(header []string, rows []model.RawRow, columnLetter string) (*Result, error) {
	res := &Result{Available: cleanHeader(header)}

	var pinned string
	if columnLetter != "" {
		idx := fetcher.ColumnIndex(columnLetter)
		if idx < 0 || idx >= len(header) || strings.TrimSpace(header[idx]) == "" {
			return nil, &ColumnNotFoundError{Letter: columnLetter, Available: res.Available}
		}
		pinned = strings.TrimSpace(header[idx])
		res.Column = pinned
	}

	byVIN := make(map[string]model.VinRecord)
	var order []string // VINs in first-seen order

	for _, row := range rows {
		value, column := findCandidate(row, pinned)

		if value == "" {
			res.Invalid = append(res.Invalid, model.InvalidRow{
				Source: row,
				Column: column,
				Reason: model.ReasonMissing,
			})
			continue
		}

		vin := strings.ToUpper(value)
		if reason, ok := classify(vin); !ok {
			res.Invalid = append(res.Invalid, model.InvalidRow{
				Source: row,
				Value:  value,
				Column: column,
				Reason: reason,
			})
			continue
		}

		if res.Column == "" {
			res.Column = column
		}

		rec := model.VinRecord{
			VIN:       vin,
			Source:    row,
			OpenedAt:  openedDate(row),
			FirstSeen: row.Index,
		}

		prev, dup := byVIN[vin]
		if !dup {
			byVIN[vin] = rec
			order = append(order, vin)
			continue
		}
		if winner := pickWinner(prev, rec); winner.FirstSeen != prev.FirstSeen {
			byVIN[vin] = winner
		}
	}

	for _, vin := range order {
		res.Records = append(res.Records, byVIN[vin])
	}

	zap.L().Debug("extract: finished",
		zap.Int("rows", len(rows)),
		zap.Int("vins", len(res.Records)),
		zap.Int("invalid", len(res.Invalid)),
		zap.String("column", res.Column),
	)

	return res, nil
}

// findCandidate locates the most plausible VIN value in a row. With a pinned
// column, only that column is consulted. Otherwise the priority columns are
// tried in order, then every column is scanned for a full-pattern match.
// Returns the value and the column it came from; value is "" when the row
// contributes nothing.
func findCandidate(row model.RawRow, pinned string) (string, string) {
	if pinned != "" {
		return row.Get(pinned), pinned
	}

	for _, want := range vinColumnPriority {
		for _, col := range row.Columns {
			if !foldEqual(col, want) {
				continue
			}
			if v := row.Get(col); v != "" {
				return v, col
			}
		}
	}

	for _, col := range row.Columns {
		if v := row.Get(col); vinPattern.MatchString(strings.ToUpper(v)) {
			return v, col
		}
	}

	return "", ""
}

// classify validates a candidate VIN, returning the rejection reason when it
// fails. Thresholds follow the report's audit categories: under 10 chars is
// noise, 10+ but not 17 is a truncated or padded VIN, 17 with bad characters
// is a transcription error.
func classify(vin string) (model.InvalidReason, bool) {
	switch {
	case len(vin) < 10:
		return model.ReasonTooShort, false
	case len(vin) != vinLength:
		return model.ReasonWrongLength, false
	case !vinPattern.MatchString(vin):
		return model.ReasonBadCharset, false
	}
	return "", true
}

// pickWinner resolves a duplicate VIN. The occurrence with the later opened
// date wins; a dated occurrence beats an undated one; otherwise the
// first-seen occurrence is kept. Total and deterministic regardless of
// input order.
func pickWinner(a, b model.VinRecord) model.VinRecord {
	switch {
	case a.OpenedAt == nil && b.OpenedAt == nil:
	case a.OpenedAt == nil:
		return b
	case b.OpenedAt == nil:
		return a
	case b.OpenedAt.After(*a.OpenedAt):
		return b
	case a.OpenedAt.After(*b.OpenedAt):
		return a
	}
	if b.FirstSeen < a.FirstSeen {
		return b
	}
	return a
}

func cleanHeader(header []string) []string {
	var cols []string
	for _, h := range header {
		if h = strings.TrimSpace(h); h != "" {
			cols = append(cols, h)
		}
	}
	return cols
}

func foldEqual(a, b string) bool {
	norm := func(s string) string {
		return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
	}
	return norm(a) == norm(b)
}
