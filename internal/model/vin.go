package model

import "time"

// RawRow is one decoded spreadsheet row: an ordered column-name to cell-value
// mapping. Index is the zero-based position of the row in the source sheet
// (after the header) and is the row's stable identity.
type RawRow struct {
	Index   int               `json:"index"`
	Columns []string          `json:"columns"`
	Values  map[string]string `json:"values"`
}

// Get returns the cell value for the named column, or "" when absent.
func (r RawRow) Get(col string) string {
	return r.Values[col]
}

// VinRecord is a validated, deduplicated VIN plus the source row it was
// extracted from. Never mutated after creation; duplicate VINs replace the
// stored record wholesale.
type VinRecord struct {
	VIN       string     `json:"vin"`
	Source    RawRow     `json:"source"`
	OpenedAt  *time.Time `json:"opened_at,omitempty"`
	FirstSeen int        `json:"first_seen"` // source row index of the first sighting, dedup tie-break
}

// InvalidReason classifies why a candidate VIN value was rejected.
type InvalidReason string

const (
	ReasonTooShort    InvalidReason = "too_short"    // non-empty but fewer than 10 characters
	ReasonWrongLength InvalidReason = "wrong_length" // 10 or more characters but not 17
	ReasonBadCharset  InvalidReason = "bad_charset"  // 17 characters but contains I, O, Q or symbols
	ReasonMissing     InvalidReason = "missing"      // no candidate value anywhere in the row
)

// Describe renders the reason as report-facing text.
func (r InvalidReason) Describe() string {
	switch r {
	case ReasonTooShort:
		return "Value too short to be a VIN"
	case ReasonWrongLength:
		return "Wrong length (VINs are 17 characters)"
	case ReasonBadCharset:
		return "Contains characters not allowed in a VIN"
	case ReasonMissing:
		return "No VIN found in row"
	default:
		return string(r)
	}
}

// InvalidRow is a source row that yielded no valid VIN, retained for the
// "Invalid VINs" report view. Identity is Source.Index, so a bad row is
// listed exactly once no matter how its cells compare to other rows.
type InvalidRow struct {
	Source RawRow        `json:"source"`
	Value  string        `json:"value"`
	Column string        `json:"column"`
	Reason InvalidReason `json:"reason"`
}
