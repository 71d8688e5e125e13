package model

import "time"

// RunStatus represents the current state of a scan run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusExtracting RunStatus = "extracting"
	RunStatusScanning   RunStatus = "scanning"  // Phase 1: per-VIN primary lookups
	RunStatusResolving  RunStatus = "resolving" // Phase 3: per-recall-number EA lookups
	RunStatusReporting  RunStatus = "reporting"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// Run is one persisted scan of a fleet spreadsheet.
type Run struct {
	ID         string     `json:"id"`
	SourceFile string     `json:"source_file"`
	Status     RunStatus  `json:"status"`
	Result     *RunResult `json:"result,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// RunResult summarizes a finished run.
type RunResult struct {
	VINColumn     string `json:"vin_column,omitempty"`
	VINs          int    `json:"vins"`
	InvalidRows   int    `json:"invalid_rows"`
	Succeeded     int    `json:"succeeded"`
	Failed        int    `json:"failed"`
	UniqueRecalls int    `json:"unique_recalls"`
	ResolvedEAs   int    `json:"resolved_eas"`
	EASkipped     bool   `json:"ea_skipped,omitempty"` // registry auth never established
	ReportPath    string `json:"report_path,omitempty"`
	DurationMs    int64  `json:"duration_ms"`
	Error         string `json:"error,omitempty"`
}
