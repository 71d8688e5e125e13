package model

// RecallType distinguishes safety recalls from customer-satisfaction
// campaigns.
type RecallType string

const (
	TypeRecall       RecallType = "Recall"
	TypeSatisfaction RecallType = "Satisfaction"
)

// RecallEntry is one recall or campaign discovered for a VIN by the primary
// source. Opaque to the pipeline beyond its number and type.
type RecallEntry struct {
	Number        string     `json:"number"`
	Type          RecallType `json:"type"`
	DiscoveredVia string     `json:"discovered_via,omitempty"`
}

// PrimaryOutcome is the tagged result of a Phase 1 lookup for one VIN.
type PrimaryOutcome struct {
	Success bool          `json:"success"`
	Recalls []RecallEntry `json:"recalls,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// EaInfo is the registry's resolution of one recall number to an internal
// engineering-authorization number. Resolved at most once per recall number
// per run; every VIN sharing the number observes the same value.
type EaInfo struct {
	Number   string `json:"number"`
	Exists   bool   `json:"exists"`
	EANumber string `json:"ea_number,omitempty"`
	Error    string `json:"error,omitempty"`
}

// VinScrapeResult accumulates everything learned about one VIN across both
// lookup phases. Phase 1 sets Primary; the fan-out step populates RecallToEA.
type VinScrapeResult struct {
	VIN        string            `json:"vin"`
	Record     VinRecord         `json:"record"`
	Primary    PrimaryOutcome    `json:"primary"`
	RecallToEA map[string]EaInfo `json:"recall_to_ea"`
}

// ReportRow is one flattened (VIN, recall) pair carrying the vehicle
// metadata the report views render.
type ReportRow struct {
	AssetNo         string     `json:"asset_no"`
	Year            string     `json:"year"`
	Model           string     `json:"model"`
	Manufacturer    string     `json:"manufacturer"`
	Station         string     `json:"station"`
	VIN             string     `json:"vin"`
	RecallNumber    string     `json:"recall_number"`
	Type            RecallType `json:"type"`
	EANumber        string     `json:"ea_number"`
	WorkOrder       string     `json:"work_order"`
	WorkOrderStatus string     `json:"work_order_status"`
}

// MissingRecall is one comparison-engine hit: a (recall, asset) pair from a
// generated report whose recall number appears nowhere in the reference
// document's title column.
type MissingRecall struct {
	AssetNo string     `json:"asset_no"`
	Number  string     `json:"number"`
	Type    RecallType `json:"type"`
}
