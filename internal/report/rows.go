package report

import (
	"sort"
	"strings"

	"github.com/sells-group/recall-cli/internal/model"
	"github.com/sells-group/recall-cli/internal/recall"
)

// Alias lists for resolving logical report fields against whatever the
// fleet export happened to call its columns. First non-empty match wins;
// matching is exact first, then case/whitespace-insensitive.
var (
	assetAliases   = []string{"ASSET NO", "ASSET NO.", "ASSET", "UNIT NO", "UNIT", "EQUIPMENT NO"}
	yearAliases    = []string{"YEAR", "MODEL YEAR", "YR"}
	modelAliases   = []string{"MODEL", "MODEL DESC", "MODEL DESCRIPTION"}
	makeAliases    = []string{"MANUFACTURER", "MAKE", "MFR"}
	stationAliases = []string{"STATION", "LOCATION", "DEPOT", "BASE"}
	woAliases      = []string{"WORK ORDER", "WORK ORDER NO", "WO", "WO NO"}
	woStatAliases  = []string{"WO STATUS", "WORK ORDER STATUS", "STATUS"}
)

// NoneValue is the explicit no-data marker the report renders instead of
// leaving cells blank.
const NoneValue = "NONE"

// Resolve finds the first alias with a non-empty value in the row.
func Resolve(row model.RawRow, aliases []string) string {
	for _, want := range aliases {
		if v := row.Get(want); v != "" {
			return v
		}
	}
	norm := func(s string) string {
		return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
	}
	for _, want := range aliases {
		for _, col := range row.Columns {
			if norm(col) != norm(want) {
				continue
			}
			if v := row.Get(col); v != "" {
				return v
			}
		}
	}
	return ""
}

// BuildRows flattens scrape results into one ReportRow per valid (VIN,
// recall) pair. VINs with no valid recall numbers contribute nothing: the
// report tracks recalls, not the fleet census.
func BuildRows(results []*model.VinScrapeResult) []model.ReportRow {
	var rows []model.ReportRow
	for _, res := range results {
		if !res.Primary.Success {
			continue
		}
		for _, entry := range res.Primary.Recalls {
			num := strings.TrimSpace(entry.Number)
			if recall.IsPlaceholder(num) {
				continue
			}

			ea := NoneValue
			if info, ok := res.RecallToEA[num]; ok && info.Exists && info.EANumber != "" {
				ea = info.EANumber
			}

			src := res.Record.Source
			rows = append(rows, model.ReportRow{
				AssetNo:         Resolve(src, assetAliases),
				Year:            Resolve(src, yearAliases),
				Model:           Resolve(src, modelAliases),
				Manufacturer:    Resolve(src, makeAliases),
				Station:         Resolve(src, stationAliases),
				VIN:             res.VIN,
				RecallNumber:    num,
				Type:            entry.Type,
				EANumber:        ea,
				WorkOrder:       Resolve(src, woAliases),
				WorkOrderStatus: Resolve(src, woStatAliases),
			})
		}
	}
	return rows
}

// needsEA reports whether the row still lacks an engineering authorization.
func needsEA(r model.ReportRow) bool {
	return r.EANumber == "" || r.EANumber == NoneValue
}

// needsWorkOrder reports whether the row has an EA but no usable work order.
func needsWorkOrder(r model.ReportRow) bool {
	if needsEA(r) {
		return false
	}
	switch strings.TrimSpace(r.WorkOrder) {
	case "", NoneValue, "--":
		return true
	}
	return false
}

// group is a set of report rows sharing one recall number.
type group struct {
	Number string
	Rows   []model.ReportRow
}

// groupByRecall partitions rows by recall number: groups with more than one
// row first, then singletons, each partition sorted lexicographically by
// number. Row order within a group follows input order.
func groupByRecall(rows []model.ReportRow) []group {
	byNum := make(map[string][]model.ReportRow)
	var order []string
	for _, r := range rows {
		if _, ok := byNum[r.RecallNumber]; !ok {
			order = append(order, r.RecallNumber)
		}
		byNum[r.RecallNumber] = append(byNum[r.RecallNumber], r)
	}

	var multi, single []string
	for _, num := range order {
		if len(byNum[num]) > 1 {
			multi = append(multi, num)
		} else {
			single = append(single, num)
		}
	}
	sort.Strings(multi)
	sort.Strings(single)

	groups := make([]group, 0, len(order))
	for _, num := range append(multi, single...) {
		groups = append(groups, group{Number: num, Rows: byNum[num]})
	}
	return groups
}
