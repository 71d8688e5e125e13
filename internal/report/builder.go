package report

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/recall-cli/internal/model"
)

// Sheet names, in workbook order.
const (
	SheetGrouped    = "Grouped by Recall"
	SheetData       = "Recall Data"
	SheetNeedsEARec = "Needs EA (Recalls)"
	SheetNeedsEASat = "Needs EA (Satisfaction)"
	SheetNeedsWO    = "Needs WO"
	SheetInvalid    = "Invalid VINs"
)

var recallHeaders = []string{
	"ASSET NO", "YEAR", "MODEL", "MANUFACTURER", "STATION",
	"VIN", "RECALL NO", "TYPE", "EA NO", "WORK ORDER", "WO STATUS",
}

var needsEAHeaders = []string{"RECALL NO", "ASSET NO", "VIN", "STATION"}

var needsWOHeaders = []string{"RECALL NO", "EA NO", "ASSET NO", "VIN", "STATION", "WO STATUS"}

var invalidHeaders = []string{"ASSET NO", "STATION", "VALUE", "COLUMN", "REASON"}

// Builder assembles the multi-view workbook. Pure given its inputs; only
// the generated filename depends on the clock.
type Builder struct {
	now func() time.Time
}

// NewBuilder creates a Builder.
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// Build produces the workbook from scrape results and the extraction audit
// trail.
func (b *Builder) Build(results []*model.VinScrapeResult, invalid []model.InvalidRow) (*xlsx.File, error) {
	rows := BuildRows(results)

	f := xlsx.NewFile()

	if err := b.addGrouped(f, rows); err != nil {
		return nil, err
	}
	if err := b.addData(f, rows); err != nil {
		return nil, err
	}
	if err := b.addNeedsEA(f, SheetNeedsEARec, rows, model.TypeRecall); err != nil {
		return nil, err
	}
	if err := b.addNeedsEA(f, SheetNeedsEASat, rows, model.TypeSatisfaction); err != nil {
		return nil, err
	}
	if err := b.addNeedsWO(f, rows); err != nil {
		return nil, err
	}
	if err := b.addInvalid(f, invalid); err != nil {
		return nil, err
	}

	return f, nil
}

// Save writes the workbook under dir with a timestamped name and returns
// the full path.
func (b *Builder) Save(dir string, f *xlsx.File) (string, error) {
	name := fmt.Sprintf("recall-report-%s.xlsx", b.now().UTC().Format("20060102-150405"))
	path := filepath.Join(dir, name)
	if err := f.Save(path); err != nil {
		return "", eris.Wrap(err, "report: save workbook")
	}
	return path, nil
}

// addGrouped writes the outline view: each recall number is one group, the
// first row visible, the rest collapsed behind it. Outline state is
// presentation metadata only; cell content matches the flat view.
func (b *Builder) addGrouped(f *xlsx.File, rows []model.ReportRow) error {
	sheet, err := f.AddSheet(SheetGrouped)
	if err != nil {
		return eris.Wrap(err, "report: add grouped sheet")
	}
	addStringRow(sheet, recallHeaders...)
	sheet.SheetFormat.OutlineLevelRow = 1

	for _, g := range groupByRecall(rows) {
		for i, r := range g.Rows {
			row := addStringRow(sheet, recallCells(r)...)
			if i > 0 {
				row.OutlineLevel = 1
				row.Hidden = true
			}
		}
	}
	return nil
}

func (b *Builder) addData(f *xlsx.File, rows []model.ReportRow) error {
	sheet, err := f.AddSheet(SheetData)
	if err != nil {
		return eris.Wrap(err, "report: add data sheet")
	}
	addStringRow(sheet, recallHeaders...)
	for _, r := range rows {
		addStringRow(sheet, recallCells(r)...)
	}
	return nil
}

// addNeedsEA writes one of the per-type EA backlog views: rows of the given
// type still lacking an EA number, grouped with per-group subtotals and a
// grand total.
func (b *Builder) addNeedsEA(f *xlsx.File, name string, rows []model.ReportRow, typ model.RecallType) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "report: add sheet %s", name)
	}
	addStringRow(sheet, needsEAHeaders...)

	var filtered []model.ReportRow
	for _, r := range rows {
		if r.Type == typ && needsEA(r) {
			filtered = append(filtered, r)
		}
	}

	total := 0
	for _, g := range groupByRecall(filtered) {
		for _, r := range g.Rows {
			addStringRow(sheet, r.RecallNumber, r.AssetNo, r.VIN, r.Station)
		}
		subtotal(sheet, fmt.Sprintf("Subtotal %s", g.Number), len(g.Rows))
		total += len(g.Rows)
	}
	subtotal(sheet, "Grand Total", total)
	return nil
}

// addNeedsWO writes the work-order backlog: rows with an EA number but no
// usable work order value.
func (b *Builder) addNeedsWO(f *xlsx.File, rows []model.ReportRow) error {
	sheet, err := f.AddSheet(SheetNeedsWO)
	if err != nil {
		return eris.Wrap(err, "report: add needs-wo sheet")
	}
	addStringRow(sheet, needsWOHeaders...)

	var filtered []model.ReportRow
	for _, r := range rows {
		if needsWorkOrder(r) {
			filtered = append(filtered, r)
		}
	}

	total := 0
	for _, g := range groupByRecall(filtered) {
		for _, r := range g.Rows {
			addStringRow(sheet, r.RecallNumber, r.EANumber, r.AssetNo, r.VIN, r.Station, r.WorkOrderStatus)
		}
		subtotal(sheet, fmt.Sprintf("Subtotal %s", g.Number), len(g.Rows))
		total += len(g.Rows)
	}
	subtotal(sheet, "Grand Total", total)
	return nil
}

func (b *Builder) addInvalid(f *xlsx.File, invalid []model.InvalidRow) error {
	sheet, err := f.AddSheet(SheetInvalid)
	if err != nil {
		return eris.Wrap(err, "report: add invalid sheet")
	}
	addStringRow(sheet, invalidHeaders...)
	for _, ir := range invalid {
		addStringRow(sheet,
			Resolve(ir.Source, assetAliases),
			Resolve(ir.Source, stationAliases),
			ir.Value,
			ir.Column,
			ir.Reason.Describe(),
		)
	}
	return nil
}

func recallCells(r model.ReportRow) []string {
	return []string{
		r.AssetNo, r.Year, r.Model, r.Manufacturer, r.Station,
		r.VIN, r.RecallNumber, string(r.Type), r.EANumber, r.WorkOrder, r.WorkOrderStatus,
	}
}

func addStringRow(sheet *xlsx.Sheet, cells ...string) *xlsx.Row {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
	return row
}

// subtotal appends a label + count row.
func subtotal(sheet *xlsx.Sheet, label string, n int) {
	row := sheet.AddRow()
	row.AddCell().SetString(label)
	row.AddCell().SetInt(n)
}
