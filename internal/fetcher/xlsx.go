package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/recall-cli/internal/model"
)

// Options configures sheet selection.
type Options struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadSheet reads an XLSX file and returns the header row plus one RawRow
// per data row. The first row names the columns; a duplicate column name
// keeps the first occurrence. Blank rows are skipped. RawRow.Index counts
// data rows from zero.
func ReadSheet(path string, opts Options) ([]string, []model.RawRow, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "fetcher: open xlsx")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, nil, err
	}

	if len(sheet.Rows) == 0 {
		return nil, nil, nil
	}

	header := rowToStrings(sheet.Rows[0])
	columns := make([]string, 0, len(header))
	seen := make(map[string]bool, len(header))
	for _, name := range header {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		columns = append(columns, name)
	}

	var rows []model.RawRow
	for _, r := range sheet.Rows[1:] {
		cells := rowToStrings(r)
		if blank(cells) {
			continue
		}

		values := make(map[string]string, len(columns))
		for j, name := range header {
			name = strings.TrimSpace(name)
			if name == "" || j >= len(cells) {
				continue
			}
			if _, ok := values[name]; ok {
				continue
			}
			values[name] = strings.TrimSpace(cells[j])
		}

		rows = append(rows, model.RawRow{
			Index:   len(rows),
			Columns: columns,
			Values:  values,
		})
	}

	return header, rows, nil
}

// ColumnIndex converts a spreadsheet column letter ("A", "Z", "AB") to a
// zero-based index. Returns -1 for anything that is not a column letter.
func ColumnIndex(letter string) int {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if letter == "" {
		return -1
	}
	idx := 0
	for _, c := range letter {
		if c < 'A' || c > 'Z' {
			return -1
		}
		idx = idx*26 + int(c-'A') + 1
	}
	return idx - 1
}

func getSheet(f *xlsx.File, opts Options) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("fetcher: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("fetcher: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
