package compare

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/recall-cli/internal/model"
)

// SheetMissing is the single sheet of the comparison output workbook.
const SheetMissing = "Missing Recalls"

var missingHeaders = []string{"ASSET NO", "Recall/Safety Number", "Type"}

// Writer assembles the comparison output workbook.
type Writer struct {
	now func() time.Time
}

// NewWriter creates a Writer.
func NewWriter() *Writer {
	return &Writer{now: time.Now}
}

// Build produces the Missing Recalls workbook.
func (w *Writer) Build(missing []model.MissingRecall) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetMissing)
	if err != nil {
		return nil, eris.Wrap(err, "compare: add missing sheet")
	}

	header := sheet.AddRow()
	for _, h := range missingHeaders {
		header.AddCell().SetString(h)
	}
	for _, m := range missing {
		row := sheet.AddRow()
		row.AddCell().SetString(m.AssetNo)
		row.AddCell().SetString(m.Number)
		row.AddCell().SetString(string(m.Type))
	}
	return f, nil
}

// Save writes the workbook under dir with a timestamped name and returns
// the full path.
func (w *Writer) Save(dir string, f *xlsx.File) (string, error) {
	name := fmt.Sprintf("missing-recalls-%s.xlsx", w.now().UTC().Format("20060102-150405"))
	path := filepath.Join(dir, name)
	if err := f.Save(path); err != nil {
		return "", eris.Wrap(err, "compare: save workbook")
	}
	return path, nil
}
