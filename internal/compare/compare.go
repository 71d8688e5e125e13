// Package compare cross-references a generated recall report against a
// reference document and finds the recall numbers the reference never
// mentions.
package compare

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/recall-cli/internal/fetcher"
	"github.com/sells-group/recall-cli/internal/model"
	"github.com/sells-group/recall-cli/internal/report"
)

// MissingColumnError means the reference document has no usable Title
// column. Available carries the column names that were present so the
// caller can show the user what the file actually contains.
type MissingColumnError struct {
	Wanted    string
	Available []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("compare: reference document has no %q column (available: %s)",
		e.Wanted, strings.Join(e.Available, ", "))
}

// EmptyInputError means the reference document has a header but zero data
// rows, so every recall would trivially come back missing.
type EmptyInputError struct {
	Path string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("compare: reference document %s has no data rows", e.Path)
}

// titleColumn finds the Title column case-insensitively: an exact fold
// match first, then any column whose name contains "title".
func titleColumn(header []string) (string, bool) {
	for _, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), "Title") {
			return col, true
		}
	}
	for _, col := range header {
		if strings.Contains(strings.ToUpper(col), "TITLE") {
			return col, true
		}
	}
	return "", false
}

// Run compares the Recall Data view of a generated report against the
// reference document and returns the (recall, asset) pairs whose recall
// number appears in no reference title. Each pair is reported once.
func Run(reportPath, referencePath string) ([]model.MissingRecall, error) {
	_, reportRows, err := fetcher.ReadSheet(reportPath, fetcher.Options{SheetName: report.SheetData})
	if err != nil {
		return nil, eris.Wrap(err, "compare: read report")
	}

	refHeader, refRows, err := fetcher.ReadSheet(referencePath, fetcher.Options{})
	if err != nil {
		return nil, eris.Wrap(err, "compare: read reference")
	}
	if len(refRows) == 0 {
		return nil, &EmptyInputError{Path: referencePath}
	}

	titleCol, ok := titleColumn(refHeader)
	if !ok {
		return nil, &MissingColumnError{Wanted: "Title", Available: refHeader}
	}

	titles := make([]string, 0, len(refRows))
	for _, row := range refRows {
		if t := row.Get(titleCol); t != "" {
			titles = append(titles, strings.ToUpper(t))
		}
	}

	// Test each unique recall number once, then re-expand to the rows
	// that carry an unfound number.
	var numbers []string
	seen := map[string]bool{}
	for _, row := range reportRows {
		num := strings.TrimSpace(row.Get("RECALL NO"))
		if num == "" || seen[num] {
			continue
		}
		seen[num] = true
		numbers = append(numbers, num)
	}

	unfound := map[string]bool{}
	for _, num := range numbers {
		if !mentioned(num, titles) {
			unfound[num] = true
		}
	}

	var missing []model.MissingRecall
	emitted := map[string]bool{}
	for _, row := range reportRows {
		num := strings.TrimSpace(row.Get("RECALL NO"))
		if !unfound[num] {
			continue
		}
		asset := row.Get("ASSET NO")
		key := num + "\x00" + asset
		if emitted[key] {
			continue
		}
		emitted[key] = true
		missing = append(missing, model.MissingRecall{
			AssetNo: asset,
			Number:  num,
			Type:    model.RecallType(row.Get("TYPE")),
		})
	}

	zap.L().Info("comparison complete",
		zap.Int("report_rows", len(reportRows)),
		zap.Int("unique_recalls", len(numbers)),
		zap.Int("missing", len(missing)),
	)
	return missing, nil
}

func mentioned(num string, titles []string) bool {
	needle := strings.ToUpper(num)
	for _, title := range titles {
		if strings.Contains(title, needle) {
			return true
		}
	}
	return false
}
