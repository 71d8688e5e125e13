package compare

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/recall-cli/internal/model"
	"github.com/sells-group/recall-cli/internal/report"
)

func writeSheet(t *testing.T, path, sheetName string, rows [][]string) {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}
	require.NoError(t, f.Save(path))
}

func writeReport(t *testing.T, dir string, rows [][]string) string {
	t.Helper()
	path := filepath.Join(dir, "report.xlsx")
	all := append([][]string{{"ASSET NO", "VIN", "RECALL NO", "TYPE"}}, rows...)
	writeSheet(t, path, report.SheetData, all)
	return path
}

func writeReference(t *testing.T, dir string, header []string, titles []string) string {
	t.Helper()
	path := filepath.Join(dir, "reference.xlsx")
	rows := [][]string{header}
	for _, title := range titles {
		rows = append(rows, []string{"x", title})
	}
	writeSheet(t, path, "Sheet1", rows)
	return path
}

func TestRun_SubstringMatchIsFound(t *testing.T) {
	dir := t.TempDir()
	rep := writeReport(t, dir, [][]string{
		{"A-1", "VIN001", "24V684", "Recall"},
		{"A-2", "VIN002", "23E012", "Satisfaction"},
	})
	ref := writeReference(t, dir, []string{"ID", "Title"}, []string{
		"NHTSA 24V684 Brake Recall",
	})

	missing, err := Run(rep, ref)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "23E012", missing[0].Number)
	assert.Equal(t, "A-2", missing[0].AssetNo)
	assert.Equal(t, model.TypeSatisfaction, missing[0].Type)
}

func TestRun_CaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	rep := writeReport(t, dir, [][]string{
		{"A-1", "VIN001", "24v684", "Recall"},
	})
	ref := writeReference(t, dir, []string{"ID", "TITLE"}, []string{
		"nhtsa 24V684 brake recall",
	})

	missing, err := Run(rep, ref)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestRun_OncePerRecallAssetPair(t *testing.T) {
	dir := t.TempDir()
	rep := writeReport(t, dir, [][]string{
		{"A-1", "VIN001", "24V684", "Recall"},
		{"A-1", "VIN002", "24V684", "Recall"},
		{"A-2", "VIN003", "24V684", "Recall"},
	})
	ref := writeReference(t, dir, []string{"ID", "Title"}, []string{"unrelated campaign"})

	missing, err := Run(rep, ref)
	require.NoError(t, err)
	require.Len(t, missing, 2)
	assert.Equal(t, "A-1", missing[0].AssetNo)
	assert.Equal(t, "A-2", missing[1].AssetNo)
}

func TestRun_MissingTitleColumn(t *testing.T) {
	dir := t.TempDir()
	rep := writeReport(t, dir, [][]string{{"A-1", "VIN001", "24V684", "Recall"}})
	ref := writeReference(t, dir, []string{"ID", "Description"}, []string{"some campaign"})

	_, err := Run(rep, ref)
	var mce *MissingColumnError
	require.ErrorAs(t, err, &mce)
	assert.Equal(t, []string{"ID", "Description"}, mce.Available)
}

func TestRun_TitleLikeColumnAccepted(t *testing.T) {
	dir := t.TempDir()
	rep := writeReport(t, dir, [][]string{{"A-1", "VIN001", "24V684", "Recall"}})
	ref := writeReference(t, dir, []string{"ID", "Campaign Title"}, []string{"24V684 brakes"})

	missing, err := Run(rep, ref)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestRun_EmptyReference(t *testing.T) {
	dir := t.TempDir()
	rep := writeReport(t, dir, [][]string{{"A-1", "VIN001", "24V684", "Recall"}})
	ref := writeReference(t, dir, []string{"ID", "Title"}, nil)

	_, err := Run(rep, ref)
	var eie *EmptyInputError
	require.ErrorAs(t, err, &eie)
}

func TestWriter_BuildAndSave(t *testing.T) {
	w := NewWriter()
	w.now = func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }

	f, err := w.Build([]model.MissingRecall{
		{AssetNo: "A-1", Number: "24V684", Type: model.TypeRecall},
	})
	require.NoError(t, err)

	path, err := w.Save(t.TempDir(), f)
	require.NoError(t, err)
	assert.Contains(t, path, "missing-recalls-20250601-090000.xlsx")

	reopened, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := reopened.Sheet[SheetMissing]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "Recall/Safety Number", sheet.Rows[0].Cells[1].String())
	assert.Equal(t, "24V684", sheet.Rows[1].Cells[1].String())
}
