package extract

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/recall-cli/internal/model"
)

func row(t *testing.T, idx int, kv ...string) model.RawRow {
	t.Helper()
	require.Zero(t, len(kv)%2)
	r := model.RawRow{Index: idx, Values: map[string]string{}}
	for i := 0; i < len(kv); i += 2 {
		r.Columns = append(r.Columns, kv[i])
		r.Values[kv[i]] = kv[i+1]
	}
	return r
}

const (
	vinA = "1FTFW1ET1EFA12345"
	vinB = "1FTFW1ET2EFB00001"
)

func TestExtract_PriorityColumn(t *testing.T) {
	header := []string{"ASSET NO", "SERIAL NO", "STATION"}
	rows := []model.RawRow{
		row(t, 0, "ASSET NO", "A-1", "SERIAL NO", vinA, "STATION", "DFW"),
		row(t, 1, "ASSET NO", "A-2", "SERIAL NO", vinB, "STATION", "ORD"),
	}

	res, err := Extract(header, rows, "")
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "SERIAL NO", res.Column)
	assert.Equal(t, vinA, res.Records[0].VIN)
	assert.Equal(t, vinB, res.Records[1].VIN)
	assert.Empty(t, res.Invalid)
}

func TestExtract_AcceptedVINsSatisfyPattern(t *testing.T) {
	header := []string{"VIN"}
	inputs := []string{
		vinA,
		"1ftfw1et2efb00001", // lowercase normalized
		"1FTFW1ETIEFA12345", // contains I
		"1FTFW1ETOEFA12345", // contains O
		"1FTFW1ETQEFA12345", // contains Q
		"1FTFW1ET1EFA1234",  // 16 chars
	}
	var rows []model.RawRow
	for i, v := range inputs {
		rows = append(rows, row(t, i, "VIN", v))
	}

	res, err := Extract(header, rows, "")
	require.NoError(t, err)
	for _, rec := range res.Records {
		assert.Regexp(t, `^[A-HJ-NPR-Z0-9]{17}$`, rec.VIN)
	}
	assert.Len(t, res.Records, 2)
	assert.Len(t, res.Invalid, 4)
}

func TestExtract_InvalidClassification(t *testing.T) {
	header := []string{"SERIAL NO"}
	cases := []struct {
		value  string
		reason model.InvalidReason
	}{
		{"ABC12", model.ReasonTooShort},
		{"1FTFW1ET1EFA", model.ReasonWrongLength},
		{"1FTFW1ET1EFA1234567", model.ReasonWrongLength},
		{"1FTFW1ETIEFA12345", model.ReasonBadCharset},
	}

	for i, tc := range cases {
		t.Run(string(tc.reason)+fmt.Sprint(i), func(t *testing.T) {
			res, err := Extract(header, []model.RawRow{row(t, i, "SERIAL NO", tc.value)}, "")
			require.NoError(t, err)
			require.Len(t, res.Invalid, 1)
			assert.Equal(t, tc.reason, res.Invalid[0].Reason)
			assert.Equal(t, tc.value, res.Invalid[0].Value)
			assert.Equal(t, "SERIAL NO", res.Invalid[0].Column)
			assert.Empty(t, res.Records)
		})
	}
}

func TestExtract_RowWithNothingIsMissing(t *testing.T) {
	header := []string{"ASSET NO", "STATION"}
	res, err := Extract(header, []model.RawRow{row(t, 0, "ASSET NO", "A-1", "STATION", "DFW")}, "")
	require.NoError(t, err)
	require.Len(t, res.Invalid, 1)
	assert.Equal(t, model.ReasonMissing, res.Invalid[0].Reason)
}

func TestExtract_FallbackScanFindsVINAnywhere(t *testing.T) {
	header := []string{"ASSET NO", "NOTES"}
	rows := []model.RawRow{
		row(t, 0, "ASSET NO", "A-1", "NOTES", vinA),
	}

	res, err := Extract(header, rows, "")
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, vinA, res.Records[0].VIN)
	assert.Equal(t, "NOTES", res.Column)
}

func TestExtract_DedupLaterDateWins(t *testing.T) {
	header := []string{"SERIAL NO", "DATETIME OPEN"}

	early := row(t, 0, "SERIAL NO", vinA, "DATETIME OPEN", "4/29/2021")
	late := row(t, 1, "SERIAL NO", vinA, "DATETIME OPEN", "5/1/2021")

	for name, rows := range map[string][]model.RawRow{
		"early_first": {early, late},
		"late_first":  {late, early},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := Extract(header, rows, "")
			require.NoError(t, err)
			require.Len(t, res.Records, 1)
			assert.Equal(t, "5/1/2021", res.Records[0].Source.Get("DATETIME OPEN"))
		})
	}
}

func TestExtract_DedupDatedBeatsUndated(t *testing.T) {
	header := []string{"SERIAL NO", "DATETIME OPEN"}
	rows := []model.RawRow{
		row(t, 0, "SERIAL NO", vinA, "DATETIME OPEN", ""),
		row(t, 1, "SERIAL NO", vinA, "DATETIME OPEN", "4/29/2021"),
	}

	res, err := Extract(header, rows, "")
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, 1, res.Records[0].Source.Index)
}

func TestExtract_DedupNoDatesFirstSeenWins(t *testing.T) {
	header := []string{"SERIAL NO", "STATION"}
	rows := []model.RawRow{
		row(t, 0, "SERIAL NO", vinA, "STATION", "DFW"),
		row(t, 1, "SERIAL NO", vinA, "STATION", "ORD"),
	}

	res, err := Extract(header, rows, "")
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "DFW", res.Records[0].Source.Get("STATION"))
}

func TestExtract_ManualColumnLetter(t *testing.T) {
	header := []string{"ASSET NO", "IDENT"}
	rows := []model.RawRow{
		row(t, 0, "ASSET NO", "A-1", "IDENT", vinA),
	}

	res, err := Extract(header, rows, "B")
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "IDENT", res.Column)
}

func TestExtract_ColumnLetterOutOfRange(t *testing.T) {
	header := []string{"ASSET NO", "SERIAL NO"}

	_, err := Extract(header, nil, "Z")
	require.Error(t, err)

	var cnf *ColumnNotFoundError
	require.ErrorAs(t, err, &cnf)
	assert.Equal(t, "Z", cnf.Letter)
	assert.Equal(t, []string{"ASSET NO", "SERIAL NO"}, cnf.Available)
}

func TestExtract_ZeroVINsIsNotAnError(t *testing.T) {
	header := []string{"ASSET NO"}
	res, err := Extract(header, []model.RawRow{row(t, 0, "ASSET NO", "A-1")}, "")
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, []string{"ASSET NO"}, res.Available)
}
