package parser_test

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/postpulse-cli/internal/analysis"
	"github.com/KaramelBytes/postpulse-cli/internal/parser"
)

// writeWorkbook saves a workbook with one sheet per entry of sheets, in order.
func writeWorkbook(t *testing.T, names []string, sheets map[string][][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, name := range names {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	p := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, f.SaveAs(p))
	return p
}

func TestParseFileXLSX(t *testing.T) {
	p := writeWorkbook(t, []string{"汇总", "明细"}, map[string][][]any{
		"汇总": {
			{"数据ID", "7天阅读/播放"},
			{"p1", 120},
			{},
			{"p2", 45.5},
		},
		"明细": {
			{},
			{"data_id", "want_7d"},
			{"x", 3},
		},
	})

	tbl, err := parser.ParseFile(p, parser.Options{})
	require.NoError(t, err)
	assert.Equal(t, "export.xlsx", tbl.Name)
	assert.Equal(t, []string{"数据ID", "7天阅读/播放"}, tbl.Header)
	assert.Equal(t, [][]string{{"p1", "120"}, {"p2", "45.5"}}, tbl.Rows)

	tbl, err = parser.ParseFile(p, parser.Options{SheetName: "明细"})
	require.NoError(t, err)
	assert.Equal(t, "export.xlsx (sheet: 明细)", tbl.Name)
	assert.Equal(t, []string{"data_id", "want_7d"}, tbl.Header, "leading blank rows skipped")

	tbl, err = parser.ParseFile(p, parser.Options{SheetIndex: 2})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"x", "3"}}, tbl.Rows)
}

func TestParseFileXLSXSheetErrors(t *testing.T) {
	p := writeWorkbook(t, []string{"Data"}, map[string][][]any{"Data": {{"data_id"}}})

	_, err := parser.ParseFile(p, parser.Options{SheetName: "Missing"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Available sheets: Data"), err.Error())

	_, err = parser.ParseFile(p, parser.Options{SheetIndex: 3})
	assert.ErrorContains(t, err, "out of range")
}

func TestParseFileXLSXReadsRawCellValues(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"数据ID", "发文时间", "7天阅读/播放"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"p1", 45296, 1234}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"p2", 45296.375, 88}))

	date, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "B2", "B3", date))
	grouped, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "C2", "C3", grouped))

	p := filepath.Join(t.TempDir(), "dates.xlsx")
	require.NoError(t, f.SaveAs(p))

	tbl, err := parser.ParseFile(p, parser.Options{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"p1", "45296", "1234"}, {"p2", "45296.375", "88"}}, tbl.Rows)

	run, err := analysis.Prepare(tbl, analysis.Options{})
	require.NoError(t, err)
	recs := run.Records()
	require.Len(t, recs, 2)
	require.NotNil(t, recs[0].PublishTime, "date-styled cell parsed to null")
	assert.Equal(t, time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC), recs[0].PublishTime.UTC())
	require.NotNil(t, recs[1].PublishTime)
	assert.Equal(t, 9, recs[1].PublishTime.Hour())
	v, ok := recs[0].Value(analysis.Read7d)
	require.True(t, ok)
	assert.Equal(t, 1234.0, v)
}
