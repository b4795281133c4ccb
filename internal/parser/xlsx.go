package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/postpulse-cli/internal/analysis"
)

type xlsxParser struct{}

func (xlsxParser) CanParse(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".xlsx") || strings.HasSuffix(name, ".xlsm")
}

// Parse reads the selected sheet. The first non-blank row is the header.
func (xlsxParser) Parse(path string, opt Options) (*analysis.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet, err := pickSheet(f.GetSheetList(), opt, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	// Raw values keep dates as serial numbers and metrics unformatted.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	name := filepath.Base(path)
	if opt.SheetName != "" || opt.SheetIndex > 1 {
		name = fmt.Sprintf("%s (sheet: %s)", name, sheet)
	}
	t := &analysis.Table{Name: name}
	for _, row := range rows {
		if blank(row) {
			continue
		}
		if t.Header == nil {
			t.Header = row
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	if t.Header == nil {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, name)
	}
	return t, nil
}

func pickSheet(sheets []string, opt Options, file string) (string, error) {
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook '%s' has no sheets", file)
	}
	if opt.SheetName != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, opt.SheetName) {
				return s, nil
			}
		}
		return "", fmt.Errorf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
			opt.SheetName, file, strings.Join(sheets, ", "))
	}
	idx := opt.SheetIndex
	if idx <= 0 {
		idx = 1
	}
	if idx > len(sheets) {
		return "", fmt.Errorf("sheet index %d out of range for workbook '%s' (%d sheets)", idx, file, len(sheets))
	}
	return sheets[idx-1], nil
}
