package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/postpulse-cli/internal/analysis"
)

type csvParser struct{}

func (csvParser) CanParse(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv")
}

func (csvParser) Parse(path string, opt Options) (*analysis.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(path)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s", ErrEmpty, filepath.Base(path))
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		// Spreadsheet exports often lead with a UTF-8 BOM.
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := &analysis.Table{Name: filepath.Base(path), Header: header}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+2, err)
		}
		if blank(rec) {
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}
