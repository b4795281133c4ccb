package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/postpulse-cli/internal/analysis"
)

// Options selects what to read from a file. Zero values pick the defaults:
// comma (or tab for .tsv) and the first sheet.
type Options struct {
	Delimiter  rune
	SheetName  string
	SheetIndex int // 1-based
}

// Parser reads one tabular file format into a raw table.
type Parser interface {
	CanParse(filename string) bool
	Parse(path string, opt Options) (*analysis.Table, error)
}

var registry []Parser

// Register adds a parser implementation to the registry.
func Register(p Parser) {
	registry = append(registry, p)
}

// ParseFile selects a parser based on filename and reads the file into a table.
func ParseFile(path string, opt Options) (*analysis.Table, error) {
	for _, p := range registry {
		if p.CanParse(path) {
			return p.Parse(path, opt)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
}

// Supported reports whether any registered parser accepts filename.
func Supported(filename string) bool {
	for _, p := range registry {
		if p.CanParse(filename) {
			return true
		}
	}
	return false
}

func init() {
	Register(csvParser{})
	Register(xlsxParser{})
}

// ErrUnsupported indicates a format is not supported yet.
var ErrUnsupported = errors.New("unsupported file format")

// ErrEmpty is returned for files without a header row.
var ErrEmpty = errors.New("file has no header row")

// blank reports whether every cell of row is empty.
func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
