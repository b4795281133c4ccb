package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/KaramelBytes/postpulse-cli/internal/analysis"
	"github.com/KaramelBytes/postpulse-cli/internal/parser"
)

// inputFlags are the reading and normalization flags shared by every command
// that loads a dataset.
type inputFlags struct {
	delimiter  string
	decimal    string
	thousands  string
	sheetName  string
	sheetIndex int
	baseline   string
}

func (in *inputFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&in.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (default by extension)")
	fs.StringVar(&in.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	fs.StringVar(&in.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	fs.StringVar(&in.sheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	fs.IntVar(&in.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	fs.StringVar(&in.baseline, "baseline", "", "baseline for comparisons: mean|median (overrides config)")
}

// reset restores defaults; cobra keeps flag state between Execute calls.
func (in *inputFlags) reset() {
	*in = inputFlags{sheetIndex: 1}
}

func (in *inputFlags) parserOptions() (parser.Options, error) {
	opt := parser.Options{SheetName: in.sheetName, SheetIndex: in.sheetIndex}
	if opt.SheetName == "" {
		opt.SheetName = currentConfig().SheetName
	}
	switch in.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	case "|", "pipe":
		opt.Delimiter = '|'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", in.delimiter)
	}
	return opt, nil
}

func (in *inputFlags) analysisOptions() (analysis.Options, error) {
	opt, err := currentConfig().AnalysisOptions(log)
	if err != nil {
		return opt, fmt.Errorf("config: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(in.decimal)) {
	case ",", "comma":
		opt.Numbers.DecimalSeparator = ','
	case ".", "dot":
		opt.Numbers.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", in.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(in.thousands)) {
	case ",":
		opt.Numbers.ThousandsSeparator = ','
	case ".":
		opt.Numbers.ThousandsSeparator = '.'
	case "space", " ":
		opt.Numbers.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", in.thousands)
	}
	if in.baseline != "" {
		kind, err := analysis.ParseBaselineKind(in.baseline)
		if err != nil {
			return opt, err
		}
		opt.Baseline = kind
	}
	return opt, nil
}

// loadTable reads path with the parser selected by its extension.
func (in *inputFlags) loadTable(path string) (*analysis.Table, error) {
	popt, err := in.parserOptions()
	if err != nil {
		return nil, err
	}
	return parser.ParseFile(path, popt)
}

// prepare reads path and builds an analysis run from it.
func (in *inputFlags) prepare(path string) (*analysis.Run, error) {
	aopt, err := in.analysisOptions()
	if err != nil {
		return nil, err
	}
	tbl, err := in.loadTable(path)
	if err != nil {
		return nil, err
	}
	return analysis.Prepare(tbl, aopt)
}
