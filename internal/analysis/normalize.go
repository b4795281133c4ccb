package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/xuri/excelize/v2"
)

// Normalizer turns a raw export into a canonical frame. Each stage is a pure
// Frame -> Frame function; Process runs them in fixed order.
type Normalizer struct {
	HeaderMap map[string]string
	Numbers   NumberFormat
}

// NewNormalizer returns a normalizer using headerMap, or DefaultHeaderMap when nil.
func NewNormalizer(headerMap map[string]string, nf NumberFormat) *Normalizer {
	if headerMap == nil {
		headerMap = DefaultHeaderMap()
	}
	return &Normalizer{HeaderMap: headerMap, Numbers: nf}
}

// Process runs rename, numeric coercion, timestamp parsing and categorical
// defaults, in that order.
func (n *Normalizer) Process(t *Table) Frame {
	f := NewFrame(t)
	f = Rename(f, n.HeaderMap)
	f = CoerceNumeric(f, Metrics, n.Numbers)
	f = ParseTimestamp(f)
	f = FillCategoricalDefaults(f, TextColumns)
	return f
}

// Rename maps accepted header spellings to canonical names. Lookup is exact
// first, then ignoring whitespace and case. Unmapped columns pass through. A
// column already carrying a canonical name keeps it; otherwise when two
// columns map to the same name the first one gets it.
func Rename(f Frame, headerMap map[string]string) Frame {
	compact := make(map[string]string, len(headerMap))
	for k, v := range headerMap {
		compact[foldHeader(k)] = v
	}
	// Unmapped names and columns already carrying their canonical name are
	// reserved; the remaining aliases claim targets in column order.
	taken := make(map[string]bool, len(f.cols))
	for _, c := range f.cols {
		if target, mapped := lookupHeader(c.Name, headerMap, compact); !mapped || target == c.Name {
			taken[c.Name] = true
		}
	}
	out := Frame{Name: f.Name, rows: f.rows, cols: make([]Column, len(f.cols))}
	for i, c := range f.cols {
		out.cols[i] = c
		target, ok := lookupHeader(c.Name, headerMap, compact)
		if !ok || taken[target] {
			continue
		}
		out.cols[i].Name = target
		taken[target] = true
	}
	return out
}

func lookupHeader(name string, exact, compact map[string]string) (string, bool) {
	if v, ok := exact[name]; ok {
		return v, true
	}
	v, ok := compact[foldHeader(name)]
	return v, ok
}

// foldHeader drops whitespace and case so "7天阅读 / 播放" matches "7天阅读/播放".
func foldHeader(s string) string {
	return strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s))
}

// CoerceNumeric parses the given metric columns as numbers. Cells that fail to
// parse become null.
func CoerceNumeric(f Frame, metrics []Metric, nf NumberFormat) Frame {
	for _, m := range metrics {
		c, ok := f.Column(string(m))
		if !ok || c.Kind != KindText {
			continue
		}
		nc := Column{
			Name:  c.Name,
			Kind:  KindNumeric,
			Num:   make([]float64, len(c.Text)),
			Valid: make([]bool, len(c.Text)),
		}
		for i, s := range c.Text {
			if !c.Valid[i] {
				continue
			}
			if v, ok := parseNumeric(s, nf); ok {
				nc.Num[i] = v
				nc.Valid[i] = true
			}
		}
		f = f.withColumn(nc)
	}
	return f
}

// ParseTimestamp parses publish_time. Unparseable cells become null.
func ParseTimestamp(f Frame) Frame {
	c, ok := f.Column(ColPublishTime)
	if !ok || c.Kind != KindText {
		return f
	}
	nc := Column{
		Name:  c.Name,
		Kind:  KindTime,
		Time:  make([]time.Time, len(c.Text)),
		Valid: make([]bool, len(c.Text)),
	}
	for i, s := range c.Text {
		if !c.Valid[i] {
			continue
		}
		if t, ok := parseTimestampCell(s); ok {
			nc.Time[i] = t
			nc.Valid[i] = true
		}
	}
	return f.withColumn(nc)
}

// Serial day numbers accepted as dates. 10000 is 1927-05-18; smaller whole
// numbers are more likely years or counts than dates. 2958465 is 9999-12-31.
const (
	minExcelSerial = 10000
	maxExcelSerial = 2958465
)

func parseTimestampCell(s string) (time.Time, bool) {
	if t, ok := parseTimeMaybe(s); ok {
		return t, true
	}
	// Raw XLSX date cells arrive as serial day numbers.
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || v > maxExcelSerial {
		return time.Time{}, false
	}
	if v < minExcelSerial && v == math.Trunc(v) {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(v, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FillCategoricalDefaults replaces nulls with "" in the given text columns.
// Numeric nulls are left alone so statistics can exclude them.
func FillCategoricalDefaults(f Frame, columns []string) Frame {
	for _, name := range columns {
		c, ok := f.Column(name)
		if !ok || c.Kind != KindText {
			continue
		}
		nc := Column{
			Name:  c.Name,
			Kind:  KindText,
			Text:  append([]string(nil), c.Text...),
			Valid: make([]bool, len(c.Valid)),
		}
		for i := range nc.Valid {
			nc.Valid[i] = true
		}
		f = f.withColumn(nc)
	}
	return f
}

// Validate checks structural requirements. A missing identifier column fails
// the run; duplicate identifiers and null metric cells are warnings.
func Validate(f Frame) ValidationReport {
	rep := ValidationReport{Errors: []string{}, Warnings: []string{}, RowCount: f.Len()}
	id, ok := f.Column(ColID)
	if !ok {
		rep.Errors = append(rep.Errors, fmt.Sprintf("missing required column: %s", ColID))
	} else {
		seen := make(map[string]struct{}, f.Len())
		dups := 0
		for i := 0; i < f.Len(); i++ {
			k := id.String(i)
			if !id.Valid[i] {
				k = "\x00null"
			}
			if _, ok := seen[k]; ok {
				dups++
				continue
			}
			seen[k] = struct{}{}
		}
		if dups > 0 {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("found %d duplicate %s values", dups, ColID))
		}
	}
	for _, m := range Metrics {
		c, ok := f.Column(string(m))
		if !ok {
			continue
		}
		if n := c.NullCount(); n > 0 {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("column %s has %d null values", m, n))
		}
	}
	rep.Valid = len(rep.Errors) == 0
	return rep
}
