package analysis

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Table is a raw, untyped table as read from an export: a header row and
// string cells. Empty cells are nulls.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// ColumnKind describes how a Column stores its values.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindNumeric
	KindTime
)

func (k ColumnKind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindTime:
		return "datetime"
	default:
		return "text"
	}
}

// Column is one named column of a Frame. Only the slice matching Kind is
// populated; Valid marks non-null cells.
type Column struct {
	Name  string
	Kind  ColumnKind
	Text  []string
	Num   []float64
	Time  []time.Time
	Valid []bool
}

// NullCount returns the number of null cells.
func (c Column) NullCount() int {
	n := 0
	for _, ok := range c.Valid {
		if !ok {
			n++
		}
	}
	return n
}

// String renders cell i, or "" when it is null.
func (c Column) String(i int) string {
	if i < 0 || i >= len(c.Valid) || !c.Valid[i] {
		return ""
	}
	switch c.Kind {
	case KindNumeric:
		return strconv.FormatFloat(c.Num[i], 'f', -1, 64)
	case KindTime:
		return c.Time[i].Format(time.RFC3339)
	default:
		return c.Text[i]
	}
}

// Frame is a column-oriented typed table. Frames are values: every
// transformation returns a new Frame and leaves its input untouched. Columns
// returned by accessors share storage with the frame and must not be modified.
type Frame struct {
	Name string
	cols []Column
	rows int
}

// NewFrame converts a raw table into a frame of text columns. Short rows are
// padded with nulls; cells beyond the header are dropped.
func NewFrame(t *Table) Frame {
	f := Frame{Name: t.Name, rows: len(t.Rows)}
	f.cols = make([]Column, len(t.Header))
	for j, h := range t.Header {
		c := Column{
			Name:  strings.TrimSpace(h),
			Kind:  KindText,
			Text:  make([]string, len(t.Rows)),
			Valid: make([]bool, len(t.Rows)),
		}
		for i, row := range t.Rows {
			if j >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[j])
			if v == "" {
				continue
			}
			c.Text[i] = v
			c.Valid[i] = true
		}
		f.cols[j] = c
	}
	return f
}

// Len returns the number of rows.
func (f Frame) Len() int { return f.rows }

// Columns returns the column names in order.
func (f Frame) Columns() []string {
	out := make([]string, len(f.cols))
	for i, c := range f.cols {
		out[i] = c.Name
	}
	return out
}

// Column returns the first column with the given name.
func (f Frame) Column(name string) (Column, bool) {
	for _, c := range f.cols {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// withColumn returns a copy of f with the named column replaced.
func (f Frame) withColumn(c Column) Frame {
	out := Frame{Name: f.Name, rows: f.rows, cols: make([]Column, len(f.cols))}
	copy(out.cols, f.cols)
	for i := range out.cols {
		if out.cols[i].Name == c.Name {
			out.cols[i] = c
			return out
		}
	}
	out.cols = append(out.cols, c)
	return out
}

// MetricValues returns the non-null values of metric m in row order.
func (f Frame) MetricValues(m Metric) []float64 {
	c, ok := f.Column(string(m))
	if !ok || c.Kind != KindNumeric {
		return nil
	}
	out := make([]float64, 0, len(c.Num))
	for i, v := range c.Num {
		if c.Valid[i] {
			out = append(out, v)
		}
	}
	return out
}

// Record is one post, with the stable identifier and row position carried
// alongside its values.
type Record struct {
	Row         int
	ID          string
	Title       string
	PublishLink string
	ContentType string
	PostType    string
	Source      string
	StyleInfo   string
	PublishTime *time.Time
	metrics     map[Metric]float64
}

// NewRecord builds a record directly from metric values.
func NewRecord(row int, id string, values map[Metric]float64) Record {
	r := Record{Row: row, ID: id, metrics: make(map[Metric]float64, len(values))}
	for m, v := range values {
		if math.IsNaN(v) {
			continue
		}
		r.metrics[m] = v
	}
	return r
}

// Value returns the record's value for m and whether it is non-null.
func (r Record) Value(m Metric) (float64, bool) {
	v, ok := r.metrics[m]
	return v, ok
}

// Records materializes every row of f in input order.
func (f Frame) Records() []Record {
	out := make([]Record, f.rows)
	for i := range out {
		out[i] = Record{Row: i, metrics: map[Metric]float64{}}
	}
	for _, spec := range []struct {
		name string
		dst  func(*Record, string)
	}{
		{ColID, func(r *Record, s string) { r.ID = s }},
		{ColTitle, func(r *Record, s string) { r.Title = s }},
		{ColPublishLink, func(r *Record, s string) { r.PublishLink = s }},
		{ColContentType, func(r *Record, s string) { r.ContentType = s }},
		{ColPostType, func(r *Record, s string) { r.PostType = s }},
		{ColSource, func(r *Record, s string) { r.Source = s }},
		{ColStyleInfo, func(r *Record, s string) { r.StyleInfo = s }},
	} {
		c, ok := f.Column(spec.name)
		if !ok {
			continue
		}
		for i := range out {
			spec.dst(&out[i], c.String(i))
		}
	}
	if c, ok := f.Column(ColPublishTime); ok && c.Kind == KindTime {
		for i := range out {
			if c.Valid[i] {
				t := c.Time[i]
				out[i].PublishTime = &t
			}
		}
	}
	for _, m := range Metrics {
		c, ok := f.Column(string(m))
		if !ok || c.Kind != KindNumeric {
			continue
		}
		for i := range out {
			if c.Valid[i] {
				out[i].metrics[m] = c.Num[i]
			}
		}
	}
	return out
}

// NumberFormat selects separators for numeric parsing. Zero values auto-detect.
type NumberFormat struct {
	DecimalSeparator   rune
	ThousandsSeparator rune
}

func parseNumeric(s string, nf NumberFormat) (float64, bool) {
	raw := strings.TrimSpace(s)
	if strings.Contains(raw, "%") {
		raw = strings.ReplaceAll(raw, "%", "")
	}
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	dec := nf.DecimalSeparator
	thou := nf.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0:
			if cpos > dpos {
				dec, thou = ',', '.'
			} else {
				dec, thou = '.', ','
			}
		case cpos >= 0 && !looksGrouped(raw, ','):
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// looksGrouped reports whether every sep in s is followed by exactly three
// digits, as in "12,345,678".
func looksGrouped(s string, sep rune) bool {
	parts := strings.Split(s, string(sep))
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

var timeLayouts = []string{
	time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04",
	"2006-01-02", "2006-1-2", "2006/01/02", "2006/1/2", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-1-2 15:04", "2006-1-2 15:04:05",
	"2006/01/02 15:04", "2006/01/02 15:04:05", "2006/1/2 15:04", "2006/1/2 15:04:05",
	"1/2/2006 15:04", "1/2/2006 15:04:05",
	"2006年01月02日", "2006年1月2日", "2006年1月2日 15:04", "2006年1月2日 15:04:05",
}

func parseTimeMaybe(s string) (time.Time, bool) {
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// quantile interpolates linearly between closest ranks of an ascending slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	// lo + (hi-lo)*w is exact when the neighbours are equal.
	return sorted[lo] + (sorted[hi]-sorted[lo])*w
}
