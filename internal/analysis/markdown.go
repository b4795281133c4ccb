package analysis

import (
	"fmt"
	"sort"
	"strings"
)

// Report bundles everything a run produces, ready for JSON or Markdown output.
type Report struct {
	RunID      string           `json:"run_id"`
	Name       string           `json:"name"`
	Validation ValidationReport `json:"validation"`
	Summary    Summary          `json:"summary"`
	Results    []RecordResult   `json:"results"`

	// MaxRecordRows caps the per-record table in Markdown; 0 means 50.
	MaxRecordRows int `json:"-"`
}

// BuildReport analyzes every record and summarizes the run.
func (r *Run) BuildReport() *Report {
	results := r.AnalyzeAll()
	return &Report{
		RunID:      r.ID,
		Name:       r.frame.Name,
		Validation: r.report,
		Summary:    r.summarize(results),
		Results:    results,
	}
}

// Markdown renders a compact digest suitable for prompts or standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Run: %s\n", r.RunID))
	b.WriteString(fmt.Sprintf("Posts: %d\n", r.Summary.TotalRecords))

	tiers := r.Summary.PerformanceDistribution
	b.WriteString(fmt.Sprintf("Performance: %s %d, %s %d, %s %d, %s %d\n",
		Excellent, tiers[Excellent], Normal, tiers[Normal], Low, tiers[Low], Poor, tiers[Poor]))

	if len(r.Summary.OverallStats) > 0 {
		b.WriteString("\n[METRICS]\n")
		for _, m := range Metrics {
			s, ok := r.Summary.OverallStats[m]
			if !ok {
				continue
			}
			b.WriteString(fmt.Sprintf("- %s (n=%d): mean %.4g, median %.4g, std %.4g, min %.4g, max %.4g, p25 %.4g, p75 %.4g\n",
				m, s.Count, s.Mean, s.Median, s.Std, s.Min, s.Max, s.P25, s.P75))
		}
	}

	writeGroups(&b, "content_type", r.Summary.StatsByContentType)
	writeGroups(&b, "post_type", r.Summary.StatsByPostType)

	if len(r.Summary.Correlations) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		maxp := 10
		if len(r.Summary.Correlations) < maxp {
			maxp = len(r.Summary.Correlations)
		}
		for _, c := range r.Summary.Correlations[:maxp] {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f (n=%d)\n", c.A, c.B, c.R, c.N))
		}
	}

	if len(r.Results) > 0 {
		limit := r.MaxRecordRows
		if limit <= 0 {
			limit = 50
		}
		b.WriteString("\n[POSTS]\n")
		b.WriteString("| data_id | performance | highlights | problems |\n")
		b.WriteString("| --- | --- | --- | --- |\n")
		for i, res := range r.Results {
			if i >= limit {
				break
			}
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				safeName(res.Identifier), res.Performance, joinMetrics(res.HighlightMetrics), joinMetrics(res.ProblemMetrics)))
		}
		if len(r.Results) > limit {
			b.WriteString(fmt.Sprintf("(%d more posts omitted)\n", len(r.Results)-limit))
		}
	}

	if len(r.Validation.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Validation.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func writeGroups(b *strings.Builder, dim string, gs GroupStats) {
	if len(gs) == 0 {
		return
	}
	b.WriteString(fmt.Sprintf("\n[BY %s]\n", strings.ToUpper(dim)))
	keys := make([]string, 0, len(gs))
	for k := range gs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		// Uncategorized last
		if (keys[i] == Uncategorized) != (keys[j] == Uncategorized) {
			return keys[j] == Uncategorized
		}
		return keys[i] < keys[j]
	})
	if len(keys) > 20 {
		keys = keys[:20]
	}
	for _, k := range keys {
		per := gs[k]
		n := 0
		for _, s := range per {
			if s.Count > n {
				n = s.Count
			}
		}
		b.WriteString(fmt.Sprintf("- %s (n=%d)\n", safeVal(k), n))
		shown := 0
		for _, m := range Metrics {
			s, ok := per[m]
			if !ok {
				continue
			}
			if shown == 6 {
				break
			}
			b.WriteString(fmt.Sprintf("  • %s: mean %.4g, median %.4g\n", m, s.Mean, s.Median))
			shown++
		}
	}
}

func joinMetrics(ms []Metric) string {
	if len(ms) == 0 {
		return "-"
	}
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = string(m)
	}
	return strings.Join(parts, ", ")
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return safeVal(s)
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
