package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// DistributionStats summarizes one metric over a run.
type DistributionStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P10    float64 `json:"p10"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
	P90    float64 `json:"p90"`
	Count  int     `json:"count"`
}

// Stats maps metrics to their distribution. Metrics without observations are
// absent rather than zero-filled.
type Stats map[Metric]DistributionStats

// ComputeBasicStats describes every metric column that has at least one
// non-null value.
func ComputeBasicStats(f Frame) Stats {
	out := Stats{}
	for _, m := range Metrics {
		vals := f.MetricValues(m)
		if len(vals) == 0 {
			continue
		}
		out[m] = describe(vals)
	}
	return out
}

func describe(vals []float64) DistributionStats {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	d := DistributionStats{
		Count: len(sorted),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		P10:   quantile(sorted, 0.10),
		P25:   quantile(sorted, 0.25),
		P75:   quantile(sorted, 0.75),
		P90:   quantile(sorted, 0.90),
	}
	// Errors only occur on empty input, excluded above.
	d.Mean, _ = mstats.Mean(sorted)
	d.Median, _ = mstats.Median(sorted)
	if len(sorted) > 1 {
		if sd, err := mstats.StandardDeviationSample(sorted); err == nil && !math.IsNaN(sd) {
			d.Std = sd
		}
	}
	return d
}

// BaselineKind selects which statistic records are compared against.
type BaselineKind string

const (
	BaselineMean   BaselineKind = "mean"
	BaselineMedian BaselineKind = "median"
)

// ParseBaselineKind accepts "mean" or "median".
func ParseBaselineKind(s string) (BaselineKind, error) {
	switch BaselineKind(strings.ToLower(strings.TrimSpace(s))) {
	case BaselineMean, "":
		return BaselineMean, nil
	case BaselineMedian:
		return BaselineMedian, nil
	default:
		return "", fmt.Errorf("unsupported baseline: %s (use mean|median)", s)
	}
}

// Baseline returns the reference value of the given kind.
func (d DistributionStats) Baseline(kind BaselineKind) float64 {
	if kind == BaselineMedian {
		return d.Median
	}
	return d.Mean
}

// GroupSummary is the per-bucket distribution summary.
type GroupSummary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Count  int     `json:"count"`
}

// GroupStats maps a category value to per-metric summaries.
type GroupStats map[string]map[Metric]GroupSummary

// Uncategorized buckets rows whose category is null or empty.
const Uncategorized = "Uncategorized"

// ComputeGroupStats buckets rows by the groupBy column and summarizes every
// metric within each bucket. It returns an empty map when the column is absent.
func ComputeGroupStats(f Frame, groupBy string) GroupStats {
	out := GroupStats{}
	key, ok := f.Column(groupBy)
	if !ok {
		return out
	}
	buckets := map[string][]int{}
	for i := 0; i < f.Len(); i++ {
		k := key.String(i)
		if k == "" {
			k = Uncategorized
		}
		buckets[k] = append(buckets[k], i)
	}
	for k, rows := range buckets {
		per := map[Metric]GroupSummary{}
		for _, m := range Metrics {
			c, ok := f.Column(string(m))
			if !ok || c.Kind != KindNumeric {
				continue
			}
			vals := make([]float64, 0, len(rows))
			for _, i := range rows {
				if c.Valid[i] {
					vals = append(vals, c.Num[i])
				}
			}
			if len(vals) == 0 {
				continue
			}
			mean, _ := mstats.Mean(vals)
			median, _ := mstats.Median(vals)
			per[m] = GroupSummary{Mean: mean, Median: median, Count: len(vals)}
		}
		out[k] = per
	}
	return out
}

// CompareToBaseline reports each metric's percentage difference from the
// baseline, keyed by display label. Null values and zero baselines are skipped.
func CompareToBaseline(r Record, stats Stats, kind BaselineKind, labels Labels) map[string]string {
	out := map[string]string{}
	for _, m := range Metrics {
		st, ok := stats[m]
		if !ok {
			continue
		}
		v, ok := r.Value(m)
		if !ok {
			continue
		}
		base := st.Baseline(kind)
		if base == 0 {
			continue
		}
		out[labels.Label(m)] = formatDelta((v - base) / base * 100)
	}
	return out
}

// formatDelta renders a signed whole percentage: "+12%", "-3%" or "0%".
func formatDelta(pct float64) string {
	n := int64(math.Round(pct))
	switch {
	case n > 0:
		return "+" + strconv.FormatInt(n, 10) + "%"
	case n < 0:
		return strconv.FormatInt(n, 10) + "%"
	default:
		return "0%"
	}
}

// Population holds each metric's non-null values in ascending order.
type Population map[Metric][]float64

// NewPopulation collects the sorted values of every metric in f.
func NewPopulation(f Frame) Population {
	p := Population{}
	for _, m := range Metrics {
		vals := f.MetricValues(m)
		if len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)
		p[m] = vals
	}
	return p
}

// PercentileRank returns, per metric, the share of the population strictly
// below the record's value, as a percentage rounded to one decimal.
func PercentileRank(r Record, stats Stats, pop Population) map[Metric]float64 {
	out := map[Metric]float64{}
	for _, m := range Metrics {
		if _, ok := stats[m]; !ok {
			continue
		}
		v, ok := r.Value(m)
		if !ok {
			continue
		}
		vals := pop[m]
		if len(vals) == 0 {
			continue
		}
		below := sort.SearchFloat64s(vals, v)
		out[m] = math.Round(float64(below)/float64(len(vals))*1000) / 10
	}
	return out
}

// Correlation is a Pearson coefficient between two metrics.
type Correlation struct {
	A Metric  `json:"a"`
	B Metric  `json:"b"`
	R float64 `json:"r"`
	N int     `json:"n"`
}

// ComputeCorrelations correlates every metric pair over rows where both are
// non-null. Pairs with fewer than three rows or no variance are omitted. The
// result is ordered by |r| descending.
func ComputeCorrelations(f Frame) []Correlation {
	var cols []Column
	var names []Metric
	for _, m := range Metrics {
		c, ok := f.Column(string(m))
		if ok && c.Kind == KindNumeric {
			cols = append(cols, c)
			names = append(names, m)
		}
	}
	var out []Correlation
	for a := 0; a < len(cols); a++ {
		for b := a + 1; b < len(cols); b++ {
			var xs, ys []float64
			for i := 0; i < f.Len(); i++ {
				if cols[a].Valid[i] && cols[b].Valid[i] {
					xs = append(xs, cols[a].Num[i])
					ys = append(ys, cols[b].Num[i])
				}
			}
			if len(xs) < 3 {
				continue
			}
			r := stat.Correlation(xs, ys, nil)
			if math.IsNaN(r) || math.IsInf(r, 0) {
				continue
			}
			r = math.Max(-1, math.Min(1, r))
			out = append(out, Correlation{A: names[a], B: names[b], R: r, N: len(xs)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].R) > math.Abs(out[j].R)
	})
	return out
}

// Snapshot is the immutable statistics baseline of one run.
type Snapshot struct {
	stats Stats
	pop   Population
}

// NewSnapshot computes the stats and population of f.
func NewSnapshot(f Frame) *Snapshot {
	return &Snapshot{stats: ComputeBasicStats(f), pop: NewPopulation(f)}
}

// Stats returns a copy of the distribution map.
func (s *Snapshot) Stats() Stats {
	out := make(Stats, len(s.stats))
	for k, v := range s.stats {
		out[k] = v
	}
	return out
}

// Stat returns the distribution of one metric.
func (s *Snapshot) Stat(m Metric) (DistributionStats, bool) {
	d, ok := s.stats[m]
	return d, ok
}

// PercentileRank ranks r against the run population.
func (s *Snapshot) PercentileRank(r Record) map[Metric]float64 {
	return PercentileRank(r, s.stats, s.pop)
}

// CompareToBaseline compares r to the run baseline.
func (s *Snapshot) CompareToBaseline(r Record, kind BaselineKind, labels Labels) map[string]string {
	return CompareToBaseline(r, s.stats, kind, labels)
}
