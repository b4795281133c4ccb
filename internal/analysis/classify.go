package analysis

import (
	"fmt"
	"sort"
)

// Performance is the four-tier verdict for one post.
type Performance string

const (
	Excellent Performance = "Excellent"
	Normal    Performance = "Normal"
	Low       Performance = "Low"
	Poor      Performance = "Poor"
)

// Thresholds are the lower bounds of each tier on the composite score.
type Thresholds struct {
	Excellent float64 `json:"excellent" yaml:"excellent" mapstructure:"excellent"`
	Normal    float64 `json:"normal" yaml:"normal" mapstructure:"normal"`
	Low       float64 `json:"low" yaml:"low" mapstructure:"low"`
}

// DefaultThresholds returns the standard tier bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{Excellent: 1.3, Normal: 0.9, Low: 0.5}
}

// Validate checks that the bounds are strictly decreasing.
func (t Thresholds) Validate() error {
	if !(t.Excellent > t.Normal && t.Normal > t.Low && t.Low >= 0) {
		return fmt.Errorf("thresholds must satisfy excellent > normal > low >= 0, got %.2f/%.2f/%.2f", t.Excellent, t.Normal, t.Low)
	}
	return nil
}

// Tier maps a composite score to a verdict.
func (t Thresholds) Tier(score float64) Performance {
	switch {
	case score >= t.Excellent:
		return Excellent
	case score >= t.Normal:
		return Normal
	case score >= t.Low:
		return Low
	default:
		return Poor
	}
}

// AnomalyResult holds the metrics flagged for one post. The two lists are
// disjoint and follow canonical metric order.
type AnomalyResult struct {
	Highlights []Metric `json:"highlightMetrics"`
	Problems   []Metric `json:"problemMetrics"`
}

// Classifier evaluates single records against a fixed stats snapshot. It has
// no mutable state and is safe for concurrent use.
type Classifier struct {
	stats      Stats
	weights    []WeightedMetric
	thresholds Thresholds
}

// NewClassifier binds a classifier to stats. Nil weights and zero thresholds
// select the defaults.
func NewClassifier(stats Stats, weights []WeightedMetric, th Thresholds) *Classifier {
	if len(weights) == 0 {
		weights = DefaultWeights()
	}
	if th == (Thresholds{}) {
		th = DefaultThresholds()
	}
	return &Classifier{
		stats:      stats,
		weights:    append([]WeightedMetric(nil), weights...),
		thresholds: th,
	}
}

// DetectAnomalies flags metrics above the upper quartile as highlights and
// metrics below the lower quartile, or zero where the median is positive, as
// problems. The highlight check runs first.
func (c *Classifier) DetectAnomalies(r Record) AnomalyResult {
	res := AnomalyResult{Highlights: []Metric{}, Problems: []Metric{}}
	for _, m := range Metrics {
		st, ok := c.stats[m]
		if !ok {
			continue
		}
		v, ok := r.Value(m)
		if !ok {
			continue
		}
		switch {
		case v > st.P75 && st.P75 > 0:
			res.Highlights = append(res.Highlights, m)
		case v < st.P25 && st.Median >= 1:
			res.Problems = append(res.Problems, m)
		case v == 0 && st.Median > 0:
			// zero where most posts have traffic
			res.Problems = append(res.Problems, m)
		}
	}
	return res
}

// Score returns the weighted mean of value/median over contributing metrics,
// and false when no metric contributes.
func (c *Classifier) Score(r Record) (float64, bool) {
	var sum, total float64
	for _, w := range c.weights {
		st, ok := c.stats[w.Metric]
		if !ok || st.Median == 0 {
			continue
		}
		v, ok := r.Value(w.Metric)
		if !ok {
			continue
		}
		sum += w.Weight * (v / st.Median)
		total += w.Weight
	}
	if total == 0 {
		return 0, false
	}
	return sum / total, true
}

// DeterminePerformance maps the composite score to a tier. Records with no
// contributing metric are Normal.
func (c *Classifier) DeterminePerformance(r Record) Performance {
	score, ok := c.Score(r)
	if !ok {
		return Normal
	}
	return c.thresholds.Tier(score)
}

// TopN returns the identifiers of the n records with the largest values of m.
func TopN(f Frame, m Metric, n int) []string {
	return rankIDs(f, m, n, true)
}

// BottomN returns the identifiers of the n records with the smallest values of m.
func BottomN(f Frame, m Metric, n int) []string {
	return rankIDs(f, m, n, false)
}

func rankIDs(f Frame, m Metric, n int, desc bool) []string {
	ids, ok := f.Column(ColID)
	if !ok || n <= 0 {
		return []string{}
	}
	c, ok := f.Column(string(m))
	if !ok || c.Kind != KindNumeric {
		return []string{}
	}
	rows := make([]int, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		if c.Valid[i] {
			rows = append(rows, i)
		}
	}
	sort.SliceStable(rows, func(a, b int) bool {
		if desc {
			return c.Num[rows[a]] > c.Num[rows[b]]
		}
		return c.Num[rows[a]] < c.Num[rows[b]]
	})
	if len(rows) > n {
		rows = rows[:n]
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = ids.String(r)
	}
	return out
}
