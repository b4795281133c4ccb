package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectAnomalies(t *testing.T) {
	stats := Stats{
		Read7d:     {Median: 10, P25: 5, P75: 20},
		Interact7d: {Median: 10, P25: 5, P75: 20},
		Visit7d:    {Median: 2, P25: 1, P75: 4},
		Want7d:     {Median: 0.5, P25: 0, P75: 1},
		Read14d:    {Median: 0, P25: 0, P75: 0},
	}
	c := NewClassifier(stats, nil, Thresholds{})

	res := c.DetectAnomalies(NewRecord(0, "a", map[Metric]float64{
		Read7d:     25, // above p75
		Interact7d: 3,  // below p25
		Visit7d:    0,  // below p25, also zero
		Want7d:     0,  // zero with positive median under 1
		Read14d:    9,  // p75 is zero
	}))
	assert.Equal(t, []Metric{Read7d}, res.Highlights)
	assert.Equal(t, []Metric{Interact7d, Visit7d, Want7d}, res.Problems)

	res = c.DetectAnomalies(NewRecord(0, "b", map[Metric]float64{Read7d: 20, Interact7d: 5}))
	assert.Empty(t, res.Highlights, "boundary values are neutral")
	assert.Empty(t, res.Problems)
	assert.NotNil(t, res.Highlights)
	assert.NotNil(t, res.Problems)
}

func TestDetectAnomaliesPartition(t *testing.T) {
	vals := []string{"0", "1", "3", "3", "8", "40", "", "12", "0", "2"}
	cols := map[Metric][]string{}
	for i, m := range Metrics {
		shifted := make([]string, len(vals))
		for j := range vals {
			shifted[j] = vals[(j+i)%len(vals)]
		}
		cols[m] = shifted
	}
	f := normalized(metricTable(seqIDs(len(vals)), cols))
	c := NewClassifier(ComputeBasicStats(f), nil, Thresholds{})
	for _, rec := range f.Records() {
		res := c.DetectAnomalies(rec)
		seen := map[Metric]int{}
		for _, m := range res.Highlights {
			seen[m]++
		}
		for _, m := range res.Problems {
			seen[m]++
		}
		for m, n := range seen {
			assert.Equal(t, 1, n, "record %s metric %s classified twice", rec.ID, m)
			_, ok := rec.Value(m)
			assert.True(t, ok, "null metric %s flagged", m)
		}
	}
}

func TestDeterminePerformanceTiers(t *testing.T) {
	stats := Stats{Read7d: {Median: 100}}
	c := NewClassifier(stats, nil, Thresholds{})
	cases := map[float64]Performance{
		130: Excellent,
		200: Excellent,
		129: Normal,
		90:  Normal,
		89:  Low,
		50:  Low,
		49:  Poor,
		0:   Poor,
	}
	for v, want := range cases {
		got := c.DeterminePerformance(NewRecord(0, "x", map[Metric]float64{Read7d: v}))
		assert.Equal(t, want, got, "read_7d=%v", v)
	}
}

func TestDeterminePerformanceWeighted(t *testing.T) {
	stats := Stats{Read7d: {Median: 10}, Want7d: {Median: 10}}
	c := NewClassifier(stats, nil, Thresholds{})
	// (1.0*2 + 0.8*0.5) / 1.8 = 1.333
	score, ok := c.Score(NewRecord(0, "x", map[Metric]float64{Read7d: 20, Want7d: 5}))
	require.True(t, ok)
	assert.InDelta(t, 2.4/1.8, score, 1e-9)

	custom := NewClassifier(stats, []WeightedMetric{{Read7d, 1}, {Want7d, 3}}, Thresholds{})
	assert.Equal(t, Low, custom.DeterminePerformance(NewRecord(0, "x", map[Metric]float64{Read7d: 20, Want7d: 5})))
}

func TestDeterminePerformanceIgnoresZeroMedian(t *testing.T) {
	tbl := metricTable(seqIDs(5), map[Metric][]string{
		Read7d:  {"10", "20", "30", "40", "50"},
		Visit7d: {"0", "0", "0", "0", "9"},
	})
	f := normalized(tbl)
	stats := ComputeBasicStats(f)
	require.Equal(t, 0.0, stats[Visit7d].Median)
	c := NewClassifier(stats, nil, Thresholds{})

	for _, rec := range f.Records() {
		read, _ := rec.Value(Read7d)
		without := NewRecord(rec.Row, rec.ID, map[Metric]float64{Read7d: read})
		assert.Equal(t, c.DeterminePerformance(without), c.DeterminePerformance(rec), "record %s", rec.ID)
	}
}

func TestDeterminePerformanceAllNull(t *testing.T) {
	c := NewClassifier(Stats{Read7d: {Median: 10, P25: 5, P75: 20}}, nil, Thresholds{})
	rec := NewRecord(0, "empty", nil)
	assert.Equal(t, Normal, c.DeterminePerformance(rec))
	res := c.DetectAnomalies(rec)
	assert.Equal(t, []Metric{}, res.Highlights)
	assert.Equal(t, []Metric{}, res.Problems)
}

func TestThresholds(t *testing.T) {
	require.NoError(t, DefaultThresholds().Validate())
	assert.Error(t, Thresholds{Excellent: 1, Normal: 1, Low: 0.5}.Validate())
	assert.Error(t, Thresholds{Excellent: 2, Normal: 1, Low: -1}.Validate())
	assert.Equal(t, Poor, DefaultThresholds().Tier(0.49))
}

func TestTopBottomN(t *testing.T) {
	f := normalized(metricTable([]string{"a", "b", "c", "d", "e"}, map[Metric][]string{
		Read7d: {"5", "9", "", "9", "1"},
	}))
	assert.Equal(t, []string{"b", "d"}, TopN(f, Read7d, 2), "ties keep row order")
	assert.Equal(t, []string{"e", "a", "b"}, BottomN(f, Read7d, 3))
	assert.Equal(t, []string{"b", "d", "a", "e"}, TopN(f, Read7d, 10), "nulls excluded")
	assert.Equal(t, []string{}, TopN(f, Read7d, 0))
	assert.Equal(t, []string{}, TopN(f, Want14d, 3), "missing column")

	noID := normalized(&Table{Header: []string{"read_7d"}, Rows: [][]string{{"1"}}})
	assert.Equal(t, []string{}, BottomN(noID, Read7d, 1))
}
