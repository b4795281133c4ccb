package analysis

import (
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/postpulse-cli/internal/logger"
)

// RecordResult is the analysis of one post.
type RecordResult struct {
	Identifier       string             `json:"identifier"`
	Row              int                `json:"row"`
	Title            string             `json:"title,omitempty"`
	PublishTime      *time.Time         `json:"publishTime,omitempty"`
	PublishLink      string             `json:"publishLink,omitempty"`
	Source           string             `json:"source,omitempty"`
	Performance      Performance        `json:"performance"`
	HighlightMetrics []Metric           `json:"highlightMetrics"`
	ProblemMetrics   []Metric           `json:"problemMetrics"`
	CompareToAvg     map[string]string  `json:"compareToAvg"`
	PercentileRanks  map[Metric]float64 `json:"percentileRanks"`
}

// Summary describes the whole dataset.
type Summary struct {
	RunID                   string              `json:"runId"`
	TotalRecords            int                 `json:"totalRecords"`
	PerformanceDistribution map[Performance]int `json:"performanceDistribution"`
	OverallStats            Stats               `json:"overallStats"`
	StatsByContentType      GroupStats          `json:"statsByContentType"`
	StatsByPostType         GroupStats          `json:"statsByPostType"`
	Correlations            []Correlation       `json:"correlations"`
	Warnings                []string            `json:"warnings"`
}

// ContentDescription carries the descriptive fields of a post.
type ContentDescription struct {
	ContentType  string `json:"content_type"`
	PostType     string `json:"post_type"`
	StyleInfo    string `json:"style_info"`
	ContentTitle string `json:"content_title,omitempty"`
	PublishTime  string `json:"publish_time,omitempty"`
	PublishLink  string `json:"publish_link,omitempty"`
}

// publishTimeLayout formats publish times in downstream payloads.
const publishTimeLayout = "2006-01-02 15:04:05"


// DownstreamAnalysis is the verdict part of a downstream payload. Metric
// names are display labels.
type DownstreamAnalysis struct {
	Performance      Performance       `json:"performance"`
	ProblemMetrics   []string          `json:"problem_metrics"`
	HighlightMetrics []string          `json:"highlight_metrics"`
	CompareToAvg     map[string]string `json:"compare_to_avg"`
}

// DownstreamInput is the minimal payload handed to the external summarizer.
type DownstreamInput struct {
	Identifier         string             `json:"identifier"`
	ContentDescription ContentDescription `json:"content_description"`
	AnalysisResult     DownstreamAnalysis `json:"analysis_result"`
}

// Ranking lists the extreme posts for one metric.
type Ranking struct {
	Metric Metric   `json:"metric"`
	Top    []string `json:"top"`
	Bottom []string `json:"bottom"`
}

// Run is one prepared analysis: a canonical frame and the statistics computed
// from it. A Run never changes after Prepare returns; all methods are safe for
// concurrent use.
type Run struct {
	ID         string
	frame      Frame
	records    []Record
	snapshot   *Snapshot
	classifier *Classifier
	report     ValidationReport
	opts       Options
	log        logger.Logger
}

// Prepare normalizes and validates t, then computes the run's statistics. A
// structural validation failure returns a *ValidationError and no Run. Each
// call builds a new Run from scratch.
func Prepare(t *Table, opt Options) (*Run, error) {
	opt = opt.withDefaults()
	id := uuid.NewString()
	log := opt.Logger.With(logger.String("run_id", id), logger.String("dataset", t.Name))

	frame := NewNormalizer(opt.HeaderMap, opt.Numbers).Process(t)
	log.Debug("normalized table", logger.Strings("columns", frame.Columns()), logger.Int("rows", frame.Len()))

	rep := Validate(frame)
	if !rep.Valid {
		log.Warn("validation failed", logger.Strings("errors", rep.Errors), logger.Int("rows", rep.RowCount))
		return nil, &ValidationError{Report: rep}
	}
	for _, w := range rep.Warnings {
		log.Warn("data quality", logger.String("warning", w))
	}

	snap := NewSnapshot(frame)
	r := &Run{
		ID:         id,
		frame:      frame,
		records:    frame.Records(),
		snapshot:   snap,
		classifier: NewClassifier(snap.Stats(), opt.Weights, opt.Thresholds),
		report:     rep,
		opts:       opt,
		log:        log,
	}
	log.Info("prepared analysis run", logger.Int("rows", frame.Len()), logger.Int("metrics", len(snap.stats)))
	return r, nil
}

// Validation returns the validation report of the run.
func (r *Run) Validation() ValidationReport { return r.report }

// Frame returns the canonical frame.
func (r *Run) Frame() Frame { return r.frame }

// Records returns the run's records in input order.
func (r *Run) Records() []Record { return append([]Record(nil), r.records...) }

// Snapshot returns the run's statistics baseline.
func (r *Run) Snapshot() *Snapshot { return r.snapshot }

// AnalyzeSingle evaluates one record against the run's statistics.
func (r *Run) AnalyzeSingle(rec Record) RecordResult {
	an := r.classifier.DetectAnomalies(rec)
	return RecordResult{
		Identifier:       rec.ID,
		Row:              rec.Row,
		Title:            rec.Title,
		PublishTime:      cloneTime(rec.PublishTime),
		PublishLink:      rec.PublishLink,
		Source:           rec.Source,
		Performance:      r.classifier.DeterminePerformance(rec),
		HighlightMetrics: an.Highlights,
		ProblemMetrics:   an.Problems,
		CompareToAvg:     r.snapshot.CompareToBaseline(rec, r.opts.Baseline, r.opts.Labels),
		PercentileRanks:  r.snapshot.PercentileRank(rec),
	}
}

// AnalyzeAll evaluates every record in input order.
func (r *Run) AnalyzeAll() []RecordResult {
	out := make([]RecordResult, len(r.records))
	for i, rec := range r.records {
		out[i] = r.AnalyzeSingle(rec)
	}
	r.log.Debug("analyzed records", logger.Int("count", len(out)))
	return out
}

// Summary describes the dataset overall and by content and post type.
func (r *Run) Summary() Summary {
	return r.summarize(r.AnalyzeAll())
}

func (r *Run) summarize(results []RecordResult) Summary {
	corr := ComputeCorrelations(r.frame)
	if corr == nil {
		corr = []Correlation{}
	}
	return Summary{
		RunID:                   r.ID,
		TotalRecords:            r.frame.Len(),
		PerformanceDistribution: performanceDistribution(results),
		OverallStats:            r.snapshot.Stats(),
		StatsByContentType:      ComputeGroupStats(r.frame, ColContentType),
		StatsByPostType:         ComputeGroupStats(r.frame, ColPostType),
		Correlations:            corr,
		Warnings:                append([]string{}, r.report.Warnings...),
	}
}

// performanceDistribution counts results per tier. Every tier is present.
func performanceDistribution(results []RecordResult) map[Performance]int {
	out := map[Performance]int{Excellent: 0, Normal: 0, Low: 0, Poor: 0}
	for _, res := range results {
		out[res.Performance]++
	}
	return out
}

// DownstreamInput projects a record and its result into the payload consumed
// by the summarization service.
func (r *Run) DownstreamInput(rec Record, res RecordResult) DownstreamInput {
	desc := ContentDescription{
		ContentType:  rec.ContentType,
		PostType:     rec.PostType,
		StyleInfo:    rec.StyleInfo,
		ContentTitle: rec.Title,
		PublishLink:  rec.PublishLink,
	}
	if rec.PublishTime != nil {
		desc.PublishTime = rec.PublishTime.Format(publishTimeLayout)
	}
	return DownstreamInput{
		Identifier:         rec.ID,
		ContentDescription: desc,
		AnalysisResult: DownstreamAnalysis{
			Performance:      res.Performance,
			ProblemMetrics:   r.labelsOf(res.ProblemMetrics),
			HighlightMetrics: r.labelsOf(res.HighlightMetrics),
			CompareToAvg:     res.CompareToAvg,
		},
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func (r *Run) labelsOf(ms []Metric) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = r.opts.Labels.Label(m)
	}
	return out
}

// Rank returns the top and bottom n identifiers for m.
func (r *Run) Rank(m Metric, n int) Ranking {
	return Ranking{Metric: m, Top: TopN(r.frame, m, n), Bottom: BottomN(r.frame, m, n)}
}
