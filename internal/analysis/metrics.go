package analysis

import (
	"fmt"
	"strings"
)

// Metric is one of the eight engagement measures tracked per post.
type Metric string

const (
	Read7d      Metric = "read_7d"
	Interact7d  Metric = "interact_7d"
	Visit7d     Metric = "visit_7d"
	Want7d      Metric = "want_7d"
	Read14d     Metric = "read_14d"
	Interact14d Metric = "interact_14d"
	Visit14d    Metric = "visit_14d"
	Want14d     Metric = "want_14d"
)

// Metrics is the fixed metric vocabulary in canonical order. Every map keyed by
// Metric is iterated in this order.
var Metrics = []Metric{
	Read7d, Interact7d, Visit7d, Want7d,
	Read14d, Interact14d, Visit14d, Want14d,
}

// Canonical non-metric column names.
const (
	ColID          = "data_id"
	ColTitle       = "content_title"
	ColPublishTime = "publish_time"
	ColPublishLink = "publish_link"
	ColContentType = "content_type"
	ColPostType    = "post_type"
	ColSource      = "source"
	ColStyleInfo   = "style_info"
)

// TextColumns are filled with "" when null.
var TextColumns = []string{ColTitle, ColContentType, ColPostType, ColSource, ColStyleInfo, ColPublishLink}

// ParseMetric resolves a canonical metric name.
func ParseMetric(s string) (Metric, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, m := range Metrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// Labels maps metrics to user-facing display names. Missing entries fall back
// to the canonical name.
type Labels map[Metric]string

// Label returns the display name for m.
func (l Labels) Label(m Metric) string {
	if s, ok := l[m]; ok && s != "" {
		return s
	}
	return string(m)
}

// Validate rejects two metrics sharing one display name, since comparisons
// are keyed by label.
func (l Labels) Validate() error {
	seen := make(map[string]Metric, len(Metrics))
	for _, m := range Metrics {
		name := l.Label(m)
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("label %q used for both %s and %s", name, prev, m)
		}
		seen[name] = m
	}
	return nil
}

// DefaultLabels returns the display names used in the source exports.
func DefaultLabels() Labels {
	return Labels{
		Read7d:      "7天阅读",
		Interact7d:  "7天互动",
		Visit7d:     "7天好物访问",
		Want7d:      "7天好物想要",
		Read14d:     "14天阅读",
		Interact14d: "14天互动",
		Visit14d:    "14天好物访问",
		Want14d:     "14天好物想要",
	}
}

// DefaultHeaderMap returns accepted header spellings keyed to canonical names.
func DefaultHeaderMap() map[string]string {
	m := map[string]string{
		"数据ID":     ColID,
		"标题":       ColTitle,
		"title":    ColTitle,
		"发文时间":     ColPublishTime,
		"发文链接":     ColPublishLink,
		"内容形式":     ColContentType,
		"发文类型":     ColPostType,
		"素材来源":     ColSource,
		"款式信息":     ColStyleInfo,
		"7天阅读/播放":  string(Read7d),
		"7天阅读播放":   string(Read7d),
		"7天互动":     string(Interact7d),
		"7天好物访问":   string(Visit7d),
		"7天好物想要":   string(Want7d),
		"14天阅读/播放": string(Read14d),
		"14天阅读播放":  string(Read14d),
		"14天互动":    string(Interact14d),
		"14天好物访问":  string(Visit14d),
		"14天好物想要":  string(Want14d),
	}
	for _, c := range []string{ColID, ColTitle, ColPublishTime, ColPublishLink, ColContentType, ColPostType, ColSource, ColStyleInfo} {
		m[c] = c
	}
	for _, mt := range Metrics {
		m[string(mt)] = string(mt)
	}
	return m
}

// WeightedMetric pairs a metric with its weight in the composite score.
type WeightedMetric struct {
	Metric Metric  `json:"metric" yaml:"metric" mapstructure:"metric"`
	Weight float64 `json:"weight" yaml:"weight" mapstructure:"weight"`
}

// DefaultWeights weighs reach and interaction above conversion, at both horizons.
func DefaultWeights() []WeightedMetric {
	return []WeightedMetric{
		{Read7d, 1.0},
		{Read14d, 1.0},
		{Interact7d, 1.0},
		{Interact14d, 1.0},
		{Visit7d, 0.8},
		{Visit14d, 0.8},
		{Want7d, 0.8},
		{Want14d, 0.8},
	}
}
