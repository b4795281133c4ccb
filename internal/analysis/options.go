package analysis

import "github.com/KaramelBytes/postpulse-cli/internal/logger"

// Options controls one analysis run.
type Options struct {
	// HeaderMap maps accepted header spellings to canonical names.
	HeaderMap map[string]string
	// Numbers selects decimal/thousands separators; zero values auto-detect.
	Numbers NumberFormat
	// Labels are display names used in baseline comparisons and downstream payloads.
	Labels Labels
	// Weights is the ordered metric weighting of the composite score.
	Weights    []WeightedMetric
	Thresholds Thresholds
	// Baseline selects the statistic used by CompareToBaseline.
	Baseline BaselineKind
	Logger   logger.Logger
}

// DefaultOptions returns the standard configuration.
func DefaultOptions() Options {
	return Options{
		HeaderMap:  DefaultHeaderMap(),
		Labels:     DefaultLabels(),
		Weights:    DefaultWeights(),
		Thresholds: DefaultThresholds(),
		Baseline:   BaselineMean,
		Logger:     logger.NewNop(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HeaderMap == nil {
		o.HeaderMap = d.HeaderMap
	}
	if o.Labels == nil {
		o.Labels = d.Labels
	}
	if len(o.Weights) == 0 {
		o.Weights = d.Weights
	}
	if o.Thresholds == (Thresholds{}) {
		o.Thresholds = d.Thresholds
	}
	if o.Baseline == "" {
		o.Baseline = d.Baseline
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	return o
}
