package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/postpulse-cli/internal/analysis"
	"github.com/KaramelBytes/postpulse-cli/internal/logger"
)

// Global configuration structure.
type Global struct {
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// Analysis
	Baseline           string                    `mapstructure:"baseline" yaml:"baseline"`
	DecimalSeparator   string                    `mapstructure:"decimal_separator" yaml:"decimal_separator"`
	ThousandsSeparator string                    `mapstructure:"thousands_separator" yaml:"thousands_separator"`
	Weights            []analysis.WeightedMetric `mapstructure:"weights" yaml:"weights,omitempty"`
	Thresholds         analysis.Thresholds       `mapstructure:"thresholds" yaml:"thresholds"`
	Labels             map[string]string         `mapstructure:"labels" yaml:"labels,omitempty"`
	// HeaderAliases extends the built-in header map (alias -> canonical name).
	HeaderAliases map[string]string `mapstructure:"header_aliases" yaml:"header_aliases,omitempty"`

	// Input/output
	SheetName    string `mapstructure:"sheet_name" yaml:"sheet_name"`
	OutputFormat string `mapstructure:"output_format" yaml:"output_format"`
	BatchJobs    int    `mapstructure:"batch_jobs" yaml:"batch_jobs"`
}

// Dir returns ~/.postpulse.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".postpulse"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.postpulse/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Global {
	labels := map[string]string{}
	for m, l := range analysis.DefaultLabels() {
		labels[string(m)] = l
	}
	return &Global{
		LogLevel:     "warn",
		LogFormat:    "console",
		Baseline:     string(analysis.BaselineMean),
		Weights:      analysis.DefaultWeights(),
		Thresholds:   analysis.DefaultThresholds(),
		Labels:       labels,
		OutputFormat: "json",
		BatchJobs:    4,
	}
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
// A .env file in the working directory is loaded first; it never overrides
// variables already set in the environment.
func Load(cfgFile string) (*Global, error) {
	_ = godotenv.Load()

	d := Defaults()
	v := viper.New()
	v.SetEnvPrefix("POSTPULSE")
	v.AutomaticEnv()

	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("baseline", d.Baseline)
	v.SetDefault("decimal_separator", "")
	v.SetDefault("thousands_separator", "")
	v.SetDefault("sheet_name", "")
	v.SetDefault("output_format", d.OutputFormat)
	v.SetDefault("batch_jobs", d.BatchJobs)
	v.SetDefault("thresholds.excellent", d.Thresholds.Excellent)
	v.SetDefault("thresholds.normal", d.Thresholds.Normal)
	v.SetDefault("thresholds.low", d.Thresholds.Low)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(c.Weights) == 0 {
		c.Weights = d.Weights
	}
	if c.Labels == nil {
		c.Labels = d.Labels
	}
	return &c, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Global) Validate() error {
	if err := (logger.Config{Level: c.LogLevel, Format: c.LogFormat}).Validate(); err != nil {
		return err
	}
	if _, err := analysis.ParseBaselineKind(c.Baseline); err != nil {
		return err
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	for _, w := range c.Weights {
		if _, err := analysis.ParseMetric(string(w.Metric)); err != nil {
			return fmt.Errorf("weights: %w", err)
		}
		if w.Weight < 0 {
			return fmt.Errorf("weights: negative weight for %s", w.Metric)
		}
	}
	labels := analysis.DefaultLabels()
	for k, l := range c.Labels {
		m, err := analysis.ParseMetric(k)
		if err != nil {
			return fmt.Errorf("labels: %w", err)
		}
		labels[m] = l
	}
	if err := labels.Validate(); err != nil {
		return fmt.Errorf("labels: %w", err)
	}
	if _, err := separator(c.DecimalSeparator); err != nil {
		return fmt.Errorf("decimal_separator: %w", err)
	}
	if _, err := separator(c.ThousandsSeparator); err != nil {
		return fmt.Errorf("thousands_separator: %w", err)
	}
	switch strings.ToLower(c.OutputFormat) {
	case "", "json", "markdown", "md":
	default:
		return fmt.Errorf("unsupported output_format: %s (use json|markdown)", c.OutputFormat)
	}
	return nil
}

func separator(s string) (rune, error) {
	if s == "" {
		return 0, nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("want a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// AnalysisOptions converts the configuration into run options.
func (c *Global) AnalysisOptions(log logger.Logger) (analysis.Options, error) {
	if err := c.Validate(); err != nil {
		return analysis.Options{}, err
	}
	opt := analysis.DefaultOptions()
	opt.Baseline, _ = analysis.ParseBaselineKind(c.Baseline)
	opt.Numbers.DecimalSeparator, _ = separator(c.DecimalSeparator)
	opt.Numbers.ThousandsSeparator, _ = separator(c.ThousandsSeparator)
	if len(c.Weights) > 0 {
		opt.Weights = append([]analysis.WeightedMetric(nil), c.Weights...)
	}
	if c.Thresholds != (analysis.Thresholds{}) {
		opt.Thresholds = c.Thresholds
	}
	for k, l := range c.Labels {
		m, _ := analysis.ParseMetric(k)
		opt.Labels[m] = l
	}
	for alias, canon := range c.HeaderAliases {
		opt.HeaderMap[strings.TrimSpace(alias)] = canon
	}
	if log != nil {
		opt.Logger = log
	}
	return opt, nil
}
