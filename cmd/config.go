package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/postpulse-cli/internal/analysis"
	cfgpkg "github.com/KaramelBytes/postpulse-cli/internal/config"
	"github.com/KaramelBytes/postpulse-cli/internal/logger"
)

var cfgInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set PostPulse configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := yaml.Marshal(currentConfig())
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(b))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Long: `Set a config value and save to disk.

Scalar keys: log_level, log_format, baseline, decimal_separator,
thousands_separator, sheet_name, output_format, batch_jobs.
Map keys: thresholds.<excellent|normal|low>, weights.<metric>,
labels.<metric>, header_aliases.<header>.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := *currentConfig()
		if err := setKey(&c, args[0], args[1]); err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(&c, cfgFile); err != nil {
			return err
		}
		cfg = &c
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			dir, err := cfgpkg.Dir()
			if err != nil {
				return err
			}
			path = filepath.Join(dir, "config.yaml")
		}
		if _, err := os.Stat(path); err == nil && !cfgInitForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
		if err := cfgpkg.Save(cfgpkg.Defaults(), path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote default config to %s\n", path)
		return nil
	},
}

func setKey(c *cfgpkg.Global, key, val string) error {
	if prefix, sub, ok := strings.Cut(key, "."); ok {
		switch prefix {
		case "thresholds":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("invalid float for %s: %v", key, val)
			}
			switch sub {
			case "excellent":
				c.Thresholds.Excellent = f
			case "normal":
				c.Thresholds.Normal = f
			case "low":
				c.Thresholds.Low = f
			default:
				return fmt.Errorf("unknown key: %s", key)
			}
		case "weights":
			m, err := analysis.ParseMetric(sub)
			if err != nil {
				return err
			}
			f, err := strconv.ParseFloat(val, 64)
			if err != nil || f < 0 {
				return fmt.Errorf("invalid weight for %s: %v", key, val)
			}
			ws := append([]analysis.WeightedMetric(nil), c.Weights...)
			found := false
			for i := range ws {
				if ws[i].Metric == m {
					ws[i].Weight = f
					found = true
				}
			}
			if !found {
				ws = append(ws, analysis.WeightedMetric{Metric: m, Weight: f})
			}
			c.Weights = ws
		case "labels":
			m, err := analysis.ParseMetric(sub)
			if err != nil {
				return err
			}
			c.Labels = withEntry(c.Labels, string(m), val)
		case "header_aliases":
			if _, err := analysis.ParseMetric(val); err != nil && !isColumn(val) {
				return fmt.Errorf("unknown canonical column: %s", val)
			}
			c.HeaderAliases = withEntry(c.HeaderAliases, sub, val)
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		return nil
	}

	switch key {
	case "log_level":
		if _, err := logger.ParseLevel(val); err != nil {
			return err
		}
		c.LogLevel = strings.ToLower(val)
	case "log_format":
		if err := (logger.Config{Format: val}).Validate(); err != nil {
			return err
		}
		c.LogFormat = strings.ToLower(val)
	case "baseline":
		c.Baseline = val
	case "decimal_separator":
		c.DecimalSeparator = val
	case "thousands_separator":
		c.ThousandsSeparator = val
	case "sheet_name":
		c.SheetName = val
	case "output_format":
		c.OutputFormat = val
	case "batch_jobs":
		i, err := strconv.Atoi(val)
		if err != nil || i <= 0 {
			return fmt.Errorf("invalid int for batch_jobs: %v", val)
		}
		c.BatchJobs = i
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

// withEntry returns a copy of m with k set to v.
func withEntry(m map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for kk, vv := range m {
		out[kk] = vv
	}
	out[k] = v
	return out
}

func isColumn(name string) bool {
	switch name {
	case analysis.ColID, analysis.ColTitle, analysis.ColPublishTime, analysis.ColPublishLink,
		analysis.ColContentType, analysis.ColPostType, analysis.ColSource, analysis.ColStyleInfo:
		return true
	}
	return false
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().BoolVar(&cfgInitForce, "force", false, "overwrite an existing config file")
}
