package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/postpulse-cli/internal/config"
	"github.com/KaramelBytes/postpulse-cli/internal/logger"
)

var (
	// Global flags
	cfgFile      string
	debug        bool
	flagLogLevel string

	// Loaded configuration and logger
	cfg *cfgpkg.Global
	log logger.Logger = logger.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "postpulse",
	Short: "PostPulse CLI: score social post exports against their own distribution",
	Long: `PostPulse reads a CSV/TSV/XLSX export of post metrics, normalizes it, and produces
per-post verdicts (Excellent/Normal/Low/Poor), highlight and problem metrics,
baseline comparisons, and percentile ranks, plus a dataset summary.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	err := rootCmd.Execute()
	_ = log.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.postpulse/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to defaults so read-only commands still work
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = cfgpkg.Defaults()
	}
	cfg = c

	lc := logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}
	if flagLogLevel != "" {
		lc.Level = strings.ToLower(flagLogLevel)
	}
	if debug {
		lc.Level = "debug"
	}
	l, err := logger.New(lc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to init logger: %v\n", err)
		return
	}
	log = l
}

// currentConfig returns the loaded configuration or the defaults.
func currentConfig() *cfgpkg.Global {
	if cfg == nil {
		return cfgpkg.Defaults()
	}
	return cfg
}
