package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/postpulse-cli/internal/analysis"
	"github.com/KaramelBytes/postpulse-cli/internal/logger"
	"github.com/KaramelBytes/postpulse-cli/internal/utils"
)

var (
	anaInput      inputFlags
	anaFormat     string
	anaOutputPath string
	anaDownstream string
	anaMaxRows    int
	anaMaxTokens  int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a CSV/TSV/XLSX export and report per-post verdicts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		format := anaFormat
		if format == "" {
			format = currentConfig().OutputFormat
		}
		format = strings.ToLower(format)
		if format != "json" && format != "markdown" && format != "md" {
			return fmt.Errorf("unsupported --format: %s (use json|markdown)", anaFormat)
		}

		run, err := anaInput.prepare(path)
		if err != nil {
			var verr *analysis.ValidationError
			if errors.As(err, &verr) {
				printValidation(cmd.OutOrStdout(), verr.Report)
			}
			return err
		}
		rep := run.BuildReport()
		rep.MaxRecordRows = anaMaxRows

		var body []byte
		if format == "json" {
			if body, err = utils.PrettyJSON(rep); err != nil {
				return err
			}
		} else {
			md := rep.Markdown()
			if anaMaxTokens > 0 && utils.CountTokens(md) > anaMaxTokens {
				md = utils.TruncateToTokenLimit(md, anaMaxTokens) + "\n(truncated)\n"
			}
			body = []byte(md)
		}

		if anaDownstream != "" {
			n, err := writeDownstream(run, rep.Results, anaDownstream)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %d downstream payloads to %s\n", n, anaDownstream)
		}
		if anaOutputPath != "" {
			if err := utils.SafeWriteFile(anaOutputPath, body); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote analysis to %s\n", anaOutputPath)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(body))
		return nil
	},
}

// downstreamLine is one JSONL entry handed to the summarization service.
type downstreamLine struct {
	analysis.DownstreamInput
	EstimatedTokens int `json:"estimated_tokens"`
}

// writeDownstream writes one payload per record, in input order, as JSON lines.
func writeDownstream(run *analysis.Run, results []analysis.RecordResult, path string) (int, error) {
	var buf bytes.Buffer
	recs := run.Records()
	for i, rec := range recs {
		in := run.DownstreamInput(rec, results[i])
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("marshal payload %s: %w", rec.ID, err)
		}
		line, err := json.Marshal(downstreamLine{DownstreamInput: in, EstimatedTokens: utils.CountTokens(string(raw))})
		if err != nil {
			return 0, fmt.Errorf("marshal payload %s: %w", rec.ID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
		return 0, fmt.Errorf("write downstream: %w", err)
	}
	log.Debug("wrote downstream payloads", logger.String("path", path), logger.Int("count", len(recs)))
	return len(recs), nil
}

// printValidation renders a validation report for humans.
func printValidation(w io.Writer, rep analysis.ValidationReport) {
	if rep.Valid {
		fmt.Fprintf(w, "✓ Valid: %d rows\n", rep.RowCount)
	} else {
		fmt.Fprintf(w, "✗ Invalid: %d rows\n", rep.RowCount)
	}
	for _, e := range rep.Errors {
		fmt.Fprintf(w, "  ✗ %s\n", e)
	}
	for _, wn := range rep.Warnings {
		fmt.Fprintf(w, "  ⚠ %s\n", wn)
	}
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	anaInput.bind(analyzeCmd.Flags())
	analyzeCmd.Flags().StringVarP(&anaFormat, "format", "f", "", "output format: json|markdown (default from config)")
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the analysis")
	analyzeCmd.Flags().StringVar(&anaDownstream, "downstream", "", "optional path to write per-post summarizer payloads (JSON lines)")
	analyzeCmd.Flags().IntVar(&anaMaxRows, "max-rows", 50, "markdown: maximum per-post rows to list")
	analyzeCmd.Flags().IntVar(&anaMaxTokens, "max-tokens", 0, "markdown: truncate the digest to roughly this many tokens (0 = no limit)")
}
