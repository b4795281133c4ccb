package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// runCmd executes the root command with args and returns what it printed.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Cobra keeps flag values and Changed state between Execute calls.
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// isolate points HOME and the working directory at fresh temp dirs.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	chdir(t, home)
	return home
}

func writeCSV(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

const outlierCSV = "数据ID,内容形式,发文类型,款式信息,7天阅读/播放\n" +
	"p1,图文,种草,白色,10\n" +
	"p2,视频,种草,,10\n" +
	"p3,图文,种草,,10\n" +
	"p4,视频,测评,,10\n" +
	"p5,图文,测评,,10\n" +
	"p6,视频,测评,,10\n" +
	"p7,图文,种草,,10\n" +
	"p8,视频,种草,,10\n" +
	"p9,图文,种草,,10\n" +
	"p10,视频,测评,蓝色,1000\n"

func TestCLI_AnalyzeJSON(t *testing.T) {
	home := isolate(t)
	p := writeCSV(t, filepath.Join(home, "posts.csv"), outlierCSV)

	out, err := runCmd(t, "analyze", p, "--format", "json")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var rep struct {
		RunID   string `json:"run_id"`
		Summary struct {
			TotalRecords int `json:"totalRecords"`
		} `json:"summary"`
		Results []struct {
			Identifier       string            `json:"identifier"`
			Performance      string            `json:"performance"`
			HighlightMetrics []string          `json:"highlightMetrics"`
			CompareToAvg     map[string]string `json:"compareToAvg"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if rep.RunID == "" || rep.Summary.TotalRecords != 10 || len(rep.Results) != 10 {
		t.Fatalf("unexpected report header: %+v", rep)
	}
	last := rep.Results[9]
	if last.Identifier != "p10" || last.Performance != "Excellent" {
		t.Fatalf("unexpected outlier result: %+v", last)
	}
	if len(last.HighlightMetrics) != 1 || last.HighlightMetrics[0] != "read_7d" {
		t.Fatalf("highlights=%v", last.HighlightMetrics)
	}
	if got := last.CompareToAvg["7天阅读"]; got != "+817%" {
		t.Fatalf("compareToAvg=%q", got)
	}
}

func TestCLI_AnalyzeMarkdownAndDownstream(t *testing.T) {
	home := isolate(t)
	p := writeCSV(t, filepath.Join(home, "posts.csv"), outlierCSV)
	mdPath := filepath.Join(home, "out", "report.md")
	dsPath := filepath.Join(home, "out", "payloads.jsonl")

	out, err := runCmd(t, "analyze", p, "-f", "markdown", "-o", mdPath, "--downstream", dsPath, "--baseline", "median")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(out, "✓ Wrote analysis to") {
		t.Fatalf("missing confirmation: %q", out)
	}
	md, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatalf("read md: %v", err)
	}
	if !strings.Contains(string(md), "[DATASET SUMMARY]") || !strings.Contains(string(md), "[BY POST_TYPE]") {
		t.Fatalf("markdown sections missing:\n%s", md)
	}

	raw, err := os.ReadFile(dsPath)
	if err != nil {
		t.Fatalf("read downstream: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 10 {
		t.Fatalf("expected 10 payloads, got %d", len(lines))
	}
	var last struct {
		Identifier         string `json:"identifier"`
		ContentDescription struct {
			StyleInfo string `json:"style_info"`
		} `json:"content_description"`
		AnalysisResult struct {
			HighlightMetrics []string          `json:"highlight_metrics"`
			CompareToAvg     map[string]string `json:"compare_to_avg"`
		} `json:"analysis_result"`
		EstimatedTokens int `json:"estimated_tokens"`
	}
	if err := json.Unmarshal([]byte(lines[9]), &last); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if last.Identifier != "p10" || last.ContentDescription.StyleInfo != "蓝色" {
		t.Fatalf("unexpected payload: %+v", last)
	}
	if len(last.AnalysisResult.HighlightMetrics) != 1 || last.AnalysisResult.HighlightMetrics[0] != "7天阅读" {
		t.Fatalf("payload highlights should use labels: %v", last.AnalysisResult.HighlightMetrics)
	}
	if last.AnalysisResult.CompareToAvg["7天阅读"] != "+9900%" {
		t.Fatalf("median baseline not applied: %v", last.AnalysisResult.CompareToAvg)
	}
	if last.EstimatedTokens <= 0 {
		t.Fatalf("estimated_tokens=%d", last.EstimatedTokens)
	}
}

func TestCLI_AnalyzeValidationFailure(t *testing.T) {
	home := isolate(t)
	p := writeCSV(t, filepath.Join(home, "bad.csv"), "标题,7天互动\na,1\nb,2\n")

	out, err := runCmd(t, "analyze", p)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(out, "✗ Invalid: 2 rows") || !strings.Contains(out, "missing required column: data_id") {
		t.Fatalf("validation report not printed: %q", out)
	}
}

func TestCLI_Validate(t *testing.T) {
	home := isolate(t)
	p := writeCSV(t, filepath.Join(home, "dups.csv"), "data_id,read_7d\na,1\na,\nb,3\n")

	out, err := runCmd(t, "validate", p)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	for _, want := range []string{"✓ Valid: 3 rows", "⚠ found 1 duplicate data_id values", "⚠ column read_7d has 1 null values"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}

	out, err = runCmd(t, "validate", p, "--json")
	if err != nil {
		t.Fatalf("validate --json: %v", err)
	}
	if !strings.Contains(out, `"row_count": 3`) {
		t.Fatalf("json report: %s", out)
	}
}

func TestCLI_Rank(t *testing.T) {
	home := isolate(t)
	p := writeCSV(t, filepath.Join(home, "posts.csv"), outlierCSV)

	out, err := runCmd(t, "rank", p, "--metric", "read_7d", "-n", "2")
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if !strings.Contains(out, "Top 2 by 7天阅读:\n  1. p10\n  2. p1\n") {
		t.Fatalf("unexpected ranking:\n%s", out)
	}
	if _, err := runCmd(t, "rank", p, "--metric", "likes"); err == nil {
		t.Fatalf("expected unknown metric error")
	}
}

func TestCLI_AnalyzeBatch(t *testing.T) {
	home := isolate(t)
	writeCSV(t, filepath.Join(home, "d1", "metrics.csv"), outlierCSV)
	writeCSV(t, filepath.Join(home, "d2", "metrics.csv"), outlierCSV)
	writeCSV(t, filepath.Join(home, "d3", "metrics.csv"), "标题\nx\n")
	writeCSV(t, filepath.Join(home, "d3", "notes.txt"), "ignored")
	outDir := filepath.Join(home, "reports")

	out, err := runCmd(t, "analyze-batch", filepath.Join(home, "d*", "*"), "--out-dir", outDir, "--jobs", "2")
	if err == nil || !strings.Contains(err.Error(), "1 of 3 files failed") {
		t.Fatalf("expected one failure, got %v\n%s", err, out)
	}
	for _, name := range []string{"metrics.json", "metrics__2.json"} {
		b, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		if !strings.Contains(string(b), `"totalRecords": 10`) {
			t.Fatalf("%s is not a report", name)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "metrics__3.json")); !os.IsNotExist(err) {
		t.Fatalf("failed input should not produce a report")
	}
	if !strings.Contains(out, "[3/3] ✗ metrics.csv") {
		t.Fatalf("progress lines not in input order:\n%s", out)
	}
}

func TestCLI_ConfigInitSetShow(t *testing.T) {
	home := isolate(t)
	cfgPath := filepath.Join(home, "conf", "config.yaml")

	if _, err := runCmd(t, "config", "init", "--config", cfgPath); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := runCmd(t, "config", "init", "--config", cfgPath); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if _, err := runCmd(t, "config", "set", "labels.read_7d", "reads", "--config", cfgPath); err != nil {
		t.Fatalf("set label: %v", err)
	}
	if _, err := runCmd(t, "config", "set", "thresholds.excellent", "0.1", "--config", cfgPath); err == nil {
		t.Fatalf("expected invalid thresholds to be rejected")
	}
	if _, err := runCmd(t, "config", "set", "labels.read_14d", "7天阅读", "--config", cfgPath); err != nil {
		t.Fatalf("label freed by read_7d should be reusable: %v", err)
	}
	if _, err := runCmd(t, "config", "set", "labels.want_7d", "reads", "--config", cfgPath); err == nil {
		t.Fatalf("expected duplicate label to be rejected")
	}
	if _, err := runCmd(t, "config", "set", "log_level", "verbose", "--config", cfgPath); err == nil {
		t.Fatalf("expected invalid log_level to be rejected")
	}
	if _, err := runCmd(t, "config", "set", "nope", "1", "--config", cfgPath); err == nil {
		t.Fatalf("expected unknown key error")
	}
	out, err := runCmd(t, "config", "show", "--config", cfgPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "read_7d: reads") || !strings.Contains(out, "excellent: 1.3") {
		t.Fatalf("unexpected config:\n%s", out)
	}

	p := writeCSV(t, filepath.Join(home, "posts.csv"), outlierCSV)
	out, err = runCmd(t, "rank", p, "-n", "1", "--config", cfgPath)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if !strings.Contains(out, "Top 1 by reads:") {
		t.Fatalf("configured label not used:\n%s", out)
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
