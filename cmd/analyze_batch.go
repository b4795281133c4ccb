package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/postpulse-cli/internal/logger"
	"github.com/KaramelBytes/postpulse-cli/internal/parser"
	"github.com/KaramelBytes/postpulse-cli/internal/utils"
)

var (
	abInput    inputFlags
	abOutDir   string
	abJobs     int
	abFailFast bool
	abQuiet    bool
)

// batchResult is the outcome of one file in a batch.
type batchResult struct {
	input  string
	output string
	rows   int
	err    error
}

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze multiple CSV/TSV/XLSX files concurrently, one JSON report per file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		if abOutDir == "" {
			return fmt.Errorf("--out-dir is required")
		}
		if err := utils.EnsureDir(abOutDir); err != nil {
			return fmt.Errorf("create out dir: %w", err)
		}
		// Validate shared options once, before any work starts.
		if _, err := abInput.analysisOptions(); err != nil {
			return err
		}
		if _, err := abInput.parserOptions(); err != nil {
			return err
		}

		jobs := abJobs
		if jobs <= 0 {
			jobs = currentConfig().BatchJobs
		}
		if jobs <= 0 {
			jobs = 1
		}
		outputs := outputNames(files, abOutDir)
		results := make([]batchResult, len(files))

		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(jobs)
		for i, path := range files {
			i, path := i, path // per-iteration copies (go 1.21 loop semantics)
			g.Go(func() error {
				res := analyzeOne(ctx, path, outputs[i])
				results[i] = res
				if res.err != nil && abFailFast {
					return fmt.Errorf("%s: %w", filepath.Base(path), res.err)
				}
				return nil
			})
		}
		groupErr := g.Wait()

		out := cmd.OutOrStdout()
		failed := 0
		for i, res := range results {
			switch {
			case res.err != nil:
				failed++
				if !abQuiet {
					fmt.Fprintf(out, "[%d/%d] ✗ %s: %v\n", i+1, len(files), filepath.Base(res.input), res.err)
				}
			default:
				if !abQuiet {
					fmt.Fprintf(out, "[%d/%d] ✓ %s → %s (%d posts)\n", i+1, len(files), filepath.Base(res.input), res.output, res.rows)
				}
			}
		}
		if groupErr != nil {
			return groupErr
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(files))
		}
		return nil
	},
}

func analyzeOne(ctx context.Context, path, output string) batchResult {
	res := batchResult{input: path}
	if err := ctx.Err(); err != nil {
		res.err = err
		return res
	}
	run, err := abInput.prepare(path)
	if err != nil {
		log.Warn("batch file failed", logger.String("file", path), logger.Error(err))
		res.err = err
		return res
	}
	body, err := utils.PrettyJSON(run.BuildReport())
	if err != nil {
		res.err = err
		return res
	}
	if err := utils.SafeWriteFile(output, body); err != nil {
		res.err = err
		return res
	}
	res.output = output
	res.rows = run.Frame().Len()
	return res
}

// expandInputs resolves globs and literal paths into a sorted, de-duplicated
// list of supported files.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok || !parser.Supported(m) {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, errors.New("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// outputNames assigns each input a report path under dir. Inputs sharing a
// base name get a numeric suffix in input order.
func outputNames(files []string, dir string) []string {
	out := make([]string, len(files))
	used := map[string]int{}
	for i, f := range files {
		name := utils.SwapExt(f, ".json")
		key := strings.ToLower(name)
		used[key]++
		if n := used[key]; n > 1 {
			name = fmt.Sprintf("%s__%d.json", strings.TrimSuffix(name, ".json"), n)
		}
		out[i] = filepath.Join(dir, name)
	}
	return out
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	abInput.bind(analyzeBatchCmd.Flags())
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", "", "directory for the per-file JSON reports")
	analyzeBatchCmd.Flags().IntVarP(&abJobs, "jobs", "j", 0, "files analyzed in parallel (default from config)")
	analyzeBatchCmd.Flags().BoolVar(&abFailFast, "fail-fast", false, "stop scheduling files after the first failure")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress per-file progress")
}
