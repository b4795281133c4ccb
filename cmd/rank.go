package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/postpulse-cli/internal/analysis"
	"github.com/KaramelBytes/postpulse-cli/internal/utils"
)

var (
	rankInput  inputFlags
	rankMetric string
	rankN      int
	rankJSON   bool
)

var rankCmd = &cobra.Command{
	Use:   "rank <file>",
	Short: "List the top and bottom posts for one metric",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := analysis.ParseMetric(rankMetric)
		if err != nil {
			return err
		}
		if rankN <= 0 {
			return fmt.Errorf("-n must be positive")
		}
		run, err := rankInput.prepare(args[0])
		if err != nil {
			return err
		}
		r := run.Rank(m, rankN)
		out := cmd.OutOrStdout()
		if rankJSON {
			b, err := utils.PrettyJSON(r)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		label := currentConfig().Labels[string(m)]
		if label == "" {
			label = string(m)
		}
		fmt.Fprintf(out, "Top %d by %s:\n", len(r.Top), label)
		for i, id := range r.Top {
			fmt.Fprintf(out, "  %d. %s\n", i+1, id)
		}
		fmt.Fprintf(out, "Bottom %d by %s:\n", len(r.Bottom), label)
		for i, id := range r.Bottom {
			fmt.Fprintf(out, "  %d. %s\n", i+1, id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)
	rankInput.bind(rankCmd.Flags())
	rankCmd.Flags().StringVarP(&rankMetric, "metric", "m", string(analysis.Read7d), "metric to rank by")
	rankCmd.Flags().IntVarP(&rankN, "top", "n", 10, "number of posts per list")
	rankCmd.Flags().BoolVar(&rankJSON, "json", false, "print the ranking as JSON")
}
