package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/postpulse-cli/internal/analysis"
	"github.com/KaramelBytes/postpulse-cli/internal/utils"
)

var (
	valInput inputFlags
	valJSON  bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check an export for required columns and data-quality issues",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		aopt, err := valInput.analysisOptions()
		if err != nil {
			return err
		}
		tbl, err := valInput.loadTable(args[0])
		if err != nil {
			return err
		}
		frame := analysis.NewNormalizer(aopt.HeaderMap, aopt.Numbers).Process(tbl)
		rep := analysis.Validate(frame)

		if valJSON {
			b, err := utils.PrettyJSON(rep)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
		} else {
			printValidation(cmd.OutOrStdout(), rep)
		}
		if !rep.Valid {
			return &analysis.ValidationError{Report: rep}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	valInput.bind(validateCmd.Flags())
	validateCmd.Flags().BoolVar(&valJSON, "json", false, "print the report as JSON")
}
