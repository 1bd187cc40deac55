package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"supplier-pricing/export"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <report.json>",
	Short: "Summarize an existing JSON export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := export.ReadJSON(args[0])
		if err != nil {
			return err
		}
		s := export.Summarize(report)

		w := cmd.OutOrStdout()
		if analyzeJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		}

		fmt.Fprintln(w, "=== DATA ANALYSIS SUMMARY ===")
		fmt.Fprintf(w, "Total configurations: %d (%d completed, %d failed, %.1f%% success)\n",
			s.Total, s.Completed, s.Failed, s.SuccessRate)
		if s.Prices != nil {
			fmt.Fprintf(w, "\nPrice range: %.2f - %.2f\n", s.Prices.Min, s.Prices.Max)
			fmt.Fprintf(w, "Average price: %.2f\n", s.Prices.Avg)
			fmt.Fprintf(w, "Median price: %.2f\n", s.Prices.Median)
		}
		if len(s.ProductTypes) > 0 {
			fmt.Fprintln(w, "\nProduct types:")
			for pt, n := range s.ProductTypes {
				fmt.Fprintf(w, "  %s: %d\n", pt, n)
			}
		}
		if s.PricePerSqFt != nil {
			fmt.Fprintln(w, "\n=== PRICING ANALYSIS ===")
			fmt.Fprintf(w, "Price per sq ft: %.2f - %.2f (average %.2f)\n", s.PricePerSqFt.Min, s.PricePerSqFt.Max, s.PricePerSqFt.Avg)
		}
		for _, kv := range s.Pairs() {
			logger.Debugf("%s = %s", kv[0], kv[1])
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the summary as JSON")
	rootCmd.AddCommand(analyzeCmd)
}
