package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/carbonledger/emissions-cli/internal/calc"
)

var (
	batchMethod string
	batchJSON   bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <activities.csv>",
	Short: "Calculate audited CO2e amounts for an activity ledger",
	Long:  "Reads an activity ledger CSV (columns: activity, region, unit, plus quantity/spend/distance) and calculates one audited emission per row. Rows with non-positive amounts count as zero emissions; any malformed row fails the whole file so partial totals never ship.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		items, err := calc.ReadActivities(args[0])
		if err != nil {
			return err
		}

		results, err := env.Calculator.CalculateAll(cmd.Context(), items, batchMethod)
		if err != nil {
			return err
		}

		if batchJSON {
			out, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		}

		zero := 0
		fallbacks := 0
		for _, r := range results {
			if r.ZeroActivity {
				zero++
			}
			if r.Factor != nil && r.Factor.IsFallback {
				fallbacks++
			}
		}

		p := message.NewPrinter(language.English)
		p.Fprintf(cmd.OutOrStdout(), "%d rows calculated, %d zero, %d on fallback factors\n",
			len(results), zero, fallbacks)
		p.Fprintf(cmd.OutOrStdout(), "total: %.2f kgCO2e\n", calc.SumCO2e(results))
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchMethod, "method", "quantity", "calculation method: quantity, spend, or distance")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "emit per-row results as JSON")
	rootCmd.AddCommand(batchCmd)
}
