package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/carbonledger/emissions-cli/internal/calc"
	"github.com/carbonledger/emissions-cli/internal/model"
)

var (
	calcActivity string
	calcRegion   string
	calcMethod   string
	calcValue    float64
	calcUnit     string
)

var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Calculate an audited CO2e amount for one activity line",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		item := model.ActivityRecord{
			Activity: calcActivity,
			Region:   calcRegion,
			Unit:     calcUnit,
		}
		switch calcMethod {
		case "spend":
			item.Spend = calcValue
		case "distance":
			item.Distance = calcValue
		default:
			item.Quantity = calcValue
		}

		res, err := env.Calculator.Calculate(cmd.Context(), item, calcMethod)
		if err != nil {
			var inputErr *calc.InputError
			if errors.As(err, &inputErr) {
				res = calc.ZeroResult(item, calcMethod)
			} else {
				return err
			}
		}

		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	},
}

func init() {
	calculateCmd.Flags().StringVar(&calcActivity, "activity", "", "activity identifier (required)")
	calculateCmd.Flags().StringVar(&calcRegion, "region", "", "region code (required)")
	calculateCmd.Flags().StringVar(&calcMethod, "method", "quantity", "calculation method: quantity, spend, or distance")
	calculateCmd.Flags().Float64Var(&calcValue, "value", 0, "activity amount (required)")
	calculateCmd.Flags().StringVar(&calcUnit, "unit", "", "unit of the activity amount (required)")
	_ = calculateCmd.MarkFlagRequired("activity")
	_ = calculateCmd.MarkFlagRequired("region")
	_ = calculateCmd.MarkFlagRequired("value")
	_ = calculateCmd.MarkFlagRequired("unit")
	rootCmd.AddCommand(calculateCmd)
}
