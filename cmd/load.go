package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/carbonledger/emissions-cli/internal/factorstore"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load and validate all configured factor datasets",
	Long:  "Parses every configured dataset, failing on the first malformed row, and prints a summary of the resulting factor index. Use this to validate a new dataset version before deploying it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		specs, err := datasetSpecs()
		if err != nil {
			return err
		}

		idx, err := factorstore.LoadAll(cmd.Context(), specs)
		if err != nil {
			return err
		}

		cov := idx.Coverage()
		zap.L().Info("factor index built",
			zap.Int("records", idx.Len()),
			zap.Int("activities", len(cov)),
			zap.Strings("datasets", idx.Datasets()),
		)

		cmd.Printf("Loaded %d factor records across %d activities from %d datasets\n",
			idx.Len(), len(cov), len(idx.Datasets()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
