package main

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var coverageJSON bool

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Report factor coverage per activity",
	Long:  "Lists, per activity, which calculation methods and regions have at least one factor. Operational tooling uses this to find gaps before a reporting run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		idx := env.Store.Index()
		cov := idx.Coverage()

		if coverageJSON {
			out, err := json.MarshalIndent(cov, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		}

		activities := make([]string, 0, len(cov))
		for a := range cov {
			activities = append(activities, a)
		}
		sort.Strings(activities)

		p := message.NewPrinter(language.English)
		p.Fprintf(cmd.OutOrStdout(), "%d activities, %d factor records\n\n", len(cov), idx.Len())
		for _, a := range activities {
			c := cov[a]
			p.Fprintf(cmd.OutOrStdout(), "%-30s methods=%s regions=%s\n",
				a, strings.Join(c.Methods, ","), strings.Join(c.Regions, ","))
		}
		return nil
	},
}

func init() {
	coverageCmd.Flags().BoolVar(&coverageJSON, "json", false, "emit coverage as JSON")
	rootCmd.AddCommand(coverageCmd)
}
