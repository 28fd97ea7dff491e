package main

import (
	"encoding/json"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/carbonledger/emissions-cli/internal/audit"
	"github.com/carbonledger/emissions-cli/internal/monitoring"
)

var (
	auditActivity string
	auditMethod   string
	auditLimit    int
	auditHours    int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the calculation audit trail",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit entries as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initAudit(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}

		entries, err := st.List(cmd.Context(), audit.Filter{
			ActivityID: auditActivity,
			Method:     auditMethod,
			Limit:      auditLimit,
		})
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	},
}

var auditStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize calculation activity and fallback usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initAudit(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}

		snap, err := monitoring.NewCollector(st).Collect(cmd.Context(), auditHours)
		if err != nil {
			return err
		}

		p := message.NewPrinter(language.English)
		p.Fprintf(cmd.OutOrStdout(), "%d calculations, %d on fallback factors (%.1f%%)\n",
			snap.Calculations, snap.Fallbacks, snap.FallbackRate*100)
		p.Fprintf(cmd.OutOrStdout(), "total: %.2f kgCO2e across %d activities\n",
			snap.TotalCO2eKg, snap.DistinctActivities)
		p.Fprintf(cmd.OutOrStdout(), "average factor confidence: %.2f\n", snap.AvgConfidence)
		methods := make([]string, 0, len(snap.ByMethod))
		for m := range snap.ByMethod {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		for _, m := range methods {
			p.Fprintf(cmd.OutOrStdout(), "  %s: %d\n", m, snap.ByMethod[m])
		}
		return nil
	},
}

func init() {
	auditListCmd.Flags().StringVar(&auditActivity, "activity", "", "filter by activity identifier")
	auditListCmd.Flags().StringVar(&auditMethod, "method", "", "filter by calculation method")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "maximum entries to return")
	auditStatsCmd.Flags().IntVar(&auditHours, "hours", 0, "lookback window in hours (0 = entire trail)")

	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditStatsCmd)
	rootCmd.AddCommand(auditCmd)
}
