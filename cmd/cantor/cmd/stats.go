package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/cantor/internal/output"
	"github.com/Aman-CERP/cantor/internal/telemetry"
	"github.com/Aman-CERP/cantor/internal/ui"
)

const statsBarWidth = 24

func newStatsCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool
	var days int
	var limit int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show query statistics",
		Long: `Display the query telemetry stored in the song database:
  - Query type distribution (single term, multi term, filtered)
  - Top query terms
  - Recent zero-result queries
  - Latency distribution

Metrics are only recorded while telemetry.enabled is true and never
leave the machine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, root, func(ctx context.Context, a *app, w *output.Writer) error {
				sum, err := telemetry.Summarize(ctx, a.mstore, time.Now(), days, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return w.JSON(sum)
				}
				printStats(w, sum, root.cfg.Telemetry.Enabled)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&days, "days", 7, "Number of days to include")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of top terms and zero-result queries")

	return cmd
}

func printStats(w *output.Writer, sum *telemetry.StoredSummary, enabled bool) {
	st := w.Styles()
	w.Header(fmt.Sprintf("Query statistics %s to %s", sum.From, sum.To))
	if !enabled {
		w.Warning("Telemetry is disabled; nothing new is being recorded")
	}
	w.KeyValue("Total queries", sum.TotalQueries)
	w.Newline()

	w.Line("Query types:")
	for _, qt := range []telemetry.QueryType{
		telemetry.QueryTypeSingleTerm,
		telemetry.QueryTypeMultiTerm,
		telemetry.QueryTypeFiltered,
	} {
		n := sum.QueryTypeCounts[qt]
		w.Linef("  %-12s %s %d", qt, st.Bar.Render(ui.Bar(n, sum.TotalQueries, statsBarWidth)), n)
	}
	w.Newline()

	counts := make([]int64, len(telemetry.LatencyBuckets))
	for i, b := range telemetry.LatencyBuckets {
		counts[i] = sum.LatencyDistribution[b]
	}
	w.Linef("Latency:  %s  %s", st.Bar.Render(ui.Histogram(counts)), st.Dim.Render("(<10ms to >=500ms)"))
	for i, b := range telemetry.LatencyBuckets {
		w.Linef("  %-6s %d", b, counts[i])
	}
	w.Newline()

	if len(sum.TopTerms) == 0 {
		w.Line("Top terms: (none recorded yet)")
	} else {
		w.Line("Top terms:")
		for i, tc := range sum.TopTerms {
			w.Linef("  %2d. %s (%d)", i+1, tc.Term, tc.Count)
		}
	}
	w.Newline()

	if len(sum.ZeroResultQueries) == 0 {
		w.Line("Recent zero-result queries: (none)")
		return
	}
	w.Line("Recent zero-result queries:")
	for _, q := range sum.ZeroResultQueries {
		w.Linef("  - %q", q)
	}
}
