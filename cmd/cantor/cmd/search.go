package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	cerrors "github.com/Aman-CERP/cantor/internal/errors"
	"github.com/Aman-CERP/cantor/internal/output"
	"github.com/Aman-CERP/cantor/internal/search"
	"github.com/Aman-CERP/cantor/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	category int64
	limit    int
	format   string // "text", "json"
	explain  bool
	noColor  bool
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the song library",
		Long: `Search song titles, category names and lyrics.

Terms are matched by prefix, accents are ignored and related words from
the synonym groups are searched too. Misspelled terms fall back to the
trigram index when it is available.

Examples:
  cantor search "isus e domn"
  cantor search harul --category 3
  cantor search "mare e credinciosia" --explain
  cantor search lauda --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var category *int64
			if cmd.Flags().Changed("category") {
				category = &opts.category
			}
			return runSearch(cmd.Context(), cmd, root, strings.Join(args, " "), category, opts)
		},
	}

	cmd.Flags().Int64VarP(&opts.category, "category", "c", 0, "Only return songs of this category ID")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results to print (0 prints all)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show the query plan and the score of every result")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

// searchReport is the JSON form of a search.
type searchReport struct {
	Query   string                `json:"query"`
	Plan    *search.QueryPlan     `json:"plan,omitempty"`
	Results []search.RankedResult `json:"results"`
}

func runSearch(ctx context.Context, cmd *cobra.Command, root *rootOptions, query string, category *int64, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return cerrors.ValidationError(fmt.Sprintf("unknown format %q", opts.format), nil).
			WithSuggestion("Use --format text or --format json")
	}

	a, err := root.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	results, err := a.engine.SearchRanked(ctx, query, search.Options{CategoryID: category})
	if err != nil {
		return err
	}
	if opts.limit > 0 && len(results) > opts.limit {
		results = results[:opts.limit]
	}

	var plan *search.QueryPlan
	if opts.explain {
		p, err := a.engine.Plan(ctx, query)
		if err != nil {
			return err
		}
		plan = &p
	}

	slog.Info("search_command_complete",
		slog.String("query", query),
		slog.Int("results", len(results)))

	out := cmd.OutOrStdout()
	w := output.New(out, output.WithColor(ui.UseColor(out, opts.noColor || opts.format == "json")))

	if opts.format == "json" {
		return w.JSON(searchReport{Query: query, Plan: plan, Results: results})
	}

	if plan != nil {
		printPlan(w, plan, a.engine.Weights())
	}
	printResults(w, query, results, opts.explain)
	return nil
}

func printPlan(w *output.Writer, plan *search.QueryPlan, weights search.Weights) {
	w.Header("Query plan")
	w.KeyValue("Terms", strings.Join(plan.Terms.Raw, " "))
	w.KeyValue("Kept terms", strings.Join(plan.Terms.Valid, " "))
	w.KeyValue("With synonyms", strings.Join(plan.Terms.Expanded, " "))
	w.KeyValue("Standard query", orDash(plan.StandardQuery))
	w.KeyValue("Fuzzy query", orDash(plan.FuzzyQuery))
	w.KeyValue("Boost mode", weights.BoostMode)
	w.Newline()
}

func printResults(w *output.Writer, query string, results []search.RankedResult, explain bool) {
	if len(results) == 0 {
		w.Statusf("🔍", "No songs match %q", query)
		return
	}

	w.Statusf("🔍", "%d songs match %q", len(results), query)
	w.Newline()

	st := w.Styles()
	for i, r := range results {
		category := st.Dim.Render("no category")
		if r.CategoryName != nil {
			category = st.Category.Render(*r.CategoryName)
		}
		w.Linef("%2d. %s  (#%d, %s)", i+1, w.Highlight(r.HighlightedTitle), r.ID, category)
		if r.MatchedContentSnippet != "" {
			w.Linef("    %s", w.Highlight(r.MatchedContentSnippet))
		}
		if explain {
			w.Linef("    %s", st.Score.Render(fmt.Sprintf(
				"score %.3f  title %.3f  content %.3f  terms %.3f  priority %d  rank %.3f%s",
				r.BoostedScore, r.TitleScore, r.ContentScore, r.TermScore,
				r.Priority, r.NativeRank, fuzzyMark(r.FromFuzzyIndex))))
		}
	}
}

func fuzzyMark(fuzzy bool) string {
	if fuzzy {
		return ", fuzzy"
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
