package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	cerrors "github.com/Aman-CERP/cantor/internal/errors"
	"github.com/Aman-CERP/cantor/internal/index"
	"github.com/Aman-CERP/cantor/internal/output"
	"github.com/Aman-CERP/cantor/internal/ui"
)

func newIndexCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Maintain the full-text indexes",
		Long: `Maintain the full-text indexes.

The library keeps the indexes current on every change. These commands
repair them by hand, for example after editing the database with another
tool.`,
	}

	cmd.AddCommand(newIndexRebuildCmd(root))
	cmd.AddCommand(newIndexSongCmd(root))
	cmd.AddCommand(newIndexRemoveCmd(root))
	cmd.AddCommand(newIndexCategoryCmd(root))
	cmd.AddCommand(newIndexStatusCmd(root))
	cmd.AddCommand(newIndexCheckCmd(root))

	return cmd
}

func newIndexRebuildCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild both indexes from the song tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, root, func(ctx context.Context, a *app, w *output.Writer) error {
				if path := a.db.Path(); path != "" {
					lock := index.NewFileLock(path)
					if err := lock.Lock(ctx); err != nil {
						return cerrors.New(cerrors.ErrCodeDatabaseLocked, "another rebuild is running", err).
							WithDetail("lock", lock.Path())
					}
					defer func() { _ = lock.Unlock() }()
				}

				stats, err := a.writer.RebuildAll(ctx)
				if err != nil {
					return err
				}

				slog.Info("rebuild_command_complete",
					slog.Int("indexed", stats.Indexed),
					slog.Int("skipped", stats.Skipped))

				w.Successf("Rebuilt index: %d songs in %s", stats.Indexed, stats.Duration.Round(time.Millisecond))
				if stats.Skipped > 0 {
					w.Warningf("%d songs could not be indexed, see the log", stats.Skipped)
				}
				return nil
			})
		},
	}
}

func newIndexSongCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "song <id>",
		Short: "Reindex one song",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("song", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, root, func(ctx context.Context, a *app, w *output.Writer) error {
				if err := a.writer.IndexSong(ctx, id); err != nil {
					return err
				}
				w.Successf("Indexed song %d", id)
				return nil
			})
		},
	}
}

func newIndexRemoveCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove one song from the indexes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("song", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, root, func(ctx context.Context, a *app, w *output.Writer) error {
				if err := a.writer.RemoveSong(ctx, id); err != nil {
					return err
				}
				w.Successf("Removed song %d from the index", id)
				return nil
			})
		},
	}
}

func newIndexCategoryCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "category <id>",
		Short: "Reindex every song of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("category", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, root, func(ctx context.Context, a *app, w *output.Writer) error {
				stats, err := a.writer.ReindexByCategory(ctx, id)
				if err != nil {
					return err
				}
				w.Successf("Reindexed %d songs of category %d", stats.Indexed, id)
				if stats.Skipped > 0 {
					w.Warningf("%d songs could not be indexed, see the log", stats.Skipped)
				}
				return nil
			})
		},
	}
}

func newIndexStatusCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, root, func(ctx context.Context, a *app, w *output.Writer) error {
				st, err := a.db.Status(ctx)
				if err != nil {
					return err
				}
				if jsonOutput {
					return w.JSON(st)
				}

				w.Header("Index status")
				w.KeyValue("Database", st.DatabasePath)
				w.KeyValue("Driver", st.BuildMode)
				w.KeyValue("Schema", st.SchemaVersion)
				w.KeyValue("Songs", st.Songs)
				w.KeyValue("Standard docs", st.StandardDocs)
				if st.FuzzyAvailable {
					w.KeyValue("Fuzzy docs", st.FuzzyDocs)
				} else {
					w.KeyValue("Fuzzy docs", "unavailable")
				}

				switch {
				case !st.StandardHealthy:
					w.Error("Standard index failed its integrity check; run 'cantor index rebuild'")
				case st.StandardDocs != st.Songs || (st.FuzzyAvailable && st.FuzzyDocs != st.Songs):
					w.Warning("Index is out of sync with the song table; run 'cantor index rebuild'")
				default:
					w.Success("Index is healthy")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")

	return cmd
}

func newIndexCheckCmd(root *rootOptions) *cobra.Command {
	var repair bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare the indexes with the song table",
		Long: `Compare every index document with the song table.

Orphans are documents whose song no longer exists. Missing entries are
songs without a document. With --repair, orphans are removed and missing
songs are indexed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, root, func(ctx context.Context, a *app, w *output.Writer) error {
				checker := index.NewConsistencyChecker(a.db, a.writer)
				result, err := checker.Check(ctx)
				if err != nil {
					return err
				}

				var repaired *index.RepairStats
				if repair && !result.Consistent() {
					stats, err := checker.Repair(ctx, result.Inconsistencies)
					if err != nil {
						return err
					}
					repaired = &stats
				}

				if jsonOutput {
					return w.JSON(struct {
						*index.CheckResult
						Repair *index.RepairStats `json:"repair,omitempty"`
					}{result, repaired})
				}

				if result.Consistent() {
					w.Successf("Checked %d songs, index is consistent", result.Checked)
					return nil
				}
				w.Warningf("Checked %d songs, found %d issues", result.Checked, len(result.Inconsistencies))
				for _, issue := range result.Inconsistencies {
					w.Linef("  song %-6d %s", issue.SongID, issue.Type)
				}
				if repaired == nil {
					w.Status("💡", "Run 'cantor index check --repair' to fix them")
					return nil
				}
				w.Successf("Removed %d orphans, indexed %d songs", repaired.OrphansRemoved, repaired.SongsIndexed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "Fix the issues found")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the result as JSON")

	return cmd
}

// withApp opens the library for the duration of fn.
func withApp(cmd *cobra.Command, root *rootOptions, fn func(ctx context.Context, a *app, w *output.Writer) error) error {
	ctx := cmd.Context()
	a, err := root.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	out := cmd.OutOrStdout()
	return fn(ctx, a, output.New(out, output.WithColor(ui.UseColor(out, false))))
}

func parseID(kind, arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, cerrors.ValidationError(fmt.Sprintf("invalid %s id %q", kind, arg), err).
			WithSuggestion("Pass a positive numeric id")
	}
	return id, nil
}
