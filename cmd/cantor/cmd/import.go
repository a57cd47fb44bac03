package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	cerrors "github.com/Aman-CERP/cantor/internal/errors"
	"github.com/Aman-CERP/cantor/internal/output"
)

func newImportCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import a YAML song book",
		Long: `Import categories, songs and synonym groups from a YAML song book.

The whole book is validated before anything is written. Categories that
already exist are reused by name. Imported songs are indexed in one batch
at the end.

Example book:
  categories:
    - name: Worship
      priority: 5
  songs:
    - title: Cât de mare ești
      category: Worship
      slides:
        - Doamne, Dumnezeul meu...
  synonyms:
    - primary: Hristos
      synonyms: [Cristos]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return cerrors.ValidationError(fmt.Sprintf("cannot open song book %s", path), err)
			}
			defer func() { _ = f.Close() }()

			return withApp(cmd, root, func(ctx context.Context, a *app, w *output.Writer) error {
				stats, err := a.library.Import(ctx, f)
				if err != nil {
					return err
				}

				slog.Info("import_command_complete",
					slog.String("file", path),
					slog.Int("songs", stats.SongsCreated))

				w.Successf("Imported %s in %s", path, stats.Duration.Round(time.Millisecond))
				w.KeyValue("Categories created", stats.CategoriesCreated)
				w.KeyValue("Categories updated", stats.CategoriesUpdated)
				w.KeyValue("Songs created", stats.SongsCreated)
				w.KeyValue("Songs indexed", stats.SongsIndexed)
				w.KeyValue("Synonym groups", stats.SynonymGroups)
				if stats.SongsSkipped > 0 {
					w.Warningf("%d songs could not be indexed; run 'cantor index rebuild'", stats.SongsSkipped)
				}
				return nil
			})
		},
	}
}
