package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cerrors "github.com/Aman-CERP/cantor/internal/errors"
	"github.com/Aman-CERP/cantor/internal/output"
	"github.com/Aman-CERP/cantor/internal/search"
)

func newSynonymsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synonyms",
		Short: "Manage synonym groups",
		Long: `Manage the synonym groups used to widen searches.

Every term of a group matches every other term of the same group, so a
search for "Cristos" also finds songs that spell it "Hristos".`,
	}

	cmd.AddCommand(newSynonymsListCmd(root))
	cmd.AddCommand(newSynonymsSetCmd(root))

	return cmd
}

func newSynonymsListCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the stored synonym groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, root, func(ctx context.Context, a *app, w *output.Writer) error {
				groups, err := a.library.Synonyms(ctx)
				if err != nil {
					return err
				}
				if jsonOutput {
					if groups == nil {
						groups = []search.SynonymGroup{}
					}
					return w.JSON(groups)
				}

				if len(groups) == 0 {
					w.Line("No synonym groups")
					return nil
				}
				w.Header(fmt.Sprintf("%d synonym groups", len(groups)))
				for _, g := range groups {
					w.KeyValue(g.Primary, strings.Join(g.Synonyms, ", "))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output groups as JSON")

	return cmd
}

func newSynonymsSetCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <file.json|file.yaml>",
		Short: "Replace the synonym groups from a file",
		Long: `Replace every stored synonym group with the groups in a file.

The file holds a list of groups, as JSON or YAML:
  - primary: Hristos
    synonyms: [Cristos]
  - primary: Isus
    synonyms: [Iisus]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := readSynonymFile(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, root, func(ctx context.Context, a *app, w *output.Writer) error {
				if err := a.library.SetSynonyms(ctx, groups); err != nil {
					return err
				}
				w.Successf("Saved %d synonym groups", len(groups))
				return nil
			})
		},
	}
}

// readSynonymFile parses a list of groups. JSON is valid YAML, so one
// decoder reads both.
func readSynonymFile(path string) ([]search.SynonymGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.ValidationError(fmt.Sprintf("cannot read synonym file %s", path), err)
	}

	var groups []search.SynonymGroup
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeSynonymsInvalid, "synonym file is not a list of groups", err).
			WithDetail("file", path)
	}
	return groups, nil
}
