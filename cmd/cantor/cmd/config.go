package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/cantor/configs"
	"github.com/Aman-CERP/cantor/internal/config"
	cerrors "github.com/Aman-CERP/cantor/internal/errors"
	"github.com/Aman-CERP/cantor/internal/output"
	"github.com/Aman-CERP/cantor/internal/ui"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the cantor configuration.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/cantor/config.yaml)
  3. Project config (.cantor.yaml in --config-dir)
  4. Environment variables (CANTOR_*)
  5. The --db flag`,
		Example: `  # Create the user config with defaults
  cantor config init

  # Show the effective configuration
  cantor config show

  # Print the user config file path
  cantor config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd(root))
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the user configuration file",
		Long: `Write a commented template with the default settings to the user
configuration file.

An existing file is left alone unless --force is given, in which case it
is backed up first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout(), output.WithColor(ui.UseColor(cmd.OutOrStdout(), false)))
			path := config.GetUserConfigPath()

			if config.UserConfigExists() {
				if !force {
					out.Warning("User configuration already exists")
					out.Statusf("📁", "Location: %s", path)
					out.Status("💡", "Use --force to reset it to defaults (a backup is kept)")
					return nil
				}
				backup, err := config.BackupFile(path)
				if err != nil {
					return cerrors.New(cerrors.ErrCodeConfigPermission, "failed to back up config", err)
				}
				out.Statusf("💾", "Backup: %s", backup)
			}

			if err := writeUserConfig(path); err != nil {
				return cerrors.New(cerrors.ErrCodeConfigPermission, "failed to write config", err).
					WithDetail("path", path)
			}

			out.Success("Created user configuration")
			out.Statusf("📁", "Location: %s", path)
			out.Status("📋", "Run 'cantor config show' to see the effective settings")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite the existing configuration")

	return cmd
}

// writeUserConfig writes the commented template to path.
func writeUserConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(configs.UserConfigTemplate), 0o644)
}

func newConfigShowCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if jsonOutput {
				return output.New(cmd.OutOrStdout()).JSON(root.cfg)
			}

			data, err := yaml.Marshal(root.cfg)
			if err != nil {
				return cerrors.InternalError("encode config", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "# effective configuration\n%s", data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.GetUserConfigPath()
			if _, err := os.Stat(path); err != nil {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (not created)\n", path)
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
}
