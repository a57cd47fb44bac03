// Package cmd provides the CLI commands for cantor.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/cantor/internal/config"
	cerrors "github.com/Aman-CERP/cantor/internal/errors"
	"github.com/Aman-CERP/cantor/internal/logging"
	"github.com/Aman-CERP/cantor/pkg/version"
)

// rootOptions holds the persistent flags and the state built from them
// before a subcommand runs.
type rootOptions struct {
	debug     bool
	configDir string
	dbPath    string

	cfg            *config.Config
	loggingCleanup func()
	prevLogger     *slog.Logger
}

// NewRootCmd creates the root command for the cantor CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "cantor",
		Short: "Song lyrics search for worship presentation",
		Long: `cantor keeps a library of songs and their slides in SQLite and
searches it with full-text and typo-tolerant matching.

Results are ranked by where the terms appear (title before lyrics),
how close together they are and the priority of the song's category.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("cantor version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging (also mirrored to stderr)")
	cmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", ".", "Directory holding the project .cantor.yaml")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "Song database path (overrides config)")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return opts.setup()
	}
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		opts.teardown()
		return nil
	}

	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newImportCmd(opts))
	cmd.AddCommand(newSynonymsCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads the configuration and installs the JSON logger.
func (o *rootOptions) setup() error {
	cfg, err := config.Load(o.configDir)
	if err != nil {
		return err
	}
	if o.dbPath != "" {
		cfg.Database.Path = o.dbPath
	}
	o.cfg = cfg

	logger, cleanup, err := logging.Setup(cfg.LoggingSetup(o.debug))
	if err != nil {
		return cerrors.New(cerrors.ErrCodeConfigPermission, "failed to set up logging", err).
			WithSuggestion("Set logging.file in the config to a writable path")
	}
	o.loggingCleanup = cleanup
	o.prevLogger = slog.Default()
	slog.SetDefault(logger)

	slog.Debug("config_loaded",
		slog.String("database", cfg.Database.Path),
		slog.String("log_level", cfg.Logging.Level),
		slog.Bool("telemetry", cfg.Telemetry.Enabled))
	return nil
}

func (o *rootOptions) teardown() {
	if o.prevLogger != nil {
		slog.SetDefault(o.prevLogger)
		o.prevLogger = nil
	}
	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
}

// Execute runs the root command and prints a failed command's error.
func Execute() error {
	cmd := NewRootCmd()
	err := cmd.Execute()
	if err != nil {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), cerrors.FormatForCLI(err))
	}
	return err
}
