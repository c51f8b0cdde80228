package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string
	Backend    string
	MaxHistory int

	// Config and Logger are resolved before any subcommand runs.
	Config config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the rewind CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "rewind",
		Short: "Inspect and drive persistent undo histories",
		Long: `rewind reads and writes the undo/redo history log used by the rewind
engine. Histories are stored per scope as a full snapshot followed by
patches, in either a SQLite file or a Badger directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.resolve(cmd)
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	flags.StringVar(&opts.Database, "db", defaults.Database, "SQLite file or Badger directory")
	flags.StringVar(&opts.Backend, "backend", defaults.Backend, "history backend (sqlite|badger)")
	flags.IntVar(&opts.MaxHistory, "max-history", defaults.MaxHistory, "entries kept per scope")

	cmd.AddCommand(NewScopesCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewPushCommand(opts))
	cmd.AddCommand(NewUndoCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))

	return cmd
}

// resolve loads the config file, applies flags the user set explicitly,
// and builds the logger.
func (opts *RootOptions) resolve(cmd *cobra.Command) error {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database = opts.Database
	}
	if flags.Changed("backend") {
		cfg.Backend = opts.Backend
	}
	if flags.Changed("max-history") {
		cfg.MaxHistory = opts.MaxHistory
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid options", err)
	}

	level := cfg.Level()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	opts.Config = cfg
	opts.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// formatter returns the output formatter for cmd.
func (opts *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
