package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/poseconv/internal/config"
	"github.com/roach88/poseconv/internal/logging"
)

// RootOptions holds global flags for all commands, plus the configuration
// and logger resolved before a subcommand runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	LogFormat  string

	Config     *config.Config
	ConfigFile string
	Logger     *zap.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// skipConfigLoad marks commands that must run without a valid config.
const skipConfigLoad = "skipConfigLoad"

// NewRootCommand creates the root command for the poseconv CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "poseconv",
		Short: "poseconv - pose annotation conversion",
		Long: `Convert animal pose annotations between a flat coordinate table, an
annotation-tool interchange document, and a DeepLabCut-style training project.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.prepare(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.Logger != nil {
				_ = opts.Logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "configuration file (default ~/.config/poseconv/config.toml or ./poseconv.toml)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (auto|console|json), overrides config")

	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewFillCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewFilterCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// prepare validates global flags, loads the configuration and builds the
// logger. Commands annotated with skipConfigLoad get defaults instead.
func (o *RootOptions) prepare(cmd *cobra.Command) error {
	formatter := o.formatter(cmd)
	if !slices.Contains(ValidFormats, o.Format) {
		formatter.Format = "text"
		return formatter.Fail(fmt.Errorf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	if cmd.Annotations[skipConfigLoad] == "true" {
		cfg := config.Default()
		o.Config = &cfg
	} else {
		cfg, path, exists, err := config.Load(o.ConfigPath)
		if err != nil {
			return formatter.Fail(err)
		}
		o.Config = cfg
		if exists {
			o.ConfigFile = path
		}
	}

	logFormat := o.Config.Logging.Format
	if o.LogFormat != "" {
		logFormat = o.LogFormat
	}
	logger, err := logging.New(logging.Options{
		Level:   o.Config.Logging.Level,
		Verbose: o.Verbose,
		Format:  logFormat,
		Output:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return formatter.Fail(err)
	}
	o.Logger = logger
	if o.ConfigFile != "" {
		logger.Debug("loaded config", zap.String("path", o.ConfigFile))
	}
	return nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

func (o *RootOptions) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o *RootOptions) config() *config.Config {
	if o.Config == nil {
		cfg := config.Default()
		o.Config = &cfg
	}
	return o.Config
}
