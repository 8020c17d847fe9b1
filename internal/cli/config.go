package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/poseconv/internal/config"
)

// ConfigInitResult reports a written sample configuration.
type ConfigInitResult struct {
	Path string `json:"path"`
}

// Text renders the result for terminals.
func (r ConfigInitResult) Text() string {
	return fmt.Sprintf("✓ Wrote sample configuration to %s\n", r.Path)
}

// ConfigShowResult is the effective configuration.
type ConfigShowResult struct {
	Source string         `json:"source"`
	Config *config.Config `json:"config"`
	text   string
}

// Text renders the result for terminals.
func (r ConfigShowResult) Text() string {
	return fmt.Sprintf("# source: %s\n%s", r.Source, r.text)
}

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the poseconv configuration file",
	}
	cmd.AddCommand(newConfigInitCommand(rootOpts))
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	return cmd
}

func newConfigInitCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:           "init [path]",
		Short:         "Write a commented sample configuration",
		Args:          cobra.MaximumNArgs(1),
		Annotations:   map[string]string{skipConfigLoad: "true"},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)

			target := ""
			if len(args) == 1 {
				target = args[0]
			} else if rootOpts.ConfigPath != "" {
				target = rootOpts.ConfigPath
			} else {
				p, err := config.DefaultConfigPath()
				if err != nil {
					return formatter.Fail(err)
				}
				target = p
			}
			target, err := config.ExpandPath(target)
			if err != nil {
				return formatter.Fail(err)
			}
			if err := config.CreateSample(target, force); err != nil {
				return formatter.Fail(err)
			}
			return formatter.Success(ConfigInitResult{Path: target})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Print the effective configuration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			cfg := rootOpts.config()

			data, err := cfg.Encode()
			if err != nil {
				return formatter.Fail(err)
			}
			source := rootOpts.ConfigFile
			if source == "" {
				source = "built-in defaults"
			}
			return formatter.Success(ConfigShowResult{Source: source, Config: cfg, text: string(data)})
		},
	}
}
