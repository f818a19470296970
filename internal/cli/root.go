package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/lifeline/lifeline/internal/config"
	"github.com/lifeline/lifeline/internal/ir"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	cfg    *config.Config
	cfgErr error
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Settings loads the configuration file once and returns it. Commands apply
// their own flag overrides on top.
func (o *RootOptions) Settings() (config.Config, error) {
	if o.cfg == nil && o.cfgErr == nil {
		cfg, err := config.Load(o.ConfigPath)
		if err != nil {
			o.cfgErr = err
		} else {
			o.cfg = &cfg
		}
	}
	if o.cfgErr != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", o.cfgErr)
	}
	return *o.cfg, nil
}

// NewRootCommand creates the root command for the lifeline CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "lifeline",
		Version: ir.ClientVersion,
		Short:   "Lifeline - offline-first SOS queue",
		Long: `Lifeline queues SOS reports on the device, uploads them to the command
center when the network allows, and replays ambulance routes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (.cue, .yaml or .json)")

	cmd.AddCommand(NewSaveCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTrackCommand(opts))
	cmd.AddCommand(NewHospitalsCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
