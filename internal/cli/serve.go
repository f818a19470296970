package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lifeline/lifeline/internal/receiver"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr     string
	Database string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a command-center receiver for SOS reports",
		Long: `Serve the command-center SOS API backed by a local SQLite database.

Endpoints:
  POST /api/sos/report              accept a report (idempotent on offlineId)
  GET  /api/sos/reports             all reports, newest first
  GET  /api/sos/reports/pending     reports awaiting triage
  PUT  /api/sos/reports/{id}/status update triage status
  GET  /health
  GET  /metrics

Example:
  lifeline serve --addr :8080 --db ./receiver.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to receiver database (default from config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := loadSettings(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	st, err := openStore(pick(opts.Database, cfg.Receiver.DB))
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx, cancel := signalContext(cmd)
	defer cancel()

	addr := pick(opts.Addr, cfg.Receiver.Addr)
	fmt.Fprintf(cmd.OutOrStdout(), "Receiver listening on %s. Press Ctrl-C to stop.\n", addr)

	if err := receiver.New(st).ListenAndServe(ctx, addr); err != nil {
		return WrapExitError(ExitFailure, "receiver error", err)
	}
	slog.Info("receiver stopped gracefully")
	return nil
}
