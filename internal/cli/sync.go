package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lifeline/lifeline/internal/engine"
	"github.com/lifeline/lifeline/internal/ir"
	"github.com/lifeline/lifeline/internal/netwatch"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Database string
	Endpoint string
	Force    bool
	Timeout  time.Duration

	// Probe overrides network detection (for testing).
	// If nil, defaults to netwatch.InterfaceProbe.
	Probe netwatch.Probe
}

// SyncOutput is the result of the sync command.
type SyncOutput struct {
	Online bool          `json:"online"`
	Forced bool          `json:"forced"`
	Result ir.SyncResult `json:"result"`
	Stats  ir.Stats      `json:"stats"`
}

func (o SyncOutput) String() string {
	if !o.Online && !o.Forced {
		return fmt.Sprintf("Offline: %d reports stay queued (use --force to try anyway)", o.Stats.Pending)
	}
	return fmt.Sprintf("Synced %d, failed %d. Pending: %d, synced: %d",
		o.Result.Synced, o.Result.Failed, o.Stats.Pending, o.Stats.Synced)
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Upload pending SOS reports once",
		Long: `Run one sync pass: upload every pending report in creation order and
mark each accepted one as synced.

Without --force the pass is skipped when no network interface is up.
Failed uploads stay queued for the next pass.

Exit codes:
  0 - All pending reports uploaded (or nothing to do)
  1 - One or more uploads failed
  2 - Command error (config, database, endpoint)

Examples:
  lifeline sync
  lifeline sync --force --endpoint http://10.0.0.2:8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "command center base URL (default from config)")
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "sync even when the network looks down")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-upload timeout (default from config)")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	cfg, err := loadSettings(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	client, err := newClient(pick(opts.Endpoint, cfg.Endpoint), pickDuration(opts.Timeout, cfg.UploadTimeout))
	if err != nil {
		return err
	}

	st, err := openStore(pick(opts.Database, cfg.DB))
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := commandContext(cmd)
	eng := engine.New(st, client, engine.WithOnline(cfg.Online))

	probe := opts.Probe
	if probe == nil {
		probe = netwatch.InterfaceProbe{}
	}
	online := netwatch.NewWatcher(probe, eng, cfg.ProbeInterval).Check(ctx)

	res, err := eng.Sync(ctx, opts.Force)
	if err != nil {
		return WrapExitError(ExitCommandError, "sync failed", err)
	}

	stats, err := eng.Stats(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read stats", err)
	}

	out := SyncOutput{Online: online, Forced: opts.Force, Result: res, Stats: stats}
	if err := newFormatter(opts.RootOptions, cmd).Success(out); err != nil {
		return err
	}
	if res.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d uploads failed; reports stay queued", res.Failed))
	}
	return nil
}
