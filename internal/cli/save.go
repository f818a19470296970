package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lifeline/lifeline/internal/engine"
	"github.com/lifeline/lifeline/internal/ir"
)

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	*RootOptions
	Database string
	Endpoint string
	Lat      float64
	Lon      float64
	Type     string
	Message  string
	Sync     bool

	// IDs overrides record id generation (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs ir.IDGenerator
}

// SaveOutput is the result of the save command.
type SaveOutput struct {
	Record ir.Record      `json:"record"`
	Sync   *ir.SyncResult `json:"sync,omitempty"`
}

func (o SaveOutput) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Saved %s %s at %.5f,%.5f", o.Record.EmergencyType, o.Record.ID, o.Record.Latitude, o.Record.Longitude)
	if o.Sync != nil {
		fmt.Fprintf(&b, "\nSync: %d synced, %d failed", o.Sync.Synced, o.Sync.Failed)
	}
	return b.String()
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Queue an SOS report",
		Long: `Queue an SOS report in the local database.

The report is durable once this command returns. With --sync a sync pass
runs immediately against the command center; otherwise the report waits
for "lifeline sync" or a running "lifeline run".

Examples:
  lifeline save --lat 12.9716 --lon 77.5946 --message "chest pain"
  lifeline save --lat 12.97 --lon 77.59 --type VOICE_SOS --sync`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, cmd)
		},
	}

	cmd.Flags().Float64Var(&opts.Lat, "lat", 0, "latitude in degrees (required)")
	cmd.Flags().Float64Var(&opts.Lon, "lon", 0, "longitude in degrees (required)")
	cmd.Flags().StringVar(&opts.Type, "type", ir.EmergencySOS, "emergency type")
	cmd.Flags().StringVarP(&opts.Message, "message", "m", "", "free-text message")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "command center base URL (default from config)")
	cmd.Flags().BoolVar(&opts.Sync, "sync", false, "upload pending reports right after saving")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")

	return cmd
}

func runSave(opts *SaveOptions, cmd *cobra.Command) error {
	cfg, err := loadSettings(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	st, err := openStore(pick(opts.Database, cfg.DB))
	if err != nil {
		return err
	}
	defer closeStore(st)

	var up engine.Uploader = offlineUploader{}
	if opts.Sync {
		client, err := newClient(pick(opts.Endpoint, cfg.Endpoint), cfg.UploadTimeout)
		if err != nil {
			return err
		}
		up = client
	}

	engOpts := []engine.EngineOption{engine.WithOnline(opts.Sync)}
	if opts.IDs != nil {
		engOpts = append(engOpts, engine.WithIDGenerator(opts.IDs))
	}
	eng := engine.New(st, up, engOpts...)

	ctx := commandContext(cmd)
	rec, err := eng.Save(ctx, ir.Draft{
		Latitude:      opts.Lat,
		Longitude:     opts.Lon,
		EmergencyType: opts.Type,
		Message:       opts.Message,
	})
	if err != nil {
		if engine.IsSaveError(err) {
			return WrapExitError(ExitCommandError, "failed to save report", err)
		}
		return WrapExitError(ExitCommandError, "invalid report", err)
	}

	out := SaveOutput{Record: rec}
	if opts.Sync {
		res, err := eng.Sync(ctx, false)
		if err != nil {
			return WrapExitError(ExitFailure, "sync failed", err)
		}
		out.Sync = &res
		rec, err := st.GetRecord(ctx, rec.ID)
		if err == nil {
			out.Record = rec
		}
	}

	if err := newFormatter(opts.RootOptions, cmd).Success(out); err != nil {
		return err
	}
	if out.Sync != nil && out.Sync.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d uploads failed; reports stay queued", out.Sync.Failed))
	}
	return nil
}
