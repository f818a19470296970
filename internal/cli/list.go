package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lifeline/lifeline/internal/ir"
	"github.com/lifeline/lifeline/internal/store"
)

// ListOptions holds flags for the list and stats commands.
type ListOptions struct {
	*RootOptions
	Database string
	Pending  bool
}

// RecordList renders records as a table in text mode.
type RecordList []ir.Record

func (l RecordList) String() string {
	if len(l) == 0 {
		return "No reports queued."
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tLAT\tLON\tTIME\tSTATE\tMESSAGE")
	for _, r := range l {
		state := "pending"
		if r.Synced {
			state = "synced"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.5f\t%.5f\t%s\t%s\t%s\n",
			r.ID, r.EmergencyType, r.Latitude, r.Longitude,
			time.UnixMilli(r.Timestamp).UTC().Format(time.RFC3339),
			state, r.Message)
	}
	tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

// StatsOutput is the result of the stats command.
type StatsOutput struct {
	ir.Stats
	Total int `json:"total"`
}

func (s StatsOutput) String() string {
	return fmt.Sprintf("Pending: %d\nSynced:  %d\nTotal:   %d", s.Pending, s.Synced, s.Total)
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued SOS reports",
		Long: `List SOS reports in the local database, newest first.

Examples:
  lifeline list
  lifeline list --pending --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().BoolVar(&opts.Pending, "pending", false, "only reports not yet uploaded")

	return cmd
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "stats",
		Short:         "Show pending and synced counts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	return cmd
}

func openListStore(opts *ListOptions, cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadSettings(opts.RootOptions, cmd)
	if err != nil {
		return nil, err
	}
	return openStore(pick(opts.Database, cfg.DB))
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	st, err := openListStore(opts, cmd)
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := commandContext(cmd)
	var records []ir.Record
	if opts.Pending {
		records, err = st.ListPending(ctx)
	} else {
		records, err = st.ListAll(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list reports", err)
	}

	return newFormatter(opts.RootOptions, cmd).Success(RecordList(records))
}

func runStats(opts *ListOptions, cmd *cobra.Command) error {
	st, err := openListStore(opts, cmd)
	if err != nil {
		return err
	}
	defer closeStore(st)

	stats, err := st.Stats(commandContext(cmd))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read stats", err)
	}

	return newFormatter(opts.RootOptions, cmd).Success(StatsOutput{Stats: stats, Total: stats.Total()})
}
