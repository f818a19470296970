package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lifeline/lifeline/internal/backend"
)

// HospitalsOptions holds flags for the hospitals command.
type HospitalsOptions struct {
	*RootOptions
	Endpoint string
	Page     int
	Size     int
}

// HospitalPage renders one page of hospitals in text mode.
type HospitalPage backend.Page[backend.Hospital]

func (p HospitalPage) String() string {
	if len(p.Content) == 0 {
		return "No hospitals."
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDISTRICT\tLOCATION\tBEDS")
	for _, h := range p.Content {
		loc := "-"
		if h.Latitude != nil && h.Longitude != nil {
			loc = fmt.Sprintf("%.5f,%.5f", *h.Latitude, *h.Longitude)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", h.ID, h.Name, h.District, loc, h.TotalNumBeds)
	}
	tw.Flush()
	fmt.Fprintf(&b, "Page %d of %d (%d hospitals)", p.Number+1, p.TotalPages, p.TotalElements)
	return b.String()
}

// NewHospitalsCommand creates the hospitals command.
func NewHospitalsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HospitalsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "hospitals",
		Short: "List hospitals known to the command center",
		Long: `List hospitals from the command center, sorted by name.

Examples:
  lifeline hospitals
  lifeline hospitals --page 2 --size 50 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHospitals(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "command center base URL (default from config)")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&opts.Size, "size", 20, "hospitals per page")

	return cmd
}

func runHospitals(opts *HospitalsOptions, cmd *cobra.Command) error {
	cfg, err := loadSettings(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	if opts.Page < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --page %d: must be at least 1", opts.Page))
	}

	client, err := newClient(pick(opts.Endpoint, cfg.Endpoint), cfg.UploadTimeout)
	if err != nil {
		return err
	}

	page, err := client.ListHospitals(commandContext(cmd), opts.Page-1, opts.Size)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list hospitals", err)
	}

	return newFormatter(opts.RootOptions, cmd).Success(HospitalPage(page))
}
