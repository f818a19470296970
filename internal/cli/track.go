package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lifeline/lifeline/internal/backend"
	"github.com/lifeline/lifeline/internal/route"
)

// TrackOptions holds flags for the track command.
type TrackOptions struct {
	*RootOptions
	RouteFile string
	From      string
	To        string

	Nearest     bool
	Endpoint    string
	Lat         float64
	Lon         float64
	BedType     string
	AmbulanceID string

	Step      time.Duration
	SpeedKmh  float64
	MaxPoints int
	AllFrames bool
}

// NewTrackCommand creates the track command.
func NewTrackCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TrackOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Replay an ambulance route",
		Long: `Replay a precomputed road route one anchor per step, printing position,
heading, remaining distance and ETA.

The route comes either from a JSON file (--route) holding [lat, lng] pairs
or an object with "routeCoordinates", or from the command center's
nearest-hospital search (--nearest). Long routes are thinned to
--max-points anchors. A route with fewer than two points is replaced by
the straight line from --from to --to.

In json format every frame is written as one JSON object per line.

Examples:
  lifeline track --route ./route.json
  lifeline track --nearest --lat 12.97 --lon 77.59 --bed-type ICU
  lifeline track --route ./route.json --step 100ms --speed 50 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrack(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.RouteFile, "route", "r", "", "route JSON file (- for stdin)")
	cmd.Flags().StringVar(&opts.From, "from", "", "start point as lat,lng (default first route point)")
	cmd.Flags().StringVar(&opts.To, "to", "", "destination as lat,lng (default last route point)")
	cmd.Flags().BoolVar(&opts.Nearest, "nearest", false, "ask the command center for the nearest hospital route")
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "command center base URL (default from config)")
	cmd.Flags().Float64Var(&opts.Lat, "lat", 0, "ambulance latitude for --nearest")
	cmd.Flags().Float64Var(&opts.Lon, "lon", 0, "ambulance longitude for --nearest")
	cmd.Flags().StringVar(&opts.BedType, "bed-type", backend.BedTypeICU, "required bed type for --nearest (ICU, VENTILATOR, GENERAL)")
	cmd.Flags().StringVar(&opts.AmbulanceID, "ambulance", "AMB-1", "ambulance id for --nearest")
	cmd.Flags().DurationVar(&opts.Step, "step", 0, "time per anchor (default from config)")
	cmd.Flags().Float64Var(&opts.SpeedKmh, "speed", 0, "fixed speed in km/h (default simulated)")
	cmd.Flags().IntVar(&opts.MaxPoints, "max-points", 0, "maximum anchors after thinning (default from config)")
	cmd.Flags().BoolVar(&opts.AllFrames, "all-frames", false, "print interpolated frames too (text format)")
	cmd.MarkFlagsMutuallyExclusive("route", "nearest")
	cmd.MarkFlagsOneRequired("route", "nearest")

	return cmd
}

func runTrack(opts *TrackOptions, cmd *cobra.Command) error {
	cfg, err := loadSettings(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	var (
		raw         []route.Point
		start, dest route.Point
		header      string
	)
	if opts.Nearest {
		raw, start, dest, header, err = nearestRoute(ctx, opts, cfg.Endpoint, cfg.UploadTimeout)
	} else {
		raw, start, dest, err = fileRoute(opts, cmd.InOrStdin())
	}
	if err != nil {
		return err
	}

	path := route.PlanPath(route.Subsample(raw, pickInt(opts.MaxPoints, cfg.Replay.MaxPoints)), start, dest)

	rc := route.Config{
		Step:          pickDuration(opts.Step, cfg.Replay.Step),
		Animate:       cfg.Replay.Animate,
		FrameInterval: cfg.Replay.Frame,
	}
	if speed := pickFloat(opts.SpeedKmh, cfg.Replay.SpeedKmh); speed > 0 {
		rc.Speed = func() float64 { return speed }
	}

	out := cmd.OutOrStdout()
	jsonOut := opts.Format == "json"
	if header != "" && !jsonOut {
		fmt.Fprintln(out, header)
	}
	if !jsonOut {
		fmt.Fprintf(out, "Replaying %d anchors (%.2f km) from %s to %s\n",
			len(path), route.PathLengthKm(path), path[0], path[len(path)-1])
	}

	enc := json.NewEncoder(out)
	emit := func(f route.Frame) {
		if jsonOut {
			_ = enc.Encode(f)
			return
		}
		if opts.AllFrames || f.Position == path[f.Index] {
			fmt.Fprintln(out, formatFrame(f))
		}
	}

	tracker := route.NewTracker(rc)
	if err := tracker.Start(ctx, path, emit); err != nil {
		return WrapExitError(ExitCommandError, "failed to start replay", err)
	}
	<-tracker.Done()

	last, ok := tracker.Last()
	arrived := ok && last.Index == last.Total-1 && last.Position == path[len(path)-1]
	if !arrived {
		if !jsonOut {
			fmt.Fprintln(out, "Replay stopped.")
		}
		return NewExitError(ExitFailure, "replay interrupted before arrival")
	}
	if !jsonOut {
		fmt.Fprintln(out, "Arrived.")
	}
	return nil
}

func formatFrame(f route.Frame) string {
	return fmt.Sprintf("[%d/%d] %s heading=%.0f dist=%.2fkm eta=%dmin speed=%.0fkm/h",
		f.Index+1, f.Total, f.Position, f.Heading, f.DistanceKm, f.ETAMinutes, f.SpeedKmh)
}

func fileRoute(opts *TrackOptions, stdin io.Reader) ([]route.Point, route.Point, route.Point, error) {
	var zero route.Point

	r := stdin
	if opts.RouteFile != "-" {
		f, err := os.Open(opts.RouteFile)
		if err != nil {
			return nil, zero, zero, WrapExitError(ExitCommandError, "failed to open route", err)
		}
		defer f.Close()
		r = f
	}

	path, err := route.LoadPath(r)
	if err != nil {
		return nil, zero, zero, WrapExitError(ExitCommandError, "failed to load route", err)
	}

	start, err := endpointFlag("from", opts.From, path, 0)
	if err != nil {
		return nil, zero, zero, err
	}
	dest, err := endpointFlag("to", opts.To, path, len(path)-1)
	if err != nil {
		return nil, zero, zero, err
	}
	return path, start, dest, nil
}

// endpointFlag parses a --from/--to value, falling back to path[i].
func endpointFlag(name, value string, path []route.Point, i int) (route.Point, error) {
	if value != "" {
		p, err := parsePoint(value)
		if err != nil {
			return route.Point{}, WrapExitError(ExitCommandError, "invalid --"+name, err)
		}
		return p, nil
	}
	if len(path) == 0 {
		return route.Point{}, NewExitError(ExitCommandError, "route is empty; --"+name+" is required")
	}
	return path[i], nil
}

func nearestRoute(ctx context.Context, opts *TrackOptions, endpoint string, timeout time.Duration) ([]route.Point, route.Point, route.Point, string, error) {
	var zero route.Point

	client, err := newClient(pick(opts.Endpoint, endpoint), timeout)
	if err != nil {
		return nil, zero, zero, "", err
	}

	match, err := client.FindNearestHospital(ctx, backend.AmbulanceRequest{
		AmbulanceID:     opts.AmbulanceID,
		Latitude:        opts.Lat,
		Longitude:       opts.Lon,
		RequiredBedType: opts.BedType,
	})
	if err != nil {
		return nil, zero, zero, "", WrapExitError(ExitFailure, "nearest hospital search failed", err)
	}

	path := route.FromPairs(match.RouteCoords)
	start := route.Point{Lat: opts.Lat, Lng: opts.Lon}

	hosp, err := client.GetHospital(ctx, match.HospitalID)
	if err != nil {
		return nil, zero, zero, "", WrapExitError(ExitFailure, "hospital lookup failed", err)
	}

	var dest route.Point
	switch {
	case hosp.Latitude != nil && hosp.Longitude != nil:
		dest = route.Point{Lat: *hosp.Latitude, Lng: *hosp.Longitude}
	case len(path) > 0:
		dest = path[len(path)-1]
	default:
		return nil, zero, zero, "", NewExitError(ExitFailure, fmt.Sprintf("hospital %d has no location and no route", match.HospitalID))
	}

	header := fmt.Sprintf("Nearest hospital: %s (%.1f km, %d beds free, bed %d)",
		match.HospitalName, match.DistanceInKm, match.AvailableBeds, match.BedID)
	return path, start, dest, header, nil
}

// parsePoint parses "lat,lng".
func parsePoint(s string) (route.Point, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return route.Point{}, fmt.Errorf("want lat,lng, got %q", s)
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return route.Point{}, fmt.Errorf("latitude: %w", err)
	}
	ln, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return route.Point{}, fmt.Errorf("longitude: %w", err)
	}
	return route.Point{Lat: la, Lng: ln}, nil
}
