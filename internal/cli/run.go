package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lifeline/lifeline/internal/engine"
	"github.com/lifeline/lifeline/internal/ir"
	"github.com/lifeline/lifeline/internal/netwatch"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database      string
	Endpoint      string
	Timeout       time.Duration
	ProbeInterval time.Duration
	MetricsAddr   string
	Offline       bool

	// Probe overrides network detection (for testing).
	// If nil, defaults to netwatch.InterfaceProbe.
	Probe netwatch.Probe

	// Ready, if set, receives the engine once it is wired (for testing).
	Ready func(*engine.Engine)
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync engine until interrupted",
		Long: `Start the Lifeline sync engine against the local queue.

The engine drains pending reports once at startup and again every time the
network watcher sees the device come back online. Queue counts are printed
whenever they change. With --metrics-addr, Prometheus metrics are served on
/metrics.

Example:
  lifeline run --db ./lifeline.db --endpoint http://10.0.0.2:8080
  lifeline run --metrics-addr :9090 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "command center base URL (default from config)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-upload timeout (default from config)")
	cmd.Flags().DurationVar(&opts.ProbeInterval, "probe-interval", 0, "network probe interval (default from config)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "pin the network state to offline (queue only)")

	return cmd
}

func runEngine(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := loadSettings(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	client, err := newClient(pick(opts.Endpoint, cfg.Endpoint), pickDuration(opts.Timeout, cfg.UploadTimeout))
	if err != nil {
		return err
	}

	dbPath := pick(opts.Database, cfg.DB)
	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer closeStore(st)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	online := cfg.Online && !opts.Offline
	eng := engine.New(st, client,
		engine.WithOnline(online),
		engine.WithMetrics(engine.NewMetrics(reg)),
	)

	out := cmd.OutOrStdout()
	sub := eng.Subscribe(func(s ir.Stats) {
		fmt.Fprintf(out, "pending=%d synced=%d\n", s.Pending, s.Synced)
	})
	defer sub.Unsubscribe()

	probe := opts.Probe
	switch {
	case opts.Offline:
		probe = netwatch.NewManual(false)
	case probe == nil:
		probe = netwatch.InterfaceProbe{}
	}
	watcher := netwatch.NewWatcher(probe, eng, pickDuration(opts.ProbeInterval, cfg.ProbeInterval))

	var metricsLn net.Listener
	if addr := pick(opts.MetricsAddr, cfg.MetricsAddr); addr != "" {
		metricsLn, err = net.Listen("tcp", addr)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to listen for metrics", err)
		}
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	// Printed before the loop starts so it never interleaves with counts.
	slog.Info("engine starting", "db", dbPath, "online", online)
	fmt.Fprintln(out, "Engine started. Press Ctrl-C to stop.")

	// Sample once so the startup pass sees the real network state.
	watcher.Check(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(gctx)
	})
	g.Go(func() error {
		return watcher.Run(gctx)
	})
	if metricsLn != nil {
		g.Go(func() error {
			return serveMetrics(gctx, metricsLn, reg)
		})
	}

	eng.RequestSync(false, "startup")
	if opts.Ready != nil {
		opts.Ready(eng)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	slog.Info("engine stopped gracefully")
	return nil
}

// serveMetrics exposes reg on /metrics until ctx is done. It always
// returns a non-nil error; ctx.Err() after a clean shutdown.
func serveMetrics(ctx context.Context, ln net.Listener, reg *prometheus.Registry) error {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	slog.Info("metrics listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics shutdown: %w", err)
	}
	return ctx.Err()
}
