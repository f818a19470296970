package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lifeline/lifeline/internal/backend"
	"github.com/lifeline/lifeline/internal/config"
	"github.com/lifeline/lifeline/internal/ir"
	"github.com/lifeline/lifeline/internal/store"
)

var errNoEndpoint = errors.New("no command center configured for this command")

// offlineUploader backs engines that only queue. It is never reached
// unless a pass is forced.
type offlineUploader struct{}

func (offlineUploader) Upload(context.Context, ir.Report) error {
	return errNoEndpoint
}

// commandContext returns the command's context, or Background when unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// setupLogging installs a text handler at the configured level, or Debug
// with --verbose.
func setupLogging(opts *RootOptions, cfg config.Config, w io.Writer) {
	level := cfg.SlogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// loadSettings resolves the config file and sets up logging on the
// command's error stream.
func loadSettings(opts *RootOptions, cmd *cobra.Command) (config.Config, error) {
	cfg, err := opts.Settings()
	if err != nil {
		return config.Config{}, err
	}
	setupLogging(opts, cfg, cmd.ErrOrStderr())
	return cfg, nil
}

func pick(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

func pickDuration(flag, fallback time.Duration) time.Duration {
	if flag > 0 {
		return flag
	}
	return fallback
}

func openStore(path string) (*store.Store, error) {
	slog.Debug("opening database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

func newClient(endpoint string, timeout time.Duration) (*backend.Client, error) {
	client, err := backend.NewClient(endpoint, backend.WithTimeout(timeout))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid endpoint", err)
	}
	return client, nil
}

// signalContext derives a context that is cancelled on SIGINT or SIGTERM.
// The command's context is used as parent when set (tests cancel it).
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(commandContext(cmd))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func pickInt(flag, fallback int) int {
	if flag > 0 {
		return flag
	}
	return fallback
}

func pickFloat(flag, fallback float64) float64 {
	if flag > 0 {
		return flag
	}
	return fallback
}
