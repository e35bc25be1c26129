// Package main is the entry point for the slurpgen load generator.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/shineum/slurpgen/internal/config"
	"github.com/shineum/slurpgen/internal/driver"
	"github.com/shineum/slurpgen/internal/failure"
)

// Exit codes.
const (
	exitOK       = 0
	exitConfig   = 1
	exitDelivery = 2
)

var (
	configPath string
	logLevel   string
)

// configError marks failures that happen before any message is composed.
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "slurpgen",
		Short:         "Synthetic mail load generator for SMTP capture servers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &configError{err: err}
	})

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML configuration file (optional)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newSendCmd())
	root.AddCommand(newSinkCmd())
	root.AddCommand(newShapesCmd())
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		reportError(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}

// loadConfig loads configuration from the --config path (YAML + env override)
// or from environment variables only if no path is given, then applies the
// global flags and sets up logging.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, &configError{err: err}
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	setupLogger(os.Stdout, cfg.Logging.Level)
	return cfg, nil
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(w io.Writer, level string) {
	var lvl slog.Level

	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
	})
	slog.SetDefault(slog.New(handler))
}

// reportError prints the failure that ended the command, naming the step
// and failure kind when known.
func reportError(w io.Writer, err error) {
	red := color.New(color.FgHiRed)
	dim := color.New(color.FgWhite)

	var stepErr *driver.StepError
	if errors.As(err, &stepErr) {
		red.Fprintf(w, "*** %s failure at step %d/%d (%s)\n",
			failure.KindOf(err), stepErr.Number, stepErr.Total, stepErr.Step)
		dim.Fprintf(w, "    %v\n", stepErr.Err)
		return
	}

	var cfgErr *configError
	if errors.As(err, &cfgErr) {
		red.Fprintf(w, "*** configuration error\n")
		dim.Fprintf(w, "    %v\n", cfgErr.err)
		return
	}

	red.Fprintf(w, "*** %v\n", err)
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var cfgErr *configError
	if errors.As(err, &cfgErr) {
		return exitConfig
	}
	return exitDelivery
}
