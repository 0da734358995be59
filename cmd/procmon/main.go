//go:build linux

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ja7ad/procmon/pkg/monitor"
	"github.com/ja7ad/procmon/pkg/protocol"
	"github.com/ja7ad/procmon/pkg/system/inspect"
	"github.com/ja7ad/procmon/pkg/system/proc"
	"github.com/ja7ad/procmon/pkg/system/psutil"
	"github.com/ja7ad/procmon/pkg/system/util"
)

type opts struct {
	// sampling
	interval      time.Duration
	clearInterval time.Duration
	backend       string

	// protocol
	sentinel string

	// diagnostics
	logLevel  string
	logFormat string
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var o opts

	root := &cobra.Command{
		Use:   "procmon [PID|PID..PID]...",
		Short: "Process tree CPU/memory reporter driven over stdin/stdout",
		Long: `procmon tracks root PIDs registered by a controller and reports, once per
interval, the summed CPU percent and resident memory of each root and all of
its descendants.

Input (stdin), one JSON object per line:
  {"pid": 123}    start tracking 123
  {"pid": -123}   stop tracking 123

Output (stdout), per tracked PID and interval:
  {"pid":123,"kernel_cpu":12.5,"kernel_memory":104857600}
  <sentinel>

Diagnostics go to stderr.

Examples:
  procmon
  procmon --interval 500ms 4242 30000..30004`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), o, args, stdin, stdout, stderr)
		},
	}

	root.Flags().DurationVarP(&o.interval, "interval", "i", monitor.DefaultInterval, "sampling interval (e.g. 1s, 500ms)")
	root.Flags().DurationVar(&o.clearInterval, "clear-interval", monitor.DefaultClearInterval, "how often process trees are re-walked (must be >= interval)")
	root.Flags().StringVar(&o.backend, "backend", "proc", "process introspection backend: proc or psutil")
	root.Flags().StringVar(&o.sentinel, "sentinel", protocol.DefaultSentinel, "uuid written on its own line after every record")
	root.Flags().StringVar(&o.logLevel, "log-level", "info", "diagnostic log level: debug, info, warn or error")
	root.Flags().StringVar(&o.logFormat, "log-format", "text", "diagnostic log format: text or json")

	return root
}

func run(ctx context.Context, o opts, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	pids, err := util.ParsePIDs(args)
	if err != nil {
		return err
	}
	if o.interval <= 0 {
		return fmt.Errorf("interval must be > 0")
	}
	if o.clearInterval < o.interval {
		return fmt.Errorf("clear-interval must be >= interval")
	}
	sentinel, err := protocol.ParseSentinel(o.sentinel)
	if err != nil {
		return err
	}
	logger, err := newLogger(stderr, o.logLevel, o.logFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	insp, err := newInspector(o.backend)
	if err != nil {
		return err
	}

	m, err := monitor.New(monitor.Options{
		Inspector:     insp,
		Input:         stdin,
		Output:        stdout,
		Logger:        logger,
		Interval:      o.interval,
		ClearInterval: o.clearInterval,
		Sentinel:      sentinel,
		InitialPIDs:   pids,
	})
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}

	// Ctrl-C handling
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting",
		"backend", o.backend,
		"interval", o.interval,
		"clear_interval", o.clearInterval,
		"pids", len(pids),
	)
	return m.Run(ctx)
}

func newInspector(backend string) (inspect.Inspector, error) {
	switch strings.ToLower(backend) {
	case "proc", "":
		return proc.NewInspector(), nil
	case "psutil":
		return psutil.NewInspector(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want proc or psutil)", backend)
	}
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log-level: %w", err)
	}
	ho := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, ho)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, ho)), nil
	default:
		return nil, fmt.Errorf("unknown log-format %q (want text or json)", format)
	}
}
