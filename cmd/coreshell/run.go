package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mistlabs/coreshell"
)

func newRunCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the shell and supervise the core until the window closes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd.Context(), flags.ConfigPath)
		},
	}
}

func runShell(ctx context.Context, configPath string) error {
	fc, err := coreshell.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}

	logger := fc.Log.NewSlogger()
	slog.SetDefault(logger)

	if err := coreshell.RegisterMetricsDefault(); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	supCfg, err := fc.SupervisorConfig()
	if err != nil {
		return fmt.Errorf("supervisor config: %w", err)
	}

	sup := coreshell.NewSupervisor(supCfg)
	sup.SetLogger(logger)

	globalEnv, err := fc.GlobalEnv()
	if err != nil {
		return fmt.Errorf("merge env: %w", err)
	}
	sup.SetGlobalEnv(globalEnv)

	// The memory ring always records; a DSN adds persistent history.
	recent := coreshell.NewMemoryJournal(fc.Journal.MemoryCapacity)
	sinks := []coreshell.JournalSink{recent}
	if fc.Journal.DSN != "" {
		persistent, err := coreshell.NewJournalSink(fc.Journal.DSN)
		if err != nil {
			return fmt.Errorf("open journal %s: %w", fc.Journal.DSN, err)
		}
		if closer, ok := persistent.(io.Closer); ok {
			defer func() { _ = closer.Close() }()
		}
		sinks = append(sinks, persistent)
	}
	sup.SetJournal(sinks...)

	if addr := fc.Shell.DiagnosticsAddr; addr != "" {
		srv := coreshell.NewDiagnosticsServer(addr, sup, recent)
		defer func() { _ = srv.Close() }()
		logger.Info("diagnostics listening", "addr", addr)
	}

	rt := coreshell.NewSignalRuntime()
	boot := coreshell.NewBootstrapper(rt, sup)
	boot.SetLogger(logger)

	if err := boot.Initialize(); err != nil {
		return err
	}
	logger.Info("shell starting", "title", fc.Shell.Title, "core_enabled", fc.Core.Enabled)
	return boot.Run(ctx)
}
