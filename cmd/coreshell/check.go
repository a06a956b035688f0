package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mistlabs/coreshell"
)

// CheckFlags holds check-specific flags.
type CheckFlags struct {
	ProbeTimeout time.Duration
}

func newCheckCommand(flags *GlobalFlags) *cobra.Command {
	checkFlags := &CheckFlags{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the config and probe the core once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, flags.ConfigPath, checkFlags.ProbeTimeout)
		},
	}
	cmd.Flags().DurationVar(&checkFlags.ProbeTimeout, "probe-timeout", 3*time.Second, "how long to wait for the readiness probe")
	return cmd
}

func runCheck(cmd *cobra.Command, configPath string, probeTimeout time.Duration) error {
	fc, err := coreshell.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}
	supCfg, err := fc.SupervisorConfig()
	if err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}
	cmd.Printf("config ok: core enabled=%v policy=%s\n", supCfg.Enabled, supCfg.RestartPolicy)

	p, err := fc.Core.Probe.Build()
	if err != nil {
		return err
	}
	if p == nil {
		cmd.Println("no readiness probe configured")
		return nil
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
	defer cancel()
	if err := p.Ready(ctx); err != nil {
		cmd.Printf("probe %s: core not reachable (%v)\n", p.Describe(), err)
		return nil
	}
	cmd.Printf("probe %s: core reachable\n", p.Describe())
	return nil
}
