package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev" // overridden at build time via ldflags

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

func buildRoot() *cobra.Command {
	flags := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "coreshell",
		Short: "Desktop shell bootstrap with core process supervision",
		Long: `Coreshell opens the application shell and, when configured, manages the
lifecycle of the backend core process: spawn, readiness probing, crash
restarts, and guaranteed termination when the shell exits.

Examples:
  coreshell run --config coreshell.toml
  coreshell check --config coreshell.toml
  coreshell version`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "coreshell.toml", "path to TOML config file")

	root.AddCommand(
		newRunCommand(flags),
		newCheckCommand(flags),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the coreshell version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("coreshell %s\n", version)
		},
	}
}
