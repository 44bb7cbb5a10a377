// ABOUTME: Entry point for the Resonix relay node
// ABOUTME: Cobra commands for serving sessions and monitoring one locally
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/resonix-audio/resonix-go/internal/version"
)

type flags struct {
	configPath string
	port       int
	useTUI     bool
	debug      bool
	initConfig bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:           "resonix",
		Short:         "Audio relay node streaming PCM to WebSocket listeners",
		Version:       fmt.Sprintf("%s (built %d)", version.Version, version.BuildTimeMillis()),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), f)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "config file (default resonix.toml, then Resonix.toml)")
	pf.IntVar(&f.port, "port", 0, "override server.port")
	pf.BoolVar(&f.debug, "debug", false, "enable debug logging")
	root.Flags().BoolVar(&f.useTUI, "tui", false, "show the session dashboard")
	root.Flags().BoolVar(&f.initConfig, "init-config", false, "write a config template and exit")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the node (default command)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), f)
		},
	}
	serve.Flags().BoolVar(&f.useTUI, "tui", false, "show the session dashboard")

	root.AddCommand(serve, newMonitorCmd())
	return root
}
