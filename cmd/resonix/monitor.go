// ABOUTME: The monitor subcommand plays one session on this machine
// ABOUTME: Finds the node by address or mDNS and streams through oto
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/resonix-audio/resonix-go/internal/monitor"
	"github.com/resonix-audio/resonix-go/pkg/audio/output"
)

func newMonitorCmd() *cobra.Command {
	var (
		playerID string
		addr     string
		discover bool
		password string
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Play a session's audio locally",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if password == "" {
				password = os.Getenv("RESONIX_PASSWORD")
			}

			if discover {
				found, err := monitor.Discover(ctx, 5*time.Second)
				if err != nil {
					return err
				}
				addr = found
			}

			log.Printf("Monitoring %s on %s", playerID, addr)
			err := monitor.Run(ctx, monitor.Config{Addr: addr, PlayerID: playerID, Password: password}, output.NewOto())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&playerID, "player", "", "session id to follow")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:2333", "node host:port")
	cmd.Flags().BoolVar(&discover, "discover", false, "find the node with mDNS")
	cmd.Flags().StringVar(&password, "password", "", "node password (default $RESONIX_PASSWORD)")
	cmd.MarkFlagRequired("player")
	return cmd
}
