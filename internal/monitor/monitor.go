// ABOUTME: Plays a session's relayed audio on the local sound device
// ABOUTME: Optionally finds the node on the LAN via mDNS first
package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/resonix-audio/resonix-go/internal/discovery"
	"github.com/resonix-audio/resonix-go/internal/player"
	"github.com/resonix-audio/resonix-go/pkg/audio"
	"github.com/resonix-audio/resonix-go/pkg/audio/output"
)

// Discover browses for a node, giving up after timeout
func Discover(ctx context.Context, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	node, err := discovery.Lookup(ctx)
	if err != nil {
		return "", fmt.Errorf("no node found: %w", err)
	}
	log.Printf("Found node %s at %s", node.Name, node.Addr())
	return node.Addr(), nil
}

// Run streams the session into out until the session ends or ctx is done
func Run(ctx context.Context, cfg Config, out output.Output) error {
	if err := out.Open(audio.SampleRate, audio.Channels); err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}
	defer out.Close()

	c := NewClient(cfg)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Wait()
	defer c.Close()

	played := 0
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-c.Events:
			logEvent(ev)

		case frame, ok := <-c.Frames:
			if !ok {
				log.Printf("Stream ended after %d frames", played)
				return nil
			}
			if err := out.Write(frame); err != nil {
				return fmt.Errorf("output write failed: %w", err)
			}
			played++
		}
	}
}

func logEvent(ev player.Event) {
	switch ev.Op {
	case player.OpTrackStart:
		log.Printf("Now playing %s", ev.URI)
	case player.OpTrackEnd:
		log.Printf("Track ended (%s)", ev.Reason)
	case player.OpQueueUpdate:
		log.Printf("Queue: %d items", len(ev.Queue))
	case player.OpLoopModeChange:
		if ev.Mode != nil {
			log.Printf("Loop mode: %s", *ev.Mode)
		}
	}
}
