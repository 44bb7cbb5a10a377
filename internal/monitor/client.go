// ABOUTME: WebSocket client for a session's PCM and event streams
// ABOUTME: Decodes binary frames and JSON events onto channels
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/resonix-audio/resonix-go/internal/player"
	"github.com/resonix-audio/resonix-go/pkg/audio/encode"
)

// Config holds client configuration
type Config struct {
	Addr     string // host:port of the node
	PlayerID string
	Password string
}

// Client follows one player session
type Client struct {
	config Config

	mu        sync.RWMutex
	frames    *websocket.Conn
	events    *websocket.Conn
	connected bool

	// Frames carries decoded interleaved frames, closed when the stream ends
	Frames chan []int16
	// Events carries session events; dropped when nobody reads them
	Events chan player.Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient creates a client for cfg
func NewClient(cfg Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config: cfg,
		Frames: make(chan []int16, 100),
		Events: make(chan player.Event, 16),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *Client) url(suffix string) string {
	u := url.URL{Scheme: "ws", Host: c.config.Addr, Path: "/players/" + c.config.PlayerID + suffix}
	return u.String()
}

func (c *Client) dial(ctx context.Context, suffix string) (*websocket.Conn, error) {
	header := http.Header{}
	if c.config.Password != "" {
		header.Set("Authorization", c.config.Password)
	}

	target := c.url(suffix)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s failed: %s: %w", target, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s failed: %w", target, err)
	}
	return conn, nil
}

// Connect opens the frame and event sockets and starts the readers
func (c *Client) Connect(ctx context.Context) error {
	frames, err := c.dial(ctx, "/ws")
	if err != nil {
		return err
	}
	events, err := c.dial(ctx, "/events")
	if err != nil {
		frames.Close()
		return err
	}

	c.mu.Lock()
	c.frames = frames
	c.events = events
	c.connected = true
	c.mu.Unlock()

	log.Printf("Connected to %s", c.url("/ws"))

	c.wg.Add(2)
	go c.readFrames(frames)
	go c.readEvents(events)
	return nil
}

func (c *Client) readFrames(conn *websocket.Conn) {
	defer c.wg.Done()
	defer close(c.Frames)
	defer c.Close()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Printf("Read error: %v", err)
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		select {
		case c.Frames <- encode.DecodePCM(data):
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) readEvents(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var ev player.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("Failed to parse event: %v", err)
			continue
		}

		select {
		case c.Events <- ev:
		default:
		}
	}
}

// Close closes both sockets
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		deadline := time.Now().Add(time.Second)
		c.frames.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.frames.Close()
		c.events.Close()
		log.Printf("Connection closed")
	}
}

// Wait blocks until both readers have exited
func (c *Client) Wait() {
	c.wg.Wait()
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
