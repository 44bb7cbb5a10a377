// ABOUTME: WebSocket relays for a session's audio frames and events
// ABOUTME: Each socket gets its own broadcast receiver, send channel and ping ticker
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/resonix-audio/resonix-go/internal/broadcast"
	"github.com/resonix-audio/resonix-go/internal/player"
	"github.com/resonix-audio/resonix-go/pkg/audio"
	"github.com/resonix-audio/resonix-go/pkg/audio/encode"
)

const (
	writeDeadline = 10 * time.Second
	pingPeriod    = 30 * time.Second
	pongWait      = 60 * time.Second
	sendBuffer    = 64
	logEvery      = 1000
)

// handleStream relays audio frames as binary messages, raw PCM by default
func (s *Server) handleStream(c *gin.Context) {
	p := currentPlayer(c)

	codec := c.DefaultQuery("codec", "pcm")
	enc, err := encode.New(audio.Canonical(codec))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer enc.Close()

	// subscribe before the handshake completes so no frame after it is missed
	rx := p.Subscribe()
	defer rx.Close()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	log.Printf("Listener connected to %s from %s (%s, %d listening)", p.ID(), c.Request.RemoteAddr, codec, p.Listeners())

	s.serveSocket(conn, websocket.BinaryMessage, func(ctx context.Context, send chan<- []byte) {
		forward(ctx, p.ID(), rx, send, enc.Encode)
	})
	log.Printf("Listener disconnected from %s", p.ID())
}

// handleEvents relays session events as JSON text messages
func (s *Server) handleEvents(c *gin.Context) {
	p := currentPlayer(c)

	rx := p.SubscribeEvents()
	defer rx.Close()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	s.serveSocket(conn, websocket.TextMessage, func(ctx context.Context, send chan<- []byte) {
		forward(ctx, p.ID()+" events", rx, send, func(ev player.Event) ([]byte, error) {
			return json.Marshal(ev)
		})
	})
}

// serveSocket runs produce against a send channel drained by the writer.
// It returns once the socket is closed and produce has exited.
func (s *Server) serveSocket(conn *websocket.Conn, msgType int, produce func(ctx context.Context, send chan<- []byte)) {
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	send := make(chan []byte, sendBuffer)
	go func() {
		defer close(send)
		produce(ctx, send)
	}()

	go readPump(conn, cancel)
	writePump(conn, msgType, send)

	cancel()
	for range send {
	}
}

// readPump discards client messages and keeps the read deadline fresh.
// Any read error ends the session.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump writes queued messages and periodic pings until send closes
func writePump(conn *websocket.Conn, msgType int, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(msgType, msg); err != nil {
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

// forward copies messages from rx into send until the ring closes or ctx
// ends. A lagging receiver is logged and resumes at the oldest message.
func forward[T any](ctx context.Context, label string, rx *broadcast.Receiver[T], send chan<- []byte, encodeFn func(T) ([]byte, error)) {
	sent := 0
	for {
		v, err := rx.Recv(ctx)
		var lagged *broadcast.LaggedError
		switch {
		case errors.As(err, &lagged):
			log.Printf("Warning: listener on %s lagged, skipped %d messages", label, lagged.Skipped)
			continue
		case err != nil:
			return
		}

		data, err := encodeFn(v)
		if err != nil {
			log.Printf("Error encoding message for %s: %v", label, err)
			continue
		}

		select {
		case send <- data:
		case <-ctx.Done():
			return
		}

		sent++
		if sent%logEvery == 0 {
			log.Printf("Forwarded %d messages to listener on %s", sent, label)
		}
	}
}
