// ABOUTME: HTTP and WebSocket front end of the relay node
// ABOUTME: Owns the gin engine, mDNS advertisement and the optional dashboard
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/resonix-audio/resonix-go/internal/discovery"
	"github.com/resonix-audio/resonix-go/internal/player"
	"github.com/resonix-audio/resonix-go/internal/resolver"
	"github.com/resonix-audio/resonix-go/internal/version"
)

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	Name        string
	Password    string
	CORSOrigins []string
	EnableMDNS  bool
	UseTUI      bool
	Debug       bool
}

// Resolver is the part of the resolver the API calls directly
type Resolver interface {
	Enabled() bool
	Policy() *resolver.Policy
	ResolveWithRetry(ctx context.Context, identifier string) (string, error)
}

// Server serves the player API
type Server struct {
	config   Config
	nodeID   string
	registry *player.Registry
	resolver Resolver

	engine     *gin.Engine
	upgrader   websocket.Upgrader
	httpServer *http.Server

	mdnsManager *discovery.Manager

	tui       *ServerTUI
	startTime time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a server for the sessions in registry. res may be nil.
func New(config Config, registry *player.Registry, res Resolver) *Server {
	if config.Name == "" {
		config.Name = version.Product
	}

	s := &Server{
		config:   config,
		nodeID:   uuid.New().String(),
		registry: registry,
		resolver: res,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			// origin checks are done by the CORS layer and the password
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler { return s.engine }

// Addr returns the listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// Start serves until Stop is called, the dashboard quits, or the listener fails
func (s *Server) Start() error {
	if s.config.UseTUI {
		s.tui = NewServerTUI(s.config.Name, s.Addr())

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.tui.Start(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.refreshTUI()
		}()
	}

	log.Printf("Server starting: %s (ID: %s)", s.config.Name, s.nodeID)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Info:        []string{"version=" + version.Version, "id=" + s.nodeID},
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("HTTP server listening on %s", s.Addr())

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serverErr error
	var tuiQuitChan <-chan struct{}
	if s.tui != nil {
		tuiQuitChan = s.tui.QuitChan()
	}

	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case <-tuiQuitChan:
		log.Printf("TUI quit requested, shutting down...")
		s.Stop()
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
		s.Stop()
	}

	if s.tui != nil {
		s.tui.Stop()
	}
	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.registry.StopAll(ctx)
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.wg.Wait()
	log.Printf("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop asks Start to shut down
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), corsMiddleware(s.config.CORSOrigins), requirePassword(s.config.Password))

	r.GET("/info", s.handleInfo)
	r.GET("/resolve", s.handleResolve)
	r.GET("/loadtracks", s.handleLoadTracks)
	r.GET("/decodetrack", s.handleDecodeTrack)
	r.POST("/decodetracks", s.handleDecodeTracks)

	players := r.Group("/players")
	{
		players.GET("", s.handleListPlayers)
		players.POST("", s.handleCreatePlayer)

		session := players.Group("/:id", s.loadPlayer)
		session.DELETE("", s.handleDeletePlayer)
		session.POST("/play", s.handlePlay)
		session.POST("/pause", s.handlePause)
		session.POST("/skip", s.handleSkip)
		session.PATCH("/filters", s.handleFilters)
		session.GET("/metadata", s.handleGetMetadata)
		session.PUT("/metadata", s.handleSetMetadata)
		session.GET("/queue", s.handleGetQueue)
		session.POST("/queue", s.handleEnqueue)
		session.GET("/loop", s.handleGetLoop)
		session.PUT("/loop", s.handleSetLoop)
		session.GET("/track", s.handleTrack)
		session.GET("/ws", s.handleStream)
		session.GET("/events", s.handleEvents)
	}

	return r
}
