// ABOUTME: Node startup: config, logging, tools, resolver and HTTP server
// ABOUTME: An errgroup supervises the server, signal handling and tool bootstrap
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/resonix-audio/resonix-go/internal/config"
	"github.com/resonix-audio/resonix-go/internal/decoder"
	"github.com/resonix-audio/resonix-go/internal/enc"
	"github.com/resonix-audio/resonix-go/internal/player"
	"github.com/resonix-audio/resonix-go/internal/resolver"
	"github.com/resonix-audio/resonix-go/internal/server"
	"github.com/resonix-audio/resonix-go/internal/source"
	"github.com/resonix-audio/resonix-go/internal/tools"
	"github.com/resonix-audio/resonix-go/internal/version"
)

func loadConfig(f *flags) (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("Warning: %v", err)
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.port > 0 {
		cfg.Server.Port = f.port
	}
	if f.debug {
		cfg.Logging.Debug = true
	}
	return cfg, nil
}

// setupLogging sends the standard logger to stdout and <dir>/latest.log.
// With the dashboard up, stdout is left to the TUI.
func setupLogging(cfg *config.Config, quiet bool) (io.Closer, error) {
	if err := os.MkdirAll(cfg.Logging.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}

	mode := os.O_RDWR | os.O_CREATE | os.O_APPEND
	if cfg.Logging.CleanLogOnStart {
		mode = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	}
	path := filepath.Join(cfg.Logging.Dir, "latest.log")
	f, err := os.OpenFile(path, mode, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error opening log file: %w", err)
	}

	if quiet {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	log.Printf("Logging to: %s", path)
	return f, nil
}

// toolPath returns where kind is, or where Ensure will install it
func toolPath(m *tools.Manager, kind tools.Kind, autoDownload bool) string {
	if p, ok := m.Locate(kind); ok {
		return p
	}
	if autoDownload {
		return filepath.Join(m.Dir(), kind.Filename())
	}
	return m.Path(kind)
}

func runServe(ctx context.Context, f *flags) error {
	if f.initConfig {
		path := f.configPath
		if path == "" {
			path = config.DefaultFiles[0]
		}
		if err := config.WriteTemplate(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	}

	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	logFile, err := setupLogging(cfg, f.useTUI)
	if err != nil {
		return err
	}
	defer logFile.Close()

	if cfg.Logging.Debug {
		gin.SetMode(gin.DebugMode)
		log.Printf("[DEBUG] Debug logging enabled")
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Printf("Starting %s", version.String())
	if cfg.Source != "" {
		log.Printf("Config loaded from %s", cfg.Source)
	}

	if cfg.Storage.CleanTempOnStart {
		if n := source.CleanupTempFiles(os.TempDir()); n > 0 {
			log.Printf("Removed %d leftover temp files", n)
		}
	}

	manager := tools.NewManager(tools.Options{
		Configured: map[tools.Kind]string{
			tools.YtDlp:  cfg.Resolver.YtDlpPath,
			tools.FFmpeg: cfg.FFmpeg.Path,
		},
		AutoDownload: cfg.Tools.AutoDownload,
		Progress:     !f.useTUI,
	})
	for _, st := range manager.Check() {
		if st.Found {
			log.Printf("Found %s at %s", st.Kind, st.Path)
		} else {
			log.Printf("Warning: %s not found", st.Kind)
		}
	}

	var box *enc.Box
	if cfg.Storage.EncryptTemp {
		box = enc.Default()
	}

	preparer := source.NewPreparer(source.Options{
		EncryptTemp:   cfg.Storage.EncryptTemp,
		Box:           box,
		FFmpegPath:    toolPath(manager, tools.FFmpeg, cfg.Tools.AutoDownload),
		FFmpegTimeout: cfg.FFmpegTimeout(),
	})

	var spotify *resolver.SpotifyClient
	if cfg.HasSpotifyCredentials() {
		spotify = resolver.NewSpotifyClient(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret)
	}

	res := resolver.New(resolver.Options{
		Enabled:                 cfg.Resolver.Enabled,
		PreferredFormat:         cfg.Resolver.PreferredFormat,
		AllowSpotifyTitleSearch: cfg.Resolver.AllowSpotifyTitleSearch,
		RetryDelay:              cfg.RetryDelay(),
		TempDir:                 preparer.TempDir(),
		Protect:                 preparer.Protect,
	},
		resolver.NewPolicy(cfg.Sources.Allowed, cfg.Sources.Blocked),
		resolver.NewExecRunner(toolPath(manager, tools.YtDlp, cfg.Tools.AutoDownload), cfg.ResolveTimeout()),
		spotify,
	)
	if cfg.Resolver.Enabled {
		log.Printf("Resolver enabled")
	}

	opener := &decoder.Opener{Box: box}
	registry := player.NewRegistry(player.Options{
		Resolver: res,
		Preparer: preparer,
		Open: func(path string) (player.Decoder, error) {
			d, err := opener.Open(path)
			if err != nil {
				return nil, err
			}
			return d, nil
		},
		FrameBuffer: cfg.Player.FrameBuffer,
		EventBuffer: cfg.Player.EventBuffer,
	})

	srv := server.New(server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		Name:        cfg.Server.Name,
		Password:    cfg.Server.Password,
		CORSOrigins: cfg.Server.CORSOrigins,
		EnableMDNS:  cfg.Server.MDNS,
		UseTUI:      f.useTUI,
		Debug:       cfg.Logging.Debug,
	}, registry, res)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer stop()
		return srv.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Printf("Shutting down...")
		srv.Stop()
		return nil
	})

	g.Go(func() error {
		kinds := []tools.Kind{tools.FFmpeg}
		if cfg.Resolver.Enabled {
			kinds = append(kinds, tools.YtDlp)
		}
		for _, kind := range kinds {
			if _, err := manager.Ensure(gctx, kind); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				log.Printf("Warning: %s unavailable: %v", kind, err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Printf("Server stopped")
	return nil
}
