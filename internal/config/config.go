// ABOUTME: Node configuration loaded from TOML with environment overrides
// ABOUTME: Mirrors the resonix.toml layout and fills defaults for missing keys
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DefaultFiles are tried in order when no config path is given
var DefaultFiles = []string{"resonix.toml", "Resonix.toml"}

// Config is the full node configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
	Resolver ResolverConfig `toml:"resolver"`
	Spotify  SpotifyConfig  `toml:"spotify"`
	Sources  SourcesConfig  `toml:"sources"`
	Storage  StorageConfig  `toml:"storage"`
	FFmpeg   FFmpegConfig   `toml:"ffmpeg"`
	Tools    ToolsConfig    `toml:"tools"`
	Player   PlayerConfig   `toml:"player"`

	// Source is the file the config was read from, empty for defaults
	Source string `toml:"-"`
}

type ServerConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	Password    string   `toml:"password"`
	MDNS        bool     `toml:"mdns"`
	Name        string   `toml:"name"`
	CORSOrigins []string `toml:"cors_origins"`
}

type LoggingConfig struct {
	CleanLogOnStart bool   `toml:"clean_log_on_start"`
	Dir             string `toml:"dir"`
	Debug           bool   `toml:"debug"`
}

type ResolverConfig struct {
	Enabled                 bool   `toml:"enabled"`
	YtDlpPath               string `toml:"ytdlp_path"`
	TimeoutMs               int    `toml:"timeout_ms"`
	PreferredFormat         string `toml:"preferred_format"`
	AllowSpotifyTitleSearch bool   `toml:"allow_spotify_title_search"`
	RetryDelayMs            int    `toml:"retry_delay_ms"`
}

// SpotifyConfig values may be literal secrets or names of environment variables
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

type SourcesConfig struct {
	Allowed []string `toml:"allowed"`
	Blocked []string `toml:"blocked"`
}

type StorageConfig struct {
	EncryptTemp      bool `toml:"encrypt_temp"`
	CleanTempOnStart bool `toml:"clean_temp_on_start"`
}

type FFmpegConfig struct {
	Path      string `toml:"path"`
	TimeoutMs int    `toml:"timeout_ms"`
}

type ToolsConfig struct {
	AutoDownload bool `toml:"auto_download"`
}

type PlayerConfig struct {
	FrameBuffer int `toml:"frame_buffer"`
	EventBuffer int `toml:"event_buffer"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 2333,
			MDNS: false,
			Name: "Resonix",
		},
		Logging: LoggingConfig{
			CleanLogOnStart: true,
			Dir:             ".logs",
		},
		Resolver: ResolverConfig{
			Enabled:                 false,
			YtDlpPath:               "yt-dlp",
			TimeoutMs:               20000,
			PreferredFormat:         "140",
			AllowSpotifyTitleSearch: true,
			RetryDelayMs:            500,
		},
		Storage: StorageConfig{
			EncryptTemp:      false,
			CleanTempOnStart: true,
		},
		FFmpeg: FFmpegConfig{
			Path:      "ffmpeg",
			TimeoutMs: 120000,
		},
		Tools: ToolsConfig{
			AutoDownload: true,
		},
		Player: PlayerConfig{
			FrameBuffer: 1024,
			EventBuffer: 128,
		},
	}
}

// Load reads the config file at path, or the first default file found when
// path is empty, then applies environment overrides. A missing default file
// is not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, source, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	if data != nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", source, err)
		}
		cfg.Source = source
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.fillZeroes()
	return cfg, nil
}

func readConfigFile(path string) ([]byte, string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read config: %w", err)
		}
		return data, path, nil
	}

	for _, name := range DefaultFiles {
		data, err := os.ReadFile(name)
		if err == nil {
			return data, name, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("failed to read %s: %w", name, err)
		}
	}
	return nil, "", nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) {
	if v, ok := lookup("RESONIX_RESOLVE"); ok {
		c.Resolver.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v, ok := lookup("YTDLP_PATH"); ok && v != "" {
		c.Resolver.YtDlpPath = v
	}
	if v, ok := lookup("RESOLVE_TIMEOUT_MS"); ok {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			c.Resolver.TimeoutMs = ms
		} else {
			log.Printf("Ignoring RESOLVE_TIMEOUT_MS=%q: not a positive integer", v)
		}
	}
	if v, ok := lookup("RESONIX_PASSWORD"); ok && v != "" {
		c.Server.Password = v
	}
	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		c.Server.CORSOrigins = splitList(v)
	}

	c.Spotify.ClientID = envOrLiteral(lookup, c.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	c.Spotify.ClientSecret = envOrLiteral(lookup, c.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
}

// envOrLiteral treats val as an env var name when one by that name exists
func envOrLiteral(lookup lookupFunc, val, fallbackEnv string) string {
	if val != "" {
		if v, ok := lookup(val); ok {
			return v
		}
		return val
	}
	v, _ := lookup(fallbackEnv)
	return v
}

func (c *Config) fillZeroes() {
	d := Default()
	if c.Server.Port <= 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Resolver.YtDlpPath == "" {
		c.Resolver.YtDlpPath = d.Resolver.YtDlpPath
	}
	if c.Resolver.TimeoutMs <= 0 {
		c.Resolver.TimeoutMs = d.Resolver.TimeoutMs
	}
	if c.Resolver.PreferredFormat == "" {
		c.Resolver.PreferredFormat = d.Resolver.PreferredFormat
	}
	if c.Resolver.RetryDelayMs < 0 {
		c.Resolver.RetryDelayMs = d.Resolver.RetryDelayMs
	}
	if c.FFmpeg.Path == "" {
		c.FFmpeg.Path = d.FFmpeg.Path
	}
	if c.FFmpeg.TimeoutMs <= 0 {
		c.FFmpeg.TimeoutMs = d.FFmpeg.TimeoutMs
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = d.Logging.Dir
	}
	if c.Player.FrameBuffer <= 0 {
		c.Player.FrameBuffer = d.Player.FrameBuffer
	}
	if c.Player.EventBuffer <= 0 {
		c.Player.EventBuffer = d.Player.EventBuffer
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ResolveTimeout returns the yt-dlp call timeout
func (c *Config) ResolveTimeout() time.Duration {
	return time.Duration(c.Resolver.TimeoutMs) * time.Millisecond
}

// RetryDelay returns the base delay between resolution attempts
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Resolver.RetryDelayMs) * time.Millisecond
}

// FFmpegTimeout returns the transcode timeout
func (c *Config) FFmpegTimeout() time.Duration {
	return time.Duration(c.FFmpeg.TimeoutMs) * time.Millisecond
}

// HasSpotifyCredentials reports whether both Spotify values are set
func (c *Config) HasSpotifyCredentials() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}
