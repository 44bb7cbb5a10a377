// ABOUTME: External tool discovery and first-run installation
// ABOUTME: Locates yt-dlp and ffmpeg, downloading them into ~/.resonix/bin when missing
package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/resonix-audio/resonix-go/internal/failure"
)

// Kind identifies an external tool
type Kind int

const (
	YtDlp Kind = iota
	FFmpeg
)

func (k Kind) String() string {
	switch k {
	case YtDlp:
		return "yt-dlp"
	case FFmpeg:
		return "ffmpeg"
	default:
		return "unknown"
	}
}

// Filename returns the executable name for the current platform
func (k Kind) Filename() string {
	name := k.String()
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return name
}

// DownloadURL returns the release asset for the current platform, or "" when
// automatic installation is not offered
func (k Kind) DownloadURL() string {
	switch k {
	case YtDlp:
		base := "https://github.com/yt-dlp/yt-dlp/releases/latest/download/"
		switch runtime.GOOS {
		case "windows":
			return base + "yt-dlp.exe"
		case "darwin":
			return base + "yt-dlp_macos"
		default:
			return base + "yt-dlp"
		}
	case FFmpeg:
		base := "https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/"
		switch {
		case runtime.GOOS == "windows" && runtime.GOARCH == "amd64":
			return base + "ffmpeg-master-latest-win64-gpl.zip"
		case runtime.GOOS == "linux" && runtime.GOARCH == "amd64":
			return base + "ffmpeg-master-latest-linux64-gpl.tar.xz"
		case runtime.GOOS == "linux" && runtime.GOARCH == "arm64":
			return base + "ffmpeg-master-latest-linuxarm64-gpl.tar.xz"
		}
	}
	return ""
}

// HomeBinDir returns ~/.resonix/bin
func HomeBinDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".resonix", "bin")
}

// Options configures a Manager
type Options struct {
	// Dir holds installed tools, defaults to HomeBinDir()
	Dir string
	// Configured paths from the config file, keyed by kind
	Configured map[Kind]string
	// AutoDownload installs missing tools in Ensure
	AutoDownload bool
	// Progress shows a progress bar while downloading
	Progress bool
	// URLs overrides DownloadURL per kind
	URLs   map[Kind]string
	Client *http.Client
}

// Manager finds and installs tools
type Manager struct {
	opts Options
}

// Status describes one tool for the startup report
type Status struct {
	Kind  Kind
	Path  string
	Found bool
}

// NewManager creates a manager, filling defaults for unset options
func NewManager(opts Options) *Manager {
	if opts.Dir == "" {
		opts.Dir = HomeBinDir()
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	return &Manager{opts: opts}
}

// Dir returns the install directory
func (m *Manager) Dir() string { return m.opts.Dir }

// Locate finds kind: configured path, then the install dir, then PATH
func (m *Manager) Locate(kind Kind) (string, bool) {
	if configured := m.opts.Configured[kind]; configured != "" && configured != kind.String() && configured != kind.Filename() {
		if strings.ContainsRune(configured, os.PathSeparator) || strings.ContainsRune(configured, '/') {
			if isExecutable(configured) {
				return configured, true
			}
		} else if p, err := exec.LookPath(configured); err == nil {
			return p, true
		}
	}

	installed := filepath.Join(m.opts.Dir, kind.Filename())
	if isExecutable(installed) {
		return installed, true
	}

	if p, err := exec.LookPath(kind.Filename()); err == nil {
		return p, true
	}
	return "", false
}

// Path returns the located path or the best fallback name
func (m *Manager) Path(kind Kind) string {
	if p, ok := m.Locate(kind); ok {
		return p
	}
	if configured := m.opts.Configured[kind]; configured != "" {
		return configured
	}
	return kind.Filename()
}

// Ensure returns a usable path for kind, installing it when allowed
func (m *Manager) Ensure(ctx context.Context, kind Kind) (string, error) {
	if p, ok := m.Locate(kind); ok {
		return p, nil
	}
	if !m.opts.AutoDownload {
		return "", failure.Newf(failure.ToolFailure, kind.String(), "not found and auto download disabled")
	}

	url := kind.DownloadURL()
	if u, ok := m.opts.URLs[kind]; ok {
		url = u
	}
	if url == "" {
		return "", failure.Newf(failure.ToolFailure, kind.String(), "no download available for %s/%s", runtime.GOOS, runtime.GOARCH)
	}

	if err := os.MkdirAll(m.opts.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create tools dir: %w", err)
	}

	log.Printf("Downloading %s from %s", kind, url)
	var err error
	switch kind {
	case FFmpeg:
		err = m.installArchive(ctx, url, []string{"ffmpeg", "ffprobe"})
	default:
		err = m.installBinary(ctx, url, filepath.Join(m.opts.Dir, kind.Filename()))
	}
	if err != nil {
		return "", failure.New(failure.ToolFailure, "install "+kind.String(), err)
	}

	installed := filepath.Join(m.opts.Dir, kind.Filename())
	if !isExecutable(installed) {
		return "", failure.Newf(failure.ToolFailure, "install "+kind.String(), "%s missing after install", installed)
	}
	log.Printf("Installed %s at %s", kind, installed)
	return installed, nil
}

// Check reports the status of every tool without installing anything
func (m *Manager) Check() []Status {
	kinds := []Kind{YtDlp, FFmpeg}
	out := make([]Status, 0, len(kinds))
	for _, k := range kinds {
		p, ok := m.Locate(k)
		out = append(out, Status{Kind: k, Path: p, Found: ok})
	}
	return out
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0o111 != 0
}

var errBadStatus = errors.New("bad status")
