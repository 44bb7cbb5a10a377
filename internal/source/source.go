// ABOUTME: Source preparation turning identifiers into local files
// ABOUTME: Handles file:// URIs, HTTP downloads to temp files and plain paths
package source

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/resonix-audio/resonix-go/internal/enc"
	"github.com/resonix-audio/resonix-go/internal/failure"
)

// TempPrefix marks files owned by the node in the temp directory
const TempPrefix = "resonix_"

// Prepared is a local file ready for decoding
type Prepared struct {
	Path string
	// Temp is true when the file was created by the node and may be removed
	Temp bool
}

// Options configures a Preparer
type Options struct {
	// EncryptTemp encrypts downloaded and transcoded files at rest
	EncryptTemp bool
	Box         *enc.Box

	FFmpegPath    string
	FFmpegTimeout time.Duration

	// TempDir defaults to os.TempDir()
	TempDir string
	Client  *http.Client
}

// Preparer fetches sources and converts unsupported ones
type Preparer struct {
	opts Options
}

// NewPreparer creates a preparer, filling defaults for unset options
func NewPreparer(opts Options) *Preparer {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FFmpegTimeout <= 0 {
		opts.FFmpegTimeout = 2 * time.Minute
	}
	if opts.EncryptTemp && opts.Box == nil {
		opts.Box = enc.Default()
	}
	return &Preparer{opts: opts}
}

// TempDir returns the directory temp files are created in
func (p *Preparer) TempDir() string {
	return p.opts.TempDir
}

// Prepare returns a local path for uri
func (p *Preparer) Prepare(ctx context.Context, uri string) (Prepared, error) {
	if u, err := url.Parse(uri); err == nil {
		switch u.Scheme {
		case "file":
			local := u.Path
			if local == "" {
				return Prepared{}, failure.Newf(failure.SourceUnavailable, "prepare", "invalid file:// path: %s", uri)
			}
			if _, err := os.Stat(local); err != nil {
				return Prepared{}, failure.Newf(failure.SourceUnavailable, "prepare", "file not found: %s", local)
			}
			return Prepared{Path: local}, nil
		case "http", "https":
			return p.download(ctx, uri, u)
		}
	}

	if _, err := os.Stat(uri); err != nil {
		return Prepared{}, failure.Newf(failure.SourceUnavailable, "prepare", "source not found: %s", uri)
	}
	return Prepared{Path: uri}, nil
}

func (p *Preparer) download(ctx context.Context, raw string, u *url.URL) (Prepared, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return Prepared{}, failure.New(failure.SourceUnavailable, "prepare", err)
	}

	log.Printf("Downloading source: %s", raw)
	resp, err := p.opts.Client.Do(req)
	if err != nil {
		return Prepared{}, failure.New(failure.SourceUnavailable, "http get", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Prepared{}, failure.Newf(failure.SourceUnavailable, "http get", "bad status: HTTP %d", resp.StatusCode)
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if len(ext) > 6 {
		ext = ""
	}

	f, err := os.CreateTemp(p.opts.TempDir, TempPrefix+"*"+ext)
	if err != nil {
		return Prepared{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	n, err := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(f.Name())
		return Prepared{}, failure.New(failure.SourceUnavailable, "read body", err)
	}
	log.Printf("Downloaded %d bytes to %s", n, f.Name())

	if err := p.protect(f.Name()); err != nil {
		os.Remove(f.Name())
		return Prepared{}, err
	}
	return Prepared{Path: f.Name(), Temp: true}, nil
}

// protect encrypts a freshly written temp file when at-rest encryption is on
func (p *Preparer) protect(path string) error {
	if !p.opts.EncryptTemp {
		return nil
	}
	if err := p.opts.Box.EncryptFileInPlace(path); err != nil {
		return fmt.Errorf("failed to encrypt temp file: %w", err)
	}
	return nil
}

// Protect encrypts a node-owned file produced elsewhere, such as a yt-dlp download
func (p *Preparer) Protect(path string) error {
	return p.protect(path)
}

// IsTemp reports whether path is a node-owned file in the temp directory
func (p *Preparer) IsTemp(path string) bool {
	return IsTempFile(p.opts.TempDir, path)
}

// Remove deletes path if it is a node-owned temp file
func (p *Preparer) Remove(path string) {
	if path == "" || !p.IsTemp(path) {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to remove temp file %s: %v", path, err)
	}
}

// IsTempFile reports whether path lives directly in dir with the node prefix
func IsTempFile(dir, path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	base, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	if resolved, err := filepath.EvalSymlinks(base); err == nil {
		base = resolved
	}
	if filepath.Dir(abs) != base {
		return false
	}
	return strings.HasPrefix(filepath.Base(abs), TempPrefix)
}

// CleanupTempFiles removes leftover node files from dir and returns the count
func CleanupTempFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("Failed to scan temp dir %s: %v", dir, err)
		return 0
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), TempPrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed
}
