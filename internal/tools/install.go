// ABOUTME: Tool download and archive extraction
// ABOUTME: Streams release assets to disk with progress and unpacks ffmpeg builds
package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mholt/archives"
	"github.com/schollz/progressbar/v3"
)

// fetch downloads url into w
func (m *Manager) fetch(ctx context.Context, url string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := m.opts.Client.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", errBadStatus, resp.StatusCode)
	}

	if m.opts.Progress {
		bar := progressbar.DefaultBytes(resp.ContentLength, "downloading "+path.Base(url))
		w = io.MultiWriter(w, bar)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("download interrupted: %w", err)
	}
	return nil
}

func (m *Manager) installBinary(ctx context.Context, url, dest string) error {
	tmp := dest + ".download"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if err := m.fetch(ctx, url, f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

// installArchive downloads an archive and extracts the named binaries from
// its bin/ directory into the tools dir
func (m *Manager) installArchive(ctx context.Context, url string, binaries []string) error {
	archivePath := filepath.Join(m.opts.Dir, path.Base(url))
	f, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer os.Remove(archivePath)
	defer f.Close()

	if err := m.fetch(ctx, url, f); err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	return extractBinaries(ctx, archivePath, f, m.opts.Dir, binaries)
}

func extractBinaries(ctx context.Context, name string, file *os.File, destDir string, binaries []string) error {
	format, reader, err := archives.Identify(ctx, name, file)
	if err != nil {
		return fmt.Errorf("cannot identify archive format: %w", err)
	}

	extractor, ok := format.(archives.Extractor)
	if !ok {
		return fmt.Errorf("format does not support extraction")
	}

	// zip needs random access
	var archiveReader io.Reader = reader
	if _, isZip := format.(archives.Zip); isZip {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		archiveReader = file
	}

	wanted := make(map[string]bool, len(binaries))
	for _, b := range binaries {
		if runtime.GOOS == "windows" {
			b += ".exe"
		}
		wanted[b] = true
	}

	extracted := 0
	err = extractor.Extract(ctx, archiveReader, func(ctx context.Context, f archives.FileInfo) error {
		if f.IsDir() {
			return nil
		}
		entry := strings.ReplaceAll(f.NameInArchive, "\\", "/")
		base := path.Base(entry)
		if !wanted[base] || !strings.Contains("/"+entry, "/bin/") {
			return nil
		}

		src, err := f.Open()
		if err != nil {
			return err
		}
		defer src.Close()

		dest := filepath.Join(destDir, base)
		out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, src); err != nil {
			out.Close()
			return err
		}
		extracted++
		return out.Close()
	})
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	if extracted == 0 {
		return fmt.Errorf("no binaries found in %s", filepath.Base(name))
	}
	return nil
}
