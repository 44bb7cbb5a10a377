// ABOUTME: ffmpeg transcoding for containers the decoder cannot read
// ABOUTME: Converts any input to 48 kHz stereo MP3 in a node temp file
package source

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/resonix-audio/resonix-go/internal/enc"
	"github.com/resonix-audio/resonix-go/internal/failure"
)

// TranscodeArgs returns the ffmpeg arguments for converting in to out
func TranscodeArgs(in, out string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", in,
		"-vn", "-ac", "2", "-ar", "48000",
		"-c:a", "libmp3lame", "-b:a", "192k",
		out,
	}
}

// Transcode converts path to MP3 and returns the new temp file. Encrypted
// inputs are decrypted to a transient copy first.
func (p *Preparer) Transcode(ctx context.Context, path string) (Prepared, error) {
	input := path
	if enc.IsEncrypted(path) {
		box := p.opts.Box
		if box == nil {
			box = enc.Default()
		}
		plain, err := box.DecryptToTemp(path)
		if err != nil {
			return Prepared{}, failure.New(failure.DecodeOpenFailure, "decrypt for transcode", err)
		}
		defer os.Remove(plain)
		input = plain
	}

	f, err := os.CreateTemp(p.opts.TempDir, TempPrefix+"*.mp3")
	if err != nil {
		return Prepared{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	out := f.Name()
	f.Close()

	ctx, cancel := context.WithTimeout(ctx, p.opts.FFmpegTimeout)
	defer cancel()

	log.Printf("Transcoding %s with %s", path, p.opts.FFmpegPath)
	cmd := exec.CommandContext(ctx, p.opts.FFmpegPath, TranscodeArgs(input, out)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(out)
		if ctx.Err() != nil {
			return Prepared{}, failure.Newf(failure.ToolFailure, "ffmpeg", "timed out after %v", p.opts.FFmpegTimeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return Prepared{}, failure.Newf(failure.ToolFailure, "ffmpeg", "%s", msg)
	}

	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		os.Remove(out)
		return Prepared{}, failure.Newf(failure.ToolFailure, "ffmpeg", "produced no output")
	}

	if err := p.protect(out); err != nil {
		os.Remove(out)
		return Prepared{}, err
	}
	return Prepared{Path: out, Temp: true}, nil
}
