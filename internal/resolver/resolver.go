// ABOUTME: Identifier resolution into playable URLs or downloaded files
// ABOUTME: Dispatches by provider to ordered strategies, absorbing per-strategy failures
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/samber/lo"

	"github.com/resonix-audio/resonix-go/internal/failure"
)

const fallbackFormat = "bestaudio[ext=m4a]/bestaudio/best"

// ErrDisabled is returned for identifiers that need resolution while the
// resolver is turned off
var ErrDisabled = errors.New("resolver disabled")

// Options configures a Resolver
type Options struct {
	Enabled                 bool
	PreferredFormat         string
	AllowSpotifyTitleSearch bool

	// Attempts and RetryDelay drive ResolveWithRetry
	Attempts   int
	RetryDelay time.Duration

	// TempDir holds downloads, defaults to os.TempDir()
	TempDir string
	// Protect is applied to every file the resolver downloads
	Protect func(path string) error
}

// Resolver turns identifiers into something the source preparer can open
type Resolver struct {
	opts    Options
	policy  *Policy
	runner  Runner
	spotify *SpotifyClient
}

// New creates a resolver. spotify may be nil when no credentials exist.
func New(opts Options, policy *Policy, runner Runner, spotify *SpotifyClient) *Resolver {
	if opts.PreferredFormat == "" {
		opts.PreferredFormat = "140"
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	return &Resolver{opts: opts, policy: policy, runner: runner, spotify: spotify}
}

// Enabled reports whether provider resolution is turned on
func (r *Resolver) Enabled() bool { return r.opts.Enabled }

// Policy returns the policy gate
func (r *Resolver) Policy() *Policy { return r.policy }

// Resolve applies the policy, then resolves identifier when its provider
// requires it. Direct identifiers are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (string, error) {
	if err := r.policy.Check(identifier); err != nil {
		return "", err
	}

	provider := Classify(identifier)
	if provider == Direct {
		return identifier, nil
	}
	if !r.opts.Enabled {
		return "", failure.New(failure.ResolutionFailure, provider.String(), ErrDisabled)
	}

	return r.resolveProvider(ctx, provider, identifier)
}

// ResolveWithRetry calls Resolve up to the configured attempts, sleeping
// attempt × RetryDelay between them. Only transient failures are retried.
func (r *Resolver) ResolveWithRetry(ctx context.Context, identifier string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.opts.Attempts; attempt++ {
		resolved, err := r.Resolve(ctx, identifier)
		if err == nil {
			return resolved, nil
		}
		lastErr = err

		if !failure.Transient(err) || attempt == r.opts.Attempts {
			break
		}

		delay := time.Duration(attempt) * r.opts.RetryDelay
		log.Printf("Resolve attempt %d/%d for %s failed: %v (retrying in %v)", attempt, r.opts.Attempts, identifier, err, delay)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", lastErr
}

type strategy struct {
	name string
	run  func(ctx context.Context, input string) (string, error)
}

func (r *Resolver) resolveProvider(ctx context.Context, provider Provider, input string) (string, error) {
	var strategies []strategy
	switch provider {
	case YouTube:
		strategies = r.youtubeStrategies()
	case SoundCloud:
		strategies = r.soundcloudStrategies()
	case Spotify:
		if !r.spotify.HasCredentials() {
			return "", failure.New(failure.ResolutionFailure, "spotify", ErrSpotifyCredentials)
		}
		if _, err := TrackID(input); err != nil {
			return "", failure.New(failure.ResolutionFailure, "spotify", err)
		}
		strategies = r.spotifyStrategies()
	case Search:
		strategies = []strategy{{name: "search", run: r.search}}
	default:
		return input, nil
	}

	return runStrategies(ctx, provider, input, strategies)
}

// runStrategies tries each strategy in order and returns the first success
func runStrategies(ctx context.Context, provider Provider, input string, strategies []strategy) (string, error) {
	var lastErr error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := s.run(ctx, input)
		if err == nil && out != "" {
			log.Printf("Resolved %s via %s/%s", input, provider, s.name)
			return out, nil
		}
		if err == nil {
			err = fmt.Errorf("%s returned nothing", s.name)
		}
		log.Printf("Strategy %s/%s failed for %s: %v", provider, s.name, input, err)
		lastErr = err
	}

	names := lo.Map(strategies, func(s strategy, _ int) string { return s.name })
	return "", failure.New(failure.ResolutionFailure, provider.String(),
		fmt.Errorf("all strategies failed %v: %w", names, lastErr))
}

func (r *Resolver) youtubeStrategies() []strategy {
	return []strategy{
		{name: "stream-url", run: func(ctx context.Context, in string) (string, error) {
			out, err := r.runner.Run(ctx, streamURLArgs("bestaudio", in)...)
			return firstLine(out), err
		}},
		{name: "download-preferred", run: func(ctx context.Context, in string) (string, error) {
			return r.download(ctx, ".m4a", func(out string) []string {
				return downloadArgs(r.opts.PreferredFormat, out, in)
			})
		}},
		{name: "download-fallback", run: func(ctx context.Context, in string) (string, error) {
			return r.download(ctx, ".m4a", func(out string) []string {
				return downloadArgs(fallbackFormat, out, in)
			})
		}},
	}
}

func (r *Resolver) soundcloudStrategies() []strategy {
	return []strategy{
		{name: "progressive-url", run: func(ctx context.Context, in string) (string, error) {
			out, err := r.runner.Run(ctx, streamURLArgs("bestaudio[protocol^=http]", in)...)
			return firstLine(out), err
		}},
		{name: "extract-mp3", run: func(ctx context.Context, in string) (string, error) {
			return r.download(ctx, ".mp3", func(out string) []string {
				return extractMP3Args(out, in)
			})
		}},
		{name: "url", run: func(ctx context.Context, in string) (string, error) {
			out, err := r.runner.Run(ctx, plainURLArgs(in)...)
			return firstLine(out), err
		}},
	}
}

func (r *Resolver) spotifyStrategies() []strategy {
	strategies := []strategy{
		{name: "api", run: func(ctx context.Context, in string) (string, error) {
			query, err := r.spotify.TrackQuery(ctx, in)
			if err != nil {
				return "", err
			}
			return r.search(ctx, "ytsearch1:"+query)
		}},
	}
	if !r.opts.AllowSpotifyTitleSearch {
		return strategies
	}
	return append(strategies,
		strategy{name: "oembed", run: func(ctx context.Context, in string) (string, error) {
			title, err := r.spotify.OEmbedTitle(ctx, in)
			if err != nil {
				return "", err
			}
			return r.search(ctx, "ytsearch1:"+title)
		}},
		strategy{name: "title", run: func(ctx context.Context, in string) (string, error) {
			out, err := r.runner.Run(ctx, titleArgs(in)...)
			if err != nil {
				return "", err
			}
			title := firstLine(out)
			if title == "" {
				return "", errors.New("empty title")
			}
			return r.search(ctx, "ytsearch1:"+title)
		}},
	)
}

// search resolves a search sentinel to its first result, then resolves that
// result through its own provider
func (r *Resolver) search(ctx context.Context, sentinel string) (string, error) {
	query := normaliseSearch(sentinel)
	out, err := r.runner.Run(ctx, searchArgs(query)...)
	if err != nil {
		return "", err
	}
	result := firstLine(out)
	if result == "" {
		return "", failure.Newf(failure.ResolutionFailure, "search", "no results for %s", query)
	}

	provider := Classify(result)
	if provider == Direct || provider == Search {
		return result, nil
	}
	if err := r.policy.Check(result); err != nil {
		return "", err
	}
	return r.resolveProvider(ctx, provider, result)
}

// download runs yt-dlp writing to a fresh node temp file. The file name is
// reserved and then removed so yt-dlp does not treat it as already present.
func (r *Resolver) download(ctx context.Context, ext string, args func(out string) []string) (string, error) {
	f, err := os.CreateTemp(r.opts.TempDir, "resonix_*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	out := f.Name()
	f.Close()
	os.Remove(out)

	if _, err := r.runner.Run(ctx, args(out)...); err != nil {
		os.Remove(out)
		return "", err
	}

	info, err := os.Stat(out)
	if err != nil {
		return "", failure.Newf(failure.ToolFailure, "yt-dlp", "download produced no file")
	}
	if info.Size() == 0 {
		os.Remove(out)
		return "", failure.Newf(failure.ToolFailure, "yt-dlp", "created empty file")
	}

	if r.opts.Protect != nil {
		if err := r.opts.Protect(out); err != nil {
			os.Remove(out)
			return "", err
		}
	}
	return out, nil
}
