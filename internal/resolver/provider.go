// ABOUTME: Provider classification for identifiers
// ABOUTME: Maps hosts and search sentinels to the strategy set that resolves them
package resolver

import (
	"regexp"
	"strings"
)

// Provider is the indirect source an identifier belongs to
type Provider int

const (
	Direct Provider = iota
	YouTube
	SoundCloud
	Spotify
	Search
)

func (p Provider) String() string {
	switch p {
	case YouTube:
		return "youtube"
	case SoundCloud:
		return "soundcloud"
	case Spotify:
		return "spotify"
	case Search:
		return "search"
	default:
		return "direct"
	}
}

var searchSentinel = regexp.MustCompile(`^[a-z]+search[0-9]*:`)

// Classify returns the provider for identifier
func Classify(identifier string) Provider {
	if searchSentinel.MatchString(identifier) {
		return Search
	}
	host := Host(identifier)
	switch {
	case host == "":
		return Direct
	case strings.Contains(host, "youtube.com") || host == "youtu.be":
		return YouTube
	case strings.Contains(host, "soundcloud.com"):
		return SoundCloud
	case strings.Contains(host, "spotify.com"):
		return Spotify
	default:
		return Direct
	}
}

// NeedsResolution reports whether identifier must go through the resolver
// before it can be prepared
func NeedsResolution(identifier string) bool {
	return Classify(identifier) != Direct
}

// SourceName names where identifier comes from for track info
func SourceName(identifier string) string {
	if p := Classify(identifier); p != Direct {
		if p == Search {
			return "youtube"
		}
		return p.String()
	}
	lower := strings.ToLower(identifier)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return "http"
	}
	return "file"
}

// normaliseSearch rewrites ytsearch: and ytsearchN: to a single result query
func normaliseSearch(sentinel string) string {
	prefix := searchSentinel.FindString(sentinel)
	if strings.HasPrefix(prefix, "ytsearch") {
		return "ytsearch1:" + strings.TrimSpace(sentinel[len(prefix):])
	}
	return sentinel
}
