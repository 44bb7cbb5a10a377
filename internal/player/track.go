// ABOUTME: Track, queue item and loop mode types for player sessions
// ABOUTME: TrackInfo is the point-in-time view of what a session is playing
package player

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/resonix-audio/resonix-go/internal/resolver"
)

// LoopMode decides what plays after the current track ends
type LoopMode int

const (
	LoopNone LoopMode = iota
	LoopTrack
	LoopQueue
)

func (m LoopMode) String() string {
	switch m {
	case LoopTrack:
		return "track"
	case LoopQueue:
		return "queue"
	default:
		return "none"
	}
}

// ParseLoopMode accepts none, track or queue in any case
func ParseLoopMode(s string) (LoopMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return LoopNone, nil
	case "track":
		return LoopTrack, nil
	case "queue":
		return LoopQueue, nil
	}
	return LoopNone, fmt.Errorf("unknown loop mode %q", s)
}

func (m LoopMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *LoopMode) UnmarshalText(text []byte) error {
	parsed, err := ParseLoopMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// TrackItem is one playable entry. It is not modified once queued.
type TrackItem struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
	// PreparedPath is a local file already fetched for URI
	PreparedPath string          `json:"-"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

// NewTrackItem creates an item with a fresh id
func NewTrackItem(uri string, metadata json.RawMessage) TrackItem {
	return TrackItem{ID: uuid.NewString(), URI: uri, Metadata: metadata}
}

// TrackInfo describes the current track
type TrackInfo struct {
	Identifier string `json:"identifier"`
	URI        string `json:"uri"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	LengthMs   int64  `json:"length"`
	PositionMs int64  `json:"position"`
	IsStream   bool   `json:"isStream"`
	IsSeekable bool   `json:"isSeekable"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
	ISRC       string `json:"isrc,omitempty"`
	SourceName string `json:"sourceName"`
}

// displayTitle picks the tag title, then the file stem of a direct
// identifier, then the identifier itself
func displayTitle(identifier, tagTitle string) string {
	if tagTitle != "" {
		return tagTitle
	}
	if resolver.Classify(identifier) == resolver.Direct {
		if stem := fileStem(identifier); stem != "" {
			return stem
		}
	}
	return identifier
}

func fileStem(identifier string) string {
	p := identifier
	if u, err := url.Parse(identifier); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		p = u.Path
	}
	base := path.Base(filepath.ToSlash(p))
	if base == "." || base == "/" || base == "" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// trackExtras are optional TrackInfo fields carried in item metadata
type trackExtras struct {
	ArtworkURL string `json:"artworkUrl"`
	ISRC       string `json:"isrc"`
}

func extrasFrom(metadata json.RawMessage) trackExtras {
	var e trackExtras
	if len(metadata) > 0 {
		// non-object metadata simply has no extras
		_ = json.Unmarshal(metadata, &e)
	}
	return e
}
