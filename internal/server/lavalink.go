// ABOUTME: Lavalink-compatible track endpoints and the resolve probe
// ABOUTME: Encoded tracks are the base64 of the identifier
package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/resonix-audio/resonix-go/internal/player"
	"github.com/resonix-audio/resonix-go/internal/resolver"
)

type trackOut struct {
	Encoded    string           `json:"encoded"`
	Info       player.TrackInfo `json:"info"`
	PluginInfo json.RawMessage  `json:"pluginInfo"`
	UserData   json.RawMessage  `json:"userData"`
}

type loadResult struct {
	LoadType string `json:"loadType"`
	Data     any    `json:"data"`
}

var emptyObject = json.RawMessage("{}")

func newTrackOut(identifier string, info player.TrackInfo, userData json.RawMessage) trackOut {
	if len(userData) == 0 {
		userData = emptyObject
	}
	return trackOut{
		Encoded:    base64.StdEncoding.EncodeToString([]byte(identifier)),
		Info:       info,
		PluginInfo: emptyObject,
		UserData:   userData,
	}
}

// directTrack describes an identifier that has not been opened yet
func directTrack(identifier string) trackOut {
	return newTrackOut(identifier, player.TrackInfo{
		Identifier: identifier,
		URI:        identifier,
		Title:      identifier,
		IsStream:   true,
		SourceName: "direct",
	}, nil)
}

func decodeIdentifier(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", errors.New("identifier is not utf-8")
	}
	return string(raw), nil
}

func (s *Server) handleLoadTracks(c *gin.Context) {
	identifier := c.Query("identifier")
	if strings.TrimSpace(identifier) == "" {
		c.JSON(http.StatusOK, loadResult{LoadType: "empty", Data: emptyObject})
		return
	}
	c.JSON(http.StatusOK, loadResult{LoadType: "track", Data: directTrack(identifier)})
}

func (s *Server) handleDecodeTrack(c *gin.Context) {
	identifier, err := decodeIdentifier(c.Query("encodedTrack"))
	if err != nil {
		c.String(http.StatusBadRequest, "invalid base64")
		return
	}
	c.JSON(http.StatusOK, directTrack(identifier))
}

// handleDecodeTracks skips entries that do not decode
func (s *Server) handleDecodeTracks(c *gin.Context) {
	var encoded []string
	if err := c.ShouldBindJSON(&encoded); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": missingBody})
		return
	}

	out := make([]trackOut, 0, len(encoded))
	for _, e := range encoded {
		identifier, err := decodeIdentifier(e)
		if err != nil {
			continue
		}
		out = append(out, directTrack(identifier))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleResolve(c *gin.Context) {
	if s.resolver == nil || !s.resolver.Enabled() {
		c.String(http.StatusBadRequest, "resolver disabled")
		return
	}
	target := c.Query("url")
	if target == "" {
		c.String(http.StatusBadRequest, "missing url param")
		return
	}

	resolved, err := s.resolver.ResolveWithRetry(c.Request.Context(), target)
	if err != nil {
		if errors.Is(err, resolver.ErrSpotifyCredentials) {
			c.String(http.StatusBadRequest, "spotify credentials required")
			return
		}
		c.String(http.StatusBadRequest, "error: "+err.Error())
		return
	}
	c.String(http.StatusOK, resolved)
}
