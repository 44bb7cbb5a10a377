// ABOUTME: REST handlers for player sessions
// ABOUTME: Create, control, filter, metadata, queue and loop endpoints
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/resonix-audio/resonix-go/internal/player"
	"github.com/resonix-audio/resonix-go/internal/resolver"
	"github.com/resonix-audio/resonix-go/internal/version"
	"github.com/resonix-audio/resonix-go/pkg/audio/dsp"
)

const (
	maxVolume   = 5.0
	playerKey   = "player"
	missingBody = "invalid request body"
)

type createPlayerRequest struct {
	ID       string          `json:"id"`
	URI      string          `json:"uri" binding:"required"`
	Metadata json.RawMessage `json:"metadata"`
}

type filtersRequest struct {
	Volume *float32   `json:"volume"`
	EQ     []dsp.Band `json:"eq"`
}

type metadataRequest struct {
	Merge bool            `json:"merge"`
	Value json.RawMessage `json:"value"`
}

type enqueueRequest struct {
	URI      string          `json:"uri" binding:"required"`
	Metadata json.RawMessage `json:"metadata"`
}

type loopRequest struct {
	Mode string `json:"mode" binding:"required"`
}

type playerSummary struct {
	ID    string   `json:"id"`
	Track trackOut `json:"track"`
}

// loadPlayer puts the session named by :id on the context or answers 404
func (s *Server) loadPlayer(c *gin.Context) {
	p, ok := s.registry.Get(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "player not found"})
		return
	}
	c.Set(playerKey, p)
	c.Next()
}

func currentPlayer(c *gin.Context) *player.Player {
	return c.MustGet(playerKey).(*player.Player)
}

func (s *Server) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":   version.Version,
		"buildTime": version.BuildTimeMillis(),
		"node":      s.nodeID,
		"name":      s.config.Name,
	})
}

func (s *Server) handleListPlayers(c *gin.Context) {
	players := s.registry.List()
	out := make([]playerSummary, 0, len(players))
	for _, p := range players {
		out = append(out, playerSummary{
			ID:    p.ID(),
			Track: newTrackOut(p.Current().URI, p.TrackInfo(), p.Metadata()),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreatePlayer(c *gin.Context) {
	var req createPlayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": missingBody})
		return
	}

	p, err := s.registry.Create(c.Request.Context(), req.ID, req.URI, req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": p.ID()})
}

func (s *Server) handleDeletePlayer(c *gin.Context) {
	s.registry.Remove(currentPlayer(c).ID())
	c.Status(http.StatusNoContent)
}

func (s *Server) handlePlay(c *gin.Context) {
	currentPlayer(c).Play()
	c.Status(http.StatusNoContent)
}

func (s *Server) handlePause(c *gin.Context) {
	currentPlayer(c).Pause()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSkip(c *gin.Context) {
	currentPlayer(c).Skip()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleFilters(c *gin.Context) {
	var req filtersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": missingBody})
		return
	}
	for _, b := range req.EQ {
		if b.Band < 0 || b.Band >= dsp.NumBands {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("band %d out of range", b.Band)})
			return
		}
	}

	p := currentPlayer(c)
	if req.Volume != nil {
		p.SetVolume(min(max(*req.Volume, 0), maxVolume))
	}
	if len(req.EQ) > 0 {
		p.SetEQ(req.EQ)
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetMetadata(c *gin.Context) {
	md := currentPlayer(c).Metadata()
	if len(md) == 0 {
		md = json.RawMessage("null")
	}
	c.Data(http.StatusOK, "application/json", md)
}

func (s *Server) handleSetMetadata(c *gin.Context) {
	var req metadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": missingBody})
		return
	}

	p := currentPlayer(c)
	var err error
	if req.Merge {
		err = p.MergeMetadata(req.Value)
	} else {
		err = p.SetMetadata(req.Value)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetQueue(c *gin.Context) {
	c.JSON(http.StatusOK, currentPlayer(c).Queue())
}

// handleEnqueue checks the source policy and resolves page URLs up front so
// a bad identifier fails the request rather than the session later on
func (s *Server) handleEnqueue(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": missingBody})
		return
	}

	p := currentPlayer(c)
	if s.resolver != nil {
		if err := s.resolver.Policy().Check(req.URI); err != nil {
			respondError(c, err)
			return
		}
	}
	if s.resolver == nil || !s.resolver.Enabled() || !resolver.NeedsResolution(req.URI) {
		c.JSON(http.StatusCreated, gin.H{"trackId": p.Enqueue(req.URI, req.Metadata)})
		return
	}

	resolved, err := s.resolver.ResolveWithRetry(c.Request.Context(), req.URI)
	if err != nil {
		respondError(c, err)
		return
	}

	var id string
	if st, err := os.Stat(resolved); err == nil && st.Mode().IsRegular() {
		id = p.EnqueuePrepared(req.URI, resolved, req.Metadata)
	} else {
		id = p.Enqueue(req.URI, req.Metadata)
	}
	c.JSON(http.StatusCreated, gin.H{"trackId": id})
}

func (s *Server) handleGetLoop(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"mode": currentPlayer(c).LoopMode()})
}

func (s *Server) handleSetLoop(c *gin.Context) {
	var req loopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": missingBody})
		return
	}
	mode, err := player.ParseLoopMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	currentPlayer(c).SetLoopMode(mode)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleTrack(c *gin.Context) {
	c.JSON(http.StatusOK, currentPlayer(c).TrackInfo())
}
