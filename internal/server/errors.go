// ABOUTME: Maps pipeline failures to HTTP status codes
// ABOUTME: Keeps the failure taxonomy out of the individual handlers
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/resonix-audio/resonix-go/internal/failure"
	"github.com/resonix-audio/resonix-go/internal/player"
)

// statusFor picks the response code for err
func statusFor(err error) int {
	switch {
	case errors.Is(err, player.ErrSessionExists):
		return http.StatusConflict
	case errors.Is(err, player.ErrSessionNotFound):
		return http.StatusNotFound
	}

	switch failure.KindOf(err) {
	case failure.PolicyRejection:
		return http.StatusForbidden
	case failure.SourceUnavailable:
		return http.StatusNotFound
	case failure.ResolutionFailure:
		return http.StatusBadRequest
	case failure.DecodeOpenFailure:
		return http.StatusUnsupportedMediaType
	case failure.ToolFailure:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
