package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"krishimitra/api/internal/response"
)

const (
	statusOK       = "ok"
	statusError    = "error"
	statusDisabled = "disabled"
)

// Health always answers 200; dependency state is reported per check.
func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	data := gin.H{"environment": h.cfg.Environment}
	for _, check := range h.checks {
		status := statusOK
		switch {
		case check.Probe == nil:
			status = statusDisabled
		default:
			if err := check.Probe(ctx); err != nil {
				status = statusError
				h.log.Error().Err(err).Str("check", check.Name).Msg("health check failed")
			}
		}
		data[check.Name] = status
	}

	c.JSON(http.StatusOK, response.Envelope{
		Success:   true,
		Message:   "Auth service is healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	})
}
