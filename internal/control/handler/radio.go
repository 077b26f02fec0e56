package handler

import (
	"log/slog"
	"net/http"

	"github.com/arung-agamani/edifm/internal/auth"
	"github.com/arung-agamani/edifm/internal/control/service"
	"github.com/gin-gonic/gin"
)

// RadioHandlers holds the gin route handlers for station health, status,
// skip, and restart.
type RadioHandlers struct {
	svc *service.RadioService
}

func NewRadioHandlers(svc *service.RadioService) *RadioHandlers {
	return &RadioHandlers{svc: svc}
}

// Health handles GET /healthz
func (h *RadioHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status handles GET /status
func (h *RadioHandlers) Status(c *gin.Context) {
	snap := h.svc.Status()
	c.JSON(http.StatusOK, gin.H{
		"uptime":          snap.Uptime,
		"is_playing":      snap.IsPlaying,
		"current_title":   snap.CurrentTitle,
		"current_artist":  snap.CurrentArtist,
		"current_elapsed": snap.CurrentElapsed,
		"sink_count":      snap.SinkCount,
		"server_time":     snap.ServerTime,
	})
}

// Skip handles POST /control/skip
func (h *RadioHandlers) Skip(c *gin.Context) {
	slog.Info("Skip requested via control surface", "remote", c.ClientIP(), "operator", operatorFromContext(c))
	h.svc.Skip()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Restart handles POST /control/restart
func (h *RadioHandlers) Restart(c *gin.Context) {
	slog.Info("Restart requested via control surface", "remote", c.ClientIP(), "operator", operatorFromContext(c))
	h.svc.Restart()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// operatorFromContext reads the subject of the token that RequireScope
// already validated for this request, for audit logging. Returns "unknown"
// if the handler is ever wired behind something other than RequireScope.
func operatorFromContext(c *gin.Context) string {
	v, ok := c.Get(auth.ClaimsContextKey)
	if !ok {
		return "unknown"
	}
	claims, ok := v.(*auth.Claims)
	if !ok {
		return "unknown"
	}
	return claims.Sub
}
