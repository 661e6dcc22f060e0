package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints: an audit-pipeline probe
// and a raw dump of one open conversation view.
func RegisterDebugRoutes(router *gin.Engine, core Syncer, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/views/:conversation_id", func(c *gin.Context) {
		view, ok := core.View(c.Param("conversation_id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no open view"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"view": view})
	})
}
