package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"metering-service/internal/config"
)

// NewRouter wires the handlers into a gin engine.
func NewRouter(logger *logrus.Logger, cfg config.Config, h *Handler, hub *Hub) *gin.Engine {
	r := gin.Default()

	base := r.Group(cfg.API.BasePath)
	{
		base.GET("/apartments/:id/alerts", h.ListAlerts)
		base.GET("/apartments/:id/reconciliation", h.Reconcile)
		base.GET("/alerts/stale", h.StaleAlerts)
		base.POST("/alerts/:id/resolve", h.ResolveAlert)
		base.GET("/alerts/feed", hub.Serve)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
