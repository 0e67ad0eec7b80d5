package http

import (
	"github.com/gin-gonic/gin"
)

// Routes registers the API on r. events serves GET /events and may be nil.
func (h *Handlers) Routes(r gin.IRoutes, events gin.HandlerFunc) {
	r.GET("/health", h.Health)
	r.GET("/api/ping", h.Ping)
	r.POST("/api/evalTool", h.EvalTool)

	r.GET("/api/tools", h.ListTools)
	r.GET("/api/tools/:name", h.GetTool)
	r.POST("/api/tools/:name/eval", h.EvalCatalogTool)

	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
	if events != nil {
		r.GET("/events", events)
	}
}
