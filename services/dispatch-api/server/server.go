package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tahirm09/BulkNotify/pkg/metrics"
)

func NewHTTPServer(addr string, h *Handlers) *http.Server {
	r := gin.New()
	r.Use(gin.Recovery(), Observability())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/docs", h.Docs)
	r.GET("/docs/dispatch-api/openapi.yaml", h.OpenAPI)

	r.POST("/dispatch", h.CreateDispatch)
	r.GET("/dispatch", h.ListDispatches)
	r.GET("/dispatch/:id", h.GetDispatch)
	r.POST("/dispatch/:id/cancel", h.CancelDispatch)

	r.GET("/templates", h.ListTemplates)
	r.POST("/templates", h.CreateTemplate)
	r.PUT("/templates/:id", h.UpdateTemplate)
	r.DELETE("/templates/:id", h.DeleteTemplate)
	r.POST("/templates/:id/validate", h.ValidateTemplate)

	return &http.Server{
		Addr:    addr,
		Handler: r,
	}
}
