package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// registerRoutes mounts every endpoint:
//
//	GET    /v1/health
//	GET    /v1/datasets
//	POST   /v1/datasets
//	DELETE /v1/datasets/:id
//	GET    /v1/datasets/:id/slices
//	GET    /v1/datasets/:id/slices/:name/metadata
//	GET    /v1/datasets/:id/slices/:name/preview
//	POST   /v1/datasets/:id/reconstruct
//	POST   /v1/datasets/:id/entity
//	DELETE /v1/datasets/:id/entity
//	PUT    /v1/datasets/:id/entity/interaction
//	GET    /v1/entities
//	GET    /v1/events
//	GET    /v1/logs
//	GET    /metrics
func (s *Server) registerRoutes(metrics http.Handler) {
	v1 := s.router.Group("/v1")
	{
		v1.GET("/health", s.handleHealth)

		datasets := v1.Group("/datasets")
		datasets.GET("", s.handleListDatasets)
		datasets.POST("", s.handleImport)
		datasets.DELETE("/:id", s.handleRemove)

		datasets.GET("/:id/slices", s.handleListSlices)
		datasets.GET("/:id/slices/:name/metadata", s.handleSliceMetadata)
		datasets.GET("/:id/slices/:name/preview", s.handleSlicePreview)

		datasets.POST("/:id/reconstruct", s.handleReconstruct)
		datasets.POST("/:id/entity", s.handleAttach)
		datasets.DELETE("/:id/entity", s.handleDetach)
		datasets.PUT("/:id/entity/interaction", s.handleSetInteraction)

		v1.GET("/entities", s.handleListEntities)
		v1.GET("/events", s.handleEvents)
		v1.GET("/logs", s.handleLogs)
	}

	if metrics != nil {
		s.router.GET("/metrics", gin.WrapH(metrics))
	}
}
