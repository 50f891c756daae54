package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zjrosen/dcmcache/internal/presentation"
	"github.com/zjrosen/dcmcache/internal/registry"
)

// ImportRequest is the body of POST /v1/datasets.
type ImportRequest struct {
	Source string `json:"source" binding:"required"`
}

// ThresholdRequest is the optional body of reconstruct and attach.
// An omitted threshold selects the configured default.
type ThresholdRequest struct {
	Threshold *float64 `json:"threshold"`
}

// InteractionRequest is the body of PUT .../entity/interaction.
type InteractionRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// DatasetsResponse lists live datasets.
type DatasetsResponse struct {
	Datasets []presentation.DatasetDTO `json:"datasets"`
}

// EntitiesResponse lists attached entities.
type EntitiesResponse struct {
	Entities []registry.Entity `json:"entities"`
}

// HealthResponse is returned by /v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// datasetID parses the :id path parameter, writing a 400 when it is not a UUID.
func datasetID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeBadRequest(c, "INVALID_ID", "dataset id must be a UUID", map[string]string{"id": c.Param("id")})
		return uuid.Nil, false
	}
	return id, true
}

// bindThreshold reads an optional ThresholdRequest body.
func bindThreshold(c *gin.Context) (*float64, bool) {
	var req ThresholdRequest
	if c.Request.ContentLength == 0 {
		return nil, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return nil, false
	}
	return req.Threshold, true
}

func (s *Server) handleListDatasets(c *gin.Context) {
	list, err := s.svc.ListDatasets(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, DatasetsResponse{Datasets: presentation.FromDomainDatasets(list)})
}

func (s *Server) handleImport(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	ds, err := s.svc.Import(c.Request.Context(), req.Source)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, presentation.FromDomainDataset(ds))
}

func (s *Server) handleRemove(c *gin.Context) {
	id, ok := datasetID(c)
	if !ok {
		return
	}
	if err := s.svc.Remove(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListSlices(c *gin.Context) {
	id, ok := datasetID(c)
	if !ok {
		return
	}
	slices, err := s.svc.ListValidSlices(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentation.FromSlices(id, slices))
}

func (s *Server) handleSliceMetadata(c *gin.Context) {
	id, ok := datasetID(c)
	if !ok {
		return
	}
	md, err := s.svc.SliceMetadata(c.Request.Context(), id, c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, md)
}

func (s *Server) handleSlicePreview(c *gin.Context) {
	id, ok := datasetID(c)
	if !ok {
		return
	}
	preview, err := s.svc.SlicePreview(c.Request.Context(), id, c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Type", "image/bmp")
	c.File(preview.Path)
}

func (s *Server) handleReconstruct(c *gin.Context) {
	id, ok := datasetID(c)
	if !ok {
		return
	}
	threshold, ok := bindThreshold(c)
	if !ok {
		return
	}
	mesh, err := s.svc.Reconstruct(c.Request.Context(), id, threshold)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentation.MeshDTO{DatasetID: mesh.DatasetID, Threshold: mesh.Threshold, MeshPath: mesh.Path})
}

func (s *Server) handleAttach(c *gin.Context) {
	id, ok := datasetID(c)
	if !ok {
		return
	}
	threshold, ok := bindThreshold(c)
	if !ok {
		return
	}
	entity, err := s.svc.Attach(c.Request.Context(), id, threshold)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entity)
}

func (s *Server) handleDetach(c *gin.Context) {
	id, ok := datasetID(c)
	if !ok {
		return
	}
	entity, err := s.svc.Detach(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entity)
}

func (s *Server) handleSetInteraction(c *gin.Context) {
	id, ok := datasetID(c)
	if !ok {
		return
	}
	var req InteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	entity, err := s.svc.SetInteractionEnabled(c.Request.Context(), id, *req.Enabled)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entity)
}

func (s *Server) handleListEntities(c *gin.Context) {
	entities, err := s.svc.Entities(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if entities == nil {
		entities = []registry.Entity{}
	}
	c.JSON(http.StatusOK, EntitiesResponse{Entities: entities})
}
