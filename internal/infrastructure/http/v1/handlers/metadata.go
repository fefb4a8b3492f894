package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lifeline/internal/core/apperror"
	"lifeline/internal/metadata"
)

type MetadataHandler struct {
	BaseHandler
	registry *metadata.Registry
}

func NewMetadataHandler(registry *metadata.Registry) *MetadataHandler {
	return &MetadataHandler{
		BaseHandler: *NewBaseHandler(),
		registry:    registry,
	}
}

// ListEntities returns every registered entity descriptor.
// GET /api/v1/meta
func (h *MetadataHandler) ListEntities(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.List())
}

// GetEntity returns the descriptor of one entity type.
// GET /api/v1/meta/:name
func (h *MetadataHandler) GetEntity(c *gin.Context) {
	name := c.Param("name")
	def, ok := h.registry.Get(name)
	if !ok {
		h.Error(c, apperror.NewNotFound("entity type", name))
		return
	}
	c.JSON(http.StatusOK, def)
}
