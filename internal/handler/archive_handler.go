package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyloop/lernplan-api/internal/models"
	"github.com/studyloop/lernplan-api/internal/service"
	appErrors "github.com/studyloop/lernplan-api/pkg/errors"
	"github.com/studyloop/lernplan-api/pkg/response"
)

// ArchiveHandler exposes plan archiving over HTTP.
type ArchiveHandler struct {
	archives *service.ArchiveService
}

// NewArchiveHandler constructs the handler.
func NewArchiveHandler(archives *service.ArchiveService) *ArchiveHandler {
	return &ArchiveHandler{archives: archives}
}

// List godoc
// @Summary List archived plans
// @Tags Archives
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /archives [get]
func (h *ArchiveHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.archives.List())
}

// Get godoc
// @Summary Get one archived plan
// @Tags Archives
// @Produce json
// @Param id path string true "Archive ID"
// @Success 200 {object} response.Envelope
// @Router /archives/{id} [get]
func (h *ArchiveHandler) Get(c *gin.Context) {
	archived, err := h.archives.Get(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, archived)
}

// Archive godoc
// @Summary Archive the live calendar state
// @Tags Archives
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /archives [post]
func (h *ArchiveHandler) Archive(c *gin.Context) {
	archived, err := h.archives.Archive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, archived)
}

// Restore godoc
// @Summary Restore an archived plan into the live stores
// @Tags Archives
// @Produce json
// @Param id path string true "Archive ID"
// @Success 200 {object} response.Envelope
// @Router /archives/{id}/restore [post]
func (h *ArchiveHandler) Restore(c *gin.Context) {
	restored, err := h.archives.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, restored)
}

// Delete godoc
// @Summary Delete an archived plan
// @Tags Archives
// @Param id path string true "Archive ID"
// @Success 204
// @Router /archives/{id} [delete]
func (h *ArchiveHandler) Delete(c *gin.Context) {
	if err := h.archives.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Convert godoc
// @Summary Convert an archived plan into a Themenliste
// @Tags Archives
// @Produce json
// @Param id path string true "Archive ID"
// @Success 201 {object} response.Envelope
// @Router /archives/{id}/convert [post]
func (h *ArchiveHandler) Convert(c *gin.Context) {
	plan, err := h.archives.ConvertToTopicHierarchy(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, plan)
}

// GetMetadata godoc
// @Summary Get the active plan metadata
// @Tags Archives
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /plan-metadata [get]
func (h *ArchiveHandler) GetMetadata(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.archives.Metadata())
}

// SetMetadata godoc
// @Summary Replace the active plan metadata
// @Tags Archives
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /plan-metadata [put]
func (h *ArchiveHandler) SetMetadata(c *gin.Context) {
	var metadata models.PlanMetadata
	if err := c.ShouldBindJSON(&metadata); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid metadata payload"))
		return
	}
	h.archives.SetMetadata(c.Request.Context(), metadata)
	response.JSON(c, http.StatusOK, metadata)
}
