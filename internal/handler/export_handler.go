package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/studyloop/lernplan-api/internal/service"
	appErrors "github.com/studyloop/lernplan-api/pkg/errors"
	"github.com/studyloop/lernplan-api/pkg/response"
)

// ExportHandler exposes weekly-plan and topic-list exports.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// RequestWeekPDF godoc
// @Summary Request a weekly plan PDF export
// @Tags Exports
// @Produce json
// @Param start query string true "Week start date (YYYY-MM-DD)"
// @Success 202 {object} response.Envelope
// @Router /exports/week [post]
func (h *ExportHandler) RequestWeekPDF(c *gin.Context) {
	record, err := h.exports.RequestWeekPDF(c.Query("start"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, record)
}

// RequestTopicCSV godoc
// @Summary Request a CSV export of a plan's topics
// @Tags Exports
// @Produce json
// @Param planId path string true "Plan ID"
// @Success 202 {object} response.Envelope
// @Router /exports/plans/{planId} [post]
func (h *ExportHandler) RequestTopicCSV(c *gin.Context) {
	record, err := h.exports.RequestTopicCSV(c.Param("planId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, record)
}

// Get godoc
// @Summary Get the state of an export
// @Tags Exports
// @Produce json
// @Param id path string true "Export ID"
// @Success 200 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) Get(c *gin.Context) {
	record, err := h.exports.Get(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// Download godoc
// @Summary Download an export via signed token
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, name, err := h.exports.Download(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stat export file"))
		return
	}
	contentType := "application/pdf"
	if strings.HasSuffix(name, ".csv") {
		contentType = "text/csv"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
