package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyloop/lernplan-api/internal/dto"
	"github.com/studyloop/lernplan-api/internal/service"
	appErrors "github.com/studyloop/lernplan-api/pkg/errors"
	"github.com/studyloop/lernplan-api/pkg/response"
)

// CalendarHandler exposes the block and session stores over HTTP.
type CalendarHandler struct {
	blocks   *service.BlockService
	sessions *service.SessionService
	series   *service.SeriesService
}

// NewCalendarHandler constructs the handler.
func NewCalendarHandler(blocks *service.BlockService, sessions *service.SessionService, series *service.SeriesService) *CalendarHandler {
	return &CalendarHandler{blocks: blocks, sessions: sessions, series: series}
}

// ListBlocks godoc
// @Summary List block allocations in a date range
// @Tags Calendar
// @Produce json
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /calendar/blocks [get]
func (h *CalendarHandler) ListBlocks(c *gin.Context) {
	days, err := h.blocks.ListRange(c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, days)
}

// CreateBlock godoc
// @Summary Create a block allocation, optionally as a series
// @Tags Calendar
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /calendar/blocks [post]
func (h *CalendarHandler) CreateBlock(c *gin.Context) {
	var req dto.CreateBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid block payload"))
		return
	}
	result, err := h.blocks.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// UpdateBlock godoc
// @Summary Patch a block allocation
// @Tags Calendar
// @Accept json
// @Produce json
// @Param id path string true "Block ID"
// @Success 200 {object} response.Envelope
// @Router /calendar/blocks/{id} [patch]
func (h *CalendarHandler) UpdateBlock(c *gin.Context) {
	var req dto.UpdateBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid block payload"))
		return
	}
	block, err := h.blocks.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, block)
}

// DeleteBlock godoc
// @Summary Delete a block allocation
// @Tags Calendar
// @Param id path string true "Block ID"
// @Success 204
// @Router /calendar/blocks/{id} [delete]
func (h *CalendarHandler) DeleteBlock(c *gin.Context) {
	if err := h.blocks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// EditBlockRepeat godoc
// @Summary Change the repeat configuration of a block
// @Tags Calendar
// @Accept json
// @Produce json
// @Param id path string true "Block ID"
// @Success 200 {object} response.Envelope
// @Router /calendar/blocks/{id}/repeat [put]
func (h *CalendarHandler) EditBlockRepeat(c *gin.Context) {
	var req dto.EditRepeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid repeat payload"))
		return
	}
	result, err := h.series.EditBlockRepeat(c.Request.Context(), c.Param("id"), req.RepeatRule)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// DeleteSeries godoc
// @Summary Delete every member of a series
// @Tags Calendar
// @Produce json
// @Param seriesId path string true "Series ID"
// @Success 200 {object} response.Envelope
// @Router /calendar/series/{seriesId} [delete]
func (h *CalendarHandler) DeleteSeries(c *gin.Context) {
	removed := h.series.DeleteSeries(c.Request.Context(), c.Param("seriesId"))
	response.JSON(c, http.StatusOK, gin.H{"removed": removed})
}

// ListSessions godoc
// @Summary List sessions in a date range
// @Tags Calendar
// @Produce json
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /calendar/sessions [get]
func (h *CalendarHandler) ListSessions(c *gin.Context) {
	days, err := h.sessions.ListRange(c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, days)
}

// CreateSession godoc
// @Summary Create a session, optionally as a series
// @Tags Calendar
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /calendar/sessions [post]
func (h *CalendarHandler) CreateSession(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid session payload"))
		return
	}
	result, err := h.sessions.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// UpdateSession godoc
// @Summary Patch a session
// @Tags Calendar
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /calendar/sessions/{id} [patch]
func (h *CalendarHandler) UpdateSession(c *gin.Context) {
	var req dto.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid session payload"))
		return
	}
	sess, err := h.sessions.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sess)
}

// DeleteSession godoc
// @Summary Delete a session
// @Tags Calendar
// @Param id path string true "Session ID"
// @Success 204
// @Router /calendar/sessions/{id} [delete]
func (h *CalendarHandler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// EditSessionRepeat godoc
// @Summary Change the repeat configuration of a session
// @Tags Calendar
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /calendar/sessions/{id}/repeat [put]
func (h *CalendarHandler) EditSessionRepeat(c *gin.Context) {
	var req dto.EditRepeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid repeat payload"))
		return
	}
	result, err := h.series.EditSessionRepeat(c.Request.Context(), c.Param("id"), req.RepeatRule)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
