package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studyloop/lernplan-api/internal/dto"
	"github.com/studyloop/lernplan-api/internal/models"
	"github.com/studyloop/lernplan-api/internal/service"
	appErrors "github.com/studyloop/lernplan-api/pkg/errors"
	"github.com/studyloop/lernplan-api/pkg/response"
)

// ScheduleHandler exposes scheduling links and todos over HTTP.
type ScheduleHandler struct {
	links *service.ScheduleLinkService
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(links *service.ScheduleLinkService) *ScheduleHandler {
	return &ScheduleHandler{links: links}
}

// ScheduleThema godoc
// @Summary Schedule a Thema (and its Aufgaben) into a block
// @Tags Schedule
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param themaId path string true "Thema ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/themen/{themaId}/schedule [put]
func (h *ScheduleHandler) ScheduleThema(c *gin.Context) {
	var req dto.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid schedule payload"))
		return
	}
	plan, err := h.links.ScheduleThema(c.Request.Context(), c.Param("id"), c.Param("themaId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan)
}

// ScheduleAufgabe godoc
// @Summary Schedule a single Aufgabe into a block
// @Tags Schedule
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param aufgabeId path string true "Aufgabe ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/aufgaben/{aufgabeId}/schedule [put]
func (h *ScheduleHandler) ScheduleAufgabe(c *gin.Context) {
	var req dto.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid schedule payload"))
		return
	}
	plan, err := h.links.ScheduleAufgabe(c.Request.Context(), c.Param("id"), c.Param("aufgabeId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan)
}

// Unschedule godoc
// @Summary Clear the scheduling link of a Thema or Aufgabe
// @Tags Schedule
// @Produce json
// @Param id path string true "Plan ID"
// @Param nodeId path string true "Node ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/nodes/{nodeId}/schedule [delete]
func (h *ScheduleHandler) Unschedule(c *gin.Context) {
	plan, err := h.links.Unschedule(c.Request.Context(), c.Param("id"), c.Param("nodeId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan)
}

// ListTodos godoc
// @Summary List todos
// @Tags Todos
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /todos [get]
func (h *ScheduleHandler) ListTodos(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.links.ListTodos())
}

// CreateTodo godoc
// @Summary Create a todo
// @Tags Todos
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /todos [post]
func (h *ScheduleHandler) CreateTodo(c *gin.Context) {
	var req dto.TodoRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid todo payload"))
		return
	}
	todo, err := h.links.CreateTodo(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, todo)
}

// UpdateTodo godoc
// @Summary Update a todo
// @Tags Todos
// @Accept json
// @Produce json
// @Param id path string true "Todo ID"
// @Success 200 {object} response.Envelope
// @Router /todos/{id} [put]
func (h *ScheduleHandler) UpdateTodo(c *gin.Context) {
	var req dto.TodoRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid todo payload"))
		return
	}
	todo, err := h.links.UpdateTodo(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, todo)
}

// DeleteTodo godoc
// @Summary Delete a todo
// @Tags Todos
// @Param id path string true "Todo ID"
// @Success 204
// @Router /todos/{id} [delete]
func (h *ScheduleHandler) DeleteTodo(c *gin.Context) {
	if err := h.links.DeleteTodo(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ScheduleTodo godoc
// @Summary Schedule a todo into a block
// @Tags Todos
// @Accept json
// @Produce json
// @Param id path string true "Todo ID"
// @Success 200 {object} response.Envelope
// @Router /todos/{id}/schedule [put]
func (h *ScheduleHandler) ScheduleTodo(c *gin.Context) {
	var req dto.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid schedule payload"))
		return
	}
	todo, err := h.links.ScheduleTodo(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, todo)
}

// UnscheduleTodo godoc
// @Summary Clear the scheduling link of a todo
// @Tags Todos
// @Produce json
// @Param id path string true "Todo ID"
// @Success 200 {object} response.Envelope
// @Router /todos/{id}/schedule [delete]
func (h *ScheduleHandler) UnscheduleTodo(c *gin.Context) {
	todo, err := h.links.UnscheduleTodo(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, todo)
}

// Cleanup godoc
// @Summary Expire stale scheduling links
// @Tags Schedule
// @Produce json
// @Param today query string false "Cutoff date, defaults to the current date"
// @Success 200 {object} response.Envelope
// @Router /schedule/cleanup [post]
func (h *ScheduleHandler) Cleanup(c *gin.Context) {
	today := c.Query("today")
	if today == "" {
		today = time.Now().Format(models.DateLayout)
	}
	result, err := h.links.CleanupExpired(c.Request.Context(), today)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
