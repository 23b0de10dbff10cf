package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyloop/lernplan-api/internal/dto"
	"github.com/studyloop/lernplan-api/internal/service"
	appErrors "github.com/studyloop/lernplan-api/pkg/errors"
	"github.com/studyloop/lernplan-api/pkg/response"
)

// PlanHandler exposes the topic hierarchy over HTTP.
type PlanHandler struct {
	plans *service.PlanService
	ocr   *service.OCRService
}

// NewPlanHandler constructs the handler.
func NewPlanHandler(plans *service.PlanService, ocr *service.OCRService) *PlanHandler {
	return &PlanHandler{plans: plans, ocr: ocr}
}

// List godoc
// @Summary List every plan
// @Tags Plans
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /plans [get]
func (h *PlanHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.plans.List())
}

// Get godoc
// @Summary Get one plan
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id} [get]
func (h *PlanHandler) Get(c *gin.Context) {
	plan, err := h.plans.Get(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan)
}

// Create godoc
// @Summary Create a plan
// @Tags Plans
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /plans [post]
func (h *PlanHandler) Create(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Themenliste bool   `json:"themenliste"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid plan payload"))
		return
	}
	plan, err := h.plans.Create(c.Request.Context(), req.Name, req.Themenliste)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, plan)
}

// Rename godoc
// @Summary Rename a plan
// @Tags Plans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id} [patch]
func (h *PlanHandler) Rename(c *gin.Context) {
	var req dto.NamedNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid plan payload"))
		return
	}
	plan, err := h.plans.Rename(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan)
}

// Delete godoc
// @Summary Delete a plan
// @Tags Plans
// @Param id path string true "Plan ID"
// @Success 204
// @Router /plans/{id} [delete]
func (h *PlanHandler) Delete(c *gin.Context) {
	if err := h.plans.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddNode godoc
// @Summary Add a child node under a parent
// @Tags Plans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/{level} [post]
func (h *PlanHandler) AddNode(level string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ParentID string `json:"parentId"`
			Name     string `json:"name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid node payload"))
			return
		}

		ctx := c.Request.Context()
		planID := c.Param("id")
		var err error
		var plan interface{}
		switch level {
		case "rechtsgebiete":
			plan, err = h.plans.AddRechtsgebiet(ctx, planID, req.Name)
		case "unterrechtsgebiete":
			plan, err = h.plans.AddUnterrechtsgebiet(ctx, planID, req.ParentID, req.Name)
		case "kapitel":
			plan, err = h.plans.AddKapitel(ctx, planID, req.ParentID, req.Name)
		case "themen":
			plan, err = h.plans.AddThema(ctx, planID, req.ParentID, req.Name)
		case "aufgaben":
			plan, err = h.plans.AddAufgabe(ctx, planID, req.ParentID, req.Name)
		default:
			err = appErrors.Clone(appErrors.ErrValidation, "unknown hierarchy level")
		}
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, plan)
	}
}

// RenameNode godoc
// @Summary Rename a hierarchy node
// @Tags Plans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param nodeId path string true "Node ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/nodes/{nodeId} [patch]
func (h *PlanHandler) RenameNode(c *gin.Context) {
	var req dto.NamedNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid node payload"))
		return
	}
	plan, err := h.plans.RenameNode(c.Request.Context(), c.Param("id"), c.Param("nodeId"), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan)
}

// DeleteNode godoc
// @Summary Delete a hierarchy node and its subtree
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Param nodeId path string true "Node ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/nodes/{nodeId} [delete]
func (h *PlanHandler) DeleteNode(c *gin.Context) {
	plan, err := h.plans.DeleteNode(c.Request.Context(), c.Param("id"), c.Param("nodeId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan)
}

// SetCompleted godoc
// @Summary Toggle completion of a Thema or Aufgabe
// @Tags Plans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param nodeId path string true "Node ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/nodes/{nodeId}/completed [put]
func (h *PlanHandler) SetCompleted(c *gin.Context) {
	var req struct {
		Completed bool `json:"completed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}

	ctx := c.Request.Context()
	planID := c.Param("id")
	nodeID := c.Param("nodeId")
	plan, err := h.plans.SetThemaCompleted(ctx, planID, nodeID, req.Completed)
	if appErrors.Is(err, appErrors.ErrNotFound) {
		plan, err = h.plans.SetAufgabeCompleted(ctx, planID, nodeID, req.Completed)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan)
}

// Flatten godoc
// @Summary Flatten every Kapitel of a plan into hidden containers
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/flatten [post]
func (h *PlanHandler) Flatten(c *gin.Context) {
	plan, err := h.plans.FlattenAllKapitel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan)
}

// Import godoc
// @Summary Import a template subtree under a Rechtsgebiet
// @Tags Plans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param rechtsgebietId path string true "Rechtsgebiet ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/rechtsgebiete/{rechtsgebietId}/import [post]
func (h *PlanHandler) Import(c *gin.Context) {
	var tree dto.ImportTree
	if err := c.ShouldBindJSON(&tree); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid import payload"))
		return
	}
	plan, err := h.plans.ImportTree(c.Request.Context(), c.Param("id"), c.Param("rechtsgebietId"), tree)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan)
}

// ImportImage godoc
// @Summary Import a syllabus image via the OCR structuring service
// @Tags Plans
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Plan ID"
// @Param rechtsgebietId path string true "Rechtsgebiet ID"
// @Param image formData file true "Syllabus image"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/rechtsgebiete/{rechtsgebietId}/import-image [post]
func (h *PlanHandler) ImportImage(c *gin.Context) {
	if !h.ocr.Enabled() {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "ocr import disabled"))
		return
	}
	fileHeader, err := c.FormFile("image")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open image"))
		return
	}
	defer src.Close() //nolint:errcheck

	tree, err := h.ocr.StructureImage(c.Request.Context(), fileHeader.Filename, src)
	if err != nil {
		response.Error(c, err)
		return
	}
	plan, err := h.plans.ImportTree(c.Request.Context(), c.Param("id"), c.Param("rechtsgebietId"), *tree)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan)
}
