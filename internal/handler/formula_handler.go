package handler

import (
	"net/http"

	"medsupply/internal/apperror"
	"medsupply/internal/middleware"
	"medsupply/internal/service"
	"medsupply/pkg/pagination"
	"medsupply/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// FormulaHandler serves formulas and the master process stage list
type FormulaHandler struct {
	formulas service.FormulaService
	stages   service.ProcessStageService
}

func NewFormulaHandler(formulas service.FormulaService, stages service.ProcessStageService) *FormulaHandler {
	return &FormulaHandler{formulas: formulas, stages: stages}
}

func (h *FormulaHandler) RegisterRoutes(router *gin.RouterGroup) {
	mfg := router.Group("/api/manufacturing")
	mfg.Use(middleware.RequireRoles(middleware.ManufacturerRoles...))
	{
		mfg.POST("/formulas", h.CreateFormula)
		mfg.GET("/formulas", h.ListFormulas)
		mfg.GET("/formulas/:id", h.GetFormula)
		mfg.GET("/formulas/:id/scale", h.PreviewScale)
		mfg.POST("/process-stages", h.CreateStage)
		mfg.GET("/process-stages", h.ListStages)
	}
}

// CreateFormula
// @Summary      Create formula
// @Description  Creates a manufacturing formula. Ingredient quantities are for the standard batch size.
// @Tags         manufacturing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateFormulaRequest  true  "Formula"
// @Success      201      {object}  response.Response{data=model.ManufacturingFormula}
// @Failure      400      {object}  response.Response
// @Router       /api/manufacturing/formulas [post]
func (h *FormulaHandler) CreateFormula(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req service.CreateFormulaRequest
	if !bindJSON(c, &req) {
		return
	}

	formula, err := h.formulas.CreateFormula(c.Request.Context(), a, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, formula))
}

// ListFormulas
// @Summary      List formulas
// @Tags         manufacturing
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/manufacturing/formulas [get]
func (h *FormulaHandler) ListFormulas(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)

	formulas, total, err := h.formulas.ListFormulas(c.Request.Context(), a, p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, formulas, total, p.Page, p.Limit))
}

// GetFormula
// @Summary      Get formula
// @Tags         manufacturing
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Formula ID"
// @Success      200  {object}  response.Response{data=model.ManufacturingFormula}
// @Failure      404  {object}  response.Response
// @Router       /api/manufacturing/formulas/{id} [get]
func (h *FormulaHandler) GetFormula(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	formula, err := h.formulas.GetFormula(c.Request.Context(), a, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, formula))
}

// PreviewScale scales a formula to quantity and reports shortfalls against current stock
// @Summary      Preview formula scaling
// @Tags         manufacturing
// @Security     BearerAuth
// @Produce      json
// @Param        id        path      string  true  "Formula ID"
// @Param        quantity  query     string  true  "Target batch quantity"
// @Success      200       {object}  response.Response{data=service.ScalePreview}
// @Failure      400       {object}  response.Response
// @Router       /api/manufacturing/formulas/{id}/scale [get]
func (h *FormulaHandler) PreviewScale(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	qty, err := decimal.NewFromString(c.Query("quantity"))
	if err != nil {
		respondError(c, apperror.Validation("quantity must be a number"))
		return
	}

	preview, err := h.formulas.PreviewScale(c.Request.Context(), a, id, qty)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, preview))
}

// CreateStage adds a step to the manufacturer's process stage list
// @Summary      Create process stage
// @Tags         manufacturing
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateProcessStageRequest  true  "Stage"
// @Success      201      {object}  response.Response{data=model.ProcessStage}
// @Router       /api/manufacturing/process-stages [post]
func (h *FormulaHandler) CreateStage(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req service.CreateProcessStageRequest
	if !bindJSON(c, &req) {
		return
	}

	stage, err := h.stages.CreateStage(c.Request.Context(), a, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, stage))
}

// ListStages
// @Summary      List process stages
// @Tags         manufacturing
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.ProcessStage}
// @Router       /api/manufacturing/process-stages [get]
func (h *FormulaHandler) ListStages(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	stages, err := h.stages.ListStages(c.Request.Context(), a)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stages))
}
