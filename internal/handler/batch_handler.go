package handler

import (
	"context"
	"net/http"

	"medsupply/internal/middleware"
	"medsupply/internal/model"
	"medsupply/internal/service"
	"medsupply/pkg/pagination"
	"medsupply/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BatchHandler serves production batches
type BatchHandler struct {
	batches service.BatchService
}

func NewBatchHandler(batches service.BatchService) *BatchHandler {
	return &BatchHandler{batches: batches}
}

func (h *BatchHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/manufacturing/batches")
	group.Use(middleware.RequireRoles(middleware.ManufacturerRoles...))
	{
		group.POST("", h.StartBatch)
		group.GET("", h.ListBatches)
		group.GET("/:id", h.GetBatch)
		group.POST("/:id/qc", h.SubmitForQC)
		group.POST("/:id/complete", h.CompleteBatch)
		group.POST("/:id/cancel", h.CancelBatch)
		group.POST("/:id/fail", h.FailBatch)
		group.PATCH("/:id/stages/:stageId", h.UpdateStage)
	}
}

// StartBatch scales a formula, consumes raw materials and starts production
// @Summary      Start batch
// @Description  Deducts every scaled ingredient in one transaction. Fails with INSUFFICIENT_STOCK without consuming anything.
// @Tags         batches
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.StartBatchRequest  true  "Batch"
// @Success      201      {object}  response.Response{data=model.Batch}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response  "Insufficient stock or duplicate batch number"
// @Router       /api/manufacturing/batches [post]
func (h *BatchHandler) StartBatch(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req service.StartBatchRequest
	if !bindJSON(c, &req) {
		return
	}

	batch, err := h.batches.StartBatch(c.Request.Context(), a, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, batch))
}

// ListBatches
// @Summary      List batches
// @Tags         batches
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page}
// @Router       /api/manufacturing/batches [get]
func (h *BatchHandler) ListBatches(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)

	batches, total, err := h.batches.ListBatches(c.Request.Context(), a, c.Query("status"), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, batches, total, p.Page, p.Limit))
}

// GetBatch
// @Summary      Get batch
// @Tags         batches
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Batch ID"
// @Success      200  {object}  response.Response{data=model.Batch}
// @Failure      404  {object}  response.Response
// @Router       /api/manufacturing/batches/{id} [get]
func (h *BatchHandler) GetBatch(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	batch, err := h.batches.GetBatch(c.Request.Context(), a, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, batch))
}

// SubmitForQC
// @Summary      Submit batch for QC
// @Tags         batches
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Batch ID"
// @Success      200  {object}  response.Response{data=model.Batch}
// @Failure      409  {object}  response.Response
// @Router       /api/manufacturing/batches/{id}/qc [post]
func (h *BatchHandler) SubmitForQC(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	batch, err := h.batches.SubmitForQC(c.Request.Context(), a, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, batch))
}

// CompleteBatch credits the yield to the target product and fixes the unit cost
// @Summary      Complete batch
// @Tags         batches
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Batch ID"
// @Param        payload  body      service.CompleteBatchRequest  false "Yield and overhead"
// @Success      200      {object}  response.Response{data=model.Batch}
// @Failure      409      {object}  response.Response
// @Router       /api/manufacturing/batches/{id}/complete [post]
func (h *BatchHandler) CompleteBatch(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req service.CompleteBatchRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	batch, err := h.batches.CompleteBatch(c.Request.Context(), a, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, batch))
}

// CancelBatch returns consumed materials to stock
// @Summary      Cancel batch
// @Tags         batches
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Batch ID"
// @Param        payload  body      service.BatchReasonRequest  true  "Reason"
// @Success      200      {object}  response.Response{data=model.Batch}
// @Router       /api/manufacturing/batches/{id}/cancel [post]
func (h *BatchHandler) CancelBatch(c *gin.Context) {
	h.closeBatch(c, h.batches.CancelBatch)
}

// FailBatch closes the batch without restoring materials
// @Summary      Fail batch
// @Tags         batches
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Batch ID"
// @Param        payload  body      service.BatchReasonRequest  true  "Reason"
// @Success      200      {object}  response.Response{data=model.Batch}
// @Router       /api/manufacturing/batches/{id}/fail [post]
func (h *BatchHandler) FailBatch(c *gin.Context) {
	h.closeBatch(c, h.batches.FailBatch)
}

func (h *BatchHandler) closeBatch(c *gin.Context, fn func(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.Batch, error)) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req service.BatchReasonRequest
	if !bindJSON(c, &req) {
		return
	}

	batch, err := fn(c.Request.Context(), a, id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, batch))
}

// UpdateStage moves a batch stage forward
// @Summary      Update batch stage
// @Tags         batches
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Batch ID"
// @Param        stageId  path      string                      true  "Stage ID"
// @Param        payload  body      service.UpdateStageRequest  true  "Stage status"
// @Success      200      {object}  response.Response{data=model.BatchStage}
// @Failure      409      {object}  response.Response
// @Router       /api/manufacturing/batches/{id}/stages/{stageId} [patch]
func (h *BatchHandler) UpdateStage(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	batchID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	stageID, ok := paramUUID(c, "stageId")
	if !ok {
		return
	}
	var req service.UpdateStageRequest
	if !bindJSON(c, &req) {
		return
	}

	stage, err := h.batches.UpdateStage(c.Request.Context(), a, batchID, stageID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stage))
}
