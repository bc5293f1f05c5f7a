package handler

import (
	"net/http"

	"medsupply/internal/middleware"
	"medsupply/internal/service"
	"medsupply/pkg/pagination"
	"medsupply/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InventoryHandler serves the raw material ledger
type InventoryHandler struct {
	ledger service.InventoryLedgerService
}

func NewInventoryHandler(ledger service.InventoryLedgerService) *InventoryHandler {
	return &InventoryHandler{ledger: ledger}
}

// RegisterRoutes expects router to be behind middleware.Authenticate
func (h *InventoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	materials := router.Group("/api/manufacturing/raw-materials")
	materials.Use(middleware.RequireRoles(middleware.ManufacturerRoles...))
	{
		materials.POST("", h.CreateRawMaterial)
		materials.GET("", h.ListRawMaterials)
		materials.GET("/low-stock", h.LowStock)
		materials.POST("/:id/stock", h.AddStock)
		materials.POST("/:id/adjustments", h.AdjustStock)
		materials.GET("/:id/transactions", h.ListTransactions)
	}

	router.GET("/api/manufacturing/reconciliation",
		middleware.RequireRoles(middleware.ManufacturerRoles...), h.Reconcile)
}

// CreateRawMaterial registers a raw material with optional opening stock
// @Summary      Create raw material
// @Description  Creates a raw material. A positive opening stock is recorded as an ADJUSTMENT transaction.
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateRawMaterialRequest  true  "Raw material"
// @Success      201      {object}  response.Response{data=model.RawMaterial}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/manufacturing/raw-materials [post]
func (h *InventoryHandler) CreateRawMaterial(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req service.CreateRawMaterialRequest
	if !bindJSON(c, &req) {
		return
	}

	material, err := h.ledger.CreateRawMaterial(c.Request.Context(), a, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, material))
}

// ListRawMaterials lists the caller's raw materials
// @Summary      List raw materials
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        search  query     string  false  "Search by name"
// @Success      200     {object}  response.Response{data=response.Page}
// @Router       /api/manufacturing/raw-materials [get]
func (h *InventoryHandler) ListRawMaterials(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)

	materials, total, err := h.ledger.ListRawMaterials(c.Request.Context(), a, p.Page, p.Limit, c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, materials, total, p.Page, p.Limit))
}

// LowStock lists materials at or below their reorder point
// @Summary      Low stock raw materials
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.RawMaterial}
// @Router       /api/manufacturing/raw-materials/low-stock [get]
func (h *InventoryHandler) LowStock(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	materials, err := h.ledger.LowStock(c.Request.Context(), a)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, materials))
}

// AddStock records a purchase receipt
// @Summary      Add stock
// @Description  Receives stock and recalculates the moving average unit cost
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true  "Raw material ID"
// @Param        payload  body      service.AddStockRequest  true  "Receipt"
// @Success      201      {object}  response.Response{data=model.InventoryTransaction}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/manufacturing/raw-materials/{id}/stock [post]
func (h *InventoryHandler) AddStock(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req service.AddStockRequest
	if !bindJSON(c, &req) {
		return
	}

	tx, err := h.ledger.AddStock(c.Request.Context(), a, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, tx))
}

// AdjustStock records a manual correction, expiry or return
// @Summary      Adjust stock
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Raw material ID"
// @Param        payload  body      service.AdjustStockRequest  true  "Adjustment"
// @Success      201      {object}  response.Response{data=model.InventoryTransaction}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response  "Insufficient stock"
// @Router       /api/manufacturing/raw-materials/{id}/adjustments [post]
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req service.AdjustStockRequest
	if !bindJSON(c, &req) {
		return
	}

	tx, err := h.ledger.AdjustStock(c.Request.Context(), a, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, tx))
}

// ListTransactions returns the ledger of one raw material, newest first
// @Summary      Raw material transactions
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      string  true   "Raw material ID"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/manufacturing/raw-materials/{id}/transactions [get]
func (h *InventoryHandler) ListTransactions(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	p := pagination.Parse(c)

	txs, total, err := h.ledger.ListTransactions(c.Request.Context(), a, id, p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, txs, total, p.Page, p.Limit))
}

// Reconcile compares cached stock against the ledger
// @Summary      Stock reconciliation
// @Description  Lists raw materials whose stock differs from the sum of their transactions. Admins may pass manufacturer_id.
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        manufacturer_id  query     string  false  "Manufacturer ID (admin only)"
// @Success      200              {object}  response.Response{data=[]model.StockDiscrepancy}
// @Router       /api/manufacturing/reconciliation [get]
func (h *InventoryHandler) Reconcile(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var mfrID uuid.UUID
	if raw := c.Query("manufacturer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid manufacturer_id"))
			return
		}
		mfrID = id
	}

	discrepancies, err := h.ledger.Reconcile(c.Request.Context(), a, mfrID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, discrepancies))
}
