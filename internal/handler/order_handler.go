package handler

import (
	"net/http"

	"medsupply/internal/middleware"
	"medsupply/internal/service"
	"medsupply/pkg/pagination"
	"medsupply/pkg/response"

	"github.com/gin-gonic/gin"
)

// OrderHandler serves clinic orders and per-manufacturer fulfilment
type OrderHandler struct {
	orders service.OrderService
}

func NewOrderHandler(orders service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// RegisterRoutes mounts the order endpoints. Row level visibility is decided
// by the service, so read routes are open to every authenticated role.
func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	orders := router.Group("/api/orders")
	{
		orders.POST("", middleware.RequireRoles(middleware.BuyerRoles...), h.CreateOrder)
		orders.GET("", h.ListOrders)
		orders.GET("/:id", h.GetOrder)
		orders.PATCH("/:id/status", h.UpdateOrderStatus)
		orders.PATCH("/:id/items/:itemId", middleware.RequireRoles(middleware.ManufacturerRoles...), h.UpdateOrderItem)
		orders.POST("/:id/cancel", middleware.RequireRoles(middleware.BuyerRoles...), h.CancelOrder)
	}
}

// CreateOrder places an order for the caller's clinic
// @Summary      Create order
// @Description  Prices every line, debits product stock and numbers the order in one transaction
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateOrderRequest  true  "Order"
// @Success      201      {object}  response.Response{data=model.Order}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response  "Insufficient stock"
// @Router       /api/orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req service.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), a, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, order))
}

// ListOrders
// @Summary      List orders
// @Description  Clinics see their own orders, manufacturers see orders containing their products
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page}
// @Router       /api/orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)

	orders, total, err := h.orders.ListOrders(c.Request.Context(), a, c.Query("status"), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, orders, total, p.Page, p.Limit))
}

// GetOrder
// @Summary      Get order
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=model.Order}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), a, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// UpdateOrderStatus applies a manual status change
// @Summary      Update order status
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                            true  "Order ID"
// @Param        payload  body      service.UpdateOrderStatusRequest  true  "Status"
// @Success      200      {object}  response.Response{data=model.Order}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/orders/{id}/status [patch]
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateOrderStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.UpdateOrderStatus(c.Request.Context(), a, id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// UpdateOrderItem records shipping and delivery progress for one line
// @Summary      Update order item
// @Description  The order status is derived again from its items after every change
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string              true  "Order ID"
// @Param        itemId   path      string              true  "Order item ID"
// @Param        payload  body      service.ItemUpdate  true  "Fulfilment update"
// @Success      200      {object}  response.Response{data=model.OrderItem}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/orders/{id}/items/{itemId} [patch]
func (h *OrderHandler) UpdateOrderItem(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	itemID, ok := paramUUID(c, "itemId")
	if !ok {
		return
	}
	var req service.ItemUpdate
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.orders.UpdateOrderItem(c.Request.Context(), a, orderID, itemID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// CancelOrder cancels every open line and restocks the products
// @Summary      Cancel order
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Order ID"
// @Param        payload  body      service.CancelOrderRequest  true  "Reason"
// @Success      200      {object}  response.Response{data=model.Order}
// @Failure      409      {object}  response.Response
// @Router       /api/orders/{id}/cancel [post]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req service.CancelOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.CancelOrder(c.Request.Context(), a, id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}
