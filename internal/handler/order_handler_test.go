package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"medsupply/internal/apperror"
	"medsupply/internal/model"
	"medsupply/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestOrderHandler_CreateOrder(t *testing.T) {
	productID := uuid.New()

	t.Run("clinic places an order", func(t *testing.T) {
		svc := new(MockOrderService)
		r := setupRouter(NewOrderHandler(svc))

		svc.On("CreateOrder", mock.Anything, sameActor(clinicActor), mock.MatchedBy(func(req service.CreateOrderRequest) bool {
			return len(req.Items) == 1 && req.Items[0].ProductID == productID && req.Items[0].Quantity == 5
		})).Return(&model.Order{OrderNumber: "ORD2026000001", Status: model.OrderStatusPending}, nil)

		w, resp := do(t, r, clinicActor, http.MethodPost, "/api/orders", map[string]interface{}{
			"items": []map[string]interface{}{{"product_id": productID, "quantity": 5}},
		})

		require.Equal(t, http.StatusCreated, w.Code)
		var got model.Order
		require.NoError(t, json.Unmarshal(resp.Data, &got))
		assert.Equal(t, "ORD2026000001", got.OrderNumber)
		svc.AssertExpectations(t)
	})

	t.Run("manufacturers cannot place orders", func(t *testing.T) {
		svc := new(MockOrderService)
		r := setupRouter(NewOrderHandler(svc))

		w, _ := do(t, r, mfrActor, http.MethodPost, "/api/orders", map[string]interface{}{
			"items": []map[string]interface{}{{"product_id": productID, "quantity": 5}},
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("empty items", func(t *testing.T) {
		svc := new(MockOrderService)
		r := setupRouter(NewOrderHandler(svc))

		w, resp := do(t, r, clinicActor, http.MethodPost, "/api/orders", map[string]interface{}{"items": []interface{}{}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperror.CodeValidation, resp.Code)
	})
}

func TestOrderHandler_GetOrderScoping(t *testing.T) {
	svc := new(MockOrderService)
	r := setupRouter(NewOrderHandler(svc))
	id := uuid.New()

	svc.On("GetOrder", mock.Anything, sameActor(mfrActor), id).
		Return(nil, apperror.Forbidden("order ORD2026000001 belongs to another organisation"))

	w, resp := do(t, r, mfrActor, http.MethodGet, "/api/orders/"+id.String(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperror.CodeForbidden, resp.Code)
}

func TestOrderHandler_UpdateOrderItem(t *testing.T) {
	svc := new(MockOrderService)
	r := setupRouter(NewOrderHandler(svc))
	orderID, itemID := uuid.New(), uuid.New()

	svc.On("UpdateOrderItem", mock.Anything, sameActor(mfrActor), orderID, itemID, mock.MatchedBy(func(u service.ItemUpdate) bool {
		return u.ShippedQuantity != nil && *u.ShippedQuantity == 3 && u.Status == nil
	})).Return(&model.OrderItem{ShippedQuantity: 3, Status: model.ItemStatusConfirmed}, nil)

	path := "/api/orders/" + orderID.String() + "/items/" + itemID.String()
	w, _ := do(t, r, mfrActor, http.MethodPatch, path, map[string]int{"shipped_quantity": 3})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, r, mfrActor, http.MethodPatch, path, map[string]string{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, clinicActor, http.MethodPatch, path, map[string]int{"shipped_quantity": 3})
	assert.Equal(t, http.StatusForbidden, w.Code)
	svc.AssertExpectations(t)
}

func TestOrderHandler_StatusAndCancel(t *testing.T) {
	svc := new(MockOrderService)
	r := setupRouter(NewOrderHandler(svc))
	id := uuid.New()

	svc.On("UpdateOrderStatus", mock.Anything, mock.Anything, id, model.OrderStatusRefunded).
		Return(&model.Order{Status: model.OrderStatusRefunded}, nil)
	svc.On("CancelOrder", mock.Anything, sameActor(clinicActor), id, "ordered twice").
		Return(&model.Order{Status: model.OrderStatusCancelled}, nil)

	w, _ := do(t, r, adminActor, http.MethodPatch, "/api/orders/"+id.String()+"/status", map[string]string{"status": "REFUNDED"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, r, adminActor, http.MethodPatch, "/api/orders/"+id.String()+"/status", map[string]string{"status": "SHIPPED"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, clinicActor, http.MethodPost, "/api/orders/"+id.String()+"/cancel", map[string]string{"reason": "ordered twice"})
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}
