package service

import (
	"testing"

	"medsupply/internal/apperror"
	"medsupply/internal/model"
	"medsupply/internal/repository/repotest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemFor(t *testing.T, order *model.Order, productID uuid.UUID) model.OrderItem {
	t.Helper()
	for _, it := range order.Items {
		if it.ProductID == productID {
			return it
		}
	}
	t.Fatalf("order %s has no item for product %s", order.OrderNumber, productID)
	return model.OrderItem{}
}

func TestOrderService_CreateOrderPricesAndReservesStock(t *testing.T) {
	f := newFixture(t)
	p := repotest.Product(t, f.db, f.mfr.ID, "P-100", "Ashwagandha Tablets", "100", "12", "100")

	order, err := f.orders.CreateOrder(f.ctx, f.clinicActor, CreateOrderRequest{
		Items:    []OrderLineRequest{{ProductID: p.ID, Quantity: 5}},
		Shipping: &ShippingOverride{Phone: strPtr("+91 90000 11111")},
		Notes:    "deliver before noon",
	})
	require.NoError(t, err)

	assert.Equal(t, "ORD2026000001", order.OrderNumber)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, model.OrderSourceWeb, order.Source)
	assert.True(t, dec("500").Equal(order.Subtotal))
	assert.True(t, dec("60").Equal(order.GSTAmount))
	assert.True(t, dec("560").Equal(order.TotalAmount))
	assert.True(t, dec("50").Equal(order.CommissionAmount))
	assert.Equal(t, "Bengaluru", order.ShippingCity)
	assert.Equal(t, "+91 90000 11111", order.ShippingPhone)

	require.Len(t, order.Items, 1)
	item := order.Items[0]
	assert.Equal(t, f.mfr.ID, item.ManufacturerID)
	assert.Equal(t, "P-100", item.ProductSKU)
	assert.Equal(t, model.ItemStatusPending, item.Status)

	assert.True(t, dec("95").Equal(f.productStock(t, p.ID)))

	var sales []model.InventoryTransaction
	require.NoError(t, f.db.Where("order_id = ? AND type = ?", order.ID, model.TxTypeSale).Find(&sales).Error)
	require.Len(t, sales, 1)
	assert.True(t, dec("-5").Equal(sales[0].Quantity))

	assert.Contains(t, f.events.names(), EventOrderCreated)

	second, err := f.orders.CreateOrder(f.ctx, f.clinicActor, CreateOrderRequest{Items: []OrderLineRequest{{ProductID: p.ID, Quantity: 1}}})
	require.NoError(t, err)
	assert.Equal(t, "ORD2026000002", second.OrderNumber)
}

func TestOrderService_CreateOrderIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	plenty := repotest.Product(t, f.db, f.mfr.ID, "P-1", "Triphala", "40", "5", "100")
	scarce := repotest.Product(t, f.db, f.mfr.ID, "P-2", "Chyawanprash", "250", "12", "3")

	_, err := f.orders.CreateOrder(f.ctx, f.clinicActor, CreateOrderRequest{Items: []OrderLineRequest{
		{ProductID: plenty.ID, Quantity: 10},
		{ProductID: scarce.ID, Quantity: 4},
	}})
	assert.ErrorIs(t, err, apperror.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Chyawanprash")

	assert.True(t, dec("100").Equal(f.productStock(t, plenty.ID)))
	assert.True(t, dec("3").Equal(f.productStock(t, scarce.ID)))

	var orders int64
	require.NoError(t, f.db.Model(&model.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
}

func TestOrderService_CreateOrderAggregatesRepeatedProducts(t *testing.T) {
	f := newFixture(t)
	p := repotest.Product(t, f.db, f.mfr.ID, "P-1", "Triphala", "40", "5", "100")

	_, err := f.orders.CreateOrder(f.ctx, f.clinicActor, CreateOrderRequest{Items: []OrderLineRequest{
		{ProductID: p.ID, Quantity: 60},
		{ProductID: p.ID, Quantity: 50},
	}})
	assert.ErrorIs(t, err, apperror.ErrInsufficientStock)
	assert.True(t, dec("100").Equal(f.productStock(t, p.ID)))

	order, err := f.orders.CreateOrder(f.ctx, f.clinicActor, CreateOrderRequest{Items: []OrderLineRequest{
		{ProductID: p.ID, Quantity: 60},
		{ProductID: p.ID, Quantity: 40},
	}})
	require.NoError(t, err)
	assert.Len(t, order.Items, 2)
	assert.True(t, f.productStock(t, p.ID).IsZero())
}

func TestOrderService_CreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	p := repotest.Product(t, f.db, f.mfr.ID, "P-1", "Triphala", "40", "5", "100")
	line := []OrderLineRequest{{ProductID: p.ID, Quantity: 5}}

	_, err := f.orders.CreateOrder(f.ctx, f.mfrActor, CreateOrderRequest{Items: line})
	assert.ErrorIs(t, err, apperror.ErrForbidden, "manufacturers do not buy")

	_, err = f.orders.CreateOrder(f.ctx, f.clinicActor, CreateOrderRequest{})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.orders.CreateOrder(f.ctx, f.clinicActor, CreateOrderRequest{Items: []OrderLineRequest{{ProductID: p.ID, Quantity: 0}}})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.orders.CreateOrder(f.ctx, f.clinicActor, CreateOrderRequest{Items: []OrderLineRequest{{ProductID: uuid.New(), Quantity: 1}}})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	require.NoError(t, f.db.Model(&model.Product{}).Where("id = ?", p.ID).Update("min_order_quantity", 10).Error)
	_, err = f.orders.CreateOrder(f.ctx, f.clinicActor, CreateOrderRequest{Items: line})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Contains(t, err.Error(), "minimum order of 10")

	require.NoError(t, f.db.Model(&model.Product{}).Where("id = ?", p.ID).Updates(map[string]any{"min_order_quantity": 1, "is_active": false}).Error)
	_, err = f.orders.CreateOrder(f.ctx, f.clinicActor, CreateOrderRequest{Items: line})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	require.NoError(t, f.db.Model(&model.Product{}).Where("id = ?", p.ID).Update("is_active", true).Error)
	require.NoError(t, f.db.Model(&model.Organisation{}).Where("id = ?", f.clinic.ID).Update("approval_status", model.ApprovalPending).Error)
	_, err = f.orders.CreateOrder(f.ctx, f.clinicActor, CreateOrderRequest{Items: line})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	assert.True(t, dec("100").Equal(f.productStock(t, p.ID)))
}

func TestOrderService_FulfilmentRollsUpStatus(t *testing.T) {
	f := newFixture(t)
	a := repotest.Product(t, f.db, f.mfr.ID, "P-A", "Brahmi Syrup", "80", "12", "50")
	b := repotest.Product(t, f.db, f.mfr.ID, "P-B", "Neem Capsules", "120", "12", "50")

	order, err := f.orders.CreateOrder(f.ctx, f.clinicActor, CreateOrderRequest{Items: []OrderLineRequest{
		{ProductID: a.ID, Quantity: 4},
		{ProductID: b.ID, Quantity: 2},
	}})
	require.NoError(t, err)
	itemA := itemFor(t, order, a.ID)
	itemB := itemFor(t, order, b.ID)

	confirmed, err := f.orders.UpdateOrderStatus(f.ctx, f.mfrActor, order.ID, model.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusConfirmed, confirmed.Status)

	_, err = f.orders.UpdateOrderItem(f.ctx, f.clinicActor, order.ID, itemA.ID, ItemUpdate{Status: strPtr(model.ItemStatusShipped)})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	updated, err := f.orders.UpdateOrderItem(f.ctx, f.mfrActor, order.ID, itemA.ID, ItemUpdate{Status: strPtr(model.ItemStatusShipped)})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.ShippedQuantity)
	got, err := f.orders.GetOrder(f.ctx, f.clinicActor, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPartiallyFulfilled, got.Status)

	_, err = f.orders.UpdateOrderItem(f.ctx, f.mfrActor, order.ID, itemB.ID, ItemUpdate{ShippedQuantity: intPtr(2)})
	require.NoError(t, err)
	got, err = f.orders.GetOrder(f.ctx, f.clinicActor, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusShipped, got.Status)

	_, err = f.orders.UpdateOrderItem(f.ctx, f.mfrActor, order.ID, itemA.ID, ItemUpdate{DeliveredQuantity: intPtr(5)})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	for _, id := range []uuid.UUID{itemA.ID, itemB.ID} {
		_, err = f.orders.UpdateOrderItem(f.ctx, f.mfrActor, order.ID, id, ItemUpdate{Status: strPtr(model.ItemStatusDelivered)})
		require.NoError(t, err)
	}
	got, err = f.orders.GetOrder(f.ctx, f.clinicActor, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDelivered, got.Status)

	_, err = f.orders.UpdateOrderItem(f.ctx, f.mfrActor, order.ID, itemA.ID, ItemUpdate{ShippedQuantity: intPtr(1)})
	assert.ErrorIs(t, err, apperror.ErrConflict)
	_, err = f.orders.CancelOrder(f.ctx, f.clinicActor, order.ID, "changed mind")
	assert.ErrorIs(t, err, apperror.ErrConflict)

	disputed, err := f.orders.UpdateOrderStatus(f.ctx, f.clinicActor, order.ID, model.OrderStatusDisputed)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDisputed, disputed.Status)
}

func TestOrderService_DisputedOrderFreezesFulfilment(t *testing.T) {
	f := newFixture(t)
	p := repotest.Product(t, f.db, f.mfr.ID, "P-D", "Triphala Churna", "90", "12", "20")

	order, err := f.orders.CreateOrder(f.ctx, f.clinicActor, CreateOrderRequest{Items: []OrderLineRequest{{ProductID: p.ID, Quantity: 4}}})
	require.NoError(t, err)
	item := order.Items[0]

	_, err = f.orders.UpdateOrderItem(f.ctx, f.mfrActor, order.ID, item.ID, ItemUpdate{ShippedQuantity: intPtr(2)})
	require.NoError(t, err)
	_, err = f.orders.UpdateOrderStatus(f.ctx, f.clinicActor, order.ID, model.OrderStatusDisputed)
	require.NoError(t, err)

	_, err = f.orders.UpdateOrderItem(f.ctx, f.mfrActor, order.ID, item.ID, ItemUpdate{Status: strPtr(model.ItemStatusDelivered)})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	got, err := f.orders.GetOrder(f.ctx, f.clinicActor, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDisputed, got.Status)
	assert.Equal(t, 2, got.Items[0].ShippedQuantity)
	assert.Equal(t, 0, got.Items[0].DeliveredQuantity)

	refunded, err := f.orders.UpdateOrderStatus(f.ctx, f.admin, order.ID, model.OrderStatusRefunded)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusRefunded, refunded.Status)
}

func TestOrderService_CancelOrderRestoresStock(t *testing.T) {
	f := newFixture(t)
	p := repotest.Product(t, f.db, f.mfr.ID, "P-1", "Triphala", "40", "5", "100")

	order, err := f.orders.CreateOrder(f.ctx, f.clinicActor, CreateOrderRequest{Items: []OrderLineRequest{{ProductID: p.ID, Quantity: 5}}})
	require.NoError(t, err)
	assert.True(t, dec("95").Equal(f.productStock(t, p.ID)))

	_, err = f.orders.CancelOrder(f.ctx, f.clinicActor, order.ID, " ")
	assert.ErrorIs(t, err, apperror.ErrValidation)
	_, err = f.orders.CancelOrder(f.ctx, f.mfrActor, order.ID, "out of stock")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	cancelled, err := f.orders.CancelOrder(f.ctx, f.clinicActor, order.ID, "duplicate order")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, "duplicate order", cancelled.CancellationReason)
	require.NotNil(t, cancelled.CancelledAt)
	for _, it := range cancelled.Items {
		assert.Equal(t, model.ItemStatusCancelled, it.Status)
	}
	assert.True(t, dec("100").Equal(f.productStock(t, p.ID)))

	_, err = f.orders.CancelOrder(f.ctx, f.clinicActor, order.ID, "again")
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.True(t, dec("100").Equal(f.productStock(t, p.ID)), "stock is restored once")

	refunded, err := f.orders.UpdateOrderStatus(f.ctx, f.admin, order.ID, model.OrderStatusRefunded)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusRefunded, refunded.Status)
}

func TestOrderService_CancellingEveryItemCancelsOrder(t *testing.T) {
	f := newFixture(t)
	a := repotest.Product(t, f.db, f.mfr.ID, "P-A", "Brahmi Syrup", "80", "12", "50")
	b := repotest.Product(t, f.db, f.mfr.ID, "P-B", "Neem Capsules", "120", "12", "50")

	order, err := f.orders.CreateOrder(f.ctx, f.clinicActor, CreateOrderRequest{Items: []OrderLineRequest{
		{ProductID: a.ID, Quantity: 4},
		{ProductID: b.ID, Quantity: 2},
	}})
	require.NoError(t, err)

	_, err = f.orders.UpdateOrderItem(f.ctx, f.mfrActor, order.ID, itemFor(t, order, a.ID).ID, ItemUpdate{Status: strPtr(model.ItemStatusCancelled)})
	require.NoError(t, err)
	assert.True(t, dec("50").Equal(f.productStock(t, a.ID)))
	assert.True(t, dec("48").Equal(f.productStock(t, b.ID)))

	got, err := f.orders.GetOrder(f.ctx, f.clinicActor, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, got.Status)

	_, err = f.orders.UpdateOrderItem(f.ctx, f.mfrActor, order.ID, itemFor(t, order, b.ID).ID, ItemUpdate{Status: strPtr(model.ItemStatusCancelled)})
	require.NoError(t, err)
	got, err = f.orders.GetOrder(f.ctx, f.clinicActor, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, got.Status)
	assert.True(t, dec("50").Equal(f.productStock(t, b.ID)))
}

func TestOrderService_StatusRules(t *testing.T) {
	f := newFixture(t)
	p := repotest.Product(t, f.db, f.mfr.ID, "P-1", "Triphala", "40", "5", "100")
	order, err := f.orders.CreateOrder(f.ctx, f.clinicActor, CreateOrderRequest{Items: []OrderLineRequest{{ProductID: p.ID, Quantity: 1}}})
	require.NoError(t, err)

	_, err = f.orders.UpdateOrderStatus(f.ctx, f.clinicActor, order.ID, model.OrderStatusConfirmed)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	_, err = f.orders.UpdateOrderStatus(f.ctx, f.mfrActor, order.ID, model.OrderStatusProcessing)
	assert.ErrorIs(t, err, apperror.ErrConflict)
	_, err = f.orders.UpdateOrderStatus(f.ctx, f.mfrActor, order.ID, model.OrderStatusShipped)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.orders.UpdateOrderStatus(f.ctx, f.mfrActor, order.ID, model.OrderStatusConfirmed)
	require.NoError(t, err)
	processing, err := f.orders.UpdateOrderStatus(f.ctx, f.mfrActor, order.ID, model.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusProcessing, processing.Status)
	for _, it := range processing.Items {
		assert.Equal(t, model.ItemStatusConfirmed, it.Status)
	}
}

func TestOrderService_Visibility(t *testing.T) {
	f := newFixture(t)
	p := repotest.Product(t, f.db, f.mfr.ID, "P-1", "Triphala", "40", "5", "100")
	order, err := f.orders.CreateOrder(f.ctx, f.clinicActor, CreateOrderRequest{Items: []OrderLineRequest{{ProductID: p.ID, Quantity: 1}}})
	require.NoError(t, err)

	other := repotest.Organisation(t, f.db, "City Hospital", model.OrgTypeHospital)
	otherActor := model.Actor{UserID: uuid.New(), OrganisationID: other.ID, Role: model.RoleHospitalAdmin}
	rival := repotest.Organisation(t, f.db, "Rival Pharma", model.OrgTypeManufacturer)
	rivalActor := model.Actor{UserID: uuid.New(), OrganisationID: rival.ID, Role: model.RoleManufacturerAdmin}

	_, err = f.orders.GetOrder(f.ctx, otherActor, order.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	_, err = f.orders.GetOrder(f.ctx, rivalActor, order.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	_, err = f.orders.GetOrder(f.ctx, f.mfrActor, order.ID)
	assert.NoError(t, err)
	_, err = f.orders.GetOrder(f.ctx, f.admin, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, total, err := f.orders.ListOrders(f.ctx, f.mfrActor, "", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	_, total, err = f.orders.ListOrders(f.ctx, rivalActor, "", 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	_, total, err = f.orders.ListOrders(f.ctx, otherActor, "", 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	_, total, err = f.orders.ListOrders(f.ctx, f.admin, model.OrderStatusPending, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}
