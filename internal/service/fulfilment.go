package service

import (
	"medsupply/internal/apperror"
	"medsupply/internal/model"
)

// ItemUpdate is a partial update of an order item's fulfilment state. Nil
// fields are left unchanged.
type ItemUpdate struct {
	ShippedQuantity   *int    `json:"shipped_quantity" binding:"omitempty,gte=0"`
	DeliveredQuantity *int    `json:"delivered_quantity" binding:"omitempty,gte=0"`
	Status            *string `json:"status" binding:"omitempty,oneof=pending confirmed shipped delivered cancelled"`
}

// ApplyItemUpdate returns item with update applied. It enforces
// 0 <= delivered <= shipped <= quantity and derives the item status from the
// resulting counters:
//   - status "shipped" without a quantity ships the whole line
//   - status "delivered" without a quantity ships and delivers the whole line
//   - status "cancelled" is only accepted before anything has shipped
//
// The item passed in is not modified.
func ApplyItemUpdate(item model.OrderItem, update ItemUpdate) (model.OrderItem, error) {
	if item.IsClosed() {
		return item, apperror.Conflict("order item %s is already %s", item.ProductName, item.Status)
	}

	shipped := item.ShippedQuantity
	delivered := item.DeliveredQuantity
	if update.ShippedQuantity != nil {
		shipped = *update.ShippedQuantity
	}
	if update.DeliveredQuantity != nil {
		delivered = *update.DeliveredQuantity
	}

	requested := ""
	if update.Status != nil {
		requested = *update.Status
	}

	switch requested {
	case "":
	case model.ItemStatusShipped:
		if update.ShippedQuantity == nil {
			shipped = item.Quantity
		}
	case model.ItemStatusDelivered:
		if update.DeliveredQuantity == nil {
			delivered = item.Quantity
		}
		if update.ShippedQuantity == nil && shipped < delivered {
			shipped = delivered
		}
	case model.ItemStatusCancelled:
		if item.ShippedQuantity > 0 || shipped > 0 {
			return item, apperror.Conflict("cannot cancel %s: %d already shipped", item.ProductName, item.ShippedQuantity)
		}
		item.Status = model.ItemStatusCancelled
		return item, nil
	case model.ItemStatusPending, model.ItemStatusConfirmed:
		if shipped > 0 {
			return item, apperror.Validation("cannot mark %s as %s after shipping", item.ProductName, requested)
		}
	default:
		return item, apperror.Validation("unknown item status %q for %s", requested, item.ProductName)
	}

	if shipped < 0 || delivered < 0 {
		return item, apperror.Validation("quantities for %s must not be negative", item.ProductName)
	}
	if shipped > item.Quantity {
		return item, apperror.Validation("shipped quantity %d for %s exceeds ordered quantity %d", shipped, item.ProductName, item.Quantity)
	}
	if delivered > shipped {
		return item, apperror.Validation("delivered quantity %d for %s exceeds shipped quantity %d", delivered, item.ProductName, shipped)
	}

	item.ShippedQuantity = shipped
	item.DeliveredQuantity = delivered
	switch {
	case delivered == item.Quantity:
		item.Status = model.ItemStatusDelivered
	case shipped > 0:
		item.Status = model.ItemStatusShipped
	case requested != "":
		item.Status = requested
	}
	return item, nil
}

// DeriveOrderStatus rolls item progress up to an order status. Cancelled and
// refunded items do not take part. When no item has moved the current status
// is kept.
func DeriveOrderStatus(current string, items []model.OrderItem) string {
	active := 0
	allDelivered, anyDelivered := true, false
	allShipped, anyShipped := true, false

	for i := range items {
		it := &items[i]
		if it.IsClosed() {
			continue
		}
		active++
		if it.DeliveredQuantity < it.Quantity {
			allDelivered = false
		}
		if it.DeliveredQuantity > 0 {
			anyDelivered = true
		}
		if it.ShippedQuantity < it.Quantity {
			allShipped = false
		}
		if it.ShippedQuantity > 0 {
			anyShipped = true
		}
	}

	switch {
	case active == 0 && len(items) > 0:
		return model.OrderStatusCancelled
	case active == 0:
		return current
	case allDelivered:
		return model.OrderStatusDelivered
	case anyDelivered:
		return model.OrderStatusPartiallyFulfilled
	case allShipped:
		return model.OrderStatusShipped
	case anyShipped:
		return model.OrderStatusPartiallyFulfilled
	}
	return current
}
