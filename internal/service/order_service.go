package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"medsupply/internal/apperror"
	"medsupply/internal/logger"
	"medsupply/internal/model"
	"medsupply/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DTOs
type OrderLineRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,gt=0"`
}

// ShippingOverride replaces individual fields of the clinic's address
type ShippingOverride struct {
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	Address1 *string `json:"address1"`
	Address2 *string `json:"address2"`
	City     *string `json:"city"`
	State    *string `json:"state"`
	Pincode  *string `json:"pincode"`
}

type CreateOrderRequest struct {
	Items    []OrderLineRequest `json:"items" binding:"required,min=1,dive"`
	Source   string             `json:"source" binding:"omitempty,oneof=WEB MOBILE WHATSAPP ADMIN"`
	Shipping *ShippingOverride  `json:"shipping"`
	Notes    string             `json:"notes"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=CONFIRMED PROCESSING DISPUTED REFUNDED"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// OrderEvent is broadcast after a committed order change
type OrderEvent struct {
	OrderID         string   `json:"order_id"`
	OrderNumber     string   `json:"order_number"`
	ClinicID        string   `json:"clinic_id"`
	ManufacturerIDs []string `json:"manufacturer_ids"`
	Status          string   `json:"status"`
	TotalAmount     string   `json:"total_amount"`
}

// Audience is the buying clinic plus every manufacturer with a line on the order
func (e OrderEvent) Audience() []string {
	return append([]string{e.ClinicID}, e.ManufacturerIDs...)
}

type OrderOptions struct {
	NumberPrefix string
	Now          func() time.Time
}

type OrderService interface {
	CreateOrder(ctx context.Context, actor model.Actor, req CreateOrderRequest) (*model.Order, error)
	GetOrder(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Order, error)
	ListOrders(ctx context.Context, actor model.Actor, status string, page, limit int) ([]model.Order, int64, error)
	UpdateOrderStatus(ctx context.Context, actor model.Actor, id uuid.UUID, status string) (*model.Order, error)
	UpdateOrderItem(ctx context.Context, actor model.Actor, orderID, itemID uuid.UUID, update ItemUpdate) (*model.OrderItem, error)
	CancelOrder(ctx context.Context, actor model.Actor, orderID uuid.UUID, reason string) (*model.Order, error)
}

type orderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	orgRepo     repository.OrganisationRepository
	seqRepo     repository.SequenceRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	stock       StockMover
	events      EventPublisher
	opts        OrderOptions
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	orgRepo repository.OrganisationRepository,
	seqRepo repository.SequenceRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	stock StockMover,
	events EventPublisher,
	opts OrderOptions,
) OrderService {
	if opts.NumberPrefix == "" {
		opts.NumberPrefix = "ORD"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &orderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		orgRepo:     orgRepo,
		seqRepo:     seqRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		stock:       stock,
		events:      events,
		opts:        opts,
	}
}

// CreateOrder validates, prices and reserves stock for every line, then
// persists the order. Either the whole order is placed or nothing changes.
func (s *orderService) CreateOrder(ctx context.Context, actor model.Actor, req CreateOrderRequest) (*model.Order, error) {
	if !actor.Role.IsBuyer() {
		return nil, apperror.Forbidden("only clinic or hospital users can place orders")
	}
	if len(req.Items) == 0 {
		return nil, apperror.Validation("an order needs at least one item")
	}
	for _, line := range req.Items {
		if line.Quantity <= 0 {
			return nil, apperror.Validation("quantity for product %s must be positive", line.ProductID)
		}
	}
	source := req.Source
	if source == "" {
		source = model.OrderSourceWeb
	}

	clinic, err := s.orgRepo.FindByID(ctx, actor.OrganisationID)
	if err != nil {
		return nil, lookupErr(err, "organisation", actor.OrganisationID)
	}
	if !clinic.CanPlaceOrders() {
		return nil, apperror.Forbidden("%s is not allowed to place orders", clinic.Name)
	}
	if !clinic.IsApproved() {
		return nil, apperror.Forbidden("%s is not approved yet", clinic.Name)
	}

	now := s.opts.Now()
	order := &model.Order{
		ClinicID: clinic.ID,
		PlacedBy: actor.UserRef(),
		Source:   source,
		Status:   model.OrderStatusPending,
		Notes:    req.Notes,
	}
	order.ID = uuid.New()
	applyShipping(order, clinic, req.Shipping)

	var debited []*model.Product
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		requested := make(map[uuid.UUID]int, len(req.Items))
		ids := make([]uuid.UUID, 0, len(req.Items))
		for _, line := range req.Items {
			if _, ok := requested[line.ProductID]; !ok {
				ids = append(ids, line.ProductID)
			}
			requested[line.ProductID] += line.Quantity
		}

		locked, err := s.productRepo.FindByIDsForUpdate(txCtx, ids)
		if err != nil {
			return fmt.Errorf("failed to lock products: %w", err)
		}
		products := make(map[uuid.UUID]*model.Product, len(locked))
		mfrIDs := make([]uuid.UUID, 0, len(locked))
		for i := range locked {
			products[locked[i].ID] = &locked[i]
			mfrIDs = append(mfrIDs, locked[i].ManufacturerID)
		}
		manufacturers, err := s.orgRepo.FindByIDs(txCtx, mfrIDs)
		if err != nil {
			return fmt.Errorf("failed to load manufacturers: %w", err)
		}

		// validate every line before touching stock
		for _, line := range req.Items {
			p, ok := products[line.ProductID]
			if !ok {
				return apperror.NotFound("product", line.ProductID)
			}
			if !p.IsActive {
				return apperror.Validation("product %s is not available", p.Name)
			}
			if line.Quantity < p.MinOrderQuantity {
				return apperror.Validation("product %s requires a minimum order of %d, got %d", p.Name, p.MinOrderQuantity, line.Quantity)
			}
			mfr, ok := manufacturers[p.ManufacturerID]
			if !ok || !mfr.IsApproved() {
				return apperror.Validation("manufacturer of product %s is not approved", p.Name)
			}
		}
		for _, id := range ids {
			p := products[id]
			want := decimal.NewFromInt(int64(requested[id]))
			if p.StockQuantity.LessThan(want) {
				return apperror.InsufficientStock(p.Name, p.StockQuantity, want, p.Unit)
			}
		}

		lines := make([]LinePrice, 0, len(req.Items))
		for _, line := range req.Items {
			p := products[line.ProductID]
			commission := manufacturers[p.ManufacturerID].CommissionRate
			price := PriceLine(p.Price, p.GSTRate, commission, line.Quantity)
			lines = append(lines, price)
			order.Items = append(order.Items, model.OrderItem{
				ProductID:        p.ID,
				ManufacturerID:   p.ManufacturerID,
				ProductName:      p.Name,
				ProductSKU:       p.SKU,
				Quantity:         line.Quantity,
				UnitPrice:        p.Price,
				GSTRate:          p.GSTRate,
				Subtotal:         price.Subtotal,
				GSTAmount:        price.GSTAmount,
				TotalAmount:      price.Total,
				CommissionRate:   commission,
				CommissionAmount: price.CommissionAmount,
				Status:           model.ItemStatusPending,
			})
		}
		totals := SumOrder(lines, decimal.Zero, decimal.Zero)
		order.Subtotal = totals.Subtotal
		order.GSTAmount = totals.GSTAmount
		order.ShippingCharges = totals.ShippingCharges
		order.PlatformFee = totals.PlatformFee
		order.TotalAmount = totals.Total
		order.CommissionAmount = totals.CommissionAmount

		seq, err := s.seqRepo.Next(txCtx, fmt.Sprintf("order:%d", now.Year()))
		if err != nil {
			return fmt.Errorf("failed to allocate order number: %w", err)
		}
		order.OrderNumber = fmt.Sprintf("%s%d%06d", s.opts.NumberPrefix, now.Year(), seq)

		for _, id := range sortedIDs(ids) {
			p := products[id]
			if _, err := s.stock.DebitProduct(txCtx, p, decimal.NewFromInt(int64(requested[p.ID])), order.ID, actor); err != nil {
				return err
			}
			debited = append(debited, p)
		}

		if err := s.orderRepo.Create(txCtx, order); err != nil {
			return writeErr(err, "order number %s already exists", order.OrderNumber)
		}

		return recordAudit(txCtx, s.auditRepo, actor, model.ActionCreateOrder, order.ID.String(), order.OrderNumber, map[string]any{
			"clinic_id": clinic.ID.String(),
			"source":    source,
			"items":     len(order.Items),
			"total":     order.TotalAmount.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.TotalAmount.String()))
	for _, p := range debited {
		publish(s.events, log, EventStockChanged, productEvent(p, model.TxTypeSale))
	}
	publish(s.events, log, EventOrderCreated, orderEvent(order))
	return order, nil
}

func applyShipping(order *model.Order, clinic *model.Organisation, o *ShippingOverride) {
	order.ShippingName = clinic.ContactName
	if order.ShippingName == "" {
		order.ShippingName = clinic.Name
	}
	order.ShippingPhone = clinic.Phone
	order.ShippingAddress1 = clinic.AddressLine1
	order.ShippingAddress2 = clinic.AddressLine2
	order.ShippingCity = clinic.City
	order.ShippingState = clinic.State
	order.ShippingPincode = clinic.Pincode
	if o == nil {
		return
	}

	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&order.ShippingName, o.Name)
	set(&order.ShippingPhone, o.Phone)
	set(&order.ShippingAddress1, o.Address1)
	set(&order.ShippingAddress2, o.Address2)
	set(&order.ShippingCity, o.City)
	set(&order.ShippingState, o.State)
	set(&order.ShippingPincode, o.Pincode)
}

func (s *orderService) GetOrder(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.FindByIDWithItems(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "order", id)
	}
	if err := canView(actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, actor model.Actor, status string, page, limit int) ([]model.Order, int64, error) {
	filter := repository.OrderFilter{Status: status}
	switch {
	case actor.IsAdmin():
	case actor.Role.IsBuyer():
		filter.ClinicID = actor.OrganisationID
	case actor.Role.IsManufacturer():
		filter.ManufacturerID = actor.OrganisationID
	default:
		return nil, 0, apperror.Forbidden("role %q cannot list orders", actor.Role)
	}
	page, limit = normalizePage(page, limit)
	return s.orderRepo.List(ctx, filter, page, limit)
}

type statusRule struct {
	from  []string
	allow func(model.Actor) bool
}

var orderStatusRules = map[string]statusRule{
	model.OrderStatusConfirmed: {
		from:  []string{model.OrderStatusPending},
		allow: func(a model.Actor) bool { return a.IsAdmin() || a.Role.IsManufacturer() },
	},
	model.OrderStatusProcessing: {
		from:  []string{model.OrderStatusConfirmed},
		allow: func(a model.Actor) bool { return a.IsAdmin() || a.Role.IsManufacturer() },
	},
	model.OrderStatusDisputed: {
		from:  []string{model.OrderStatusShipped, model.OrderStatusDelivered, model.OrderStatusPartiallyFulfilled},
		allow: func(a model.Actor) bool { return a.IsAdmin() || a.Role.IsBuyer() },
	},
	model.OrderStatusRefunded: {
		from:  []string{model.OrderStatusCancelled, model.OrderStatusDisputed},
		allow: func(a model.Actor) bool { return a.IsAdmin() },
	},
}

// UpdateOrderStatus applies a manual order-level transition. Shipment and
// delivery progress is driven by item updates instead.
func (s *orderService) UpdateOrderStatus(ctx context.Context, actor model.Actor, id uuid.UUID, status string) (*model.Order, error) {
	rule, ok := orderStatusRules[status]
	if !ok {
		return nil, apperror.Validation("status %s cannot be set directly", status)
	}
	if !rule.allow(actor) {
		return nil, apperror.Forbidden("role %q cannot set order status %s", actor.Role, status)
	}

	var order *model.Order
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orderRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return lookupErr(err, "order", id)
		}
		if err := canView(actor, order); err != nil {
			return err
		}

		permitted := false
		for _, from := range rule.from {
			if order.Status == from {
				permitted = true
				break
			}
		}
		if !permitted {
			return apperror.Conflict("order %s cannot move from %s to %s", order.OrderNumber, order.Status, status)
		}

		previous := order.Status
		order.Status = status
		if err := s.orderRepo.Update(txCtx, order); err != nil {
			return fmt.Errorf("failed to update order %s: %w", order.OrderNumber, err)
		}

		itemStatus := ""
		switch status {
		case model.OrderStatusConfirmed:
			itemStatus = model.ItemStatusConfirmed
		case model.OrderStatusRefunded:
			itemStatus = model.ItemStatusRefunded
		}
		if itemStatus != "" {
			for i := range order.Items {
				it := &order.Items[i]
				if it.Status == model.ItemStatusCancelled {
					continue
				}
				if itemStatus == model.ItemStatusConfirmed && it.Status != model.ItemStatusPending {
					continue
				}
				it.Status = itemStatus
				if err := s.orderRepo.UpdateItem(txCtx, it); err != nil {
					return fmt.Errorf("failed to update item %s: %w", it.ProductName, err)
				}
			}
		}

		return recordAudit(txCtx, s.auditRepo, actor, model.ActionUpdateOrderStatus, order.ID.String(), order.OrderNumber, map[string]any{
			"from": previous,
			"to":   status,
		})
	})
	if err != nil {
		return nil, err
	}

	publish(s.events, logger.FromContext(ctx), EventOrderUpdated, orderEvent(order))
	return order, nil
}

// UpdateOrderItem records shipment or delivery progress on one line and
// re-derives the order status. Cancelling a line returns its stock.
func (s *orderService) UpdateOrderItem(ctx context.Context, actor model.Actor, orderID, itemID uuid.UUID, update ItemUpdate) (*model.OrderItem, error) {
	if !actor.IsAdmin() && !actor.Role.IsManufacturer() {
		return nil, apperror.Forbidden("only the manufacturer can update fulfilment")
	}

	var (
		order   *model.Order
		updated model.OrderItem
	)
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orderRepo.FindByIDForUpdate(txCtx, orderID)
		if err != nil {
			return lookupErr(err, "order", orderID)
		}
		switch order.Status {
		case model.OrderStatusCancelled, model.OrderStatusRefunded, model.OrderStatusDelivered:
			return apperror.Conflict("order %s is %s", order.OrderNumber, order.Status)
		case model.OrderStatusDisputed:
			return apperror.Conflict("order %s is disputed, fulfilment is frozen until it is resolved", order.OrderNumber)
		}

		idx := -1
		for i := range order.Items {
			if order.Items[i].ID == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return apperror.NotFound("order item", itemID)
		}
		item := order.Items[idx]
		if !actor.IsAdmin() && item.ManufacturerID != actor.OrganisationID {
			return apperror.Forbidden("item %s of order %s belongs to another manufacturer", item.ProductName, order.OrderNumber)
		}

		updated, err = ApplyItemUpdate(item, update)
		if err != nil {
			return err
		}

		if updated.Status == model.ItemStatusCancelled && item.Status != model.ItemStatusCancelled {
			notes := fmt.Sprintf("item %s of order %s cancelled", item.ProductName, order.OrderNumber)
			if _, err := s.stock.ReturnProduct(txCtx, item.ProductID, decimal.NewFromInt(int64(item.Quantity)), order.ID, actor, notes); err != nil {
				return err
			}
		}
		if err := s.orderRepo.UpdateItem(txCtx, &updated); err != nil {
			return fmt.Errorf("failed to update item %s: %w", item.ProductName, err)
		}
		order.Items[idx] = updated

		previous := order.Status
		order.Status = DeriveOrderStatus(order.Status, order.Items)
		if order.Status == model.OrderStatusCancelled && previous != model.OrderStatusCancelled {
			now := s.opts.Now()
			order.CancelledAt = &now
			order.CancelledBy = actor.UserRef()
			order.CancellationReason = "all items cancelled"
		}
		if order.Status != previous {
			if err := s.orderRepo.Update(txCtx, order); err != nil {
				return fmt.Errorf("failed to update order %s: %w", order.OrderNumber, err)
			}
		}

		return recordAudit(txCtx, s.auditRepo, actor, model.ActionUpdateOrderItem, updated.ID.String(), order.OrderNumber+"/"+updated.ProductName, map[string]any{
			"shipped_quantity":   updated.ShippedQuantity,
			"delivered_quantity": updated.DeliveredQuantity,
			"item_status":        updated.Status,
			"order_status":       order.Status,
		})
	})
	if err != nil {
		return nil, err
	}

	publish(s.events, logger.FromContext(ctx), EventOrderUpdated, orderEvent(order))
	return &updated, nil
}

// CancelOrder cancels every open line and returns its full quantity to stock
func (s *orderService) CancelOrder(ctx context.Context, actor model.Actor, orderID uuid.UUID, reason string) (*model.Order, error) {
	if !actor.IsAdmin() && !actor.Role.IsBuyer() {
		return nil, apperror.Forbidden("only the ordering clinic or an admin can cancel an order")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Validation("a cancellation reason is required")
	}

	var order *model.Order
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orderRepo.FindByIDForUpdate(txCtx, orderID)
		if err != nil {
			return lookupErr(err, "order", orderID)
		}
		if err := canView(actor, order); err != nil {
			return err
		}
		switch order.Status {
		case model.OrderStatusDelivered, model.OrderStatusCancelled, model.OrderStatusRefunded:
			return apperror.Conflict("order %s is %s and cannot be cancelled", order.OrderNumber, order.Status)
		}

		restock := make(map[uuid.UUID]int)
		for i := range order.Items {
			it := &order.Items[i]
			if it.IsClosed() {
				continue
			}
			restock[it.ProductID] += it.Quantity
			it.Status = model.ItemStatusCancelled
			if err := s.orderRepo.UpdateItem(txCtx, it); err != nil {
				return fmt.Errorf("failed to cancel item %s: %w", it.ProductName, err)
			}
		}

		productIDs := make([]uuid.UUID, 0, len(restock))
		for id := range restock {
			productIDs = append(productIDs, id)
		}
		productIDs = sortedIDs(productIDs)

		notes := fmt.Sprintf("order %s cancelled", order.OrderNumber)
		for _, id := range productIDs {
			if _, err := s.stock.ReturnProduct(txCtx, id, decimal.NewFromInt(int64(restock[id])), order.ID, actor, notes); err != nil {
				return err
			}
		}

		now := s.opts.Now()
		order.Status = model.OrderStatusCancelled
		order.CancelledAt = &now
		order.CancelledBy = actor.UserRef()
		order.CancellationReason = reason
		if err := s.orderRepo.Update(txCtx, order); err != nil {
			return fmt.Errorf("failed to cancel order %s: %w", order.OrderNumber, err)
		}

		return recordAudit(txCtx, s.auditRepo, actor, model.ActionCancelOrder, order.ID.String(), order.OrderNumber, map[string]any{
			"reason":             reason,
			"restocked_products": len(productIDs),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("order cancelled",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber))
	publish(s.events, logger.FromContext(ctx), EventOrderCancelled, orderEvent(order))
	return order, nil
}

// canView scopes an order to its clinic and to manufacturers with lines in it
func canView(actor model.Actor, order *model.Order) error {
	switch {
	case actor.IsAdmin():
		return nil
	case actor.Role.IsBuyer() && order.ClinicID == actor.OrganisationID:
		return nil
	case actor.Role.IsManufacturer():
		for _, it := range order.Items {
			if it.ManufacturerID == actor.OrganisationID {
				return nil
			}
		}
	}
	return apperror.Forbidden("order %s belongs to another organisation", order.OrderNumber)
}

// sortedIDs orders ids the same way the repositories take row locks
func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	out := append([]uuid.UUID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func orderEvent(o *model.Order) OrderEvent {
	seen := map[uuid.UUID]bool{}
	var mfrs []string
	for _, it := range o.Items {
		if !seen[it.ManufacturerID] {
			seen[it.ManufacturerID] = true
			mfrs = append(mfrs, it.ManufacturerID.String())
		}
	}
	return OrderEvent{
		OrderID:         o.ID.String(),
		OrderNumber:     o.OrderNumber,
		ClinicID:        o.ClinicID.String(),
		ManufacturerIDs: mfrs,
		Status:          o.Status,
		TotalAmount:     o.TotalAmount.String(),
	}
}

func productEvent(p *model.Product, txType string) StockChangedEvent {
	return StockChangedEvent{
		ManufacturerID: p.ManufacturerID.String(),
		ProductID:      p.ID.String(),
		Name:           p.Name,
		Type:           txType,
		Stock:          p.StockQuantity.String(),
	}
}
