package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"medsupply/internal/apperror"
	"medsupply/internal/logger"
	"medsupply/internal/model"
	"medsupply/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DTOs
type CreateRawMaterialRequest struct {
	SKU          string          `json:"sku" binding:"required,max=100"`
	Name         string          `json:"name" binding:"required,max=255"`
	Unit         string          `json:"unit" binding:"required,max=20"`
	OpeningStock decimal.Decimal `json:"opening_stock" binding:"dgte0"`
	UnitCost     decimal.Decimal `json:"unit_cost" binding:"dgte0"`
	ReorderPoint decimal.Decimal `json:"reorder_point" binding:"dgte0"`
}

type AddStockRequest struct {
	Quantity decimal.Decimal `json:"quantity" binding:"dpos"`
	UnitCost decimal.Decimal `json:"unit_cost" binding:"dgte0"`
	Notes    string          `json:"notes"`
}

type AdjustStockRequest struct {
	Type     string          `json:"type" binding:"required,oneof=ADJUSTMENT EXPIRED RETURN_IN RETURN_OUT"`
	Quantity decimal.Decimal `json:"quantity"`
	Notes    string          `json:"notes" binding:"required"`
}

// StockMover performs single stock movements inside a caller's transaction.
// Callers must hold the row lock on the material or product they pass in.
type StockMover interface {
	Consume(ctx context.Context, material *model.RawMaterial, qty decimal.Decimal, batchID uuid.UUID, actor model.Actor) (*model.InventoryTransaction, error)
	Restore(ctx context.Context, material *model.RawMaterial, qty, unitCost decimal.Decimal, batchID uuid.UUID, actor model.Actor, notes string) (*model.InventoryTransaction, error)
	Credit(ctx context.Context, productID uuid.UUID, qty, unitCost decimal.Decimal, batchID uuid.UUID, actor model.Actor) (*model.InventoryTransaction, error)
	DebitProduct(ctx context.Context, product *model.Product, qty decimal.Decimal, orderID uuid.UUID, actor model.Actor) (*model.InventoryTransaction, error)
	ReturnProduct(ctx context.Context, productID uuid.UUID, qty decimal.Decimal, orderID uuid.UUID, actor model.Actor, notes string) (*model.InventoryTransaction, error)
}

type InventoryLedgerService interface {
	StockMover
	CreateRawMaterial(ctx context.Context, actor model.Actor, req CreateRawMaterialRequest) (*model.RawMaterial, error)
	ListRawMaterials(ctx context.Context, actor model.Actor, page, limit int, search string) ([]model.RawMaterial, int64, error)
	AddStock(ctx context.Context, actor model.Actor, materialID uuid.UUID, req AddStockRequest) (*model.InventoryTransaction, error)
	AdjustStock(ctx context.Context, actor model.Actor, materialID uuid.UUID, req AdjustStockRequest) (*model.InventoryTransaction, error)
	ListTransactions(ctx context.Context, actor model.Actor, materialID uuid.UUID, page, limit int) ([]model.InventoryTransaction, int64, error)
	LowStock(ctx context.Context, actor model.Actor) ([]model.RawMaterial, error)
	Reconcile(ctx context.Context, actor model.Actor, manufacturerID uuid.UUID) ([]model.StockDiscrepancy, error)
}

type inventoryLedgerService struct {
	materialRepo repository.RawMaterialRepository
	productRepo  repository.ProductRepository
	txRepo       repository.InventoryTxRepository
	reportRepo   repository.LedgerReportRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	events       EventPublisher
}

func NewInventoryLedgerService(
	materialRepo repository.RawMaterialRepository,
	productRepo repository.ProductRepository,
	txRepo repository.InventoryTxRepository,
	reportRepo repository.LedgerReportRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	events EventPublisher,
) InventoryLedgerService {
	return &inventoryLedgerService{
		materialRepo: materialRepo,
		productRepo:  productRepo,
		txRepo:       txRepo,
		reportRepo:   reportRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		events:       events,
	}
}

// StockChangedEvent is broadcast after a committed stock movement
type StockChangedEvent struct {
	ManufacturerID string `json:"manufacturer_id"`
	RawMaterialID  string `json:"raw_material_id,omitempty"`
	ProductID      string `json:"product_id,omitempty"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Stock          string `json:"stock"`
	LowStock       bool   `json:"low_stock"`
}

func (e StockChangedEvent) Audience() []string { return []string{e.ManufacturerID} }

func materialEvent(m *model.RawMaterial, txType string) StockChangedEvent {
	return StockChangedEvent{
		ManufacturerID: m.ManufacturerID.String(),
		RawMaterialID:  m.ID.String(),
		Name:           m.Name,
		Type:           txType,
		Stock:          m.CurrentStock.String(),
		LowStock:       m.IsLowStock(),
	}
}

func (s *inventoryLedgerService) CreateRawMaterial(ctx context.Context, actor model.Actor, req CreateRawMaterialRequest) (*model.RawMaterial, error) {
	manufacturerID, err := manufacturerScope(actor)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.SKU) == "" || strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Unit) == "" {
		return nil, apperror.Validation("sku, name and unit are required")
	}
	if req.OpeningStock.IsNegative() || req.UnitCost.IsNegative() || req.ReorderPoint.IsNegative() {
		return nil, apperror.Validation("opening stock, unit cost and reorder point for %s must not be negative", req.Name)
	}

	material := &model.RawMaterial{
		ManufacturerID: manufacturerID,
		SKU:            strings.TrimSpace(req.SKU),
		Name:           strings.TrimSpace(req.Name),
		Unit:           strings.TrimSpace(req.Unit),
		CurrentStock:   req.OpeningStock,
		UnitCost:       req.UnitCost.Round(costPlaces),
		ReorderPoint:   req.ReorderPoint,
		IsActive:       true,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.materialRepo.Create(txCtx, material); err != nil {
			return writeErr(err, "raw material with sku %s already exists", material.SKU)
		}

		if material.CurrentStock.IsPositive() {
			if _, err := s.record(txCtx, &model.InventoryTransaction{
				ManufacturerID: manufacturerID,
				RawMaterialID:  &material.ID,
				Type:           model.TxTypeAdjustment,
				Quantity:       material.CurrentStock,
				UnitCost:       material.UnitCost,
				StockAfter:     material.CurrentStock,
				Notes:          "opening stock",
				CreatedBy:      actor.UserRef(),
			}); err != nil {
				return err
			}
		}

		return recordAudit(txCtx, s.auditRepo, actor, model.ActionCreateRawMaterial, material.ID.String(), material.Name, req)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("raw material created",
		zap.String("raw_material_id", material.ID.String()),
		zap.String("sku", material.SKU))
	return material, nil
}

func (s *inventoryLedgerService) ListRawMaterials(ctx context.Context, actor model.Actor, page, limit int, search string) ([]model.RawMaterial, int64, error) {
	manufacturerID, err := manufacturerScope(actor)
	if err != nil {
		return nil, 0, err
	}
	page, limit = normalizePage(page, limit)
	return s.materialRepo.List(ctx, manufacturerID, page, limit, search)
}

// AddStock receives a purchase into stock and re-averages the unit cost
func (s *inventoryLedgerService) AddStock(ctx context.Context, actor model.Actor, materialID uuid.UUID, req AddStockRequest) (*model.InventoryTransaction, error) {
	if !req.Quantity.IsPositive() {
		return nil, apperror.Validation("quantity must be positive, got %s", req.Quantity.String())
	}
	if req.UnitCost.IsNegative() {
		return nil, apperror.Validation("unit cost must not be negative, got %s", req.UnitCost.String())
	}

	var (
		entry    *model.InventoryTransaction
		material *model.RawMaterial
	)
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		material, err = s.lockMaterial(txCtx, actor, materialID)
		if err != nil {
			return err
		}

		newCost := MovingAverageCost(material.CurrentStock, material.UnitCost, req.Quantity, req.UnitCost)
		material.CurrentStock = material.CurrentStock.Add(req.Quantity)
		material.UnitCost = newCost
		if err := s.materialRepo.UpdateStockAndCost(txCtx, material.ID, material.CurrentStock, material.UnitCost); err != nil {
			return fmt.Errorf("failed to update stock for %s: %w", material.Name, err)
		}

		entry, err = s.record(txCtx, &model.InventoryTransaction{
			ManufacturerID: material.ManufacturerID,
			RawMaterialID:  &material.ID,
			Type:           model.TxTypePurchase,
			Quantity:       req.Quantity,
			UnitCost:       req.UnitCost.Round(costPlaces),
			StockAfter:     material.CurrentStock,
			Notes:          req.Notes,
			CreatedBy:      actor.UserRef(),
		})
		if err != nil {
			return err
		}

		return recordAudit(txCtx, s.auditRepo, actor, model.ActionAddStock, material.ID.String(), material.Name, map[string]any{
			"quantity":    req.Quantity.String(),
			"unit_cost":   req.UnitCost.String(),
			"stock_after": material.CurrentStock.String(),
			"avg_cost":    material.UnitCost.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	publish(s.events, logger.FromContext(ctx), EventStockChanged, materialEvent(material, model.TxTypePurchase))
	return entry, nil
}

// AdjustStock records a manual correction. ADJUSTMENT takes a signed quantity;
// EXPIRED and RETURN_OUT remove stock and RETURN_IN adds it back.
func (s *inventoryLedgerService) AdjustStock(ctx context.Context, actor model.Actor, materialID uuid.UUID, req AdjustStockRequest) (*model.InventoryTransaction, error) {
	var delta decimal.Decimal
	switch req.Type {
	case model.TxTypeAdjustment:
		if req.Quantity.IsZero() {
			return nil, apperror.Validation("adjustment quantity must not be zero")
		}
		delta = req.Quantity
	case model.TxTypeExpired, model.TxTypeReturnOut:
		if !req.Quantity.IsPositive() {
			return nil, apperror.Validation("%s quantity must be positive", req.Type)
		}
		delta = req.Quantity.Neg()
	case model.TxTypeReturnIn:
		if !req.Quantity.IsPositive() {
			return nil, apperror.Validation("%s quantity must be positive", req.Type)
		}
		delta = req.Quantity
	default:
		return nil, apperror.Validation("unsupported adjustment type %q", req.Type)
	}

	var (
		entry    *model.InventoryTransaction
		material *model.RawMaterial
	)
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		material, err = s.lockMaterial(txCtx, actor, materialID)
		if err != nil {
			return err
		}

		next := material.CurrentStock.Add(delta)
		if next.IsNegative() {
			return apperror.InsufficientStock(material.Name, material.CurrentStock, delta.Neg(), material.Unit)
		}
		material.CurrentStock = next
		if err := s.materialRepo.UpdateStock(txCtx, material.ID, next); err != nil {
			return fmt.Errorf("failed to update stock for %s: %w", material.Name, err)
		}

		entry, err = s.record(txCtx, &model.InventoryTransaction{
			ManufacturerID: material.ManufacturerID,
			RawMaterialID:  &material.ID,
			Type:           req.Type,
			Quantity:       delta,
			UnitCost:       material.UnitCost,
			StockAfter:     next,
			Notes:          req.Notes,
			CreatedBy:      actor.UserRef(),
		})
		if err != nil {
			return err
		}

		return recordAudit(txCtx, s.auditRepo, actor, model.ActionAdjustStock, material.ID.String(), material.Name, map[string]any{
			"type":        req.Type,
			"quantity":    delta.String(),
			"stock_after": next.String(),
			"notes":       req.Notes,
		})
	})
	if err != nil {
		return nil, err
	}

	publish(s.events, logger.FromContext(ctx), EventStockChanged, materialEvent(material, req.Type))
	return entry, nil
}

func (s *inventoryLedgerService) ListTransactions(ctx context.Context, actor model.Actor, materialID uuid.UUID, page, limit int) ([]model.InventoryTransaction, int64, error) {
	material, err := s.materialRepo.FindByID(ctx, materialID)
	if err != nil {
		return nil, 0, lookupErr(err, "raw material", materialID)
	}
	if err := checkOwner(actor, material.ManufacturerID, "raw material", material.Name); err != nil {
		return nil, 0, err
	}
	page, limit = normalizePage(page, limit)
	return s.txRepo.ListByMaterial(ctx, materialID, page, limit)
}

func (s *inventoryLedgerService) LowStock(ctx context.Context, actor model.Actor) ([]model.RawMaterial, error) {
	manufacturerID, err := manufacturerScope(actor)
	if err != nil {
		return nil, err
	}
	return s.materialRepo.ListLowStock(ctx, manufacturerID)
}

// Reconcile lists materials whose stored stock differs from their ledger sum.
// Manufacturers always reconcile their own stock; admins pass the tenant.
func (s *inventoryLedgerService) Reconcile(ctx context.Context, actor model.Actor, manufacturerID uuid.UUID) ([]model.StockDiscrepancy, error) {
	if !actor.IsAdmin() {
		own, err := manufacturerScope(actor)
		if err != nil {
			return nil, err
		}
		manufacturerID = own
	}
	if manufacturerID == uuid.Nil {
		return nil, apperror.Validation("manufacturer_id is required")
	}

	rows, err := s.reportRepo.StockDiscrepancies(ctx, manufacturerID)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		logger.FromContext(ctx).Warn("stock ledger out of balance",
			zap.String("manufacturer_id", manufacturerID.String()),
			zap.Int("materials", len(rows)))
	}
	return rows, nil
}

// Consume removes qty of material for a production batch at the current
// average cost. The stock check and the write happen on the locked row.
func (s *inventoryLedgerService) Consume(ctx context.Context, material *model.RawMaterial, qty decimal.Decimal, batchID uuid.UUID, actor model.Actor) (*model.InventoryTransaction, error) {
	if err := requireTx(ctx); err != nil {
		return nil, err
	}
	if !qty.IsPositive() {
		return nil, apperror.Validation("consumption of %s must be positive", material.Name)
	}
	if material.CurrentStock.LessThan(qty) {
		return nil, apperror.InsufficientStock(material.Name, material.CurrentStock, qty, material.Unit)
	}

	material.CurrentStock = material.CurrentStock.Sub(qty)
	if err := s.materialRepo.UpdateStock(ctx, material.ID, material.CurrentStock); err != nil {
		return nil, fmt.Errorf("failed to deduct %s: %w", material.Name, err)
	}

	return s.record(ctx, &model.InventoryTransaction{
		ManufacturerID: material.ManufacturerID,
		RawMaterialID:  &material.ID,
		BatchID:        &batchID,
		Type:           model.TxTypeProductionUsage,
		Quantity:       qty.Neg(),
		UnitCost:       material.UnitCost,
		StockAfter:     material.CurrentStock,
		CreatedBy:      actor.UserRef(),
	})
}

// Restore returns material consumed by a batch that did not go ahead
func (s *inventoryLedgerService) Restore(ctx context.Context, material *model.RawMaterial, qty, unitCost decimal.Decimal, batchID uuid.UUID, actor model.Actor, notes string) (*model.InventoryTransaction, error) {
	if err := requireTx(ctx); err != nil {
		return nil, err
	}
	if !qty.IsPositive() {
		return nil, apperror.Validation("restored quantity of %s must be positive", material.Name)
	}

	material.CurrentStock = material.CurrentStock.Add(qty)
	if err := s.materialRepo.UpdateStock(ctx, material.ID, material.CurrentStock); err != nil {
		return nil, fmt.Errorf("failed to restore %s: %w", material.Name, err)
	}

	return s.record(ctx, &model.InventoryTransaction{
		ManufacturerID: material.ManufacturerID,
		RawMaterialID:  &material.ID,
		BatchID:        &batchID,
		Type:           model.TxTypeReturnIn,
		Quantity:       qty,
		UnitCost:       unitCost,
		StockAfter:     material.CurrentStock,
		Notes:          notes,
		CreatedBy:      actor.UserRef(),
	})
}

// Credit adds finished goods from a completed batch to the product's stock
func (s *inventoryLedgerService) Credit(ctx context.Context, productID uuid.UUID, qty, unitCost decimal.Decimal, batchID uuid.UUID, actor model.Actor) (*model.InventoryTransaction, error) {
	if err := requireTx(ctx); err != nil {
		return nil, err
	}
	product, err := s.productRepo.FindByIDForUpdate(ctx, productID)
	if err != nil {
		return nil, lookupErr(err, "product", productID)
	}

	product.StockQuantity = product.StockQuantity.Add(qty)
	if err := s.productRepo.UpdateStock(ctx, product.ID, product.StockQuantity); err != nil {
		return nil, fmt.Errorf("failed to credit %s: %w", product.Name, err)
	}

	return s.record(ctx, &model.InventoryTransaction{
		ManufacturerID: product.ManufacturerID,
		ProductID:      &product.ID,
		BatchID:        &batchID,
		Type:           model.TxTypeProductionOutput,
		Quantity:       qty,
		UnitCost:       unitCost,
		StockAfter:     product.StockQuantity,
		CreatedBy:      actor.UserRef(),
	})
}

// DebitProduct removes sold units from a locked product row
func (s *inventoryLedgerService) DebitProduct(ctx context.Context, product *model.Product, qty decimal.Decimal, orderID uuid.UUID, actor model.Actor) (*model.InventoryTransaction, error) {
	if err := requireTx(ctx); err != nil {
		return nil, err
	}
	if product.StockQuantity.LessThan(qty) {
		return nil, apperror.InsufficientStock(product.Name, product.StockQuantity, qty, product.Unit)
	}

	product.StockQuantity = product.StockQuantity.Sub(qty)
	if err := s.productRepo.UpdateStock(ctx, product.ID, product.StockQuantity); err != nil {
		return nil, fmt.Errorf("failed to deduct %s: %w", product.Name, err)
	}

	return s.record(ctx, &model.InventoryTransaction{
		ManufacturerID: product.ManufacturerID,
		ProductID:      &product.ID,
		OrderID:        &orderID,
		Type:           model.TxTypeSale,
		Quantity:       qty.Neg(),
		UnitCost:       product.Price,
		StockAfter:     product.StockQuantity,
		CreatedBy:      actor.UserRef(),
	})
}

// ReturnProduct puts units of a cancelled order line back into stock
func (s *inventoryLedgerService) ReturnProduct(ctx context.Context, productID uuid.UUID, qty decimal.Decimal, orderID uuid.UUID, actor model.Actor, notes string) (*model.InventoryTransaction, error) {
	if err := requireTx(ctx); err != nil {
		return nil, err
	}
	product, err := s.productRepo.FindByIDForUpdate(ctx, productID)
	if err != nil {
		return nil, lookupErr(err, "product", productID)
	}

	product.StockQuantity = product.StockQuantity.Add(qty)
	if err := s.productRepo.UpdateStock(ctx, product.ID, product.StockQuantity); err != nil {
		return nil, fmt.Errorf("failed to restock %s: %w", product.Name, err)
	}

	return s.record(ctx, &model.InventoryTransaction{
		ManufacturerID: product.ManufacturerID,
		ProductID:      &product.ID,
		OrderID:        &orderID,
		Type:           model.TxTypeReturnIn,
		Quantity:       qty,
		UnitCost:       product.Price,
		StockAfter:     product.StockQuantity,
		Notes:          notes,
		CreatedBy:      actor.UserRef(),
	})
}

func (s *inventoryLedgerService) lockMaterial(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.RawMaterial, error) {
	material, err := s.materialRepo.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "raw material", id)
	}
	if err := checkOwner(actor, material.ManufacturerID, "raw material", material.Name); err != nil {
		return nil, err
	}
	if !material.IsActive {
		return nil, apperror.Validation("raw material %s is inactive", material.Name)
	}
	return material, nil
}

func (s *inventoryLedgerService) record(ctx context.Context, entry *model.InventoryTransaction) (*model.InventoryTransaction, error) {
	entry.TotalCost = entry.Quantity.Abs().Mul(entry.UnitCost).Round(costPlaces)
	if err := s.txRepo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record %s transaction: %w", entry.Type, err)
	}
	return entry, nil
}

var errNoTransaction = errors.New("stock movements must run inside a transaction")

func requireTx(ctx context.Context) error {
	if !repository.InTx(ctx) {
		return errNoTransaction
	}
	return nil
}
