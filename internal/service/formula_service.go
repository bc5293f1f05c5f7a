package service

import (
	"context"
	"fmt"
	"strings"

	"medsupply/internal/apperror"
	"medsupply/internal/model"
	"medsupply/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs
type FormulaItemRequest struct {
	RawMaterialID uuid.UUID       `json:"raw_material_id" binding:"required"`
	Quantity      decimal.Decimal `json:"quantity" binding:"dpos"`
	Notes         string          `json:"notes"`
}

type CreateFormulaRequest struct {
	Name              string               `json:"name" binding:"required,max=255"`
	Version           int                  `json:"version" binding:"omitempty,gte=1"`
	StandardBatchSize decimal.Decimal      `json:"standard_batch_size" binding:"dpos"`
	Unit              string               `json:"unit" binding:"required,max=20"`
	TargetProductID   *uuid.UUID           `json:"target_product_id"`
	Items             []FormulaItemRequest `json:"items" binding:"required,min=1,dive"`
}

// ScalePreviewLine is a scaled requirement together with what is on hand
type ScalePreviewLine struct {
	ScaledRequirement
	CurrentStock decimal.Decimal `json:"current_stock"`
	Shortfall    decimal.Decimal `json:"shortfall"`
}

type ScalePreview struct {
	*ScaledFormula
	Lines      []ScalePreviewLine `json:"lines"`
	CanProduce bool               `json:"can_produce"`
}

type FormulaService interface {
	CreateFormula(ctx context.Context, actor model.Actor, req CreateFormulaRequest) (*model.ManufacturingFormula, error)
	GetFormula(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.ManufacturingFormula, error)
	ListFormulas(ctx context.Context, actor model.Actor, page, limit int) ([]model.ManufacturingFormula, int64, error)
	PreviewScale(ctx context.Context, actor model.Actor, id uuid.UUID, quantity decimal.Decimal) (*ScalePreview, error)
}

type formulaService struct {
	formulaRepo  repository.FormulaRepository
	materialRepo repository.RawMaterialRepository
	productRepo  repository.ProductRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
}

func NewFormulaService(
	formulaRepo repository.FormulaRepository,
	materialRepo repository.RawMaterialRepository,
	productRepo repository.ProductRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) FormulaService {
	return &formulaService{
		formulaRepo:  formulaRepo,
		materialRepo: materialRepo,
		productRepo:  productRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
	}
}

func (s *formulaService) CreateFormula(ctx context.Context, actor model.Actor, req CreateFormulaRequest) (*model.ManufacturingFormula, error) {
	manufacturerID, err := manufacturerScope(actor)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.Validation("formula name is required")
	}
	if !req.StandardBatchSize.IsPositive() {
		return nil, apperror.Validation("standard batch size of formula %s must be positive", name)
	}
	if len(req.Items) == 0 {
		return nil, apperror.Validation("formula %s needs at least one ingredient", name)
	}

	ids := make([]uuid.UUID, 0, len(req.Items))
	seen := make(map[uuid.UUID]bool, len(req.Items))
	for _, it := range req.Items {
		if seen[it.RawMaterialID] {
			return nil, apperror.Validation("raw material %s appears twice in formula %s", it.RawMaterialID, name)
		}
		seen[it.RawMaterialID] = true
		ids = append(ids, it.RawMaterialID)
	}

	materials, err := s.materialRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load raw materials: %w", err)
	}
	byID := make(map[uuid.UUID]*model.RawMaterial, len(materials))
	for i := range materials {
		byID[materials[i].ID] = &materials[i]
	}

	formula := &model.ManufacturingFormula{
		ManufacturerID:    manufacturerID,
		Name:              name,
		Version:           req.Version,
		StandardBatchSize: req.StandardBatchSize,
		Unit:              req.Unit,
		TargetProductID:   req.TargetProductID,
		IsActive:          true,
	}
	if formula.Version == 0 {
		formula.Version = 1
	}

	for i, it := range req.Items {
		m, ok := byID[it.RawMaterialID]
		if !ok {
			return nil, apperror.NotFound("raw material", it.RawMaterialID)
		}
		if m.ManufacturerID != manufacturerID {
			return nil, apperror.Forbidden("raw material %s belongs to another manufacturer", m.Name)
		}
		if !m.IsActive {
			return nil, apperror.Validation("raw material %s is inactive", m.Name)
		}
		if !it.Quantity.IsPositive() {
			return nil, apperror.Validation("quantity of %s in formula %s must be positive", m.Name, name)
		}
		formula.Items = append(formula.Items, model.FormulaItem{
			RawMaterialID: m.ID,
			RawMaterial:   *m,
			Quantity:      it.Quantity,
			SortOrder:     i + 1,
			Notes:         it.Notes,
		})
	}

	if req.TargetProductID != nil {
		product, err := s.productRepo.FindByID(ctx, *req.TargetProductID)
		if err != nil {
			return nil, lookupErr(err, "product", *req.TargetProductID)
		}
		if product.ManufacturerID != manufacturerID {
			return nil, apperror.Forbidden("product %s belongs to another manufacturer", product.Name)
		}
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.formulaRepo.Create(txCtx, formula); err != nil {
			return fmt.Errorf("failed to create formula %s: %w", name, err)
		}
		return recordAudit(txCtx, s.auditRepo, actor, model.ActionCreateFormula, formula.ID.String(), formula.Name, req)
	})
	if err != nil {
		return nil, err
	}
	return formula, nil
}

func (s *formulaService) GetFormula(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.ManufacturingFormula, error) {
	formula, err := s.formulaRepo.FindByIDWithItems(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "formula", id)
	}
	if err := checkOwner(actor, formula.ManufacturerID, "formula", formula.Name); err != nil {
		return nil, err
	}
	return formula, nil
}

func (s *formulaService) ListFormulas(ctx context.Context, actor model.Actor, page, limit int) ([]model.ManufacturingFormula, int64, error) {
	manufacturerID, err := manufacturerScope(actor)
	if err != nil {
		return nil, 0, err
	}
	page, limit = normalizePage(page, limit)
	return s.formulaRepo.List(ctx, manufacturerID, page, limit)
}

// PreviewScale scales the formula and compares every requirement with current
// stock without reserving anything
func (s *formulaService) PreviewScale(ctx context.Context, actor model.Actor, id uuid.UUID, quantity decimal.Decimal) (*ScalePreview, error) {
	formula, err := s.GetFormula(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	scaled, err := ScaleFormula(formula, quantity)
	if err != nil {
		return nil, err
	}

	stock := make(map[uuid.UUID]decimal.Decimal, len(formula.Items))
	for _, it := range formula.Items {
		stock[it.RawMaterialID] = it.RawMaterial.CurrentStock
	}

	preview := &ScalePreview{ScaledFormula: scaled, CanProduce: true}
	for _, req := range scaled.Requirements {
		onHand := stock[req.RawMaterialID]
		shortfall := req.RequiredQuantity.Sub(onHand)
		if shortfall.IsPositive() {
			preview.CanProduce = false
		} else {
			shortfall = decimal.Zero
		}
		preview.Lines = append(preview.Lines, ScalePreviewLine{
			ScaledRequirement: req,
			CurrentStock:      onHand,
			Shortfall:         shortfall,
		})
	}
	return preview, nil
}
