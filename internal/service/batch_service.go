package service

import (
	"context"
	"fmt"
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
type StartBatchRequest struct {
	FormulaID       uuid.UUID       `json:"formula_id" binding:"required"`
	PlannedQuantity decimal.Decimal `json:"planned_quantity" binding:"dpos"`
	BatchNumber     string          `json:"batch_number" binding:"max=50"`
	TargetProductID *uuid.UUID      `json:"target_product_id"`
	Notes           string          `json:"notes"`
}

type CompleteBatchRequest struct {
	ActualYield  *decimal.Decimal `json:"actual_yield"`
	OverheadCost *decimal.Decimal `json:"overhead_cost"`
	Notes        string           `json:"notes"`
}

type BatchReasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type UpdateStageRequest struct {
	Status string `json:"status" binding:"required,oneof=IN_PROGRESS COMPLETED SKIPPED"`
	Notes  string `json:"notes"`
}

// BatchEvent is broadcast after a committed batch state change
type BatchEvent struct {
	BatchID        string `json:"batch_id"`
	BatchNumber    string `json:"batch_number"`
	ManufacturerID string `json:"manufacturer_id"`
	Status         string `json:"status"`
}

func (e BatchEvent) Audience() []string { return []string{e.ManufacturerID} }

// BatchOptions configures numbering and the QC gate
type BatchOptions struct {
	NumberPrefix string
	RequireQC    bool
	Now          func() time.Time
}

type BatchService interface {
	StartBatch(ctx context.Context, actor model.Actor, req StartBatchRequest) (*model.Batch, error)
	SubmitForQC(ctx context.Context, actor model.Actor, batchID uuid.UUID) (*model.Batch, error)
	CompleteBatch(ctx context.Context, actor model.Actor, batchID uuid.UUID, req CompleteBatchRequest) (*model.Batch, error)
	CancelBatch(ctx context.Context, actor model.Actor, batchID uuid.UUID, reason string) (*model.Batch, error)
	FailBatch(ctx context.Context, actor model.Actor, batchID uuid.UUID, reason string) (*model.Batch, error)
	UpdateStage(ctx context.Context, actor model.Actor, batchID, stageID uuid.UUID, req UpdateStageRequest) (*model.BatchStage, error)
	GetBatch(ctx context.Context, actor model.Actor, batchID uuid.UUID) (*model.Batch, error)
	ListBatches(ctx context.Context, actor model.Actor, status string, page, limit int) ([]model.Batch, int64, error)
}

type batchService struct {
	batchRepo    repository.BatchRepository
	formulaRepo  repository.FormulaRepository
	materialRepo repository.RawMaterialRepository
	productRepo  repository.ProductRepository
	stageRepo    repository.ProcessStageRepository
	txRepo       repository.InventoryTxRepository
	seqRepo      repository.SequenceRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	stock        StockMover
	events       EventPublisher
	opts         BatchOptions
}

func NewBatchService(
	batchRepo repository.BatchRepository,
	formulaRepo repository.FormulaRepository,
	materialRepo repository.RawMaterialRepository,
	productRepo repository.ProductRepository,
	stageRepo repository.ProcessStageRepository,
	txRepo repository.InventoryTxRepository,
	seqRepo repository.SequenceRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	stock StockMover,
	events EventPublisher,
	opts BatchOptions,
) BatchService {
	if opts.NumberPrefix == "" {
		opts.NumberPrefix = "BATCH"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &batchService{
		batchRepo:    batchRepo,
		formulaRepo:  formulaRepo,
		materialRepo: materialRepo,
		productRepo:  productRepo,
		stageRepo:    stageRepo,
		txRepo:       txRepo,
		seqRepo:      seqRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		stock:        stock,
		events:       events,
		opts:         opts,
	}
}

// StartBatch scales the formula to the planned quantity, checks every
// ingredient against locked stock and only then deducts all of them, creates
// the batch and copies the manufacturer's active process stages into it. Any
// failure leaves stock untouched.
func (s *batchService) StartBatch(ctx context.Context, actor model.Actor, req StartBatchRequest) (*model.Batch, error) {
	manufacturerID, err := manufacturerScope(actor)
	if err != nil {
		return nil, err
	}

	formula, err := s.formulaRepo.FindByIDWithItems(ctx, req.FormulaID)
	if err != nil {
		return nil, lookupErr(err, "formula", req.FormulaID)
	}
	if err := checkOwner(actor, formula.ManufacturerID, "formula", formula.Name); err != nil {
		return nil, err
	}
	if !formula.IsActive {
		return nil, apperror.Validation("formula %s is inactive", formula.Name)
	}

	scaled, err := ScaleFormula(formula, req.PlannedQuantity)
	if err != nil {
		return nil, err
	}

	targetProductID := formula.TargetProductID
	if req.TargetProductID != nil {
		targetProductID = req.TargetProductID
	}
	if targetProductID != nil {
		product, err := s.productRepo.FindByID(ctx, *targetProductID)
		if err != nil {
			return nil, lookupErr(err, "product", *targetProductID)
		}
		if product.ManufacturerID != manufacturerID {
			return nil, apperror.Forbidden("product %s belongs to another manufacturer", product.Name)
		}
	}

	now := s.opts.Now()
	batch := &model.Batch{
		ManufacturerID:  manufacturerID,
		FormulaID:       &formula.ID,
		TargetProductID: targetProductID,
		PlannedQuantity: req.PlannedQuantity,
		Unit:            formula.Unit,
		Status:          model.BatchStatusInProgress,
		StartDate:       &now,
		Notes:           req.Notes,
		CreatedBy:       actor.UserRef(),
	}
	batch.ID = uuid.New()

	var touched []*model.RawMaterial
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		ids := make([]uuid.UUID, 0, len(scaled.Requirements))
		for _, r := range scaled.Requirements {
			ids = append(ids, r.RawMaterialID)
		}
		locked, err := s.materialRepo.FindByIDsForUpdate(txCtx, ids)
		if err != nil {
			return fmt.Errorf("failed to lock raw materials: %w", err)
		}
		materials := make(map[uuid.UUID]*model.RawMaterial, len(locked))
		for i := range locked {
			materials[locked[i].ID] = &locked[i]
		}

		// validate everything before the first write
		materialCost := decimal.Zero
		for _, r := range scaled.Requirements {
			m, ok := materials[r.RawMaterialID]
			if !ok {
				return apperror.NotFound("raw material", r.RawMaterialID)
			}
			if m.ManufacturerID != manufacturerID {
				return apperror.Forbidden("raw material %s belongs to another manufacturer", m.Name)
			}
			if !m.IsActive {
				return apperror.Validation("raw material %s is inactive", m.Name)
			}
			if m.CurrentStock.LessThan(r.RequiredQuantity) {
				return apperror.InsufficientStock(m.Name, m.CurrentStock, r.RequiredQuantity, m.Unit)
			}
			materialCost = materialCost.Add(r.RequiredQuantity.Mul(m.UnitCost).Round(costPlaces))
		}

		number, err := s.batchNumber(txCtx, req.BatchNumber, now)
		if err != nil {
			return err
		}
		batch.BatchNumber = number
		batch.TotalMaterialCost = materialCost

		if err := s.batchRepo.Create(txCtx, batch); err != nil {
			return writeErr(err, "batch number %s already exists", number)
		}

		for _, r := range scaled.Requirements {
			m := materials[r.RawMaterialID]
			if _, err := s.stock.Consume(txCtx, m, r.RequiredQuantity, batch.ID, actor); err != nil {
				return err
			}
			touched = append(touched, m)
		}

		stages, err := s.stageRepo.ListByManufacturer(txCtx, manufacturerID, true)
		if err != nil {
			return fmt.Errorf("failed to load process stages: %w", err)
		}
		batch.Stages = make([]model.BatchStage, 0, len(stages))
		for _, st := range stages {
			batch.Stages = append(batch.Stages, model.BatchStage{
				BatchID:     batch.ID,
				Name:        st.Name,
				Description: st.Description,
				SortOrder:   st.SortOrder,
				Status:      model.StageStatusPending,
			})
		}
		if err := s.batchRepo.CreateStages(txCtx, batch.Stages); err != nil {
			return fmt.Errorf("failed to create batch stages: %w", err)
		}

		return recordAudit(txCtx, s.auditRepo, actor, model.ActionStartBatch, batch.ID.String(), batch.BatchNumber, map[string]any{
			"formula_id":          formula.ID.String(),
			"planned_quantity":    req.PlannedQuantity.String(),
			"scale_factor":        scaled.ScaleFactor.String(),
			"total_material_cost": materialCost.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.Info("batch started",
		zap.String("batch_id", batch.ID.String()),
		zap.String("batch_number", batch.BatchNumber),
		zap.String("planned_quantity", batch.PlannedQuantity.String()))
	for _, m := range touched {
		publish(s.events, log, EventStockChanged, materialEvent(m, model.TxTypeProductionUsage))
	}
	publish(s.events, log, EventBatchStarted, batchEvent(batch))
	return batch, nil
}

func (s *batchService) batchNumber(ctx context.Context, requested string, now time.Time) (string, error) {
	if number := strings.TrimSpace(requested); number != "" {
		exists, err := s.batchRepo.ExistsByNumber(ctx, number)
		if err != nil {
			return "", fmt.Errorf("failed to check batch number: %w", err)
		}
		if exists {
			return "", apperror.Conflict("batch number %s already exists", number)
		}
		return number, nil
	}

	seq, err := s.seqRepo.Next(ctx, fmt.Sprintf("batch:%d", now.Year()))
	if err != nil {
		return "", fmt.Errorf("failed to allocate batch number: %w", err)
	}
	return fmt.Sprintf("%s-%d-%05d", s.opts.NumberPrefix, now.Year(), seq), nil
}

func (s *batchService) SubmitForQC(ctx context.Context, actor model.Actor, batchID uuid.UUID) (*model.Batch, error) {
	var batch *model.Batch
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		batch, err = s.lockBatch(txCtx, actor, batchID)
		if err != nil {
			return err
		}
		if batch.Status != model.BatchStatusInProgress {
			return apperror.Conflict("batch %s is %s, only IN_PROGRESS batches can be submitted for QC", batch.BatchNumber, batch.Status)
		}

		now := s.opts.Now()
		batch.Status = model.BatchStatusQCPending
		batch.QCSubmittedAt = &now
		if err := s.batchRepo.Update(txCtx, batch); err != nil {
			return fmt.Errorf("failed to update batch %s: %w", batch.BatchNumber, err)
		}
		return recordAudit(txCtx, s.auditRepo, actor, model.ActionSubmitBatchQC, batch.ID.String(), batch.BatchNumber, nil)
	})
	if err != nil {
		return nil, err
	}

	publish(s.events, logger.FromContext(ctx), EventBatchUpdated, batchEvent(batch))
	return s.batchRepo.FindByID(ctx, batch.ID)
}

// CompleteBatch closes a running batch, records its yield and cost per unit
// and credits the yield to the target product. A batch completes at most once.
func (s *batchService) CompleteBatch(ctx context.Context, actor model.Actor, batchID uuid.UUID, req CompleteBatchRequest) (*model.Batch, error) {
	if req.ActualYield != nil && req.ActualYield.IsNegative() {
		return nil, apperror.Validation("actual yield must not be negative, got %s", req.ActualYield.String())
	}
	if req.OverheadCost != nil && req.OverheadCost.IsNegative() {
		return nil, apperror.Validation("overhead cost must not be negative, got %s", req.OverheadCost.String())
	}

	var batch *model.Batch
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		batch, err = s.lockBatch(txCtx, actor, batchID)
		if err != nil {
			return err
		}

		switch {
		case batch.Status == model.BatchStatusCompleted:
			return apperror.Conflict("batch %s is already completed", batch.BatchNumber)
		case batch.IsTerminal():
			return apperror.Conflict("batch %s is %s and cannot be completed", batch.BatchNumber, batch.Status)
		case s.opts.RequireQC && batch.Status != model.BatchStatusQCPending:
			return apperror.Conflict("batch %s must be submitted for QC before completion", batch.BatchNumber)
		case !batch.CanTransitionTo(model.BatchStatusCompleted):
			return apperror.Conflict("batch %s cannot move from %s to COMPLETED", batch.BatchNumber, batch.Status)
		}

		yield := batch.PlannedQuantity
		batch.YieldReported = false
		if req.ActualYield != nil {
			yield = *req.ActualYield
			batch.YieldReported = true
		}
		if req.OverheadCost != nil {
			batch.TotalOverheadCost = *req.OverheadCost
		}

		now := s.opts.Now()
		batch.ActualYield = &yield
		batch.CostPerUnit = BatchCostPerUnit(batch.TotalMaterialCost, batch.TotalOverheadCost, yield)
		batch.Status = model.BatchStatusCompleted
		batch.CompletionDate = &now
		if req.Notes != "" {
			batch.Notes = strings.TrimSpace(batch.Notes + "\n" + req.Notes)
		}

		if batch.TargetProductID != nil && yield.IsPositive() {
			if _, err := s.stock.Credit(txCtx, *batch.TargetProductID, yield, batch.CostPerUnit, batch.ID, actor); err != nil {
				return err
			}
		}
		if err := s.batchRepo.CompleteOpenStages(txCtx, batch.ID, now); err != nil {
			return fmt.Errorf("failed to close stages of batch %s: %w", batch.BatchNumber, err)
		}
		if err := s.batchRepo.Update(txCtx, batch); err != nil {
			return fmt.Errorf("failed to update batch %s: %w", batch.BatchNumber, err)
		}

		return recordAudit(txCtx, s.auditRepo, actor, model.ActionCompleteBatch, batch.ID.String(), batch.BatchNumber, map[string]any{
			"actual_yield":   yield.String(),
			"yield_reported": batch.YieldReported,
			"overhead_cost":  batch.TotalOverheadCost.String(),
			"cost_per_unit":  batch.CostPerUnit.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.Info("batch completed",
		zap.String("batch_id", batch.ID.String()),
		zap.String("batch_number", batch.BatchNumber),
		zap.String("actual_yield", batch.ActualYield.String()),
		zap.Bool("yield_reported", batch.YieldReported))
	publish(s.events, log, EventBatchCompleted, batchEvent(batch))
	return s.batchRepo.FindByID(ctx, batch.ID)
}

// CancelBatch stops a batch and returns every consumed material to stock at
// the cost it was consumed at
func (s *batchService) CancelBatch(ctx context.Context, actor model.Actor, batchID uuid.UUID, reason string) (*model.Batch, error) {
	return s.stop(ctx, actor, batchID, reason, model.BatchStatusCancelled)
}

// FailBatch stops a batch whose materials were lost; nothing is restored
func (s *batchService) FailBatch(ctx context.Context, actor model.Actor, batchID uuid.UUID, reason string) (*model.Batch, error) {
	return s.stop(ctx, actor, batchID, reason, model.BatchStatusFailed)
}

func (s *batchService) stop(ctx context.Context, actor model.Actor, batchID uuid.UUID, reason, status string) (*model.Batch, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Validation("a reason is required")
	}

	var (
		batch    *model.Batch
		restored []*model.RawMaterial
	)
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		batch, err = s.lockBatch(txCtx, actor, batchID)
		if err != nil {
			return err
		}
		if !batch.CanTransitionTo(status) {
			return apperror.Conflict("batch %s is %s and cannot be %s", batch.BatchNumber, batch.Status, strings.ToLower(status))
		}

		if status == model.BatchStatusCancelled {
			restored, err = s.restoreMaterials(txCtx, actor, batch)
			if err != nil {
				return err
			}
		}

		batch.Status = status
		batch.CancellationReason = reason
		if err := s.batchRepo.Update(txCtx, batch); err != nil {
			return fmt.Errorf("failed to update batch %s: %w", batch.BatchNumber, err)
		}

		action := model.ActionCancelBatch
		if status == model.BatchStatusFailed {
			action = model.ActionFailBatch
		}
		return recordAudit(txCtx, s.auditRepo, actor, action, batch.ID.String(), batch.BatchNumber, map[string]any{
			"reason":             reason,
			"restored_materials": len(restored),
		})
	})
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.Info("batch stopped",
		zap.String("batch_id", batch.ID.String()),
		zap.String("batch_number", batch.BatchNumber),
		zap.String("status", status))
	for _, m := range restored {
		publish(s.events, log, EventStockChanged, materialEvent(m, model.TxTypeReturnIn))
	}
	event := EventBatchCancelled
	if status == model.BatchStatusFailed {
		event = EventBatchFailed
	}
	publish(s.events, log, event, batchEvent(batch))
	return s.batchRepo.FindByID(ctx, batch.ID)
}

func (s *batchService) restoreMaterials(ctx context.Context, actor model.Actor, batch *model.Batch) ([]*model.RawMaterial, error) {
	usages, err := s.txRepo.ListByBatch(ctx, batch.ID, model.TxTypeProductionUsage)
	if err != nil {
		return nil, fmt.Errorf("failed to load consumption of batch %s: %w", batch.BatchNumber, err)
	}

	ids := make([]uuid.UUID, 0, len(usages))
	for _, u := range usages {
		if u.RawMaterialID != nil {
			ids = append(ids, *u.RawMaterialID)
		}
	}
	locked, err := s.materialRepo.FindByIDsForUpdate(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock raw materials: %w", err)
	}
	materials := make(map[uuid.UUID]*model.RawMaterial, len(locked))
	out := make([]*model.RawMaterial, 0, len(locked))
	for i := range locked {
		materials[locked[i].ID] = &locked[i]
		out = append(out, &locked[i])
	}

	notes := fmt.Sprintf("batch %s cancelled", batch.BatchNumber)
	for _, u := range usages {
		if u.RawMaterialID == nil {
			continue
		}
		m, ok := materials[*u.RawMaterialID]
		if !ok {
			return nil, apperror.NotFound("raw material", *u.RawMaterialID)
		}
		if _, err := s.stock.Restore(ctx, m, u.Quantity.Abs(), u.UnitCost, batch.ID, actor, notes); err != nil {
			return nil, err
		}
	}
	return out, nil
}

var stageTransitions = map[string][]string{
	model.StageStatusPending:    {model.StageStatusInProgress, model.StageStatusSkipped},
	model.StageStatusInProgress: {model.StageStatusCompleted, model.StageStatusSkipped},
}

func (s *batchService) UpdateStage(ctx context.Context, actor model.Actor, batchID, stageID uuid.UUID, req UpdateStageRequest) (*model.BatchStage, error) {
	var stage *model.BatchStage
	var batch *model.Batch
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		batch, err = s.lockBatch(txCtx, actor, batchID)
		if err != nil {
			return err
		}
		if batch.Status != model.BatchStatusInProgress {
			return apperror.Conflict("stages of batch %s cannot change while it is %s", batch.BatchNumber, batch.Status)
		}

		stage, err = s.batchRepo.FindStage(txCtx, batchID, stageID)
		if err != nil {
			return lookupErr(err, "batch stage", stageID)
		}

		allowed := false
		for _, next := range stageTransitions[stage.Status] {
			if next == req.Status {
				allowed = true
				break
			}
		}
		if !allowed {
			return apperror.Conflict("stage %s of batch %s cannot move from %s to %s", stage.Name, batch.BatchNumber, stage.Status, req.Status)
		}

		now := s.opts.Now()
		switch req.Status {
		case model.StageStatusInProgress:
			stage.StartedAt = &now
		case model.StageStatusCompleted, model.StageStatusSkipped:
			stage.CompletedAt = &now
		}
		stage.Status = req.Status
		if req.Notes != "" {
			stage.Notes = req.Notes
		}
		if err := s.batchRepo.UpdateStage(txCtx, stage); err != nil {
			return fmt.Errorf("failed to update stage %s: %w", stage.Name, err)
		}

		return recordAudit(txCtx, s.auditRepo, actor, model.ActionUpdateStage, stage.ID.String(), batch.BatchNumber+"/"+stage.Name, req)
	})
	if err != nil {
		return nil, err
	}

	publish(s.events, logger.FromContext(ctx), EventBatchUpdated, batchEvent(batch))
	return stage, nil
}

func (s *batchService) GetBatch(ctx context.Context, actor model.Actor, batchID uuid.UUID) (*model.Batch, error) {
	batch, err := s.batchRepo.FindByID(ctx, batchID)
	if err != nil {
		return nil, lookupErr(err, "batch", batchID)
	}
	if err := checkOwner(actor, batch.ManufacturerID, "batch", batch.BatchNumber); err != nil {
		return nil, err
	}
	return batch, nil
}

func (s *batchService) ListBatches(ctx context.Context, actor model.Actor, status string, page, limit int) ([]model.Batch, int64, error) {
	manufacturerID, err := manufacturerScope(actor)
	if err != nil {
		return nil, 0, err
	}
	page, limit = normalizePage(page, limit)
	return s.batchRepo.List(ctx, manufacturerID, status, page, limit)
}

func (s *batchService) lockBatch(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Batch, error) {
	batch, err := s.batchRepo.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "batch", id)
	}
	if err := checkOwner(actor, batch.ManufacturerID, "batch", batch.BatchNumber); err != nil {
		return nil, err
	}
	return batch, nil
}

func batchEvent(b *model.Batch) BatchEvent {
	return BatchEvent{
		BatchID:        b.ID.String(),
		BatchNumber:    b.BatchNumber,
		ManufacturerID: b.ManufacturerID.String(),
		Status:         b.Status,
	}
}
