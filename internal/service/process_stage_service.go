package service

import (
	"context"
	"fmt"
	"strings"

	"medsupply/internal/apperror"
	"medsupply/internal/model"
	"medsupply/internal/repository"
)

type CreateProcessStageRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	Description string `json:"description"`
	SortOrder   int    `json:"sort_order" binding:"gte=0"`
}

type ProcessStageService interface {
	CreateStage(ctx context.Context, actor model.Actor, req CreateProcessStageRequest) (*model.ProcessStage, error)
	ListStages(ctx context.Context, actor model.Actor) ([]model.ProcessStage, error)
}

type processStageService struct {
	stageRepo repository.ProcessStageRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
}

func NewProcessStageService(stageRepo repository.ProcessStageRepository, auditRepo repository.AuditRepository, txManager repository.TransactionManager) ProcessStageService {
	return &processStageService{stageRepo: stageRepo, auditRepo: auditRepo, txManager: txManager}
}

func (s *processStageService) CreateStage(ctx context.Context, actor model.Actor, req CreateProcessStageRequest) (*model.ProcessStage, error) {
	manufacturerID, err := manufacturerScope(actor)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperror.Validation("stage name is required")
	}

	stage := &model.ProcessStage{
		ManufacturerID: manufacturerID,
		Name:           strings.TrimSpace(req.Name),
		Description:    req.Description,
		SortOrder:      req.SortOrder,
		IsActive:       true,
	}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.stageRepo.Create(txCtx, stage); err != nil {
			return fmt.Errorf("failed to create process stage: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, actor, model.ActionCreateProcessStage, stage.ID.String(), stage.Name, req)
	})
	if err != nil {
		return nil, err
	}
	return stage, nil
}

func (s *processStageService) ListStages(ctx context.Context, actor model.Actor) ([]model.ProcessStage, error) {
	manufacturerID, err := manufacturerScope(actor)
	if err != nil {
		return nil, err
	}
	return s.stageRepo.ListByManufacturer(ctx, manufacturerID, false)
}
