package service

import (
	"context"
	"time"

	"medsupply/internal/apperror"
	"medsupply/internal/model"
	"medsupply/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const topProductsLimit = 5

type ReportService interface {
	ProductionSummary(ctx context.Context, actor model.Actor, manufacturerID uuid.UUID, from, to time.Time) (*model.ProductionSummary, error)
}

type reportService struct {
	reportRepo   repository.LedgerReportRepository
	materialRepo repository.RawMaterialRepository
}

func NewReportService(reportRepo repository.LedgerReportRepository, materialRepo repository.RawMaterialRepository) ReportService {
	return &reportService{reportRepo: reportRepo, materialRepo: materialRepo}
}

// ProductionSummary aggregates batches and sales for one manufacturer over [from, to]
func (s *reportService) ProductionSummary(ctx context.Context, actor model.Actor, manufacturerID uuid.UUID, from, to time.Time) (*model.ProductionSummary, error) {
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
	if to.Before(from) {
		return nil, apperror.Validation("end date %s is before start date %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
	}

	batches, err := s.reportRepo.BatchSummary(ctx, manufacturerID, from, to)
	if err != nil {
		return nil, err
	}
	top, err := s.reportRepo.TopProducts(ctx, manufacturerID, from, to, topProductsLimit)
	if err != nil {
		return nil, err
	}
	low, err := s.materialRepo.ListLowStock(ctx, manufacturerID)
	if err != nil {
		return nil, err
	}

	summary := &model.ProductionSummary{
		ManufacturerID: manufacturerID,
		From:           from,
		To:             to,
		Batches:        batches,
		TopRevenue:     decimal.Zero,
		TopCommission:  decimal.Zero,
		TopProducts:    top,
		LowStockCount:  len(low),
	}
	for _, p := range top {
		summary.TopRevenue = summary.TopRevenue.Add(p.Revenue)
		summary.TopCommission = summary.TopCommission.Add(p.Commission)
	}
	return summary, nil
}
