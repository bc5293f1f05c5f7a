package service

import (
	"context"
	"encoding/json"

	"medsupply/internal/apperror"
	"medsupply/internal/model"
	"medsupply/internal/repository"
)

type AuditLogResponse struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	OrganisationID string          `json:"organisation_id"`
	Action         string          `json:"action"`
	EntityID       string          `json:"entity_id"`
	EntityName     string          `json:"entity_name"`
	Details        json.RawMessage `json:"details"`
	CreatedAt      string          `json:"created_at"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, actor model.Actor, action string, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// GetAuditLogs pages through the trail newest first. Admins see every tenant,
// organisation admins only their own.
func (s *auditService) GetAuditLogs(ctx context.Context, actor model.Actor, action string, page, limit int) ([]AuditLogResponse, int64, error) {
	filter := repository.AuditFilter{Action: action}
	switch actor.Role {
	case model.RoleAdmin:
	case model.RoleManufacturerAdmin, model.RoleClinicAdmin, model.RoleHospitalAdmin:
		filter.OrganisationID = actor.OrganisationID
	default:
		return nil, 0, apperror.Forbidden("role %q cannot read the audit trail", actor.Role)
	}

	page, limit = normalizePage(page, limit)
	logs, total, err := s.repo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		userID, orgID := "", ""
		if l.UserID != nil {
			userID = l.UserID.String()
		}
		if l.OrganisationID != nil {
			orgID = l.OrganisationID.String()
		}
		details := json.RawMessage(l.Details)
		if !json.Valid(details) {
			details = json.RawMessage("null")
		}

		res = append(res, AuditLogResponse{
			ID:             l.ID.String(),
			UserID:         userID,
			OrganisationID: orgID,
			Action:         l.Action,
			EntityID:       l.EntityID,
			EntityName:     l.EntityName,
			Details:        details,
			CreatedAt:      l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}
