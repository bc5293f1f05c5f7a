package service

import (
	"context"
	"encoding/json"
	"fmt"

	"medsupply/internal/model"
	"medsupply/internal/repository"

	"github.com/google/uuid"
)

// recordAudit writes an audit row in the caller's transaction
func recordAudit(ctx context.Context, repo repository.AuditRepository, actor model.Actor, action, entityID, entityName string, details any) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	var orgID *uuid.UUID
	if actor.OrganisationID != uuid.Nil {
		id := actor.OrganisationID
		orgID = &id
	}

	entry := &model.AuditLog{
		UserID:         actor.UserRef(),
		OrganisationID: orgID,
		Action:         action,
		EntityID:       entityID,
		EntityName:     entityName,
		Details:        string(payload),
	}
	if err := repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
