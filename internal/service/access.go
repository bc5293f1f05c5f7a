package service

import (
	"medsupply/internal/apperror"
	"medsupply/internal/model"
	"medsupply/pkg/pagination"

	"github.com/google/uuid"
)

// manufacturerScope returns the manufacturer the actor operates for
func manufacturerScope(actor model.Actor) (uuid.UUID, error) {
	if !actor.Role.IsManufacturer() || actor.OrganisationID == uuid.Nil {
		return uuid.Nil, apperror.Forbidden("only manufacturer users can manage production")
	}
	return actor.OrganisationID, nil
}

// checkOwner rejects access to another manufacturer's records. Platform admins
// may read and act on every tenant.
func checkOwner(actor model.Actor, ownerID uuid.UUID, entity, name string) error {
	if actor.IsAdmin() || actor.OrganisationID == ownerID {
		return nil
	}
	return apperror.Forbidden("%s %s belongs to another organisation", entity, name)
}

func normalizePage(page, limit int) (int, int) {
	p := pagination.Normalize(page, limit)
	return p.Page, p.Limit
}
